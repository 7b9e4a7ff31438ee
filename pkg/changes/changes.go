// Package changes collects what happened to a plugin since its last version
// bump: the commit summaries and the combined patch, ready to hand to the
// classifier.
package changes

import (
	"context"

	"github.com/plugmart/autobump/pkg/gitrepo"
)

// DefaultDiffLimit caps the combined diff text handed to the classifier.
const DefaultDiffLimit = 50000

// TruncationMarker is appended to a capped diff so the classifier knows its
// input was incomplete rather than the change being small.
const TruncationMarker = "\n[... diff truncated ...]"

// Set describes a plugin's modifications between its baseline and HEAD.
// Recomputed from scratch every run, never persisted.
type Set struct {
	// Summaries holds commit subjects in chronological order, oldest first.
	Summaries []string
	// Diff is the combined textual patch, possibly truncated.
	Diff string
	// Truncated reports whether Diff was cut at the limit.
	Truncated bool
}

// Empty reports whether nothing changed. An empty set means the plugin is
// skipped for this run.
func (s Set) Empty() bool {
	return len(s.Summaries) == 0 && s.Diff == ""
}

// Collector builds change sets from repository history.
type Collector struct {
	repo      *gitrepo.Repo
	diffLimit int
}

// NewCollector creates a Collector. diffLimit <= 0 selects DefaultDiffLimit.
func NewCollector(repo *gitrepo.Repo, diffLimit int) *Collector {
	if diffLimit <= 0 {
		diffLimit = DefaultDiffLimit
	}
	return &Collector{repo: repo, diffLimit: diffLimit}
}

// Collect gathers the change set for a plugin directory since baseline. An
// empty baseline means no prior bump was found and the plugin's entire
// history counts as change (diff against the empty tree). A baseline equal
// to HEAD yields an empty set: the no-op idempotence case.
func (c *Collector) Collect(ctx context.Context, dir, baseline string) (Set, error) {
	logRev, diffFrom := "HEAD", gitrepo.EmptyTreeSHA
	if baseline != "" {
		head, err := c.repo.Head(ctx)
		if err != nil {
			return Set{}, err
		}
		if baseline == head {
			return Set{}, nil
		}
		logRev = baseline + "..HEAD"
		diffFrom = baseline
	}

	commits, err := c.repo.Log(ctx, logRev, 0, dir)
	if err != nil {
		return Set{}, err
	}
	diff, err := c.repo.Diff(ctx, diffFrom, "HEAD", dir)
	if err != nil {
		return Set{}, err
	}

	set := Set{}
	// git log lists newest first; readers and the classifier want the story
	// oldest first.
	for i := len(commits) - 1; i >= 0; i-- {
		set.Summaries = append(set.Summaries, commits[i].Summary)
	}

	if len(diff) > c.diffLimit {
		diff = diff[:c.diffLimit] + TruncationMarker
		set.Truncated = true
	}
	set.Diff = diff

	return set, nil
}
