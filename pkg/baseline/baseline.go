// Package baseline locates the last deliberate version change for a plugin.
// History itself is the source of truth for "last bump": there is no pointer
// file to keep in sync, at the cost of a bounded linear scan over the commits
// touching the two version-bearing documents.
package baseline

import (
	"context"
	"regexp"

	"github.com/plugmart/autobump/pkg/gitrepo"
	"github.com/plugmart/autobump/pkg/marketplace"
)

// DefaultMaxDepth bounds the history scan. Plugins whose last bump is older
// than this fall back to "no baseline" and have their whole history counted
// as changed; see the Find doc comment.
const DefaultMaxDepth = 100

// versionLine matches an added or removed patch line that rewrites a semantic
// version field. Requiring the +/- prefix distinguishes a commit that changed
// the version from one that merely touched the file.
var versionLine = regexp.MustCompile(`(?m)^[+-].*"version"\s*:\s*"[0-9]+\.[0-9]+\.[0-9]+"`)

// Locator finds version-bump baselines in repository history.
type Locator struct {
	repo     *gitrepo.Repo
	maxDepth int
}

// NewLocator creates a Locator. maxDepth <= 0 selects DefaultMaxDepth.
func NewLocator(repo *gitrepo.Repo, maxDepth int) *Locator {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Locator{repo: repo, maxDepth: maxDepth}
}

// Find returns the most recent commit within the depth limit whose diff
// against its first parent changes a version field in the registry or the
// plugin's manifest. found is false when no qualifying commit exists, in
// which case the caller treats the plugin's entire history as unreleased.
// Root commits have no parent to diff against and are skipped.
func (l *Locator) Find(ctx context.Context, plugin marketplace.Plugin) (sha string, found bool, err error) {
	paths := []string{marketplace.RegistryPath, plugin.ManifestPath()}

	commits, err := l.repo.Log(ctx, "HEAD", l.maxDepth, paths...)
	if err != nil {
		return "", false, err
	}

	for _, commit := range commits {
		parent, hasParent, err := l.repo.FirstParent(ctx, commit.SHA)
		if err != nil {
			return "", false, err
		}
		if !hasParent {
			continue
		}

		diff, err := l.repo.Diff(ctx, parent, commit.SHA, paths...)
		if err != nil {
			return "", false, err
		}
		if versionLine.MatchString(diff) {
			return commit.SHA, true, nil
		}
	}

	return "", false, nil
}
