// Package bump orchestrates one version-bump run: read the registry, locate
// each plugin's baseline, collect and classify changes, rewrite versions as a
// batch, then commit and publish. The whole run is a strictly sequential
// batch job; the only synchronization with concurrent runs is the
// fast-forward push at the very end.
package bump

import (
	"context"
	"fmt"
	"strings"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/plugmart/autobump/pkg/baseline"
	"github.com/plugmart/autobump/pkg/changes"
	"github.com/plugmart/autobump/pkg/classifier"
	"github.com/plugmart/autobump/pkg/gitrepo"
	"github.com/plugmart/autobump/pkg/logger"
	"github.com/plugmart/autobump/pkg/marketplace"
	"github.com/plugmart/autobump/pkg/presenter"
	"github.com/plugmart/autobump/pkg/semver"
)

// Options configures a run.
type Options struct {
	// Root is the repository root. Empty means the current directory.
	Root string
	// MaxDepth bounds the baseline history scan; 0 selects the default.
	MaxDepth int
	// DiffLimit caps the diff text handed to the classifier; 0 selects the
	// default.
	DiffLimit int
	// Remote and Branch name the publish target.
	Remote string
	Branch string
	// DryRun computes and prints the plan without writing, committing, or
	// pushing.
	DryRun bool
	// NoPush writes and commits but skips the publish step.
	NoPush bool
}

// Decision is the computed outcome for one plugin with a non-empty change
// set.
type Decision struct {
	Plugin    marketplace.Plugin
	Baseline  string // empty when no prior bump was found
	Changes   changes.Set
	Magnitude semver.Magnitude
	Old       semver.Version
	New       semver.Version
}

// Runner executes version-bump runs.
type Runner struct {
	opts       Options
	classifier classifier.Classifier
	out        presenter.Presenter
}

// Option configures a Runner.
type Option func(*Runner)

// WithPresenter overrides the user-facing output sink, mainly for tests.
func WithPresenter(p presenter.Presenter) Option {
	return func(r *Runner) {
		r.out = p
	}
}

// NewRunner creates a Runner. The classifier is wrapped with the fallback
// policy here so no caller can accidentally wire a backend whose failure
// aborts the run.
func NewRunner(opts Options, cls classifier.Classifier, options ...Option) *Runner {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}

	r := &Runner{
		opts:       opts,
		classifier: classifier.WithFallback(cls),
		out:        presenter.New(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Run performs one complete bump cycle. It returns nil for the
// nothing-to-bump and push-conflict outcomes; those are normal endings, not
// failures.
func (r *Runner) Run(ctx context.Context) error {
	repo, err := gitrepo.Open(ctx, r.opts.Root)
	if err != nil {
		return err
	}

	registry, err := marketplace.LoadRegistry(r.opts.Root)
	if err != nil {
		return err
	}

	plugins := registry.Plugins()
	for _, raw := range registry.Skipped() {
		r.out.Warning(fmt.Sprintf("skipping registry entry missing name or version: %s", raw))
	}
	r.out.Info(fmt.Sprintf("Found %d plugins:", len(plugins)))
	for _, plugin := range plugins {
		r.out.Info(fmt.Sprintf("  - %s (v%s)", plugin.Name, plugin.Version))
	}

	current, err := r.parseVersions(registry)
	if err != nil {
		return err
	}

	decisions, err := r.plan(ctx, repo, registry, current)
	if err != nil {
		return err
	}

	if len(decisions) == 0 {
		r.out.Success("No plugins need version bumps")
		return nil
	}

	if r.opts.DryRun {
		r.out.Section("Bump plan (dry run)")
		for _, d := range decisions {
			r.out.Info(fmt.Sprintf("  %s: %s -> %s (%s)", d.Plugin.Name, d.Old, d.New, d.Magnitude))
		}
		return nil
	}

	return r.apply(ctx, repo, registry, decisions)
}

// parseVersions validates every recorded version before any classification
// call is made. All malformed versions are reported together; a single bad
// one fails the whole run, since guessing at a corrupted version would
// compound the damage.
func (r *Runner) parseVersions(registry *marketplace.Registry) (map[string]semver.Version, error) {
	current := make(map[string]semver.Version)
	var invalid *multierror.Error

	for _, plugin := range registry.Plugins() {
		version, err := semver.Parse(plugin.Version)
		if err != nil {
			invalid = multierror.Append(invalid, errors.Wrapf(err, "plugin %s", plugin.Name))
			continue
		}
		current[plugin.Name] = version

		manifestVersion, err := registry.ManifestVersion(plugin)
		if err != nil {
			r.out.Warning(fmt.Sprintf("%s: cannot read manifest version: %v", plugin.Name, err))
			continue
		}
		if manifestVersion != plugin.Version {
			// The registry is authoritative for the current version; the
			// divergence is surfaced rather than silently papered over.
			r.out.Warning(fmt.Sprintf("%s: manifest records v%s but registry records v%s; using the registry",
				plugin.Name, manifestVersion, plugin.Version))
		}
	}

	return current, invalid.ErrorOrNil()
}

// plan computes a Decision for every plugin with a non-empty change set.
// Classification failures never abort the run; they fall back to minor via
// the decorator installed in NewRunner.
func (r *Runner) plan(ctx context.Context, repo *gitrepo.Repo, registry *marketplace.Registry, current map[string]semver.Version) ([]Decision, error) {
	locator := baseline.NewLocator(repo, r.opts.MaxDepth)
	collector := changes.NewCollector(repo, r.opts.DiffLimit)

	var decisions []Decision
	for _, plugin := range registry.Plugins() {
		plctx := logger.WithLogger(ctx, logger.G(ctx).WithField("plugin", plugin.Name))

		base, found, err := locator.Find(plctx, plugin)
		if err != nil {
			return nil, errors.Wrapf(err, "locating baseline for plugin %s", plugin.Name)
		}
		if found {
			r.out.Info(fmt.Sprintf("  %s: last bump at %s", plugin.Name, gitrepo.ShortSHA(base)))
		} else {
			r.out.Info(fmt.Sprintf("  %s: no previous bump found, considering full history", plugin.Name))
		}

		set, err := collector.Collect(plctx, plugin.Dir(), base)
		if err != nil {
			return nil, errors.Wrapf(err, "collecting changes for plugin %s", plugin.Name)
		}
		if set.Empty() {
			r.out.Info(fmt.Sprintf("  %s: no changes since last bump", plugin.Name))
			continue
		}

		magnitude, err := r.classifier.Classify(plctx, classifier.Request{
			PluginName: plugin.Name,
			Version:    plugin.Version,
			Summaries:  set.Summaries,
			Diff:       set.Diff,
			Truncated:  set.Truncated,
		})
		if err != nil {
			// The fallback decorator absorbs backend failures; an error here
			// means something is wired wrong.
			return nil, errors.Wrapf(err, "classifying changes for plugin %s", plugin.Name)
		}

		old := current[plugin.Name]
		decision := Decision{
			Plugin:    plugin,
			Baseline:  base,
			Changes:   set,
			Magnitude: magnitude,
			Old:       old,
			New:       old.Bump(magnitude),
		}
		decisions = append(decisions, decision)
		r.out.Info(fmt.Sprintf("  %s: %s -> %s (%s)", plugin.Name, decision.Old, decision.New, magnitude))
	}

	return decisions, nil
}

// apply rewrites the manifests, commits, and publishes. All file contents are
// computed before the first write so a failure partway through planning never
// leaves the working copy half-updated.
func (r *Runner) apply(ctx context.Context, repo *gitrepo.Repo, registry *marketplace.Registry, decisions []Decision) error {
	versionChanges := make([]marketplace.VersionChange, 0, len(decisions))
	for _, d := range decisions {
		versionChanges = append(versionChanges, marketplace.VersionChange{
			Plugin:     d.Plugin,
			NewVersion: d.New.String(),
		})
	}

	updates, err := registry.PlanUpdates(versionChanges)
	if err != nil {
		return err
	}
	if err := registry.WriteUpdates(updates); err != nil {
		return err
	}

	paths := make([]string, 0, len(updates))
	for _, update := range updates {
		paths = append(paths, update.Path)
	}
	if err := repo.Add(ctx, paths...); err != nil {
		return err
	}
	if err := repo.Commit(ctx, commitMessage(decisions)); err != nil {
		return err
	}
	r.out.Success(fmt.Sprintf("Committed version bumps for %d plugin(s)", len(decisions)))

	if r.opts.NoPush {
		r.out.Info("Skipping push (--no-push)")
		return nil
	}

	status, err := repo.PushFastForward(ctx, r.opts.Remote, r.opts.Branch)
	switch status {
	case gitrepo.PushApplied:
		r.out.Success(fmt.Sprintf("Pushed to %s/%s", r.opts.Remote, r.opts.Branch))
		return nil
	case gitrepo.PushConflict:
		// Another writer advanced the remote first. The next run will see
		// the moved history and recompute; nothing is lost by stopping here.
		logger.G(ctx).Info("push rejected by remote, deferring to next run")
		r.out.Warning("Push rejected (remote has new commits); changes will be picked up by the next run")
		return nil
	default:
		return errors.Wrap(err, "pushing version bumps")
	}
}

// commitMessage enumerates every bumped plugin with its transition.
func commitMessage(decisions []Decision) string {
	var b strings.Builder
	b.WriteString("chore: bump plugin versions\n\n")
	for _, d := range decisions {
		fmt.Fprintf(&b, "- %s: %s -> %s (%s)\n", d.Plugin.Name, d.Old, d.New, d.Magnitude)
	}
	return b.String()
}
