// Package classifier decides how big a version bump a plugin's changes
// deserve. The judgment itself (breaking change vs. feature vs. fix over
// free-form diffs and commit messages) is delegated to Claude with a
// constrained one-word prompt; this package's own contract is only to
// validate the answer and apply the conservative fallback policy.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/plugmart/autobump/pkg/logger"
	"github.com/plugmart/autobump/pkg/semver"
)

// Request carries everything the classifier may consider for one plugin.
type Request struct {
	PluginName string
	Version    string
	// Summaries are commit subjects since the last bump, oldest first.
	Summaries []string
	// Diff is the combined patch, possibly truncated.
	Diff string
	// Truncated tells the classifier its diff input was incomplete.
	Truncated bool
}

// Classifier turns a change set into a bump magnitude.
type Classifier interface {
	Classify(ctx context.Context, req Request) (semver.Magnitude, error)
}

// WithFallback wraps a backend with the fallback policy: any error from the
// backend (transport failure, timeout, unrecognized answer) yields a minor
// bump instead of aborting the run. Minor is the conservative default for a
// marketplace whose changes are mostly additive. The policy lives in its own
// decorator so it can be tested apart from any concrete backend.
func WithFallback(inner Classifier) Classifier {
	return &fallbackClassifier{inner: inner}
}

type fallbackClassifier struct {
	inner Classifier
}

func (f *fallbackClassifier) Classify(ctx context.Context, req Request) (semver.Magnitude, error) {
	magnitude, err := f.inner.Classify(ctx, req)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("plugin", req.PluginName).
			Warn("classification failed, falling back to minor")
		return semver.Minor, nil
	}
	return magnitude, nil
}

// buildPrompt renders the deterministic classification prompt. The responder
// is instructed to emit exactly one lowercase word from the magnitude set.
func buildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are deciding the semantic version bump for the plugin %q, currently at version %s.\n\n", req.PluginName, req.Version)

	b.WriteString("Commit messages since the last version bump:\n")
	if len(req.Summaries) == 0 {
		b.WriteString("(no commits)\n")
	}
	for _, summary := range req.Summaries {
		fmt.Fprintf(&b, "- %s\n", summary)
	}

	b.WriteString("\nCombined diff:\n")
	if req.Diff == "" {
		b.WriteString("(no diff)\n")
	} else {
		b.WriteString(req.Diff)
		b.WriteString("\n")
	}
	if req.Truncated {
		b.WriteString("\nNote: the diff above was truncated; assume there may be further changes of the same kind.\n")
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- major: breaking changes, removed functionality, incompatible behavior changes\n")
	b.WriteString("- minor: new features or capabilities, backwards compatible\n")
	b.WriteString("- patch: bug fixes, typos, documentation tweaks, internal cleanups\n")
	b.WriteString("\nRespond with exactly one lowercase word: patch, minor, or major. No other text.\n")

	return b.String()
}

// parseAnswer validates and sanitizes a raw model response.
func parseAnswer(answer string) (semver.Magnitude, error) {
	magnitude, ok := semver.ParseMagnitude(answer)
	if !ok {
		return "", errors.Errorf("unrecognized classification answer %q", strings.TrimSpace(answer))
	}
	return magnitude, nil
}
