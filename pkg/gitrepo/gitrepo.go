// Package gitrepo wraps the git CLI for the small set of plumbing the bumper
// needs: bounded history walks, path-restricted diffs, and a fast-forward-only
// push. Shelling out keeps behavior identical to what an operator would see
// running the same commands by hand.
package gitrepo

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// EmptyTreeSHA is the well-known hash of git's empty tree object. Diffing
// against it turns a commit's entire content into one patch, which is how a
// plugin with no prior version bump gets its full history counted as changed.
const EmptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Commit is one entry from a history walk.
type Commit struct {
	SHA     string
	Summary string
}

// ShortSHA abbreviates a commit hash for display.
func ShortSHA(sha string) string {
	if len(sha) < 8 {
		return sha
	}
	return sha[:8]
}

// PushStatus is the outcome of a fast-forward push attempt.
type PushStatus int

const (
	// PushApplied means the remote accepted the push.
	PushApplied PushStatus = iota
	// PushConflict means the remote rejected the push because it has
	// advanced past our base. Expected under concurrent writers, not an
	// error.
	PushConflict
	// PushFailed means the push failed for some other reason; the
	// accompanying error carries the detail.
	PushFailed
)

// Repo is a handle to a git working copy.
type Repo struct {
	dir string
}

// Open verifies that dir is inside a git work tree and returns a handle to it.
func Open(ctx context.Context, dir string) (*Repo, error) {
	r := &Repo{dir: dir}
	if _, err := r.run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		return nil, errors.Wrapf(err, "%s is not a git repository", dir)
	}
	return r, nil
}

// Dir returns the working copy path the repo was opened with.
func (r *Repo) Dir() string {
	return r.dir
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(err, "git %s: %s",
			strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Head returns the SHA of the current HEAD commit.
func (r *Repo) Head(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Log walks history for the given revision (a single rev like "HEAD" or a
// range like "abc..HEAD"), restricted to paths, most recent first. maxCount
// of 0 means unbounded.
func (r *Repo) Log(ctx context.Context, rev string, maxCount int, paths ...string) ([]Commit, error) {
	args := []string{"log", "--format=%H%x00%s"}
	if maxCount > 0 {
		args = append(args, "--max-count", strconv.Itoa(maxCount))
	}
	args = append(args, rev)
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		sha, summary, _ := strings.Cut(line, "\x00")
		commits = append(commits, Commit{SHA: sha, Summary: summary})
	}
	return commits, nil
}

// FirstParent returns the first parent of the given commit. ok is false for a
// root commit.
func (r *Repo) FirstParent(ctx context.Context, sha string) (string, bool, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "-q", sha+"^")
	cmd.Dir = r.dir
	out, err := cmd.Output()
	if err != nil {
		// rev-parse -q exits non-zero without output when the revision
		// does not exist, which for "<sha>^" means a root commit.
		if exitErr, isExit := err.(*exec.ExitError); isExit && len(exitErr.Stderr) == 0 {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "resolving parent of %s", sha)
	}
	return strings.TrimSpace(string(out)), true, nil
}

// Diff returns the textual patch between two revisions restricted to paths.
// Use EmptyTreeSHA as from to diff against nothing.
func (r *Repo) Diff(ctx context.Context, from, to string, paths ...string) (string, error) {
	args := []string{"diff", from, to}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	return r.run(ctx, args...)
}

// DiffNames returns the paths that differ between two revisions, restricted
// to the given paths.
func (r *Repo) DiffNames(ctx context.Context, from, to string, paths ...string) ([]string, error) {
	args := []string{"diff", "--name-only", from, to}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// Add stages the given paths.
func (r *Repo) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	_, err := r.run(ctx, args...)
	return err
}

// Commit creates a commit with the given message. The message is passed via a
// temp file so multi-line bodies survive intact.
func (r *Repo) Commit(ctx context.Context, message string) error {
	tmp, err := os.CreateTemp("", "autobump-commit-*.txt")
	if err != nil {
		return errors.Wrap(err, "creating commit message file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(message); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing commit message file")
	}
	tmp.Close()

	_, err = r.run(ctx, "commit", "-F", tmp.Name())
	return err
}

// PushFastForward pushes HEAD to remote/branch without force. It is a single
// compare-and-swap on the remote ref: PushConflict means another writer got
// there first and the caller should give up and let the next run pick the
// work up again. Any other failure is a real error.
func (r *Repo) PushFastForward(ctx context.Context, remote, branch string) (PushStatus, error) {
	out, err := r.run(ctx, "push", remote, "HEAD:"+branch)
	if err == nil {
		return PushApplied, nil
	}
	if isNonFastForward(out) {
		return PushConflict, nil
	}
	return PushFailed, err
}

func isNonFastForward(output string) bool {
	for _, marker := range []string{"non-fast-forward", "fetch first", "[rejected]"} {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}
