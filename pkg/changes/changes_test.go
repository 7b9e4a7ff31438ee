package changes

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugmart/autobump/pkg/gitrepo"
)

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	git(t, dir, "init", "-b", "main")
	git(t, dir, "config", "user.name", "test")
	git(t, dir, "config", "user.email", "test@example.com")
	git(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

func writeFile(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func commitAll(t *testing.T, dir, message string) string {
	t.Helper()
	git(t, dir, "add", "-A")
	git(t, dir, "commit", "-m", message)
	return git(t, dir, "rev-parse", "HEAD")
}

func TestCollect_BaselineEqualsHead(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)

	writeFile(t, dir, "alpha/notes.md", "content")
	head := commitAll(t, dir, "initial")

	repo, err := gitrepo.Open(ctx, dir)
	require.NoError(t, err)

	set, err := NewCollector(repo, 0).Collect(ctx, "alpha", head)
	require.NoError(t, err)
	assert.True(t, set.Empty(), "nothing happened since the bump commit")
}

func TestCollect_SinceBaseline(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)

	writeFile(t, dir, "alpha/notes.md", "one\n")
	base := commitAll(t, dir, "baseline bump")

	writeFile(t, dir, "alpha/notes.md", "two\n")
	commitAll(t, dir, "first change")
	writeFile(t, dir, "alpha/extra.md", "extra\n")
	writeFile(t, dir, "unrelated/file.md", "noise\n")
	commitAll(t, dir, "second change")

	repo, err := gitrepo.Open(ctx, dir)
	require.NoError(t, err)

	set, err := NewCollector(repo, 0).Collect(ctx, "alpha", base)
	require.NoError(t, err)

	require.Equal(t, []string{"first change", "second change"}, set.Summaries, "oldest first")
	assert.Contains(t, set.Diff, "+two")
	assert.Contains(t, set.Diff, "extra.md")
	assert.NotContains(t, set.Diff, "unrelated", "restricted to the plugin directory")
	assert.False(t, set.Truncated)
	assert.False(t, set.Empty())
}

func TestCollect_NoBaselineUsesFullHistory(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)

	writeFile(t, dir, "alpha/notes.md", "original\n")
	commitAll(t, dir, "initial")
	writeFile(t, dir, "alpha/notes.md", "changed\n")
	commitAll(t, dir, "update")

	repo, err := gitrepo.Open(ctx, dir)
	require.NoError(t, err)

	set, err := NewCollector(repo, 0).Collect(ctx, "alpha", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"initial", "update"}, set.Summaries)
	// The empty-tree diff shows the full current content, not just the last
	// edit.
	assert.Contains(t, set.Diff, "+changed")
}

func TestCollect_TruncatesLongDiffs(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)

	writeFile(t, dir, "alpha/big.md", strings.Repeat("filler line\n", 200))
	commitAll(t, dir, "big file")

	repo, err := gitrepo.Open(ctx, dir)
	require.NoError(t, err)

	set, err := NewCollector(repo, 100).Collect(ctx, "alpha", "")
	require.NoError(t, err)

	assert.True(t, set.Truncated)
	assert.True(t, strings.HasSuffix(set.Diff, TruncationMarker))
	assert.Len(t, set.Diff, 100+len(TruncationMarker))
}

func TestCollect_NoChangesInDirectorySinceBaseline(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)

	writeFile(t, dir, "alpha/notes.md", "content")
	base := commitAll(t, dir, "baseline")
	writeFile(t, dir, "beta/other.md", "other")
	commitAll(t, dir, "unrelated change")

	repo, err := gitrepo.Open(ctx, dir)
	require.NoError(t, err)

	set, err := NewCollector(repo, 0).Collect(ctx, "alpha", base)
	require.NoError(t, err)
	assert.True(t, set.Empty())
}
