package baseline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugmart/autobump/pkg/gitrepo"
	"github.com/plugmart/autobump/pkg/marketplace"
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

func writeRegistry(t *testing.T, dir, alphaVersion string) {
	t.Helper()
	writeFile(t, dir, marketplace.RegistryPath, fmt.Sprintf(`{
  "plugins": [
    {"name": "alpha", "source": "./alpha", "version": "%s"}
  ]
}
`, alphaVersion))
}

func writeManifest(t *testing.T, dir, version string) {
	t.Helper()
	writeFile(t, dir, "alpha/.claude-plugin/plugin.json",
		fmt.Sprintf(`{"name": "alpha", "version": "%s"}`+"\n", version))
}

var alphaPlugin = marketplace.Plugin{Name: "alpha", Version: "0.2.0", Source: "./alpha"}

func TestFind_ReturnsMostRecentVersionChange(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)

	writeRegistry(t, dir, "0.1.0")
	writeManifest(t, dir, "0.1.0")
	writeFile(t, dir, "alpha/skills/notes.md", "initial")
	commitAll(t, dir, "initial marketplace")

	writeFile(t, dir, "alpha/skills/notes.md", "updated")
	commitAll(t, dir, "update notes")

	writeRegistry(t, dir, "0.2.0")
	writeManifest(t, dir, "0.2.0")
	bumpSHA := commitAll(t, dir, "bump alpha to 0.2.0")

	writeFile(t, dir, "alpha/skills/notes.md", "updated again")
	commitAll(t, dir, "more notes")

	repo, err := gitrepo.Open(ctx, dir)
	require.NoError(t, err)

	sha, found, err := NewLocator(repo, 0).Find(ctx, alphaPlugin)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, bumpSHA, sha)
}

func TestFind_IgnoresTouchesWithoutVersionChange(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)

	writeRegistry(t, dir, "0.1.0")
	writeManifest(t, dir, "0.1.0")
	commitAll(t, dir, "initial marketplace")

	writeRegistry(t, dir, "0.2.0")
	writeManifest(t, dir, "0.2.0")
	bumpSHA := commitAll(t, dir, "bump alpha")

	// Rewrites the registry but leaves every version field alone.
	writeFile(t, dir, marketplace.RegistryPath, `{
  "description": "now with a description",
  "plugins": [
    {"name": "alpha", "source": "./alpha", "version": "0.2.0"}
  ]
}
`)
	commitAll(t, dir, "add marketplace description")

	repo, err := gitrepo.Open(ctx, dir)
	require.NoError(t, err)

	sha, found, err := NewLocator(repo, 0).Find(ctx, alphaPlugin)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, bumpSHA, sha, "a mere touch of the file is not a bump")
}

func TestFind_NoBaseline(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)

	// The root commit introduces the version fields, but a root commit has
	// no parent to diff against and cannot be a baseline.
	writeRegistry(t, dir, "0.1.0")
	writeManifest(t, dir, "0.1.0")
	commitAll(t, dir, "initial marketplace")

	writeFile(t, dir, "alpha/skills/notes.md", "content")
	commitAll(t, dir, "add notes")

	repo, err := gitrepo.Open(ctx, dir)
	require.NoError(t, err)

	_, found, err := NewLocator(repo, 0).Find(ctx, alphaPlugin)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFind_RespectsDepthLimit(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t)

	writeRegistry(t, dir, "0.1.0")
	writeManifest(t, dir, "0.1.0")
	commitAll(t, dir, "initial marketplace")

	writeRegistry(t, dir, "0.2.0")
	writeManifest(t, dir, "0.2.0")
	commitAll(t, dir, "bump alpha")

	// Push the bump commit beyond a depth limit of 2 with later touches of
	// the registry.
	for i := 0; i < 3; i++ {
		writeFile(t, dir, marketplace.RegistryPath, fmt.Sprintf(`{
  "note": "touch %d",
  "plugins": [
    {"name": "alpha", "source": "./alpha", "version": "0.2.0"}
  ]
}
`, i))
		commitAll(t, dir, fmt.Sprintf("touch registry %d", i))
	}

	repo, err := gitrepo.Open(ctx, dir)
	require.NoError(t, err)

	_, found, err := NewLocator(repo, 2).Find(ctx, alphaPlugin)
	require.NoError(t, err)
	assert.False(t, found, "bump commit lies beyond the scan depth")

	_, found, err = NewLocator(repo, 0).Find(ctx, alphaPlugin)
	require.NoError(t, err)
	assert.True(t, found, "default depth still reaches it")
}
