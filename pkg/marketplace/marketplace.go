// Package marketplace reads the central plugin registry
// (.claude-plugin/marketplace.json) and the per-plugin manifests
// (<source>/.claude-plugin/plugin.json), and plans version rewrites against
// them. Rewrites touch only the version field: all other content, key order,
// and formatting in the documents is preserved byte-for-byte, which keeps
// bump commits reviewable.
package marketplace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RegistryPath is the registry document location relative to the repository
// root.
const RegistryPath = ".claude-plugin/marketplace.json"

const manifestRelPath = ".claude-plugin/plugin.json"

// ConfigError indicates the registry is missing or structurally unusable.
// It aborts the run before any mutation.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Path, e.Reason)
}

// Plugin is one registry entry: a named unit with its own semantic version
// and a source directory.
type Plugin struct {
	Name    string
	Version string
	Source  string

	index int // position in the registry's plugins array
}

// Dir returns the plugin's source directory relative to the repository root,
// normalized for use as a git pathspec.
func (p Plugin) Dir() string {
	dir := strings.TrimPrefix(p.Source, "./")
	if dir == "" {
		dir = p.Name
	}
	return filepath.ToSlash(filepath.Clean(dir))
}

// ManifestPath returns the plugin's own manifest location relative to the
// repository root.
func (p Plugin) ManifestPath() string {
	return p.Dir() + "/" + manifestRelPath
}

// Registry is the loaded central registry document.
type Registry struct {
	root    string
	raw     []byte
	plugins []Plugin
	skipped []string
}

// LoadRegistry reads and validates the registry document under root. A
// missing or malformed registry is a *ConfigError. Entries without a name or
// version are recorded as skipped rather than failing the load, matching how
// operators expect a partially-filled marketplace to behave.
func LoadRegistry(root string) (*Registry, error) {
	path := filepath.Join(root, RegistryPath)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigError{Path: RegistryPath, Reason: "file not found"}
		}
		return nil, errors.Wrapf(err, "reading %s", RegistryPath)
	}

	if !gjson.ValidBytes(raw) {
		return nil, &ConfigError{Path: RegistryPath, Reason: "not valid JSON"}
	}

	list := gjson.GetBytes(raw, "plugins")
	if !list.Exists() || !list.IsArray() {
		return nil, &ConfigError{Path: RegistryPath, Reason: `missing "plugins" array`}
	}

	reg := &Registry{root: root, raw: raw}
	for i, entry := range list.Array() {
		name := entry.Get("name").String()
		version := entry.Get("version").String()
		if name == "" || version == "" {
			reg.skipped = append(reg.skipped, entry.Raw)
			continue
		}
		source := entry.Get("source").String()
		if source == "" {
			source = name
		}
		reg.plugins = append(reg.plugins, Plugin{
			Name:    name,
			Version: version,
			Source:  source,
			index:   i,
		})
	}

	return reg, nil
}

// Plugins returns the well-formed registry entries in document order.
func (r *Registry) Plugins() []Plugin {
	return r.plugins
}

// Skipped returns the raw JSON of entries that were missing a name or
// version, for warning output.
func (r *Registry) Skipped() []string {
	return r.skipped
}

// ManifestVersion reads the version recorded in a plugin's own manifest. The
// registry is authoritative for bump input; this exists so the caller can
// detect and report divergence between the two copies.
func (r *Registry) ManifestVersion(p Plugin) (string, error) {
	raw, err := os.ReadFile(filepath.Join(r.root, p.ManifestPath()))
	if err != nil {
		return "", errors.Wrapf(err, "reading manifest for plugin %s", p.Name)
	}
	if !gjson.ValidBytes(raw) {
		return "", errors.Errorf("manifest for plugin %s is not valid JSON", p.Name)
	}
	return gjson.GetBytes(raw, "version").String(), nil
}

// VersionChange pairs a plugin with the version it should be moved to.
type VersionChange struct {
	Plugin     Plugin
	NewVersion string
}

// FileUpdate is a fully-computed file rewrite waiting to be written.
type FileUpdate struct {
	Path    string // relative to the repository root
	Content []byte
}

// PlanUpdates computes the complete set of file rewrites for the given
// changes: one registry update covering every plugin, plus one manifest
// update per plugin. Nothing is written here; computing everything up front
// means a failure (an unreadable manifest, say) leaves no file half-updated.
func (r *Registry) PlanUpdates(changes []VersionChange) ([]FileUpdate, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	registryRaw := r.raw
	var updates []FileUpdate

	for _, change := range changes {
		var err error
		registryRaw, err = sjson.SetBytes(registryRaw,
			fmt.Sprintf("plugins.%d.version", change.Plugin.index), change.NewVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "updating registry entry for plugin %s", change.Plugin.Name)
		}
	}
	updates = append(updates, FileUpdate{Path: RegistryPath, Content: registryRaw})

	for _, change := range changes {
		manifestPath := change.Plugin.ManifestPath()
		raw, err := os.ReadFile(filepath.Join(r.root, manifestPath))
		if err != nil {
			return nil, errors.Wrapf(err, "reading manifest for plugin %s", change.Plugin.Name)
		}
		updated, err := sjson.SetBytes(raw, "version", change.NewVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "updating manifest for plugin %s", change.Plugin.Name)
		}
		updates = append(updates, FileUpdate{Path: manifestPath, Content: updated})
	}

	return updates, nil
}

// WriteUpdates applies planned rewrites to the working copy.
func (r *Registry) WriteUpdates(updates []FileUpdate) error {
	for _, update := range updates {
		path := filepath.Join(r.root, update.Path)
		if err := os.WriteFile(path, update.Content, 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", update.Path)
		}
	}
	return nil
}
