package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/indextree/pkg/loader"
	"github.com/vanderheijden86/indextree/pkg/model"
	"github.com/vanderheijden86/indextree/pkg/tree"
)

// DirName is the project-local directory holding itv files.
const DirName = ".itv"

// Config represents a workspace configuration file (.itv/workspace.yaml)
type Config struct {
	// Name is the workspace display name
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Roots lists the sources shown as top-level nodes
	Roots []RootConfig `yaml:"roots" json:"roots"`

	// Discovery configures auto-discovery of roots
	Discovery DiscoveryConfig `yaml:"discovery,omitempty" json:"discovery,omitempty"`
}

// RootConfig represents a single source in the workspace
type RootConfig struct {
	// Name is the display name for this root (default: base name of Path)
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Path is a directory or an outline file (relative to the workspace root or absolute)
	Path string `yaml:"path" json:"path"`

	// Collapsed starts the root collapsed
	Collapsed bool `yaml:"collapsed,omitempty" json:"collapsed,omitempty"`

	// Enabled controls whether this root is included (default: true)
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// DiscoveryConfig controls automatic root discovery
type DiscoveryConfig struct {
	// Enabled turns on auto-discovery (default: false)
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Patterns are glob patterns, relative to the workspace root, of directories to add
	// Default: ["packages/*", "apps/*", "services/*", "libs/*", "modules/*"]
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// Exclude lists base names to skip
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// DefaultDiscoveryPatterns returns the standard patterns for common monorepo layouts
func DefaultDiscoveryPatterns() []string {
	return []string{
		"packages/*", // npm/pnpm workspaces
		"apps/*",     // Next.js/Turborepo convention
		"services/*", // Microservices layout
		"libs/*",     // Library packages
		"modules/*",  // Go modules layout
	}
}

// DefaultExcludePatterns returns names to exclude from discovery
func DefaultExcludePatterns() []string {
	return []string{
		"node_modules",
		"vendor",
		".git",
		"dist",
		"build",
		"target",
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if len(c.Roots) == 0 && !c.Discovery.Enabled {
		return fmt.Errorf("workspace must have at least one root or enable discovery")
	}

	seen := make(map[string]bool)
	for i, root := range c.Roots {
		if root.Path == "" {
			return fmt.Errorf("root[%d]: path is required", i)
		}
		name := root.GetName()
		if seen[name] {
			return fmt.Errorf("root[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
	}
	return nil
}

// GetName returns the effective name for a root
func (r *RootConfig) GetName() string {
	if r.Name != "" {
		return r.Name
	}
	return filepath.Base(r.Path)
}

// IsEnabled returns whether the root is enabled
func (r *RootConfig) IsEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// LoadConfig loads a workspace configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing workspace config: %w", err)
	}

	if config.Discovery.Enabled {
		if len(config.Discovery.Patterns) == 0 {
			config.Discovery.Patterns = DefaultDiscoveryPatterns()
		}
		if len(config.Discovery.Exclude) == 0 {
			config.Discovery.Exclude = DefaultExcludePatterns()
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workspace config: %w", err)
	}
	return &config, nil
}

// FindWorkspaceConfig searches for .itv/workspace.yaml starting from dir
func FindWorkspaceConfig(dir string) (string, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	for {
		candidate := filepath.Join(dir, DirName, "workspace.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// BaseDir returns the workspace root for a config file path: the parent of
// its .itv directory.
func BaseDir(configPath string) string {
	return filepath.Dir(filepath.Dir(configPath))
}

// ExampleConfig returns an example multi-root workspace configuration
func ExampleConfig() Config {
	return Config{
		Name: "my-workspace",
		Roots: []RootConfig{
			{Name: "src", Path: "."},
			{Name: "notes", Path: "docs/outline.yaml", Collapsed: true},
		},
		Discovery: DiscoveryConfig{
			Patterns: DefaultDiscoveryPatterns(),
			Exclude:  DefaultExcludePatterns(),
		},
	}
}

// Init writes an example workspace under dir and makes sure the .itv
// directory is git-ignored. An existing workspace file is left alone.
func Init(dir string) (string, error) {
	path := filepath.Join(dir, DirName, "workspace.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("workspace already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating workspace dir: %w", err)
	}
	data, err := yaml.Marshal(ExampleConfig())
	if err != nil {
		return "", fmt.Errorf("encoding workspace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing workspace: %w", err)
	}
	if err := loader.EnsureIgnored(dir, DirName); err != nil {
		return path, fmt.Errorf("updating .gitignore: %w", err)
	}
	return path, nil
}

// ResolvedRoot is an enabled root with an absolute path.
type ResolvedRoot struct {
	Name      string
	Path      string
	Collapsed bool
}

// ResolvePaths returns the enabled roots with paths made absolute against
// baseDir, followed by discovered directories not already listed.
func (c *Config) ResolvePaths(baseDir string) ([]ResolvedRoot, error) {
	var out []ResolvedRoot
	seen := make(map[string]bool)
	for _, root := range c.Roots {
		if !root.IsEnabled() {
			continue
		}
		p := root.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		p = filepath.Clean(p)
		seen[p] = true
		out = append(out, ResolvedRoot{Name: root.GetName(), Path: p, Collapsed: root.Collapsed})
	}

	if !c.Discovery.Enabled {
		return out, nil
	}
	for _, pattern := range c.Discovery.Patterns {
		matches, err := filepath.Glob(filepath.Join(baseDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("discovery pattern %q: %w", pattern, err)
		}
		slices.Sort(matches)
		for _, m := range matches {
			if seen[m] || slices.Contains(c.Discovery.Exclude, filepath.Base(m)) {
				continue
			}
			if info, err := os.Stat(m); err != nil || !info.IsDir() {
				continue
			}
			seen[m] = true
			out = append(out, ResolvedRoot{Name: filepath.Base(m), Path: m})
		}
	}
	return out, nil
}

// Elements loads every resolved root as one top-level element: a directory
// root holds its scanned contents, an outline file holds its outlines.
func Elements(ctx context.Context, roots []ResolvedRoot, opts loader.ScanOptions) ([]tree.TreeElement[*model.Entry], error) {
	els := make([]tree.TreeElement[*model.Entry], 0, len(roots))
	for _, root := range roots {
		info, err := os.Stat(root.Path)
		if err != nil {
			return nil, fmt.Errorf("root %s: %w", root.Name, err)
		}

		entry := &model.Entry{ID: root.Path, Name: root.Name, Path: root.Path, ModTime: info.ModTime()}
		var children []tree.TreeElement[*model.Entry]
		if info.IsDir() {
			entry.Kind = model.KindDir
			children, err = loader.ScanDir(ctx, root.Path, opts)
		} else {
			entry.Kind = model.KindGroup
			children, err = loader.LoadFile(root.Path)
			prefixIDs(children, root.Name+":")
		}
		if err != nil {
			return nil, fmt.Errorf("root %s: %w", root.Name, err)
		}

		collapsed := root.Collapsed
		els = append(els, tree.TreeElement[*model.Entry]{Element: entry, Children: children, Collapsed: &collapsed})
	}
	return els, nil
}

// prefixIDs namespaces outline IDs so several outline roots can coexist.
func prefixIDs(els []tree.TreeElement[*model.Entry], prefix string) {
	for _, el := range els {
		if !strings.HasPrefix(el.Element.ID, prefix) {
			el.Element.ID = prefix + el.Element.ID
		}
		prefixIDs(el.Children, prefix)
	}
}
