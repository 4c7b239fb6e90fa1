// Package config handles loading and saving itv configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - User:    ~/.config/itv/config.yaml
//   - Project: .itv/config.yaml in the project or any parent directory,
//     applied on top of the user config
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/indextree/pkg/loader"
	"github.com/vanderheijden86/indextree/pkg/recipe"
)

// TreeConfig holds the tree model policies.
type TreeConfig struct {
	CollapseByDefault          bool `yaml:"collapse_by_default,omitempty"`
	AutoExpandSingleChildren   bool `yaml:"auto_expand_single_children,omitempty"`
	AllowNonCollapsibleParents bool `yaml:"allow_non_collapsible_parents,omitempty"`
	ExpandDepth                int  `yaml:"expand_depth,omitempty"` // Expand containers up to this depth on load (-1 = all)
}

// FilterConfig holds defaults for the filter prompt.
type FilterConfig struct {
	Mode          string `yaml:"mode,omitempty"`           // fuzzy, substring, regex
	KeepAncestors bool   `yaml:"keep_ancestors,omitempty"` // Show ancestors of matches
}

// LoaderConfig controls directory scans.
type LoaderConfig struct {
	ShowHidden       bool `yaml:"show_hidden,omitempty"`
	RespectGitignore bool `yaml:"respect_gitignore"`
	MaxDepth         int  `yaml:"max_depth,omitempty"` // 0 = unlimited
	Workers          int  `yaml:"workers,omitempty"`   // 0 = GOMAXPROCS
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	Watch      bool   `yaml:"watch,omitempty"`       // Reload directories when files change
	DebounceMS int    `yaml:"debounce_ms,omitempty"` // Coalescing window for file events
	Recipe     string `yaml:"recipe,omitempty"`      // Recipe applied at startup
}

// Config is the top-level configuration for itv.
type Config struct {
	Tree    TreeConfig      `yaml:"tree,omitempty"`
	Filter  FilterConfig    `yaml:"filter,omitempty"`
	Loader  LoaderConfig    `yaml:"loader,omitempty"`
	UI      UIConfig        `yaml:"ui,omitempty"`
	Recipes []recipe.Recipe `yaml:"recipes,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Tree: TreeConfig{
			CollapseByDefault: true,
			ExpandDepth:       1,
		},
		Filter: FilterConfig{
			Mode:          "fuzzy",
			KeepAncestors: true,
		},
		Loader: LoaderConfig{
			RespectGitignore: true,
		},
		UI: UIConfig{
			DebounceMS: 200,
			Recipe:     "default",
		},
	}
}

// ConfigDir returns the XDG config directory for itv.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "itv")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "itv")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.apply(path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// apply overlays the file at path onto c; only keys present in the file
// change. A missing file is not an error.
func (c *Config) apply(path string) error {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	return validation.Errors{
		"tree": validation.ValidateStruct(&c.Tree,
			validation.Field(&c.Tree.ExpandDepth, validation.Min(-1)),
		),
		"filter": validation.ValidateStruct(&c.Filter,
			validation.Field(&c.Filter.Mode, validation.In("fuzzy", "substring", "regex")),
		),
		"loader": validation.ValidateStruct(&c.Loader,
			validation.Field(&c.Loader.MaxDepth, validation.Min(0)),
			validation.Field(&c.Loader.Workers, validation.Min(0)),
		),
		"ui": validation.ValidateStruct(&c.UI,
			validation.Field(&c.UI.DebounceMS, validation.Min(0)),
		),
		"recipes": validation.Validate(c.Recipes, validation.Each(validation.By(validateRecipe))),
	}.Filter()
}

func validateRecipe(value interface{}) error {
	r, _ := value.(recipe.Recipe)
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("recipe name is required")
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ScanOptions converts the loader section for pkg/loader.
func (c Config) ScanOptions() loader.ScanOptions {
	return loader.ScanOptions{
		ShowHidden:       c.Loader.ShowHidden,
		RespectGitignore: c.Loader.RespectGitignore,
		MaxDepth:         c.Loader.MaxDepth,
		Workers:          c.Loader.Workers,
	}
}

// Recipe resolves a recipe by name against the configured and builtin
// recipes.
func (c Config) Recipe(name string) (recipe.Recipe, error) {
	r, ok := recipe.Lookup(name, c.Recipes)
	if !ok {
		return recipe.Recipe{}, fmt.Errorf("unknown recipe %q", name)
	}
	return r, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
