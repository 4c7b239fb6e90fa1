package config

import (
	"os"
	"path/filepath"
)

// projectConfigName is the project-local config file, relative to a
// project root.
var projectConfigName = filepath.Join(".itv", "config.yaml")

// DiscoverConfig walks up from start looking for a project-local
// .itv/config.yaml. It stops at the filesystem root and does not go above
// the home directory.
func DiscoverConfig(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	home, _ := os.UserHomeDir()

	for {
		candidate := filepath.Join(dir, projectConfigName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}

// LoadMerged loads the user config and overlays the project config found
// from start, if any. An explicit path replaces the user config. It also
// returns the project config path that was applied ("" if none).
func LoadMerged(explicit, start string) (Config, string, error) {
	var (
		cfg Config
		err error
	)
	if explicit != "" {
		if _, statErr := os.Stat(expandHome(explicit)); statErr != nil {
			return DefaultConfig(), "", statErr
		}
		cfg, err = LoadFrom(explicit)
	} else {
		cfg, err = Load()
	}
	if err != nil {
		return cfg, "", err
	}

	project, ok := DiscoverConfig(start)
	if !ok {
		return cfg, "", nil
	}
	if err := cfg.apply(project); err != nil {
		return cfg, project, err
	}
	return cfg, project, nil
}
