package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProjectConfig(t *testing.T, root, content string) string {
	t.Helper()
	path := filepath.Join(root, ".itv", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscoverConfig_WalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeProjectConfig(t, root, "ui:\n  watch: true\n")

	deep := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok := DiscoverConfig(deep)
	if !ok {
		t.Fatal("expected to find project config")
	}
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestDiscoverConfig_NotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	if _, ok := DiscoverConfig(dir); ok {
		t.Error("expected no project config")
	}
}

func TestDiscoverConfig_IgnoresDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".itv", "config.yaml"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got, ok := DiscoverConfig(root); ok && got == filepath.Join(root, ".itv", "config.yaml") {
		t.Error("expected a directory named config.yaml to be skipped")
	}
}

func TestLoadMerged(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if err := os.MkdirAll(filepath.Join(xdg, "itv"), 0o755); err != nil {
		t.Fatal(err)
	}
	user := "filter:\n  mode: substring\nui:\n  debounce_ms: 50\n"
	if err := os.WriteFile(filepath.Join(xdg, "itv", "config.yaml"), []byte(user), 0o644); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	projectPath := writeProjectConfig(t, project, "ui:\n  debounce_ms: 500\n  watch: true\n")

	cfg, applied, err := LoadMerged("", project)
	if err != nil {
		t.Fatal(err)
	}
	if applied != projectPath {
		t.Errorf("expected project config %s, got %s", projectPath, applied)
	}
	if cfg.Filter.Mode != "substring" {
		t.Errorf("expected user mode to survive, got %q", cfg.Filter.Mode)
	}
	if cfg.UI.DebounceMS != 500 || !cfg.UI.Watch {
		t.Errorf("expected project ui to win, got %+v", cfg.UI)
	}
}

func TestLoadMerged_ExplicitMissing(t *testing.T) {
	if _, _, err := LoadMerged(filepath.Join(t.TempDir(), "missing.yaml"), t.TempDir()); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}
