package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/indextree/pkg/loader"
	"github.com/vanderheijden86/indextree/pkg/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"empty", Config{}, "at least one root"},
		{"discovery only", Config{Discovery: DiscoveryConfig{Enabled: true}}, ""},
		{"missing path", Config{Roots: []RootConfig{{Name: "a"}}}, "path is required"},
		{"duplicate name", Config{Roots: []RootConfig{{Path: "x/a"}, {Path: "y/a"}}}, "duplicate name"},
		{"ok", Config{Roots: []RootConfig{{Path: "a"}, {Path: "b"}}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRootConfigDefaults(t *testing.T) {
	disabled := false
	r := RootConfig{Path: "services/api"}
	if r.GetName() != "api" || !r.IsEnabled() {
		t.Errorf("unexpected defaults: %q %v", r.GetName(), r.IsEnabled())
	}
	r.Enabled = &disabled
	if r.IsEnabled() {
		t.Error("expected explicit disable to stick")
	}
}

func TestLoadConfigAndFind(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, DirName, "workspace.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "name: demo\nroots:\n  - path: src\n  - path: notes.yaml\n    enabled: false\ndiscovery:\n  enabled: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "demo" || len(cfg.Roots) != 2 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.Discovery.Patterns) == 0 || len(cfg.Discovery.Exclude) == 0 {
		t.Error("expected discovery defaults to be applied")
	}

	deep := filepath.Join(base, "a", "b")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	found, err := FindWorkspaceConfig(deep)
	if err != nil || found != path {
		t.Errorf("expected %s, got %s (%v)", path, found, err)
	}
	if BaseDir(found) != base {
		t.Errorf("expected base dir %s, got %s", base, BaseDir(found))
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.yaml")
	if err := os.WriteFile(path, []byte("roots: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation error")
	}
}

func TestResolvePathsWithDiscovery(t *testing.T) {
	base := t.TempDir()
	for _, dir := range []string{"src", "packages/a", "packages/b", "packages/node_modules"} {
		if err := os.MkdirAll(filepath.Join(base, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	cfg := Config{
		Roots: []RootConfig{{Path: "src"}, {Path: "packages/a", Name: "first"}},
		Discovery: DiscoveryConfig{
			Enabled:  true,
			Patterns: []string{"packages/*"},
			Exclude:  DefaultExcludePatterns(),
		},
	}
	roots, err := cfg.ResolvePaths(base)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range roots {
		names = append(names, r.Name)
		if !filepath.IsAbs(r.Path) {
			t.Errorf("expected absolute path, got %s", r.Path)
		}
	}
	if strings.Join(names, ",") != "src,first,b" {
		t.Errorf("expected src,first,b got %v", names)
	}
}

func TestElements(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "src", "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "notes.yaml"), []byte("- name: todo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	roots := []ResolvedRoot{
		{Name: "src", Path: filepath.Join(base, "src")},
		{Name: "notes", Path: filepath.Join(base, "notes.yaml"), Collapsed: true},
	}
	els, err := Elements(context.Background(), roots, loader.DefaultScanOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(els) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(els))
	}
	if els[0].Element.Kind != model.KindDir || els[0].Children[0].Element.Name != "main.go" {
		t.Errorf("unexpected dir root %+v", els[0])
	}
	notes := els[1]
	if notes.Element.Kind != model.KindGroup || !*notes.Collapsed {
		t.Errorf("unexpected outline root %+v", notes.Element)
	}
	if notes.Children[0].Element.ID != "notes:0" {
		t.Errorf("expected namespaced ID notes:0, got %s", notes.Children[0].Element.ID)
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	path, err := Init(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("expected example config to load: %v", err)
	}
	if cfg.Name != "my-workspace" {
		t.Errorf("unexpected name %q", cfg.Name)
	}
	gi, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil || !strings.Contains(string(gi), ".itv/") {
		t.Errorf("expected .itv/ in .gitignore, got %q (%v)", gi, err)
	}
	if _, err := Init(dir); err == nil {
		t.Error("expected second init to fail")
	}
}
