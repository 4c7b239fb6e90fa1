package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/term"

	_ "github.com/vanderheijden86/indextree/pkg/agents" // Suppresses terminal probes for --json/--print
	"github.com/vanderheijden86/indextree/pkg/config"
	"github.com/vanderheijden86/indextree/pkg/debug"
	"github.com/vanderheijden86/indextree/pkg/export"
	"github.com/vanderheijden86/indextree/pkg/filter"
	"github.com/vanderheijden86/indextree/pkg/loader"
	"github.com/vanderheijden86/indextree/pkg/model"
	"github.com/vanderheijden86/indextree/pkg/tree"
	"github.com/vanderheijden86/indextree/pkg/ui"
	"github.com/vanderheijden86/indextree/pkg/version"
	"github.com/vanderheijden86/indextree/pkg/workspace"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func main() {
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", "", "Config file (default: $XDG_CONFIG_HOME/itv/config.yaml)")
	workspaceConfig := flag.String("workspace", "", "Load roots from a workspace config file (.itv/workspace.yaml)")
	initFlag := flag.Bool("init", false, "Create an example .itv/workspace.yaml in the current directory")
	pattern := flag.String("filter", "", "Initial name filter")
	mode := flag.String("mode", "", "Filter mode: fuzzy, substring or regex (default from config)")
	recipeName := flag.String("recipe", "", "Apply named recipe (e.g., default, recent, source, large)")
	recipeShort := flag.String("r", "", "Shorthand for --recipe")
	expandAll := flag.Bool("expand-all", false, "Expand every node")
	depth := flag.Int("depth", 0, "Expand nodes down to this depth (-1 = all)")
	printFlag := flag.Bool("print", false, "Print the tree as text instead of starting the TUI")
	jsonFlag := flag.Bool("json", false, "Print the visible rows as JSON")
	exportFile := flag.String("export-md", "", "Export the visible tree to a Markdown file (e.g., tree.md)")
	watch := flag.Bool("watch", false, "Reload changed directories while the TUI runs")
	hidden := flag.Bool("hidden", false, "Show hidden files")
	flag.Parse()

	// Handle -r shorthand
	if *recipeShort != "" && *recipeName == "" {
		*recipeName = *recipeShort
	}

	if *help {
		fmt.Println("Usage: itv [options] [dir | outline.json | outline.jsonl | outline.yaml]")
		fmt.Println("\nAn interactive tree viewer for directories and outlines.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("itv %s\n", version.Version)
		os.Exit(0)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting current directory: %v\n", err)
		os.Exit(1)
	}

	if *initFlag {
		path, err := workspace.Init(cwd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created %s\n", path)
		os.Exit(0)
	}

	cfg, project, err := config.LoadMerged(*configPath, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if project != "" {
		debug.Log("project config: %s", project)
	}
	if *hidden {
		cfg.Loader.ShowHidden = true
	}

	var depthOverride *int
	switch {
	case *expandAll:
		all := -1
		depthOverride = &all
	case flagPassed("depth"):
		depthOverride = depth
	}

	opts, err := buildOptions(cfg, *recipeName, *pattern, *mode, depthOverride)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	src, err := loadSource(context.Background(), flag.Args(), *workspaceConfig, cwd, cfg.ScanOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading tree: %v\n", err)
		os.Exit(1)
	}
	debug.LogTiming("load", time.Since(start))
	opts.Title = src.title

	if *exportFile != "" {
		fmt.Printf("Exporting to %s...\n", *exportFile)
		if err := exportMarkdown(src.elements, opts, *exportFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Done!")
		os.Exit(0)
	}

	if *jsonFlag || *printFlag || !term.IsTerminal(int(os.Stdout.Fd())) {
		if err := writeTree(os.Stdout, src.elements, opts, *jsonFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Warnings would scribble over the alternate screen; they reach the
	// status line instead.
	if !debug.Enabled() {
		log.SetOutput(io.Discard)
	}

	var worker *ui.BackgroundWorker
	if *watch || cfg.UI.Watch {
		opts.Refresh = func() {
			if worker != nil {
				worker.TriggerRefresh()
			}
		}
	}

	m, err := ui.NewModel(src.elements, ui.DefaultTheme(lipgloss.DefaultRenderer()), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer m.Tree().Close()

	p := tea.NewProgram(m, tea.WithAltScreen())

	if opts.Refresh != nil && len(src.watchRoots) > 0 {
		worker, err = ui.NewBackgroundWorker(ui.WorkerConfig{
			Roots:         src.watchRoots,
			Scan:          cfg.ScanOptions(),
			DebounceDelay: time.Duration(cfg.UI.DebounceMS) * time.Millisecond,
			Send:          p.Send,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
		} else {
			worker.Start()
			defer worker.Stop()
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running itv: %v\n", err)
		os.Exit(1)
	}
}

// flagPassed reports whether the named flag was set on the command line.
func flagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// buildOptions resolves the recipe and filter mode into viewer options.
func buildOptions(cfg config.Config, recipeName, pattern, mode string, depth *int) (ui.Options, error) {
	if recipeName == "" {
		recipeName = cfg.UI.Recipe
	}
	if recipeName == "" {
		recipeName = "default"
	}
	r, err := cfg.Recipe(recipeName)
	if err != nil {
		return ui.Options{}, err
	}

	m := filter.Mode(mode)
	if mode != "" && !m.IsValid() {
		return ui.Options{}, fmt.Errorf("unknown filter mode %q (want fuzzy, substring or regex)", mode)
	}
	return ui.Options{
		Config:      cfg,
		Recipe:      r,
		Pattern:     pattern,
		Mode:        m,
		ExpandDepth: depth,
	}, nil
}

// source is what itv was asked to show.
type source struct {
	elements   []tree.TreeElement[*model.Entry]
	watchRoots []string // Directories the background worker may watch
	title      string
}

// loadSource loads the tree from, in order: an explicit workspace file, a
// path argument, a workspace found above cwd, or cwd itself.
func loadSource(ctx context.Context, args []string, workspacePath, cwd string, scan loader.ScanOptions) (source, error) {
	if workspacePath == "" && len(args) == 0 {
		if found, err := workspace.FindWorkspaceConfig(cwd); err == nil {
			workspacePath = found
		}
	}
	if workspacePath != "" {
		return loadWorkspace(ctx, workspacePath, scan)
	}

	path := cwd
	if len(args) > 0 {
		path = args[0]
	}
	info, err := os.Stat(path)
	if err != nil {
		return source{}, err
	}
	if !info.IsDir() {
		els, err := loader.LoadFile(path)
		if err != nil {
			return source{}, err
		}
		return source{elements: els, title: filepath.Base(path)}, nil
	}

	root, err := loader.RootEntry(path)
	if err != nil {
		return source{}, err
	}
	children, err := loader.ScanDir(ctx, root.Path, scan)
	if err != nil {
		return source{}, err
	}
	return source{
		elements:   []tree.TreeElement[*model.Entry]{{Element: root, Children: children}},
		watchRoots: []string{root.Path},
		title:      root.Name,
	}, nil
}

func loadWorkspace(ctx context.Context, path string, scan loader.ScanOptions) (source, error) {
	ws, err := workspace.LoadConfig(path)
	if err != nil {
		return source{}, fmt.Errorf("workspace %s: %w", path, err)
	}
	roots, err := ws.ResolvePaths(workspace.BaseDir(path))
	if err != nil {
		return source{}, err
	}
	if len(roots) == 0 {
		return source{}, errors.New("workspace has no enabled roots")
	}
	els, err := workspace.Elements(ctx, roots, scan)
	if err != nil {
		return source{}, err
	}

	src := source{elements: els, title: ws.Name}
	if src.title == "" {
		src.title = filepath.Base(workspace.BaseDir(path))
	}
	for _, r := range roots {
		if info, err := os.Stat(r.Path); err == nil && info.IsDir() {
			src.watchRoots = append(src.watchRoots, r.Path)
		}
	}
	return src, nil
}

// plainTheme renders without color so piped output stays clean.
func plainTheme() ui.Theme {
	return ui.DefaultTheme(lipgloss.NewRenderer(io.Discard))
}

// writeTree prints the initial projection as indented text or JSON rows.
func writeTree(w io.Writer, elements []tree.TreeElement[*model.Entry], opts ui.Options, asJSON bool) error {
	tv, err := ui.NewTree(elements, plainTheme(), opts)
	if err != nil {
		return err
	}
	defer tv.Close()
	if asJSON {
		return export.WriteJSON(w, tv.Model(), tv.Rows())
	}
	return export.WriteText(w, tv.Rows())
}

func exportMarkdown(elements []tree.TreeElement[*model.Entry], opts ui.Options, filename string) error {
	tv, err := ui.NewTree(elements, plainTheme(), opts)
	if err != nil {
		return err
	}
	defer tv.Close()
	title := opts.Title
	if title == "" {
		title = "Tree"
	}
	return export.SaveMarkdownToFile(tv.Rows(), title, filename)
}
