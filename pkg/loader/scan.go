package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/indextree/pkg/model"
	"github.com/vanderheijden86/indextree/pkg/tree"
)

// ScanOptions controls a directory scan.
type ScanOptions struct {
	ShowHidden       bool
	RespectGitignore bool
	MaxDepth         int // 0 = unlimited; 1 = direct children only
	Workers          int // parallel top-level subtrees; 0 = GOMAXPROCS
}

// DefaultScanOptions returns the options used when nothing is configured.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{RespectGitignore: true}
}

// ScanDir scans root recursively and returns its children as tree
// elements, directories first then by name. Top-level subdirectories are
// scanned in parallel. Unreadable subdirectories are logged and left empty;
// an unreadable root is an error.
func ScanDir(ctx context.Context, root string, opts ScanOptions) ([]tree.TreeElement[*model.Entry], error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	var chain ignoreChain
	if opts.RespectGitignore {
		chain = chain.with(root)
	}

	top, err := readDir(root, opts, chain)
	if err != nil {
		return nil, err
	}
	if opts.MaxDepth == 1 {
		return top, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range top {
		if top[i].Element.Kind != model.KindDir {
			continue
		}
		el := &top[i]
		g.Go(func() error {
			children, err := scanChildren(ctx, el.Element.Path, opts, chain, 2)
			el.Children = children
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return top, nil
}

func scanChildren(ctx context.Context, dir string, opts ScanOptions, chain ignoreChain, depth int) ([]tree.TreeElement[*model.Entry], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.RespectGitignore {
		chain = chain.with(dir)
	}
	els, err := readDir(dir, opts, chain)
	if err != nil {
		log.Printf("warning: skipping %s: %v", dir, err)
		return nil, nil
	}
	if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
		return els, nil
	}
	for i := range els {
		if els[i].Element.Kind != model.KindDir {
			continue
		}
		children, err := scanChildren(ctx, els[i].Element.Path, opts, chain, depth+1)
		if err != nil {
			return nil, err
		}
		els[i].Children = children
	}
	return els, nil
}

// ReadDirEntries lists one directory level. Directories come back without
// children. Only dir's own .gitignore is consulted.
func ReadDirEntries(dir string, opts ScanOptions) ([]tree.TreeElement[*model.Entry], error) {
	var chain ignoreChain
	if opts.RespectGitignore {
		chain = chain.with(dir)
	}
	return readDir(dir, opts, chain)
}

func readDir(dir string, opts ScanOptions, chain ignoreChain) ([]tree.TreeElement[*model.Entry], error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	els := make([]tree.TreeElement[*model.Entry], 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if name == ".git" {
			continue
		}
		if !opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		if opts.RespectGitignore && chain.ignored(full, de.IsDir()) {
			continue
		}

		entry := &model.Entry{
			ID:   full,
			Name: name,
			Path: full,
			Kind: kindOf(de),
		}
		if info, err := de.Info(); err == nil {
			entry.ModTime = info.ModTime()
			if entry.Kind == model.KindFile {
				entry.Size = info.Size()
			}
		}
		els = append(els, tree.TreeElement[*model.Entry]{Element: entry})
	}

	slices.SortFunc(els, func(a, b tree.TreeElement[*model.Entry]) int {
		ad, bd := a.Element.Kind == model.KindDir, b.Element.Kind == model.KindDir
		if ad != bd {
			if ad {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Element.Name, b.Element.Name)
	})
	return els, nil
}

func kindOf(de fs.DirEntry) model.Kind {
	switch {
	case de.Type()&fs.ModeSymlink != 0:
		return model.KindSymlink
	case de.IsDir():
		return model.KindDir
	default:
		return model.KindFile
	}
}

// RootEntry describes the directory itself, for use as a top-level node.
func RootEntry(dir string) (*model.Entry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &model.Entry{
		ID:      abs,
		Name:    filepath.Base(abs),
		Kind:    model.KindDir,
		Path:    abs,
		ModTime: info.ModTime(),
	}, nil
}
