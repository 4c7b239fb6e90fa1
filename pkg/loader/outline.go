package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/indextree/pkg/model"
	"github.com/vanderheijden86/indextree/pkg/tree"
)

// ErrUnsupportedFormat is returned by LoadFile for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported outline format")

// maxLineSize bounds a single JSONL record.
const maxLineSize = 10 * 1024 * 1024

// record is one line of a JSONL outline: an entry with the ID of its parent.
type record struct {
	model.Entry
	Parent    string `json:"parent,omitempty"`
	Collapsed *bool  `json:"collapsed,omitempty"`
}

// LoadFile reads an outline document and returns its top-level elements.
// The format is chosen by extension: .json (nested outline or array of
// outlines), .jsonl (flat records linked by parent ID) and .yaml/.yml.
func LoadFile(path string) ([]tree.TreeElement[*model.Entry], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading outline: %w", err)
	}

	var outlines []model.Outline
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		outlines, err = decodeOutlines(data, json.Unmarshal)
	case ".yaml", ".yml":
		outlines, err = decodeOutlines(data, yaml.Unmarshal)
	case ".jsonl":
		return loadJSONL(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	els := make([]tree.TreeElement[*model.Entry], 0, len(outlines))
	for i := range outlines {
		fillDefaults(&outlines[i], strconv.Itoa(i))
		if err := outlines[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid outline in %s: %w", filepath.Base(path), err)
		}
		els = append(els, ToElement(outlines[i]))
	}
	return els, nil
}

// decodeOutlines accepts either a single outline or an array of them.
func decodeOutlines(data []byte, unmarshal func([]byte, any) error) ([]model.Outline, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var list []model.Outline
	if err := unmarshal(trimmed, &list); err == nil {
		return list, nil
	}
	var single model.Outline
	if err := unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []model.Outline{single}, nil
}

// fillDefaults assigns positional IDs and a kind to entries that omit them.
func fillDefaults(o *model.Outline, id string) {
	if o.ID == "" {
		o.ID = id
	}
	if o.Kind == "" {
		if len(o.Children) > 0 {
			o.Kind = model.KindGroup
		} else {
			o.Kind = model.KindItem
		}
	}
	for i := range o.Children {
		fillDefaults(&o.Children[i], id+"."+strconv.Itoa(i))
	}
}

// ToElement converts an outline to a tree element, carrying its collapse
// state.
func ToElement(o model.Outline) tree.TreeElement[*model.Entry] {
	entry := o.Entry.Clone()
	el := tree.TreeElement[*model.Entry]{Element: &entry, Collapsed: o.Collapsed}
	if len(o.Children) > 0 {
		el.Children = make([]tree.TreeElement[*model.Entry], len(o.Children))
		for i, child := range o.Children {
			el.Children[i] = ToElement(child)
		}
	}
	return el
}

// loadJSONL assembles flat records into a forest. Children keep file order.
// Records whose parent is missing become top-level, and records caught in
// a parent cycle are promoted to top-level to break it.
func loadJSONL(data []byte) ([]tree.TreeElement[*model.Entry], error) {
	var records []record
	index := make(map[string]int)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var r record
		if err := json.Unmarshal(line, &r); err != nil {
			log.Printf("warning: skipping malformed JSON on line %d: %v", lineNum, err)
			continue
		}
		if r.Kind == "" {
			r.Kind = model.KindItem
		}
		if err := r.Entry.Validate(); err != nil {
			log.Printf("warning: skipping invalid record on line %d: %v", lineNum, err)
			continue
		}
		if _, dup := index[r.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate entry ID %q", lineNum, r.ID)
		}
		index[r.ID] = len(records)
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading JSONL: %w", err)
	}

	children := make(map[string][]int)
	var roots []int
	for i, r := range records {
		if _, ok := index[r.Parent]; r.Parent == "" || !ok || r.Parent == r.ID {
			if r.Parent != "" {
				log.Printf("warning: %s has unknown parent %q, placing it at the top level", r.ID, r.Parent)
			}
			roots = append(roots, i)
			continue
		}
		children[r.Parent] = append(children[r.Parent], i)
	}

	attached := make([]bool, len(records))
	var build func(i int) tree.TreeElement[*model.Entry]
	build = func(i int) tree.TreeElement[*model.Entry] {
		attached[i] = true
		r := records[i]
		entry := r.Entry.Clone()
		el := tree.TreeElement[*model.Entry]{Element: &entry, Collapsed: r.Collapsed}
		for _, c := range children[r.ID] {
			if !attached[c] {
				el.Children = append(el.Children, build(c))
			}
		}
		if len(el.Children) > 0 && entry.Kind == model.KindItem {
			entry.Kind = model.KindGroup
		}
		return el
	}

	var els []tree.TreeElement[*model.Entry]
	for _, i := range roots {
		els = append(els, build(i))
	}
	// Whatever is still unattached sits on a cycle (or under one).
	for i := range records {
		if !attached[i] && cycleHead(records, index, i) {
			log.Printf("warning: breaking parent cycle at %s", records[i].ID)
			els = append(els, build(i))
		}
	}
	return els, nil
}

// cycleHead reports whether record i is the first record, in file order, on
// the parent cycle it reaches.
func cycleHead(records []record, index map[string]int, i int) bool {
	seen := map[int]bool{}
	j := i
	for !seen[j] {
		seen[j] = true
		j = index[records[j].Parent]
	}
	// j is on the cycle; find its smallest member.
	head := j
	for k := index[records[j].Parent]; k != j; k = index[records[k].Parent] {
		head = min(head, k)
	}
	return head == i
}
