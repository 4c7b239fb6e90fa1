package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Entry is the payload carried by every node of the viewer's tree
type Entry struct {
	ID      string    `json:"id" yaml:"id"`
	Name    string    `json:"name" yaml:"name"`
	Kind    Kind      `json:"kind" yaml:"kind"`
	Path    string    `json:"path,omitempty" yaml:"path,omitempty"`
	Size    int64     `json:"size,omitempty" yaml:"size,omitempty"`
	ModTime time.Time `json:"mod_time,omitzero" yaml:"mod_time,omitempty"`
	Note    string    `json:"note,omitempty" yaml:"note,omitempty"`
	Labels  []string  `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Clone creates a deep copy of the entry
func (e Entry) Clone() Entry {
	clone := e
	if e.Labels != nil {
		clone.Labels = make([]string, len(e.Labels))
		copy(clone.Labels, e.Labels)
	}
	return clone
}

// Validate checks if the entry data is logically valid
func (e *Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry ID cannot be empty")
	}
	if e.Name == "" {
		return fmt.Errorf("entry name cannot be empty")
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("invalid kind: %s", e.Kind)
	}
	if e.Size < 0 {
		return fmt.Errorf("size (%d) cannot be negative", e.Size)
	}
	return nil
}

// Label is the text shown for the entry in a rendered row.
func (e *Entry) Label() string {
	switch e.Kind {
	case KindDir:
		return e.Name + "/"
	case KindSymlink:
		return e.Name + "@"
	}
	return e.Name
}

// IsHidden reports whether the entry is a dotfile.
func (e *Entry) IsHidden() bool {
	return strings.HasPrefix(e.Name, ".") && e.Name != "." && e.Name != ".."
}

// Ext returns the lower-cased file extension including the dot, or "" for
// containers.
func (e *Entry) Ext() string {
	if e.Kind.IsContainer() {
		return ""
	}
	return strings.ToLower(filepath.Ext(e.Name))
}

// Kind categorizes what an entry stands for
type Kind string

const (
	KindDir     Kind = "dir"
	KindFile    Kind = "file"
	KindSymlink Kind = "symlink"
	KindGroup   Kind = "group" // Synthetic container from an outline document
	KindItem    Kind = "item"  // Leaf from an outline document
)

// IsValid returns true if the kind is a recognized value
func (k Kind) IsValid() bool {
	switch k {
	case KindDir, KindFile, KindSymlink, KindGroup, KindItem:
		return true
	}
	return false
}

// IsContainer returns true for kinds that normally have children.
func (k Kind) IsContainer() bool {
	return k == KindDir || k == KindGroup
}

// Icon returns a short glyph used by text renderers.
func (k Kind) Icon() string {
	switch k {
	case KindDir:
		return "📁"
	case KindGroup:
		return "📂"
	case KindSymlink:
		return "🔗"
	case KindItem:
		return "•"
	default:
		return "📄"
	}
}

// Outline is an entry with its children, the on-disk shape of JSON and YAML
// outline documents.
type Outline struct {
	Entry     `yaml:",inline"`
	Collapsed *bool     `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
	Children  []Outline `json:"children,omitempty" yaml:"children,omitempty"`
}

// Validate checks the outline recursively and rejects duplicate IDs.
func (o *Outline) Validate() error {
	seen := make(map[string]bool)
	return o.validate(seen)
}

func (o *Outline) validate(seen map[string]bool) error {
	if err := o.Entry.Validate(); err != nil {
		return fmt.Errorf("%s: %w", o.Name, err)
	}
	if seen[o.ID] {
		return fmt.Errorf("duplicate entry ID %q", o.ID)
	}
	seen[o.ID] = true
	for i := range o.Children {
		if err := o.Children[i].validate(seen); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of entries in the outline, itself included.
func (o *Outline) Count() int {
	n := 1
	for i := range o.Children {
		n += o.Children[i].Count()
	}
	return n
}
