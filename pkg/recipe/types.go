package recipe

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/vanderheijden86/indextree/pkg/filter"
	"github.com/vanderheijden86/indextree/pkg/model"
	"github.com/vanderheijden86/indextree/pkg/tree"
)

// Recipe defines a reusable view configuration for a tree
type Recipe struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Filters     FilterConfig `yaml:"filters,omitempty" json:"filters,omitempty"`
	Sort        SortConfig   `yaml:"sort,omitempty" json:"sort,omitempty"`
	View        ViewConfig   `yaml:"view,omitempty" json:"view,omitempty"`
}

// FilterConfig defines which entries to include
type FilterConfig struct {
	Kinds          []string `yaml:"kinds,omitempty" json:"kinds,omitempty"`                     // dir, file, symlink, group, item
	Extensions     []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`           // ".go", "md" (dot optional)
	Labels         []string `yaml:"labels,omitempty" json:"labels,omitempty"`                   // Include entries with any of these labels
	NameContains   string   `yaml:"name_contains,omitempty" json:"name_contains,omitempty"`     // Substring match
	ModifiedAfter  string   `yaml:"modified_after,omitempty" json:"modified_after,omitempty"`   // Relative: "14d", "1w", "2m" or ISO date
	ModifiedBefore string   `yaml:"modified_before,omitempty" json:"modified_before,omitempty"` // Relative or ISO date
	ExcludeHidden  bool     `yaml:"exclude_hidden,omitempty" json:"exclude_hidden,omitempty"`   // Drop dotfiles and their subtrees
}

// IsZero reports whether the config filters nothing.
func (f FilterConfig) IsZero() bool {
	return len(f.Kinds) == 0 && len(f.Extensions) == 0 && len(f.Labels) == 0 &&
		f.NameContains == "" && f.ModifiedAfter == "" && f.ModifiedBefore == "" && !f.ExcludeHidden
}

// SortConfig defines how siblings are ordered
type SortConfig struct {
	Field     string `yaml:"field" json:"field"`                             // name, size, modified, kind
	Direction string `yaml:"direction,omitempty" json:"direction,omitempty"` // asc, desc (default: asc)
	DirsFirst bool   `yaml:"dirs_first,omitempty" json:"dirs_first,omitempty"`
}

// ViewConfig controls display options
type ViewConfig struct {
	CollapseByDefault bool `yaml:"collapse_by_default,omitempty" json:"collapse_by_default,omitempty"` // Start with containers collapsed
	ExpandDepth       int  `yaml:"expand_depth,omitempty" json:"expand_depth,omitempty"`               // Expand containers up to this depth (0 = none, -1 = all)
	KeepAncestors     bool `yaml:"keep_ancestors,omitempty" json:"keep_ancestors,omitempty"`           // Show ancestors of matches
}

// relativeTimePattern matches relative time expressions like "14d", "2w", "1m", "1y"
var relativeTimePattern = regexp.MustCompile(`^(\d+)([dwmy])$`)

// ParseRelativeTime converts a relative time string to an absolute time.
// Supports: Nd (days), Nw (weeks), Nm (months), Ny (years)
// If the string is not a relative time, it tries to parse as ISO 8601.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	s = strings.TrimSpace(s)

	if matches := relativeTimePattern.FindStringSubmatch(strings.ToLower(s)); matches != nil {
		n, _ := strconv.Atoi(matches[1])
		switch matches[2] {
		case "d":
			return now.AddDate(0, 0, -n), nil
		case "w":
			return now.AddDate(0, 0, -n*7), nil
		case "m":
			return now.AddDate(0, -n, 0), nil
		case "y":
			return now.AddDate(-n, 0, 0), nil
		}
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &TimeParseError{Input: s}
}

// TimeParseError indicates a time parsing failure
type TimeParseError struct {
	Input string
}

func (e *TimeParseError) Error() string {
	return "invalid time format: " + e.Input + " (expected relative like '14d', '2w', '1m' or ISO date)"
}

// entryFilter is the compiled form of a FilterConfig.
type entryFilter struct {
	kinds         map[model.Kind]bool
	extensions    map[string]bool
	labels        []string
	nameContains  string
	after, before time.Time
	excludeHidden bool
}

// Filter compiles the recipe's filters relative to now. It returns nil when
// the recipe filters nothing.
//
// Hidden entries (when excluded) are Hidden together with their subtree.
// Containers that fail the other criteria are Recurse, so a directory stays
// when something inside it matches.
func (r Recipe) Filter(now time.Time) (tree.Filter[*model.Entry, filter.Match], error) {
	fc := r.Filters
	if fc.IsZero() {
		return nil, nil
	}
	after, err := ParseRelativeTime(fc.ModifiedAfter, now)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: modified_after: %w", r.Name, err)
	}
	before, err := ParseRelativeTime(fc.ModifiedBefore, now)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: modified_before: %w", r.Name, err)
	}

	f := &entryFilter{
		labels:        fc.Labels,
		nameContains:  strings.ToLower(fc.NameContains),
		after:         after,
		before:        before,
		excludeHidden: fc.ExcludeHidden,
	}
	if len(fc.Kinds) > 0 {
		f.kinds = make(map[model.Kind]bool, len(fc.Kinds))
		for _, k := range fc.Kinds {
			kind := model.Kind(strings.ToLower(k))
			if !kind.IsValid() {
				return nil, fmt.Errorf("recipe %s: unknown kind %q", r.Name, k)
			}
			f.kinds[kind] = true
		}
	}
	if len(fc.Extensions) > 0 {
		f.extensions = make(map[string]bool, len(fc.Extensions))
		for _, ext := range fc.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			f.extensions[ext] = true
		}
	}
	return f, nil
}

func (f *entryFilter) Filter(e *model.Entry, parent tree.Visibility) tree.FilterResult[filter.Match] {
	if f.excludeHidden && e.IsHidden() {
		return tree.FilterResult[filter.Match]{Visibility: tree.Hidden}
	}
	if f.matches(e) {
		return tree.FilterResult[filter.Match]{Visibility: tree.Visible}
	}
	if e.Kind.IsContainer() {
		return tree.FilterResult[filter.Match]{Visibility: tree.Recurse}
	}
	return tree.FilterResult[filter.Match]{Visibility: tree.Hidden}
}

func (f *entryFilter) matches(e *model.Entry) bool {
	if f.kinds != nil && !f.kinds[e.Kind] {
		return false
	}
	if f.extensions != nil && !f.extensions[e.Ext()] {
		return false
	}
	if len(f.labels) > 0 && !slices.ContainsFunc(e.Labels, func(l string) bool { return slices.Contains(f.labels, l) }) {
		return false
	}
	if f.nameContains != "" && !strings.Contains(strings.ToLower(e.Name), f.nameContains) {
		return false
	}
	if !f.after.IsZero() && (e.ModTime.IsZero() || e.ModTime.Before(f.after)) {
		return false
	}
	if !f.before.IsZero() && (e.ModTime.IsZero() || !e.ModTime.Before(f.before)) {
		return false
	}
	return true
}

// Less returns the sibling ordering described by the sort config.
func (s SortConfig) Less() func(a, b *model.Entry) int {
	desc := strings.EqualFold(s.Direction, "desc")
	return func(a, b *model.Entry) int {
		if s.DirsFirst {
			ac, bc := a.Kind.IsContainer(), b.Kind.IsContainer()
			if ac != bc {
				if ac {
					return -1
				}
				return 1
			}
		}
		var c int
		switch s.Field {
		case "size":
			c = cmpInt64(a.Size, b.Size)
		case "modified":
			c = a.ModTime.Compare(b.ModTime)
		case "kind":
			c = strings.Compare(string(a.Kind), string(b.Kind))
		}
		if c == 0 {
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
		if desc {
			return -c
		}
		return c
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortElements orders every sibling list of els in place. A zero config
// leaves the order as loaded.
func (s SortConfig) SortElements(els []tree.TreeElement[*model.Entry]) {
	if s.Field == "" && !s.DirsFirst {
		return
	}
	less := s.Less()
	var walk func([]tree.TreeElement[*model.Entry])
	walk = func(level []tree.TreeElement[*model.Entry]) {
		slices.SortStableFunc(level, func(a, b tree.TreeElement[*model.Entry]) int {
			return less(a.Element, b.Element)
		})
		for i := range level {
			walk(level[i].Children)
		}
	}
	walk(els)
}

// DefaultRecipe returns a sensible default recipe
func DefaultRecipe() Recipe {
	return Recipe{
		Name:        "default",
		Description: "Everything, directories first",
		Sort: SortConfig{
			Field:     "name",
			DirsFirst: true,
		},
		View: ViewConfig{
			CollapseByDefault: true,
			ExpandDepth:       1,
		},
	}
}

// RecentRecipe returns a recipe for recently modified entries
func RecentRecipe() Recipe {
	return Recipe{
		Name:        "recent",
		Description: "Files modified in the last 7 days",
		Filters: FilterConfig{
			Kinds:         []string{"file"},
			ModifiedAfter: "7d",
			ExcludeHidden: true,
		},
		Sort: SortConfig{
			Field:     "modified",
			Direction: "desc",
		},
		View: ViewConfig{
			ExpandDepth:   -1,
			KeepAncestors: true,
		},
	}
}

// SourceRecipe returns a recipe for source code
func SourceRecipe() Recipe {
	return Recipe{
		Name:        "source",
		Description: "Source files only, hidden directories excluded",
		Filters: FilterConfig{
			Extensions:    []string{".go", ".ts", ".py", ".rs", ".c", ".h", ".java"},
			ExcludeHidden: true,
		},
		Sort: SortConfig{
			Field:     "name",
			DirsFirst: true,
		},
		View: ViewConfig{
			CollapseByDefault: true,
			ExpandDepth:       2,
			KeepAncestors:     true,
		},
	}
}

// LargeRecipe returns a recipe for spotting big files
func LargeRecipe() Recipe {
	return Recipe{
		Name:        "large",
		Description: "Everything, biggest first",
		Sort: SortConfig{
			Field:     "size",
			Direction: "desc",
		},
		View: ViewConfig{
			CollapseByDefault: true,
		},
	}
}

// BuiltinRecipes returns all built-in recipes
func BuiltinRecipes() []Recipe {
	return []Recipe{
		DefaultRecipe(),
		RecentRecipe(),
		SourceRecipe(),
		LargeRecipe(),
	}
}

// Lookup finds a recipe by name. Recipes in custom shadow builtins of the
// same name.
func Lookup(name string, custom []Recipe) (Recipe, bool) {
	for _, r := range custom {
		if r.Name == name {
			return r, true
		}
	}
	for _, r := range BuiltinRecipes() {
		if r.Name == name {
			return r, true
		}
	}
	return Recipe{}, false
}

// All returns the custom recipes followed by the builtins they do not shadow.
func All(custom []Recipe) []Recipe {
	out := slices.Clone(custom)
	for _, r := range BuiltinRecipes() {
		if !slices.ContainsFunc(custom, func(c Recipe) bool { return c.Name == r.Name }) {
			out = append(out, r)
		}
	}
	return out
}
