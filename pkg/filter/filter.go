// Package filter provides the tree filters used by the viewer: a text query
// matched against entry names, and a chain that combines several filters.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/vanderheijden86/indextree/pkg/model"
	"github.com/vanderheijden86/indextree/pkg/tree"
)

// Match is the filter data attached to nodes: the rune positions of the
// label that matched, for highlighting.
type Match struct {
	Indexes []int
	Score   int
}

// Mode selects how a query pattern is matched.
type Mode string

const (
	ModeFuzzy     Mode = "fuzzy"
	ModeSubstring Mode = "substring"
	ModeRegex     Mode = "regex"
)

// IsValid returns true if the mode is a recognized value
func (m Mode) IsValid() bool {
	switch m {
	case ModeFuzzy, ModeSubstring, ModeRegex:
		return true
	}
	return false
}

// Query matches entry names against a pattern.
type Query struct {
	Pattern string
	Mode    Mode
	// KeepAncestors keeps the ancestors of matching entries visible by
	// returning Recurse for non-matches instead of Hidden.
	KeepAncestors bool

	re *regexp.Regexp
}

// NewQuery compiles a query. An invalid regex is an error; an unknown mode
// falls back to fuzzy.
func NewQuery(pattern string, mode Mode, keepAncestors bool) (*Query, error) {
	if !mode.IsValid() {
		mode = ModeFuzzy
	}
	q := &Query{Pattern: pattern, Mode: mode, KeepAncestors: keepAncestors}
	if mode == ModeRegex && pattern != "" {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling filter %q: %w", pattern, err)
		}
		q.re = re
	}
	return q, nil
}

// Empty reports whether the query matches everything.
func (q *Query) Empty() bool {
	return q == nil || q.Pattern == ""
}

// Filter implements tree.Filter.
func (q *Query) Filter(e *model.Entry, _ tree.Visibility) tree.FilterResult[Match] {
	if q.Empty() {
		return tree.FilterResult[Match]{Visibility: tree.Visible}
	}
	if m, ok := q.match(e.Name); ok {
		return tree.FilterResult[Match]{Visibility: tree.Visible, Data: m}
	}
	if q.KeepAncestors {
		return tree.FilterResult[Match]{Visibility: tree.Recurse}
	}
	return tree.FilterResult[Match]{Visibility: tree.Hidden}
}

func (q *Query) match(name string) (Match, bool) {
	switch q.Mode {
	case ModeSubstring:
		start, n := foldIndex(name, q.Pattern)
		if start < 0 {
			return Match{}, false
		}
		indexes := make([]int, n)
		for i := range indexes {
			indexes[i] = start + i
		}
		return Match{Indexes: indexes}, true
	case ModeRegex:
		loc := q.re.FindStringIndex(name)
		if loc == nil {
			return Match{}, false
		}
		return Match{Indexes: runeRange(name, loc[0], loc[1]-loc[0])}, true
	default:
		matches := fuzzy.Find(q.Pattern, []string{name})
		if len(matches) == 0 {
			return Match{}, false
		}
		return Match{Indexes: byteToRuneIndexes(name, matches[0].MatchedIndexes), Score: matches[0].Score}, true
	}
}

// foldIndex returns the rune position of the first case-insensitive match
// of pattern in s and the pattern's rune length, or -1 when there is none.
// Comparing rune windows keeps positions right when a rune's lower-case
// form has a different byte length.
func foldIndex(s, pattern string) (int, int) {
	runes := []rune(s)
	n := utf8.RuneCountInString(pattern)
	for i := 0; i+n <= len(runes); i++ {
		if strings.EqualFold(string(runes[i:i+n]), pattern) {
			return i, n
		}
	}
	return -1, n
}

// runeRange converts a byte span of s to the rune positions it covers.
func runeRange(s string, start, length int) []int {
	var out []int
	pos := 0
	for i := range s {
		if i >= start && i < start+length {
			out = append(out, pos)
		}
		pos++
	}
	return out
}

func byteToRuneIndexes(s string, byteIdx []int) []int {
	if len(byteIdx) == 0 {
		return nil
	}
	want := make(map[int]bool, len(byteIdx))
	for _, b := range byteIdx {
		want[b] = true
	}
	out := make([]int, 0, len(byteIdx))
	pos := 0
	for i := range s {
		if want[i] {
			out = append(out, pos)
		}
		pos++
	}
	return out
}

// Chain combines filters: the first result that is not Visible wins, and
// the filter data of the last Visible result is kept.
type Chain []tree.Filter[*model.Entry, Match]

// Filter implements tree.Filter.
func (c Chain) Filter(e *model.Entry, parent tree.Visibility) tree.FilterResult[Match] {
	result := tree.FilterResult[Match]{Visibility: tree.Visible}
	for _, f := range c {
		if f == nil {
			continue
		}
		r := f.Filter(e, parent)
		if r.Visibility != tree.Visible {
			return r
		}
		if r.Data.Indexes != nil {
			result.Data = r.Data
		}
	}
	return result
}

// Of builds a chain from the non-nil filters, or returns nil when none are
// left so the model can skip filtering entirely.
func Of(filters ...tree.Filter[*model.Entry, Match]) tree.Filter[*model.Entry, Match] {
	var c Chain
	for _, f := range filters {
		if q, ok := f.(*Query); ok && q.Empty() {
			continue
		}
		if f != nil {
			c = append(c, f)
		}
	}
	if len(c) == 0 {
		return nil
	}
	return c
}
