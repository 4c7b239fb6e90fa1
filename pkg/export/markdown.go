// Package export renders a tree projection as plain text, markdown or JSON.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/indextree/pkg/filter"
	"github.com/vanderheijden86/indextree/pkg/model"
	"github.com/vanderheijden86/indextree/pkg/tree"
)

// Node is a row of the entry tree projection.
type Node = *tree.Node[*model.Entry, filter.Match]

// Model is the entry tree model.
type Model = tree.IndexTreeModel[*model.Entry, filter.Match]

// indicator returns the expand marker shown before a row's label.
func indicator(n Node) string {
	switch {
	case !n.Collapsible():
		return "  "
	case n.Collapsed():
		return "▸ "
	default:
		return "▾ "
	}
}

// WriteText writes one indented line per row.
func WriteText(w io.Writer, rows []Node) error {
	if len(rows) == 0 {
		return nil
	}
	base := rows[0].Depth()
	for _, n := range rows {
		base = min(base, n.Depth())
	}
	for _, n := range rows {
		indent := strings.Repeat("  ", n.Depth()-base)
		if _, err := fmt.Fprintf(w, "%s%s%s\n", indent, indicator(n), n.Element().Label()); err != nil {
			return err
		}
	}
	return nil
}

// SubtreeRows returns node and its visible descendants in depth-first
// order, ignoring collapse state.
func SubtreeRows(node Node) []Node {
	var rows []Node
	var walk func(n Node)
	walk = func(n Node) {
		rows = append(rows, n)
		for _, c := range n.Children() {
			if c.Visible() {
				walk(c)
			}
		}
	}
	walk(node)
	return rows
}

// GenerateMarkdown renders rows as a nested markdown list under a title.
func GenerateMarkdown(rows []Node, title string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format(time.RFC1123)))

	containers, leaves := 0, 0
	for _, n := range rows {
		if n.Element().Kind.IsContainer() {
			containers++
		} else {
			leaves++
		}
	}
	sb.WriteString(fmt.Sprintf("- **Rows**: %d\n", len(rows)))
	sb.WriteString(fmt.Sprintf("- **Containers**: %d\n", containers))
	sb.WriteString(fmt.Sprintf("- **Leaves**: %d\n\n", leaves))
	sb.WriteString("---\n\n")

	if len(rows) == 0 {
		sb.WriteString("_Nothing to show._\n")
		return sb.String()
	}

	base := rows[0].Depth()
	for _, n := range rows {
		base = min(base, n.Depth())
	}
	for _, n := range rows {
		e := n.Element()
		indent := strings.Repeat("  ", n.Depth()-base)
		label := markdownEscape(e.Label())
		if e.Kind.IsContainer() {
			label = "**" + label + "**"
		}
		line := fmt.Sprintf("%s- %s", indent, label)
		if n.Collapsed() {
			line += " _(collapsed)_"
		}
		if e.Note != "" {
			line += ": " + markdownEscape(e.Note)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// SaveMarkdownToFile writes the generated markdown to a file.
func SaveMarkdownToFile(rows []Node, title, filename string) error {
	return os.WriteFile(filename, []byte(GenerateMarkdown(rows, title)), 0644)
}

var markdownEscaper = strings.NewReplacer(`*`, `\*`, `_`, `\_`, "`", "\\`", `[`, `\[`, `]`, `\]`)

func markdownEscape(s string) string {
	return markdownEscaper.Replace(s)
}

// Row is the JSON shape of one projection row.
type Row struct {
	Location    []int      `json:"location"`
	Depth       int        `json:"depth"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Kind        model.Kind `json:"kind"`
	Path        string     `json:"path,omitempty"`
	Collapsible bool       `json:"collapsible"`
	Collapsed   bool       `json:"collapsed"`
	Match       []int      `json:"match,omitempty"`
}

// Rows converts nodes into JSON rows, resolving each node's location in m.
func Rows(m *Model, nodes []Node) ([]Row, error) {
	out := make([]Row, 0, len(nodes))
	for _, n := range nodes {
		loc, ok := m.GetNodeLocation(n)
		if !ok {
			return nil, fmt.Errorf("node %q is not part of tree %s", n.Element().ID, m.User())
		}
		e := n.Element()
		out = append(out, Row{
			Location:    loc,
			Depth:       n.Depth(),
			ID:          e.ID,
			Name:        e.Name,
			Kind:        e.Kind,
			Path:        e.Path,
			Collapsible: n.Collapsible(),
			Collapsed:   n.Collapsed(),
			Match:       n.FilterData().Indexes,
		})
	}
	return out, nil
}

// WriteJSON writes the rows as an indented JSON array.
func WriteJSON(w io.Writer, m *Model, nodes []Node) error {
	rows, err := Rows(m, nodes)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	return nil
}
