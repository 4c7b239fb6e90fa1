// tree.go - Tree view over the index tree model
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/indextree/pkg/filter"
	"github.com/vanderheijden86/indextree/pkg/model"
	"github.com/vanderheijden86/indextree/pkg/tree"
)

type (
	entryNode    = *tree.Node[*model.Entry, filter.Match]
	entryTree    = tree.IndexTreeModel[*model.Entry, filter.Match]
	entryElement = tree.TreeElement[*model.Entry]
	entryFilter  = tree.Filter[*model.Entry, filter.Match]
)

// TreeView renders the projection of an index tree model and keeps a
// cursor on it. The model's projection is a SliceList owned by the view;
// the cursor follows the selected node across every model update.
type TreeView struct {
	model *entryTree
	rows  *tree.SliceList[entryNode]
	theme Theme

	cursor int
	offset int // Index of the first row in the viewport
	width  int
	height int

	selected entryNode
	lostID   string // ID of a selected node removed by a splice

	unsubscribe func()
}

// NewTreeView creates an empty tree view.
func NewTreeView(theme Theme, opts tree.Options[*model.Entry, filter.Match]) *TreeView {
	rows := tree.NewSliceList[entryNode]()
	t := &TreeView{
		model: tree.NewIndexTreeModel("ui", rows, &model.Entry{Kind: model.KindGroup}, opts),
		rows:  rows,
		theme: theme,
	}
	t.unsubscribe = t.model.OnDidSplice(t.onDidSplice)
	return t
}

// Close detaches the view from the model.
func (t *TreeView) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
}

func (t *TreeView) onDidSplice(e tree.SpliceEvent[*model.Entry, filter.Match]) {
	if t.selected == nil || t.lostID != "" {
		return
	}
	for _, n := range e.DeletedNodes {
		for p := t.selected; p != nil; p = p.Parent() {
			if p == n {
				t.lostID = t.selected.Element().ID
				return
			}
		}
	}
}

// Model returns the underlying tree model.
func (t *TreeView) Model() *entryTree { return t.model }

// Rows returns a copy of the current projection.
func (t *TreeView) Rows() []entryNode { return t.rows.Items() }

// Len returns the number of rendered rows.
func (t *TreeView) Len() int { return t.rows.Len() }

// Cursor returns the selected row index.
func (t *TreeView) Cursor() int { return t.cursor }

// SetSize updates the available dimensions for the tree view
func (t *TreeView) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.scrollToCursor()
}

// SetRoots replaces every top-level element.
func (t *TreeView) SetRoots(elements []entryElement) error {
	_, err := t.model.Splice(tree.Location{0}, len(t.model.Root().Children()), elements, tree.SpliceOptions[*model.Entry, filter.Match]{})
	t.restore()
	return err
}

// SetFilter installs f and re-evaluates the whole tree.
func (t *TreeView) SetFilter(f entryFilter) {
	t.model.SetFilter(f)
	t.model.Refilter()
	t.restore()
}

// ExpandToDepth expands every node at depth <= depth, so depth 1 shows the
// children of top-level nodes; depth < 0 expands everything.
func (t *TreeView) ExpandToDepth(depth int) {
	if depth == 0 {
		return
	}
	t.model.BufferEvents(func() {
		if depth < 0 {
			_, _ = t.model.Expand(tree.Location{}, true)
			return
		}
		var walk func(n entryNode, loc tree.Location)
		walk = func(n entryNode, loc tree.Location) {
			if n.Depth() > depth {
				return
			}
			if n.Collapsed() {
				_, _ = t.model.Expand(loc, false)
			}
			for i, c := range n.Children() {
				walk(c, loc.Child(i))
			}
		}
		for i, c := range t.model.Root().Children() {
			walk(c, tree.Location{i})
		}
	})
	t.restore()
}

// SelectedNode returns the node under the cursor, or nil.
func (t *TreeView) SelectedNode() entryNode {
	if t.cursor >= 0 && t.cursor < t.rows.Len() {
		return t.rows.At(t.cursor)
	}
	return nil
}

// SelectedEntry returns the entry under the cursor, or nil.
func (t *TreeView) SelectedEntry() *model.Entry {
	if n := t.SelectedNode(); n != nil {
		return n.Element()
	}
	return nil
}

// SelectedLocation returns the location of the node under the cursor.
func (t *TreeView) SelectedLocation() (tree.Location, bool) {
	n := t.SelectedNode()
	if n == nil {
		return nil, false
	}
	return t.model.GetNodeLocation(n)
}

// GetSelectedID returns the ID of the selected entry, or empty string.
func (t *TreeView) GetSelectedID() string {
	if e := t.SelectedEntry(); e != nil {
		return e.ID
	}
	return ""
}

// MoveDown moves the cursor down one row.
func (t *TreeView) MoveDown() { t.moveTo(t.cursor + 1) }

// MoveUp moves the cursor up one row.
func (t *TreeView) MoveUp() { t.moveTo(t.cursor - 1) }

// PageDown moves cursor down by half a viewport.
func (t *TreeView) PageDown() { t.moveTo(t.cursor + t.pageSize()) }

// PageUp moves cursor up by half a viewport.
func (t *TreeView) PageUp() { t.moveTo(t.cursor - t.pageSize()) }

// JumpToTop moves cursor to the first row.
func (t *TreeView) JumpToTop() { t.moveTo(0) }

// JumpToBottom moves cursor to the last row.
func (t *TreeView) JumpToBottom() { t.moveTo(t.rows.Len() - 1) }

func (t *TreeView) pageSize() int {
	if t.height/2 < 1 {
		return 5
	}
	return t.height / 2
}

func (t *TreeView) moveTo(i int) {
	t.cursor = i
	t.clampCursor()
	t.selected = t.SelectedNode()
	t.scrollToCursor()
}

// Toggle flips the collapse state of the selected node.
func (t *TreeView) Toggle() {
	if loc, ok := t.SelectedLocation(); ok {
		_, _ = t.model.SetCollapsed(loc, nil, false)
		t.restore()
	}
}

// ExpandOrMoveToChild handles the → / l key: a collapsed node expands, an
// expanded one moves the cursor to its first visible child.
func (t *TreeView) ExpandOrMoveToChild() {
	n := t.SelectedNode()
	loc, ok := t.SelectedLocation()
	if !ok {
		return
	}
	if n.Collapsed() {
		_, _ = t.model.Expand(loc, false)
		t.restore()
		return
	}
	if n.VisibleChildrenCount() > 0 {
		// The first visible child is the next row of an expanded node.
		t.moveTo(t.cursor + 1)
	}
}

// CollapseOrJumpToParent handles the ← / h key: an expanded node with
// visible children collapses, anything else jumps to its parent.
func (t *TreeView) CollapseOrJumpToParent() {
	n := t.SelectedNode()
	loc, ok := t.SelectedLocation()
	if !ok {
		return
	}
	if n.Collapsible() && !n.Collapsed() && n.VisibleChildrenCount() > 0 {
		_, _ = t.model.Collapse(loc, false)
		t.restore()
		return
	}
	t.JumpToParent()
}

// JumpToParent moves the cursor to the parent of the selected node. A
// top-level node stays where it is.
func (t *TreeView) JumpToParent() {
	loc, ok := t.SelectedLocation()
	if !ok || len(loc) < 2 {
		return
	}
	parent, _ := t.model.GetParentNodeLocation(loc)
	if i, err := t.model.GetListIndex(parent); err == nil && i >= 0 {
		t.moveTo(i)
	}
}

// ExpandAll expands every node.
func (t *TreeView) ExpandAll() {
	_, _ = t.model.Expand(tree.Location{}, true)
	t.restore()
}

// CollapseAll collapses every node.
func (t *TreeView) CollapseAll() {
	_, _ = t.model.Collapse(tree.Location{}, true)
	t.restore()
}

// RevealMatches expands the ancestors of every node that carries filter
// match data, so matches inside collapsed containers become rows.
func (t *TreeView) RevealMatches() {
	var matches []tree.Location
	var walk func(n entryNode, loc tree.Location)
	walk = func(n entryNode, loc tree.Location) {
		if !n.Visible() {
			return
		}
		if n.Visibility() == tree.Visible && len(n.FilterData().Indexes) > 0 {
			matches = append(matches, loc)
		}
		for i, c := range n.Children() {
			walk(c, loc.Child(i))
		}
	}
	for i, c := range t.model.Root().Children() {
		walk(c, tree.Location{i})
	}
	if len(matches) == 0 {
		return
	}
	t.model.BufferEvents(func() {
		for _, loc := range matches {
			_ = t.model.ExpandTo(loc)
		}
	})
	t.restore()
}

// Resort reorders every sibling list with sortFn. Collapse state survives
// because the subtrees are re-inserted from the snapshots Splice returns.
func (t *TreeView) Resort(sortFn func([]entryElement)) error {
	var err error
	t.model.BufferEvents(func() {
		var all []entryElement
		all, err = t.model.Splice(tree.Location{0}, len(t.model.Root().Children()), nil, tree.SpliceOptions[*model.Entry, filter.Match]{})
		if err != nil {
			return
		}
		sortFn(all)
		_, err = t.model.Splice(tree.Location{0}, 0, all, tree.SpliceOptions[*model.Entry, filter.Match]{})
	})
	t.restore()
	return err
}

// FindByID returns the location of the entry with the given ID.
func (t *TreeView) FindByID(id string) (tree.Location, bool) {
	var found tree.Location
	var walk func(n entryNode, loc tree.Location) bool
	walk = func(n entryNode, loc tree.Location) bool {
		if n.Element().ID == id {
			found = loc
			return true
		}
		for i, c := range n.Children() {
			if walk(c, loc.Child(i)) {
				return true
			}
		}
		return false
	}
	for i, c := range t.model.Root().Children() {
		if walk(c, tree.Location{i}) {
			return found, true
		}
	}
	return nil, false
}

// SelectByID reveals and selects the entry with the given ID. It reports
// false when no such entry exists or the filter hides it.
func (t *TreeView) SelectByID(id string) bool {
	loc, ok := t.FindByID(id)
	if !ok {
		return false
	}
	if err := t.model.ExpandTo(loc); err != nil {
		return false
	}
	i, err := t.model.GetListIndex(loc)
	if err != nil || i < 0 {
		t.restore()
		return false
	}
	t.lostID = ""
	t.moveTo(i)
	return true
}

// ReplaceChildren swaps the children of the directory with the given ID
// for children, in one buffered update. Children that already existed keep
// their collapse state and, when the new element carries none, their
// subtree.
func (t *TreeView) ReplaceChildren(id string, children []entryElement) (bool, error) {
	loc, ok := t.FindByID(id)
	if !ok {
		return false, nil
	}
	node, err := t.model.GetNode(loc)
	if err != nil {
		return false, err
	}

	var spliceErr error
	t.model.BufferEvents(func() {
		var old []entryElement
		old, spliceErr = t.model.Splice(loc.Child(0), len(node.Children()), nil, tree.SpliceOptions[*model.Entry, filter.Match]{})
		if spliceErr != nil {
			return
		}
		byID := make(map[string]entryElement, len(old))
		for _, el := range old {
			byID[el.Element.ID] = el
		}
		merged := make([]entryElement, len(children))
		for i, el := range children {
			if prev, ok := byID[el.Element.ID]; ok {
				el.Collapsible = prev.Collapsible
				el.Collapsed = prev.Collapsed
				if len(el.Children) == 0 && el.Element.Kind == prev.Element.Kind {
					el.Children = prev.Children
				}
			}
			merged[i] = el
		}
		_, spliceErr = t.model.Splice(loc.Child(0), 0, merged, tree.SpliceOptions[*model.Entry, filter.Match]{})
	})
	t.restore()
	return true, spliceErr
}

// restore puts the cursor back on the selected node after the projection
// changed. A node that is no longer rendered hands the cursor to its
// nearest rendered ancestor; a deleted node is looked up again by ID.
func (t *TreeView) restore() {
	if t.selected != nil {
		loc, ok := t.model.GetNodeLocation(t.selected)
		if !ok && t.lostID != "" {
			loc, ok = t.FindByID(t.lostID)
		}
		if ok {
			if i := t.nearestRow(loc); i >= 0 {
				t.cursor = i
			}
		}
	}
	t.lostID = ""
	t.clampCursor()
	t.selected = t.SelectedNode()
	t.scrollToCursor()
}

func (t *TreeView) nearestRow(loc tree.Location) int {
	for ; len(loc) > 0; loc = loc[:len(loc)-1] {
		if i, err := t.model.GetListIndex(loc); err == nil && i >= 0 {
			return i
		}
	}
	return -1
}

func (t *TreeView) clampCursor() {
	t.cursor = min(t.cursor, t.rows.Len()-1)
	t.cursor = max(t.cursor, 0)
}

func (t *TreeView) scrollToCursor() {
	h := t.viewHeight()
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+h {
		t.offset = t.cursor - h + 1
	}
	t.offset = max(0, min(t.offset, t.rows.Len()-h))
}

func (t *TreeView) viewHeight() int {
	if t.height <= 0 {
		return 20
	}
	return t.height
}

// visibleRange returns the [start, end) rows inside the viewport.
func (t *TreeView) visibleRange() (start, end int) {
	start = t.offset
	end = min(start+t.viewHeight(), t.rows.Len())
	return start, end
}

// View renders the rows inside the viewport.
func (t *TreeView) View() string {
	if t.rows.Len() == 0 {
		return t.renderEmptyState()
	}
	start, end := t.visibleRange()
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, t.renderNode(t.rows.At(i), i == t.cursor))
	}
	return strings.Join(lines, "\n")
}

func (t *TreeView) renderEmptyState() string {
	msg := "No entries to display."
	if len(t.model.Root().Children()) > 0 {
		msg = "Nothing matches the current filter."
	}
	return t.theme.MutedText.Render(msg)
}

// renderNode renders one row: branch guides, expand indicator, label with
// highlighted matches, and a muted note when there is room.
func (t *TreeView) renderNode(n entryNode, isSelected bool) string {
	e := n.Element()
	var sb strings.Builder

	prefix := t.buildTreePrefix(n)
	sb.WriteString(t.theme.Guide.Render(prefix))
	sb.WriteString(t.theme.Indicator.Render(expandIndicator(n)))
	sb.WriteString(" ")

	used := runewidth.StringWidth(prefix) + 2
	avail := t.width - used
	if t.width <= 0 {
		avail = 80
	}
	avail = max(avail, 8)

	label := runewidth.Truncate(e.Label(), avail, "…")
	style := t.theme.Renderer.NewStyle().Foreground(t.theme.KindColor(e.Kind))
	if e.Kind.IsContainer() {
		style = style.Bold(true)
	}
	sb.WriteString(highlightRunes(label, matchLimit(label, e.Label(), n.FilterData().Indexes), style, t.theme.MatchText))

	if note := noteText(e); note != "" {
		if room := avail - runewidth.StringWidth(label) - 2; room > 4 {
			sb.WriteString("  ")
			sb.WriteString(t.theme.MutedText.Render(runewidth.Truncate(note, room, "…")))
		}
	}

	line := sb.String()
	if isSelected {
		line = t.theme.Selected.Render(line)
	}
	return line
}

// buildTreePrefix builds the branch characters for a node. Top-level nodes
// have no prefix; guides follow visible siblings only.
func (t *TreeView) buildTreePrefix(n entryNode) string {
	if n.Depth() <= 1 {
		return ""
	}
	var parts []string
	for a := n.Parent(); a != nil && a.Depth() > 1; a = a.Parent() {
		if hasVisibleSiblingsBelow(a) {
			parts = append(parts, "│   ")
		} else {
			parts = append(parts, "    ")
		}
	}
	// Collected bottom-up.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	if hasVisibleSiblingsBelow(n) {
		parts = append(parts, "├── ")
	} else {
		parts = append(parts, "└── ")
	}
	return strings.Join(parts, "")
}

func hasVisibleSiblingsBelow(n entryNode) bool {
	p := n.Parent()
	return p != nil && n.VisibleChildIndex() >= 0 && n.VisibleChildIndex() < p.VisibleChildrenCount()-1
}

func expandIndicator(n entryNode) string {
	switch {
	case !n.Collapsible() || len(n.Children()) == 0:
		return "•"
	case n.Collapsed():
		return "▸"
	default:
		return "▾"
	}
}

func noteText(e *model.Entry) string {
	if e.Note != "" {
		return e.Note
	}
	if e.Kind == model.KindFile && e.Size > 0 {
		return formatSize(e.Size)
	}
	return ""
}

func formatSize(size int64) string {
	return humanize.IBytes(uint64(size))
}

// matchLimit drops match indexes that fall on runes cut by truncation.
func matchLimit(truncated, full string, indexes []int) []int {
	if truncated == full {
		return indexes
	}
	keep := len([]rune(truncated)) - 1 // last rune is the ellipsis
	out := indexes[:0:0]
	for _, i := range indexes {
		if i < keep {
			out = append(out, i)
		}
	}
	return out
}

// highlightRunes renders s with base, switching to match for the runes at
// the given (sorted) indexes.
func highlightRunes(s string, indexes []int, base, match lipgloss.Style) string {
	if len(indexes) == 0 {
		return base.Render(s)
	}
	var sb, run strings.Builder
	inMatch := false
	next := 0
	flush := func() {
		if run.Len() == 0 {
			return
		}
		if inMatch {
			sb.WriteString(match.Render(run.String()))
		} else {
			sb.WriteString(base.Render(run.String()))
		}
		run.Reset()
	}
	for i, r := range []rune(s) {
		hit := next < len(indexes) && indexes[next] == i
		if hit {
			next++
		}
		if hit != inMatch {
			flush()
			inMatch = hit
		}
		run.WriteRune(r)
	}
	flush()
	return sb.String()
}
