// Package tree implements an index-addressed tree model: an ordered n-ary
// tree of nodes that keeps a flat render projection (a List) in sync with
// its visible, expanded nodes in depth-first order.
//
// Nodes are addressed by Location. Every node caches the number of
// projection rows its subtree occupies (RenderNodeCount), so edits cost
// O(depth + siblings touched) rather than O(tree size). Refilter is the one
// operation that walks the whole tree.
//
// The model is not safe for concurrent use.
package tree

import (
	"slices"
	"time"

	"github.com/vanderheijden86/indextree/pkg/debug"
)

// Options configures an IndexTreeModel.
type Options[T, F any] struct {
	// Filter decides visibility per element. Nil means everything is visible.
	Filter Filter[T, F]

	// CollapseByDefault is the initial collapse state for inserted elements
	// that do not specify one.
	CollapseByDefault bool

	// AutoExpandSingleChildren expands the only visible child of a node
	// after that node is expanded (non-recursively), repeating downwards.
	AutoExpandSingleChildren bool

	// AllowNonCollapsibleParents keeps nodes with children non-collapsible
	// unless they are explicitly marked collapsible.
	AllowNonCollapsibleParents bool
}

// SpliceOptions carries per-call hooks used to maintain external indices.
type SpliceOptions[T, F any] struct {
	OnDidCreateNode func(node *Node[T, F])
	OnDidDeleteNode func(node *Node[T, F])
}

// SpliceEvent lists the nodes a splice inserted and deleted. Both slices
// hold only the top-level nodes of each subtree; walk their children to
// reach every affected node.
type SpliceEvent[T, F any] struct {
	InsertedNodes []*Node[T, F]
	DeletedNodes  []*Node[T, F]
}

// CollapseStateChangeEvent reports a node whose collapse state changed.
// Deep is true when the change was applied as part of a recursive update.
type CollapseStateChangeEvent[T, F any] struct {
	Node *Node[T, F]
	Deep bool
}

// IndexTreeModel is the tree model. T is the element type and F the type of
// data a filter may attach to nodes.
type IndexTreeModel[T, F any] struct {
	user string
	root *Node[T, F]
	list List[*Node[T, F]]

	filter                     Filter[T, F]
	collapseByDefault          bool
	autoExpandSingleChildren   bool
	allowNonCollapsibleParents bool

	bufferer                   *EventBufferer
	onDidSplice                *Emitter[SpliceEvent[T, F]]
	onDidChangeCollapseState   *Emitter[CollapseStateChangeEvent[T, F]]
	onDidChangeRenderNodeCount *Emitter[*Node[T, F]]
}

// NewIndexTreeModel creates an empty model whose projection is list. The
// list is assumed to be empty. user names the tree in errors and logs.
func NewIndexTreeModel[T, F any](user string, list List[*Node[T, F]], rootElement T, opts Options[T, F]) *IndexTreeModel[T, F] {
	b := &EventBufferer{}
	m := &IndexTreeModel[T, F]{
		user: user,
		list: list,
		root: &Node[T, F]{
			element:           rootElement,
			visibility:        Visible,
			visible:           true,
			visibleChildIndex: -1,
			renderNodeCount:   1,
		},
		filter:                     opts.Filter,
		collapseByDefault:          opts.CollapseByDefault,
		autoExpandSingleChildren:   opts.AutoExpandSingleChildren,
		allowNonCollapsibleParents: opts.AllowNonCollapsibleParents,
		bufferer:                   b,
	}
	m.onDidSplice = NewEmitter(b, WithMerge(func(acc, next SpliceEvent[T, F]) SpliceEvent[T, F] {
		acc.InsertedNodes = append(acc.InsertedNodes, next.InsertedNodes...)
		acc.DeletedNodes = append(acc.DeletedNodes, next.DeletedNodes...)
		return acc
	}))
	m.onDidChangeCollapseState = NewEmitter(b, WithKey(func(e CollapseStateChangeEvent[T, F]) any { return e.Node }))
	m.onDidChangeRenderNodeCount = NewEmitter(b, WithKey(func(n *Node[T, F]) any { return n }))
	return m
}

// User returns the name the model was created with.
func (m *IndexTreeModel[T, F]) User() string { return m.user }

// Root returns the synthetic root node.
func (m *IndexTreeModel[T, F]) Root() *Node[T, F] { return m.root }

// SetFilter replaces the filter. Call Refilter to apply it.
func (m *IndexTreeModel[T, F]) SetFilter(f Filter[T, F]) { m.filter = f }

// SetAutoExpandSingleChildren toggles the auto-expand policy.
func (m *IndexTreeModel[T, F]) SetAutoExpandSingleChildren(on bool) {
	m.autoExpandSingleChildren = on
}

// OnDidSplice subscribes to structural changes.
func (m *IndexTreeModel[T, F]) OnDidSplice(fn func(SpliceEvent[T, F])) func() {
	return m.onDidSplice.Subscribe(fn)
}

// OnDidChangeCollapseState subscribes to collapse state changes.
func (m *IndexTreeModel[T, F]) OnDidChangeCollapseState(fn func(CollapseStateChangeEvent[T, F])) func() {
	return m.onDidChangeCollapseState.Subscribe(fn)
}

// OnDidChangeRenderNodeCount subscribes to render count changes.
func (m *IndexTreeModel[T, F]) OnDidChangeRenderNodeCount(fn func(*Node[T, F])) func() {
	return m.onDidChangeRenderNodeCount.Subscribe(fn)
}

// BufferEvents runs fn with event delivery deferred: repeated events for
// the same node collapse into one, and splice events merge into one, all
// delivered when the outermost scope exits.
func (m *IndexTreeModel[T, F]) BufferEvents(fn func()) {
	m.bufferer.BufferEvents(fn)
}

// Splice replaces deleteCount children starting at the last index of
// location with toInsert, under the parent addressed by the rest of
// location. It returns the deleted subtrees.
func (m *IndexTreeModel[T, F]) Splice(location Location, deleteCount int, toInsert []TreeElement[T], opts SpliceOptions[T, F]) ([]TreeElement[T], error) {
	if len(location) == 0 {
		return nil, m.invalidLocation("splice", location)
	}
	p, err := m.resolveParent("splice", location)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	parent := p.node
	index := location[len(location)-1]
	deleteCount = min(max(deleteCount, 0), len(parent.children)-index)

	// A parent that gains children becomes collapsible, which may hide them.
	// Existing children go through SetCollapsible so counts and rows follow.
	if !m.allowNonCollapsibleParents && parent != m.root && !parent.collapsible &&
		len(parent.children)-deleteCount+len(toInsert) > 0 {
		collapsible := true
		if len(parent.children) == 0 {
			parent.collapsible = collapsible
		} else if _, err := m.SetCollapsible(location[:len(location)-1], &collapsible); err != nil {
			return nil, err
		}
	}
	revealed := p.revealed && p.visible && parent.expanded()

	parentVisibility := VisibleIf(parent.visible)
	var rows []*Node[T, F]
	inserted := make([]*Node[T, F], 0, len(toInsert))
	insertedRenderCount := 0
	for _, el := range toInsert {
		node := m.createNode(el, parent, parentVisibility, revealed, &rows, opts.OnDidCreateNode)
		inserted = append(inserted, node)
		insertedRenderCount += node.renderNodeCount
	}

	// Visible index of the first inserted node: one past the last visible
	// sibling before the splice point.
	visibleStart := 0
	for i := index - 1; i >= 0; i-- {
		if sibling := parent.children[i]; sibling.visible {
			visibleStart = sibling.visibleChildIndex + 1
			break
		}
	}
	insertedVisible := 0
	for _, node := range inserted {
		if node.visible {
			node.visibleChildIndex = visibleStart + insertedVisible
			insertedVisible++
		}
	}

	deleted := slices.Clone(parent.children[index : index+deleteCount])
	parent.children = slices.Replace(parent.children, index, index+deleteCount, inserted...)

	deletedVisible, deletedRenderCount := 0, 0
	for _, node := range deleted {
		if node.visible {
			deletedVisible++
			deletedRenderCount += node.renderNodeCount
		}
	}

	if delta := insertedVisible - deletedVisible; delta != 0 {
		for _, sibling := range parent.children[index+len(inserted):] {
			if sibling.visible {
				sibling.visibleChildIndex += delta
			}
		}
		parent.visibleChildrenCount += delta
	}

	m.BufferEvents(func() {
		if parent.visible && parent.expanded() {
			m.updateAncestorsRenderNodeCount(parent, insertedRenderCount-deletedRenderCount)
		}
		if revealed {
			m.list.Splice(p.listIndex, deletedRenderCount, rows)
		}

		if opts.OnDidDeleteNode != nil {
			for _, node := range deleted {
				visitPreOrder(node, opts.OnDidDeleteNode)
			}
		}

		m.onDidSplice.Fire(SpliceEvent[T, F]{InsertedNodes: inserted, DeletedNodes: deleted})

		// A Recurse parent whose visible-children count crossed zero
		// changes visibility, which can ripple up; refilter resolves it.
		if parent != m.root && parent.visibility == Recurse &&
			(parent.visibleChildrenCount > 0) != parent.visible {
			m.Refilter()
		}
	})

	debug.Log("tree %s: splice %v delete=%d insert=%d rows=-%d/+%d", m.user, location, deleteCount, len(inserted), deletedRenderCount, len(rows))
	debug.LogTiming("tree "+m.user+": splice", time.Since(start))

	result := make([]TreeElement[T], len(deleted))
	for i, node := range deleted {
		result[i] = node.treeElement()
	}
	return result, nil
}

// createNode builds the subtree for el top-down. When revealed, the node and
// its revealed descendants are appended to rows in depth-first order.
func (m *IndexTreeModel[T, F]) createNode(el TreeElement[T], parent *Node[T, F], parentVisibility Visibility, revealed bool, rows *[]*Node[T, F], onCreate func(*Node[T, F])) *Node[T, F] {
	node := &Node[T, F]{
		element:           el.Element,
		parent:            parent,
		depth:             parent.depth + 1,
		collapsed:         m.collapseByDefault,
		visibleChildIndex: -1,
	}
	if el.Collapsible != nil {
		node.collapsible = *el.Collapsible
	} else {
		node.collapsible = el.Collapsed != nil
	}
	if el.Collapsed != nil {
		node.collapsed = *el.Collapsed
	}
	if !m.allowNonCollapsibleParents && len(el.Children) > 0 {
		node.collapsible = true
	}

	visibility := m.filterNode(node, parentVisibility)
	node.visibility = visibility

	if revealed {
		*rows = append(*rows, node)
	}
	mark := len(*rows)
	childRevealed := revealed && visibility != Hidden && node.expanded()

	renderNodeCount := 1
	if len(el.Children) > 0 {
		node.children = make([]*Node[T, F], 0, len(el.Children))
	}
	for _, childEl := range el.Children {
		child := m.createNode(childEl, node, visibility, childRevealed, rows, onCreate)
		node.children = append(node.children, child)
		renderNodeCount += child.renderNodeCount
		if child.visible {
			child.visibleChildIndex = node.visibleChildrenCount
			node.visibleChildrenCount++
		}
	}

	node.visible = resolveVisible(visibility, node.visibleChildrenCount)
	switch {
	case !node.visible:
		node.renderNodeCount = 0
		if revealed {
			*rows = (*rows)[:mark-1]
		}
	case node.expanded():
		node.renderNodeCount = renderNodeCount
	default:
		node.renderNodeCount = 1
	}

	if onCreate != nil {
		onCreate(node)
	}
	return node
}

func resolveVisible(v Visibility, visibleChildren int) bool {
	if v == Recurse {
		return visibleChildren > 0
	}
	return v == Visible
}

func (m *IndexTreeModel[T, F]) filterNode(node *Node[T, F], parentVisibility Visibility) Visibility {
	if m.filter == nil {
		var zero F
		node.filterData = zero
		return Visible
	}
	result := m.filter.Filter(node.element, parentVisibility)
	node.filterData = result.Data
	return result.Visibility
}

// updateAncestorsRenderNodeCount adds diff to node and its ancestors,
// stopping at the first node whose count does not depend on its children.
func (m *IndexTreeModel[T, F]) updateAncestorsRenderNodeCount(node *Node[T, F], diff int) {
	if diff == 0 {
		return
	}
	for node != nil && node.visible && node.expanded() {
		node.renderNodeCount += diff
		m.onDidChangeRenderNodeCount.Fire(node)
		node = node.parent
	}
}

// Rerender replaces the node's row in the projection with itself, so the
// renderer repaints it. Nodes that are not rendered are ignored.
func (m *IndexTreeModel[T, F]) Rerender(location Location) error {
	r, err := m.resolve("rerender", location)
	if err != nil {
		return err
	}
	if r.node != m.root && r.revealed && r.visible {
		m.list.Splice(r.listIndex, 1, []*Node[T, F]{r.node})
	}
	return nil
}

// SetCollapsed sets the collapse state of the node at location, or toggles
// it when collapsed is nil. With recursive the state is applied to the
// whole subtree. It reports whether any node changed.
func (m *IndexTreeModel[T, F]) SetCollapsed(location Location, collapsed *bool, recursive bool) (bool, error) {
	r, err := m.resolve("setCollapsed", location)
	if err != nil {
		return false, err
	}
	target := !r.node.collapsed
	if collapsed != nil {
		target = *collapsed
	}
	var changed bool
	m.BufferEvents(func() {
		changed = m.setCollapseState(r, target, recursive)
	})
	return changed, nil
}

// Collapse is SetCollapsed(location, true, recursive).
func (m *IndexTreeModel[T, F]) Collapse(location Location, recursive bool) (bool, error) {
	collapsed := true
	return m.SetCollapsed(location, &collapsed, recursive)
}

// Expand is SetCollapsed(location, false, recursive).
func (m *IndexTreeModel[T, F]) Expand(location Location, recursive bool) (bool, error) {
	collapsed := false
	return m.SetCollapsed(location, &collapsed, recursive)
}

func (m *IndexTreeModel[T, F]) setCollapseState(r resolved[T, F], collapsed, recursive bool) bool {
	changed := m.setListNodeCollapseState(r, collapsed, recursive)

	node := r.node
	if !changed || recursive || !m.autoExpandSingleChildren || node == m.root || !node.collapsible || node.collapsed {
		return changed
	}
	only := -1
	for i, child := range node.children {
		if !child.visible {
			continue
		}
		if only >= 0 {
			return changed
		}
		only = i
	}
	if only >= 0 {
		m.setCollapseState(m.resolveChild(r, only), false, false)
	}
	return changed
}

func (m *IndexTreeModel[T, F]) setListNodeCollapseState(r resolved[T, F], collapsed, recursive bool) bool {
	node := r.node
	previous := node.renderNodeCount
	if !m.setNodeCollapseState(node, collapsed, recursive, false) {
		return false
	}
	if recursive {
		m.recountSubtree(node)
	} else {
		m.recountNode(node)
	}
	m.updateAncestorsRenderNodeCount(node.parent, node.renderNodeCount-previous)

	if r.revealed && r.visible {
		rows := m.collectRows(node, nil)
		m.list.Splice(r.listIndex+1, previous-1, rows[1:])
	}
	return true
}

func (m *IndexTreeModel[T, F]) setNodeCollapseState(node *Node[T, F], collapsed, recursive, deep bool) bool {
	changed := false
	if node != m.root && node.collapsible && node.collapsed != collapsed {
		node.collapsed = collapsed
		changed = true
		m.onDidChangeCollapseState.Fire(CollapseStateChangeEvent[T, F]{Node: node, Deep: deep})
	}
	if recursive {
		for _, child := range node.children {
			changed = m.setNodeCollapseState(child, collapsed, true, true) || changed
		}
	}
	return changed
}

// recountNode recomputes node's render count from its children's counts,
// which are always current.
func (m *IndexTreeModel[T, F]) recountNode(node *Node[T, F]) {
	count := 0
	switch {
	case !node.visible:
	case !node.expanded():
		count = 1
	default:
		count = 1
		for _, child := range node.children {
			count += child.renderNodeCount
		}
	}
	if count != node.renderNodeCount {
		node.renderNodeCount = count
		m.onDidChangeRenderNodeCount.Fire(node)
	}
}

func (m *IndexTreeModel[T, F]) recountSubtree(node *Node[T, F]) {
	for _, child := range node.children {
		m.recountSubtree(child)
	}
	m.recountNode(node)
}

// collectRows appends node (when visible) and its revealed, visible
// descendants to rows in depth-first order.
func (m *IndexTreeModel[T, F]) collectRows(node *Node[T, F], rows []*Node[T, F]) []*Node[T, F] {
	if !node.visible {
		return rows
	}
	rows = append(rows, node)
	if node.expanded() {
		for _, child := range node.children {
			rows = m.collectRows(child, rows)
		}
	}
	return rows
}

// SetCollapsible sets whether the node may collapse, or toggles it when
// collapsible is nil. A collapsed node made non-collapsible shows its
// children again.
func (m *IndexTreeModel[T, F]) SetCollapsible(location Location, collapsible *bool) (bool, error) {
	r, err := m.resolve("setCollapsible", location)
	if err != nil {
		return false, err
	}
	node := r.node
	target := !node.collapsible
	if collapsible != nil {
		target = *collapsible
	}
	if node == m.root || node.collapsible == target {
		return false, nil
	}
	m.BufferEvents(func() {
		previous := node.renderNodeCount
		node.collapsible = target
		m.onDidChangeCollapseState.Fire(CollapseStateChangeEvent[T, F]{Node: node})
		m.recountNode(node)
		if node.renderNodeCount == previous {
			return
		}
		m.updateAncestorsRenderNodeCount(node.parent, node.renderNodeCount-previous)
		if r.revealed && r.visible {
			rows := m.collectRows(node, nil)
			m.list.Splice(r.listIndex+1, previous-1, rows[1:])
		}
	})
	return true, nil
}

// IsCollapsible reports whether the node at location may collapse.
func (m *IndexTreeModel[T, F]) IsCollapsible(location Location) (bool, error) {
	node, err := m.GetNode(location)
	if err != nil {
		return false, err
	}
	return node.collapsible, nil
}

// IsCollapsed reports the effective collapse state of the node at location.
func (m *IndexTreeModel[T, F]) IsCollapsed(location Location) (bool, error) {
	node, err := m.GetNode(location)
	if err != nil {
		return false, err
	}
	return node.Collapsed(), nil
}

// ExpandTo expands every collapsed ancestor of the node at location, from
// the nearest one up to the root. The node itself is left as it is.
func (m *IndexTreeModel[T, F]) ExpandTo(location Location) error {
	if _, err := m.resolve("expandTo", location); err != nil {
		return err
	}
	var err error
	m.BufferEvents(func() {
		for depth := len(location) - 1; depth > 0; depth-- {
			var r resolved[T, F]
			r, err = m.resolve("expandTo", location[:depth])
			if err != nil {
				return
			}
			if r.node.collapsible && r.node.collapsed {
				m.setCollapseState(r, false, false)
			}
		}
	})
	return err
}

// Refilter re-evaluates the filter for every node, recomputes all cached
// counts, and replaces the whole projection in one splice.
func (m *IndexTreeModel[T, F]) Refilter() {
	defer debug.LogEnterExit("tree " + m.user + ": refilter")()

	previous := m.root.renderNodeCount
	var rows []*Node[T, F]
	m.BufferEvents(func() {
		m.refilterNode(m.root, Visible, true, &rows)
		m.list.Splice(0, previous-1, rows)
	})
	debug.Log("tree %s: refilter rows %d -> %d", m.user, previous-1, len(rows))
}

func (m *IndexTreeModel[T, F]) refilterNode(node *Node[T, F], parentVisibility Visibility, revealed bool, rows *[]*Node[T, F]) {
	if node != m.root {
		node.visibility = m.filterNode(node, parentVisibility)
		if revealed {
			*rows = append(*rows, node)
		}
	}
	mark := len(*rows)
	childRevealed := revealed && node.visibility != Hidden && node.expanded()

	renderNodeCount := 1
	visibleChildren := 0
	for _, child := range node.children {
		m.refilterNode(child, node.visibility, childRevealed, rows)
		renderNodeCount += child.renderNodeCount
		if child.visible {
			child.visibleChildIndex = visibleChildren
			visibleChildren++
		} else {
			child.visibleChildIndex = -1
		}
	}
	node.visibleChildrenCount = visibleChildren

	if node != m.root {
		node.visible = resolveVisible(node.visibility, visibleChildren)
	}
	switch {
	case !node.visible:
		renderNodeCount = 0
		if revealed {
			*rows = (*rows)[:mark-1]
		}
	case !node.expanded():
		renderNodeCount = 1
	}
	if renderNodeCount != node.renderNodeCount {
		node.renderNodeCount = renderNodeCount
		m.onDidChangeRenderNodeCount.Fire(node)
	}
}

func visitPreOrder[T, F any](node *Node[T, F], fn func(*Node[T, F])) {
	fn(node)
	for _, child := range node.children {
		visitPreOrder(child, fn)
	}
}
