package tree

import "slices"

// resolved is a node located by walking from the root.
type resolved[T, F any] struct {
	node *Node[T, F]
	// listIndex is the projection row of node, or of the splice point when
	// produced by resolveParent. Meaningful only if revealed and visible.
	listIndex int
	// revealed: every ancestor (and, for resolveParent, the parent itself)
	// is expanded.
	revealed bool
	// visible: every node on the path, node included, is visible.
	visible bool
}

// resolveParent walks to the parent of the node addressed by location. The
// last index may equal the parent's child count (append position). The
// whole location is validated before anything is returned.
func (m *IndexTreeModel[T, F]) resolveParent(op string, location Location) (resolved[T, F], error) {
	node := m.root
	listIndex := 0
	revealed, visible := true, true
	for depth, index := range location {
		last := depth == len(location)-1
		limit := len(node.children) - 1
		if last {
			limit++
		}
		if index < 0 || index > limit {
			return resolved[T, F]{}, m.invalidLocation(op, location)
		}
		for _, sibling := range node.children[:index] {
			listIndex += sibling.renderNodeCount
		}
		revealed = revealed && node.expanded()
		visible = visible && node.visible
		if last {
			break
		}
		node = node.children[index]
		listIndex++
	}
	return resolved[T, F]{node: node, listIndex: listIndex, revealed: revealed, visible: visible}, nil
}

// resolve walks to the node addressed by location. The root resolves with
// listIndex -1 so that its first child lands on row 0.
func (m *IndexTreeModel[T, F]) resolve(op string, location Location) (resolved[T, F], error) {
	if len(location) == 0 {
		return resolved[T, F]{node: m.root, listIndex: -1, revealed: true, visible: true}, nil
	}
	p, err := m.resolveParent(op, location)
	if err != nil {
		return p, err
	}
	index := location[len(location)-1]
	if index >= len(p.node.children) {
		return resolved[T, F]{}, m.invalidLocation(op, location)
	}
	node := p.node.children[index]
	return resolved[T, F]{
		node:      node,
		listIndex: p.listIndex,
		revealed:  p.revealed,
		visible:   p.visible && node.visible,
	}, nil
}

// resolveChild derives the index-th child of an already resolved node.
func (m *IndexTreeModel[T, F]) resolveChild(r resolved[T, F], index int) resolved[T, F] {
	listIndex := r.listIndex + 1
	for _, sibling := range r.node.children[:index] {
		listIndex += sibling.renderNodeCount
	}
	child := r.node.children[index]
	return resolved[T, F]{
		node:      child,
		listIndex: listIndex,
		revealed:  r.revealed && r.node.expanded(),
		visible:   r.visible && child.visible,
	}
}

// Has reports whether location addresses a node.
func (m *IndexTreeModel[T, F]) Has(location Location) bool {
	_, err := m.resolve("has", location)
	return err == nil
}

// GetNode returns the node at location; the empty location is the root.
func (m *IndexTreeModel[T, F]) GetNode(location Location) (*Node[T, F], error) {
	r, err := m.resolve("getNode", location)
	if err != nil {
		return nil, err
	}
	return r.node, nil
}

// GetElement returns the element of the node at location.
func (m *IndexTreeModel[T, F]) GetElement(location Location) (T, error) {
	node, err := m.GetNode(location)
	if err != nil {
		var zero T
		return zero, err
	}
	return node.element, nil
}

// GetListIndex returns the projection row of the node at location, or -1
// when the node is not rendered (hidden, under a collapsed ancestor, or root).
func (m *IndexTreeModel[T, F]) GetListIndex(location Location) (int, error) {
	r, err := m.resolve("getListIndex", location)
	if err != nil {
		return -1, err
	}
	if r.node == m.root || !r.revealed || !r.visible {
		return -1, nil
	}
	return r.listIndex, nil
}

// GetListRenderCount returns the render count of the node at location.
// For the root this includes the root's own (unrendered) row.
func (m *IndexTreeModel[T, F]) GetListRenderCount(location Location) (int, error) {
	node, err := m.GetNode(location)
	if err != nil {
		return 0, err
	}
	return node.renderNodeCount, nil
}

// GetNodeLocation returns the location of node by walking parent links.
// It reports false if node is not attached to this model (e.g. deleted).
// Each step scans the sibling list for the node's index, so the cost is
// the sum of sibling counts along the path, not just its depth.
func (m *IndexTreeModel[T, F]) GetNodeLocation(node *Node[T, F]) (Location, bool) {
	var location Location
	for node != m.root {
		if node == nil || node.parent == nil {
			return nil, false
		}
		index := slices.Index(node.parent.children, node)
		if index < 0 {
			return nil, false
		}
		location = append(location, index)
		node = node.parent
	}
	slices.Reverse(location)
	return location, true
}

// GetParentNodeLocation returns the location of the parent of location.
// It reports false for the root, which has no parent.
func (m *IndexTreeModel[T, F]) GetParentNodeLocation(location Location) (Location, bool) {
	if len(location) == 0 {
		return nil, false
	}
	return location[:len(location)-1].Clone(), true
}

// GetParentElement returns the element of the parent of the node at location.
func (m *IndexTreeModel[T, F]) GetParentElement(location Location) (T, error) {
	var zero T
	if len(location) == 0 {
		return zero, m.invalidLocation("getParentElement", location)
	}
	node, err := m.GetNode(location)
	if err != nil {
		return zero, err
	}
	return node.parent.element, nil
}

// GetFirstElementChild returns the element of the first child of the node
// at location, reporting false when it has none.
func (m *IndexTreeModel[T, F]) GetFirstElementChild(location Location) (T, bool, error) {
	var zero T
	node, err := m.GetNode(location)
	if err != nil {
		return zero, false, err
	}
	if len(node.children) == 0 {
		return zero, false, nil
	}
	return node.children[0].element, true, nil
}

// GetLastElementAncestor returns the deepest last visible descendant of the
// node at location, following the last visible child at every level. It
// reports false when the node has no visible children.
func (m *IndexTreeModel[T, F]) GetLastElementAncestor(location Location) (T, bool, error) {
	var zero T
	node, err := m.GetNode(location)
	if err != nil {
		return zero, false, err
	}
	last := lastVisibleChild(node)
	if last == nil {
		return zero, false, nil
	}
	for next := lastVisibleChild(last); next != nil; next = lastVisibleChild(last) {
		last = next
	}
	return last.element, true, nil
}

func lastVisibleChild[T, F any](node *Node[T, F]) *Node[T, F] {
	for i := len(node.children) - 1; i >= 0; i-- {
		if node.children[i].visible {
			return node.children[i]
		}
	}
	return nil
}
