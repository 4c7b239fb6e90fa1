package tree

import (
	"fmt"
	"strconv"
	"strings"
)

// Location addresses a node by the sibling index taken at each level,
// starting from the root. The empty location addresses the root.
type Location []int

// Clone returns a copy that does not share the backing array.
func (l Location) Clone() Location {
	if l == nil {
		return nil
	}
	return append(Location(make([]int, 0, len(l))), l...)
}

// Child returns the location of the index-th child of l.
func (l Location) Child(index int) Location {
	return append(l.Clone(), index)
}

func (l Location) String() string {
	parts := make([]string, len(l))
	for i, idx := range l {
		parts[i] = strconv.Itoa(idx)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Visibility is the outcome of evaluating a filter against one element.
type Visibility int

const (
	// Hidden removes the node from the render projection.
	Hidden Visibility = iota
	// Visible keeps the node regardless of its descendants.
	Visible
	// Recurse keeps the node only if at least one child ends up visible.
	Recurse
)

func (v Visibility) String() string {
	switch v {
	case Hidden:
		return "hidden"
	case Visible:
		return "visible"
	case Recurse:
		return "recurse"
	default:
		return fmt.Sprintf("visibility(%d)", int(v))
	}
}

// VisibleIf maps a boolean predicate result onto Visible/Hidden.
func VisibleIf(ok bool) Visibility {
	if ok {
		return Visible
	}
	return Hidden
}

// FilterResult is what a Filter returns for one element. Data is cached on
// the node (e.g. match highlight ranges) until the next evaluation.
type FilterResult[F any] struct {
	Visibility Visibility
	Data       F
}

// Filter decides the visibility of an element given the effective
// visibility of its parent.
type Filter[T, F any] interface {
	Filter(element T, parentVisibility Visibility) FilterResult[F]
}

// FilterFunc adapts a plain function to the Filter interface.
type FilterFunc[T, F any] func(element T, parentVisibility Visibility) FilterResult[F]

func (f FilterFunc[T, F]) Filter(element T, parentVisibility Visibility) FilterResult[F] {
	return f(element, parentVisibility)
}

// TreeElement is the unit of insertion: an element with its subtree.
// Collapsible and Collapsed are optional; nil means "use the model default".
// Splice also returns deleted subtrees in this shape, with Collapsed set to
// the state the node had when it was removed.
type TreeElement[T any] struct {
	Element     T
	Children    []TreeElement[T]
	Collapsible *bool
	Collapsed   *bool
}

// Node is a node of an IndexTreeModel. All state is owned by the model;
// callers read it through the accessors.
type Node[T, F any] struct {
	element  T
	parent   *Node[T, F]
	children []*Node[T, F]
	depth    int

	collapsible bool
	collapsed   bool

	visibility Visibility // last filter result
	visible    bool
	filterData F

	visibleChildrenCount int
	visibleChildIndex    int
	renderNodeCount      int
}

// Element returns the payload carried by the node.
func (n *Node[T, F]) Element() T { return n.element }

// Parent returns the containing node, or nil for the root.
func (n *Node[T, F]) Parent() *Node[T, F] { return n.parent }

// Children returns the node's children. The slice must not be modified.
func (n *Node[T, F]) Children() []*Node[T, F] { return n.children }

// Depth is 0 for the root and parent depth + 1 otherwise.
func (n *Node[T, F]) Depth() int { return n.depth }

// Collapsible reports whether the node may be collapsed.
func (n *Node[T, F]) Collapsible() bool { return n.collapsible }

// Collapsed reports the effective collapse state: a node that is not
// collapsible is never collapsed.
func (n *Node[T, F]) Collapsed() bool { return n.collapsible && n.collapsed }

// Visibility returns the result of the last filter evaluation.
func (n *Node[T, F]) Visibility() Visibility { return n.visibility }

// Visible reports the resolved visibility (Recurse folded in).
func (n *Node[T, F]) Visible() bool { return n.visible }

// FilterData returns the data attached by the last filter evaluation.
func (n *Node[T, F]) FilterData() F { return n.filterData }

// VisibleChildrenCount is the number of direct children currently visible.
func (n *Node[T, F]) VisibleChildrenCount() int { return n.visibleChildrenCount }

// VisibleChildIndex is the node's position among its visible siblings,
// or -1 when the node is not visible.
func (n *Node[T, F]) VisibleChildIndex() int { return n.visibleChildIndex }

// RenderNodeCount is the number of projection rows the node and its
// expanded, visible descendants occupy.
func (n *Node[T, F]) RenderNodeCount() int { return n.renderNodeCount }

func (n *Node[T, F]) expanded() bool {
	return !(n.collapsible && n.collapsed)
}

// treeElement snapshots the subtree rooted at n.
func (n *Node[T, F]) treeElement() TreeElement[T] {
	collapsible, collapsed := n.collapsible, n.collapsed
	el := TreeElement[T]{
		Element:     n.element,
		Collapsible: &collapsible,
		Collapsed:   &collapsed,
	}
	if len(n.children) > 0 {
		el.Children = make([]TreeElement[T], len(n.children))
		for i, child := range n.children {
			el.Children[i] = child.treeElement()
		}
	}
	return el
}
