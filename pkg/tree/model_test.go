package tree

import (
	"errors"
	"reflect"
	"testing"
)

type testNode = Node[string, any]

func newTestModel(opts Options[string, any]) (*IndexTreeModel[string, any], *SliceList[*testNode]) {
	list := NewSliceList[*testNode]()
	return NewIndexTreeModel[string, any]("test", list, "root", opts), list
}

func el(name string, children ...TreeElement[string]) TreeElement[string] {
	return TreeElement[string]{Element: name, Children: children}
}

func collapsedEl(name string, children ...TreeElement[string]) TreeElement[string] {
	collapsed := true
	return TreeElement[string]{Element: name, Children: children, Collapsed: &collapsed}
}

func rows(list *SliceList[*testNode]) []string {
	out := make([]string, 0, list.Len())
	for _, n := range list.Items() {
		out = append(out, n.Element())
	}
	return out
}

func assertRows(t *testing.T, list *SliceList[*testNode], want ...string) {
	t.Helper()
	got := rows(list)
	if len(want) == 0 {
		want = []string{}
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected projection %v, got %v", want, got)
	}
}

func mustSplice(t *testing.T, m *IndexTreeModel[string, any], loc Location, deleteCount int, els ...TreeElement[string]) []TreeElement[string] {
	t.Helper()
	deleted, err := m.Splice(loc, deleteCount, els, SpliceOptions[string, any]{})
	if err != nil {
		t.Fatalf("splice %v: %v", loc, err)
	}
	return deleted
}

func boolPtr(b bool) *bool { return &b }

func filterOf(fn func(name string) Visibility) Filter[string, any] {
	return FilterFunc[string, any](func(name string, _ Visibility) FilterResult[any] {
		return FilterResult[any]{Visibility: fn(name)}
	})
}

// TestScenarioCollapsedByDefault: a collapsed parent renders one row until expanded.
func TestScenarioCollapsedByDefault(t *testing.T) {
	m, list := newTestModel(Options[string, any]{CollapseByDefault: true})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1"), el("a2")), el("b"))

	assertRows(t, list, "a", "b")

	changed, err := m.Expand(Location{0}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("expected expand to report a change")
	}
	assertRows(t, list, "a", "a1", "a2", "b")
	checkInvariants(t, m, list)
}

// TestScenarioRefilterHidesChild: refilter drops hidden rows.
func TestScenarioRefilterHidesChild(t *testing.T) {
	m, list := newTestModel(Options[string, any]{CollapseByDefault: true})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1"), el("a2")), el("b"))

	m.SetFilter(filterOf(func(name string) Visibility { return VisibleIf(name != "a2") }))
	m.Refilter()
	assertRows(t, list, "a", "b")

	if _, err := m.Expand(Location{0}, false); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "a1", "b")
	checkInvariants(t, m, list)
}

// TestScenarioRecurseVisibility: a non-matching parent stays for its matching child.
func TestScenarioRecurseVisibility(t *testing.T) {
	filter := filterOf(func(name string) Visibility {
		switch name {
		case "a", "a2":
			return Recurse
		default:
			return Visible
		}
	})
	m, list := newTestModel(Options[string, any]{Filter: filter, CollapseByDefault: true})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1"), el("a2")), el("b"))

	a, _ := m.GetNode(Location{0})
	if !a.Visible() {
		t.Error("expected a to be visible through its visible child")
	}
	a2, _ := m.GetNode(Location{0, 1})
	if a2.Visible() {
		t.Error("expected a2 (recurse, no children) to be hidden")
	}

	if _, err := m.Expand(Location{0}, true); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "a1", "b")
	checkInvariants(t, m, list)
}

// TestScenarioDeleteExpandedSubtree checks the projection and which counts change.
func TestScenarioDeleteExpandedSubtree(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1"), el("a2")), el("b"))
	assertRows(t, list, "a", "a1", "a2", "b")

	var changed []*testNode
	m.OnDidChangeRenderNodeCount(func(n *testNode) { changed = append(changed, n) })

	deleted := mustSplice(t, m, Location{0}, 1)
	assertRows(t, list, "b")

	if len(deleted) != 1 || deleted[0].Element != "a" || len(deleted[0].Children) != 2 {
		t.Errorf("expected deleted subtree a[a1 a2], got %+v", deleted)
	}
	if len(changed) != 1 || changed[0] != m.Root() {
		t.Fatalf("expected a single render count change on the root, got %d", len(changed))
	}
	if got := m.Root().RenderNodeCount(); got != 2 {
		t.Errorf("expected root render count 2, got %d", got)
	}
	b, _ := m.GetNode(Location{0})
	if b.VisibleChildIndex() != 0 {
		t.Errorf("expected b visible child index 0, got %d", b.VisibleChildIndex())
	}
	checkInvariants(t, m, list)
}

// TestScenarioExpandTo expands only the ancestors on the path.
func TestScenarioExpandTo(t *testing.T) {
	m, list := newTestModel(Options[string, any]{CollapseByDefault: true})
	mustSplice(t, m, Location{0}, 0,
		el("x", el("y", el("z", el("w", el("w1"))))),
		el("s", el("s1")),
	)
	assertRows(t, list, "x", "s")

	if err := m.ExpandTo(Location{0, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "x", "y", "z", "w", "s")

	w, _ := m.GetNode(Location{0, 0, 0, 0})
	if !w.Collapsed() {
		t.Error("expected the target node itself to stay collapsed")
	}
	s, _ := m.GetNode(Location{1})
	if !s.Collapsed() {
		t.Error("expected sibling subtree to stay collapsed")
	}
	checkInvariants(t, m, list)
}

func TestSpliceRoundTrip(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a"), el("b", el("b1")))
	before := rows(list)

	inserted := []TreeElement[string]{el("x"), el("y", el("y1")), el("z")}
	mustSplice(t, m, Location{1}, 0, inserted...)
	assertRows(t, list, "a", "x", "y", "y1", "z", "b", "b1")

	deleted := mustSplice(t, m, Location{1}, len(inserted))
	if len(deleted) != len(inserted) {
		t.Fatalf("expected %d deleted elements, got %d", len(inserted), len(deleted))
	}
	for i := range inserted {
		if deleted[i].Element != inserted[i].Element {
			t.Errorf("deleted[%d]: expected %q, got %q", i, inserted[i].Element, deleted[i].Element)
		}
	}
	if !reflect.DeepEqual(rows(list), before) {
		t.Errorf("expected projection %v after round trip, got %v", before, rows(list))
	}
	checkInvariants(t, m, list)
}

func TestSetCollapsedIdempotent(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1")))

	first, err := m.Collapse(Location{0}, false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Collapse(Location{0}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !first || second {
		t.Errorf("expected (true, false), got (%v, %v)", first, second)
	}
	assertRows(t, list, "a")
}

func TestSetCollapsedToggle(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1")))

	if _, err := m.SetCollapsed(Location{0}, nil, false); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a")
	if _, err := m.SetCollapsed(Location{0}, nil, false); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "a1")
}

func TestSetCollapsedNonCollapsibleIsNoop(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("leaf"))

	changed, err := m.Collapse(Location{0}, false)
	if err != nil {
		t.Fatalf("expected no error for non-collapsible node, got %v", err)
	}
	if changed {
		t.Error("expected collapse of a leaf to be a no-op")
	}
	assertRows(t, list, "leaf")
}

func TestSetCollapsedRecursive(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1", el("a11")), el("a2", el("a21"))), el("b"))

	var deep, shallow int
	m.OnDidChangeCollapseState(func(e CollapseStateChangeEvent[string, any]) {
		if e.Deep {
			deep++
		} else {
			shallow++
		}
	})

	if _, err := m.Collapse(Location{0}, true); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "b")
	if shallow != 1 || deep != 2 {
		t.Errorf("expected 1 shallow and 2 deep collapse events, got %d and %d", shallow, deep)
	}
	checkInvariants(t, m, list)

	// Expanding only the top keeps the descendants collapsed.
	if _, err := m.Expand(Location{0}, false); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "a1", "a2", "b")

	if _, err := m.Expand(Location{}, true); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "a1", "a11", "a2", "a21", "b")
	checkInvariants(t, m, list)
}

func TestAutoExpandSingleChildren(t *testing.T) {
	m, list := newTestModel(Options[string, any]{CollapseByDefault: true, AutoExpandSingleChildren: true})
	mustSplice(t, m, Location{0}, 0, el("a", el("b", el("c", el("c1"), el("c2")))))

	if _, err := m.Expand(Location{0}, false); err != nil {
		t.Fatal(err)
	}
	// a -> b -> c each have one child, c has two so its children stay collapsed leaves.
	assertRows(t, list, "a", "b", "c", "c1", "c2")
	checkInvariants(t, m, list)
}

func TestAutoExpandDisabledByDefault(t *testing.T) {
	m, list := newTestModel(Options[string, any]{CollapseByDefault: true})
	mustSplice(t, m, Location{0}, 0, el("a", el("b", el("c"))))

	if _, err := m.Expand(Location{0}, false); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "b")
}

func TestSpliceInvalidLocation(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1")), el("b"))

	tests := []struct {
		name string
		loc  Location
	}{
		{"root", Location{}},
		{"negative", Location{-1}},
		{"past end", Location{3}},
		{"intermediate past end", Location{2, 0}},
		{"deep past end", Location{0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Splice(tt.loc, 1, []TreeElement[string]{el("x")}, SpliceOptions[string, any]{})
			if !errors.Is(err, ErrInvalidLocation) {
				t.Fatalf("expected ErrInvalidLocation, got %v", err)
			}
			var treeErr *TreeError
			if !errors.As(err, &treeErr) {
				t.Fatalf("expected *TreeError, got %T", err)
			}
			if treeErr.User != "test" || treeErr.Op != "splice" {
				t.Errorf("unexpected error context: %+v", treeErr)
			}
			assertRows(t, list, "a", "a1", "b")
		})
	}
}

func TestSpliceAppendAndClampDeleteCount(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a"), el("b"))
	mustSplice(t, m, Location{2}, 0, el("c"))
	assertRows(t, list, "a", "b", "c")

	deleted := mustSplice(t, m, Location{1}, 10)
	if len(deleted) != 2 {
		t.Errorf("expected delete count clamped to 2, got %d", len(deleted))
	}
	assertRows(t, list, "a")
	checkInvariants(t, m, list)
}

func TestSpliceIntoCollapsedParent(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, collapsedEl("a", el("a1")), el("b"))
	assertRows(t, list, "a", "b")

	mustSplice(t, m, Location{0, 1}, 0, el("a2", el("a21")))
	assertRows(t, list, "a", "b")

	a, _ := m.GetNode(Location{0})
	if a.RenderNodeCount() != 1 {
		t.Errorf("expected collapsed a to render 1 row, got %d", a.RenderNodeCount())
	}
	checkInvariants(t, m, list)

	if _, err := m.Expand(Location{0}, false); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "a1", "a2", "a21", "b")
	checkInvariants(t, m, list)
}

func TestSpliceIntoLeafMakesItCollapsible(t *testing.T) {
	m, list := newTestModel(Options[string, any]{CollapseByDefault: true})
	mustSplice(t, m, Location{0}, 0, el("leaf"))

	mustSplice(t, m, Location{0, 0}, 0, el("child"))
	leaf, _ := m.GetNode(Location{0})
	if !leaf.Collapsible() || !leaf.Collapsed() {
		t.Errorf("expected leaf to become collapsible and keep its default collapsed state")
	}
	assertRows(t, list, "leaf")
	checkInvariants(t, m, list)
}

func TestSpliceUnderRecurseParentRefilters(t *testing.T) {
	filter := filterOf(func(name string) Visibility {
		if name == "dir" {
			return Recurse
		}
		return VisibleIf(name == "match")
	})
	m, list := newTestModel(Options[string, any]{Filter: filter})
	mustSplice(t, m, Location{0}, 0, el("dir", el("other")), el("match"))
	assertRows(t, list, "match")

	mustSplice(t, m, Location{0, 0}, 0, el("match"))
	assertRows(t, list, "dir", "match", "match")
	checkInvariants(t, m, list)

	mustSplice(t, m, Location{0, 0}, 1)
	assertRows(t, list, "match")
	checkInvariants(t, m, list)
}

func TestVisibleDescendantUnderHiddenAncestor(t *testing.T) {
	filter := filterOf(func(name string) Visibility { return VisibleIf(name != "hidden") })
	m, list := newTestModel(Options[string, any]{Filter: filter})
	mustSplice(t, m, Location{0}, 0, el("hidden", el("orphan")), el("b"))

	assertRows(t, list, "b")
	orphan, _ := m.GetNode(Location{0, 0})
	if !orphan.Visible() {
		t.Error("expected descendant to resolve visible on its own")
	}
	idx, err := m.GetListIndex(Location{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if idx != -1 {
		t.Errorf("expected orphan not to be rendered, got list index %d", idx)
	}
	hidden, _ := m.GetNode(Location{0})
	if hidden.VisibleChildrenCount() != 1 || hidden.RenderNodeCount() != 0 {
		t.Errorf("expected hidden parent with 1 visible child and 0 rows, got %d/%d",
			hidden.VisibleChildrenCount(), hidden.RenderNodeCount())
	}

	// Edits below a hidden ancestor never touch the projection.
	mustSplice(t, m, Location{0, 1}, 0, el("orphan2"))
	assertRows(t, list, "b")
	checkInvariants(t, m, list)
}

func TestSpliceHooks(t *testing.T) {
	m, _ := newTestModel(Options[string, any]{})
	byName := map[string]*testNode{}
	opts := SpliceOptions[string, any]{
		OnDidCreateNode: func(n *testNode) { byName[n.Element()] = n },
		OnDidDeleteNode: func(n *testNode) { delete(byName, n.Element()) },
	}
	if _, err := m.Splice(Location{0}, 0, []TreeElement[string]{el("a", el("a1", el("a11"))), el("b")}, opts); err != nil {
		t.Fatal(err)
	}
	if len(byName) != 4 {
		t.Fatalf("expected 4 created nodes, got %d", len(byName))
	}

	var order []string
	opts.OnDidDeleteNode = func(n *testNode) { order = append(order, n.Element()) }
	if _, err := m.Splice(Location{0}, 1, nil, opts); err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "a1", "a11"}; !reflect.DeepEqual(order, want) {
		t.Errorf("expected depth-first delete order %v, got %v", want, order)
	}
}

func TestSpliceEvent(t *testing.T) {
	m, _ := newTestModel(Options[string, any]{})
	var events []SpliceEvent[string, any]
	unsubscribe := m.OnDidSplice(func(e SpliceEvent[string, any]) { events = append(events, e) })

	mustSplice(t, m, Location{0}, 0, el("a"), el("b"))
	mustSplice(t, m, Location{0}, 1, el("c"))
	unsubscribe()
	mustSplice(t, m, Location{0}, 1)

	if len(events) != 2 {
		t.Fatalf("expected 2 splice events, got %d", len(events))
	}
	if len(events[0].InsertedNodes) != 2 || len(events[0].DeletedNodes) != 0 {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].DeletedNodes[0].Element() != "a" || events[1].InsertedNodes[0].Element() != "c" {
		t.Errorf("unexpected second event contents")
	}
}

func TestSpliceEventListsTopLevelNodes(t *testing.T) {
	m, _ := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1", el("a11"))), el("b"))

	var got SpliceEvent[string, any]
	m.OnDidSplice(func(e SpliceEvent[string, any]) { got = e })
	mustSplice(t, m, Location{0}, 1, el("c", el("c1")))

	if len(got.DeletedNodes) != 1 || got.DeletedNodes[0].Element() != "a" {
		t.Fatalf("expected only a among deleted nodes, got %d", len(got.DeletedNodes))
	}
	if len(got.InsertedNodes) != 1 || got.InsertedNodes[0].Element() != "c" {
		t.Fatalf("expected only c among inserted nodes, got %d", len(got.InsertedNodes))
	}
	if len(got.DeletedNodes[0].Children()) != 1 || got.DeletedNodes[0].Children()[0].Element() != "a1" {
		t.Error("expected the deleted subtree to stay reachable from its top node")
	}
}

func TestBufferEventsCoalesces(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1")), el("b", el("b1")))

	var collapseEvents, countEvents, spliceEvents int
	m.OnDidChangeCollapseState(func(CollapseStateChangeEvent[string, any]) { collapseEvents++ })
	m.OnDidChangeRenderNodeCount(func(*testNode) { countEvents++ })
	m.OnDidSplice(func(SpliceEvent[string, any]) { spliceEvents++ })

	m.BufferEvents(func() {
		_, _ = m.Collapse(Location{0}, false)
		_, _ = m.Expand(Location{0}, false)
		_, _ = m.Collapse(Location{0}, false)
		mustSplice(t, m, Location{2}, 0, el("c"))
		mustSplice(t, m, Location{3}, 0, el("d"))
		if collapseEvents+countEvents+spliceEvents != 0 {
			t.Error("expected no delivery inside the buffering scope")
		}
	})

	if collapseEvents != 1 {
		t.Errorf("expected 1 collapse event for node a, got %d", collapseEvents)
	}
	// a and the root changed counts.
	if countEvents != 2 {
		t.Errorf("expected 2 render count events, got %d", countEvents)
	}
	if spliceEvents != 1 {
		t.Errorf("expected splice events merged into 1, got %d", spliceEvents)
	}
	assertRows(t, list, "a", "b", "b1", "c", "d")
}

type recordingList struct {
	SliceList[*testNode]
	calls [][2]int
}

func (l *recordingList) Splice(start, deleteCount int, elements []*testNode) {
	l.calls = append(l.calls, [2]int{start, deleteCount})
	l.SliceList.Splice(start, deleteCount, elements)
}

func TestRerender(t *testing.T) {
	list := &recordingList{}
	m := NewIndexTreeModel[string, any]("test", list, "root", Options[string, any]{})
	if _, err := m.Splice(Location{0}, 0, []TreeElement[string]{el("a", el("a1")), el("b")}, SpliceOptions[string, any]{}); err != nil {
		t.Fatal(err)
	}
	list.calls = nil

	if err := m.Rerender(Location{1}); err != nil {
		t.Fatal(err)
	}
	if want := [][2]int{{2, 1}}; !reflect.DeepEqual(list.calls, want) {
		t.Errorf("expected splice calls %v, got %v", want, list.calls)
	}

	_, _ = m.Collapse(Location{0}, false)
	list.calls = nil
	if err := m.Rerender(Location{0, 0}); err != nil {
		t.Fatal(err)
	}
	if len(list.calls) != 0 {
		t.Errorf("expected no splice for an unrendered node, got %v", list.calls)
	}
}

func TestSetCollapsible(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, collapsedEl("a", el("a1")), el("b"))
	assertRows(t, list, "a", "b")

	changed, err := m.SetCollapsible(Location{0}, boolPtr(false))
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("expected collapsible change")
	}
	assertRows(t, list, "a", "a1", "b")
	collapsed, _ := m.IsCollapsed(Location{0})
	if collapsed {
		t.Error("expected non-collapsible node to report not collapsed")
	}
	checkInvariants(t, m, list)

	if _, err := m.SetCollapsible(Location{0}, nil); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "b")
	checkInvariants(t, m, list)
}

// TestSpliceRestoresCollapsibleOnParentWithChildren covers a parent that was
// made non-collapsible while collapsed and then gains another child.
func TestSpliceRestoresCollapsibleOnParentWithChildren(t *testing.T) {
	m, list := newTestModel(Options[string, any]{CollapseByDefault: true})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1")), el("b"))
	assertRows(t, list, "a", "b")

	if _, err := m.SetCollapsible(Location{0}, boolPtr(false)); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "a1", "b")

	mustSplice(t, m, Location{0, 1}, 0, el("a2"))
	assertRows(t, list, "a", "b")
	a, err := m.GetNode(Location{0})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Collapsed() {
		t.Error("expected a to be collapsible and collapsed again")
	}
	if a.RenderNodeCount() != 1 {
		t.Errorf("expected render count 1, got %d", a.RenderNodeCount())
	}
	checkInvariants(t, m, list)

	if _, err := m.Expand(Location{0}, false); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a", "a1", "a2", "b")
	checkInvariants(t, m, list)
}

func TestQueries(t *testing.T) {
	m, list := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1"), el("a2", el("a21"))), collapsedEl("b", el("b1")))
	assertRows(t, list, "a", "a1", "a2", "a21", "b")

	if !m.Has(Location{0, 1, 0}) || m.Has(Location{0, 2}) {
		t.Error("unexpected Has results")
	}

	tests := []struct {
		loc  Location
		want int
	}{
		{Location{}, -1},
		{Location{0}, 0},
		{Location{0, 1, 0}, 3},
		{Location{1}, 4},
		{Location{1, 0}, -1},
	}
	for _, tt := range tests {
		got, err := m.GetListIndex(tt.loc)
		if err != nil {
			t.Fatalf("GetListIndex(%v): %v", tt.loc, err)
		}
		if got != tt.want {
			t.Errorf("GetListIndex(%v): expected %d, got %d", tt.loc, tt.want, got)
		}
	}

	count, _ := m.GetListRenderCount(Location{0})
	if count != 4 {
		t.Errorf("expected render count 4 for a, got %d", count)
	}

	node, _ := m.GetNode(Location{0, 1, 0})
	loc, ok := m.GetNodeLocation(node)
	if !ok || !reflect.DeepEqual(loc, Location{0, 1, 0}) {
		t.Errorf("expected location [0,1,0], got %v (%v)", loc, ok)
	}

	parent, ok := m.GetParentNodeLocation(Location{0, 1, 0})
	if !ok || !reflect.DeepEqual(parent, Location{0, 1}) {
		t.Errorf("expected parent location [0,1], got %v", parent)
	}
	if _, ok := m.GetParentNodeLocation(Location{}); ok {
		t.Error("expected root to have no parent location")
	}

	pe, _ := m.GetParentElement(Location{0, 1})
	if pe != "a" {
		t.Errorf("expected parent element a, got %q", pe)
	}

	first, ok, _ := m.GetFirstElementChild(Location{0})
	if !ok || first != "a1" {
		t.Errorf("expected first child a1, got %q", first)
	}
	if _, ok, _ := m.GetFirstElementChild(Location{0, 0}); ok {
		t.Error("expected leaf to have no first child")
	}

	last, ok, _ := m.GetLastElementAncestor(Location{})
	if !ok || last != "b1" {
		t.Errorf("expected last descendant b1, got %q", last)
	}
	last, ok, _ = m.GetLastElementAncestor(Location{0})
	if !ok || last != "a21" {
		t.Errorf("expected last descendant a21, got %q", last)
	}

	if _, err := m.GetElement(Location{5}); !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
}

func TestGetNodeLocationDeletedNode(t *testing.T) {
	m, _ := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a"))
	node, _ := m.GetNode(Location{0})
	mustSplice(t, m, Location{0}, 1)

	if _, ok := m.GetNodeLocation(node); ok {
		t.Error("expected deleted node to have no location")
	}
}

func TestFilterData(t *testing.T) {
	filter := FilterFunc[string, any](func(name string, _ Visibility) FilterResult[any] {
		return FilterResult[any]{Visibility: Visible, Data: len(name)}
	})
	m, _ := newTestModel(Options[string, any]{Filter: filter})
	mustSplice(t, m, Location{0}, 0, el("abc"))

	node, _ := m.GetNode(Location{0})
	if node.FilterData() != 3 {
		t.Errorf("expected filter data 3, got %v", node.FilterData())
	}
}

func TestFilterPanicPropagates(t *testing.T) {
	filter := filterOf(func(name string) Visibility {
		if name == "bad" {
			panic("predicate failed")
		}
		return Visible
	})
	m, _ := newTestModel(Options[string, any]{Filter: filter})

	defer func() {
		if recover() == nil {
			t.Fatal("expected filter panic to reach the caller")
		}
	}()
	mustSplice(t, m, Location{0}, 0, el("ok"), el("bad"))
}

func TestDeletedSnapshotKeepsCollapseState(t *testing.T) {
	m, _ := newTestModel(Options[string, any]{})
	mustSplice(t, m, Location{0}, 0, el("a", el("a1")))
	_, _ = m.Collapse(Location{0}, false)

	deleted := mustSplice(t, m, Location{0}, 1)
	if deleted[0].Collapsed == nil || !*deleted[0].Collapsed {
		t.Error("expected deleted snapshot to carry collapsed=true")
	}

	// Reinserting the snapshot restores the state.
	list := NewSliceList[*testNode]()
	m2 := NewIndexTreeModel[string, any]("test2", list, "root", Options[string, any]{})
	if _, err := m2.Splice(Location{0}, 0, deleted, SpliceOptions[string, any]{}); err != nil {
		t.Fatal(err)
	}
	assertRows(t, list, "a")
}

func TestLocationHelpers(t *testing.T) {
	loc := Location{1, 2}
	child := loc.Child(3)
	child[0] = 9
	if loc[0] != 1 {
		t.Error("expected Child to copy the location")
	}
	if got := (Location{0, 4}).String(); got != "[0,4]" {
		t.Errorf("expected [0,4], got %s", got)
	}
	if Recurse.String() != "recurse" || Visibility(7).String() != "visibility(7)" {
		t.Error("unexpected visibility strings")
	}
}
