package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/indextree/pkg/config"
	"github.com/vanderheijden86/indextree/pkg/export"
	"github.com/vanderheijden86/indextree/pkg/filter"
	"github.com/vanderheijden86/indextree/pkg/model"
	"github.com/vanderheijden86/indextree/pkg/recipe"
	"github.com/vanderheijden86/indextree/pkg/tree"
)

// Options configures the tree built for the UI and for print mode.
type Options struct {
	Config  config.Config
	Recipe  recipe.Recipe
	Pattern string      // Initial filter pattern
	Mode    filter.Mode // "" uses Config.Filter.Mode
	// ExpandDepth overrides the recipe and config expand depth when set.
	ExpandDepth *int
	Title       string

	Now       func() time.Time   // Defaults to time.Now
	Refresh   func()             // Called on R; nil disables reload
	Clipboard func(string) error // Defaults to the system clipboard
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) mode() filter.Mode {
	if o.Mode != "" {
		return o.Mode
	}
	return filter.Mode(o.Config.Filter.Mode)
}

func (o Options) keepAncestors() bool {
	return o.Config.Filter.KeepAncestors || o.Recipe.View.KeepAncestors
}

func (o Options) expandDepth() int {
	switch {
	case o.ExpandDepth != nil:
		return *o.ExpandDepth
	case o.Recipe.View.ExpandDepth != 0:
		return o.Recipe.View.ExpandDepth
	default:
		return o.Config.Tree.ExpandDepth
	}
}

// composeFilter chains the recipe filter with the name query.
func composeFilter(r recipe.Recipe, pattern string, mode filter.Mode, keepAncestors bool, now time.Time) (entryFilter, error) {
	rf, err := r.Filter(now)
	if err != nil {
		return nil, err
	}
	q, err := filter.NewQuery(pattern, mode, keepAncestors)
	if err != nil {
		return nil, err
	}
	return filter.Of(rf, q), nil
}

// NewTree builds a tree view over elements as configured by opts: sorted by
// the recipe, filtered, and expanded to the configured depth.
func NewTree(elements []entryElement, theme Theme, opts Options) (*TreeView, error) {
	f, err := composeFilter(opts.Recipe, opts.Pattern, opts.mode(), opts.keepAncestors(), opts.now())
	if err != nil {
		return nil, err
	}
	tv := NewTreeView(theme, tree.Options[*model.Entry, filter.Match]{
		Filter:                     f,
		CollapseByDefault:          opts.Config.Tree.CollapseByDefault || opts.Recipe.View.CollapseByDefault,
		AutoExpandSingleChildren:   opts.Config.Tree.AutoExpandSingleChildren,
		AllowNonCollapsibleParents: opts.Config.Tree.AllowNonCollapsibleParents,
	})
	opts.Recipe.Sort.SortElements(elements)
	if err := tv.SetRoots(elements); err != nil {
		return nil, err
	}
	tv.ExpandToDepth(opts.expandDepth())
	if opts.Pattern != "" {
		tv.RevealMatches()
	}
	return tv, nil
}

// Model is the bubbletea model of the viewer.
type Model struct {
	opts  Options
	tree  *TreeView
	theme Theme

	recipes []recipe.Recipe
	recipe  recipe.Recipe
	pattern string
	mode    filter.Mode

	focus    Context
	input    textinput.Model
	picker   RecipePickerModel
	preview  viewport.Model
	renderer *glamour.TermRenderer

	ready  bool
	width  int
	height int

	status    string
	statusErr bool
}

// NewModel creates the viewer over elements.
func NewModel(elements []entryElement, theme Theme, opts Options) (Model, error) {
	tv, err := NewTree(elements, theme, opts)
	if err != nil {
		return Model{}, err
	}

	input := textinput.New()
	input.Prompt = "/"
	input.Placeholder = "filter"
	input.SetValue(opts.Pattern)

	if opts.Title == "" {
		opts.Title = "itv"
	}
	return Model{
		opts:    opts,
		tree:    tv,
		theme:   theme,
		recipes: recipe.All(opts.Config.Recipes),
		recipe:  opts.Recipe,
		pattern: opts.Pattern,
		mode:    opts.mode(),
		focus:   ContextTree,
		input:   input,
		preview: viewport.New(80, 20),
	}, nil
}

// Tree returns the tree view (exposed for testing/control).
func (m Model) Tree() *TreeView { return m.tree }

// Focus returns the focused context.
func (m Model) Focus() Context { return m.focus }

// Status returns the status line message.
func (m Model) Status() string { return m.status }

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.tree.SetSize(msg.Width, m.bodyHeight())
		m.picker.SetSize(msg.Width, m.bodyHeight())
		m.preview.Width = msg.Width
		m.preview.Height = m.bodyHeight()
		m.renderer = nil // Re-created with the new wrap width
		return m, nil

	case ReloadMsg:
		for _, c := range msg.Changes {
			m.recipe.Sort.SortElements(c.Children)
			if _, err := m.tree.ReplaceChildren(c.Dir, c.Children); err != nil {
				m.setError(fmt.Errorf("reload %s: %w", c.Dir, err))
				return m, nil
			}
		}
		m.setStatus(fmt.Sprintf("Reloaded %d director%s", len(msg.Changes), plural(len(msg.Changes), "y", "ies")))
		return m, nil

	case ReloadErrorMsg:
		m.setError(msg.Err)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.focus {
		case ContextFilter:
			return m.updateFilter(msg)
		case ContextRecipePicker:
			return m.updatePicker(msg)
		case ContextPreview:
			return m.updatePreview(msg)
		case ContextHelp:
			switch msg.String() {
			case "esc", "?", "q":
				m.focus = ContextTree
			}
			return m, nil
		default:
			return m.updateTree(msg)
		}
	}
	return m, nil
}

func (m Model) updateTree(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := m.tree
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		t.MoveDown()
	case "k", "up":
		t.MoveUp()
	case "g", "home":
		t.JumpToTop()
	case "G", "end":
		t.JumpToBottom()
	case "ctrl+d", "pgdown":
		t.PageDown()
	case "ctrl+u", "pgup":
		t.PageUp()
	case "l", "right":
		t.ExpandOrMoveToChild()
	case "h", "left":
		t.CollapseOrJumpToParent()
	case " ", "enter":
		t.Toggle()
	case "E":
		t.ExpandAll()
	case "C":
		t.CollapseAll()
	case "/":
		m.focus = ContextFilter
		m.input.SetValue(m.pattern)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case "r":
		m.picker = NewRecipePickerModel(m.recipes, m.recipe.Name, m.theme)
		m.picker.SetSize(m.width, m.bodyHeight())
		m.focus = ContextRecipePicker
	case "y":
		m.yank()
	case "p":
		m.openPreview()
	case "?":
		m.focus = ContextHelp
	case "R":
		if m.opts.Refresh != nil {
			m.opts.Refresh()
			m.setStatus("Reloading…")
		}
	case "esc":
		if m.pattern != "" {
			m.setPattern("")
		}
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.focus = ContextTree
		m.input.SetValue("")
		m.setPattern("")
		return m, nil
	case "enter":
		m.input.Blur()
		m.focus = ContextTree
		return m, nil
	case "tab":
		m.mode = nextMode(m.mode)
		m.setPattern(m.pattern)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != m.pattern {
		m.setPattern(v)
	}
	return m, cmd
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.picker.MoveDown()
	case "k", "up":
		m.picker.MoveUp()
	case "esc", "q":
		m.focus = ContextTree
	case "enter":
		m.focus = ContextTree
		if r := m.picker.SelectedRecipe(); r != nil {
			if err := m.applyRecipe(*r); err != nil {
				m.setError(err)
			}
		}
	}
	return m, nil
}

func (m Model) updatePreview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "p", "q":
		m.focus = ContextTree
		return m, nil
	}
	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	return m, cmd
}

// setPattern applies a new filter pattern. An invalid regex leaves the
// current filter in place and reports the error.
func (m *Model) setPattern(pattern string) {
	f, err := composeFilter(m.recipe, pattern, m.mode, m.opts.keepAncestors(), m.opts.now())
	if err != nil {
		m.setError(err)
		return
	}
	m.pattern = pattern
	m.tree.SetFilter(f)
	if pattern != "" {
		m.tree.RevealMatches()
	}
	m.setStatus("")
}

// applyRecipe switches recipe: new filter, new sort order, and the
// recipe's expand depth.
func (m *Model) applyRecipe(r recipe.Recipe) error {
	f, err := composeFilter(r, m.pattern, m.mode, m.opts.Config.Filter.KeepAncestors || r.View.KeepAncestors, m.opts.now())
	if err != nil {
		return err
	}
	m.recipe = r
	m.opts.Recipe = r
	if err := m.tree.Resort(r.Sort.SortElements); err != nil {
		return err
	}
	m.tree.SetFilter(f)
	if r.View.CollapseByDefault {
		m.tree.CollapseAll()
	}
	m.tree.ExpandToDepth(r.View.ExpandDepth)
	m.setStatus("Recipe: " + r.Name)
	return nil
}

func (m *Model) yank() {
	e := m.tree.SelectedEntry()
	if e == nil {
		return
	}
	text := e.Path
	if text == "" {
		text = e.ID
	}
	write := m.opts.Clipboard
	if write == nil {
		write = clipboard.WriteAll
	}
	if err := write(text); err != nil {
		m.setError(fmt.Errorf("copy to clipboard: %w", err))
		return
	}
	m.setStatus("Copied " + text)
}

func (m *Model) openPreview() {
	n := m.tree.SelectedNode()
	if n == nil {
		return
	}
	md := export.GenerateMarkdown(export.SubtreeRows(n), n.Element().Label())

	if m.renderer == nil {
		wrap := max(m.width-4, 40)
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			m.renderer = r
		}
	}
	content := md
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(md); err == nil {
			content = rendered
		} else {
			content = fmt.Sprintf("Error rendering markdown: %v\n\n%s", err, md)
		}
	}
	m.preview.SetContent(content)
	m.preview.GotoTop()
	m.focus = ContextPreview
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	var werr *WorkerError
	if errors.As(err, &werr) && werr.Retries > 1 {
		m.status = fmt.Sprintf("%v (failed %d times)", werr.Cause, werr.Retries)
	} else {
		m.status = err.Error()
	}
	m.statusErr = true
}

func (m Model) bodyHeight() int {
	return max(m.height-2, 1) // header + footer
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var body string
	switch m.focus {
	case ContextRecipePicker:
		body = m.picker.View()
	case ContextPreview:
		body = m.preview.View()
	case ContextHelp:
		body = RenderContextHelp(ContextTree, m.theme, m.width, m.bodyHeight())
	default:
		body = lipgloss.NewStyle().Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(m.tree.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m Model) renderHeader() string {
	title := m.theme.Header.Render(m.opts.Title)
	info := fmt.Sprintf(" recipe: %s", m.recipe.Name)
	if m.pattern != "" {
		info += fmt.Sprintf("  filter(%s): %s", m.mode, m.pattern)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, m.theme.MutedText.Render(truncate(info, m.width-lipgloss.Width(title))))
}

func (m Model) renderFooter() string {
	if m.focus == ContextFilter {
		return m.input.View() + m.theme.MutedText.Render(fmt.Sprintf("  [%s] tab: mode • enter: keep • esc: clear", m.mode))
	}

	count := fmt.Sprintf(" %d rows ", m.tree.Len())
	var keys string
	switch m.focus {
	case ContextPreview:
		keys = "j/k: scroll • esc: back"
	case ContextRecipePicker:
		keys = "enter: apply • esc: cancel"
	default:
		keys = "space: toggle • /: filter • r: recipe • p: preview • ?: help • q: quit"
	}

	left := m.theme.Header.Render(strings.TrimSpace(count))
	status := m.status
	style := m.theme.MutedText
	if m.statusErr {
		style = m.theme.ErrorText
	}
	right := m.theme.MutedText.Render(keys)
	room := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	mid := ""
	if status != "" && room > 4 {
		mid = " " + style.Render(truncate(status, room))
	}
	filler := max(m.width-lipgloss.Width(left)-lipgloss.Width(mid)-lipgloss.Width(right), 1)
	return left + mid + strings.Repeat(" ", filler) + right
}

func nextMode(mode filter.Mode) filter.Mode {
	switch mode {
	case filter.ModeFuzzy:
		return filter.ModeSubstring
	case filter.ModeSubstring:
		return filter.ModeRegex
	default:
		return filter.ModeFuzzy
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
