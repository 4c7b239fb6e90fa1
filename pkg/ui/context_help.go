package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Context identifies which part of the UI has focus, for help lookup.
type Context string

const (
	ContextTree         Context = "tree"
	ContextFilter       Context = "filter"
	ContextRecipePicker Context = "recipe-picker"
	ContextPreview      Context = "preview"
	ContextHelp         Context = "help"
)

// ContextHelpContent contains compact help content for each context.
// Content should fit on one screen (~20 lines) without scrolling.
var ContextHelpContent = map[Context]string{
	ContextTree:         contextHelpTree,
	ContextFilter:       contextHelpFilter,
	ContextRecipePicker: contextHelpRecipePicker,
	ContextPreview:      contextHelpPreview,
}

// GetContextHelp returns the help content for a given context.
// Falls back to the tree help if the context has no specific content.
func GetContextHelp(ctx Context) string {
	if content, ok := ContextHelpContent[ctx]; ok {
		return content
	}
	return contextHelpTree
}

// RenderContextHelp renders the context-specific help modal.
func RenderContextHelp(ctx Context, theme Theme, width, height int) string {
	content := GetContextHelp(ctx)

	r := theme.Renderer

	modalWidth := 60
	if modalWidth > width-4 {
		modalWidth = width - 4
	}
	modalWidth = max(modalWidth, 24)

	titleStyle := r.NewStyle().
		Bold(true).
		Foreground(theme.Primary)
	contentStyle := r.NewStyle().
		Foreground(theme.Subtext)
	footerStyle := r.NewStyle().
		Foreground(theme.Muted).
		Italic(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Quick Reference"))
	b.WriteString("\n")
	b.WriteString(r.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", modalWidth-4)))
	b.WriteString("\n\n")
	b.WriteString(contentStyle.Render(content))
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("Esc or ? to close"))

	modalStyle := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(1, 2).
		Width(modalWidth)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modalStyle.Render(b.String()))
}

func truncate(s string, width int) string {
	return runewidth.Truncate(s, max(width, 4), "…")
}

const contextHelpTree = `## Tree

**Navigation**
  j/k ↓/↑   Move down/up
  g/G       Jump to top/bottom
  ctrl+d/u  Half page down/up
  l/→       Expand, or go to first child
  h/←       Collapse, or go to parent

**Folding**
  space     Toggle selected node
  E / C     Expand / collapse everything

**Views**
  /         Filter by name
  r         Pick a recipe
  p         Preview selected subtree
  y         Copy path to clipboard
  R         Reload from disk
  q         Quit`

const contextHelpFilter = `## Filter

  type      Edit the pattern; the tree updates live
  enter     Keep the filter and return to the tree
  esc       Clear the filter
  tab       Cycle mode: fuzzy, substring, regex

Ancestors of matches stay visible so every
match keeps its path.`

const contextHelpRecipePicker = `## Recipes

  j/k       Move selection
  enter     Apply recipe
  esc       Cancel

A recipe bundles filters, sorting, and the
initial expand depth.`

const contextHelpPreview = `## Preview

  j/k       Scroll
  esc/p     Back to the tree`
