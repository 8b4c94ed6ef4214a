// Package treefmt renders tokens, trees, diagnostics and reparse stats for
// the CLI: human-readable text, JSON, msgpack and s-expressions.
package treefmt

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Styles holds the lipgloss renderers; the no-color set renders plain text.
type Styles struct {
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Info     lipgloss.Style
	Path     lipgloss.Style
	Code     lipgloss.Style
	Source   lipgloss.Style
	Caret    lipgloss.Style
	Header   lipgloss.Style
	Border   lipgloss.Style
	Fallback lipgloss.Style
	Reused   lipgloss.Style
	Dim      lipgloss.Style
}

func NewStyles(color bool) *Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return &Styles{
			Error: plain, Warning: plain, Info: plain, Path: plain, Code: plain, Source: plain,
			Caret: plain, Header: plain, Border: plain, Fallback: plain, Reused: plain, Dim: plain,
		}
	}
	return &Styles{
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		Info:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		Path:     lipgloss.NewStyle().Bold(true),
		Code:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Source:   lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		Caret:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7")),
		Border:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Fallback: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Reused:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Truncate cuts s to width display cells, marking the cut with "...".
func Truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// pad fills s with spaces up to width display cells.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
