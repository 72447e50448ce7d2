package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// theme is the colour palette for terminal output.
type theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Border    lipgloss.Color
}

func defaultTheme() theme {
	return theme{
		Primary:   lipgloss.Color("#7C3AED"), // Purple
		Secondary: lipgloss.Color("#06B6D4"), // Cyan
		Muted:     lipgloss.Color("#6C7086"), // Medium gray
		Success:   lipgloss.Color("#A6E3A1"), // Green
		Warning:   lipgloss.Color("#F9E2AF"), // Yellow
		Error:     lipgloss.Color("#F38BA8"), // Red
		Border:    lipgloss.Color("#45475A"), // Border gray
	}
}

// styles renders command output. Plain styles render text unchanged.
type styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Snippet  lipgloss.Style
}

func newStyles(t theme) *styles {
	return &styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Subtitle: lipgloss.NewStyle().Foreground(t.Secondary),
		Muted:    lipgloss.NewStyle().Foreground(t.Muted),
		Success:  lipgloss.NewStyle().Foreground(t.Success),
		Warning:  lipgloss.NewStyle().Foreground(t.Warning),
		Snippet: lipgloss.NewStyle().
			PaddingLeft(1).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Border),
	}
}

func plainStyles() *styles {
	plain := lipgloss.NewStyle()
	return &styles{
		Title:    plain,
		Subtitle: plain,
		Muted:    plain,
		Success:  plain,
		Warning:  plain,
		Snippet:  plain.PaddingLeft(6),
	}
}

// stylesFor returns coloured styles when w is a terminal.
func stylesFor(w io.Writer) *styles {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return newStyles(defaultTheme())
	}
	return plainStyles()
}

// snippet shortens text to at most n runes on a single line.
func snippet(text string, n int) string {
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' || r == '\r' || r == '\t' {
			runes[i] = ' '
		}
	}
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
