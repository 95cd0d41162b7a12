package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Palette colours.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
)

// styles renders command output. Colours are dropped automatically when
// the writer is not a terminal.
type styles struct {
	renderer *lipgloss.Renderer

	Title   lipgloss.Style
	Header  lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	return &styles{
		renderer: r,
		Title:    r.NewStyle().Bold(true).Foreground(colourPrimary),
		Header:   r.NewStyle().Bold(true).Foreground(colourPrimary).PaddingRight(2),
		Muted:    r.NewStyle().Foreground(colourMuted),
		Success:  r.NewStyle().Foreground(colourSuccess),
		Warning:  r.NewStyle().Foreground(colourWarning),
		Error:    r.NewStyle().Foreground(colourError),
	}
}

// state colours a resource state.
func (s *styles) state(state string) string {
	switch state {
	case "idle":
		return s.Success.Render(state)
	case "syncing", "enabling", "disabling":
		return s.Warning.Render(state)
	case "error_backoff":
		return s.Error.Render(state)
	default:
		return s.Muted.Render(state)
	}
}

// table renders rows under headers without borders.
func (s *styles) table(headers []string, rows [][]string) string {
	cell := s.renderer.NewStyle().PaddingRight(2)
	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return cell
		}).
		String()
}

// yesNo renders a boolean for tables.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
