package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabwrangler/internal/windowlist"
)

// WindowPane renders the window list with its footer.
type WindowPane struct {
	Focus  int
	Width  int
	Height int
}

// rows is the number of list lines that fit above the footer.
func (p WindowPane) rows() int {
	if p.Height < 2 {
		return 20
	}
	return p.Height - 1
}

// View renders the list scrolled so the focused window is visible.
func (p WindowPane) View(list *windowlist.Model) string {
	rows := p.rows()
	footerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	if list.Len() == 0 {
		return padLines([]string{"No windows."}, rows) + "\n" + footerStyle.Render(list.Footer())
	}

	offset := scrollOffset(p.Focus, rows)
	end := offset + rows
	if end > list.Len() {
		end = list.Len()
	}

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	var lines []string
	for i := offset; i < end; i++ {
		w, _ := list.Window(i)
		prefix := "  "
		if w.Selected {
			prefix = "▸ "
		}
		line := prefix + truncate(list.Label(i), p.Width-len(prefix))
		switch {
		case i == p.Focus:
			line = cursorStyle.Render(padRight(line, p.Width))
		case w.Selected:
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return padLines(lines, rows) + "\n" + footerStyle.Render(list.Footer())
}

// scrollOffset returns the first visible row that keeps row i on screen.
func scrollOffset(i, rows int) int {
	if i < rows {
		return 0
	}
	return i - rows + 1
}

func padLines(lines []string, rows int) string {
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func truncate(s string, width int) string {
	if width < 2 {
		width = 2
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
