package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabwrangler/internal/types"
)

// TabPane shows the tabs of the focused window.
type TabPane struct {
	Width  int
	Height int
}

// View renders tabs, highlighting the search match (or none when match is
// negative) and marking tabs whose URL is open elsewhere too.
func (p TabPane) View(tabs []types.Tab, match int, dups map[types.TabID]bool) string {
	rows := WindowPane{Height: p.Height}.rows()

	titleStyle := lipgloss.NewStyle()
	urlStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	matchStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	dupStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("33")) // blue
	footerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	offset := 0
	if match >= 0 {
		offset = scrollOffset(match, rows)
	}
	end := offset + rows
	if end > len(tabs) {
		end = len(tabs)
	}

	var lines []string
	for i := offset; i < end; i++ {
		tab := tabs[i]
		marker := "  "
		if dups[tab.ID] {
			marker = dupStyle.Render("⇄") + " "
		}
		lines = append(lines, marker+p.row(tab, i == match, titleStyle, matchStyle, urlStyle))
	}
	return padLines(lines, rows) + "\n" + footerStyle.Render(types.Plural(len(tabs), "tab"))
}

// row renders "title url" with the URL dimmed and cut to the room the title
// leaves. Untitled tabs show the URL alone.
func (p TabPane) row(tab types.Tab, matched bool, titleStyle, matchStyle, urlStyle lipgloss.Style) string {
	width := p.Width - 2
	style := titleStyle
	if matched {
		style = matchStyle
	}
	if tab.Title == "" {
		if !matched {
			style = urlStyle
		}
		return style.Render(truncate(tab.URL, width))
	}
	title := truncate(tab.Title, width)
	line := style.Render(title)
	if room := width - lipgloss.Width(title) - 1; room >= 4 && tab.URL != "" {
		line += " " + urlStyle.Render(truncate(tab.URL, room))
	}
	return line
}
