package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// ListWidthPct is the percentage of terminal width used for the window list.
const ListWidthPct = 35

func renderHeader(label string, selected int, width int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	sourceStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	left := " " + titleStyle.Render("tabwrangler")
	if selected > 0 {
		left += "   " + selStyle.Render(fmt.Sprintf("%d selected", selected))
	}

	src := sourceStyle.Render("Source: " + label)
	gap := width - lipgloss.Width(left) - lipgloss.Width(src) - 2
	if gap < 1 {
		gap = 1
	}
	padding := lipgloss.NewStyle().Width(gap)

	return left + padding.Render("") + src + " "
}

func renderHelp(selected int) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	text := "j/k move · g/G ends · space select · t title · / ? search · n/N next · enter focus · "
	if selected > 0 {
		text += fmt.Sprintf("esc unselect · s save %d · w save as · d close %d · ", selected, selected)
	} else {
		text += "s save · w save as · d close · "
	}
	return style.Render(text + "c save all · r refresh · q quit")
}
