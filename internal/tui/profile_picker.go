package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabwrangler/internal/firefox"
)

// ProfilePicker asks which Firefox profile's session file to read. It runs
// as its own program before the dashboard starts.
type ProfilePicker struct {
	Profiles []firefox.Profile
	Cursor   int
	Chosen   bool
	Width    int
	Height   int
}

func NewProfilePicker(profiles []firefox.Profile) ProfilePicker {
	// Pre-select the default profile
	cursor := 0
	for i, p := range profiles {
		if p.IsDefault {
			cursor = i
			break
		}
	}
	return ProfilePicker{
		Profiles: profiles,
		Cursor:   cursor,
	}
}

// PickProfile runs the picker. ok is false when the user quit without
// choosing.
func PickProfile(profiles []firefox.Profile) (p firefox.Profile, ok bool, err error) {
	final, err := tea.NewProgram(NewProfilePicker(profiles), tea.WithAltScreen()).Run()
	if err != nil {
		return firefox.Profile{}, false, err
	}
	picker := final.(ProfilePicker)
	if !picker.Chosen {
		return firefox.Profile{}, false, nil
	}
	return picker.Selected(), true, nil
}

func (m *ProfilePicker) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
}

func (m *ProfilePicker) MoveDown() {
	if m.Cursor < len(m.Profiles)-1 {
		m.Cursor++
	}
}

func (m ProfilePicker) Selected() firefox.Profile {
	return m.Profiles[m.Cursor]
}

func (m ProfilePicker) Init() tea.Cmd { return nil }

func (m ProfilePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			m.MoveUp()
		case "down", "j":
			m.MoveDown()
		case "enter":
			if len(m.Profiles) > 0 {
				m.Chosen = true
			}
			return m, tea.Quit
		case "esc", "q", "ctrl+c":
			return m, tea.Quit
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			n := int(msg.String()[0] - '0')
			if n <= len(m.Profiles) {
				m.Cursor = n - 1
				m.Chosen = true
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m ProfilePicker) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	selectedStyle := lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	normalStyle := lipgloss.NewStyle().Padding(0, 1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Read tabs from which Firefox profile?") + "\n\n")

	for i, p := range m.Profiles {
		label := fmt.Sprintf("%d. %s", i+1, p.Name)
		if p.IsDefault {
			label += " (default)"
		}
		if i == m.Cursor {
			b.WriteString(selectedStyle.Render("> "+label) + "\n")
		} else {
			b.WriteString(normalStyle.Render("  "+label) + "\n")
		}
	}

	b.WriteString("\n" + normalStyle.Render("↑↓ navigate · enter select · esc cancel"))

	box := boxStyle.Render(b.String())
	if m.Width == 0 {
		return box
	}
	return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, box)
}
