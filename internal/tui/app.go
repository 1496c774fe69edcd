package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabwrangler/internal/applog"
	"github.com/lotas/tabwrangler/internal/persist"
	"github.com/lotas/tabwrangler/internal/source"
	"github.com/lotas/tabwrangler/internal/types"
	"github.com/lotas/tabwrangler/internal/urlfilter"
	"github.com/lotas/tabwrangler/internal/windowlist"
)

// --- Messages ---

// listedMsg carries a fresh listing. key, when set, is the keypress that
// asked for the refresh; it is applied once the listing is in.
type listedMsg struct {
	listing types.Listing
	err     error
	key     *tea.KeyMsg
}

// doneMsg reports a save or close. removed lists the windows that are gone
// from the browser and can be dropped before the next refresh.
type doneMsg struct {
	status  string
	err     error
	removed []types.WindowID
}

type focusedMsg struct {
	id  types.WindowID
	err error
}

type changedMsg struct{}

// Options wires the shell to a tab source.
type Options struct {
	Source  source.Source
	Engine  *persist.Engine
	Label   string          // shown in the header, e.g. "bridge :19191"
	Changes <-chan struct{} // optional change notifications from the source
}

type inputMode int

const (
	modeNormal inputMode = iota
	modeSearch
	modeSaveName
	modeTitle
)

// --- Model ---

type Model struct {
	list    *windowlist.Model
	src     source.Source
	engine  *persist.Engine
	label   string
	changes <-chan struct{}

	// UI state
	windows WindowPane
	tabs    TabPane
	input   textinput.Model
	mode    inputMode
	status  string
	isErr   bool
	busy    bool
	loaded  bool
	dups    *dupIndex
	width   int
	height  int

	// status shows a failed refresh, cleared by the next good one
	listFailed bool

	// windows captured when a prompt opened
	pending []windowlist.Window
}

func NewModel(opts Options) Model {
	engine := opts.Engine
	if engine == nil {
		engine = persist.New(opts.Source, ".")
	}
	list := windowlist.New()
	dups := &dupIndex{ids: map[types.TabID]bool{}}
	list.OnChanged(func() { dups.rebuild(list) })
	return Model{
		list:    list,
		src:     opts.Source,
		engine:  engine,
		label:   opts.Label,
		changes: opts.Changes,
		dups:    dups,
	}
}

func (m Model) Init() tea.Cmd {
	if m.changes != nil {
		return tea.Batch(m.refresh(nil), waitForChange(m.changes))
	}
	return m.refresh(nil)
}

// --- Command helpers ---

func (m Model) refresh(key *tea.KeyMsg) tea.Cmd {
	src := m.src
	return func() tea.Msg {
		listing, err := src.List(context.Background())
		return listedMsg{listing: listing, err: err, key: key}
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func windowIDs(windows []windowlist.Window) []types.WindowID {
	ids := make([]types.WindowID, len(windows))
	for i, w := range windows {
		ids[i] = w.ID
	}
	return ids
}

func (m Model) saveCmd(windows []windowlist.Window, name string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		status, closed, err := engine.SaveAndClose(context.Background(), windows, name)
		return doneMsg{status: status, err: err, removed: closed}
	}
}

func (m Model) closeCmd(windows []windowlist.Window) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		status, err := engine.Close(context.Background(), windows)
		return doneMsg{status: status, err: err, removed: windowIDs(windows)}
	}
}

func (m Model) focusCmd(id types.WindowID) tea.Cmd {
	f, ok := m.src.(source.Focuser)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		return focusedMsg{id: id, err: f.Focus(context.Background(), id)}
	}
}

func (m *Model) setStatus(s string) {
	m.status, m.isErr = s, false
}

func (m *Model) setError(err error) {
	m.status, m.isErr = err.Error(), true
}

// dupIndex marks tabs whose URL is open more than once. The window list
// rebuilds it on every change.
type dupIndex struct {
	ids map[types.TabID]bool
}

func (d *dupIndex) rebuild(list *windowlist.Model) {
	var all []types.Tab
	for _, w := range list.AllWindows() {
		all = append(all, w.Tabs...)
	}
	d.ids = make(map[types.TabID]bool)
	for i := range urlfilter.Duplicates(all) {
		d.ids[all[i].ID] = true
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listWidth := m.width * ListWidthPct / 100
		paneHeight := m.height - 6 // header, status line, input line, borders
		m.windows.Width = listWidth
		m.windows.Height = paneHeight
		m.tabs.Width = m.width - listWidth - 4
		m.tabs.Height = paneHeight
		m.input.Width = m.width - 20
		return m, nil

	case tea.FocusMsg:
		if m.mode != modeNormal || m.busy {
			return m, nil
		}
		return m, m.refresh(nil)

	case changedMsg:
		cmds := []tea.Cmd{waitForChange(m.changes)}
		if m.mode == modeNormal && !m.busy {
			cmds = append(cmds, m.refresh(nil))
		}
		return m, tea.Batch(cmds...)

	case listedMsg:
		m.loaded = true
		if msg.err != nil {
			// The list stays as it was.
			applog.Error("refresh", msg.err)
			m.setError(msg.err)
			m.listFailed = true
		} else {
			m.list.Refresh(msg.listing)
			if m.listFailed {
				m.setStatus("")
				m.listFailed = false
			}
		}
		if msg.key == nil {
			return m, nil
		}
		if msg.err != nil && actsOnBrowser[msg.key.String()] {
			return m, nil
		}
		return m.apply(*msg.key)

	case doneMsg:
		m.busy = false
		if msg.err != nil {
			applog.Error("persist", msg.err)
			m.setError(msg.err)
			return m, m.refresh(nil)
		}
		m.list.Remove(msg.removed)
		m.setStatus(msg.status)
		return m, nil

	case focusedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, source.ErrReadOnly) {
				m.setStatus("this source cannot focus windows")
			} else {
				m.setError(msg.err)
			}
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeSaveName, modeTitle:
			return m.updatePrompt(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		if !normalKeys[msg.String()] {
			return m, nil
		}
		return m, m.refresh(&msg)
	}

	if m.mode == modeSaveName || m.mode == modeTitle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// normalKeys are the keys that refresh the list and then act on it.
var normalKeys = map[string]bool{
	"up": true, "k": true, "down": true, "j": true, "g": true, "G": true,
	" ": true, "t": true, "/": true, "?": true, "n": true, "N": true,
	"enter": true, "d": true, "s": true, "w": true, "c": true, "r": true,
	"esc": true,
}

// actsOnBrowser are skipped when the refresh before them failed, so they
// never work from a stale list.
var actsOnBrowser = map[string]bool{
	"enter": true, "d": true, "s": true, "w": true, "c": true, "t": true,
}

// apply runs a normal-mode key against the freshly refreshed list.
func (m Model) apply(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.list.Decrement()
	case "down", "j":
		m.list.Increment()
	case "g":
		m.list.First()
	case "G":
		m.list.Last()
	case " ":
		m.list.Toggle(m.list.Focus())
	case "esc":
		m.list.ClearSelection()
	case "/":
		m.list.BeginSearch(windowlist.Forward)
		m.mode = modeSearch
	case "?":
		m.list.BeginSearch(windowlist.Backward)
		m.mode = modeSearch
	case "n", "N":
		found := m.list.Next
		if msg.String() == "N" {
			found = m.list.Prev
		}
		if !found() {
			m.setStatus("no match")
		}
	case "enter":
		w, ok := m.list.Focused()
		if !ok {
			return m, nil
		}
		cmd := m.focusCmd(w.ID)
		if cmd == nil {
			m.setStatus("this source cannot focus windows")
		}
		return m, cmd
	case "t":
		w, ok := m.list.Focused()
		if !ok {
			return m, nil
		}
		m.pending = []windowlist.Window{w}
		m.mode = modeTitle
		return m, m.openPrompt(w.Title)
	case "w":
		windows := m.list.SelectedWindows()
		if len(windows) == 0 {
			return m, nil
		}
		m.pending = windows
		m.mode = modeSaveName
		return m, m.openPrompt("")
	case "s", "c", "d":
		windows := m.list.SelectedWindows()
		if msg.String() == "c" {
			windows = m.list.AllWindows()
		}
		if len(windows) == 0 {
			m.setStatus("no windows")
			return m, nil
		}
		m.busy = true
		if msg.String() == "d" {
			return m, m.closeCmd(windows)
		}
		return m, m.saveCmd(windows, "")
	case "r":
		if !m.isErr {
			m.setStatus("refreshed")
		}
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.list.CommitSearch()
	case tea.KeyEsc, tea.KeyCtrlC:
		m.list.CancelSearch()
	case tea.KeyBackspace:
		m.list.Backspace()
	case tea.KeyCtrlU:
		m.list.ClearQuery()
	case tea.KeySpace:
		m.list.AppendQuery(' ')
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.list.AppendQuery(r)
		}
	}
	if !m.list.Searching() {
		m.mode = modeNormal
	}
	return m, nil
}

func (m *Model) openPrompt(initial string) tea.Cmd {
	ti := textinput.New()
	ti.CharLimit = 128
	ti.Width = m.width - 20
	ti.Prompt = ""
	ti.Cursor.SetMode(cursor.CursorStatic)
	switch {
	case m.mode == modeTitle:
		ti.Placeholder = "window-title"
	case len(m.pending) == 1:
		ti.Placeholder = "file-name"
	default:
		ti.Placeholder = "folder-name"
	}
	if initial != "" {
		ti.SetValue(initial)
		ti.CursorEnd()
	}
	m.input = ti
	return m.input.Focus()
}

// promptCaption labels the input line.
func (m Model) promptCaption() string {
	switch {
	case m.mode == modeTitle:
		return "title:"
	case len(m.pending) == 1:
		return "filename:"
	default:
		return "folder name:"
	}
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.mode = modeNormal
		m.pending = nil
		return m, nil
	case tea.KeyEnter:
		value := m.input.Value()
		pending := m.pending
		mode := m.mode
		m.mode = modeNormal
		m.pending = nil
		if mode == modeTitle {
			if i := m.list.IndexOf(pending[0].ID); i >= 0 {
				m.list.SetTitle(i, value)
			}
			return m, nil
		}
		m.busy = true
		return m, m.saveCmd(pending, value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.loaded {
		return fmt.Sprintf("\n  Loading windows from %s...\n", m.label)
	}

	header := renderHeader(m.label, m.list.SelectedCount(), m.width)

	listBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(m.windows.Width).
		Height(m.windows.Height)

	tabBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.tabs.Width).
		Height(m.tabs.Height)

	m.windows.Focus = m.list.Focus()
	left := listBorder.Render(m.windows.View(m.list))

	match, ok := m.list.Match()
	if !ok {
		match = -1
	}
	right := tabBorder.Render(m.tabs.View(m.list.FocusedTabs(), match, m.dups.ids))
	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	return lipgloss.JoinVertical(lipgloss.Left, header, panes, m.statusLine(), m.inputLine())
}

func (m Model) statusLine() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	switch {
	case m.busy:
		return style.Render("working...")
	case m.isErr:
		return style.Foreground(lipgloss.Color("196")).Render("error: " + m.status)
	}
	return style.Render(m.status)
}

func (m Model) inputLine() string {
	style := lipgloss.NewStyle().Padding(0, 1)
	switch m.mode {
	case modeSearch:
		return style.Render(m.list.SearchDirection().Prompt() + m.list.Query() + "█")
	case modeSaveName, modeTitle:
		return style.Render(m.promptCaption() + " " + m.input.View())
	}
	return renderHelp(m.list.SelectedCount())
}
