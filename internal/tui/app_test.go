package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lotas/tabwrangler/internal/persist"
	"github.com/lotas/tabwrangler/internal/source"
	"github.com/lotas/tabwrangler/internal/types"
)

// Key helpers for constructing tea.KeyMsg values.
func keyRune(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }
func keyEnter() tea.KeyMsg      { return tea.KeyMsg{Type: tea.KeyEnter} }
func keyEsc() tea.KeyMsg        { return tea.KeyMsg{Type: tea.KeyEsc} }
func keySpace() tea.KeyMsg      { return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}} }

func typeText(s string) []tea.Msg {
	var msgs []tea.Msg
	for _, r := range s {
		msgs = append(msgs, keyRune(r))
	}
	return msgs
}

func tab(window, id, title, url string) types.Tab {
	return types.Tab{ID: types.TabID{Browser: "a", Window: window, Tab: id}, Title: title, URL: url}
}

// seed returns a loaded model over two windows: a.1 with two tabs and a.2
// with one.
func seed(t *testing.T) (Model, *source.Fake, string) {
	t.Helper()
	fake := source.NewFake(
		tab("1", "10", "Go docs", "https://go.dev/doc"),
		tab("1", "11", "Rust", "https://rust-lang.org/"),
		tab("2", "20", "News", "https://news.example/"),
	)
	dir := t.TempDir()
	m := NewModel(Options{Source: fake, Engine: persist.New(fake, dir), Label: "demo"})
	m = drain(m, m.Init())
	return m, fake, dir
}

func update(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, cmd := m.Update(msg)
		m = drain(next.(Model), cmd)
	}
	return m
}

// drain runs a command and feeds back the messages the shell produces
// itself. Anything else (quit, cursor blinks) is dropped.
func drain(m Model, cmd tea.Cmd) Model {
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			m = drain(m, c)
		}
	case listedMsg, doneMsg, focusedMsg:
		m = update(m, msg)
	}
	return m
}

func TestInitLoadsListing(t *testing.T) {
	m, _, _ := seed(t)
	if !m.loaded {
		t.Fatal("model not loaded")
	}
	if got := m.list.Footer(); got != "2 windows, 3 tabs" {
		t.Errorf("footer = %q", got)
	}
	if m.list.Focus() != 0 {
		t.Errorf("focus = %d, want 0", m.list.Focus())
	}
}

func TestNavigationRefreshesFirst(t *testing.T) {
	m, fake, _ := seed(t)
	calls := fake.ListCalls

	fake.SetTabs(
		tab("1", "10", "Go docs", "https://go.dev/doc"),
		tab("2", "20", "News", "https://news.example/"),
		tab("3", "30", "Mail", "https://mail.example/"),
	)
	m = update(m, keyRune('j'))
	if fake.ListCalls != calls+1 {
		t.Errorf("list calls = %d, want %d", fake.ListCalls, calls+1)
	}
	if m.list.Len() != 3 {
		t.Fatalf("windows = %d, want 3", m.list.Len())
	}
	if m.list.Focus() != 1 {
		t.Errorf("after j: focus = %d, want 1", m.list.Focus())
	}

	m = update(m, keyRune('G'))
	if m.list.Focus() != 2 {
		t.Errorf("after G: focus = %d, want 2", m.list.Focus())
	}
	m = update(m, keyRune('g'))
	if m.list.Focus() != 0 {
		t.Errorf("after g: focus = %d, want 0", m.list.Focus())
	}
	m = update(m, keyRune('k'))
	if m.list.Focus() != 2 {
		t.Errorf("after k: focus = %d, want 2 (wrap)", m.list.Focus())
	}
}

func TestUnknownKeyDoesNotRefresh(t *testing.T) {
	m, fake, _ := seed(t)
	calls := fake.ListCalls
	update(m, keyRune('x'))
	if fake.ListCalls != calls {
		t.Errorf("list calls = %d, want %d", fake.ListCalls, calls)
	}
}

func TestSearchForwardAndCommit(t *testing.T) {
	m, fake, _ := seed(t)

	m = update(m, keyRune('/'))
	if m.mode != modeSearch {
		t.Fatalf("mode = %v, want search", m.mode)
	}
	calls := fake.ListCalls
	m = update(m, typeText("NEWS")...)
	if m.list.Focus() != 1 {
		t.Errorf("focus = %d, want 1", m.list.Focus())
	}
	if fake.ListCalls != calls {
		t.Error("typing a query should not refresh")
	}
	if !strings.Contains(m.inputLine(), "/NEWS") {
		t.Errorf("input line = %q", m.inputLine())
	}

	m = update(m, keyEnter())
	if m.mode != modeNormal || m.list.Focus() != 1 {
		t.Errorf("after commit: mode=%v focus=%d", m.mode, m.list.Focus())
	}

	m = update(m, keyRune('n'))
	if m.status != "no match" {
		t.Errorf("status = %q, want no match", m.status)
	}
}

func TestSearchCancelRestoresFocus(t *testing.T) {
	m, _, _ := seed(t)
	m = update(m, keyRune('/'))
	m = update(m, typeText("news")...)
	m = update(m, keyEsc())
	if m.mode != modeNormal {
		t.Errorf("mode = %v", m.mode)
	}
	if m.list.Focus() != 0 {
		t.Errorf("focus = %d, want 0", m.list.Focus())
	}
}

func TestSearchBackspaceOnEmptyLeavesSearch(t *testing.T) {
	m, _, _ := seed(t)
	m = update(m, keyRune('?'))
	m = update(m, tea.KeyMsg{Type: tea.KeyBackspace})
	if m.mode != modeNormal {
		t.Errorf("mode = %v, want normal", m.mode)
	}
}

func TestSaveFocusedWindow(t *testing.T) {
	m, fake, dir := seed(t)

	m = update(m, keyRune('s'))
	if m.isErr {
		t.Fatalf("error: %s", m.status)
	}
	want := "window with 2 tabs saved as " + filepath.Join("untitled", "0000")
	if m.status != want {
		t.Errorf("status = %q, want %q", m.status, want)
	}
	b, err := os.ReadFile(filepath.Join(dir, "untitled", "0000"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "Go docs\thttps://go.dev/doc\nRust\thttps://rust-lang.org/" {
		t.Errorf("file = %q", b)
	}
	if len(fake.Closed) != 1 {
		t.Errorf("close calls = %d", len(fake.Closed))
	}
	if m.list.Len() != 1 {
		t.Errorf("windows = %d, want 1", m.list.Len())
	}
}

func TestSaveSelectedWithName(t *testing.T) {
	m, fake, dir := seed(t)

	m = update(m, keySpace(), keyRune('j'), keySpace())
	if m.list.SelectedCount() != 2 {
		t.Fatalf("selected = %d, want 2", m.list.SelectedCount())
	}
	m = update(m, keyRune('w'))
	if m.mode != modeSaveName {
		t.Fatalf("mode = %v, want save name", m.mode)
	}
	if m.promptCaption() != "folder name:" {
		t.Errorf("caption = %q", m.promptCaption())
	}
	m = update(m, typeText("trip")...)
	m = update(m, keyEnter())

	for _, name := range []string{"0000", "0001"} {
		if _, err := os.Stat(filepath.Join(dir, "trip", name)); err != nil {
			t.Errorf("missing trip/%s: %v", name, err)
		}
	}
	if len(fake.Opened) != 1 {
		t.Errorf("placeholder opened %d times, want 1", len(fake.Opened))
	}
	if m.status != "2 windows and 3 tabs saved and closed" {
		t.Errorf("status = %q", m.status)
	}
}

func TestSaveNamePromptCaptionForOneWindow(t *testing.T) {
	m, _, _ := seed(t)
	m = update(m, keyRune('w'))
	if m.promptCaption() != "filename:" {
		t.Errorf("caption = %q", m.promptCaption())
	}
	m = update(m, keyEsc())
	if m.mode != modeNormal || m.pending != nil {
		t.Errorf("esc should leave the prompt")
	}
}

func TestTitleWindow(t *testing.T) {
	m, _, dir := seed(t)

	m = update(m, keyRune('t'))
	if m.mode != modeTitle {
		t.Fatalf("mode = %v, want title", m.mode)
	}
	m = update(m, typeText("Research")...)
	m = update(m, keyEnter())
	if got := m.list.Label(0); got != "Research (2 tabs)" {
		t.Errorf("label = %q", got)
	}

	// The title survives a refresh and names the saved file.
	m = update(m, keyRune('r'), keyRune('s'))
	if _, err := os.Stat(filepath.Join(dir, "Research")); err != nil {
		t.Errorf("missing titled file: %v", err)
	}
}

func TestSaveWithEmptyNameCountsAsUnnamed(t *testing.T) {
	m, _, dir := seed(t)
	m = update(m, keyRune('w'), keyEnter())
	want := "window with 2 tabs saved as " + filepath.Join("untitled", "0000")
	if m.status != want {
		t.Errorf("status = %q, want %q", m.status, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "0000")); !os.IsNotExist(err) {
		t.Errorf("file written to the base folder: %v", err)
	}
}

func TestReadOnlySaveKeepsWindowState(t *testing.T) {
	m, fake, dir := seed(t)
	fake.CloseErr = source.ErrReadOnly
	fake.OpenErr = source.ErrReadOnly

	m = update(m, keyRune('t'))
	m = update(m, typeText("Research")...)
	m = update(m, keyEnter(), keySpace())
	m = update(m, keyRune('s'))
	if m.isErr || m.status != "window with 2 tabs saved as Research" {
		t.Fatalf("status = %q (err=%v)", m.status, m.isErr)
	}
	if _, err := os.Stat(filepath.Join(dir, "Research")); err != nil {
		t.Errorf("missing saved file: %v", err)
	}
	if m.list.Len() != 2 {
		t.Errorf("windows = %d, want 2", m.list.Len())
	}

	m = update(m, keyRune('r'))
	w, ok := m.list.Window(0)
	if !ok || w.ID != (types.WindowID{Browser: "a", Window: "1"}) {
		t.Fatalf("first window = %v, want a.1", w.ID)
	}
	if w.Title != "Research" || !w.Selected {
		t.Errorf("window lost its state: title %q selected %v", w.Title, w.Selected)
	}
}

func TestEscClearsSelection(t *testing.T) {
	m, _, _ := seed(t)
	m = update(m, keySpace(), keyRune('j'), keySpace())
	if m.list.SelectedCount() != 2 {
		t.Fatalf("selected = %d, want 2", m.list.SelectedCount())
	}
	m = update(m, keyEsc())
	if m.list.SelectedCount() != 0 {
		t.Errorf("selected = %d after esc, want 0", m.list.SelectedCount())
	}
}

func TestCloseFocusedWindow(t *testing.T) {
	m, fake, _ := seed(t)
	m = update(m, keyRune('d'))
	if m.status != "closed 1 window and 2 tabs" {
		t.Errorf("status = %q", m.status)
	}
	if len(fake.Closed) != 1 || len(fake.Closed[0]) != 2 {
		t.Errorf("closed = %v", fake.Closed)
	}
}

func TestRefreshErrorKeepsListAndSkipsSave(t *testing.T) {
	m, fake, _ := seed(t)
	fake.ListErr = &source.MalformedRecordError{Record: "x", Reason: "want 3 fields"}

	m = update(m, keyRune('s'))
	if !m.isErr {
		t.Error("expected error status")
	}
	if len(fake.Closed) != 0 {
		t.Error("save ran on a stale list")
	}
	if m.list.Len() != 2 {
		t.Errorf("windows = %d, want 2", m.list.Len())
	}

	// Navigation still works on the old list.
	m = update(m, keyRune('j'))
	if m.list.Focus() != 1 {
		t.Errorf("focus = %d, want 1", m.list.Focus())
	}

	fake.ListErr = nil
	m = update(m, keyRune('r'))
	if m.isErr || m.status != "refreshed" {
		t.Errorf("status = %q (err=%v)", m.status, m.isErr)
	}
}

func TestTransportErrorOnSave(t *testing.T) {
	m, fake, _ := seed(t)
	fake.CloseErr = &source.TransportError{Op: "close", Err: errors.New("no reply")}

	m = update(m, keyRune('s'))
	if !m.isErr || !strings.Contains(m.status, "no reply") {
		t.Errorf("status = %q", m.status)
	}
	if m.busy {
		t.Error("still busy")
	}
	if m.list.Len() != 2 {
		t.Errorf("windows = %d, want 2", m.list.Len())
	}
}

func TestEnterFocusesBrowserWindow(t *testing.T) {
	m, fake, _ := seed(t)
	update(m, keyRune('j'), keyEnter())
	if len(fake.Focused) != 1 || fake.Focused[0] != (types.WindowID{Browser: "a", Window: "2"}) {
		t.Errorf("focused = %v", fake.Focused)
	}
}

func TestFocusMsgRefreshes(t *testing.T) {
	m, fake, _ := seed(t)
	fake.SetTabs(tab("9", "90", "Only", "https://only.example/"))
	m = update(m, tea.FocusMsg{})
	if m.list.Footer() != "1 window, 1 tab" {
		t.Errorf("footer = %q", m.list.Footer())
	}
}

func TestDuplicatesMarked(t *testing.T) {
	fake := source.NewFake(
		tab("1", "1", "Go", "https://go.dev/"),
		tab("2", "2", "Go again", "https://go.dev/#top"),
		tab("2", "3", "Other", "https://other.example/"),
	)
	m := NewModel(Options{Source: fake, Label: "demo"})
	m = drain(m, m.Init())
	dups := m.dups.ids
	if !dups[types.TabID{Browser: "a", Window: "1", Tab: "1"}] || !dups[types.TabID{Browser: "a", Window: "2", Tab: "2"}] {
		t.Errorf("dups = %v", dups)
	}
	if dups[types.TabID{Browser: "a", Window: "2", Tab: "3"}] {
		t.Error("unique tab marked")
	}

	// Closing the first copy clears the mark on the other one.
	m = update(m, keyRune('d'))
	if m.dups.ids[types.TabID{Browser: "a", Window: "2", Tab: "2"}] {
		t.Error("mark kept after the duplicate closed")
	}
}

func TestView(t *testing.T) {
	m, _, _ := seed(t)
	m = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	for _, want := range []string{"tabwrangler", "Source: demo", "2 windows, 3 tabs", "Go docs", "q quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m = update(m, keyRune('?'))
	m = update(m, typeText("ne")...)
	if !strings.Contains(m.View(), "?ne█") {
		t.Error("view missing search line")
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := seed(t)
	_, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestQuitWhileBusy(t *testing.T) {
	m, _, _ := seed(t)
	m.busy = true
	for _, key := range []tea.KeyMsg{keyRune('q'), {Type: tea.KeyCtrlC}} {
		_, cmd := m.Update(key)
		if cmd == nil {
			t.Fatalf("%s: expected quit command", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: expected tea.QuitMsg", key)
		}
	}
}
