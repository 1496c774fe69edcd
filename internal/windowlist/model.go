// Package windowlist holds the in-memory list of browser windows shown by
// the dashboard: reconciliation against fresh listings, focus tracking by
// neighbor identity, selection and tab-title search.
package windowlist

import (
	"fmt"

	"github.com/lotas/tabwrangler/internal/types"
)

// Window is one browser window in the list.
type Window struct {
	ID       types.WindowID
	Title    string // user-assigned label; empty means untitled
	Tabs     []types.Tab
	Selected bool
}

// Model is the authoritative window list. It is not safe for concurrent
// use; the dashboard drives it from a single goroutine.
type Model struct {
	windows []*Window
	focus   int // -1 when the list is empty

	// Neighbor snapshot: ids around the focused window, nearest last for
	// preceding and nearest first for following.
	preceding []types.WindowID
	following []types.WindowID

	search    searchState
	listeners []func()
}

// New returns an empty model.
func New() *Model {
	return &Model{focus: -1}
}

// OnChanged registers fn to run after every mutation of the model.
func (m *Model) OnChanged(fn func()) {
	m.listeners = append(m.listeners, fn)
}

func (m *Model) notify() {
	for _, fn := range m.listeners {
		fn()
	}
}

// Refresh reconciles the model with a fresh listing. Windows missing from
// the listing are dropped, unseen windows are appended unselected, and
// surviving windows get their tab lists replaced. Focus follows the focused
// window's identity, or its nearest surviving neighbor when it disappeared.
func (m *Model) Refresh(listing types.Listing) {
	fresh := make(map[types.WindowID][]types.Tab, len(listing))
	for _, rw := range listing {
		if _, dup := fresh[rw.ID]; !dup {
			fresh[rw.ID] = rw.Tabs
		}
	}

	var focusedID types.WindowID
	hadFocus := m.focus >= 0
	if hadFocus {
		focusedID = m.windows[m.focus].ID
	}

	kept := make([]*Window, 0, len(listing))
	present := make(map[types.WindowID]bool, len(listing))
	for _, w := range m.windows {
		tabs, ok := fresh[w.ID]
		if !ok {
			continue
		}
		w.Tabs = tabs
		kept = append(kept, w)
		present[w.ID] = true
	}
	for _, rw := range listing {
		if present[rw.ID] {
			continue
		}
		present[rw.ID] = true
		kept = append(kept, &Window{ID: rw.ID, Tabs: fresh[rw.ID]})
	}
	m.windows = kept

	m.focus = m.relocate(focusedID, hadFocus)
	m.remember()
	m.notify()
}

// relocate finds the new focus index after the list changed underneath it.
func (m *Model) relocate(id types.WindowID, hadFocus bool) int {
	if len(m.windows) == 0 {
		return -1
	}
	if !hadFocus {
		return 0
	}
	if i := m.IndexOf(id); i >= 0 {
		return i
	}
	for _, nid := range m.following {
		if i := m.IndexOf(nid); i >= 0 {
			return i
		}
	}
	for j := len(m.preceding) - 1; j >= 0; j-- {
		if i := m.IndexOf(m.preceding[j]); i >= 0 {
			return i
		}
	}
	return 0
}

// remember captures the neighbor snapshot around the current focus.
func (m *Model) remember() {
	if m.focus < 0 {
		m.preceding, m.following = nil, nil
		return
	}
	m.preceding = make([]types.WindowID, 0, m.focus)
	for _, w := range m.windows[:m.focus] {
		m.preceding = append(m.preceding, w.ID)
	}
	m.following = make([]types.WindowID, 0, len(m.windows)-m.focus-1)
	for _, w := range m.windows[m.focus+1:] {
		m.following = append(m.following, w.ID)
	}
}

// Len returns the number of windows.
func (m *Model) Len() int { return len(m.windows) }

// Focus returns the focused index, or -1 when the list is empty.
func (m *Model) Focus() int { return m.focus }

// IndexOf returns the position of the window with the given id, or -1.
func (m *Model) IndexOf(id types.WindowID) int {
	for i, w := range m.windows {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// Window returns a copy of the window at index i.
func (m *Model) Window(i int) (Window, bool) {
	if i < 0 || i >= len(m.windows) {
		return Window{}, false
	}
	return *m.windows[i], true
}

// Focused returns a copy of the focused window.
func (m *Model) Focused() (Window, bool) {
	return m.Window(m.focus)
}

// AllWindows returns copies of every window in list order.
func (m *Model) AllWindows() []Window {
	out := make([]Window, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, *w)
	}
	return out
}

// Toggle flips the selection of the window at index i.
func (m *Model) Toggle(i int) {
	if i < 0 || i >= len(m.windows) {
		return
	}
	m.windows[i].Selected = !m.windows[i].Selected
	m.notify()
}

// ClearSelection deselects every window.
func (m *Model) ClearSelection() {
	for _, w := range m.windows {
		w.Selected = false
	}
	m.notify()
}

// SetTitle labels the window at index i. The label survives refreshes for
// as long as the window does.
func (m *Model) SetTitle(i int, title string) {
	if i < 0 || i >= len(m.windows) {
		return
	}
	m.windows[i].Title = title
	m.notify()
}

// SelectedWindows returns the explicitly selected windows in list order.
// With no explicit selection it falls back to the focused window alone.
func (m *Model) SelectedWindows() []Window {
	var out []Window
	for _, w := range m.windows {
		if w.Selected {
			out = append(out, *w)
		}
	}
	if len(out) == 0 {
		if w, ok := m.Focused(); ok {
			out = append(out, w)
		}
	}
	return out
}

// SelectedCount returns the number of explicitly selected windows.
func (m *Model) SelectedCount() int {
	n := 0
	for _, w := range m.windows {
		if w.Selected {
			n++
		}
	}
	return n
}

// Remove drops the given windows without waiting for the next refresh.
// Focus moves back by one for every removed window at or before it.
func (m *Model) Remove(ids []types.WindowID) {
	drop := make(map[types.WindowID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	shift := 0
	kept := make([]*Window, 0, len(m.windows))
	for i, w := range m.windows {
		if drop[w.ID] {
			if i <= m.focus {
				shift++
			}
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == len(m.windows) {
		return
	}
	m.windows = kept

	if len(kept) == 0 {
		m.focus = -1
	} else {
		m.focus = clamp(m.focus-shift, 0, len(kept)-1)
	}
	m.remember()
	m.notify()
}

// FocusedTabs returns the tabs of the focused window.
func (m *Model) FocusedTabs() []types.Tab {
	if m.focus < 0 {
		return nil
	}
	return m.windows[m.focus].Tabs
}

// Counts returns the number of windows and the number of tabs across them.
func (m *Model) Counts() (windows, tabs int) {
	for _, w := range m.windows {
		tabs += len(w.Tabs)
	}
	return len(m.windows), tabs
}

// Label returns the list entry text for the window at index i.
func (m *Model) Label(i int) string {
	w, ok := m.Window(i)
	if !ok {
		return ""
	}
	label := types.Plural(len(w.Tabs), "tab")
	if w.Title != "" {
		label = fmt.Sprintf("%s (%s)", w.Title, label)
	}
	return label
}

// Footer summarizes the whole list, e.g. "3 windows, 12 tabs".
func (m *Model) Footer() string {
	w, t := m.Counts()
	return types.Plural(w, "window") + ", " + types.Plural(t, "tab")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
