package windowlist

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/lotas/tabwrangler/internal/types"
)

// Direction is the order in which search candidates are visited.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) flip() Direction {
	if d == Forward {
		return Backward
	}
	return Forward
}

// Prompt returns the vi-style prompt character for the direction.
func (d Direction) Prompt() string {
	if d == Backward {
		return "?"
	}
	return "/"
}

type searchState struct {
	active bool
	query  string
	anchor int
	dir    Direction

	// last committed query, replayed by Next and Prev
	last    string
	lastDir Direction

	// tab that produced the current focus, if any
	matchWindow types.WindowID
	matchTab    int
	matched     bool
}

// Searching reports whether a search is being typed.
func (m *Model) Searching() bool { return m.search.active }

// Query returns the query being typed.
func (m *Model) Query() string { return m.search.query }

// SearchDirection returns the direction of the active or last search.
func (m *Model) SearchDirection() Direction {
	if m.search.active {
		return m.search.dir
	}
	return m.search.lastDir
}

// Match returns the index, within the focused window, of the tab matched by
// the most recent search pass. ok is false when focus did not come from a
// search match.
func (m *Model) Match() (tab int, ok bool) {
	if !m.search.matched || m.focus < 0 || m.windows[m.focus].ID != m.search.matchWindow {
		return 0, false
	}
	return m.search.matchTab, true
}

// BeginSearch enters search mode anchored at the current focus.
func (m *Model) BeginSearch(dir Direction) {
	m.search.active = true
	m.search.query = ""
	m.search.dir = dir
	m.search.anchor = m.focus
	m.search.matched = false
}

// AppendQuery adds r to the query and searches again from the anchor.
func (m *Model) AppendQuery(r rune) {
	if !m.search.active {
		return
	}
	m.search.query += string(r)
	m.runPass()
}

// Backspace removes the last rune of the query. On an empty query it
// cancels the search instead and returns false.
func (m *Model) Backspace() bool {
	if !m.search.active {
		return false
	}
	if m.search.query == "" {
		m.CancelSearch()
		return false
	}
	q := []rune(m.search.query)
	m.search.query = string(q[:len(q)-1])
	m.runPass()
	return true
}

// ClearQuery empties the query, which returns focus to the anchor.
func (m *Model) ClearQuery() {
	if !m.search.active {
		return
	}
	m.search.query = ""
	m.runPass()
}

// CancelSearch restores the focus held when the search began and leaves
// search mode.
func (m *Model) CancelSearch() {
	if !m.search.active {
		return
	}
	m.search.active = false
	m.search.query = ""
	m.search.matched = false
	if a := m.search.anchor; a >= 0 && a < len(m.windows) && a != m.focus {
		m.setFocus(a)
	}
}

// CommitSearch leaves search mode keeping the current focus. The query is
// kept for Next and Prev.
func (m *Model) CommitSearch() {
	if !m.search.active {
		return
	}
	if m.search.query != "" {
		m.search.last = m.search.query
		m.search.lastDir = m.search.dir
	}
	m.search.active = false
	m.search.query = ""
}

// Next repeats the last committed search in its original direction,
// starting from the current focus. It reports whether a match was found.
func (m *Model) Next() bool {
	return m.repeat(m.search.lastDir)
}

// Prev repeats the last committed search in the opposite direction.
func (m *Model) Prev() bool {
	return m.repeat(m.search.lastDir.flip())
}

func (m *Model) repeat(dir Direction) bool {
	if m.search.active || m.search.last == "" || len(m.windows) == 0 {
		return false
	}
	m.search.anchor = m.focus
	return m.pass(m.search.last, dir, m.search.anchor)
}

// runPass searches for the typed query. An empty query puts focus back on
// the anchor.
func (m *Model) runPass() {
	if m.search.query == "" {
		m.search.matched = false
		if a := m.search.anchor; a >= 0 && a < len(m.windows) && a != m.focus {
			m.setFocus(a)
		}
		return
	}
	m.pass(m.search.query, m.search.dir, m.search.anchor)
}

// pass moves focus to the first window, after the anchor in the given
// direction and wrapping around, holding a tab whose title contains query
// case-insensitively. The anchor itself is not a candidate.
func (m *Model) pass(query string, dir Direction, anchor int) bool {
	wi, ti := m.find(query, dir, anchor)
	if wi < 0 {
		return false
	}
	m.search.matched = true
	m.search.matchWindow = m.windows[wi].ID
	m.search.matchTab = ti
	m.setFocus(wi)
	return true
}

func (m *Model) find(query string, dir Direction, anchor int) (window, tab int) {
	n := len(m.windows)
	if n == 0 || query == "" {
		return -1, -1
	}
	if anchor >= n {
		anchor = n - 1
	}

	order := make([]int, 0, n)
	for i := anchor + 1; i < n; i++ {
		order = append(order, i)
	}
	for i := 0; i < anchor; i++ {
		order = append(order, i)
	}
	if dir == Backward {
		reverse(order)
	}

	fold := cases.Fold()
	needle := fold.String(query)
	for _, wi := range order {
		tabs := m.windows[wi].Tabs
		for k := range tabs {
			ti := k
			if dir == Backward {
				ti = len(tabs) - 1 - k
			}
			if strings.Contains(fold.String(tabs[ti].Title), needle) {
				return wi, ti
			}
		}
	}
	return -1, -1
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
