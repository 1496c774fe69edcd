package types

import (
	"fmt"
	"strings"
)

// TabID identifies a tab across browsers. The wire form is
// "<browser>.<window>.<tab>", e.g. "a.85.10".
type TabID struct {
	Browser string
	Window  string
	Tab     string
}

// WindowID identifies a browser window. The wire form is "<browser>.<window>".
type WindowID struct {
	Browser string
	Window  string
}

// ParseTabID splits a composite tab identifier. It returns an error unless
// the identifier has exactly three non-empty dot-separated parts.
func ParseTabID(s string) (TabID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return TabID{}, fmt.Errorf("tab id %q: want browser.window.tab", s)
	}
	for _, p := range parts {
		if p == "" {
			return TabID{}, fmt.Errorf("tab id %q: empty component", s)
		}
	}
	return TabID{Browser: parts[0], Window: parts[1], Tab: parts[2]}, nil
}

func (id TabID) String() string {
	return id.Browser + "." + id.Window + "." + id.Tab
}

// WindowID returns the window owning this tab.
func (id TabID) WindowID() WindowID {
	return WindowID{Browser: id.Browser, Window: id.Window}
}

func (id WindowID) String() string {
	return id.Browser + "." + id.Window
}

// Tab represents a single browser tab.
type Tab struct {
	ID    TabID
	Title string
	URL   string
}

// RawWindow is one window as reported by a tab source.
type RawWindow struct {
	ID   WindowID
	Tabs []Tab
}

// Listing is the full window -> tabs mapping from a tab source, in the order
// the source reported each window first.
type Listing []RawWindow

// TabCount returns the number of tabs across all windows.
func (l Listing) TabCount() int {
	n := 0
	for _, w := range l {
		n += len(w.Tabs)
	}
	return n
}

// Find returns the window with the given id.
func (l Listing) Find(id WindowID) (RawWindow, bool) {
	for _, w := range l {
		if w.ID == id {
			return w, true
		}
	}
	return RawWindow{}, false
}

// GroupTabs builds a Listing from a flat tab sequence, grouping by owning
// window and keeping first-seen window order and in-window tab order.
func GroupTabs(tabs []Tab) Listing {
	index := make(map[WindowID]int)
	var out Listing
	for _, t := range tabs {
		wid := t.ID.WindowID()
		i, ok := index[wid]
		if !ok {
			i = len(out)
			index[wid] = i
			out = append(out, RawWindow{ID: wid})
		}
		out[i].Tabs = append(out[i].Tabs, t)
	}
	return out
}

// Plural returns "<n> <noun>" with an "s" appended unless n is 1.
func Plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
