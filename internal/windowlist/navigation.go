package windowlist

// Increment focuses the nearest following neighbor from the snapshot that
// still exists. When none survive it moves one down, wrapping to the top.
func (m *Model) Increment() {
	if len(m.windows) == 0 {
		return
	}
	idx := -1
	for _, id := range m.following {
		if i := m.IndexOf(id); i >= 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = m.focus + 1
		if idx >= len(m.windows) {
			idx = 0
		}
	}
	m.setFocus(idx)
}

// Decrement focuses the nearest preceding neighbor from the snapshot that
// still exists, or the last window when none do.
func (m *Model) Decrement() {
	if len(m.windows) == 0 {
		return
	}
	idx := len(m.windows) - 1
	for j := len(m.preceding) - 1; j >= 0; j-- {
		if i := m.IndexOf(m.preceding[j]); i >= 0 {
			idx = i
			break
		}
	}
	m.setFocus(idx)
}

// First focuses the top window.
func (m *Model) First() {
	if len(m.windows) == 0 {
		return
	}
	m.setFocus(0)
}

// Last focuses the bottom window.
func (m *Model) Last() {
	if len(m.windows) == 0 {
		return
	}
	m.setFocus(len(m.windows) - 1)
}

// SetFocus focuses index i. Out-of-range indices are ignored.
func (m *Model) SetFocus(i int) {
	if i < 0 || i >= len(m.windows) {
		return
	}
	m.setFocus(i)
}

func (m *Model) setFocus(i int) {
	m.focus = i
	m.remember()
	m.notify()
}
