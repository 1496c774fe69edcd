package source

import (
	"context"
	"strconv"
	"sync"

	"github.com/lotas/tabwrangler/internal/types"
)

// Fake is an in-memory Source and Focuser. It is used by tests and by the
// "demo" source.
type Fake struct {
	mu      sync.Mutex
	tabs    []types.Tab
	nextTab int

	// ListErr, CloseErr and OpenErr are returned by the matching calls when set.
	ListErr  error
	CloseErr error
	OpenErr  error

	Closed    [][]types.TabID
	Opened    []string
	Focused   []types.WindowID
	ListCalls int
}

// NewFake returns a Fake holding the given tabs.
func NewFake(tabs ...types.Tab) *Fake {
	return &Fake{tabs: append([]types.Tab(nil), tabs...), nextTab: 1000}
}

// SetTabs replaces the tabs the fake reports.
func (f *Fake) SetTabs(tabs ...types.Tab) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabs = append([]types.Tab(nil), tabs...)
}

func (f *Fake) List(ctx context.Context) (types.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return types.GroupTabs(f.tabs), nil
}

func (f *Fake) Close(ctx context.Context, ids []types.TabID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CloseErr != nil {
		return f.CloseErr
	}
	f.Closed = append(f.Closed, append([]types.TabID(nil), ids...))
	drop := make(map[types.TabID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.tabs[:0]
	for _, t := range f.tabs {
		if !drop[t.ID] {
			kept = append(kept, t)
		}
	}
	f.tabs = kept
	return nil
}

func (f *Fake) OpenPlaceholder(ctx context.Context, url, browser string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return f.OpenErr
	}
	f.Opened = append(f.Opened, url)
	f.nextTab++
	f.tabs = append(f.tabs, types.Tab{
		ID:  types.TabID{Browser: browser, Window: "placeholder", Tab: strconv.Itoa(f.nextTab)},
		URL: url,
	})
	return nil
}

func (f *Fake) Focus(ctx context.Context, id types.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Focused = append(f.Focused, id)
	return nil
}
