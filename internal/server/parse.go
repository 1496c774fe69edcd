package server

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lotas/tabwrangler/internal/source"
	"github.com/lotas/tabwrangler/internal/types"
)

// wireTab is the subset of a WebExtension tabs.Tab the extension sends.
type wireTab struct {
	ID       *int   `json:"id"`
	WindowID *int   `json:"windowId"`
	Index    int    `json:"index"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// ParseTabs converts a "tabs" reply into a Listing. Tab ids are built as
// "<browser>.<windowId>.<id>". Any entry without an id or windowId rejects
// the whole reply.
func ParseTabs(msg IncomingMsg, browser string) (types.Listing, error) {
	if msg.Type != "tabs" {
		return nil, fmt.Errorf("parse tabs: unexpected reply type %q", msg.Type)
	}
	var raws []json.RawMessage
	if len(msg.Tabs) > 0 {
		if err := json.Unmarshal(msg.Tabs, &raws); err != nil {
			return nil, &source.MalformedRecordError{Record: truncate(string(msg.Tabs)), Reason: err.Error()}
		}
	}

	tabs := make([]types.Tab, 0, len(raws))
	for _, raw := range raws {
		tab, err := ParseTab(raw, browser)
		if err != nil {
			return nil, err
		}
		tabs = append(tabs, tab)
	}
	return types.GroupTabs(tabs), nil
}

// ParseTab converts one raw JSON tab into a Tab.
func ParseTab(raw json.RawMessage, browser string) (types.Tab, error) {
	var wt wireTab
	if err := json.Unmarshal(raw, &wt); err != nil {
		return types.Tab{}, &source.MalformedRecordError{Record: truncate(string(raw)), Reason: err.Error()}
	}
	if wt.ID == nil || wt.WindowID == nil {
		return types.Tab{}, &source.MalformedRecordError{Record: truncate(string(raw)), Reason: "missing id or windowId"}
	}
	id := browser + "." + strconv.Itoa(*wt.WindowID) + "." + strconv.Itoa(*wt.ID)
	return source.ParseRecord(id, wt.Title, wt.URL)
}

func truncate(s string) string {
	if len(s) > 120 {
		return s[:120] + "…"
	}
	return s
}
