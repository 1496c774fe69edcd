package export

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/lotas/tabwrangler/internal/types"
	"github.com/lotas/tabwrangler/internal/urlfilter"
	"github.com/lotas/tabwrangler/internal/windowlist"
)

type jsonExport struct {
	Source     string       `json:"source"`
	ExportedAt time.Time    `json:"exported_at"`
	Windows    []jsonWindow `json:"windows"`
}

type jsonWindow struct {
	ID    string    `json:"id"`
	Title string    `json:"title,omitempty"`
	Tabs  []jsonTab `json:"tabs"`
}

type jsonTab struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	IsDuplicate bool   `json:"is_duplicate,omitempty"`
}

// JSON formats the window list as a JSON document. Tabs whose URL appears
// more than once across all windows are flagged as duplicates.
func JSON(source string, windows []windowlist.Window) (string, error) {
	out := jsonExport{
		Source:     source,
		ExportedAt: time.Now(),
		Windows:    make([]jsonWindow, 0, len(windows)),
	}

	var all []types.Tab
	for _, w := range windows {
		all = append(all, w.Tabs...)
	}
	dups := urlfilter.Duplicates(all)

	i := 0
	for _, w := range windows {
		win := jsonWindow{
			ID:    w.ID.String(),
			Title: w.Title,
			Tabs:  make([]jsonTab, 0, len(w.Tabs)),
		}
		for _, tab := range w.Tabs {
			win.Tabs = append(win.Tabs, jsonTab{
				ID:          tab.ID.String(),
				Title:       tab.Title,
				URL:         tab.URL,
				Domain:      extractDomain(tab.URL),
				IsDuplicate: dups[i],
			})
			i++
		}
		out.Windows = append(out.Windows, win)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
