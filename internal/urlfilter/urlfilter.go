// Package urlfilter decides which tab URLs are worth keeping when a window
// is saved.
package urlfilter

import (
	"net/url"
	"sort"
	"strings"

	"github.com/lotas/tabwrangler/internal/types"
)

// DefaultIgnored lists placeholder and high-noise pages that are never
// written to save files.
var DefaultIgnored = []string{
	"about:blank",
	"about:newtab",
	"chrome://newtab/",
	"https://www.facebook.com/",
	"https://www.linkedin.com/feed/",
}

// NormalizeURL drops the fragment, sorts query parameters and trims a
// trailing slash so equivalent URLs compare equal.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	params := u.Query()
	for k := range params {
		sort.Strings(params[k])
	}
	u.RawQuery = params.Encode()
	result := u.String()
	if strings.HasSuffix(result, "/") && result != u.Scheme+"://"+u.Host+"/" {
		result = strings.TrimRight(result, "/")
	}
	return result
}

// Filter is an ignore-list of URLs, compared after normalization.
type Filter struct {
	ignored map[string]bool
}

// New builds a filter from the given URLs. A nil or empty list ignores
// nothing.
func New(urls []string) *Filter {
	f := &Filter{ignored: make(map[string]bool, len(urls))}
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		f.ignored[NormalizeURL(u)] = true
	}
	return f
}

// Ignored reports whether rawURL is on the ignore-list. A nil filter
// ignores nothing.
func (f *Filter) Ignored(rawURL string) bool {
	if f == nil {
		return false
	}
	return f.ignored[NormalizeURL(rawURL)]
}

// Keep returns the tabs whose URLs are not ignored, in order.
func (f *Filter) Keep(tabs []types.Tab) []types.Tab {
	var out []types.Tab
	for _, t := range tabs {
		if !f.Ignored(t.URL) {
			out = append(out, t)
		}
	}
	return out
}

// Duplicates returns the indices of tabs whose normalized URL also appears
// at another index in tabs.
func Duplicates(tabs []types.Tab) map[int]bool {
	groups := make(map[string][]int)
	for i, tab := range tabs {
		n := NormalizeURL(tab.URL)
		groups[n] = append(groups[n], i)
	}
	dups := make(map[int]bool)
	for _, indices := range groups {
		if len(indices) < 2 {
			continue
		}
		for _, i := range indices {
			dups[i] = true
		}
	}
	return dups
}
