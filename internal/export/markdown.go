package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/lotas/tabwrangler/internal/types"
	"github.com/lotas/tabwrangler/internal/windowlist"
)

// Markdown formats the window list as a markdown document, one section per
// window in list order.
func Markdown(source string, windows []windowlist.Window) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Browser Windows: %s\n", source)
	fmt.Fprintf(&b, "> Exported %s\n", time.Now().Format("2006-01-02 15:04"))

	for _, w := range windows {
		fmt.Fprintf(&b, "\n## %s (%s)\n\n", windowHeading(w), types.Plural(len(w.Tabs), "tab"))

		for _, tab := range w.Tabs {
			title := tab.Title
			if title == "" {
				title = tab.URL
			}
			fmt.Fprintf(&b, "- [%s](%s)\n", escapeBrackets(title), tab.URL)
		}
	}

	return b.String()
}

func windowHeading(w windowlist.Window) string {
	if w.Title != "" {
		return w.Title
	}
	return w.ID.String()
}

var bracketEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeBrackets(s string) string {
	return bracketEscaper.Replace(s)
}
