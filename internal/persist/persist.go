// Package persist writes selected windows to the save folder and closes
// their tabs.
//
// Layout under the base directory:
//
//	<base>/<title>            titled window
//	<base>/<name>             single untitled window saved with a name
//	<base>/<name>/<title>     several windows saved with a name
//	<base>/untitled/0007      untitled window, numbered per folder
//
// Each file holds one "title<TAB>url" line per tab. Saving to an existing
// file appends a newline-prefixed block. A single instance is assumed per
// save folder; concurrent writers may race on numbering and append checks.
package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/lotas/tabwrangler/internal/applog"
	"github.com/lotas/tabwrangler/internal/source"
	"github.com/lotas/tabwrangler/internal/storage"
	"github.com/lotas/tabwrangler/internal/types"
	"github.com/lotas/tabwrangler/internal/urlfilter"
	"github.com/lotas/tabwrangler/internal/windowlist"
)

// UntitledFolder holds untitled windows saved without a name.
const UntitledFolder = "untitled"

var numericName = regexp.MustCompile(`^[0-9]+$`)

// Engine saves and closes windows against a tab source.
type Engine struct {
	Source      source.Source
	BaseDir     string
	Ignore      *urlfilter.Filter
	Placeholder string  // URL opened when a close would empty the browser
	DB          *sql.DB // optional save ledger
}

// New returns an engine with the default ignore-list and placeholder.
func New(src source.Source, baseDir string) *Engine {
	return &Engine{
		Source:      src,
		BaseDir:     baseDir,
		Ignore:      urlfilter.New(urlfilter.DefaultIgnored),
		Placeholder: source.PlaceholderURL,
	}
}

// written describes what happened to one window's file.
type written struct {
	path      string
	appended  bool
	discarded bool
}

// SaveAndClose writes each window to its file and closes its tabs, in
// order. An empty name means no name was given. closed lists the windows
// whose tabs the browser actually closed; a read-only source saves without
// closing anything. Transport and filesystem errors abort the batch; files
// written and tabs closed before the error are left as they are.
func (e *Engine) SaveAndClose(ctx context.Context, windows []windowlist.Window, name string) (status string, closed []types.WindowID, err error) {
	if len(windows) == 0 {
		return "nothing to save", nil, nil
	}
	name = safeName(name)

	folder, fileName := e.destination(windows, name)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", nil, fmt.Errorf("create folder %s: %w", folder, err)
	}
	index, err := nextIndex(folder)
	if err != nil {
		return "", nil, err
	}

	var last written
	tabTotal := 0
	for _, w := range windows {
		tabTotal += len(w.Tabs)
		kept := e.Ignore.Keep(w.Tabs)

		res := written{discarded: len(kept) == 0}
		if !res.discarded {
			var path string
			switch {
			case w.Title != "":
				path = filepath.Join(folder, safeName(w.Title))
			case len(windows) == 1 && fileName != "":
				path = filepath.Join(e.BaseDir, fileName)
			default:
				path = filepath.Join(folder, fmt.Sprintf("%04d", index))
				index++
			}
			appended, err := writeTabs(path, kept)
			if err != nil {
				applog.Error("save.write", err, "path", path)
				return "", closed, err
			}
			res.path, res.appended = path, appended
			applog.Info("save.window", "window", w.ID, "path", path, "tabs", len(kept), "appended", appended)
		}
		e.record(w, folder, res, kept)

		ok, err := e.closeWindow(ctx, w)
		if err != nil {
			return "", closed, err
		}
		if ok {
			closed = append(closed, w.ID)
		}
		last = res
	}

	if len(windows) == 1 {
		n := types.Plural(len(windows[0].Tabs), "tab")
		switch {
		case last.discarded:
			return fmt.Sprintf("window with %s discarded", n), closed, nil
		case last.appended:
			return fmt.Sprintf("window with %s appended to %s", n, e.rel(last.path)), closed, nil
		default:
			return fmt.Sprintf("window with %s saved as %s", n, e.rel(last.path)), closed, nil
		}
	}
	return fmt.Sprintf("%d windows and %s saved and closed", len(windows), types.Plural(tabTotal, "tab")), closed, nil
}

// Close closes every tab of the given windows without saving them.
func (e *Engine) Close(ctx context.Context, windows []windowlist.Window) (string, error) {
	if len(windows) == 0 {
		return "nothing to close", nil
	}
	var ids []types.TabID
	for _, w := range windows {
		for _, t := range w.Tabs {
			ids = append(ids, t.ID)
		}
	}
	if err := e.guard(ctx, len(ids), windows[0].ID.Browser); err != nil {
		return "", err
	}
	if len(ids) > 0 {
		if err := e.Source.Close(ctx, ids); err != nil {
			applog.Error("close.tabs", err, "tabs", len(ids))
			return "", err
		}
	}
	applog.Info("close.done", "windows", len(windows), "tabs", len(ids))
	return fmt.Sprintf("closed %s and %s", types.Plural(len(windows), "window"), types.Plural(len(ids), "tab")), nil
}

// destination picks the folder for a batch and, for a single untitled
// window, the literal file name to use instead of a number.
func (e *Engine) destination(windows []windowlist.Window, name string) (folder, fileName string) {
	if name == "" {
		for _, w := range windows {
			if w.Title == "" {
				return filepath.Join(e.BaseDir, UntitledFolder), ""
			}
		}
		return e.BaseDir, ""
	}
	if len(windows) > 1 || windows[0].Title != "" || isDir(filepath.Join(e.BaseDir, name)) {
		return filepath.Join(e.BaseDir, name), ""
	}
	return e.BaseDir, name
}

// closeWindow closes the tabs of one window, opening a placeholder first if
// they are the last tabs the browser has. It reports false when a read-only
// source kept the tabs open; the save still counts.
func (e *Engine) closeWindow(ctx context.Context, w windowlist.Window) (bool, error) {
	err := e.guard(ctx, len(w.Tabs), w.ID.Browser)
	if err == nil && len(w.Tabs) > 0 {
		ids := make([]types.TabID, len(w.Tabs))
		for i, t := range w.Tabs {
			ids[i] = t.ID
		}
		err = e.Source.Close(ctx, ids)
	}
	if errors.Is(err, source.ErrReadOnly) {
		applog.Info("close.readonly", "window", w.ID)
		return false, nil
	}
	if err != nil {
		applog.Error("close.tabs", err, "window", w.ID)
		return false, err
	}
	return true, nil
}

// guard opens a placeholder tab when closing n tabs would leave the source
// with none.
func (e *Engine) guard(ctx context.Context, n int, browser string) error {
	listing, err := e.Source.List(ctx)
	if err != nil {
		return err
	}
	if listing.TabCount() != n {
		return nil
	}
	url := e.Placeholder
	if url == "" {
		url = source.PlaceholderURL
	}
	applog.Info("close.placeholder", "browser", browser, "url", url)
	return e.Source.OpenPlaceholder(ctx, url, browser)
}

func (e *Engine) record(w windowlist.Window, folder string, res written, kept []types.Tab) {
	if e.DB == nil {
		return
	}
	rec := storage.SaveRecord{
		WindowID:  w.ID.String(),
		Folder:    folder,
		Path:      res.path,
		TabCount:  len(w.Tabs),
		Appended:  res.appended,
		Discarded: res.discarded,
	}
	for _, t := range kept {
		rec.Tabs = append(rec.Tabs, storage.SavedTab{Title: t.Title, URL: t.URL})
	}
	if _, err := storage.RecordSave(e.DB, rec); err != nil {
		applog.Error("save.ledger", err, "window", w.ID)
	}
}

func (e *Engine) rel(path string) string {
	r, err := filepath.Rel(e.BaseDir, path)
	if err != nil {
		return path
	}
	return r
}

// writeTabs appends to an existing file or creates a new one. It reports
// whether the file already existed.
func writeTabs(path string, tabs []types.Tab) (bool, error) {
	lines := make([]string, len(tabs))
	for i, t := range tabs {
		lines[i] = t.Title + "\t" + t.URL
	}
	contents := strings.Join(lines, "\n")

	appended := false
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return false, fmt.Errorf("save %s: is a directory", path)
	case err == nil:
		appended = true
		contents = "\n" + contents
	case !os.IsNotExist(err):
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(contents); err != nil {
		f.Close()
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", path, err)
	}
	return appended, nil
}

// nextIndex returns one more than the largest purely numeric entry name in
// dir, or 0 when there is none.
func nextIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read folder %s: %w", dir, err)
	}
	next := 0
	for _, ent := range entries {
		if !numericName.MatchString(ent.Name()) {
			continue
		}
		n, err := strconv.Atoi(ent.Name())
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}

// safeName keeps a title or name usable as a single path element.
func safeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, string(filepath.Separator), "-")
	if s == "." || s == ".." {
		return ""
	}
	return s
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
