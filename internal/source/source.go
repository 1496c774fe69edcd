// Package source defines the boundary to the external tab-control service.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lotas/tabwrangler/internal/types"
)

// PlaceholderURL is opened to keep a browser alive when every tab is closed.
const PlaceholderURL = "about:blank"

// Source lists, closes and opens browser tabs.
type Source interface {
	List(ctx context.Context) (types.Listing, error)
	Close(ctx context.Context, ids []types.TabID) error
	OpenPlaceholder(ctx context.Context, url, browser string) error
}

// Focuser raises the OS window that shows the given browser window.
type Focuser interface {
	Focus(ctx context.Context, id types.WindowID) error
}

var (
	// ErrMalformedRecord matches any *MalformedRecordError via errors.Is.
	ErrMalformedRecord = errors.New("malformed tab record")
	// ErrReadOnly is returned by sources that cannot modify the browser.
	ErrReadOnly = errors.New("tab source is read-only")
	// ErrNotConnected is returned when no browser is attached to the source.
	ErrNotConnected = errors.New("no browser connected")
)

// MalformedRecordError reports a fetched tab entry without the expected
// id/title/url shape. The whole listing is rejected.
type MalformedRecordError struct {
	Record string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed tab record %q: %s", e.Record, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// TransportError wraps a failed round-trip to the tab-control service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// SleepingPrefix is prepended by some browsers to titles of discarded tabs.
const SleepingPrefix = "💤 "

// ParseRecord converts one raw id/title/url triple into a Tab.
func ParseRecord(id, title, url string) (types.Tab, error) {
	tid, err := types.ParseTabID(id)
	if err != nil {
		return types.Tab{}, &MalformedRecordError{Record: id, Reason: err.Error()}
	}
	return types.Tab{
		ID:    tid,
		Title: strings.ReplaceAll(title, SleepingPrefix, ""),
		URL:   url,
	}, nil
}

// ParseLine parses a tab-separated "id\ttitle\turl" line.
func ParseLine(line string) (types.Tab, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 3 {
		return types.Tab{}, &MalformedRecordError{
			Record: line,
			Reason: fmt.Sprintf("got %d fields, want 3", len(fields)),
		}
	}
	return ParseRecord(fields[0], fields[1], fields[2])
}
