package firefox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pierrec/lz4/v4"

	"github.com/lotas/tabwrangler/internal/source"
	"github.com/lotas/tabwrangler/internal/types"
)

// Browser is the tag given to tabs read from a session file.
const Browser = "f"

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format.
// The format is: 8-byte magic "mozLz40\x00" + 4-byte LE uint32 uncompressed size + lz4 block data.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12 // 8 magic + 4 size

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}

	for i := 0; i < len(mozLz4Magic); i++ {
		if data[i] != mozLz4Magic[i] {
			return nil, fmt.Errorf("mozlz4: invalid header magic")
		}
	}

	uncompressedSize := binary.LittleEndian.Uint32(data[8:12])

	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}

	return dst[:n], nil
}

// Raw JSON types for Firefox session file parsing.
type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries []rawEntry `json:"entries"`
	Index   int        `json:"index"`
}

type rawWindow struct {
	Tabs []rawTab `json:"tabs"`
}

type rawSession struct {
	Windows []rawWindow `json:"windows"`
}

// ParseSession turns raw session JSON into a Listing. Windows are numbered
// by position, so ids are "f.<window>.<tab>".
func ParseSession(data []byte) (types.Listing, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	var listing types.Listing
	for winIdx, window := range raw.Windows {
		rw := types.RawWindow{ID: types.WindowID{Browser: Browser, Window: strconv.Itoa(winIdx)}}
		for tabIdx, rt := range window.Tabs {
			if len(rt.Entries) == 0 {
				continue
			}

			// index is 1-based; current page is entries[index-1].
			entryIdx := rt.Index - 1
			if entryIdx < 0 || entryIdx >= len(rt.Entries) {
				entryIdx = len(rt.Entries) - 1
			}
			entry := rt.Entries[entryIdx]

			id := rw.ID.String() + "." + strconv.Itoa(tabIdx)
			tab, err := source.ParseRecord(id, entry.Title, entry.URL)
			if err != nil {
				return nil, err
			}
			rw.Tabs = append(rw.Tabs, tab)
		}
		if len(rw.Tabs) > 0 {
			listing = append(listing, rw)
		}
	}

	return listing, nil
}

// ReadSessionFile reads and parses a Firefox session recovery file from the given profile directory.
// It tries recovery.jsonlz4 first (active session), then previous.jsonlz4 (last closed session).
func ReadSessionFile(profileDir string) (types.Listing, error) {
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	var data []byte
	var err error
	for _, name := range []string{"recovery.jsonlz4", "previous.jsonlz4"} {
		data, err = os.ReadFile(filepath.Join(backupDir, name))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("no session file found in %s", backupDir)
	}

	decompressed, err := DecompressMozLz4(data)
	if err != nil {
		return nil, fmt.Errorf("decompress session file: %w", err)
	}

	return ParseSession(decompressed)
}

// SessionSource lists the tabs recorded in a profile's session file. Firefox
// rewrites the file every few seconds, so listings lag the browser slightly.
// It cannot change the browser.
type SessionSource struct {
	ProfileDir string
}

func (s *SessionSource) List(ctx context.Context) (types.Listing, error) {
	return ReadSessionFile(s.ProfileDir)
}

func (s *SessionSource) Close(ctx context.Context, ids []types.TabID) error {
	return source.ErrReadOnly
}

func (s *SessionSource) OpenPlaceholder(ctx context.Context, url, browser string) error {
	return source.ErrReadOnly
}

func (s *SessionSource) Focus(ctx context.Context, id types.WindowID) error {
	return source.ErrReadOnly
}
