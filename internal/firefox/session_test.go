package firefox

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/pierrec/lz4/v4"
)

func TestDecompressMozLz4(t *testing.T) {
	t.Run("valid mozlz4 payload", func(t *testing.T) {
		original := []byte(`{"windows":[{"tabs":[]}]}`)

		// Compress with lz4 block compression.
		dst := make([]byte, lz4.CompressBlockBound(len(original)))
		n, err := lz4.CompressBlock(original, dst, nil)
		if err != nil {
			t.Fatalf("lz4.CompressBlock failed: %v", err)
		}
		compressed := dst[:n]

		// Build mozlz4 payload: 8-byte magic + 4-byte LE uint32 size + compressed data.
		magic := []byte("mozLz40\x00")
		sizeBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(sizeBytes, uint32(len(original)))

		payload := make([]byte, 0, len(magic)+len(sizeBytes)+len(compressed))
		payload = append(payload, magic...)
		payload = append(payload, sizeBytes...)
		payload = append(payload, compressed...)

		result, err := DecompressMozLz4(payload)
		if err != nil {
			t.Fatalf("DecompressMozLz4 returned error: %v", err)
		}
		if string(result) != string(original) {
			t.Errorf("expected %q, got %q", string(original), string(result))
		}
	})

	t.Run("invalid header returns error", func(t *testing.T) {
		// Wrong magic bytes.
		bad := []byte("BADMAGIC\x00\x00\x00\x00some data here")
		_, err := DecompressMozLz4(bad)
		if err == nil {
			t.Fatal("expected error for invalid header, got nil")
		}
	})

	t.Run("too short data returns error", func(t *testing.T) {
		short := []byte("mozLz40")
		_, err := DecompressMozLz4(short)
		if err == nil {
			t.Fatal("expected error for too-short data, got nil")
		}
	})
}

func TestParseSession(t *testing.T) {
	// 2 windows:
	// - window 0: tab with one entry, tab with 2 entries and index=2
	//   (current page is entries[1]), tab with no entries (skipped)
	// - window 1: no usable tabs (dropped)
	session := map[string]interface{}{
		"windows": []map[string]interface{}{
			{
				"tabs": []map[string]interface{}{
					{
						"entries": []map[string]interface{}{
							{"url": "https://example.com", "title": "Example"},
						},
						"index": 1,
					},
					{
						"entries": []map[string]interface{}{
							{"url": "https://old.com", "title": "Old Page"},
							{"url": "https://current.com", "title": "Current Page"},
						},
						"index": 2,
					},
					{
						"entries": []map[string]interface{}{},
					},
				},
			},
			{
				"tabs": []map[string]interface{}{},
			},
		},
	}

	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	listing, err := ParseSession(data)
	if err != nil {
		t.Fatalf("ParseSession returned error: %v", err)
	}

	if len(listing) != 1 {
		t.Fatalf("expected 1 window, got %d", len(listing))
	}
	w := listing[0]
	if w.ID.String() != "f.0" {
		t.Errorf("window id = %s, want f.0", w.ID)
	}
	if len(w.Tabs) != 2 {
		t.Fatalf("expected 2 tabs, got %d", len(w.Tabs))
	}
	if w.Tabs[0].URL != "https://example.com" || w.Tabs[0].Title != "Example" {
		t.Errorf("tab0 = %+v", w.Tabs[0])
	}
	// index=2 means entries[1] is the current page.
	if w.Tabs[1].URL != "https://current.com" {
		t.Errorf("tab1 URL: expected 'https://current.com', got %q", w.Tabs[1].URL)
	}
	if w.Tabs[1].ID.String() != "f.0.1" {
		t.Errorf("tab1 id = %s", w.Tabs[1].ID)
	}
}

func TestParseSessionBadJSON(t *testing.T) {
	if _, err := ParseSession([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
