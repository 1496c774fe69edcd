package applog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteLines(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("save.window", "path", "news/0001", "tabs", 3)
	Error("bridge.request", errors.New("no reply"), "action", "close")
	Close()

	b, err := os.ReadFile(filepath.Join(dir, "tabwrangler.log"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), b)
	}
	if !strings.Contains(lines[0], " INFO save.window path=news/0001 tabs=3") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], ` ERROR bridge.request err="no reply" action=close`) {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestNoopWithoutInit(t *testing.T) {
	Close()
	Info("ignored", "k", "v")
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabwrangler.log")
	if err := os.WriteFile(path, make([]byte, maxFileSize+1), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close()

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("rotated file missing: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() != 0 {
		t.Errorf("fresh log not empty: %v", err)
	}
}

func TestQuoteTruncates(t *testing.T) {
	got := quote(strings.Repeat("x", maxValueLen+10))
	if !strings.HasSuffix(got, truncSuffix) || len(got) != maxValueLen+len(truncSuffix) {
		t.Errorf("quote = %d bytes", len(got))
	}
	if quote(`say "hi"`) != `"say \"hi\""` {
		t.Errorf("quote = %s", quote(`say "hi"`))
	}
}
