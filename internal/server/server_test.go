package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/lotas/tabwrangler/internal/source"
	"github.com/lotas/tabwrangler/internal/types"
)

// extension is a scripted browser extension on the client side of the socket.
type extension struct {
	conn *websocket.Conn

	mu   sync.Mutex
	seen []OutgoingMsg
}

// connect dials srv, says hello as browser and answers every command with
// reply. It returns once the server has registered the connection.
func connect(t *testing.T, srv *Server, browser string, reply func(OutgoingMsg) any) *extension {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	hello, _ := json.Marshal(IncomingMsg{Type: "hello", Browser: browser})
	if err := conn.Write(ctx, websocket.MessageText, hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	select {
	case <-srv.Changes():
	case <-ctx.Done():
		t.Fatal("timed out waiting for hello")
	}

	ext := &extension{conn: conn}
	go func() {
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			var cmd OutgoingMsg
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			ext.mu.Lock()
			ext.seen = append(ext.seen, cmd)
			ext.mu.Unlock()
			resp := reply(cmd)
			if resp == nil {
				continue
			}
			out, _ := json.Marshal(resp)
			conn.Write(context.Background(), websocket.MessageText, out)
		}
	}()
	return ext
}

func (e *extension) commands() []OutgoingMsg {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]OutgoingMsg(nil), e.seen...)
}

func ok(id string) map[string]any {
	return map[string]any{"type": "result", "id": id, "ok": true}
}

func TestServerList(t *testing.T) {
	srv := New(0)
	connect(t, srv, "f", func(cmd OutgoingMsg) any {
		return map[string]any{
			"type": "tabs",
			"id":   cmd.ID,
			"tabs": []map[string]any{
				{"id": 10, "windowId": 85, "index": 0, "title": "💤 Go", "url": "https://go.dev/"},
				{"id": 11, "windowId": 3, "index": 0, "title": "Rust", "url": "https://rust-lang.org/"},
				{"id": 12, "windowId": 85, "index": 1, "title": "Docs", "url": "https://pkg.go.dev/"},
			},
		}
	})

	listing, err := srv.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing) != 2 {
		t.Fatalf("got %d windows, want 2", len(listing))
	}
	first := listing[0]
	if first.ID != (types.WindowID{Browser: "f", Window: "85"}) || len(first.Tabs) != 2 {
		t.Errorf("first window = %+v", first)
	}
	if first.Tabs[0].Title != "Go" {
		t.Errorf("sleeping prefix not stripped: %q", first.Tabs[0].Title)
	}
	if first.Tabs[1].ID.String() != "f.85.12" {
		t.Errorf("tab id = %s", first.Tabs[1].ID)
	}
}

func TestServerClose(t *testing.T) {
	srv := New(0)
	ext := connect(t, srv, "a", func(cmd OutgoingMsg) any { return ok(cmd.ID) })

	err := srv.Close(context.Background(), []types.TabID{
		{Browser: "a", Window: "1", Tab: "42"},
		{Browser: "a", Window: "1", Tab: "43"},
	})
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	cmds := ext.commands()
	if len(cmds) != 1 || cmds[0].Action != "close" || len(cmds[0].TabIDs) != 2 || cmds[0].TabIDs[0] != 42 {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestServerOpenAndFocus(t *testing.T) {
	srv := New(0)
	ext := connect(t, srv, "a", func(cmd OutgoingMsg) any { return ok(cmd.ID) })
	ctx := context.Background()

	if err := srv.OpenPlaceholder(ctx, "about:blank", "a"); err != nil {
		t.Fatalf("OpenPlaceholder: %v", err)
	}
	if err := srv.Focus(ctx, types.WindowID{Browser: "a", Window: "7"}); err != nil {
		t.Fatalf("Focus: %v", err)
	}
	cmds := ext.commands()
	if len(cmds) != 2 {
		t.Fatalf("got %d commands", len(cmds))
	}
	if cmds[0].Action != "open" || len(cmds[0].Tabs) != 1 || cmds[0].Tabs[0].URL != "about:blank" {
		t.Errorf("open command = %+v", cmds[0])
	}
	if cmds[1].Action != "focus-window" || cmds[1].WindowID != 7 {
		t.Errorf("focus command = %+v", cmds[1])
	}
	if cmds[0].ID == cmds[1].ID {
		t.Error("command ids reused")
	}
}

func TestServerErrorReply(t *testing.T) {
	srv := New(0)
	connect(t, srv, "a", func(cmd OutgoingMsg) any {
		return map[string]any{"type": "result", "id": cmd.ID, "ok": false, "error": "no such tab"}
	})

	err := srv.Close(context.Background(), []types.TabID{{Browser: "a", Window: "1", Tab: "9"}})
	if !source.IsTransport(err) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if !strings.Contains(err.Error(), "no such tab") {
		t.Errorf("err = %v", err)
	}
}

func TestServerTimeout(t *testing.T) {
	srv := New(0)
	srv.Timeout = 50 * time.Millisecond
	connect(t, srv, "a", func(OutgoingMsg) any { return nil })

	_, err := srv.List(context.Background())
	if !source.IsTransport(err) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestServerNotConnected(t *testing.T) {
	srv := New(0)
	_, err := srv.List(context.Background())
	if !errors.Is(err, source.ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
	if srv.Connected() {
		t.Error("Connected() = true without a client")
	}
}

func TestServerMalformedListing(t *testing.T) {
	srv := New(0)
	connect(t, srv, "a", func(cmd OutgoingMsg) any {
		return map[string]any{
			"type": "tabs",
			"id":   cmd.ID,
			"tabs": []map[string]any{
				{"id": 1, "windowId": 1, "title": "ok", "url": "https://ok.example/"},
				{"title": "no ids", "url": "https://bad.example/"},
			},
		}
	})

	_, err := srv.List(context.Background())
	if !errors.Is(err, source.ErrMalformedRecord) {
		t.Errorf("err = %v, want malformed record", err)
	}
}

func TestServerTabsChangedNotifies(t *testing.T) {
	srv := New(0)
	ext := connect(t, srv, "a", func(OutgoingMsg) any { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(IncomingMsg{Type: "tabs-changed"})
	if err := ext.conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-srv.Changes():
	case <-ctx.Done():
		t.Fatal("timed out waiting for change notification")
	}
}
