package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/lotas/tabwrangler/internal/applog"
	"github.com/lotas/tabwrangler/internal/source"
	"github.com/lotas/tabwrangler/internal/types"
)

// DefaultPort is where the browser extension connects.
const DefaultPort = 19191

// DefaultTimeout bounds every command round-trip to the extension.
const DefaultTimeout = 5 * time.Second

// IncomingMsg is a message from the extension.
type IncomingMsg struct {
	Type string          `json:"type"`
	Tabs json.RawMessage `json:"tabs,omitempty"`
	// hello
	Browser string `json:"browser,omitempty"`
	// Command response fields
	ID    string `json:"id,omitempty"`
	OK    *bool  `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// TabToOpen specifies a tab to create in the browser.
type TabToOpen struct {
	URL string `json:"url"`
}

// OutgoingMsg is a command to the extension.
type OutgoingMsg struct {
	ID       string      `json:"id"`
	Action   string      `json:"action"`
	TabIDs   []int       `json:"tabIds,omitempty"`
	Tabs     []TabToOpen `json:"tabs,omitempty"`
	WindowID int         `json:"windowId,omitempty"`
}

// Server manages the WebSocket connection to the extension and serves as a
// tab source on top of it.
type Server struct {
	port int

	// Timeout bounds each command round-trip. Set before serving.
	Timeout time.Duration

	changes chan struct{}

	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	browser string
	seq     int
	pending map[string]chan IncomingMsg
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:    port,
		Timeout: DefaultTimeout,
		changes: make(chan struct{}, 1),
		browser: "a",
		pending: make(map[string]chan IncomingMsg),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Changes receives a value whenever the extension connects or reports that
// tabs changed. Bursts are coalesced.
func (s *Server) Changes() <-chan struct{} {
	return s.changes
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Browser returns the tag used for tab ids of the connected browser.
func (s *Server) Browser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browser
}

func (s *Server) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// request sends a command and waits for the response carrying its id.
func (s *Server) request(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error) {
	s.mu.Lock()
	conn, connCtx := s.conn, s.connCtx
	if conn == nil {
		s.mu.Unlock()
		return IncomingMsg{}, &source.TransportError{Op: msg.Action, Err: source.ErrNotConnected}
	}
	s.seq++
	msg.ID = "cmd-" + strconv.Itoa(s.seq)
	reply := make(chan IncomingMsg, 1)
	s.pending[msg.ID] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
	}()

	applog.Info("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return IncomingMsg{}, err
	}
	if err := conn.Write(connCtx, websocket.MessageText, data); err != nil {
		applog.Error("ws.send", err, "action", msg.Action)
		return IncomingMsg{}, &source.TransportError{Op: msg.Action, Err: err}
	}

	timer := time.NewTimer(s.Timeout)
	defer timer.Stop()
	select {
	case resp := <-reply:
		if resp.Error != "" || (resp.OK != nil && !*resp.OK) {
			err := errors.New(resp.Error)
			if resp.Error == "" {
				err = errors.New("command failed")
			}
			applog.Error("ws.reply", err, "action", msg.Action, "id", msg.ID)
			return resp, &source.TransportError{Op: msg.Action, Err: err}
		}
		return resp, nil
	case <-timer.C:
		applog.Error("ws.timeout", nil, "action", msg.Action, "id", msg.ID)
		return IncomingMsg{}, &source.TransportError{Op: msg.Action, Err: fmt.Errorf("no reply after %s", s.Timeout)}
	case <-ctx.Done():
		return IncomingMsg{}, &source.TransportError{Op: msg.Action, Err: ctx.Err()}
	}
}

// List asks the extension for every open tab.
func (s *Server) List(ctx context.Context) (types.Listing, error) {
	resp, err := s.request(ctx, OutgoingMsg{Action: "list"})
	if err != nil {
		return nil, err
	}
	return ParseTabs(resp, s.Browser())
}

// Close closes the given tabs.
func (s *Server) Close(ctx context.Context, ids []types.TabID) error {
	nums := make([]int, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.Atoi(id.Tab)
		if err != nil {
			return &source.MalformedRecordError{Record: id.String(), Reason: "tab part is not numeric"}
		}
		nums = append(nums, n)
	}
	_, err := s.request(ctx, OutgoingMsg{Action: "close", TabIDs: nums})
	return err
}

// OpenPlaceholder opens url in a new tab. There is one connected browser,
// so the browser tag is only logged.
func (s *Server) OpenPlaceholder(ctx context.Context, url, browser string) error {
	applog.Info("ws.placeholder", "browser", browser, "url", url)
	_, err := s.request(ctx, OutgoingMsg{Action: "open", Tabs: []TabToOpen{{URL: url}}})
	return err
}

// Focus raises the browser window.
func (s *Server) Focus(ctx context.Context, id types.WindowID) error {
	n, err := strconv.Atoi(id.Window)
	if err != nil {
		return &source.MalformedRecordError{Record: id.String(), Reason: "window part is not numeric"}
	}
	_, err = s.request(ctx, OutgoingMsg{Action: "focus-window", WindowID: n})
	return err
}

func (s *Server) dispatch(msg IncomingMsg) {
	if msg.ID != "" {
		s.mu.Lock()
		reply, ok := s.pending[msg.ID]
		delete(s.pending, msg.ID)
		s.mu.Unlock()
		if ok {
			reply <- msg
			return
		}
		applog.Info("ws.stale_reply", "id", msg.ID)
		return
	}
	switch msg.Type {
	case "hello":
		if msg.Browser != "" {
			s.mu.Lock()
			s.browser = msg.Browser
			s.mu.Unlock()
		}
		s.notify()
	case "tabs-changed":
		s.notify()
	default:
		applog.Info("ws.unknown", "type", msg.Type)
	}
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Printf("websocket accept: %v", err)
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // 16 MB, listings of many windows can be large

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Info("ws.recv", "type", msg.Type, "id", msg.ID)
			s.dispatch(msg)
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
