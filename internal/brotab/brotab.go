// Package brotab talks to a brotab mediator, the HTTP process that bridges
// the brotab browser extension.
package brotab

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lotas/tabwrangler/internal/applog"
	"github.com/lotas/tabwrangler/internal/source"
	"github.com/lotas/tabwrangler/internal/types"
)

const (
	// DefaultAddr is where the first mediator listens.
	DefaultAddr = "127.0.0.1:4625"
	// DefaultPrefix is the browser tag brotab gives the first mediator.
	DefaultPrefix = "a"
)

// Client is a tab source backed by one mediator. Tab ids reported by the
// mediator are "<window>.<tab>"; the client adds its prefix in front.
type Client struct {
	base   string
	prefix string
	http   *http.Client
}

// New returns a client for the mediator at addr ("host:port").
func New(addr, prefix string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		base:   strings.TrimRight(addr, "/"),
		prefix: strings.TrimSuffix(prefix, "."),
		http:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Prefix returns the browser tag of this mediator's tabs.
func (c *Client) Prefix() string { return c.prefix }

func (c *Client) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		applog.Error("brotab."+op, err)
		return nil, &source.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &source.TransportError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("mediator returned %s", resp.Status)
		applog.Error("brotab."+op, err)
		return nil, &source.TransportError{Op: op, Err: err}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, op, req)
}

// List fetches every tab. A line without exactly three tab-separated fields
// rejects the whole listing.
func (c *Client) List(ctx context.Context) (types.Listing, error) {
	body, err := c.get(ctx, "list tabs", "/list_tabs")
	if err != nil {
		return nil, err
	}
	var tabs []types.Tab
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		tab, err := source.ParseLine(c.prefix + "." + line)
		if err != nil {
			return nil, err
		}
		tabs = append(tabs, tab)
	}
	if err := sc.Err(); err != nil {
		return nil, &source.TransportError{Op: "list tabs", Err: err}
	}
	applog.Info("brotab.list", "tabs", len(tabs))
	return types.GroupTabs(tabs), nil
}

// Close closes the given tabs. Ids belonging to other browsers are skipped.
func (c *Client) Close(ctx context.Context, ids []types.TabID) error {
	var parts []string
	for _, id := range ids {
		if id.Browser != c.prefix {
			continue
		}
		parts = append(parts, id.Window+"."+id.Tab)
	}
	if len(parts) == 0 {
		return nil
	}
	_, err := c.get(ctx, "close tabs", "/close_tabs/"+strings.Join(parts, ","))
	if err == nil {
		applog.Info("brotab.close", "tabs", len(parts))
	}
	return err
}

// OpenPlaceholder opens url in the mediator's browser. The mediator expects
// the URLs as an uploaded file named "urls", one per line.
func (c *Client) OpenPlaceholder(ctx context.Context, url, browser string) error {
	if browser != "" && browser != c.prefix {
		applog.Info("brotab.open_other", "browser", browser, "prefix", c.prefix)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("urls", "urls")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(fw, url+"\n"); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+"/open_urls", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	_, err = c.do(ctx, "open urls", req)
	return err
}

// Focus activates the first tab of the window, which raises the window.
func (c *Client) Focus(ctx context.Context, id types.WindowID) error {
	listing, err := c.List(ctx)
	if err != nil {
		return err
	}
	w, ok := listing.Find(id)
	if !ok || len(w.Tabs) == 0 {
		return fmt.Errorf("window %s not found", id)
	}
	_, err = c.get(ctx, "activate tab", "/activate_tab/"+w.Tabs[0].ID.Tab+"?focused=true")
	return err
}
