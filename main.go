package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lotas/tabwrangler/internal/applog"
	"github.com/lotas/tabwrangler/internal/brotab"
	"github.com/lotas/tabwrangler/internal/config"
	"github.com/lotas/tabwrangler/internal/firefox"
	"github.com/lotas/tabwrangler/internal/persist"
	"github.com/lotas/tabwrangler/internal/server"
	"github.com/lotas/tabwrangler/internal/source"
	"github.com/lotas/tabwrangler/internal/storage"
	"github.com/lotas/tabwrangler/internal/tui"
	"github.com/lotas/tabwrangler/internal/types"
	"github.com/lotas/tabwrangler/internal/urlfilter"
)

// bridgeWait is how long one-shot commands wait for the extension.
const bridgeWait = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags override the matching config keys when set.
type globalFlags struct {
	configPath string
	source     string
	saveDir    string
	port       int
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "tabwrangler",
		Short:         "Browse, save and close browser windows from the terminal",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.config/tabwrangler/config.yaml)")
	pf.StringVar(&flags.source, "source", "", "tab source: bridge, brotab, session or demo")
	pf.StringVar(&flags.saveDir, "save-dir", "", "folder saved windows are written to")
	pf.IntVar(&flags.port, "port", 0, "WebSocket port for the bridge source")

	root.AddCommand(newWindowsCmd(&flags))
	root.AddCommand(newExportCmd(&flags))
	root.AddCommand(newHistoryCmd(&flags))
	root.AddCommand(newProfilesCmd())
	root.AddCommand(newConfigCmd(&flags))
	return root
}

// load reads the config file and environment, applies flag overrides and
// starts the log file.
func (f *globalFlags) load() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.source != "" {
		cfg.Source = f.source
	}
	if f.saveDir != "" {
		cfg.SaveDir = f.saveDir
	}
	if f.port != 0 {
		cfg.Bridge.Port = f.port
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	if err := applog.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	return cfg, nil
}

// tabSource is an opened source plus what the shell needs to present it.
type tabSource struct {
	src     source.Source
	label   string
	changes <-chan struct{}
	bridge  *server.Server
}

// openSource builds the configured source. profile, when non-empty,
// overrides firefox.profile. The bridge listens until ctx is done.
func openSource(ctx context.Context, cfg config.Config, profile string) (*tabSource, error) {
	switch cfg.Source {
	case config.SourceBridge:
		srv := server.New(cfg.Bridge.Port)
		srv.Timeout = time.Duration(cfg.Bridge.TimeoutSeconds) * time.Second
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				applog.Error("server.listen", err)
			}
		}()
		return &tabSource{
			src:     srv,
			label:   fmt.Sprintf("bridge :%d", srv.Port()),
			changes: srv.Changes(),
			bridge:  srv,
		}, nil
	case config.SourceBrotab:
		c := brotab.New(cfg.Brotab.Addr, cfg.Brotab.Prefix)
		return &tabSource{src: c, label: "brotab " + cfg.Brotab.Addr}, nil
	case config.SourceSession:
		if profile == "" {
			profile = cfg.Firefox.Profile
		}
		p, err := firefox.ResolveProfile(profile)
		if err != nil {
			return nil, err
		}
		return &tabSource{
			src:   &firefox.SessionSource{ProfileDir: p.Path},
			label: "firefox " + p.Name + " (read-only)",
		}, nil
	case config.SourceDemo:
		return &tabSource{src: demoSource(), label: "demo"}, nil
	}
	return nil, fmt.Errorf("unsupported source %q", cfg.Source)
}

// waitForBridge blocks until the extension says hello or the wait runs out.
func (s *tabSource) waitForBridge(ctx context.Context) error {
	if s.bridge == nil || s.bridge.Connected() {
		return nil
	}
	fmt.Fprintf(os.Stderr, "Waiting for browser extension on port %d...\n", s.bridge.Port())
	timeout := time.After(bridgeWait)
	for {
		select {
		case <-s.changes:
			if s.bridge.Connected() {
				return nil
			}
		case <-timeout:
			return fmt.Errorf("timed out waiting for extension (%s)", bridgeWait)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// listOnce opens the source and returns a single listing.
func listOnce(ctx context.Context, cfg config.Config) (types.Listing, string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ts, err := openSource(ctx, cfg, "")
	if err != nil {
		return nil, "", err
	}
	if err := ts.waitForBridge(ctx); err != nil {
		return nil, "", err
	}
	listing, err := ts.src.List(ctx)
	return listing, ts.label, err
}

func newEngine(cfg config.Config, src source.Source, db *sql.DB) *persist.Engine {
	e := persist.New(src, cfg.SaveDir)
	e.Ignore = urlfilter.New(cfg.IgnoredURLs)
	e.Placeholder = cfg.PlaceholderURL
	e.DB = db
	return e
}

func runTUI(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer applog.Close()

	profile := ""
	if cfg.Source == config.SourceSession && cfg.Firefox.Profile == "" {
		profiles, err := firefox.DiscoverProfiles()
		if err == nil && len(profiles) > 1 {
			p, ok, err := tui.PickProfile(profiles)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			profile = p.Path
		}
	}

	ts, err := openSource(ctx, cfg, profile)
	if err != nil {
		return err
	}

	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		// The ledger is optional; saving still works without it.
		applog.Error("db.open", err, "path", cfg.DBPath)
		db = nil
	} else {
		defer db.Close()
	}

	applog.Info("tui.start", "source", cfg.Source, "save_dir", cfg.SaveDir)
	model := tui.NewModel(tui.Options{
		Source:  ts.src,
		Engine:  newEngine(cfg, ts.src, db),
		Label:   ts.label,
		Changes: ts.changes,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	_, err = p.Run()
	return err
}

// demoSource is an in-memory browser for trying the dashboard out.
func demoSource() *source.Fake {
	tab := func(window, id, title, url string) types.Tab {
		return types.Tab{ID: types.TabID{Browser: "a", Window: window, Tab: id}, Title: title, URL: url}
	}
	return source.NewFake(
		tab("1", "1", "The Go Programming Language", "https://go.dev/"),
		tab("1", "2", "Effective Go", "https://go.dev/doc/effective_go"),
		tab("1", "3", "Bubble Tea", "https://github.com/charmbracelet/bubbletea"),
		tab("2", "4", "Hacker News", "https://news.ycombinator.com/"),
		tab("2", "5", "Lobsters", "https://lobste.rs/"),
		tab("3", "6", "Flights to Lisbon", "https://flights.example/lis"),
		tab("3", "7", "Hotels in Lisbon", "https://hotels.example/lis"),
		tab("3", "8", "The Go Programming Language", "https://go.dev/"),
	)
}
