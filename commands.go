package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lotas/tabwrangler/internal/config"
	"github.com/lotas/tabwrangler/internal/export"
	"github.com/lotas/tabwrangler/internal/firefox"
	"github.com/lotas/tabwrangler/internal/storage"
	"github.com/lotas/tabwrangler/internal/types"
	"github.com/lotas/tabwrangler/internal/windowlist"
)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// windowsOf turns a listing into list windows in source order.
func windowsOf(listing types.Listing) []windowlist.Window {
	list := windowlist.New()
	list.Refresh(listing)
	return list.AllWindows()
}

func newWindowsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "windows",
		Short: "Print every window and its tabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			listing, _, err := listOnce(commandContext(cmd), cfg)
			if err != nil {
				return err
			}
			printWindows(cmd.OutOrStdout(), listing)
			return nil
		},
	}
}

func printWindows(w io.Writer, listing types.Listing) {
	for i, win := range listing {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", win.ID, types.Plural(len(win.Tabs), "tab"))
		for _, t := range win.Tabs {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", t.ID, t.Title, t.URL)
		}
	}
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var (
		asJSON  bool
		outFile string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the current windows as markdown or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			listing, label, err := listOnce(commandContext(cmd), cfg)
			if err != nil {
				return err
			}
			output, err := render(label, windowsOf(listing), asJSON)
			if err != nil {
				return err
			}
			if outFile != "" {
				return os.WriteFile(outFile, []byte(output), 0o644)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), output)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "export as JSON instead of markdown")
	cmd.Flags().StringVar(&outFile, "out", "", "output file path (default: stdout)")
	return cmd
}

func render(label string, windows []windowlist.Window, asJSON bool) (string, error) {
	if asJSON {
		out, err := export.JSON(label, windows)
		if err != nil {
			return "", fmt.Errorf("generate JSON: %w", err)
		}
		return out, nil
	}
	return export.Markdown(label, windows), nil
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var (
		limit int
		url   string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded saves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			db, err := storage.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			var saves []storage.SaveRecord
			if url != "" {
				saves, err = storage.FindSavesByURL(db, url)
			} else {
				saves, err = storage.ListSaves(db, limit)
			}
			if err != nil {
				return err
			}
			printSaves(cmd.OutOrStdout(), saves)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of saves to show (0 for all)")
	cmd.Flags().StringVar(&url, "url", "", "only saves containing this URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show the tabs of one save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid save id %q", args[0])
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			db, err := storage.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			rec, err := storage.GetSave(db, id)
			if err != nil {
				return err
			}
			printSave(cmd.OutOrStdout(), rec)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Forget one save (the saved file stays)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid save id %q", args[0])
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			db, err := storage.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := storage.DeleteSave(db, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted save #%d\n", id)
			return nil
		},
	})
	return cmd
}

func saveOutcome(rec storage.SaveRecord) string {
	switch {
	case rec.Discarded:
		return "discarded"
	case rec.Appended:
		return "appended to " + rec.Path
	default:
		return "saved as " + rec.Path
	}
}

func printSaves(w io.Writer, saves []storage.SaveRecord) {
	if len(saves) == 0 {
		fmt.Fprintln(w, "No saves recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tWINDOW\tTABS\tRESULT")
	for _, s := range saves {
		fmt.Fprintf(tw, "#%d\t%s\t%s\t%d\t%s\n", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.WindowID, s.TabCount, saveOutcome(s))
	}
	tw.Flush()
}

func printSave(w io.Writer, rec *storage.SaveRecord) {
	fmt.Fprintf(w, "Save #%d: window %s, %s, %s\n", rec.ID, rec.WindowID, types.Plural(rec.TabCount, "tab"), saveOutcome(*rec))
	for _, t := range rec.Tabs {
		fmt.Fprintf(w, "  %s\t%s\n", t.Title, t.URL)
	}
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List Firefox profiles usable with the session source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := firefox.DiscoverProfiles()
			if err != nil {
				return fmt.Errorf("discover Firefox profiles: %w", err)
			}
			if len(profiles) == 0 {
				return fmt.Errorf("no Firefox profiles found")
			}
			printProfiles(cmd.OutOrStdout(), profiles)
			return nil
		},
	}
}

func printProfiles(w io.Writer, profiles []firefox.Profile) {
	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Fprintf(w, "%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var overwrite bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(flags.configPath, overwrite)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
