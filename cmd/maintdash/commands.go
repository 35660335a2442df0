package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"maintdash/internal/capture"
	"maintdash/internal/dashboard"
	"maintdash/internal/ics"
	appLog "maintdash/internal/log"
	"maintdash/internal/schedule"
	"maintdash/internal/view"
	"maintdash/internal/web"
)

type rootFlags struct {
	configPath string
	listen     string
	debug      bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "maintdash",
		Short:        "Maintenance scheduling dashboard",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Serve the dashboard and API
  maintdash serve --config /etc/maintdash/config.yaml

  # Print upcoming windows grouped by day
  maintdash list

  # Pull windows from the ICS feeds in the config
  maintdash import
`),
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "/etc/maintdash/config.yaml", "Path to config file")
	cmd.PersistentFlags().StringVar(&flags.listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Debug logging")

	cmd.AddCommand(
		newServeCmd(flags),
		newListCmd(flags),
		newImportCmd(flags),
		newSnapshotCmd(flags),
	)
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard, JSON API and calendar feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			// A failed first load is shown on the page and retried by the scheduler.
			_ = e.app.Refresh(ctx)

			runner := schedule.New(ctx, e.cfg.Location())
			if _, err := runner.Add(e.cfg.RefreshCron, "refresh", e.app.Refresh); err != nil {
				return fmt.Errorf("bad refresh schedule %q: %w", e.cfg.RefreshCron, err)
			}
			runner.Start()
			defer runner.Stop()

			return web.NewServer(e.cfg, e.app).ListenAndServe(ctx)
		},
	}
}

func newListCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print maintenance windows grouped by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.app.Refresh(ctx); err != nil {
				return err
			}
			st := e.app.View()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printDashboard(cmd.OutOrStdout(), st, e.app.Options())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the projected dashboard as JSON")
	return cmd
}

func printDashboard(w io.Writer, st dashboard.State, opts view.Options) {
	if len(st.Groups) == 0 {
		fmt.Fprintln(w, "No active maintenance windows.")
	}
	for _, g := range st.Groups {
		fmt.Fprintln(w, g.Label)
		for _, ev := range g.Events {
			fmt.Fprintf(w, "  %-15s [%s] %s · %s (%s)\n",
				view.TimeRange(ev.StartDate, ev.EndDate, opts.Location), ev.Impact, ev.Title, ev.System, ev.Status)
		}
	}
	if len(st.Completed) > 0 {
		fmt.Fprintf(w, "Completed (%d)\n", len(st.Completed))
		for _, ev := range st.Completed {
			fmt.Fprintf(w, "  %s · %s\n", ev.Title, ev.System)
		}
	}
	s := st.Stats
	fmt.Fprintf(w, "active=%d high=%d systems=%d notified=%d%% completed=%d%% health=%d\n",
		s.Active, s.HighImpact, s.Systems, s.Coverage, s.CompletedPct, s.Health)
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	var urls []string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create maintenance windows from ICS feeds",
		Long: "Fetches the ICS feeds listed under import.sources (plus any --url), expands\n" +
			"recurrences up to import.horizon_days ahead and creates one window per\n" +
			"occurrence. Occurrences already present (same title, system and start) are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.app.Refresh(ctx); err != nil {
				return err
			}

			sources := make([]ics.Source, 0, len(e.cfg.Import.Sources)+len(urls))
			for _, s := range e.cfg.Import.Sources {
				if s.URL == "" {
					continue
				}
				id := s.ID
				if id == "" {
					id = s.Name
				}
				sources = append(sources, ics.Source{ID: id, URL: s.URL, Name: s.Name})
			}
			for i, u := range urls {
				sources = append(sources, ics.Source{ID: fmt.Sprintf("cli-%d", i+1), URL: u})
			}
			if len(sources) == 0 {
				return errors.New("no ICS sources: set import.sources or pass --url")
			}

			im := ics.NewImporter(
				ics.NewFetcher(e.cfg.Import.CacheDir),
				e.store,
				e.cfg.Location(),
				e.cfg.Import.HorizonDays,
				time.Now,
			)
			rep, err := im.Run(ctx, sources, e.store.Snapshot().Events)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created=%d duplicates=%d cancelled=%d invalid=%d errors=%d\n",
				rep.Created, rep.Duplicates, rep.Cancelled, rep.Invalid, len(rep.Errors))
			if len(rep.Errors) > 0 {
				return errors.Join(rep.Errors...)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&urls, "url", nil, "Extra ICS feed URL (repeatable)")
	return cmd
}

func newSnapshotCmd(flags *rootFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the dashboard to a PNG with headless Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.app.Refresh(ctx); err != nil {
				return err
			}

			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				return err
			}
			srv := &http.Server{Handler: web.NewServer(e.cfg, e.app).Handler(), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					appLog.Error("snapshot server failed", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			opts := capture.Options{
				URL:     "http://" + ln.Addr().String() + "/",
				Width:   e.cfg.Capture.Width,
				Height:  e.cfg.Capture.Height,
				Timeout: time.Duration(e.cfg.Capture.TimeoutSec) * time.Second,
			}
			if ba := e.cfg.BasicAuth; ba != nil {
				opts.Username, opts.Password = ba.Username, ba.Password
			}
			return capture.SnapshotToFile(ctx, opts, out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "dashboard.png", "Output PNG path")
	return cmd
}
