package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trackreview/internal/config"
	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/monitor"
	"github.com/banshee-data/trackreview/internal/review/plotmanager"
	"github.com/banshee-data/trackreview/internal/review/render"
)

func newServeCmd(o *options) *cobra.Command {
	var (
		configPath string
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive plot viewer over HTTP",
		Long: `Serve the plot viewer. Settings are layered from defaults, the --config
YAML file and TRACKREVIEW_* environment variables; --addr, --data, --db,
--settings and --focus override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := config.LoadServerConfig(configPath)
			if err != nil {
				return err
			}
			applyServeFlags(cmd, o, sc, addr)
			return serve(cmd.Context(), o, sc)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Server config file (YAML)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8090)")
	return cmd
}

// applyServeFlags lets explicit command line flags win over the config file.
func applyServeFlags(cmd *cobra.Command, o *options, sc *config.ServerConfig, addr string) {
	if addr != "" {
		sc.Addr = addr
	}
	flags := cmd.Flags()
	if flags.Changed("data") {
		sc.DataDir = o.dataDir
	}
	if flags.Changed("db") {
		sc.DBPath = o.dbPath
	}
	if flags.Changed("focus") {
		sc.Focus = o.focus
	}
	if flags.Changed("settings") {
		sc.Settings = o.settings
	}
}

func serve(ctx context.Context, o *options, sc *config.ServerConfig) error {
	settings := o.cfg
	if sc.Settings != "" && sc.Settings != o.settings {
		s, err := config.LoadSettings(sc.Settings)
		if err != nil {
			return err
		}
		settings = settings.Merge(s)
	}

	backend, err := render.New(sc.Backend)
	if err != nil {
		return err
	}
	reload := func(ctx context.Context) ([]*review.Dataset, error) {
		return loadSources(ctx, sc.DataDir, sc.DBPath, settings.GetSchemaOverrides())
	}
	datasets, err := reload(ctx)
	if err != nil {
		return fmt.Errorf("failed to load datasets: %w", err)
	}

	ws, err := monitor.NewWebServer(monitor.WebServerConfig{
		Address:  sc.Addr,
		Manager:  plotmanager.New(nil, backend),
		Datasets: datasets,
		Focus:    sc.Focus,
		Settings: settings,
		Cache: monitor.CacheConfig{
			PageCacheMB:    sc.PageCacheMB,
			PageTTL:        sc.PageTTL,
			QueryCacheSize: sc.QueryCacheSize,
		},
		CORSOrigins: sc.Origins(),
		Reload:      reload,
	})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return ws.Start(runCtx)
}
