package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trackreview/internal/config"
	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/formatter"
	"github.com/banshee-data/trackreview/internal/review/loader"
	"github.com/banshee-data/trackreview/internal/review/schema"
	"github.com/banshee-data/trackreview/internal/review/store"
	"github.com/banshee-data/trackreview/internal/version"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	dataDir  string
	dbPath   string
	settings string
	focus    string
	verbose  bool
	trace    bool

	// set by the pre-run hook
	cfg *config.Settings
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "trackreview",
		Short:         "Review tracker output against ground truth.",
		Long:          "trackreview loads tracks, truth and detections recorded per run and plots position errors, error distributions and geographic views.",
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd.ErrOrStderr())
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dataDir, "data", "", "Directory of recordings, one sub-directory of CSV tables each")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite dataset store")
	flags.StringVar(&opts.settings, "settings", "", "Plot settings file (.json or .yaml)")
	flags.StringVar(&opts.focus, "focus", "", "Dataset to focus (default: first by name)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log diagnostics: skipped rows, dropped ids, fallbacks")
	flags.BoolVar(&opts.trace, "trace", false, "Log per-row trace output")

	root.AddCommand(newListCmd(opts))
	root.AddCommand(newFormattersCmd(opts))
	root.AddCommand(newPlotCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newFramesCmd(opts))
	root.AddCommand(newImportCmd(opts))
	root.AddCommand(newDeleteCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// setup configures the log streams and loads settings.
func (o *options) setup(stderr io.Writer) error {
	w := review.LogWriters{Ops: stderr}
	if o.verbose || o.trace {
		w.Diag = stderr
	}
	if o.trace {
		w.Trace = stderr
	}
	review.SetLogWriters(w)

	o.cfg = config.DefaultSettings()
	if o.settings != "" {
		s, err := config.LoadSettings(o.settings)
		if err != nil {
			return err
		}
		o.cfg = o.cfg.Merge(s)
	}
	return nil
}

// loadDatasets reads every dataset from --data and --db. A store dataset
// replaces a directory dataset of the same name.
func (o *options) loadDatasets(ctx context.Context) ([]*review.Dataset, error) {
	return loadSources(ctx, o.dataDir, o.dbPath, o.cfg.GetSchemaOverrides())
}

func loadSources(ctx context.Context, dataDir, dbPath string, mapping schema.Mapping) ([]*review.Dataset, error) {
	byName := make(map[string]*review.Dataset)
	var order []string
	add := func(ds *review.Dataset) {
		if _, ok := byName[ds.Name]; !ok {
			order = append(order, ds.Name)
		}
		byName[ds.Name] = ds
	}

	if dataDir != "" {
		all, err := loader.LoadAll(dataDir, mapping)
		if err != nil {
			return nil, err
		}
		for _, ds := range all {
			add(ds)
		}
	}
	if dbPath != "" {
		s, err := store.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		all, err := s.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, ds := range all {
			add(ds)
		}
	}

	out := make([]*review.Dataset, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

// state loads the datasets and applies --focus.
func (o *options) state(ctx context.Context) (*formatter.State, error) {
	datasets, err := o.loadDatasets(ctx)
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no datasets found: pass --data or --db")
	}
	st := formatter.NewState(datasets...)
	if names := st.Names(); len(names) > 0 {
		st.Focus = names[0]
	}
	if o.focus != "" {
		if _, ok := st.Datasets[o.focus]; !ok {
			return nil, fmt.Errorf("focus dataset %q not found", o.focus)
		}
		st.Focus = o.focus
	}
	return st, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
