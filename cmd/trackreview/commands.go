package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/animation"
	"github.com/banshee-data/trackreview/internal/review/formatter"
	"github.com/banshee-data/trackreview/internal/review/loader"
	"github.com/banshee-data/trackreview/internal/review/monitor"
	"github.com/banshee-data/trackreview/internal/review/plotmanager"
	"github.com/banshee-data/trackreview/internal/review/render"
	"github.com/banshee-data/trackreview/internal/review/store"
	"github.com/banshee-data/trackreview/internal/security"
)

// plotFlags are the selection and per-plot settings flags. They map onto
// the viewer's query parameters so both surfaces share one parser.
type plotFlags struct {
	tracks []string
	truth  []string
	frame  int
	bins   int
	sigma  float64
	mode   string
	units  string
}

func (p *plotFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&p.tracks, "tracks", nil, `Track ids to select, or "All" (default: all; empty selects none)`)
	f.StringSliceVar(&p.truth, "truth", nil, `Truth ids to select, or "All" (default: all; empty selects none)`)
	f.IntVar(&p.frame, "frame", -1, "Animation frame index; negative selects the last frame")
	f.IntVar(&p.bins, "bins", 0, "Histogram bin count (forced odd)")
	f.Float64Var(&p.sigma, "sigma", 0, "Histogram extent in standard deviations")
	f.StringVar(&p.mode, "mode", "", "Histogram window mode: sigma or autofit")
	f.StringVar(&p.units, "units", "", "Error units: m, ft, km or nmi")
}

func (p *plotFlags) query(cmd *cobra.Command) url.Values {
	q := url.Values{}
	f := cmd.Flags()
	if f.Changed("tracks") {
		q.Set("tracks", strings.Join(p.tracks, ","))
	}
	if f.Changed("truth") {
		q.Set("truth", strings.Join(p.truth, ","))
	}
	q.Set("frame", strconv.Itoa(p.frame))
	if f.Changed("bins") {
		q.Set("bins", strconv.Itoa(p.bins))
	}
	if f.Changed("sigma") {
		q.Set("sigma", strconv.FormatFloat(p.sigma, 'g', -1, 64))
	}
	if p.mode != "" {
		q.Set("mode", p.mode)
	}
	if p.units != "" {
		q.Set("units", p.units)
	}
	return q
}

func (p *plotFlags) context(cmd *cobra.Command, o *options) (formatter.Context, error) {
	return monitor.ParseContext(p.query(cmd), o.cfg, p.frame)
}

func writeTable(w io.Writer, header []string, rows [][]string) error {
	t := tablewriter.NewWriter(w)
	t.Header(header)
	if err := t.Bulk(rows); err != nil {
		return fmt.Errorf("failed to add table rows: %w", err)
	}
	return t.Render()
}

// sourceWidth returns the room left for the Source column of the list
// table, from the override or the terminal width.
func sourceWidth(override int) int {
	width := override
	if width <= 0 {
		detected, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detected <= 0 {
			detected = 80
		}
		width = detected
	}
	// Name, counts and errors columns plus borders.
	available := width - 60
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}

// shortenPath keeps the tail of p within max runes.
func shortenPath(p string, max int) string {
	r := []rune(p)
	if len(r) <= max || max <= 3 {
		return p
	}
	return "..." + string(r[len(r)-(max-3):])
}

func newListCmd(o *options) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the loaded datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := o.state(cmd.Context())
			if err != nil {
				return err
			}
			maxSource := sourceWidth(width)
			var rows [][]string
			for _, name := range st.Names() {
				ds := st.Datasets[name]
				label := name
				if name == st.Focus {
					label += " *"
				}
				errs := "computed"
				if ds.Has(review.CapPrecomputedErrors) {
					errs = "precomputed"
				}
				rows = append(rows, []string{
					label,
					strconv.Itoa(ds.Tracks.Len()),
					strconv.Itoa(ds.Truth.Len()),
					strconv.Itoa(ds.Detections.Len()),
					errs,
					shortenPath(ds.Source, maxSource),
				})
			}
			return writeTable(cmd.OutOrStdout(), []string{"Name", "Tracks", "Truth", "Detections", "Errors", "Source"}, rows)
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "Table width (default: terminal width)")
	return cmd
}

func newFormattersCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "formatters",
		Short: "List the plots and whether each can run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			datasets, err := o.loadDatasets(cmd.Context())
			if err != nil {
				return err
			}
			st := formatter.NewState(datasets...)
			if o.focus != "" {
				st.Focus = o.focus
			}
			var rows [][]string
			for _, a := range plotmanager.New(nil, nil).Available(st) {
				rows = append(rows, []string{a.Name, a.Title, strconv.FormatBool(a.Enabled), a.Reason})
			}
			return writeTable(cmd.OutOrStdout(), []string{"Name", "Title", "Enabled", "Reason"}, rows)
		},
	}
}

func newPlotCmd(o *options) *cobra.Command {
	var (
		pf     plotFlags
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "plot NAME",
		Short: "Render one plot to the terminal or a file",
		Long:  "Render one plot. NAME is a formatter name from 'trackreview formatters'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFor(format)
			if err != nil {
				return err
			}
			if _, ok := formatter.Default().Get(args[0]); !ok {
				return fmt.Errorf("unknown plot %q", args[0])
			}
			st, err := o.state(cmd.Context())
			if err != nil {
				return err
			}
			ctx, err := pf.context(cmd, o)
			if err != nil {
				return err
			}
			path := out
			if security.IsDir(path) {
				path = filepath.Join(path, security.SafeName(st.Focus, args[0])+render.Extension(backend.Name()))
			}
			return writeOutput(cmd.OutOrStdout(), path, func(w io.Writer) error {
				_, err := plotmanager.New(nil, backend).Render(w, args[0], st, ctx)
				return err
			})
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", render.Table, "Output format: "+strings.Join(render.Names(), ", "))
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file, or into this directory as <dataset>_<plot>.<ext>, instead of stdout")
	return cmd
}

func newStatsCmd(o *options) *cobra.Command {
	var pf plotFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print error statistics per dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := o.state(cmd.Context())
			if err != nil {
				return err
			}
			ctx, err := pf.context(cmd, o)
			if err != nil {
				return err
			}
			m := plotmanager.New(nil, render.NewTable(!color.NoColor))
			_, err = m.Render(cmd.OutOrStdout(), formatter.ErrorStatistics, st, ctx)
			return err
		},
	}
	pf.register(cmd)
	return cmd
}

func newFramesCmd(o *options) *cobra.Command {
	var (
		pf    plotFlags
		play  bool
		speed float64
	)
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Print the animation timeline of the focus dataset",
		Long:  "Print the animation timeline of the focus dataset. With --play, step through it once at the playback rate, printing each frame.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := o.state(cmd.Context())
			if err != nil {
				return err
			}
			ctx, err := pf.context(cmd, o)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			total := formatter.FrameCount(st, ctx)
			fmt.Fprintf(w, "%s: %d frames\n", st.Focus, total)
			if !play || total == 0 {
				return nil
			}

			player := animation.NewPlayer(total, nil)
			if !cmd.Flags().Changed("speed") {
				speed = ctx.Settings.GetAnimationSpeed()
			}
			if err := player.SetSpeed(speed); err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := plotmanager.New(nil, nil)
			printFrame := func(i int) {
				ctx.Frame = i
				cfg := m.Prepare(formatter.LatLonAnimation, st, ctx)
				if cfg.Frame != nil {
					fmt.Fprintf(w, "frame %d/%d %s\n", cfg.Frame.Index+1, cfg.Frame.Total, cfg.Frame.Current)
				}
			}
			printFrame(0)
			for i := range player.Play(runCtx) {
				printFrame(i)
				if i == total-1 {
					player.Stop()
				}
			}
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVar(&play, "play", false, "Play through the timeline once")
	cmd.Flags().Float64Var(&speed, "speed", 1, "Playback speed multiplier")
	return cmd
}

func newImportCmd(o *options) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import DIR...",
		Short: "Import recording directories into the dataset store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.dbPath == "" {
				return fmt.Errorf("import needs --db")
			}
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name applies to a single directory")
			}
			s, err := store.Open(o.dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			for _, dir := range args {
				ds, err := loader.LoadCSVDir(dir, name, o.cfg.GetSchemaOverrides())
				if err != nil {
					return err
				}
				if err := s.Import(cmd.Context(), ds); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%s)\n", ds.Name, ds.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Dataset name (default: directory name)")
	return cmd
}

func newDeleteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a dataset from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.dbPath == "" {
				return fmt.Errorf("delete needs --db")
			}
			s, err := store.Open(o.dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

// backendFor returns the named backend; terminal tables get colour.
func backendFor(format string) (render.Backend, error) {
	b, err := render.New(format)
	if err != nil {
		return nil, err
	}
	if t, ok := b.(*render.TableBackend); ok {
		t.Colors = !color.NoColor
	}
	return b, nil
}

// writeOutput runs fn against path, or stdout when path is empty.
func writeOutput(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
