package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/banshee-data/trackreview/internal/review/histogram"
	"github.com/banshee-data/trackreview/internal/review/plotconfig"
)

// TableBackend prints the numbers behind a config as text tables for
// terminals and logs.
type TableBackend struct {
	Colors    bool
	Precision int
}

// NewTable returns a table backend. colors enables ANSI title colouring.
func NewTable(colors bool) *TableBackend {
	return &TableBackend{Colors: colors, Precision: 3}
}

func (b *TableBackend) Name() string        { return Table }
func (b *TableBackend) ContentType() string { return "text/plain; charset=utf-8" }

func (b *TableBackend) num(v float64) string {
	if !finite(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', b.Precision, 64)
}

// Render writes the title, the series table, one table per histogram and
// an overlay summary.
func (b *TableBackend) Render(w io.Writer, cfg plotconfig.PlotConfig) error {
	title := fmt.Sprint
	if b.Colors {
		title = color.New(color.FgCyan, color.Bold).SprintFunc()
	}
	if _, err := fmt.Fprintln(w, title(cfg.Title)); err != nil {
		return err
	}
	if cfg.Frame != nil {
		if _, err := fmt.Fprintf(w, "frame %d/%d %s\n", cfg.Frame.Index+1, cfg.Frame.Total, cfg.Frame.Current); err != nil {
			return err
		}
	}
	if cfg.IsEmpty() {
		return nil
	}

	if len(cfg.Series) > 0 {
		if err := b.seriesTable(w, cfg); err != nil {
			return err
		}
	}
	for _, h := range cfg.Histograms {
		if err := b.histogramTable(w, cfg, h); err != nil {
			return err
		}
	}
	if len(cfg.Overlays) > 0 {
		if err := b.overlayTable(w, cfg.Overlays); err != nil {
			return err
		}
	}
	return nil
}

func (b *TableBackend) newTable(w io.Writer) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	return t
}

func (b *TableBackend) seriesTable(w io.Writer, cfg plotconfig.PlotConfig) error {
	t := b.newTable(w)
	xLabel := cfg.XLabel
	if xLabel == "" {
		xLabel = "x"
	}
	headers := []string{xLabel}
	for _, s := range cfg.Series {
		headers = append(headers, s.Name)
	}
	t.Header(headers)

	var rows [][]string
	for i, x := range cfg.X {
		row := []string{tickLabel(cfg, i, x)}
		if cfg.XTicks == nil {
			row[0] = b.num(x)
		}
		for _, s := range cfg.Series {
			if i < len(s.Values) {
				row = append(row, b.num(s.Values[i]))
			} else {
				row = append(row, "-")
			}
		}
		rows = append(rows, row)
	}
	if err := t.Bulk(rows); err != nil {
		return fmt.Errorf("failed to add series rows: %w", err)
	}
	return t.Render()
}

func (b *TableBackend) histogramTable(w io.Writer, cfg plotconfig.PlotConfig, h plotconfig.Histogram) error {
	counts := histogram.Counts(h.Values, h.Edges)
	if counts == nil {
		return nil
	}
	label := h.Style.Label
	if label == "" {
		label = cfg.XLabel
	}
	if _, err := fmt.Fprintf(w, "%s: n=%d mean=%s std=%s\n", label, len(h.Values), b.num(h.Mean), b.num(h.Std)); err != nil {
		return err
	}
	t := b.newTable(w)
	t.Header([]string{"Bin Low", "Bin High", "Count"})
	var rows [][]string
	for i, n := range counts {
		rows = append(rows, []string{b.num(h.Edges[i]), b.num(h.Edges[i+1]), strconv.Itoa(int(n))})
	}
	if err := t.Bulk(rows); err != nil {
		return fmt.Errorf("failed to add histogram rows: %w", err)
	}
	return t.Render()
}

func (b *TableBackend) overlayTable(w io.Writer, overlays []plotconfig.Overlay) error {
	t := b.newTable(w)
	t.Header([]string{"Overlay", "Points", "X Min", "X Max", "Y Min", "Y Max"})
	var rows [][]string
	for i, o := range overlays {
		name := o.Style.Label
		if name == "" {
			name = fmt.Sprintf("overlay %d", i+1)
		}
		pts := pairs(o.X, o.Y)
		row := []string{name, strconv.Itoa(len(pts)), "-", "-", "-", "-"}
		if len(pts) > 0 {
			xMin, xMax, yMin, yMax := pts[0].x, pts[0].x, pts[0].y, pts[0].y
			for _, p := range pts[1:] {
				xMin, xMax = min(xMin, p.x), max(xMax, p.x)
				yMin, yMax = min(yMin, p.y), max(yMax, p.y)
			}
			row[2], row[3], row[4], row[5] = b.num(xMin), b.num(xMax), b.num(yMin), b.num(yMax)
		}
		rows = append(rows, row)
	}
	if err := t.Bulk(rows); err != nil {
		return fmt.Errorf("failed to add overlay rows: %w", err)
	}
	return t.Render()
}
