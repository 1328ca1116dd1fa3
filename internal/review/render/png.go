package render

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/trackreview/internal/review/histogram"
	"github.com/banshee-data/trackreview/internal/review/plotconfig"
)

// PNGBackend renders static images with gonum/plot. gonum/plot has a single
// y axis, so secondary-axis overlays share the primary one.
type PNGBackend struct {
	Width  vg.Length
	Height vg.Length
}

// NewPNG returns a PNG backend sized like the grid plots.
func NewPNG() *PNGBackend {
	return &PNGBackend{Width: 10 * vg.Inch, Height: 6 * vg.Inch}
}

func (b *PNGBackend) Name() string        { return PNG }
func (b *PNGBackend) ContentType() string { return "image/png" }

var pngDashes = map[string][]vg.Length{
	"--": {vg.Points(6), vg.Points(3)},
	"-.": {vg.Points(6), vg.Points(2), vg.Points(1), vg.Points(2)},
	":":  {vg.Points(1), vg.Points(2)},
}

func pngGlyph(marker string) draw.GlyphDrawer {
	switch marker {
	case "s":
		return draw.BoxGlyph{}
	case "^", "v":
		return draw.TriangleGlyph{}
	case "D":
		return draw.PyramidGlyph{}
	case "x", "X":
		return draw.CrossGlyph{}
	case "P", "+":
		return draw.PlusGlyph{}
	}
	return draw.CircleGlyph{}
}

// Render writes a PNG of cfg to w.
func (b *PNGBackend) Render(w io.Writer, cfg plotconfig.PlotConfig) error {
	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = cfg.XLabel
	p.Y.Label.Text = cfg.YLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	categorical := cfg.XTicks != nil && len(cfg.Histograms) == 0
	if categorical {
		if err := b.addBars(p, cfg); err != nil {
			return err
		}
	} else {
		for i, st := range seriesStyles(cfg) {
			if err := addXY(p, cfg.Series[i].Name, cfg.X, cfg.Series[i].Values, st); err != nil {
				return err
			}
		}
	}
	for _, h := range cfg.Histograms {
		if err := addHistogram(p, h); err != nil {
			return err
		}
	}
	for _, o := range cfg.Overlays {
		if err := addXY(p, o.Style.Label, o.X, o.Y, o.Style); err != nil {
			return err
		}
	}

	if cfg.XLim != nil {
		p.X.Min, p.X.Max = cfg.XLim.Min, cfg.XLim.Max
	}
	if cfg.YLim != nil {
		p.Y.Min, p.Y.Max = cfg.YLim.Min, cfg.YLim.Max
	}

	wt, err := p.WriterTo(b.Width, b.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// addXY adds a line or scatter of the finite points. Series with no finite
// point are skipped.
func addXY(p *plot.Plot, label string, x, y []float64, st plotconfig.Style) error {
	pts := pairs(x, y)
	if len(pts) == 0 {
		return nil
	}
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: pt.x, Y: pt.y}
	}
	c := rgba(st.Color)

	if st.Type == plotconfig.StyleScatter {
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("failed to create scatter %q: %w", label, err)
		}
		s.GlyphStyle.Color = c
		s.GlyphStyle.Shape = pngGlyph(st.Marker)
		s.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(s)
		if label != "" {
			p.Legend.Add(label, s)
		}
		return nil
	}

	l, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("failed to create line %q: %w", label, err)
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(1)
	l.LineStyle.Dashes = pngDashes[st.LineStyle]
	p.Add(l)
	if label != "" {
		p.Legend.Add(label, l)
	}
	return nil
}

// addHistogram adds the binned values plus mean and sigma marker lines.
func addHistogram(p *plot.Plot, h plotconfig.Histogram) error {
	counts := histogram.Counts(h.Values, h.Edges)
	if len(counts) == 0 {
		return nil
	}
	hist := &plotter.Histogram{
		Bins:  make([]plotter.HistogramBin, len(counts)),
		Width: h.Edges[1] - h.Edges[0],
	}
	peak := 0.0
	for i, n := range counts {
		hist.Bins[i] = plotter.HistogramBin{Min: h.Edges[i], Max: h.Edges[i+1], Weight: n}
		if n > peak {
			peak = n
		}
	}
	c := rgba(h.Style.Color)
	hist.LineStyle = draw.LineStyle{Color: c, Width: vg.Points(1)}
	if !h.Style.OutlineOnly {
		fill := c
		fill.A = 80
		hist.FillColor = fill
	}
	p.Add(hist)
	if h.Style.Label != "" {
		p.Legend.Add(h.Style.Label, hist)
	}
	if peak == 0 {
		peak = 1
	}

	vline := func(x float64, colour string, dashes []vg.Length) error {
		l, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: peak}})
		if err != nil {
			return fmt.Errorf("failed to create marker line: %w", err)
		}
		l.LineStyle = draw.LineStyle{Color: rgba(colour), Width: vg.Points(1), Dashes: dashes}
		p.Add(l)
		return nil
	}
	if h.Style.MeanLine && finite(h.Mean) {
		if err := vline(h.Mean, "tab:red", nil); err != nil {
			return err
		}
	}
	if h.Style.SigmaBands && finite(h.Std) && h.Std > 0 {
		for k := 1; k <= 3; k++ {
			for _, x := range []float64{h.Mean - float64(k)*h.Std, h.Mean + float64(k)*h.Std} {
				if err := vline(x, "tab:gray", pngDashes[":"]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// addBars draws categorical series as grouped bars with the tick labels.
func (b *PNGBackend) addBars(p *plot.Plot, cfg plotconfig.PlotConfig) error {
	styles := seriesStyles(cfg)
	n := len(cfg.Series)
	if n == 0 {
		return nil
	}
	width := vg.Points(40) / vg.Length(n)
	for i, s := range cfg.Series {
		vals := make(plotter.Values, len(s.Values))
		for j, v := range s.Values {
			if finite(v) {
				vals[j] = v
			}
		}
		if len(vals) == 0 {
			continue
		}
		bars, err := plotter.NewBarChart(vals, width)
		if err != nil {
			return fmt.Errorf("failed to create bars %q: %w", s.Name, err)
		}
		bars.Color = rgba(styles[i].Color)
		bars.LineStyle.Width = 0
		bars.Offset = width * vg.Length(i-n/2)
		p.Add(bars)
		p.Legend.Add(s.Name, bars)
	}
	ticks := make([]plot.Tick, len(cfg.XTicks.Values))
	for i, v := range cfg.XTicks.Values {
		ticks[i] = plot.Tick{Value: v, Label: tickLabel(cfg, i, v)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	return nil
}
