package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trackreview/internal/review/histogram"
	"github.com/banshee-data/trackreview/internal/review/plotconfig"
)

// EChartsAssetsHost serves the echarts javascript for rendered pages.
const EChartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// EChartsBackend renders configs as interactive HTML pages.
type EChartsBackend struct {
	Width  string
	Height string
	Theme  string
}

// NewECharts returns an ECharts backend with default page geometry.
func NewECharts() *EChartsBackend {
	return &EChartsBackend{Width: "1000px", Height: "600px", Theme: "white"}
}

func (b *EChartsBackend) Name() string        { return ECharts }
func (b *EChartsBackend) ContentType() string { return "text/html; charset=utf-8" }

var echartsLineTypes = map[string]string{
	"-":  "solid",
	"--": "dashed",
	"-.": "dashed",
	":":  "dotted",
}

var echartsSymbols = map[string]string{
	"o": "circle",
	"s": "rect",
	"^": "triangle",
	"D": "diamond",
	"v": "triangle",
	"x": "pin",
}

// Render writes a self-contained HTML chart. Numeric x axes use value
// coordinates so overlays line up with the main content; categorical
// configs use the tick labels as the x axis.
func (b *EChartsBackend) Render(w io.Writer, cfg plotconfig.PlotConfig) error {
	line := charts.NewLine()
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  cfg.Title,
			Width:      b.Width,
			Height:     b.Height,
			Theme:      b.Theme,
			AssetsHost: EChartsAssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: cfg.Title, Subtitle: frameSubtitle(cfg)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: cfg.YLabel, Type: "value", Scale: opts.Bool(true), Min: limit(cfg.YLim, true), Max: limit(cfg.YLim, false)}),
	}

	categorical := cfg.XTicks != nil && len(cfg.Histograms) == 0
	if categorical {
		global = append(global, charts.WithXAxisOpts(opts.XAxis{Name: cfg.XLabel, Type: "category", Data: cfg.XTicks.Labels}))
	} else {
		global = append(global, charts.WithXAxisOpts(opts.XAxis{Name: cfg.XLabel, Type: "value", Scale: opts.Bool(true), Min: limit(cfg.XLim, true), Max: limit(cfg.XLim, false)}))
	}
	line.SetGlobalOptions(global...)
	if hasSecondary(cfg) {
		line.ExtendYAxis(opts.YAxis{Type: "value", Position: "right", Scale: opts.Bool(true)})
	}

	if categorical {
		bar := charts.NewBar()
		for i, st := range seriesStyles(cfg) {
			bar.AddSeries(cfg.Series[i].Name, barData(cfg.Series[i].Values),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: plotconfig.HexColor(st.Color, "")}))
		}
		line.Overlap(bar)
	} else {
		for i, st := range seriesStyles(cfg) {
			b.addXY(line, cfg.Series[i].Name, cfg.X, cfg.Series[i].Values, st)
		}
	}

	for _, h := range cfg.Histograms {
		b.addHistogram(line, h)
	}
	for i, o := range cfg.Overlays {
		name := o.Style.Label
		if name == "" {
			name = fmt.Sprintf("overlay %d", i+1)
		}
		b.addXY(line, name, o.X, o.Y, o.Style)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render echarts page: %w", err)
	}
	return nil
}

// addXY adds a line or scatter series of finite points.
func (b *EChartsBackend) addXY(line *charts.Line, name string, x, y []float64, st plotconfig.Style) {
	pts := pairs(x, y)
	yAxis := 0
	if st.SecondaryY {
		yAxis = 1
	}
	colour := plotconfig.HexColor(st.Color, "")
	symbol := echartsSymbols[st.Marker]

	if st.Type == plotconfig.StyleScatter {
		sc := charts.NewScatter()
		data := make([]opts.ScatterData, len(pts))
		for i, p := range pts {
			data[i] = opts.ScatterData{Value: []interface{}{p.x, p.y}}
		}
		sc.AddSeries(name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{YAxisIndex: yAxis, Symbol: symbol, SymbolSize: 6}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colour}))
		line.Overlap(sc)
		return
	}

	data := make([]opts.LineData, len(pts))
	for i, p := range pts {
		data[i] = opts.LineData{Value: []interface{}{p.x, p.y}}
	}
	lineType := echartsLineTypes[st.LineStyle]
	if lineType == "" {
		lineType = "solid"
	}
	line.AddSeries(name, data,
		charts.WithLineChartOpts(opts.LineChart{YAxisIndex: yAxis, Symbol: symbol, ShowSymbol: opts.Bool(symbol != "")}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colour, Type: lineType}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colour}))
}

// addHistogram draws bin counts as a stepped outline with mean and sigma
// mark lines.
func (b *EChartsBackend) addHistogram(line *charts.Line, h plotconfig.Histogram) {
	counts := histogram.Counts(h.Values, h.Edges)
	centers := histogram.Centers(h.Edges)
	data := make([]opts.LineData, len(centers))
	for i := range centers {
		data[i] = opts.LineData{Value: []interface{}{centers[i], counts[i]}}
	}
	name := h.Style.Label
	if name == "" {
		name = "histogram"
	}
	colour := plotconfig.HexColor(h.Style.Color, "#000000")

	seriesOpts := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{Step: "middle", ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colour}),
	}
	if !h.Style.OutlineOnly {
		seriesOpts = append(seriesOpts, charts.WithAreaStyleOpts(opts.AreaStyle{Color: colour, Opacity: opts.Float(0.3)}))
	}
	var marks []opts.MarkLineNameXAxisItem
	if h.Style.MeanLine {
		label := h.Style.MeanLabel
		if label == "" {
			label = "Mean"
		}
		marks = append(marks, opts.MarkLineNameXAxisItem{Name: label, XAxis: h.Mean})
	}
	if h.Style.SigmaBands && h.Std > 0 {
		for k := 1; k <= 3; k++ {
			marks = append(marks,
				opts.MarkLineNameXAxisItem{Name: fmt.Sprintf("-%dσ", k), XAxis: h.Mean - float64(k)*h.Std},
				opts.MarkLineNameXAxisItem{Name: fmt.Sprintf("+%dσ", k), XAxis: h.Mean + float64(k)*h.Std},
			)
		}
	}
	if len(marks) > 0 {
		seriesOpts = append(seriesOpts, charts.WithMarkLineNameXAxisItemOpts(marks...))
	}
	line.AddSeries(name, data, seriesOpts...)
}

func barData(values []float64) []opts.BarData {
	out := make([]opts.BarData, len(values))
	for i, v := range values {
		if finite(v) {
			out[i] = opts.BarData{Value: v}
		} else {
			out[i] = opts.BarData{Value: "-"}
		}
	}
	return out
}

func hasSecondary(cfg plotconfig.PlotConfig) bool {
	for _, o := range cfg.Overlays {
		if o.Style.SecondaryY {
			return true
		}
	}
	for _, st := range cfg.SeriesStyles {
		if st.SecondaryY {
			return true
		}
	}
	return false
}

func limit(r *plotconfig.Range, lower bool) interface{} {
	if r == nil {
		return nil
	}
	if lower {
		return r.Min
	}
	return r.Max
}

func frameSubtitle(cfg plotconfig.PlotConfig) string {
	if cfg.Frame == nil {
		return ""
	}
	return fmt.Sprintf("frame %d/%d  %s", cfg.Frame.Index+1, cfg.Frame.Total, cfg.Frame.Current)
}
