// Package plotconfig defines the render-ready plot description handed from
// formatters to rendering backends.
package plotconfig

import (
	"strings"
)

// NoData is appended to the title of a config that carries nothing to draw.
const NoData = "no data available"

// Plot styles.
const (
	StyleLine    = "line"
	StyleScatter = "scatter"
	StyleBar     = "bar"
)

// Style describes how one series, histogram or overlay is drawn.
type Style struct {
	Type        string `json:"type,omitempty"`
	Color       string `json:"color,omitempty"`
	Marker      string `json:"marker,omitempty"`
	LineStyle   string `json:"linestyle,omitempty"`
	Label       string `json:"label,omitempty"`
	SecondaryY  bool   `json:"secondary_y,omitempty"`
	OutlineOnly bool   `json:"outline_only,omitempty"`
	SigmaBands  bool   `json:"sigma_bands,omitempty"`
	MeanLine    bool   `json:"mean_line,omitempty"`
	MeanLabel   string `json:"mean_label,omitempty"`
}

// Series is one named y series sharing the config's X values.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Histogram is raw values plus the edges they are binned into.
type Histogram struct {
	Values []float64 `json:"values"`
	Edges  []float64 `json:"edges"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
	Style  Style     `json:"style"`
}

// Overlay is an independent x/y trace drawn over the main content.
type Overlay struct {
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
	Style Style     `json:"style"`
}

// Ticks labels axis positions.
type Ticks struct {
	Values []float64 `json:"values"`
	Labels []string  `json:"labels"`
}

// Range is an axis limit.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FrameInfo locates an animation frame on its timeline.
type FrameInfo struct {
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Current string `json:"current"`
}

// PlotConfig is either a set of series over X, or a list of histograms,
// plus overlays and axis metadata. A config is built fresh per request.
type PlotConfig struct {
	Title        string           `json:"title"`
	XLabel       string           `json:"xlabel,omitempty"`
	YLabel       string           `json:"ylabel,omitempty"`
	Style        string           `json:"style,omitempty"`
	X            []float64        `json:"x,omitempty"`
	Series       []Series         `json:"series,omitempty"`
	SeriesStyles map[string]Style `json:"series_styles,omitempty"`
	Histograms   []Histogram      `json:"histograms,omitempty"`
	Overlays     []Overlay        `json:"overlays,omitempty"`
	XTicks       *Ticks           `json:"x_ticks,omitempty"`
	YTicks       *Ticks           `json:"y_ticks,omitempty"`
	XLim         *Range           `json:"xlim,omitempty"`
	YLim         *Range           `json:"ylim,omitempty"`
	Frame        *FrameInfo       `json:"frame,omitempty"`
}

// Empty returns a structurally valid config with nothing to draw and a
// title that says so.
func Empty(title string) PlotConfig {
	if title == "" {
		return PlotConfig{Title: NoData}
	}
	if strings.Contains(title, NoData) {
		return PlotConfig{Title: title}
	}
	return PlotConfig{Title: title + " (" + NoData + ")"}
}

// IsEmpty reports whether the config has no drawable content.
func (c PlotConfig) IsEmpty() bool {
	for _, s := range c.Series {
		if len(s.Values) > 0 {
			return false
		}
	}
	for _, h := range c.Histograms {
		if len(h.Values) > 0 {
			return false
		}
	}
	for _, o := range c.Overlays {
		if len(o.X) > 0 {
			return false
		}
	}
	return true
}

// SeriesByName returns the named series.
func (c PlotConfig) SeriesByName(name string) (Series, bool) {
	for _, s := range c.Series {
		if s.Name == name {
			return s, true
		}
	}
	return Series{}, false
}

// StyleFor returns the style of a named series, falling back to the config
// style with the series name as label.
func (c PlotConfig) StyleFor(name string) Style {
	if s, ok := c.SeriesStyles[name]; ok {
		if s.Label == "" {
			s.Label = name
		}
		return s
	}
	return Style{Type: c.Style, Label: name}
}

// Color and marker cycles assigned to series in order.
var (
	ColorCycle  = []string{"tab:blue", "tab:orange", "tab:green", "tab:red", "tab:purple", "tab:brown", "tab:pink", "tab:gray", "tab:olive", "tab:cyan"}
	MarkerCycle = []string{"o", "s", "^", "D", "v", ">", "<", "P", "X", "*"}
	dashCycle   = []string{"-", "--", "-.", ":"}
)

// Line variants for CycleStyles.
const (
	LinesSolid  = "solid"
	LinesDashed = "dashed"
	LinesMixed  = "mixed"
)

// CycleStyles assigns colours, markers and line styles to labels in order.
func CycleStyles(labels []string, variant string) map[string]Style {
	out := make(map[string]Style, len(labels))
	for i, l := range labels {
		ls := "-"
		switch variant {
		case LinesDashed:
			ls = "--"
		case LinesMixed:
			ls = dashCycle[i%len(dashCycle)]
		}
		out[l] = Style{
			Type:      StyleLine,
			Color:     ColorCycle[i%len(ColorCycle)],
			Marker:    MarkerCycle[i%len(MarkerCycle)],
			LineStyle: ls,
			Label:     l,
		}
	}
	return out
}

var tabPalette = map[string]string{
	"tab:blue":   "#1f77b4",
	"tab:orange": "#ff7f0e",
	"tab:green":  "#2ca02c",
	"tab:red":    "#d62728",
	"tab:purple": "#9467bd",
	"tab:brown":  "#8c564b",
	"tab:pink":   "#e377c2",
	"tab:gray":   "#7f7f7f",
	"tab:olive":  "#bcbd22",
	"tab:cyan":   "#17becf",
	"black":      "#000000",
	"red":        "#ff0000",
	"blue":       "#0000ff",
	"green":      "#008000",
	"gray":       "#808080",
}

// HexColor resolves a named colour to #rrggbb. Hex input is returned as
// is; unknown names resolve to fallback.
func HexColor(name, fallback string) string {
	if strings.HasPrefix(name, "#") {
		return name
	}
	if hex, ok := tabPalette[name]; ok {
		return hex
	}
	return fallback
}
