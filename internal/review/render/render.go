// Package render draws plot configs. Backends read a PlotConfig and never
// change it; a config that carries nothing to draw still produces output
// showing its title.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/trackreview/internal/review/plotconfig"
)

// Backend names.
const (
	ECharts = "echarts"
	PNG     = "png"
	Table   = "table"
)

// Backend renders a plot config to w.
type Backend interface {
	Name() string
	ContentType() string
	Render(w io.Writer, cfg plotconfig.PlotConfig) error
}

// Names lists the known backends.
func Names() []string {
	return []string{ECharts, PNG, Table}
}

// Extension returns the file extension for a backend's output.
func Extension(name string) string {
	switch name {
	case ECharts:
		return ".html"
	case PNG:
		return ".png"
	}
	return ".txt"
}

// New returns the named backend.
func New(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case ECharts, "html":
		return NewECharts(), nil
	case PNG:
		return NewPNG(), nil
	case Table, "text":
		return NewTable(false), nil
	}
	return nil, fmt.Errorf("unknown render backend %q (valid: %s)", name, strings.Join(Names(), ", "))
}

// xy is one finite point.
type xy struct{ x, y float64 }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// pairs zips x and y, dropping points where either is not finite.
func pairs(x, y []float64) []xy {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	out := make([]xy, 0, n)
	for i := 0; i < n; i++ {
		if finite(x[i]) && finite(y[i]) {
			out = append(out, xy{x[i], y[i]})
		}
	}
	return out
}

// rgba parses a named or #rrggbb colour, falling back to black.
func rgba(name string) color.RGBA {
	hex := strings.TrimPrefix(plotconfig.HexColor(name, "#000000"), "#")
	if len(hex) != 6 {
		return color.RGBA{A: 255}
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// seriesStyles returns the style of every series in config order.
func seriesStyles(cfg plotconfig.PlotConfig) []plotconfig.Style {
	out := make([]plotconfig.Style, len(cfg.Series))
	for i, s := range cfg.Series {
		st := cfg.StyleFor(s.Name)
		if st.Color == "" {
			st.Color = plotconfig.ColorCycle[i%len(plotconfig.ColorCycle)]
		}
		if st.Type == "" {
			st.Type = cfg.Style
		}
		out[i] = st
	}
	return out
}

func tickLabel(cfg plotconfig.PlotConfig, i int, x float64) string {
	if cfg.XTicks != nil {
		for j, v := range cfg.XTicks.Values {
			if v == x && j < len(cfg.XTicks.Labels) {
				return cfg.XTicks.Labels[j]
			}
		}
	}
	if i >= 0 && cfg.XTicks != nil && i < len(cfg.XTicks.Labels) {
		return cfg.XTicks.Labels[i]
	}
	return strconv.FormatFloat(x, 'g', 6, 64)
}
