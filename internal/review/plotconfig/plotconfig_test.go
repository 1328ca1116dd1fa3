package plotconfig

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	c := Empty("North Error Histogram")
	assert.Equal(t, "North Error Histogram (no data available)", c.Title)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, c.Title, Empty(c.Title).Title)
	assert.Equal(t, NoData, Empty("").Title)
}

func TestIsEmpty(t *testing.T) {
	assert.False(t, PlotConfig{Series: []Series{{Name: "a", Values: []float64{1}}}}.IsEmpty())
	assert.False(t, PlotConfig{Histograms: []Histogram{{Values: []float64{1}}}}.IsEmpty())
	assert.False(t, PlotConfig{Overlays: []Overlay{{X: []float64{1}, Y: []float64{1}}}}.IsEmpty())
	assert.True(t, PlotConfig{Series: []Series{{Name: "a"}}}.IsEmpty())
}

func TestCycleStyles(t *testing.T) {
	labels := make([]string, 12)
	for i := range labels {
		labels[i] = string(rune('a' + i))
	}
	got := CycleStyles(labels, LinesMixed)
	assert.Equal(t, "tab:blue", got["a"].Color)
	assert.Equal(t, "tab:blue", got["k"].Color, "colour cycle wraps")
	assert.Equal(t, "--", got["b"].LineStyle)
	assert.Equal(t, "s", got["b"].Marker)

	assert.Equal(t, "--", CycleStyles([]string{"x"}, LinesDashed)["x"].LineStyle)
	assert.Equal(t, "-", CycleStyles([]string{"x"}, LinesSolid)["x"].LineStyle)
}

func TestStyleFor(t *testing.T) {
	c := PlotConfig{Style: StyleScatter, SeriesStyles: map[string]Style{"n": {Color: "red"}}}
	assert.Equal(t, Style{Color: "red", Label: "n"}, c.StyleFor("n"))
	assert.Equal(t, Style{Type: StyleScatter, Label: "e"}, c.StyleFor("e"))
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, "#1f77b4", HexColor("tab:blue", ""))
	assert.Equal(t, "#abcdef", HexColor("#abcdef", ""))
	assert.Equal(t, "#000000", HexColor("chartreuse", "#000000"))
}

func TestJSONWritesGapsAsNull(t *testing.T) {
	c := PlotConfig{
		Title:    "t",
		Overlays: []Overlay{{X: []float64{0, 1}, Y: []float64{math.NaN(), 2}}},
		Histograms: []Histogram{{
			Values: []float64{1}, Edges: []float64{0, 2}, Mean: 1, Std: math.NaN(),
		}},
	}
	b, err := json.Marshal(c)
	require.NoError(t, err)
	s := string(b)
	assert.True(t, strings.Contains(s, `"y":[null,2]`), s)
	assert.True(t, strings.Contains(s, `"std":null`), s)
}
