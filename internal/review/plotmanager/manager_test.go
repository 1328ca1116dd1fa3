package plotmanager

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackreview/internal/config"
	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/formatter"
	"github.com/banshee-data/trackreview/internal/review/plotconfig"
	"github.com/banshee-data/trackreview/internal/review/render"
	"github.com/banshee-data/trackreview/internal/testutil"
)

type recordingBackend struct {
	got []plotconfig.PlotConfig
	err error
}

func (b *recordingBackend) Name() string        { return "recording" }
func (b *recordingBackend) ContentType() string { return "text/plain" }
func (b *recordingBackend) Render(w io.Writer, cfg plotconfig.PlotConfig) error {
	b.got = append(b.got, cfg)
	if b.err != nil {
		return b.err
	}
	_, err := io.WriteString(w, cfg.Title)
	return err
}

func allCtx() formatter.Context {
	return formatter.Context{Selector: formatter.SelectAll(), Settings: config.DefaultSettings()}
}

func TestPrepare(t *testing.T) {
	m := New(nil, render.NewTable(false))
	state := formatter.NewState(testutil.TwoTrackDataset())

	cfg := m.Prepare(formatter.NorthEastError, state, allCtx())
	assert.False(t, cfg.IsEmpty())
	assert.Len(t, cfg.Series, 2)

	cfg = m.Prepare("no_such_plot", state, allCtx())
	assert.True(t, cfg.IsEmpty())
	assert.Equal(t, "no_such_plot (no data available)", cfg.Title)
}

func TestRender(t *testing.T) {
	b := &recordingBackend{}
	m := New(nil, b)
	state := formatter.NewState(testutil.TwoTrackDataset())

	var buf bytes.Buffer
	cfg, err := m.Render(&buf, formatter.TrackCounts, state, formatter.Context{})
	require.NoError(t, err)
	assert.Equal(t, "Track Counts by Dataset", buf.String())
	require.Len(t, b.got, 1)
	assert.Equal(t, cfg, b.got[0])

	b.err = errors.New("disk full")
	_, err = m.Render(&buf, formatter.TrackCounts, state, formatter.Context{})
	assert.ErrorContains(t, err, "disk full")

	m.SetBackend(nil)
	_, err = m.Render(&buf, formatter.TrackCounts, state, formatter.Context{})
	assert.Error(t, err)
}

func TestAvailable(t *testing.T) {
	m := New(nil, nil)

	reasons := func(state *formatter.State) map[string]string {
		out := make(map[string]string)
		for _, a := range m.Available(state) {
			out[a.Name] = a.Reason
			assert.Equal(t, a.Reason == "", a.Enabled, a.Name)
		}
		return out
	}

	got := reasons(nil)
	assert.Equal(t, ReasonNoDatasets, got[formatter.NorthEastError])
	assert.Equal(t, ReasonNoDatasets, got[formatter.TrackCounts])

	state := formatter.NewState(testutil.TwoTrackDataset())
	got = reasons(state)
	for name, reason := range got {
		assert.Empty(t, reason, name)
	}

	state.Focus = ""
	got = reasons(state)
	assert.Equal(t, ReasonNoFocus, got[formatter.LatLonScatter])
	assert.Empty(t, got[formatter.TrackCounts])

	state.Focus = "unloaded"
	got = reasons(state)
	assert.Equal(t, ReasonFocusMissing, got[formatter.ErrorStatistics])
}

func TestValidate(t *testing.T) {
	nan := math.NaN()
	cfg := plotconfig.PlotConfig{
		Title: "mixed",
		X:     []float64{0, 1, 2},
		Series: []plotconfig.Series{
			{Name: "ok", Values: []float64{1, nan, 3}},
			{Name: "short", Values: []float64{1, 2}},
			{Name: "all nan", Values: []float64{nan, nan, nan}},
		},
		Histograms: []plotconfig.Histogram{
			{Values: []float64{1, 2}, Edges: []float64{0, 1, 2}},
			{Values: nil, Edges: []float64{0, 1}},
			{Values: []float64{1}, Edges: []float64{0}},
		},
		Overlays: []plotconfig.Overlay{
			{X: []float64{0, 1}, Y: []float64{1, 2}},
			{X: []float64{0, 1}, Y: []float64{1}},
			{X: []float64{0}, Y: []float64{nan}},
		},
	}

	out := Validate(cfg)
	require.Len(t, out.Series, 1)
	assert.Equal(t, "ok", out.Series[0].Name)
	assert.Len(t, out.Histograms, 1)
	assert.Len(t, out.Overlays, 1)
	assert.Len(t, cfg.Series, 3, "input is not modified")

	empty := Validate(plotconfig.PlotConfig{
		Title:      "North Error Histogram",
		Histograms: []plotconfig.Histogram{{Values: []float64{1}}},
	})
	assert.Equal(t, "North Error Histogram (no data available)", empty.Title)
	assert.True(t, empty.IsEmpty())

	already := plotconfig.Empty("x")
	assert.Equal(t, already, Validate(already))
}

func TestPrepareAllFormattersWithEveryBackend(t *testing.T) {
	state := formatter.NewState(testutil.TwoTrackDataset(), testutil.EmptyDataset("empty"))
	for _, backend := range render.Names() {
		b, err := render.New(backend)
		require.NoError(t, err)
		m := New(nil, b)
		for _, name := range m.Registry().Names() {
			var buf bytes.Buffer
			_, err := m.Render(&buf, name, state, allCtx())
			assert.NoError(t, err, "%s/%s", backend, name)
		}
	}
}

func TestValidateLogsMalformedHistogram(t *testing.T) {
	var diag bytes.Buffer
	review.SetLogWriters(review.LogWriters{Diag: &diag})
	t.Cleanup(func() { review.SetLogWriters(review.LogWriters{}) })

	Validate(plotconfig.PlotConfig{Title: "h", Histograms: []plotconfig.Histogram{{}}})
	assert.Contains(t, diag.String(), review.ErrMalformedHistogram.Error())
}
