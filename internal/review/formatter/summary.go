package formatter

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/association"
	"github.com/banshee-data/trackreview/internal/review/plotconfig"
	"github.com/banshee-data/trackreview/internal/review/schema"
	"github.com/banshee-data/trackreview/internal/review/selection"
	"github.com/banshee-data/trackreview/internal/units"
)

const (
	titleLifetime    = "Track/Truth Lifetime"
	titleTrackCounts = "Track Counts by Dataset"
	titleStatistics  = "Error Statistics"
)

// categories returns bar positions 0..n-1 with their tick labels.
func categories(labels []string) ([]float64, *plotconfig.Ticks) {
	x := make([]float64, len(labels))
	for i := range x {
		x[i] = float64(i)
	}
	return x, &plotconfig.Ticks{Values: x, Labels: labels}
}

// lifetimes returns, per id in first-seen order, the seconds between the
// first and last sample. Ids with a single sample are omitted.
func lifetimes(t *review.Table, idCol, tsCol string) (ids []string, secs []float64) {
	type span struct {
		first, last time.Time
		n           int
	}
	spans := make(map[string]*span)
	var order []string
	for row := 0; row < t.Len(); row++ {
		id, err := t.Key(idCol, row)
		if err != nil {
			continue
		}
		ts, err := t.Time(tsCol, row)
		if err != nil {
			continue
		}
		sp, ok := spans[id]
		if !ok {
			sp = &span{first: ts, last: ts}
			spans[id] = sp
			order = append(order, id)
		}
		if ts.Before(sp.first) {
			sp.first = ts
		}
		if ts.After(sp.last) {
			sp.last = ts
		}
		sp.n++
	}
	for _, id := range order {
		if sp := spans[id]; sp.n > 1 {
			ids = append(ids, id)
			secs = append(secs, sp.last.Sub(sp.first).Seconds())
		}
	}
	return ids, secs
}

// trackTruthLifetime plots how long each track and truth object was
// observed. Unlike the error formatters it does not return an empty config
// without a track context: the lifetime view is a dataset overview that is
// requested with no selection at all, so tracks then default to all. Truth
// is only included when a truth selection exists.
func trackTruthLifetime(state *State, ctx Context) plotconfig.PlotConfig {
	ds, ok := state.FocusDataset()
	if !ok {
		return plotconfig.Empty(titleLifetime)
	}
	title := withName(titleLifetime, ds)

	trackSpec, ok := ctx.Tracks()
	if !ok {
		trackSpec = selection.All()
	}
	trackIDCol := ds.Col(schema.Tracks, schema.TrackID)
	tracks := selection.Resolve(ds.Tracks, trackIDCol, trackSpec)
	trackIDs, trackSecs := lifetimes(tracks, trackIDCol, ds.Col(schema.Tracks, schema.Timestamp))

	var truthIDs []string
	var truthSecs []float64
	if truthSpec, ok := ctx.Truth(); ok {
		truthIDCol := ds.Col(schema.Truth, schema.TruthID)
		truth := selection.Resolve(ds.Truth, truthIDCol, truthSpec)
		truthIDs, truthSecs = lifetimes(truth, truthIDCol, ds.Col(schema.Truth, schema.Timestamp))
	}
	if len(trackIDs)+len(truthIDs) == 0 {
		return plotconfig.Empty(title)
	}

	n := len(trackIDs) + len(truthIDs)
	labels := make([]string, 0, n)
	trackVals := make([]float64, n)
	truthVals := make([]float64, n)
	for i := range trackVals {
		trackVals[i], truthVals[i] = math.NaN(), math.NaN()
	}
	for i, id := range trackIDs {
		labels = append(labels, "track "+id)
		trackVals[i] = trackSecs[i]
	}
	for i, id := range truthIDs {
		labels = append(labels, "truth "+id)
		truthVals[len(trackIDs)+i] = truthSecs[i]
	}

	x, ticks := categories(labels)
	cfg := plotconfig.PlotConfig{
		Title:  title,
		XLabel: "Object",
		YLabel: "Lifetime (s)",
		Style:  plotconfig.StyleBar,
		X:      x,
		XTicks: ticks,
	}
	cfg.Series = append(cfg.Series, plotconfig.Series{Name: "Track Lifetime", Values: trackVals})
	if len(truthIDs) > 0 {
		cfg.Series = append(cfg.Series, plotconfig.Series{Name: "Truth Lifetime", Values: truthVals})
	}
	cfg.SeriesStyles = map[string]plotconfig.Style{
		"Track Lifetime": {Type: plotconfig.StyleBar, Color: "tab:blue"},
		"Truth Lifetime": {Type: plotconfig.StyleBar, Color: "gray"},
	}
	return cfg
}

// trackCounts plots the number of distinct track ids in every loaded
// dataset. A dataset without a track id column counts its rows.
func trackCounts(state *State, ctx Context) plotconfig.PlotConfig {
	names := state.Names()
	if len(names) == 0 {
		return plotconfig.Empty(titleTrackCounts)
	}
	counts := make([]float64, len(names))
	for i, name := range names {
		ds := state.Datasets[name]
		if ds == nil || ds.Tracks == nil {
			continue
		}
		ids, err := ds.Tracks.Keys(ds.Col(schema.Tracks, schema.TrackID))
		if err != nil {
			counts[i] = float64(ds.Tracks.Len())
			continue
		}
		counts[i] = float64(len(ids))
	}
	x, ticks := categories(names)
	return plotconfig.PlotConfig{
		Title:  titleTrackCounts,
		XLabel: "Dataset",
		YLabel: "Tracks",
		Style:  plotconfig.StyleBar,
		X:      x,
		XTicks: ticks,
		Series: []plotconfig.Series{{Name: "Tracks", Values: counts}},
		SeriesStyles: map[string]plotconfig.Style{
			"Tracks": {Type: plotconfig.StyleBar, Color: "tab:blue"},
		},
	}
}

// errorStatistics plots mean, standard deviation and RMS of each error
// component as grouped bars.
func errorStatistics(state *State, ctx Context) plotconfig.PlotConfig {
	ds, spec, ok := focusTracks(state, ctx)
	if !ok {
		return plotconfig.Empty(titleStatistics)
	}
	samples := association.Errors(ds, spec)
	if len(samples) == 0 {
		return plotconfig.Empty(titleStatistics)
	}
	u := ctx.Settings.GetErrorUnits()
	stats := association.Stats(samples)

	labels := make([]string, len(stats))
	mean := make([]float64, len(stats))
	std := make([]float64, len(stats))
	rms := make([]float64, len(stats))
	for i, st := range stats {
		labels[i] = componentLabel(st.Component)
		mean[i] = units.ConvertDistance(st.Mean, u)
		std[i] = units.ConvertDistance(st.Std, u)
		rms[i] = units.ConvertDistance(st.RMS, u)
	}
	x, ticks := categories(labels)
	return plotconfig.PlotConfig{
		Title:  fmt.Sprintf("%s (n=%d)", titleStatistics, len(samples)),
		XLabel: "Component",
		YLabel: fmt.Sprintf("Error (%s)", u),
		Style:  plotconfig.StyleBar,
		X:      x,
		XTicks: ticks,
		Series: []plotconfig.Series{
			{Name: "Mean", Values: mean},
			{Name: "Std", Values: std},
			{Name: "RMS", Values: rms},
		},
		SeriesStyles: map[string]plotconfig.Style{
			"Mean": {Type: plotconfig.StyleBar, Color: "tab:blue"},
			"Std":  {Type: plotconfig.StyleBar, Color: "tab:orange"},
			"RMS":  {Type: plotconfig.StyleBar, Color: "tab:green"},
		},
	}
}

func componentLabel(c association.Component) string {
	switch c {
	case association.North:
		return "North"
	case association.East:
		return "East"
	default:
		return "RMS 3D"
	}
}
