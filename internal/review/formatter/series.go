package formatter

import (
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/association"
	"github.com/banshee-data/trackreview/internal/review/plotconfig"
	"github.com/banshee-data/trackreview/internal/review/schema"
	"github.com/banshee-data/trackreview/internal/review/selection"
	"github.com/banshee-data/trackreview/internal/review/timeaxis"
	"github.com/banshee-data/trackreview/internal/units"
)

const (
	titleNorthEast    = "North/East Position Errors"
	titleRMS3D        = "3D RMS Error Over Time"
	titlePerTrack     = "North/East Errors by Track"
	titleTracksLatLon = "Tracks lat/lon over time"

	seriesNorth = "North Error"
	seriesEast  = "East Error"
	seriesRMS   = "RMS 3D Error"
)

// focusTracks returns the focus dataset and the track selection, or false
// when either is missing.
func focusTracks(state *State, ctx Context) (*review.Dataset, selection.Spec, bool) {
	ds, ok := state.FocusDataset()
	if !ok {
		return nil, selection.None(), false
	}
	spec, ok := ctx.Tracks()
	if !ok {
		review.Tracef("formatter: no track selection context")
		return nil, selection.None(), false
	}
	return ds, spec, true
}

// sortedErrors returns the error samples of the selection in time order.
func sortedErrors(ds *review.Dataset, spec selection.Spec) []association.ErrorSample {
	samples := association.Errors(ds, spec)
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples
}

func timestamps(samples []association.ErrorSample) []time.Time {
	out := make([]time.Time, len(samples))
	for i, s := range samples {
		out[i] = s.Timestamp
	}
	return out
}

func northEastError(state *State, ctx Context) plotconfig.PlotConfig {
	ds, spec, ok := focusTracks(state, ctx)
	if !ok {
		return plotconfig.Empty(titleNorthEast)
	}
	samples := sortedErrors(ds, spec)
	if len(samples) == 0 {
		return plotconfig.Empty(titleNorthEast)
	}
	u := ctx.Settings.GetErrorUnits()

	return plotconfig.PlotConfig{
		Title:  titleNorthEast,
		XLabel: "Time (s)",
		YLabel: fmt.Sprintf("Error (%s)", u),
		Style:  plotconfig.StyleLine,
		X:      timeaxis.Seconds(timestamps(samples)),
		Series: []plotconfig.Series{
			{Name: seriesNorth, Values: units.ConvertDistances(association.Values(samples, association.North), u)},
			{Name: seriesEast, Values: units.ConvertDistances(association.Values(samples, association.East), u)},
		},
		SeriesStyles: map[string]plotconfig.Style{
			seriesNorth: {Type: plotconfig.StyleLine, Color: "tab:blue", Marker: "o", LineStyle: "-", Label: seriesNorth},
			seriesEast:  {Type: plotconfig.StyleLine, Color: "tab:orange", Marker: "s", LineStyle: "--", Label: seriesEast},
		},
	}
}

func rmsError3D(state *State, ctx Context) plotconfig.PlotConfig {
	ds, spec, ok := focusTracks(state, ctx)
	if !ok {
		return plotconfig.Empty(titleRMS3D)
	}
	samples := sortedErrors(ds, spec)
	if len(samples) == 0 {
		return plotconfig.Empty(titleRMS3D)
	}
	u := ctx.Settings.GetErrorUnits()

	return plotconfig.PlotConfig{
		Title:  titleRMS3D,
		XLabel: "Time (s)",
		YLabel: fmt.Sprintf("RMS Error (%s)", u),
		Style:  plotconfig.StyleLine,
		X:      timeaxis.Seconds(timestamps(samples)),
		Series: []plotconfig.Series{
			{Name: seriesRMS, Values: units.ConvertDistances(association.Values(samples, association.Magnitude), u)},
		},
		SeriesStyles: map[string]plotconfig.Style{
			seriesRMS: {Type: plotconfig.StyleLine, Color: "tab:green", Marker: "^", LineStyle: "-", Label: seriesRMS},
		},
	}
}

// northEastPerTrack plots north and east error per track, truncated to the
// shortest track so every series shares the first track's time axis.
func northEastPerTrack(state *State, ctx Context) plotconfig.PlotConfig {
	ds, spec, ok := focusTracks(state, ctx)
	if !ok {
		return plotconfig.Empty(titlePerTrack)
	}
	samples := sortedErrors(ds, spec)
	if len(samples) == 0 {
		return plotconfig.Empty(titlePerTrack)
	}
	u := ctx.Settings.GetErrorUnits()

	var order []string
	byTrack := make(map[string][]association.ErrorSample)
	for _, s := range samples {
		if _, seen := byTrack[s.TrackID]; !seen {
			order = append(order, s.TrackID)
		}
		byTrack[s.TrackID] = append(byTrack[s.TrackID], s)
	}

	var series []timeaxis.Series
	var times [][]time.Time
	for _, id := range order {
		group := byTrack[id]
		ts := timestamps(group)
		series = append(series,
			timeaxis.Series{Name: fmt.Sprintf("Track %s North", id), Values: units.ConvertDistances(association.Values(group, association.North), u)},
			timeaxis.Series{Name: fmt.Sprintf("Track %s East", id), Values: units.ConvertDistances(association.Values(group, association.East), u)},
		)
		times = append(times, ts, ts)
	}

	x, aligned := timeaxis.Align(series, times)
	if len(x) == 0 {
		return plotconfig.Empty(titlePerTrack)
	}
	cfg := plotconfig.PlotConfig{
		Title:  titlePerTrack,
		XLabel: "Time (s)",
		YLabel: fmt.Sprintf("Error (%s)", u),
		Style:  plotconfig.StyleLine,
		X:      x,
	}
	labels := make([]string, len(aligned))
	for i, s := range aligned {
		labels[i] = s.Name
		cfg.Series = append(cfg.Series, plotconfig.Series{Name: s.Name, Values: s.Values})
	}
	cfg.SeriesStyles = plotconfig.CycleStyles(labels, ctx.Settings.GetLineStyles())
	return cfg
}

// tracksLatLon plots the raw latitude and longitude of the selected track
// rows in time order.
func tracksLatLon(state *State, ctx Context) plotconfig.PlotConfig {
	ds, spec, ok := focusTracks(state, ctx)
	if !ok {
		return plotconfig.Empty(titleTracksLatLon)
	}
	t := selection.Resolve(ds.Tracks, ds.Col(schema.Tracks, schema.TrackID), spec)
	tsCol := ds.Col(schema.Tracks, schema.Timestamp)
	latCol := ds.Col(schema.Tracks, schema.Lat)
	lonCol := ds.Col(schema.Tracks, schema.Lon)

	type point struct {
		ts       time.Time
		lat, lon float64
	}
	points := make([]point, 0, t.Len())
	for row := 0; row < t.Len(); row++ {
		ts, err := t.Time(tsCol, row)
		if err != nil {
			review.Diagf("formatter %s: row %d: %v", TracksLatLon, row, err)
			continue
		}
		lat, err1 := t.Float(latCol, row)
		lon, err2 := t.Float(lonCol, row)
		if err1 != nil || err2 != nil {
			review.Diagf("formatter %s: row %d: missing position", TracksLatLon, row)
			continue
		}
		points = append(points, point{ts: ts, lat: lat, lon: lon})
	}
	if len(points) == 0 {
		return plotconfig.Empty(titleTracksLatLon)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].ts.Before(points[j].ts) })

	ts := make([]time.Time, len(points))
	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		ts[i], lats[i], lons[i] = p.ts, p.lat, p.lon
	}
	return plotconfig.PlotConfig{
		Title:  titleTracksLatLon,
		XLabel: "Time (s)",
		YLabel: "Value",
		Style:  plotconfig.StyleLine,
		X:      timeaxis.Seconds(ts),
		Series: []plotconfig.Series{
			{Name: "lat", Values: lats},
			{Name: "lon", Values: lons},
		},
		SeriesStyles: plotconfig.CycleStyles([]string{"lat", "lon"}, ctx.Settings.GetLineStyles()),
	}
}
