package formatter

import (
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/animation"
	"github.com/banshee-data/trackreview/internal/review/bounds"
	"github.com/banshee-data/trackreview/internal/review/plotconfig"
	"github.com/banshee-data/trackreview/internal/review/schema"
	"github.com/banshee-data/trackreview/internal/review/selection"
	"github.com/banshee-data/trackreview/internal/units"
)

const (
	titleLatLon    = "Lat/Lon Plot"
	titleAnimation = "Lat/Lon Animation"
)

// geoLayer is one entity table reduced to the selected rows.
type geoLayer struct {
	label  string
	role   schema.Role
	table  *review.Table
	idCol  string
	tsCol  string
	latCol string
	lonCol string
}

// geoLayers resolves the track and truth selections of ds. A role without a
// selection context contributes nothing; with neither context ok is false.
func geoLayers(ds *review.Dataset, ctx Context) ([]geoLayer, bool) {
	var layers []geoLayer
	add := func(role schema.Role, label, idLogical string, spec selection.Spec) {
		idCol := ds.Col(role, idLogical)
		layers = append(layers, geoLayer{
			label:  label,
			role:   role,
			table:  selection.Resolve(ds.Table(role), idCol, spec),
			idCol:  idCol,
			tsCol:  ds.Col(role, schema.Timestamp),
			latCol: ds.Col(role, schema.Lat),
			lonCol: ds.Col(role, schema.Lon),
		})
	}
	tracks, okTracks := ctx.Tracks()
	if okTracks {
		add(schema.Tracks, "Track", schema.TrackID, tracks)
	}
	truth, okTruth := ctx.Truth()
	if okTruth {
		add(schema.Truth, "Truth", schema.TruthID, truth)
	}
	return layers, okTracks || okTruth
}

// positions returns every readable lat/lon pair of the layers.
func positions(layers []geoLayer) (lats, lons []float64) {
	for _, l := range layers {
		for row := 0; row < l.table.Len(); row++ {
			lat, err1 := l.table.Float(l.latCol, row)
			lon, err2 := l.table.Float(l.lonCol, row)
			if err1 != nil || err2 != nil {
				continue
			}
			lats = append(lats, lat)
			lons = append(lons, lon)
		}
	}
	return lats, lons
}

// traces turns each layer into one overlay per entity id, points in time
// order. Tracks cycle through the colour palette; truth is drawn in black.
func traces(layers []geoLayer) []plotconfig.Overlay {
	var out []plotconfig.Overlay
	for _, l := range layers {
		ids, err := l.table.Keys(l.idCol)
		if err != nil {
			ids = []string{""}
		}
		labels := make([]string, len(ids))
		for i, id := range ids {
			labels[i] = fmt.Sprintf("%s %s", l.label, id)
		}
		styles := plotconfig.CycleStyles(labels, plotconfig.LinesSolid)

		type point struct {
			ts       time.Time
			lat, lon float64
		}
		byID := make(map[string][]point, len(ids))
		for row := 0; row < l.table.Len(); row++ {
			lat, err1 := l.table.Float(l.latCol, row)
			lon, err2 := l.table.Float(l.lonCol, row)
			if err1 != nil || err2 != nil {
				continue
			}
			ts, _ := l.table.Time(l.tsCol, row)
			id, _ := l.table.Key(l.idCol, row)
			byID[id] = append(byID[id], point{ts: ts, lat: lat, lon: lon})
		}

		for i, id := range ids {
			pts := byID[id]
			if len(pts) == 0 {
				continue
			}
			sort.SliceStable(pts, func(a, b int) bool { return pts[a].ts.Before(pts[b].ts) })
			o := plotconfig.Overlay{X: make([]float64, len(pts)), Y: make([]float64, len(pts))}
			for j, p := range pts {
				o.X[j], o.Y[j] = p.lon, p.lat
			}
			st := styles[labels[i]]
			st.Type = plotconfig.StyleScatter
			if l.role == schema.Truth {
				st.Color, st.Marker = "black", "x"
			}
			o.Style = st
			out = append(out, o)
		}
	}
	return out
}

// withBounds applies the square view box of the points, or the configured
// override, to cfg.
func withBounds(cfg *plotconfig.PlotConfig, lats, lons []float64, override *bounds.Box) {
	box, ok := bounds.Compute(lats, lons, override)
	if !ok {
		return
	}
	cfg.XLim = &plotconfig.Range{Min: box.LonMin, Max: box.LonMax}
	cfg.YLim = &plotconfig.Range{Min: box.LatMin, Max: box.LatMax}
}

func latLonScatter(state *State, ctx Context) plotconfig.PlotConfig {
	ds, ok := state.FocusDataset()
	if !ok {
		return plotconfig.Empty(titleLatLon)
	}
	title := withName(titleLatLon, ds)
	layers, ok := geoLayers(ds, ctx)
	if !ok {
		return plotconfig.Empty(title)
	}
	overlays := traces(layers)
	if len(overlays) == 0 {
		return plotconfig.Empty(title)
	}
	cfg := plotconfig.PlotConfig{
		Title:    title,
		XLabel:   "Longitude",
		YLabel:   "Latitude",
		Style:    plotconfig.StyleScatter,
		Overlays: overlays,
	}
	lats, lons := positions(layers)
	withBounds(&cfg, lats, lons, ctx.Settings.GetCoordinateRange())
	return cfg
}

// latLonAnimation shows every selected sample up to the frame at ctx.Frame.
// The view box covers the whole selection so it stays fixed during
// playback.
func latLonAnimation(state *State, ctx Context) plotconfig.PlotConfig {
	ds, ok := state.FocusDataset()
	if !ok {
		return plotconfig.Empty(titleAnimation)
	}
	title := withName(titleAnimation, ds)
	layers, ok := geoLayers(ds, ctx)
	if !ok {
		return plotconfig.Empty(title)
	}

	sources := make([]animation.Source, len(layers))
	for i, l := range layers {
		sources[i] = animation.Source{Name: string(l.role), Table: l.table, TimeColumn: l.tsCol}
	}
	frames := animation.BuildFrameIndex(sources...)
	idx := ctx.Frame
	if idx < 0 {
		idx = len(frames) - 1
	}
	current, idx, ok := animation.FrameTime(frames, idx)
	if !ok {
		return plotconfig.Empty(title)
	}

	visible := make([]geoLayer, len(layers))
	for i, s := range animation.FilterToFrame(sources, current) {
		visible[i] = layers[i]
		visible[i].table = s.Table
	}
	cfg := plotconfig.PlotConfig{
		Title:    title,
		XLabel:   "Longitude",
		YLabel:   "Latitude",
		Style:    plotconfig.StyleScatter,
		Overlays: traces(visible),
		Frame: &plotconfig.FrameInfo{
			Index:   idx,
			Total:   len(frames),
			Current: units.FormatFrameTime(current, ctx.Settings.GetDisplayTimezone()),
		},
	}
	lats, lons := positions(layers)
	withBounds(&cfg, lats, lons, ctx.Settings.GetCoordinateRange())
	return cfg
}

// FrameCount returns the number of animation frames for the focus dataset
// under ctx's selection.
func FrameCount(state *State, ctx Context) int {
	ds, ok := state.FocusDataset()
	if !ok {
		return 0
	}
	layers, ok := geoLayers(ds, ctx)
	if !ok {
		return 0
	}
	sources := make([]animation.Source, len(layers))
	for i, l := range layers {
		sources[i] = animation.Source{Name: string(l.role), Table: l.table, TimeColumn: l.tsCol}
	}
	return len(animation.BuildFrameIndex(sources...))
}
