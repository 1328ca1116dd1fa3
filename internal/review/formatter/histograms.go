package formatter

import (
	"fmt"

	"github.com/banshee-data/trackreview/internal/config"
	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/association"
	"github.com/banshee-data/trackreview/internal/review/histogram"
	"github.com/banshee-data/trackreview/internal/review/plotconfig"
	"github.com/banshee-data/trackreview/internal/units"
)

type histKind struct {
	name      string
	title     string
	label     string
	component association.Component
}

var (
	northHist = histKind{NorthErrorHist, "North Error Histogram", "North Error", association.North}
	eastHist  = histKind{EastErrorHist, "East Error Histogram", "East Error", association.East}
	rmsHist   = histKind{RMSErrorHist, "RMS 3D Error Histogram", "RMS 3D Error", association.Magnitude}
)

// Gaussian overlay styles. The unscaled PDFs sit on the secondary axis.
var overlayStyles = map[histogram.OverlayKind]plotconfig.Style{
	histogram.Gaussian:        {Type: plotconfig.StyleLine, Color: "black", LineStyle: "-"},
	histogram.UnitGaussian:    {Type: plotconfig.StyleLine, Color: "tab:red", LineStyle: "--", SecondaryY: true},
	histogram.BestFitGaussian: {Type: plotconfig.StyleLine, Color: "tab:green", LineStyle: "-.", SecondaryY: true},
}

func errorHistogram(k histKind) Func {
	return func(state *State, ctx Context) plotconfig.PlotConfig {
		ds, spec, ok := focusTracks(state, ctx)
		if !ok {
			return plotconfig.Empty(k.title)
		}
		samples := association.Errors(ds, spec)
		s := ctx.Settings
		u := s.GetErrorUnits()
		values := units.ConvertDistances(association.Values(samples, k.component), u)

		r, err := histogram.Build(values, s.GetHistogramBins(), s.GetSigmaExtent(), s.GetHistogramMode())
		if err != nil {
			review.Diagf("formatter %s: %v", k.name, err)
			return plotconfig.Empty(k.title)
		}

		cfg := plotconfig.PlotConfig{
			Title:  k.title,
			XLabel: fmt.Sprintf("%s (%s)", k.label, u),
			YLabel: "Count",
			Style:  plotconfig.StyleBar,
			Histograms: []plotconfig.Histogram{{
				Values: histogram.Finite(values),
				Edges:  r.Edges,
				Mean:   r.Mean,
				Std:    r.Std,
				Style: plotconfig.Style{
					Color:       "black",
					Label:       k.label,
					OutlineOnly: true,
					SigmaBands:  true,
					MeanLine:    true,
					MeanLabel:   "Mean",
				},
			}},
		}
		cfg.Overlays = append(cfg.Overlays, gaussianOverlays(r, s)...)
		if o, ok := scatterOverlay(samples, values, r, s); ok {
			cfg.Overlays = append(cfg.Overlays, o)
		}
		return cfg
	}
}

// gaussianOverlays returns the PDF curves enabled in the settings, in a
// fixed order.
func gaussianOverlays(r histogram.Result, s *config.Settings) []plotconfig.Overlay {
	enabled := []struct {
		kind histogram.OverlayKind
		on   bool
	}{
		{histogram.Gaussian, s.GetGaussianOverlay()},
		{histogram.UnitGaussian, s.GetUnitGaussian()},
		{histogram.BestFitGaussian, s.GetBestFitGaussian()},
	}
	var out []plotconfig.Overlay
	for _, e := range enabled {
		if !e.on {
			continue
		}
		x, y := histogram.Overlay(e.kind, r, s.GetGaussianPoints())
		if x == nil {
			continue
		}
		st := overlayStyles[e.kind]
		st.Label = string(e.kind)
		out = append(out, plotconfig.Overlay{X: x, Y: y, Style: st})
	}
	return out
}

// scatterOverlay averages the configured auxiliary variable per histogram
// bin. values must be index-aligned with samples.
func scatterOverlay(samples []association.ErrorSample, values []float64, r histogram.Result, s *config.Settings) (plotconfig.Overlay, bool) {
	v := s.GetScatterVariable()
	if v == "" {
		return plotconfig.Overlay{}, false
	}
	aux := association.Aux(samples, v)
	if aux == nil {
		return plotconfig.Overlay{}, false
	}
	label := v
	switch v {
	case "alt":
		units.ConvertDistances(aux, s.GetErrorUnits())
		label = fmt.Sprintf("alt (%s)", s.GetErrorUnits())
	case "speed":
		su := s.GetSpeedUnits()
		for i := range aux {
			aux[i] = units.ConvertSpeed(aux[i], su)
		}
		label = fmt.Sprintf("speed (%s)", units.SpeedLabel(su))
	}
	centers, means := histogram.ScatterOverlay(values, aux, r.Edges)
	if centers == nil {
		return plotconfig.Overlay{}, false
	}
	return plotconfig.Overlay{
		X: centers,
		Y: means,
		Style: plotconfig.Style{
			Type:       plotconfig.StyleScatter,
			Color:      "red",
			Marker:     "o",
			Label:      label + " (scatter)",
			SecondaryY: true,
		},
	}, true
}
