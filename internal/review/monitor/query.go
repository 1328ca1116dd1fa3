package monitor

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/trackreview/internal/config"
	"github.com/banshee-data/trackreview/internal/review/formatter"
	"github.com/banshee-data/trackreview/internal/review/histogram"
)

// ParseContext builds a formatter context from query parameters.
//
//	tracks, truth  comma separated ids or "All"; absent selects everything,
//	               present but empty selects nothing
//	frame          animation frame, default defaultFrame
//	bins, sigma, mode, gaussian, scatter, units, speed_units, styles, tz
//	               override the matching settings for this request
func ParseContext(q url.Values, base *config.Settings, defaultFrame int) (formatter.Context, error) {
	sel := formatter.SelectAll()
	if v, ok := q["tracks"]; ok {
		sel.Tracks = ParseIDList(v)
	}
	if v, ok := q["truth"]; ok {
		sel.Truth = ParseIDList(v)
	}

	frame := defaultFrame
	if v := q.Get("frame"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return formatter.Context{}, fmt.Errorf("invalid 'frame' parameter: %w", err)
		}
		frame = n
	}

	override, err := settingsFromQuery(q)
	if err != nil {
		return formatter.Context{}, err
	}
	if base == nil {
		base = config.EmptySettings()
	}
	settings := base.Merge(override)
	if err := settings.Validate(); err != nil {
		return formatter.Context{}, err
	}
	return formatter.Context{Selector: sel, Settings: settings, Frame: frame}, nil
}

// ParseIDList splits comma separated values into trimmed, non-empty ids.
// The result is never nil, so an empty parameter means an empty selection.
func ParseIDList(values []string) []string {
	out := []string{}
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

func settingsFromQuery(q url.Values) (*config.Settings, error) {
	s := config.EmptySettings()
	if v := q.Get("bins"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid 'bins' parameter: %w", err)
		}
		if n > histogram.MaxBins {
			return nil, fmt.Errorf("invalid 'bins' parameter: at most %d bins", histogram.MaxBins)
		}
		s.HistogramBins = &n
	}
	if v := q.Get("sigma"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid 'sigma' parameter: %w", err)
		}
		s.SigmaExtent = &f
	}
	if v := q.Get("gaussian"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid 'gaussian' parameter: %w", err)
		}
		s.GaussianOverlay = &b
	}
	strs := map[string]**string{
		"mode":        &s.HistogramMode,
		"scatter":     &s.ScatterVariable,
		"units":       &s.ErrorUnits,
		"speed_units": &s.SpeedUnits,
		"styles":      &s.LineStyles,
		"tz":          &s.DisplayTimezone,
	}
	for param, field := range strs {
		if v, ok := q[param]; ok && len(v) > 0 {
			val := v[0]
			*field = &val
		}
	}
	return s, nil
}
