package association

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/schema"
	"github.com/banshee-data/trackreview/internal/review/selection"
)

// HasPrecomputed reports whether the dataset carries a usable precomputed
// errors table: the capability flag plus every expected column.
func HasPrecomputed(ds *review.Dataset) bool {
	if !ds.Has(review.CapPrecomputedErrors) || ds.Errors == nil {
		return false
	}
	for _, col := range schema.Columns(ds.Schema, schema.Errors) {
		if !ds.Errors.Has(col) {
			return false
		}
	}
	return true
}

// Errors returns the error samples for the selected tracks. A usable
// precomputed errors table is preferred; otherwise errors are derived with
// Associate. Both paths honour the same selection contract.
func Errors(ds *review.Dataset, tracks selection.Spec) []ErrorSample {
	if ds == nil {
		return nil
	}
	if !HasPrecomputed(ds) {
		return Associate(ds, tracks)
	}
	review.Tracef("association: %s using precomputed errors", ds.Name)

	idCol := ds.Col(schema.Errors, schema.TrackID)
	tsCol := ds.Col(schema.Errors, schema.Timestamp)
	northCol := ds.Col(schema.Errors, schema.NorthError)
	eastCol := ds.Col(schema.Errors, schema.EastError)

	sel := selection.Resolve(ds.Errors, idCol, tracks)
	out := make([]ErrorSample, 0, sel.Len())
	for row := 0; row < sel.Len(); row++ {
		ts, err := sel.Time(tsCol, row)
		if err != nil {
			review.Diagf("association: %s errors row %d skipped: %v", ds.Name, row, err)
			continue
		}
		north, err1 := sel.Float(northCol, row)
		east, err2 := sel.Float(eastCol, row)
		if err1 != nil || err2 != nil || math.IsNaN(north) || math.IsNaN(east) {
			review.Diagf("association: %s errors row %d skipped: non-numeric error", ds.Name, row)
			continue
		}
		id, _ := sel.Key(idCol, row)
		out = append(out, ErrorSample{
			TrackID:   id,
			Timestamp: ts,
			North:     north,
			East:      east,
			Magnitude: math.Hypot(north, east),
			Lat:       math.NaN(),
			Lon:       math.NaN(),
			Alt:       math.NaN(),
			Speed:     math.NaN(),
		})
	}
	return out
}

// Component selects one value of an ErrorSample.
type Component string

const (
	North     Component = "north"
	East      Component = "east"
	Magnitude Component = "magnitude"
)

// Values extracts one component from every sample.
func Values(samples []ErrorSample, c Component) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		switch c {
		case North:
			out[i] = s.North
		case East:
			out[i] = s.East
		default:
			out[i] = s.Magnitude
		}
	}
	return out
}

// Aux extracts an auxiliary per-sample variable by name: lat, lon, alt or
// speed. Unknown names yield nil.
func Aux(samples []ErrorSample, name string) []float64 {
	pick := map[string]func(ErrorSample) float64{
		"lat":   func(s ErrorSample) float64 { return s.Lat },
		"lon":   func(s ErrorSample) float64 { return s.Lon },
		"alt":   func(s ErrorSample) float64 { return s.Alt },
		"speed": func(s ErrorSample) float64 { return s.Speed },
	}[name]
	if pick == nil {
		return nil
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = pick(s)
	}
	return out
}

// ComponentStats summarises one error component.
type ComponentStats struct {
	Component Component
	Count     int
	Mean      float64
	Std       float64
	RMS       float64
	Min       float64
	Max       float64
}

// Stats returns population statistics for north, east and magnitude. With
// no samples every statistic is zero.
func Stats(samples []ErrorSample) []ComponentStats {
	out := make([]ComponentStats, 0, 3)
	for _, c := range []Component{North, East, Magnitude} {
		cs := ComponentStats{Component: c, Count: len(samples)}
		if len(samples) > 0 {
			x := Values(samples, c)
			cs.Mean, cs.Std = stat.PopMeanStdDev(x, nil)
			cs.RMS = math.Sqrt(floats.Dot(x, x) / float64(len(x)))
			cs.Min = floats.Min(x)
			cs.Max = floats.Max(x)
		}
		out = append(out, cs)
	}
	return out
}
