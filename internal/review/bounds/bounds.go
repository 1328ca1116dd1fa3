// Package bounds computes square, padded latitude/longitude view boxes.
package bounds

import (
	"math"
)

const (
	// MinSpan replaces a zero span on an axis with identical points.
	MinSpan = 0.02
	// Padding is the fractional growth applied to the larger span.
	Padding = 1.05
)

// Box is a latitude/longitude range in degrees.
type Box struct {
	LatMin float64 `json:"lat_min" yaml:"lat_min"`
	LatMax float64 `json:"lat_max" yaml:"lat_max"`
	LonMin float64 `json:"lon_min" yaml:"lon_min"`
	LonMax float64 `json:"lon_max" yaml:"lon_max"`
}

// LatSpan returns the latitude extent.
func (b Box) LatSpan() float64 { return b.LatMax - b.LatMin }

// LonSpan returns the longitude extent.
func (b Box) LonSpan() float64 { return b.LonMax - b.LonMin }

// Square reports whether both spans agree within eps.
func (b Box) Square(eps float64) bool {
	return math.Abs(b.LatSpan()-b.LonSpan()) < eps
}

// Compute returns the view box for the points. An override is returned
// unchanged. Otherwise both axes get the larger data span padded by 5%,
// centred on each axis' midpoint. NaN coordinates are ignored; with no
// usable point the second result is false.
func Compute(lats, lons []float64, override *Box) (Box, bool) {
	if override != nil {
		return *override, true
	}
	latLo, latHi, okLat := extent(lats)
	lonLo, lonHi, okLon := extent(lons)
	if !okLat || !okLon {
		return Box{}, false
	}

	latSpan := latHi - latLo
	if latSpan == 0 {
		latSpan = MinSpan
	}
	lonSpan := lonHi - lonLo
	if lonSpan == 0 {
		lonSpan = MinSpan
	}
	half := math.Max(latSpan, lonSpan) * Padding / 2

	latC := (latLo + latHi) / 2
	lonC := (lonLo + lonHi) / 2
	return Box{
		LatMin: latC - half,
		LatMax: latC + half,
		LonMin: lonC - half,
		LonMax: lonC + half,
	}, true
}

func extent(v []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
		ok = true
	}
	return lo, hi, ok
}
