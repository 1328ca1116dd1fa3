// Package timeaxis puts several per-entity series on one relative time axis.
package timeaxis

import (
	"time"
)

// Series is a named run of values.
type Series struct {
	Name   string
	Values []float64
}

// Align truncates every series to the shortest non-empty length among the
// series and the time lists, and builds an x axis of seconds from times[0],
// anchored at its earliest sample within the truncated prefix. times[0] bounds
// the length even when empty; other empty time lists are ignored. Empty series
// are dropped. The inputs are not modified. If nothing survives truncation
// both results are empty.
func Align(series []Series, times [][]time.Time) ([]float64, []Series) {
	if len(series) == 0 || len(times) == 0 {
		return []float64{}, []Series{}
	}
	minLen := -1
	for _, s := range series {
		if n := len(s.Values); n > 0 && (minLen < 0 || n < minLen) {
			minLen = n
		}
	}
	if n := len(times[0]); n < minLen {
		minLen = n
	}
	for _, ts := range times[1:] {
		if n := len(ts); n > 0 && n < minLen {
			minLen = n
		}
	}
	if minLen <= 0 {
		return []float64{}, []Series{}
	}

	x := Seconds(times[0][:minLen])
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		v := make([]float64, minLen)
		copy(v, s.Values[:minLen])
		out = append(out, Series{Name: s.Name, Values: v})
	}
	return x, out
}

// Seconds converts timestamps to seconds since the earliest of them,
// preserving order.
func Seconds(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	if len(ts) == 0 {
		return out
	}
	start := ts[0]
	for _, t := range ts[1:] {
		if t.Before(start) {
			start = t
		}
	}
	for i, t := range ts {
		out[i] = t.Sub(start).Seconds()
	}
	return out
}
