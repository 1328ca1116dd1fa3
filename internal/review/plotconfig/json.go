package plotconfig

import (
	"encoding/json"
	"math"
)

// nullable maps non-finite values to JSON null, which encoding/json would
// otherwise reject.
func nullable(v []float64) []*float64 {
	if v == nil {
		return nil
	}
	out := make([]*float64, len(v))
	for i := range v {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			continue
		}
		out[i] = &v[i]
	}
	return out
}

// MarshalJSON writes gaps as null.
func (s Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name   string     `json:"name"`
		Values []*float64 `json:"values"`
	}{s.Name, nullable(s.Values)})
}

// MarshalJSON writes empty scatter bins as null.
func (o Overlay) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X     []*float64 `json:"x"`
		Y     []*float64 `json:"y"`
		Style Style      `json:"style"`
	}{nullable(o.X), nullable(o.Y), o.Style})
}

// MarshalJSON writes non-finite values and statistics as null.
func (h Histogram) MarshalJSON() ([]byte, error) {
	stat := func(v float64) *float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Values []*float64 `json:"values"`
		Edges  []*float64 `json:"edges"`
		Mean   *float64   `json:"mean"`
		Std    *float64   `json:"std"`
		Style  Style      `json:"style"`
	}{nullable(h.Values), nullable(h.Edges), stat(h.Mean), stat(h.Std), h.Style})
}
