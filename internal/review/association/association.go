// Package association pairs track samples with the temporally nearest truth
// sample and converts the angular offset into local north/east errors.
package association

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/schema"
	"github.com/banshee-data/trackreview/internal/review/selection"
)

// MetersPerDegree is the flat-Earth scale applied to latitude and, scaled by
// cos(latitude), to longitude.
const MetersPerDegree = 111000.0

// ErrorSample is the error of one track sample against its nearest truth.
// Lat, Lon and Alt echo the track position for auxiliary overlays; Alt and
// Speed are NaN when unknown.
type ErrorSample struct {
	TrackID      string
	Timestamp    time.Time
	North        float64
	East         float64
	Magnitude    float64
	HasMagnitude bool

	Lat   float64
	Lon   float64
	Alt   float64
	Speed float64
}

// NearestTruth returns the index in truth of the sample closest in time to
// ts. Ties resolve to the earliest index.
func NearestTruth(ts time.Time, truth []time.Time) (int, bool) {
	best := -1
	var bestDelta time.Duration
	for i, t := range truth {
		d := ts.Sub(t)
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDelta {
			best, bestDelta = i, d
		}
	}
	return best, best >= 0
}

// ComputeError converts the track-minus-truth offset in degrees to meters on
// a local tangent plane at the truth latitude.
func ComputeError(trackLat, trackLon, truthLat, truthLon float64) (north, east float64) {
	north = (trackLat - truthLat) * MetersPerDegree
	east = (trackLon - truthLon) * MetersPerDegree * math.Cos(truthLat*math.Pi/180)
	return north, east
}

// ComputeMagnitude returns the 3D error norm. The vertical term is zero when
// either altitude is nil or NaN.
func ComputeMagnitude(north, east float64, altTrack, altTruth *float64) float64 {
	var up float64
	if altTrack != nil && altTruth != nil && !math.IsNaN(*altTrack) && !math.IsNaN(*altTruth) {
		up = *altTrack - *altTruth
	}
	return math.Sqrt(north*north + east*east + up*up)
}

// truthView caches the resolved truth columns used for every track row.
type truthView struct {
	times []time.Time
	lat   []float64
	lon   []float64
	alt   []float64
}

// newTruthView reads the truth columns. Rows whose timestamp cannot be read
// are dropped so they never win a nearest-time lookup.
func newTruthView(ds *review.Dataset) (*truthView, error) {
	truth := ds.Truth
	if truth.Len() == 0 {
		return nil, fmt.Errorf("%w: truth table is empty", review.ErrAssociation)
	}
	tsCol := ds.Col(schema.Truth, schema.Timestamp)
	if !truth.Has(tsCol) {
		return nil, fmt.Errorf("%w: truth column %q", review.ErrMissingColumn, tsCol)
	}
	lat, err := truth.Floats(ds.Col(schema.Truth, schema.Lat))
	if err != nil {
		return nil, err
	}
	lon, err := truth.Floats(ds.Col(schema.Truth, schema.Lon))
	if err != nil {
		return nil, err
	}
	// Altitude is optional.
	alt, _ := truth.Floats(ds.Col(schema.Truth, schema.Alt))

	tv := &truthView{}
	for row := 0; row < truth.Len(); row++ {
		ts, err := truth.Time(tsCol, row)
		if err != nil {
			review.Diagf("association: %s truth row %d skipped: %v", ds.Name, row, err)
			continue
		}
		tv.times = append(tv.times, ts)
		tv.lat = append(tv.lat, lat[row])
		tv.lon = append(tv.lon, lon[row])
		if alt != nil {
			tv.alt = append(tv.alt, alt[row])
		}
	}
	if len(tv.times) == 0 {
		return nil, fmt.Errorf("%w: no readable truth timestamps", review.ErrAssociation)
	}
	return tv, nil
}

// Associate derives one ErrorSample per selected track row. Rows whose
// timestamp or position cannot be read are skipped and logged; if every row
// is skipped the result is empty, not an error.
func Associate(ds *review.Dataset, tracks selection.Spec) []ErrorSample {
	if ds == nil {
		return nil
	}
	sel := selection.Resolve(ds.Tracks, ds.Col(schema.Tracks, schema.TrackID), tracks)
	if sel.Len() == 0 {
		return nil
	}
	tv, err := newTruthView(ds)
	if err != nil {
		review.Diagf("association: %s: %v", ds.Name, err)
		return nil
	}

	tsCol := ds.Col(schema.Tracks, schema.Timestamp)
	latCol := ds.Col(schema.Tracks, schema.Lat)
	lonCol := ds.Col(schema.Tracks, schema.Lon)
	altCol := ds.Col(schema.Tracks, schema.Alt)
	idCol := ds.Col(schema.Tracks, schema.TrackID)
	speeds := Speeds(sel, tsCol, latCol, lonCol, idCol)

	out := make([]ErrorSample, 0, sel.Len())
	skipped := 0
	for row := 0; row < sel.Len(); row++ {
		s, err := associateRow(sel, row, tv, tsCol, latCol, lonCol, altCol, idCol)
		if err != nil {
			skipped++
			review.Diagf("association: %s row %d skipped: %v", ds.Name, row, err)
			continue
		}
		s.Speed = speeds[row]
		out = append(out, s)
	}
	if skipped > 0 {
		review.Opsf("association: %s skipped %d of %d track rows", ds.Name, skipped, sel.Len())
	}
	return out
}

func associateRow(t *review.Table, row int, tv *truthView, tsCol, latCol, lonCol, altCol, idCol string) (ErrorSample, error) {
	ts, err := t.Time(tsCol, row)
	if err != nil {
		return ErrorSample{}, fmt.Errorf("%w: %v", review.ErrAssociation, err)
	}
	lat, err := t.Float(latCol, row)
	if err != nil {
		return ErrorSample{}, fmt.Errorf("%w: %v", review.ErrAssociation, err)
	}
	lon, err := t.Float(lonCol, row)
	if err != nil {
		return ErrorSample{}, fmt.Errorf("%w: %v", review.ErrAssociation, err)
	}
	j, ok := NearestTruth(ts, tv.times)
	if !ok {
		return ErrorSample{}, fmt.Errorf("%w: no truth sample", review.ErrAssociation)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsNaN(tv.lat[j]) || math.IsNaN(tv.lon[j]) {
		return ErrorSample{}, fmt.Errorf("%w: non-numeric position", review.ErrAssociation)
	}

	north, east := ComputeError(lat, lon, tv.lat[j], tv.lon[j])
	s := ErrorSample{
		Timestamp: ts,
		North:     north,
		East:      east,
		Lat:       lat,
		Lon:       lon,
		Alt:       math.NaN(),
	}
	if id, err := t.Key(idCol, row); err == nil {
		s.TrackID = id
	}

	var altTrack, altTruth *float64
	if a, err := t.Float(altCol, row); err == nil {
		s.Alt = a
		altTrack = &a
	}
	if tv.alt != nil {
		altTruth = &tv.alt[j]
	}
	s.Magnitude = ComputeMagnitude(north, east, altTrack, altTruth)
	s.HasMagnitude = altTrack != nil && altTruth != nil && !math.IsNaN(*altTrack) && !math.IsNaN(*altTruth)
	return s, nil
}

// Speeds returns the ground speed in m/s of each row relative to the previous
// row of the same track, in table order. The first sample of a track, and
// samples with no elapsed time, are NaN.
func Speeds(t *review.Table, tsCol, latCol, lonCol, idCol string) []float64 {
	out := make([]float64, t.Len())
	type prev struct {
		ts       time.Time
		lat, lon float64
	}
	last := make(map[string]prev)
	for row := range out {
		out[row] = math.NaN()
		ts, err := t.Time(tsCol, row)
		if err != nil {
			continue
		}
		lat, err1 := t.Float(latCol, row)
		lon, err2 := t.Float(lonCol, row)
		if err1 != nil || err2 != nil {
			continue
		}
		id, _ := t.Key(idCol, row)
		if p, ok := last[id]; ok {
			if dt := ts.Sub(p.ts).Seconds(); dt > 0 {
				n, e := ComputeError(lat, lon, p.lat, p.lon)
				out[row] = math.Hypot(n, e) / dt
			}
		}
		last[id] = prev{ts: ts, lat: lat, lon: lon}
	}
	return out
}
