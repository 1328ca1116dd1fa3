package testutil

import (
	"time"

	"github.com/banshee-data/trackreview/internal/review"
)

// Base is the epoch of fixture timestamps (2026-03-01T12:00:00Z).
const Base = 1772366400.0

// Secs builds a time column from second offsets after Base.
func Secs(name string, offsets ...float64) review.Column {
	out := make([]time.Time, len(offsets))
	for i, o := range offsets {
		out[i] = review.SecondsToTime(Base + o)
	}
	return review.TimeColumn(name, out...)
}

// TwoTrackDataset returns a small dataset: tracks 5 and 6 sampled at
// offsets 0..3 s drifting north-east of a single truth object, plus one
// detection per second.
func TwoTrackDataset() *review.Dataset {
	tracks := review.MustTable(
		Secs("timestamp", 0, 1, 2, 3, 0, 1, 2, 3),
		review.FloatColumn("lat", 40.0005, 40.0010, 40.0015, 40.0020, 39.9995, 39.9990, 39.9985, 39.9980),
		review.FloatColumn("lon", -74.0005, -74.0010, -74.0015, -74.0020, -73.9995, -73.9990, -73.9985, -73.9980),
		review.FloatColumn("alt", 10, 11, 12, 13, 10, 9, 8, 7),
		review.IntColumn("track_id", 5, 5, 5, 5, 6, 6, 6, 6),
	)
	truth := review.MustTable(
		Secs("timestamp", 0, 1, 2, 3),
		review.FloatColumn("lat", 40.0, 40.0, 40.0, 40.0),
		review.FloatColumn("lon", -74.0, -74.0, -74.0, -74.0),
		review.FloatColumn("alt", 10, 10, 10, 10),
		review.IntColumn("id", 1, 1, 1, 1),
	)
	detections := review.MustTable(
		Secs("timestamp", 0, 1, 2, 3),
		review.FloatColumn("lat", 40.0001, 40.0002, 40.0003, 40.0004),
		review.FloatColumn("lon", -74.0001, -74.0002, -74.0003, -74.0004),
		review.FloatColumn("alt", 10, 10, 10, 10),
		review.IntColumn("detection_id", 100, 101, 102, 103),
	)
	return &review.Dataset{
		ID:         "fixture-two-track",
		Name:       "two-track",
		Tracks:     tracks,
		Truth:      truth,
		Detections: detections,
	}
}

// EmptyDataset returns a dataset whose tables carry the expected columns
// but no rows.
func EmptyDataset(name string) *review.Dataset {
	return &review.Dataset{
		ID:         "fixture-" + name,
		Name:       name,
		Tracks:     review.EmptyTable("timestamp", "lat", "lon", "alt", "track_id"),
		Truth:      review.EmptyTable("timestamp", "lat", "lon", "alt", "id"),
		Detections: review.EmptyTable("timestamp", "lat", "lon", "alt", "detection_id"),
	}
}
