// Package animation builds the frame timeline of a dataset and drives
// playback over it.
package animation

import (
	"sort"
	"time"

	"github.com/banshee-data/trackreview/internal/review"
)

// Source is one entity table contributing to the animation.
type Source struct {
	Name       string
	Table      *review.Table
	TimeColumn string
}

// BuildFrameIndex returns the ascending, de-duplicated union of every
// source's timestamps. Cells that cannot be read as time are skipped.
func BuildFrameIndex(sources ...Source) []time.Time {
	seen := make(map[int64]time.Time)
	for _, s := range sources {
		for row := 0; row < s.Table.Len(); row++ {
			ts, err := s.Table.Time(s.TimeColumn, row)
			if err != nil {
				review.Tracef("animation: %s row %d has no timestamp: %v", s.Name, row, err)
				continue
			}
			seen[ts.UnixNano()] = ts
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// FilterToFrame returns, per source, the rows with timestamp <= current.
// Sources are not modified; each result holds a fresh table.
func FilterToFrame(sources []Source, current time.Time) []Source {
	out := make([]Source, len(sources))
	for i, s := range sources {
		out[i] = s
		out[i].Table = s.Table.Filter(func(row int) bool {
			ts, err := s.Table.Time(s.TimeColumn, row)
			return err == nil && !ts.After(current)
		})
	}
	return out
}

// FrameTime returns the timestamp of frame index i clamped to the
// timeline, or false for an empty timeline.
func FrameTime(frames []time.Time, i int) (time.Time, int, bool) {
	if len(frames) == 0 {
		return time.Time{}, 0, false
	}
	i = clamp(i, 0, len(frames)-1)
	return frames[i], i, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
