// Package schema maps logical field names to the physical column names of a
// dataset's tables.
package schema

import (
	"fmt"
	"sort"
)

// Role identifies which table of a dataset a lookup refers to.
type Role string

const (
	Tracks     Role = "tracks"
	Truth      Role = "truth"
	Detections Role = "detections"
	Errors     Role = "errors"
)

// Logical field names understood by the pipeline.
const (
	Timestamp   = "timestamp"
	Lat         = "lat"
	Lon         = "lon"
	Alt         = "alt"
	TrackID     = "track_id"
	TruthID     = "truth_id"
	DetectionID = "detection_id"
	NorthError  = "north_error"
	EastError   = "east_error"
)

// Mapping is role -> logical name -> physical column name.
type Mapping map[Role]map[string]string

var defaults = Mapping{
	Tracks: {
		Timestamp: "timestamp",
		Lat:       "lat",
		Lon:       "lon",
		Alt:       "alt",
		TrackID:   "track_id",
	},
	Truth: {
		Timestamp: "timestamp",
		Lat:       "lat",
		Lon:       "lon",
		Alt:       "alt",
		TruthID:   "id",
	},
	Detections: {
		Timestamp:   "timestamp",
		Lat:         "lat",
		Lon:         "lon",
		Alt:         "alt",
		DetectionID: "detection_id",
	},
	Errors: {
		Timestamp:  "timestamp",
		TrackID:    "track_id",
		NorthError: "north_error",
		EastError:  "east_error",
	},
}

// Resolve returns the physical column for a logical name. Overrides in m win,
// then the built-in defaults, then the logical name itself. It never fails;
// the returned column may still be absent from the table.
func Resolve(m Mapping, role Role, logical string) string {
	if col, ok := m[role][logical]; ok && col != "" {
		return col
	}
	if col, ok := defaults[role][logical]; ok {
		return col
	}
	return logical
}

// Columns resolves the standard columns of a role in their canonical order.
func Columns(m Mapping, role Role) []string {
	var logical []string
	switch role {
	case Tracks:
		logical = []string{Timestamp, Lat, Lon, Alt, TrackID}
	case Truth:
		logical = []string{Timestamp, Lat, Lon, Alt, TruthID}
	case Detections:
		logical = []string{Timestamp, Lat, Lon, Alt, DetectionID}
	case Errors:
		logical = []string{Timestamp, TrackID, NorthError, EastError}
	}
	out := make([]string, len(logical))
	for i, l := range logical {
		out[i] = Resolve(m, role, l)
	}
	return out
}

// Validate rejects overrides for unknown roles and empty column names.
// Resolve itself tolerates both; this is used when loading settings.
func (m Mapping) Validate() error {
	roles := make([]string, 0, len(m))
	for r := range m {
		roles = append(roles, string(r))
	}
	sort.Strings(roles)
	for _, r := range roles {
		if _, ok := defaults[Role(r)]; !ok {
			return fmt.Errorf("unknown schema role %q", r)
		}
		for logical, col := range m[Role(r)] {
			if col == "" {
				return fmt.Errorf("schema %s.%s maps to an empty column name", r, logical)
			}
		}
	}
	return nil
}

// Merge returns a new mapping with the entries of o layered over m.
func (m Mapping) Merge(o Mapping) Mapping {
	out := make(Mapping, len(m)+len(o))
	for _, src := range []Mapping{m, o} {
		for role, fields := range src {
			if out[role] == nil {
				out[role] = make(map[string]string, len(fields))
			}
			for k, v := range fields {
				out[role][k] = v
			}
		}
	}
	return out
}
