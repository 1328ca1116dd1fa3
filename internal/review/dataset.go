package review

import (
	"github.com/banshee-data/trackreview/internal/review/schema"
)

// Capability flags optional content a loader found for a dataset.
type Capability string

// CapPrecomputedErrors marks a dataset whose Errors table was produced
// upstream and can be read instead of re-associating tracks with truth.
const CapPrecomputedErrors Capability = "precomputed_errors"

// Dataset aggregates the tables of one recording. The pipeline treats it as
// read-only.
type Dataset struct {
	ID     string
	Name   string
	Source string

	Tracks     *Table
	Truth      *Table
	Detections *Table
	Errors     *Table

	Schema       schema.Mapping
	Capabilities map[Capability]bool
}

// Has reports whether the dataset carries a capability.
func (d *Dataset) Has(c Capability) bool {
	return d != nil && d.Capabilities[c]
}

// Table returns the table for a role, or nil.
func (d *Dataset) Table(role schema.Role) *Table {
	if d == nil {
		return nil
	}
	switch role {
	case schema.Tracks:
		return d.Tracks
	case schema.Truth:
		return d.Truth
	case schema.Detections:
		return d.Detections
	case schema.Errors:
		return d.Errors
	}
	return nil
}

// Col resolves a logical column name against the dataset's schema.
func (d *Dataset) Col(role schema.Role, logical string) string {
	if d == nil {
		return schema.Resolve(nil, role, logical)
	}
	return schema.Resolve(d.Schema, role, logical)
}
