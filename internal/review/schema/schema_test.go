package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	override := Mapping{
		Truth:  {Lat: "latitude"},
		Tracks: {TrackID: ""},
	}

	tests := []struct {
		name    string
		m       Mapping
		role    Role
		logical string
		want    string
	}{
		{"nil mapping uses default", nil, Truth, TruthID, "id"},
		{"override wins", override, Truth, Lat, "latitude"},
		{"missing pair falls back to default", override, Truth, Lon, "lon"},
		{"empty override falls back to default", override, Tracks, TrackID, "track_id"},
		{"unknown logical echoes itself", nil, Tracks, "speed", "speed"},
		{"unknown role echoes logical", nil, Role("radar"), Lat, Lat},
		{"errors defaults", nil, Errors, NorthError, "north_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.m, tt.role, tt.logical))
		})
	}
}

func TestColumns(t *testing.T) {
	t.Parallel()
	got := Columns(Mapping{Truth: {TruthID: "truth_key"}}, Truth)
	assert.Equal(t, []string{"timestamp", "lat", "lon", "alt", "truth_key"}, got)
	assert.Equal(t, []string{"timestamp", "lat", "lon", "alt", "track_id"}, Columns(nil, Tracks))
}

func TestValidate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Mapping{Tracks: {Lat: "y"}}.Validate())
	assert.Error(t, Mapping{Role("bogus"): {Lat: "y"}}.Validate())
	assert.Error(t, Mapping{Tracks: {Lat: ""}}.Validate())
}

func TestMerge(t *testing.T) {
	t.Parallel()
	base := Mapping{Tracks: {Lat: "a", Lon: "b"}}
	got := base.Merge(Mapping{Tracks: {Lat: "c"}, Truth: {TruthID: "tid"}})
	assert.Equal(t, "c", Resolve(got, Tracks, Lat))
	assert.Equal(t, "b", Resolve(got, Tracks, Lon))
	assert.Equal(t, "tid", Resolve(got, Truth, TruthID))
	assert.Equal(t, "a", base[Tracks][Lat], "merge must not modify the receiver")
}
