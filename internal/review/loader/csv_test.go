package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/schema"
)

const (
	tracksCSV = `timestamp,lat,lon,alt,track_id
1772366400,40.0005,-74.0005,10,5
1772366401,40.0010,-74.0010,11,5
1772366400,39.9995,-73.9995,10,6
`
	truthCSV = `timestamp,lat,lon,alt,id
2026-03-01T12:00:00Z,40.0,-74.0,10,1
2026-03-01T12:00:01Z,40.0,-74.0,10,1
`
	errorsCSV = `timestamp,track_id,north_error,east_error
1772366400,5,1.5,-0.5
`
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestLoadCSVDir(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"tracks.csv": tracksCSV,
		"truth.csv":  truthCSV,
	})

	ds, err := LoadCSVDir(dir, "flight-1", nil)
	require.NoError(t, err)

	assert.Equal(t, "flight-1", ds.Name)
	assert.Equal(t, dir, ds.Source)
	_, err = uuid.Parse(ds.ID)
	assert.NoError(t, err)

	assert.Equal(t, 3, ds.Tracks.Len())
	ids, err := ds.Tracks.Keys("track_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "6"}, ids)

	ts, err := ds.Truth.Time("timestamp", 1)
	require.NoError(t, err)
	assert.Equal(t, 1772366401.0, review.TimeToSeconds(ts))

	// detections.csv is missing: empty table, expected columns.
	assert.Equal(t, 0, ds.Detections.Len())
	assert.Equal(t, schema.Columns(nil, schema.Detections), ds.Detections.Names())
	assert.False(t, ds.Has(review.CapPrecomputedErrors))
	assert.Nil(t, ds.Errors)
}

func TestLoadCSVDir_PrecomputedErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"tracks.csv": tracksCSV,
		"errors.csv": errorsCSV,
	})
	ds, err := LoadCSVDir(dir, "", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), ds.Name)
	assert.True(t, ds.Has(review.CapPrecomputedErrors))
	v, err := ds.Errors.Float("north_error", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestLoadCSVDir_HeaderMismatch(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"tracks.csv": "lat,timestamp,lon,alt,track_id\n40,1772366400,-74,10,5\n",
		"errors.csv": "timestamp,north_error\n1,2\n",
	})
	ds, err := LoadCSVDir(dir, "bad", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Tracks.Len())
	assert.Equal(t, schema.Columns(nil, schema.Tracks), ds.Tracks.Names())
	assert.False(t, ds.Has(review.CapPrecomputedErrors))
}

func TestLoadCSVDir_SchemaOverride(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"tracks.csv": "time,lat,lon,alt,tid\n1772366400,40,-74,10,9\n",
	})
	mapping := schema.Mapping{schema.Tracks: {schema.Timestamp: "time", schema.TrackID: "tid"}}
	ds, err := LoadCSVDir(dir, "override", mapping)
	require.NoError(t, err)
	require.Equal(t, 1, ds.Tracks.Len())
	id, err := ds.Tracks.Key(ds.Col(schema.Tracks, schema.TrackID), 0)
	require.NoError(t, err)
	assert.Equal(t, "9", id)
}

func TestLoadCSVDir_NotADirectory(t *testing.T) {
	dir := writeFiles(t, map[string]string{"tracks.csv": tracksCSV})
	_, err := LoadCSVDir(filepath.Join(dir, "tracks.csv"), "", nil)
	assert.Error(t, err)
	_, err = LoadCSVDir(filepath.Join(dir, "missing"), "", nil)
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	expected := schema.Columns(nil, schema.Tracks)
	tests := []struct {
		name    string
		input   string
		rows    int
		wantErr error
	}{
		{name: "valid", input: tracksCSV, rows: 3},
		{name: "extra trailing column", input: "timestamp,lat,lon,alt,track_id,speed\n1,2,3,4,5,6\n", rows: 1},
		{name: "header only", input: "timestamp,lat,lon,alt,track_id\n", rows: 0},
		{name: "empty", input: "", wantErr: ErrHeaderMismatch},
		{name: "short header", input: "timestamp,lat\n1,2\n", wantErr: ErrHeaderMismatch},
		{name: "renamed column", input: "time,lat,lon,alt,track_id\n1,2,3,4,5\n", wantErr: ErrHeaderMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadCSV(strings.NewReader(tt.input), expected, "timestamp")
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, tbl.Len())
		})
	}

	_, err := ReadCSV(strings.NewReader("timestamp,lat,lon,alt,track_id\nyesterday,1,2,3,4\n"), expected, "timestamp")
	assert.Error(t, err)
}

func TestDiscoverAndLoadAll(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b-run", "a-run"} {
		dir := filepath.Join(root, name)
		require.NoError(t, os.Mkdir(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tracks.csv"), []byte(tracksCSV), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(root, "notes"), 0755))

	dirs, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a-run"), filepath.Join(root, "b-run")}, dirs)

	all, err := LoadAll(root, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a-run", all[0].Name)
	assert.NotEqual(t, all[0].ID, all[1].ID)

	_, err = Discover(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestDiscoverFollowsSymlinksInsideRoot(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "recordings")
	outside := filepath.Join(tmp, "outside")
	for _, dir := range []string{filepath.Join(root, "run-a"), outside} {
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tracks.csv"), []byte(tracksCSV), 0644))
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "run-a"), filepath.Join(root, "run-b")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "run-c")))

	dirs, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "run-a"), filepath.Join(root, "run-b")}, dirs)
}
