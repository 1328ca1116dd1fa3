package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackreview/internal/config"
)

const (
	tracksCSV = `timestamp,lat,lon,alt,track_id
1772366400,40.0005,-74.0005,10,5
1772366401,40.0010,-74.0010,11,5
1772366400,39.9995,-73.9995,10,6
`
	truthCSV = `timestamp,lat,lon,alt,id
1772366400,40.0,-74.0,10,1
1772366401,40.0,-74.0,10,1
`
)

// writeRecording creates root/name holding a tracks and truth file.
func writeRecording(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tracks.csv"), []byte(tracksCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "truth.csv"), []byte(truthCSV), 0644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "trackreview dev"))
}

func TestList(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root, "run-b")
	writeRecording(t, root, "run-a")

	out, err := run(t, "list", "--data", root)
	require.NoError(t, err)
	assert.Contains(t, out, "run-a *")
	assert.Contains(t, out, "run-b")
	assert.Contains(t, out, "computed")
}

func TestListShortensSource(t *testing.T) {
	root := filepath.Join(t.TempDir(), strings.Repeat("deep", 10))
	writeRecording(t, root, "run-a")

	out, err := run(t, "list", "--data", root, "--width", "40")
	require.NoError(t, err)
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, root)
	assert.Contains(t, out, "run-a")
}

func TestShortenPath(t *testing.T) {
	assert.Equal(t, "/data/run-a", shortenPath("/data/run-a", 20))
	assert.Equal(t, ".../run-a", shortenPath("/recordings/2026/run-a", 9))
	assert.Equal(t, 15, sourceWidth(40))
	assert.Equal(t, 40, sourceWidth(100))
	assert.Equal(t, 70, sourceWidth(400))
}

func TestListWithoutSources(t *testing.T) {
	_, err := run(t, "list")
	assert.ErrorContains(t, err, "no datasets found")
}

func TestFormatters(t *testing.T) {
	out, err := run(t, "formatters")
	require.NoError(t, err)
	assert.Contains(t, out, "lat_lon_animation")
	assert.Contains(t, out, "No datasets available")
}

func TestPlotTable(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root, "run-a")

	out, err := run(t, "plot", "track_counts", "--data", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Track Counts")

	out, err = run(t, "plot", "north_error_histogram", "--data", root, "--bins", "5", "--units", "ft")
	require.NoError(t, err)
	assert.Contains(t, out, "North")
}

func TestPlotPNGToFile(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root, "run-a")
	path := filepath.Join(t.TempDir(), "scatter.png")

	_, err := run(t, "plot", "lat_lon_scatter", "--data", root, "-f", "png", "-o", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestPlotIntoDirectory(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root, "run a")
	outDir := t.TempDir()

	_, err := run(t, "plot", "track_counts", "--data", root, "-f", "echarts", "-o", outDir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(outDir, "run_a_track_counts.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Track Counts")
}

func TestPlotErrors(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root, "run-a")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown plot", []string{"plot", "nope", "--data", root}, "unknown plot"},
		{"unknown format", []string{"plot", "track_counts", "--data", root, "-f", "svg"}, "unknown render backend"},
		{"unknown focus", []string{"plot", "track_counts", "--data", root, "--focus", "missing"}, "not found"},
		{"bad units", []string{"plot", "track_counts", "--data", root, "--units", "furlongs"}, "error_units"},
		{"missing settings", []string{"plot", "track_counts", "--data", root, "--settings", "missing.json"}, "missing.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestStats(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root, "run-a")
	out, err := run(t, "stats", "--data", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Error Statistics")
}

func TestFrames(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root, "run-a")

	out, err := run(t, "frames", "--data", root)
	require.NoError(t, err)
	assert.Equal(t, "run-a: 2 frames\n", out)

	out, err = run(t, "frames", "--data", root, "--tracks=", "--truth=")
	require.NoError(t, err)
	assert.Equal(t, "run-a: 0 frames\n", out)

	out, err = run(t, "frames", "--data", root, "--play", "--speed", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "frame 1/2 2026-03-01 12:00:00.000 UTC")
	assert.Contains(t, out, "frame 2/2 2026-03-01 12:00:01.000 UTC")
}

func TestImportListDelete(t *testing.T) {
	root := t.TempDir()
	dir := writeRecording(t, root, "run-a")
	db := filepath.Join(t.TempDir(), "review.db")

	out, err := run(t, "import", dir, "--db", db, "--name", "flight-7")
	require.NoError(t, err)
	assert.Contains(t, out, "imported flight-7")

	out, err = run(t, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "flight-7 *")

	// A stored dataset and a directory dataset load side by side.
	out, err = run(t, "list", "--db", db, "--data", root)
	require.NoError(t, err)
	assert.Contains(t, out, "flight-7")
	assert.Contains(t, out, "run-a")

	out, err = run(t, "delete", "flight-7", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted flight-7")

	_, err = run(t, "delete", "flight-7", "--db", db)
	assert.Error(t, err)
}

func TestImportNeedsDB(t *testing.T) {
	_, err := run(t, "import", t.TempDir())
	assert.ErrorContains(t, err, "--db")
	_, err = run(t, "import", "a", "b", "--db", "x.db", "--name", "n")
	assert.ErrorContains(t, err, "single directory")
}

func TestApplyServeFlags(t *testing.T) {
	serveCmd, _, err := newRootCmd().Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, serveCmd.ParseFlags([]string{"--data", "/recordings", "--focus", "run-a"}))

	o := &options{dataDir: "/recordings", focus: "run-a"}
	sc := config.NewServerConfig()
	applyServeFlags(serveCmd, o, sc, ":9999")
	assert.Equal(t, ":9999", sc.Addr)
	assert.Equal(t, "/recordings", sc.DataDir)
	assert.Equal(t, "run-a", sc.Focus)
	assert.Equal(t, "", sc.DBPath)
}
