// Package loader reads recording directories into review datasets.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/schema"
	"github.com/banshee-data/trackreview/internal/security"
)

// maxFileSize bounds a single table file.
const maxFileSize = 512 * 1024 * 1024

// FileNames maps each role to its file inside a recording directory.
var FileNames = map[schema.Role]string{
	schema.Tracks:     "tracks.csv",
	schema.Truth:      "truth.csv",
	schema.Detections: "detections.csv",
	schema.Errors:     "errors.csv",
}

// ErrHeaderMismatch reports a file whose header does not start with the
// expected columns in order.
var ErrHeaderMismatch = errors.New("header mismatch")

// LoadCSVDir reads a recording directory. Missing or malformed track,
// truth and detection files become empty tables with the expected columns
// so downstream plots degrade to "no data". A valid errors.csv enables the
// precomputed errors capability. name defaults to the directory name.
func LoadCSVDir(dir, name string, mapping schema.Mapping) (*review.Dataset, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat dataset dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset path %s is not a directory", dir)
	}
	if name == "" {
		name = filepath.Base(filepath.Clean(dir))
	}

	ds := &review.Dataset{
		ID:           uuid.NewString(),
		Name:         name,
		Source:       dir,
		Schema:       mapping,
		Capabilities: make(map[review.Capability]bool),
	}
	for _, role := range []schema.Role{schema.Tracks, schema.Truth, schema.Detections} {
		t, err := ReadCSVFile(filepath.Join(dir, FileNames[role]), mapping, role)
		if err != nil {
			review.Diagf("loader: %s: %s: %v; using empty table", name, FileNames[role], err)
			t = review.EmptyTable(schema.Columns(mapping, role)...)
		}
		switch role {
		case schema.Tracks:
			ds.Tracks = t
		case schema.Truth:
			ds.Truth = t
		case schema.Detections:
			ds.Detections = t
		}
	}

	errPath := filepath.Join(dir, FileNames[schema.Errors])
	if _, err := os.Stat(errPath); err == nil {
		t, err := ReadCSVFile(errPath, mapping, schema.Errors)
		if err != nil {
			review.Diagf("loader: %s: %s ignored: %v", name, FileNames[schema.Errors], err)
		} else {
			ds.Errors = t
			ds.Capabilities[review.CapPrecomputedErrors] = true
		}
	}

	review.Opsf("loader: loaded %s (%d tracks rows, %d truth rows, %d detection rows)",
		name, ds.Tracks.Len(), ds.Truth.Len(), ds.Detections.Len())
	return ds, nil
}

// ReadCSVFile reads one role table from path.
func ReadCSVFile(path string, mapping schema.Mapping, role schema.Role) (*review.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("file %s too large: %d bytes (max %d)", path, info.Size(), maxFileSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, schema.Columns(mapping, role), schema.Resolve(mapping, role, schema.Timestamp))
}

// ReadCSV parses a table whose header starts with expected, in order.
// Extra trailing columns are kept. tsCol is parsed as timestamps; other
// columns are typed by content.
func ReadCSV(r io.Reader, expected []string, tsCol string) (*review.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrHeaderMismatch)
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) < len(expected) {
		return nil, fmt.Errorf("%w: got %v, want %v", ErrHeaderMismatch, header, expected)
	}
	for i, col := range expected {
		if header[i] != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrHeaderMismatch, i, header[i], col)
		}
	}

	rows := records[1:]
	cols := make([]review.Column, len(header))
	for c, name := range header {
		raw := make([]string, len(rows))
		for i, row := range rows {
			raw[i] = row[c]
		}
		if name == tsCol {
			col, err := review.ParseTimeColumn(name, raw)
			if err != nil {
				return nil, err
			}
			cols[c] = col
			continue
		}
		cols[c] = review.ParseColumn(name, raw)
	}
	t, err := review.NewTable(cols...)
	if err != nil {
		return nil, fmt.Errorf("failed to build table: %w", err)
	}
	return t, nil
}

// Discover returns the subdirectories of root that hold a tracks file,
// sorted by name. root itself is included when it holds one. Symlinked
// recordings are followed only while they resolve inside root.
func Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}
	var out []string
	if fileExists(filepath.Join(root, FileNames[schema.Tracks])) {
		out = append(out, root)
	}
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		if !security.IsDir(dir) {
			continue
		}
		if err := security.WithinDir(dir, root); err != nil {
			review.Diagf("loader: skipping %s: %v", dir, err)
			continue
		}
		if fileExists(filepath.Join(dir, FileNames[schema.Tracks])) {
			out = append(out, dir)
		}
	}
	sort.Strings(out)
	return out, nil
}

// LoadAll loads every dataset Discover finds under root. A directory that
// fails to load is logged and skipped.
func LoadAll(root string, mapping schema.Mapping) ([]*review.Dataset, error) {
	dirs, err := Discover(root)
	if err != nil {
		return nil, err
	}
	out := make([]*review.Dataset, 0, len(dirs))
	for _, dir := range dirs {
		ds, err := LoadCSVDir(dir, "", mapping)
		if err != nil {
			review.Opsf("loader: skipping %s: %v", dir, err)
			continue
		}
		out = append(out, ds)
	}
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
