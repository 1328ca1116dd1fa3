// Package store keeps imported datasets in a SQLite database so the viewer
// can serve them without rereading the recording directories.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/schema"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound reports a dataset name absent from the store.
var ErrNotFound = errors.New("dataset not found")

// Store is a SQLite-backed dataset store.
type Store struct {
	db *sql.DB
}

// Summary describes a stored dataset.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	Tracks     int       `json:"tracks"`
	Truth      int       `json:"truth"`
	Detections int       `json:"detections"`
	ImportedAt time.Time `json:"imported_at"`
}

// Open opens or creates the database at path and applies pending
// migrations. Use ":memory:" for a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// One connection keeps an in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrateUp() error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	// Closing m would close the shared *sql.DB, so it is left to the GC.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version returns the applied schema version.
func (s *Store) Version() (uint, error) {
	var v uint
	var dirty bool
	err := s.db.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&v, &dirty)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}

var entityRoles = []schema.Role{schema.Tracks, schema.Truth, schema.Detections}

func idLogical(role schema.Role) string {
	switch role {
	case schema.Tracks:
		return schema.TrackID
	case schema.Truth:
		return schema.TruthID
	}
	return schema.DetectionID
}

// Import stores ds under its name, replacing any dataset of that name.
// Columns are read through the dataset's schema mapping and stored under
// the default names. Rows without a timestamp or id are skipped.
func (s *Store) Import(ctx context.Context, ds *review.Dataset) error {
	if ds == nil || ds.Name == "" {
		return fmt.Errorf("failed to import: dataset has no name")
	}
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, ds.Name); err != nil {
		return fmt.Errorf("failed to replace dataset %s: %w", ds.Name, err)
	}
	var caps []string
	for c, on := range ds.Capabilities {
		if on {
			caps = append(caps, string(c))
		}
	}
	sort.Strings(caps)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (dataset_id, name, source, capabilities, imported_at) VALUES (?, ?, ?, ?, ?)`,
		ds.ID, ds.Name, ds.Source, strings.Join(caps, ","), time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to insert dataset %s: %w", ds.Name, err)
	}

	sampleStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (dataset_id, role, row_index, ts_unix_ns, lat, lon, alt, entity_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer sampleStmt.Close()

	skipped := 0
	for _, role := range entityRoles {
		t := ds.Table(role)
		tsCol := ds.Col(role, schema.Timestamp)
		idCol := ds.Col(role, idLogical(role))
		latCol, lonCol, altCol := ds.Col(role, schema.Lat), ds.Col(role, schema.Lon), ds.Col(role, schema.Alt)
		for row := 0; row < t.Len(); row++ {
			ts, err1 := t.Time(tsCol, row)
			id, err2 := t.Key(idCol, row)
			if err1 != nil || err2 != nil {
				skipped++
				continue
			}
			if _, err := sampleStmt.ExecContext(ctx, ds.ID, string(role), row, ts.UnixNano(),
				nullable(t, latCol, row), nullable(t, lonCol, row), nullable(t, altCol, row), id); err != nil {
				return fmt.Errorf("failed to insert %s row %d: %w", role, row, err)
			}
		}
	}

	if ds.Errors != nil {
		errStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO track_errors (dataset_id, row_index, ts_unix_ns, track_id, north_error, east_error) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare error insert: %w", err)
		}
		defer errStmt.Close()
		tsCol := ds.Col(schema.Errors, schema.Timestamp)
		idCol := ds.Col(schema.Errors, schema.TrackID)
		northCol, eastCol := ds.Col(schema.Errors, schema.NorthError), ds.Col(schema.Errors, schema.EastError)
		for row := 0; row < ds.Errors.Len(); row++ {
			ts, err1 := ds.Errors.Time(tsCol, row)
			id, err2 := ds.Errors.Key(idCol, row)
			if err1 != nil || err2 != nil {
				skipped++
				continue
			}
			if _, err := errStmt.ExecContext(ctx, ds.ID, row, ts.UnixNano(), id,
				nullable(ds.Errors, northCol, row), nullable(ds.Errors, eastCol, row)); err != nil {
				return fmt.Errorf("failed to insert error row %d: %w", row, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	if skipped > 0 {
		review.Diagf("store: %s: skipped %d rows without timestamp or id", ds.Name, skipped)
	}
	review.Opsf("store: imported %s (%s)", ds.Name, ds.ID)
	return nil
}

// nullable returns a cell as a float, or nil when missing or NaN.
func nullable(t *review.Table, col string, row int) interface{} {
	v, err := t.Float(col, row)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	return v
}

// Load reads a dataset back by name. Tables carry the default column names.
func (s *Store) Load(ctx context.Context, name string) (*review.Dataset, error) {
	ds := &review.Dataset{Name: name, Capabilities: make(map[review.Capability]bool)}
	var caps string
	err := s.db.QueryRowContext(ctx,
		`SELECT dataset_id, source, capabilities FROM datasets WHERE name = ?`, name).Scan(&ds.ID, &ds.Source, &caps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", name, err)
	}
	for _, c := range strings.Split(caps, ",") {
		if c != "" {
			ds.Capabilities[review.Capability(c)] = true
		}
	}

	for _, role := range entityRoles {
		t, err := s.loadSamples(ctx, ds.ID, role)
		if err != nil {
			return nil, err
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
	if ds.Has(review.CapPrecomputedErrors) {
		t, err := s.loadErrors(ctx, ds.ID)
		if err != nil {
			return nil, err
		}
		ds.Errors = t
	}
	return ds, nil
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func (s *Store) loadSamples(ctx context.Context, datasetID string, role schema.Role) (*review.Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts_unix_ns, lat, lon, alt, entity_id FROM samples WHERE dataset_id = ? AND role = ? ORDER BY row_index`,
		datasetID, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", role, err)
	}
	defer rows.Close()

	var ts []time.Time
	var lat, lon, alt []float64
	var ids []string
	for rows.Next() {
		var ns int64
		var la, lo, al sql.NullFloat64
		var id string
		if err := rows.Scan(&ns, &la, &lo, &al, &id); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", role, err)
		}
		ts = append(ts, time.Unix(0, ns).UTC())
		lat = append(lat, floatOrNaN(la))
		lon = append(lon, floatOrNaN(lo))
		alt = append(alt, floatOrNaN(al))
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", role, err)
	}

	names := schema.Columns(nil, role)
	if len(ts) == 0 {
		return review.EmptyTable(names...), nil
	}
	return review.NewTable(
		review.TimeColumn(names[0], ts...),
		review.FloatColumn(names[1], lat...),
		review.FloatColumn(names[2], lon...),
		review.FloatColumn(names[3], alt...),
		review.ParseColumn(names[4], ids),
	)
}

func (s *Store) loadErrors(ctx context.Context, datasetID string) (*review.Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts_unix_ns, track_id, north_error, east_error FROM track_errors WHERE dataset_id = ? ORDER BY row_index`,
		datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer rows.Close()

	var ts []time.Time
	var ids []string
	var north, east []float64
	for rows.Next() {
		var ns int64
		var id string
		var n, e sql.NullFloat64
		if err := rows.Scan(&ns, &id, &n, &e); err != nil {
			return nil, fmt.Errorf("failed to scan errors: %w", err)
		}
		ts = append(ts, time.Unix(0, ns).UTC())
		ids = append(ids, id)
		north = append(north, floatOrNaN(n))
		east = append(east, floatOrNaN(e))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read errors: %w", err)
	}

	names := schema.Columns(nil, schema.Errors)
	if len(ts) == 0 {
		return review.EmptyTable(names...), nil
	}
	return review.NewTable(
		review.TimeColumn(names[0], ts...),
		review.ParseColumn(names[1], ids),
		review.FloatColumn(names[2], north...),
		review.FloatColumn(names[3], east...),
	)
}

// List summarises every stored dataset in name order.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.dataset_id, d.name, d.source, d.imported_at,
			(SELECT COUNT(DISTINCT entity_id) FROM samples WHERE dataset_id = d.dataset_id AND role = 'tracks'),
			(SELECT COUNT(DISTINCT entity_id) FROM samples WHERE dataset_id = d.dataset_id AND role = 'truth'),
			(SELECT COUNT(*) FROM samples WHERE dataset_id = d.dataset_id AND role = 'detections')
		FROM datasets d
		ORDER BY d.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var importedNs int64
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Source, &importedNs, &sum.Tracks, &sum.Truth, &sum.Detections); err != nil {
			return nil, fmt.Errorf("failed to scan dataset summary: %w", err)
		}
		sum.ImportedAt = time.Unix(0, importedNs).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a dataset and its rows.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// LoadAll loads every stored dataset.
func (s *Store) LoadAll(ctx context.Context) ([]*review.Dataset, error) {
	sums, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*review.Dataset, 0, len(sums))
	for _, sum := range sums {
		ds, err := s.Load(ctx, sum.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}
