package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/trackreview/internal/review/bounds"
	"github.com/banshee-data/trackreview/internal/review/histogram"
	"github.com/banshee-data/trackreview/internal/review/schema"
)

func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()

	if cfg.HistogramBins == nil || *cfg.HistogramBins != 41 {
		t.Errorf("Expected HistogramBins 41, got %v", cfg.HistogramBins)
	}
	if cfg.SigmaExtent == nil || *cfg.SigmaExtent != 4.0 {
		t.Errorf("Expected SigmaExtent 4.0, got %v", cfg.SigmaExtent)
	}
	if cfg.GetHistogramMode() != histogram.ModeSigma {
		t.Errorf("GetHistogramMode() = %q, want sigma", cfg.GetHistogramMode())
	}
	if cfg.GetGaussianOverlay() {
		t.Error("GetGaussianOverlay() = true, want false")
	}
	if cfg.GetErrorUnits() != "m" {
		t.Errorf("GetErrorUnits() = %q, want m", cfg.GetErrorUnits())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultSettings().Validate() = %v", err)
	}
}

func TestDefaultsFileMatchesDefaultSettings(t *testing.T) {
	file := MustLoadDefaultSettings()
	def := DefaultSettings()

	if file.GetHistogramBins() != def.GetHistogramBins() {
		t.Errorf("histogram_bins: file %d, code %d", file.GetHistogramBins(), def.GetHistogramBins())
	}
	if file.GetSigmaExtent() != def.GetSigmaExtent() {
		t.Errorf("sigma_extent: file %f, code %f", file.GetSigmaExtent(), def.GetSigmaExtent())
	}
	if file.GetGaussianPoints() != def.GetGaussianPoints() {
		t.Errorf("gaussian_points: file %d, code %d", file.GetGaussianPoints(), def.GetGaussianPoints())
	}
	if file.GetAnimationSpeed() != def.GetAnimationSpeed() {
		t.Errorf("animation_speed: file %f, code %f", file.GetAnimationSpeed(), def.GetAnimationSpeed())
	}
	if file.GetDisplayTimezone() != def.GetDisplayTimezone() {
		t.Errorf("display_timezone: file %q, code %q", file.GetDisplayTimezone(), def.GetDisplayTimezone())
	}
}

func TestLoadSettingsJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "settings.json")

	testJSON := `{
  "histogram_bins": 20,
  "histogram_mode": "autofit",
  "gaussian_overlay": true,
  "scatter_variable": "speed",
  "schema_overrides": {"truth": {"truth_id": "object_id"}},
  "coordinate_range": {"lat_min": 1, "lat_max": 2, "lon_min": 3, "lon_max": 4}
}`
	if err := os.WriteFile(path, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write settings: %v", err)
	}

	cfg, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if cfg.GetHistogramBins() != 20 {
		t.Errorf("GetHistogramBins() = %d, want 20", cfg.GetHistogramBins())
	}
	if cfg.GetHistogramMode() != histogram.ModeAutofit {
		t.Errorf("GetHistogramMode() = %q, want autofit", cfg.GetHistogramMode())
	}
	if !cfg.GetGaussianOverlay() {
		t.Error("GetGaussianOverlay() = false, want true")
	}
	if cfg.GetScatterVariable() != "speed" {
		t.Errorf("GetScatterVariable() = %q", cfg.GetScatterVariable())
	}
	if got := schema.Resolve(cfg.GetSchemaOverrides(), schema.Truth, schema.TruthID); got != "object_id" {
		t.Errorf("truth_id resolves to %q, want object_id", got)
	}
	if r := cfg.GetCoordinateRange(); r == nil || *r != (bounds.Box{LatMin: 1, LatMax: 2, LonMin: 3, LonMax: 4}) {
		t.Errorf("GetCoordinateRange() = %+v", r)
	}
	// Unset fields fall back to defaults.
	if cfg.GetSigmaExtent() != 4.0 {
		t.Errorf("GetSigmaExtent() = %f, want 4.0", cfg.GetSigmaExtent())
	}
}

func TestLoadSettingsYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "settings.yaml")

	testYAML := `
sigma_extent: 3
unit_gaussian: true
error_units: ft
line_styles: mixed
schema_overrides:
  tracks:
    lat: latitude
`
	if err := os.WriteFile(path, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write settings: %v", err)
	}

	cfg, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if cfg.GetSigmaExtent() != 3 {
		t.Errorf("GetSigmaExtent() = %f, want 3", cfg.GetSigmaExtent())
	}
	if !cfg.GetUnitGaussian() {
		t.Error("GetUnitGaussian() = false, want true")
	}
	if cfg.GetErrorUnits() != "ft" {
		t.Errorf("GetErrorUnits() = %q, want ft", cfg.GetErrorUnits())
	}
	if cfg.GetLineStyles() != "mixed" {
		t.Errorf("GetLineStyles() = %q, want mixed", cfg.GetLineStyles())
	}
	if got := schema.Resolve(cfg.GetSchemaOverrides(), schema.Tracks, schema.Lat); got != "latitude" {
		t.Errorf("lat resolves to %q, want latitude", got)
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", "/nonexistent/path/settings.json"},
		{"wrong extension", write("settings.txt", "{}")},
		{"invalid json", write("bad.json", `{"histogram_bins": "x"`)},
		{"invalid values", write("invalid.json", `{"histogram_mode": "log"}`)},
		{"too large", write("big.json", `{"line_styles": "`+string(make([]byte, maxFileSize))+`"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSettings(tt.path); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Settings
		wantErr bool
	}{
		{"defaults", DefaultSettings(), false},
		{"empty settings", &Settings{}, false},
		{"zero sigma", &Settings{SigmaExtent: ptrFloat64(0)}, true},
		{"unknown mode", &Settings{HistogramMode: ptrString("log")}, true},
		{"negative points", &Settings{GaussianPoints: ptrInt(-1)}, true},
		{"too many points", &Settings{GaussianPoints: ptrInt(histogram.MaxPoints + 1)}, true},
		{"max bins", &Settings{HistogramBins: ptrInt(histogram.MaxBins)}, false},
		{"too many bins", &Settings{HistogramBins: ptrInt(histogram.MaxBins + 1)}, true},
		{"unknown scatter variable", &Settings{ScatterVariable: ptrString("heading")}, true},
		{"empty scatter variable", &Settings{ScatterVariable: ptrString("")}, false},
		{"zero speed", &Settings{AnimationSpeed: ptrFloat64(0)}, true},
		{"unknown error units", &Settings{ErrorUnits: ptrString("mph")}, true},
		{"unknown speed units", &Settings{SpeedUnits: ptrString("ft")}, true},
		{"unknown line styles", &Settings{LineStyles: ptrString("dotted")}, true},
		{"unknown timezone", &Settings{DisplayTimezone: ptrString("Mars/Olympus")}, true},
		{"unknown schema role", &Settings{SchemaOverrides: schema.Mapping{"radar": {"lat": "y"}}}, true},
		{"inverted range", &Settings{CoordinateRange: &bounds.Box{LatMin: 2, LatMax: 1, LonMin: 0, LonMax: 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGettersOnNil(t *testing.T) {
	var cfg *Settings
	if cfg.GetHistogramBins() != histogram.DefaultBins {
		t.Errorf("GetHistogramBins() = %d", cfg.GetHistogramBins())
	}
	if cfg.GetGaussianPoints() != histogram.DefaultPoints {
		t.Errorf("GetGaussianPoints() = %d", cfg.GetGaussianPoints())
	}
	if cfg.GetCoordinateRange() != nil || cfg.GetSchemaOverrides() != nil {
		t.Error("expected nil overrides")
	}
	if cfg.GetBestFitGaussian() {
		t.Error("GetBestFitGaussian() = true on nil settings")
	}
}

func TestMerge(t *testing.T) {
	base := DefaultSettings()
	base.SchemaOverrides = schema.Mapping{schema.Tracks: {schema.Lat: "y"}}
	over := &Settings{
		HistogramBins:   ptrInt(9),
		BestFitGaussian: ptrBool(true),
		SchemaOverrides: schema.Mapping{schema.Tracks: {schema.Lon: "x"}},
	}

	got := base.Merge(over)
	if got.GetHistogramBins() != 9 || !got.GetBestFitGaussian() {
		t.Errorf("Merge() did not apply overrides: %+v", got)
	}
	if got.GetSigmaExtent() != 4.0 {
		t.Errorf("Merge() lost base sigma_extent")
	}
	if schema.Resolve(got.SchemaOverrides, schema.Tracks, schema.Lat) != "y" ||
		schema.Resolve(got.SchemaOverrides, schema.Tracks, schema.Lon) != "x" {
		t.Errorf("Merge() schema = %v", got.SchemaOverrides)
	}
	if *base.HistogramBins != 41 {
		t.Error("Merge() mutated the receiver")
	}
	if base.Merge(nil).GetHistogramBins() != 41 {
		t.Error("Merge(nil) should copy the receiver")
	}
}
