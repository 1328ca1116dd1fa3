package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/trackreview/internal/review/bounds"
	"github.com/banshee-data/trackreview/internal/review/histogram"
	"github.com/banshee-data/trackreview/internal/review/schema"
	"github.com/banshee-data/trackreview/internal/units"
)

// DefaultSettingsPath is the path to the canonical review defaults file.
const DefaultSettingsPath = "config/review.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Scatter variables that can be averaged per histogram bin.
var ScatterVariables = []string{"lat", "lon", "alt", "speed"}

// Settings holds the user-facing plot settings. Every field is optional;
// the Get* methods supply the default for anything left unset, so a
// partial file is safe.
type Settings struct {
	// Histogram params
	HistogramBins   *int     `json:"histogram_bins,omitempty" yaml:"histogram_bins,omitempty"`
	SigmaExtent     *float64 `json:"sigma_extent,omitempty" yaml:"sigma_extent,omitempty"`
	HistogramMode   *string  `json:"histogram_mode,omitempty" yaml:"histogram_mode,omitempty"`
	GaussianOverlay *bool    `json:"gaussian_overlay,omitempty" yaml:"gaussian_overlay,omitempty"`
	UnitGaussian    *bool    `json:"unit_gaussian,omitempty" yaml:"unit_gaussian,omitempty"`
	BestFitGaussian *bool    `json:"best_fit_gaussian,omitempty" yaml:"best_fit_gaussian,omitempty"`
	GaussianPoints  *int     `json:"gaussian_points,omitempty" yaml:"gaussian_points,omitempty"`
	ScatterVariable *string  `json:"scatter_variable,omitempty" yaml:"scatter_variable,omitempty"`

	// Display params
	AnimationSpeed  *float64 `json:"animation_speed,omitempty" yaml:"animation_speed,omitempty"`
	ErrorUnits      *string  `json:"error_units,omitempty" yaml:"error_units,omitempty"`
	SpeedUnits      *string  `json:"speed_units,omitempty" yaml:"speed_units,omitempty"`
	LineStyles      *string  `json:"line_styles,omitempty" yaml:"line_styles,omitempty"`
	DisplayTimezone *string  `json:"display_timezone,omitempty" yaml:"display_timezone,omitempty"`

	// Data params
	SchemaOverrides schema.Mapping `json:"schema_overrides,omitempty" yaml:"schema_overrides,omitempty"`
	CoordinateRange *bounds.Box    `json:"coordinate_range,omitempty" yaml:"coordinate_range,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySettings returns Settings with all fields unset.
func EmptySettings() *Settings {
	return &Settings{}
}

// DefaultSettings returns Settings with every field set to its default.
func DefaultSettings() *Settings {
	return &Settings{
		HistogramBins:   ptrInt(histogram.DefaultBins),
		SigmaExtent:     ptrFloat64(4.0),
		HistogramMode:   ptrString(string(histogram.ModeSigma)),
		GaussianOverlay: ptrBool(false),
		UnitGaussian:    ptrBool(false),
		BestFitGaussian: ptrBool(false),
		GaussianPoints:  ptrInt(histogram.DefaultPoints),
		ScatterVariable: ptrString(""),
		AnimationSpeed:  ptrFloat64(1.0),
		ErrorUnits:      ptrString(units.Metres),
		SpeedUnits:      ptrString(units.MPS),
		LineStyles:      ptrString("solid"),
		DisplayTimezone: ptrString("UTC"),
	}
}

// LoadSettings loads Settings from a JSON or YAML file.
// The file is validated to ensure it has a known extension and is under the max file size.
func LoadSettings(path string) (*Settings, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("settings file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat settings file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("settings file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	cfg := EmptySettings()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultSettings loads DefaultSettingsPath, searching upwards from
// the current directory. Panics if the file cannot be loaded, intended for
// test setup.
func MustLoadDefaultSettings() *Settings {
	candidates := []string{
		DefaultSettingsPath,
		"../../" + DefaultSettingsPath,
		"../../../" + DefaultSettingsPath,
		"../../../../" + DefaultSettingsPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadSettings(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultSettingsPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (s *Settings) Validate() error {
	if s.HistogramBins != nil && *s.HistogramBins > histogram.MaxBins {
		return fmt.Errorf("histogram_bins must be at most %d, got %d", histogram.MaxBins, *s.HistogramBins)
	}
	if s.SigmaExtent != nil && *s.SigmaExtent <= 0 {
		return fmt.Errorf("sigma_extent must be positive, got %f", *s.SigmaExtent)
	}
	if s.HistogramMode != nil && *s.HistogramMode != "" {
		if _, err := histogram.ParseMode(*s.HistogramMode); err != nil {
			return err
		}
	}
	if s.GaussianPoints != nil && (*s.GaussianPoints < 0 || *s.GaussianPoints > histogram.MaxPoints) {
		return fmt.Errorf("gaussian_points must be in [0, %d], got %d", histogram.MaxPoints, *s.GaussianPoints)
	}
	if s.ScatterVariable != nil && *s.ScatterVariable != "" && !isScatterVariable(*s.ScatterVariable) {
		return fmt.Errorf("scatter_variable must be one of %s, got %q", strings.Join(ScatterVariables, ", "), *s.ScatterVariable)
	}
	if s.AnimationSpeed != nil && *s.AnimationSpeed <= 0 {
		return fmt.Errorf("animation_speed must be positive, got %f", *s.AnimationSpeed)
	}
	if s.ErrorUnits != nil && !units.IsValid(*s.ErrorUnits) {
		return fmt.Errorf("error_units must be one of %s, got %q", units.GetValidUnitsString(), *s.ErrorUnits)
	}
	if s.SpeedUnits != nil && !units.IsValidSpeed(*s.SpeedUnits) {
		return fmt.Errorf("invalid speed_units %q", *s.SpeedUnits)
	}
	if s.LineStyles != nil {
		switch *s.LineStyles {
		case "solid", "dashed", "mixed":
		default:
			return fmt.Errorf("line_styles must be solid, dashed or mixed, got %q", *s.LineStyles)
		}
	}
	if s.DisplayTimezone != nil && *s.DisplayTimezone != "" && !units.IsTimezoneValid(*s.DisplayTimezone) {
		return fmt.Errorf("invalid display_timezone %q", *s.DisplayTimezone)
	}
	if err := s.SchemaOverrides.Validate(); err != nil {
		return fmt.Errorf("invalid schema_overrides: %w", err)
	}
	if r := s.CoordinateRange; r != nil && (r.LatMin >= r.LatMax || r.LonMin >= r.LonMax) {
		return fmt.Errorf("coordinate_range must have min < max on both axes")
	}
	return nil
}

func isScatterVariable(v string) bool {
	for _, s := range ScatterVariables {
		if s == v {
			return true
		}
	}
	return false
}

// Merge returns a copy of s with every field set in o layered on top.
func (s *Settings) Merge(o *Settings) *Settings {
	out := *s
	if o == nil {
		return &out
	}
	if o.HistogramBins != nil {
		out.HistogramBins = o.HistogramBins
	}
	if o.SigmaExtent != nil {
		out.SigmaExtent = o.SigmaExtent
	}
	if o.HistogramMode != nil {
		out.HistogramMode = o.HistogramMode
	}
	if o.GaussianOverlay != nil {
		out.GaussianOverlay = o.GaussianOverlay
	}
	if o.UnitGaussian != nil {
		out.UnitGaussian = o.UnitGaussian
	}
	if o.BestFitGaussian != nil {
		out.BestFitGaussian = o.BestFitGaussian
	}
	if o.GaussianPoints != nil {
		out.GaussianPoints = o.GaussianPoints
	}
	if o.ScatterVariable != nil {
		out.ScatterVariable = o.ScatterVariable
	}
	if o.AnimationSpeed != nil {
		out.AnimationSpeed = o.AnimationSpeed
	}
	if o.ErrorUnits != nil {
		out.ErrorUnits = o.ErrorUnits
	}
	if o.SpeedUnits != nil {
		out.SpeedUnits = o.SpeedUnits
	}
	if o.LineStyles != nil {
		out.LineStyles = o.LineStyles
	}
	if o.DisplayTimezone != nil {
		out.DisplayTimezone = o.DisplayTimezone
	}
	if o.SchemaOverrides != nil {
		out.SchemaOverrides = s.SchemaOverrides.Merge(o.SchemaOverrides)
	}
	if o.CoordinateRange != nil {
		r := *o.CoordinateRange
		out.CoordinateRange = &r
	}
	return &out
}

// GetHistogramBins returns the requested bin count or the default. The
// histogram builder still forces it odd.
func (s *Settings) GetHistogramBins() int {
	if s == nil || s.HistogramBins == nil || *s.HistogramBins <= 0 {
		return histogram.DefaultBins
	}
	return *s.HistogramBins
}

// GetSigmaExtent returns the sigma_extent value or the default.
func (s *Settings) GetSigmaExtent() float64 {
	if s == nil || s.SigmaExtent == nil {
		return 4.0
	}
	return *s.SigmaExtent
}

// GetHistogramMode returns the histogram window mode, defaulting to sigma.
func (s *Settings) GetHistogramMode() histogram.Mode {
	if s == nil || s.HistogramMode == nil {
		return histogram.ModeSigma
	}
	m, err := histogram.ParseMode(*s.HistogramMode)
	if err != nil {
		return histogram.ModeSigma
	}
	return m
}

// GetGaussianOverlay returns the gaussian_overlay value or the default.
func (s *Settings) GetGaussianOverlay() bool {
	return s != nil && s.GaussianOverlay != nil && *s.GaussianOverlay
}

// GetUnitGaussian returns the unit_gaussian value or the default.
func (s *Settings) GetUnitGaussian() bool {
	return s != nil && s.UnitGaussian != nil && *s.UnitGaussian
}

// GetBestFitGaussian returns the best_fit_gaussian value or the default.
func (s *Settings) GetBestFitGaussian() bool {
	return s != nil && s.BestFitGaussian != nil && *s.BestFitGaussian
}

// GetGaussianPoints returns the overlay sample count or the default.
func (s *Settings) GetGaussianPoints() int {
	if s == nil || s.GaussianPoints == nil || *s.GaussianPoints < 2 {
		return histogram.DefaultPoints
	}
	return min(*s.GaussianPoints, histogram.MaxPoints)
}

// GetScatterVariable returns the scatter overlay variable, "" for none.
func (s *Settings) GetScatterVariable() string {
	if s == nil || s.ScatterVariable == nil {
		return ""
	}
	return *s.ScatterVariable
}

// GetAnimationSpeed returns the animation_speed value or the default.
func (s *Settings) GetAnimationSpeed() float64 {
	if s == nil || s.AnimationSpeed == nil {
		return 1.0
	}
	return *s.AnimationSpeed
}

// GetErrorUnits returns the distance unit for error axes.
func (s *Settings) GetErrorUnits() string {
	if s == nil || s.ErrorUnits == nil {
		return units.Metres
	}
	return *s.ErrorUnits
}

// GetSpeedUnits returns the unit for the speed scatter variable.
func (s *Settings) GetSpeedUnits() string {
	if s == nil || s.SpeedUnits == nil {
		return units.MPS
	}
	return *s.SpeedUnits
}

// GetLineStyles returns the line style variant for multi-series plots.
func (s *Settings) GetLineStyles() string {
	if s == nil || s.LineStyles == nil {
		return "solid"
	}
	return *s.LineStyles
}

// GetDisplayTimezone returns the timezone used for frame labels.
func (s *Settings) GetDisplayTimezone() string {
	if s == nil || s.DisplayTimezone == nil || *s.DisplayTimezone == "" {
		return "UTC"
	}
	return *s.DisplayTimezone
}

// GetSchemaOverrides returns the configured schema overrides (may be nil).
func (s *Settings) GetSchemaOverrides() schema.Mapping {
	if s == nil {
		return nil
	}
	return s.SchemaOverrides
}

// GetCoordinateRange returns the bounds override, nil for auto.
func (s *Settings) GetCoordinateRange() *bounds.Box {
	if s == nil {
		return nil
	}
	return s.CoordinateRange
}
