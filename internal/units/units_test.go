package units

import (
	"math"
	"testing"
	"time"
)

func TestConvertDistance(t *testing.T) {
	tests := []struct {
		name     string
		metres   float64
		units    string
		expected float64
	}{
		{"1 m to ft", 1.0, Feet, 3.28084},
		{"1500 m to km", 1500.0, Kilometres, 1.5},
		{"1852 m to nmi", 1852.0, NauticalMiles, 1.0},
		{"m is identity", 12.5, Metres, 12.5},
		{"unknown units default to m", 10.0, "furlong", 10.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertDistance(tt.metres, tt.units)
			if math.Abs(result-tt.expected) > 1e-4 {
				t.Errorf("ConvertDistance(%f, %s) = %f, want %f", tt.metres, tt.units, result, tt.expected)
			}
		})
	}
}

func TestConvertDistances(t *testing.T) {
	got := ConvertDistances([]float64{1000, 2000}, Kilometres)
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("ConvertDistances() = %v, want [1 2]", got)
	}
	in := []float64{3}
	if out := ConvertDistances(in, "bogus"); out[0] != 3 {
		t.Errorf("ConvertDistances() with unknown unit changed values: %v", out)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		unit     string
		expected bool
	}{
		{Metres, true},
		{Feet, true},
		{Kilometres, true},
		{NauticalMiles, true},
		{"M", false},
		{"", false},
		{MPH, false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.unit); got != tt.expected {
			t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
		}
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "m, ft, km, nmi" {
		t.Errorf("GetValidUnitsString() = %q", got)
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		units    string
		expected float64
	}{
		{"10 m/s to mph", 10.0, MPH, 22.3694},
		{"10 m/s to kmph", 10.0, KMPH, 36.0},
		{"10 m/s to kph", 10.0, KPH, 36.0},
		{"10 m/s to mps", 10.0, MPS, 10.0},
		{"unknown units default to mps", 10.0, "unknown", 10.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertSpeed(tt.speedMPS, tt.units)
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("ConvertSpeed(%f, %s) = %f, want %f", tt.speedMPS, tt.units, result, tt.expected)
			}
		})
	}
	if !IsValidSpeed(KPH) || IsValidSpeed(Feet) {
		t.Error("IsValidSpeed mismatch")
	}
	if SpeedLabel(KMPH) != "km/h" || SpeedLabel("") != "m/s" {
		t.Error("SpeedLabel mismatch")
	}
}

func TestTimezones(t *testing.T) {
	if IsTimezoneValid("") {
		t.Error("empty timezone should be invalid")
	}
	if !IsTimezoneValid("UTC") {
		t.Error("UTC should be valid")
	}
	if IsTimezoneValid("Not/AZone") {
		t.Error("bogus timezone should be invalid")
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 250_000_000, time.UTC)
	if got := FormatFrameTime(ts, ""); got != "2026-03-01 12:00:00.250 UTC" {
		t.Errorf("FormatFrameTime() = %q", got)
	}
	if got := FormatFrameTime(ts, "Not/AZone"); got != "2026-03-01 12:00:00.250 UTC" {
		t.Errorf("FormatFrameTime() fallback = %q", got)
	}
	if _, err := ConvertTime(ts, "Not/AZone"); err == nil {
		t.Error("expected error for bogus timezone")
	}
}
