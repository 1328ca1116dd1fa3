package testutil

import (
	"math"
	"net/http"
	"testing"
)

func TestFloatsClose(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want bool
	}{
		{"equal", []float64{1, 2}, []float64{1, 2}, true},
		{"within tolerance", []float64{1, 2}, []float64{1.0001, 2}, true},
		{"outside tolerance", []float64{1}, []float64{1.1}, false},
		{"length mismatch", []float64{1}, []float64{1, 2}, false},
		{"nan matches nan", []float64{math.NaN()}, []float64{math.NaN()}, true},
		{"nan vs number", []float64{math.NaN()}, []float64{0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FloatsClose(tt.a, tt.b, 1e-3); got != tt.want {
				t.Errorf("FloatsClose(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAllFinite(t *testing.T) {
	if !AllFinite([]float64{0, 1}) {
		t.Error("AllFinite() = false for finite values")
	}
	if AllFinite([]float64{1, math.Inf(1)}) {
		t.Error("AllFinite() = true with +Inf")
	}
}

func TestNewTestRequest(t *testing.T) {
	req := NewTestRequest(http.MethodGet, "/health")
	if req.Method != http.MethodGet || req.URL.Path != "/health" {
		t.Errorf("request = %s %s", req.Method, req.URL.Path)
	}
	rec := NewTestRecorder()
	rec.WriteHeader(http.StatusTeapot)
	AssertStatusCode(t, rec.Code, http.StatusTeapot)
}

func TestTwoTrackDataset(t *testing.T) {
	ds := TwoTrackDataset()
	if ds.Tracks.Len() != 8 || ds.Truth.Len() != 4 || ds.Detections.Len() != 4 {
		t.Fatalf("unexpected fixture sizes %d/%d/%d", ds.Tracks.Len(), ds.Truth.Len(), ds.Detections.Len())
	}
	ts, err := ds.Tracks.Time("timestamp", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := ts.Unix(); got != int64(Base)+1 {
		t.Errorf("timestamp = %d, want %d", got, int64(Base)+1)
	}
	if EmptyDataset("e").Tracks.Len() != 0 {
		t.Error("EmptyDataset() has rows")
	}
}
