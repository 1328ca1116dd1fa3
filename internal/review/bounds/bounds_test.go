package bounds

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute_Empty(t *testing.T) {
	_, ok := Compute(nil, nil, nil)
	assert.False(t, ok)

	_, ok = Compute([]float64{math.NaN()}, []float64{1}, nil)
	assert.False(t, ok)
}

func TestCompute_Override(t *testing.T) {
	o := Box{LatMin: 1, LatMax: 2, LonMin: 10, LonMax: 30}
	got, ok := Compute([]float64{50}, []float64{60}, &o)
	assert.True(t, ok)
	assert.Equal(t, o, got)
}

func TestCompute_PadsLargerSpan(t *testing.T) {
	got, ok := Compute([]float64{40, 41}, []float64{-74, -73.5}, nil)
	assert.True(t, ok)
	assert.InDelta(t, 1.05, got.LatSpan(), 1e-12)
	assert.InDelta(t, 1.05, got.LonSpan(), 1e-12)
	assert.InDelta(t, 40.5, (got.LatMin+got.LatMax)/2, 1e-12)
	assert.InDelta(t, -73.75, (got.LonMin+got.LonMax)/2, 1e-12)
}

func TestCompute_SinglePoint(t *testing.T) {
	got, ok := Compute([]float64{40}, []float64{-74}, nil)
	assert.True(t, ok)
	assert.InDelta(t, MinSpan*Padding, got.LatSpan(), 1e-12)
	assert.True(t, got.Square(1e-12))
}

func TestCompute_AlwaysSquare(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(50)
		lats := make([]float64, n)
		lons := make([]float64, n)
		for j := range lats {
			lats[j] = -80 + 160*rng.Float64()
			lons[j] = -179 + 358*rng.Float64()*rng.Float64()
		}
		got, ok := Compute(lats, lons, nil)
		if !ok {
			t.Fatalf("iteration %d: expected bounds", i)
		}
		if !got.Square(1e-9) {
			t.Fatalf("iteration %d: expected square box, got %+v", i, got)
		}
	}
}
