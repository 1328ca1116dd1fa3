// Package histogram computes bin edges and statistical overlays for error
// histograms.
package histogram

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/trackreview/internal/review"
)

const (
	// DefaultBins replaces a non-positive bin request.
	DefaultBins = 41
	// MaxBins caps a bin request.
	MaxBins = 10001
	// DefaultPoints is the sample count of a Gaussian overlay curve.
	DefaultPoints = 200
	// MaxPoints caps the sample count of an overlay curve.
	MaxPoints = 10000
	// MinSigma and MaxSigma bound the sigma extent.
	MinSigma = 1.0
	MaxSigma = 8.0
	// AutofitPad is the fraction of the data range added on each side.
	AutofitPad = 0.05
)

// Mode selects how the histogram window is chosen.
type Mode string

const (
	// ModeSigma spans mean ± k·std.
	ModeSigma Mode = "sigma"
	// ModeAutofit spans the data range plus padding.
	ModeAutofit Mode = "autofit"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSigma, ModeAutofit:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown histogram mode %q (want sigma or autofit)", s)
}

// Result is the binning of one value set. Len(Edges) == Bins+1. Std is the
// population standard deviation, replaced by 1 when all values are equal.
type Result struct {
	Edges []float64
	Mean  float64
	Std   float64
	Bins  int
	Left  float64
	Right float64
	N     int
}

// BinWidth returns the width of one bin.
func (r Result) BinWidth() float64 {
	if r.Bins <= 0 {
		return 0
	}
	return (r.Right - r.Left) / float64(r.Bins)
}

// OddBins normalises a requested bin count: non-positive becomes
// DefaultBins, anything above MaxBins becomes MaxBins and an even count is
// bumped to the next odd one.
func OddBins(n int) int {
	if n <= 0 {
		n = DefaultBins
	}
	if n > MaxBins {
		n = MaxBins
	}
	if n%2 == 0 {
		n++
	}
	return n
}

// ClampSigma bounds a sigma extent to [MinSigma, MaxSigma].
func ClampSigma(k float64) float64 {
	if math.IsNaN(k) {
		return MinSigma
	}
	return math.Max(MinSigma, math.Min(MaxSigma, k))
}

// Finite returns the values that are neither NaN nor infinite.
func Finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Build bins values. Non-finite values are ignored; with none left the
// result is ErrMalformedHistogram.
func Build(values []float64, binsRequested int, sigmaExtent float64, mode Mode) (Result, error) {
	x := Finite(values)
	bins := OddBins(binsRequested)
	if len(x) == 0 {
		return Result{Bins: bins}, fmt.Errorf("%w: no finite values", review.ErrMalformedHistogram)
	}

	mean, std := stat.PopMeanStdDev(x, nil)
	rawStd := std
	if std == 0 {
		std = 1
	}

	var left, right float64
	switch mode {
	case ModeAutofit:
		lo, hi := floats.Min(x), floats.Max(x)
		if hi > lo {
			pad := AutofitPad * (hi - lo)
			left, right = lo-pad, hi+pad
		} else {
			w := rawStd
			if w == 0 {
				w = 1
			}
			left, right = lo-w, hi+w
		}
	default:
		k := ClampSigma(sigmaExtent)
		left, right = mean-k*std, mean+k*std
	}

	edges := floats.Span(make([]float64, bins+1), left, right)
	return Result{
		Edges: edges,
		Mean:  mean,
		Std:   std,
		Bins:  bins,
		Left:  left,
		Right: right,
		N:     len(x),
	}, nil
}

// CountScale is the factor that turns a unit PDF into expected bin counts.
func CountScale(n int, binWidth float64) float64 {
	return float64(n) * binWidth
}

// GaussianOverlay samples scale·N(mean, std) at n points across
// [left, right]. It returns nil when std is not positive.
func GaussianOverlay(left, right, mean, std float64, n int, scale float64) (x, y []float64) {
	if !(std > 0) || !(right > left) {
		return nil, nil
	}
	if n < 2 {
		n = DefaultPoints
	}
	dist := distuv.Normal{Mu: mean, Sigma: std}
	x = floats.Span(make([]float64, n), left, right)
	y = make([]float64, n)
	for i, xi := range x {
		y[i] = dist.Prob(xi) * scale
	}
	return x, y
}

// OverlayKind names the Gaussian overlay variants offered to the user.
type OverlayKind string

const (
	// Gaussian is scaled to bin counts.
	Gaussian OverlayKind = "Gaussian"
	// UnitGaussian is the bare PDF.
	UnitGaussian OverlayKind = "Unit Gaussian"
	// BestFitGaussian is the bare PDF under its own toggle.
	BestFitGaussian OverlayKind = "Best Fit Gaussian"
)

// Scale returns the PDF multiplier for an overlay kind.
func (k OverlayKind) Scale(r Result) float64 {
	if k == Gaussian {
		return CountScale(r.N, r.BinWidth())
	}
	return 1
}

// Overlay samples the overlay curve of kind k for a built histogram.
func Overlay(k OverlayKind, r Result, points int) (x, y []float64) {
	return GaussianOverlay(r.Left, r.Right, r.Mean, r.Std, points, k.Scale(r))
}

// binOf returns the bin of v for ascending edges, or -1 outside the window.
// The last bin includes its right edge.
func binOf(v float64, edges []float64) int {
	n := len(edges) - 1
	if n < 1 || math.IsNaN(v) || v < edges[0] || v > edges[n] {
		return -1
	}
	if v == edges[n] {
		return n - 1
	}
	i := sort.SearchFloat64s(edges, v)
	if i < len(edges) && edges[i] == v {
		return i
	}
	return i - 1
}

// Centers returns the midpoint of each bin.
func Centers(edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	out := make([]float64, len(edges)-1)
	for i := range out {
		out[i] = (edges[i] + edges[i+1]) / 2
	}
	return out
}

// Counts bins values into edges. Values outside the window are not counted.
func Counts(values, edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	out := make([]float64, len(edges)-1)
	for _, v := range values {
		if b := binOf(v, edges); b >= 0 {
			out[b]++
		}
	}
	return out
}

// ScatterOverlay bins errors into edges and averages the paired aux values
// per bin. Bins without a usable pair are NaN so renderers can skip them.
func ScatterOverlay(errors, aux, edges []float64) (centers, means []float64) {
	centers = Centers(edges)
	if centers == nil {
		return nil, nil
	}
	sums := make([]float64, len(centers))
	counts := make([]int, len(centers))
	n := len(errors)
	if len(aux) < n {
		n = len(aux)
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(aux[i]) {
			continue
		}
		if b := binOf(errors[i], edges); b >= 0 {
			sums[b] += aux[i]
			counts[b]++
		}
	}
	means = make([]float64, len(centers))
	for i := range means {
		if counts[i] == 0 {
			means[i] = math.NaN()
			continue
		}
		means[i] = sums[i] / float64(counts[i])
	}
	return centers, means
}
