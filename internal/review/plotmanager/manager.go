// Package plotmanager runs a named formatter, validates what it produced
// and hands the result to a render backend.
package plotmanager

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/formatter"
	"github.com/banshee-data/trackreview/internal/review/plotconfig"
	"github.com/banshee-data/trackreview/internal/review/render"
)

// Reasons a formatter is unavailable.
const (
	ReasonNoDatasets   = "No datasets available"
	ReasonNoFocus      = "No focus dataset selected"
	ReasonFocusMissing = "Focus dataset not loaded"
)

// Availability reports whether a formatter can run against a state.
type Availability struct {
	formatter.Info
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// Manager prepares and renders plots by formatter name.
type Manager struct {
	registry *formatter.Registry

	mu      sync.RWMutex
	backend render.Backend
}

// New returns a manager over registry rendering with backend. A nil
// registry means the built-in formatters.
func New(registry *formatter.Registry, backend render.Backend) *Manager {
	if registry == nil {
		registry = formatter.Default()
	}
	return &Manager{registry: registry, backend: backend}
}

// Registry returns the formatter registry.
func (m *Manager) Registry() *formatter.Registry { return m.registry }

// Backend returns the active render backend.
func (m *Manager) Backend() render.Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}

// SetBackend swaps the render backend.
func (m *Manager) SetBackend(b render.Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backend = b
}

// Prepare runs the named formatter and validates its output. An unknown
// name yields an empty config titled with the name.
func (m *Manager) Prepare(name string, state *formatter.State, ctx formatter.Context) plotconfig.PlotConfig {
	fn, ok := m.registry.Get(name)
	if !ok {
		review.Opsf("plotmanager: unknown formatter %q", name)
		return plotconfig.Empty(name)
	}
	return Validate(fn(state, ctx))
}

// Render prepares the named plot and renders it with the active backend.
func (m *Manager) Render(w io.Writer, name string, state *formatter.State, ctx formatter.Context) (plotconfig.PlotConfig, error) {
	cfg := m.Prepare(name, state, ctx)
	b := m.Backend()
	if b == nil {
		return cfg, fmt.Errorf("failed to render %s: no backend configured", name)
	}
	if err := b.Render(w, cfg); err != nil {
		return cfg, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return cfg, nil
}

// Available lists every registered formatter with whether it can run.
func (m *Manager) Available(state *formatter.State) []Availability {
	names := m.registry.Names()
	out := make([]Availability, 0, len(names))
	for _, name := range names {
		info, _ := m.registry.Info(name)
		a := Availability{Info: info, Enabled: true}
		if reason := disabledReason(info, state); reason != "" {
			a.Enabled, a.Reason = false, reason
		}
		out = append(out, a)
	}
	return out
}

func disabledReason(info formatter.Info, state *formatter.State) string {
	if state == nil || len(state.Datasets) == 0 {
		if info.RequiresFocus || info.RequiresDatasets {
			return ReasonNoDatasets
		}
		return ""
	}
	if !info.RequiresFocus {
		return ""
	}
	if state.Focus == "" {
		return ReasonNoFocus
	}
	if _, ok := state.FocusDataset(); !ok {
		return ReasonFocusMissing
	}
	return ""
}

// Validate drops entries a backend cannot draw: histograms without values
// or edges, overlays whose x and y differ in length or hold no finite
// point, and series that do not match X. Each drop is logged.
func Validate(cfg plotconfig.PlotConfig) plotconfig.PlotConfig {
	out := cfg

	if len(cfg.Histograms) > 0 {
		out.Histograms = make([]plotconfig.Histogram, 0, len(cfg.Histograms))
		for i, h := range cfg.Histograms {
			if len(h.Values) == 0 || len(h.Edges) < 2 {
				review.Diagf("plotmanager: %s: histogram %d dropped: %v", cfg.Title, i, review.ErrMalformedHistogram)
				continue
			}
			out.Histograms = append(out.Histograms, h)
		}
	}

	if len(cfg.Overlays) > 0 {
		out.Overlays = make([]plotconfig.Overlay, 0, len(cfg.Overlays))
		for i, o := range cfg.Overlays {
			if len(o.X) != len(o.Y) || !anyFinite(o.Y) {
				review.Diagf("plotmanager: %s: overlay %d (%s) dropped", cfg.Title, i, o.Style.Label)
				continue
			}
			out.Overlays = append(out.Overlays, o)
		}
	}

	if len(cfg.Series) > 0 {
		out.Series = make([]plotconfig.Series, 0, len(cfg.Series))
		for _, s := range cfg.Series {
			if len(s.Values) != len(cfg.X) || !anyFinite(s.Values) {
				review.Diagf("plotmanager: %s: series %q dropped", cfg.Title, s.Name)
				continue
			}
			out.Series = append(out.Series, s)
		}
	}

	if out.IsEmpty() && !cfg.IsEmpty() {
		return plotconfig.Empty(cfg.Title)
	}
	return out
}

func anyFinite(v []float64) bool {
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			return true
		}
	}
	return false
}
