// Package formatter holds the registry of named plot formatters. A formatter
// turns the loaded datasets and the current selection into a PlotConfig. It
// reads datasets without modifying them and never panics; on failure it
// returns an empty config whose title says no data is available.
package formatter

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/banshee-data/trackreview/internal/config"
	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/plotconfig"
	"github.com/banshee-data/trackreview/internal/review/selection"
)

// State is the read-only snapshot of loaded datasets a formatter works on.
type State struct {
	Datasets map[string]*review.Dataset
	Focus    string
}

// NewState indexes datasets by name and focuses the first one.
func NewState(datasets ...*review.Dataset) *State {
	s := &State{Datasets: make(map[string]*review.Dataset, len(datasets))}
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		if s.Focus == "" {
			s.Focus = ds.Name
		}
		s.Datasets[ds.Name] = ds
	}
	return s
}

// FocusDataset returns the focused dataset if it is loaded.
func (s *State) FocusDataset() (*review.Dataset, bool) {
	if s == nil || s.Focus == "" {
		return nil, false
	}
	ds, ok := s.Datasets[s.Focus]
	return ds, ok && ds != nil
}

// Names returns the dataset names in sorted order.
func (s *State) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Datasets))
	for name := range s.Datasets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Selector reports the user's current selection. ok=false means no
// selection context exists; an empty list means nothing is selected.
type Selector interface {
	SelectedTracks() (ids []string, ok bool)
	SelectedTruth() (ids []string, ok bool)
}

// StaticSelection is a fixed Selector. A nil list means no context.
type StaticSelection struct {
	Tracks []string
	Truth  []string
}

// SelectAll selects every track and truth object.
func SelectAll() StaticSelection {
	return StaticSelection{Tracks: []string{selection.TokenAll}, Truth: []string{selection.TokenAll}}
}

// SelectedTracks implements Selector.
func (s StaticSelection) SelectedTracks() ([]string, bool) { return s.Tracks, s.Tracks != nil }

// SelectedTruth implements Selector.
func (s StaticSelection) SelectedTruth() ([]string, bool) { return s.Truth, s.Truth != nil }

// Context carries the selection and display settings for one invocation.
// Frame is the animation frame index; negative selects the last frame.
type Context struct {
	Selector Selector
	Settings *config.Settings
	Frame    int
}

// Tracks returns the track selection, or false without a selection context.
func (c Context) Tracks() (selection.Spec, bool) {
	if c.Selector == nil {
		return selection.None(), false
	}
	return selection.FromContext(c.Selector.SelectedTracks())
}

// Truth returns the truth selection, or false without a selection context.
func (c Context) Truth() (selection.Spec, bool) {
	if c.Selector == nil {
		return selection.None(), false
	}
	return selection.FromContext(c.Selector.SelectedTruth())
}

// Func builds a plot config. Implementations must not modify state.
type Func func(state *State, ctx Context) plotconfig.PlotConfig

// Info describes a registered formatter for listings. RequiresFocus
// formatters need a loaded focus dataset; RequiresDatasets formatters need
// at least one loaded dataset.
type Info struct {
	Name             string `json:"name"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	RequiresFocus    bool   `json:"requires_focus"`
	RequiresDatasets bool   `json:"requires_datasets"`
}

type entry struct {
	info Info
	fn   Func
}

// Registry maps formatter names to functions.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds or replaces a formatter. The function is wrapped so that a
// panic inside it yields an empty config titled info.Title.
func (r *Registry) Register(info Info, fn Func) {
	if info.Title == "" {
		info.Title = info.Name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[info.Name] = entry{info: info, fn: guard(info.Name, info.Title, fn)}
}

// Get returns the named formatter.
func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.fn, ok
}

// Info returns the description of the named formatter.
func (r *Registry) Info(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.info, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func guard(name, title string, fn Func) Func {
	return func(state *State, ctx Context) (cfg plotconfig.PlotConfig) {
		defer func() {
			if rec := recover(); rec != nil {
				review.Opsf("formatter %s: recovered: %v", name, rec)
				review.Tracef("formatter %s: %s", name, debug.Stack())
				cfg = plotconfig.Empty(title)
			}
		}()
		return fn(state, ctx)
	}
}

// Formatter names.
const (
	NorthEastError     = "north_east_error"
	RMSError3D         = "rms_error_3d"
	NorthEastPerTrack  = "north_east_per_track"
	TracksLatLon       = "tracks_lat_lon"
	NorthErrorHist     = "north_error_histogram"
	EastErrorHist      = "east_error_histogram"
	RMSErrorHist       = "rms_error_histogram"
	LatLonScatter      = "lat_lon_scatter"
	LatLonAnimation    = "lat_lon_animation"
	TrackTruthLifetime = "track_truth_lifetime"
	TrackCounts        = "track_counts"
	ErrorStatistics    = "error_statistics"
)

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry of built-in formatters.
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		r.Register(Info{Name: NorthEastError, Title: titleNorthEast, Description: "North and east position errors over time", RequiresFocus: true}, northEastError)
		r.Register(Info{Name: RMSError3D, Title: titleRMS3D, Description: "3D position error magnitude over time", RequiresFocus: true}, rmsError3D)
		r.Register(Info{Name: NorthEastPerTrack, Title: titlePerTrack, Description: "North and east errors per track on a shared time axis", RequiresFocus: true}, northEastPerTrack)
		r.Register(Info{Name: TracksLatLon, Title: titleTracksLatLon, Description: "Track latitude and longitude over time", RequiresFocus: true}, tracksLatLon)
		r.Register(Info{Name: NorthErrorHist, Title: "North Error Histogram", Description: "Distribution of north errors", RequiresFocus: true}, errorHistogram(northHist))
		r.Register(Info{Name: EastErrorHist, Title: "East Error Histogram", Description: "Distribution of east errors", RequiresFocus: true}, errorHistogram(eastHist))
		r.Register(Info{Name: RMSErrorHist, Title: "RMS 3D Error Histogram", Description: "Distribution of 3D error magnitudes", RequiresFocus: true}, errorHistogram(rmsHist))
		r.Register(Info{Name: LatLonScatter, Title: titleLatLon, Description: "Track and truth positions", RequiresFocus: true}, latLonScatter)
		r.Register(Info{Name: LatLonAnimation, Title: titleAnimation, Description: "Track and truth positions up to an animation frame", RequiresFocus: true}, latLonAnimation)
		r.Register(Info{Name: TrackTruthLifetime, Title: titleLifetime, Description: "Lifetime of each track and truth object", RequiresFocus: true}, trackTruthLifetime)
		r.Register(Info{Name: TrackCounts, Title: titleTrackCounts, Description: "Number of tracks per dataset", RequiresDatasets: true}, trackCounts)
		r.Register(Info{Name: ErrorStatistics, Title: titleStatistics, Description: "Mean, standard deviation and RMS of each error component", RequiresFocus: true}, errorStatistics)
		defaultReg = r
	})
	return defaultReg
}

// withName appends the dataset name to a title, as the plots show it.
func withName(title string, ds *review.Dataset) string {
	if ds == nil || ds.Name == "" {
		return title
	}
	return fmt.Sprintf("%s - %s", title, ds.Name)
}
