// Package monitor serves the review plots over HTTP: rendered pages, plot
// configs as JSON, formatter availability and animation playback.
package monitor

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/trackreview/internal/config"
	"github.com/banshee-data/trackreview/internal/httputil"
	"github.com/banshee-data/trackreview/internal/review"
	"github.com/banshee-data/trackreview/internal/review/animation"
	"github.com/banshee-data/trackreview/internal/review/formatter"
	"github.com/banshee-data/trackreview/internal/review/plotmanager"
	"github.com/banshee-data/trackreview/internal/review/render"
	"github.com/banshee-data/trackreview/internal/version"
)

//go:embed index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// ReloadFunc reloads every dataset from its source.
type ReloadFunc func(ctx context.Context) ([]*review.Dataset, error)

// WebServerConfig configures a WebServer.
type WebServerConfig struct {
	Address     string
	Manager     *plotmanager.Manager
	Datasets    []*review.Dataset
	Focus       string
	Settings    *config.Settings
	Cache       CacheConfig
	CORSOrigins []string
	Reload      ReloadFunc
}

// WebServer serves plots for a set of loaded datasets. The dataset state is
// replaced wholesale on focus change or reload, so handlers work on an
// immutable snapshot.
type WebServer struct {
	server   *http.Server
	address  string
	manager  *plotmanager.Manager
	settings *config.Settings
	origins  []string
	reload   ReloadFunc
	caches   *CacheManager
	metrics  *Metrics
	player   *animation.Player

	baseCtx   context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	mu    sync.RWMutex
	state *formatter.State
	key   string
}

// NewWebServer creates a web server with the provided configuration.
func NewWebServer(cfg WebServerConfig) (*WebServer, error) {
	manager := cfg.Manager
	if manager == nil {
		manager = plotmanager.New(nil, render.NewECharts())
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.EmptySettings()
	}
	caches, err := NewCacheManager(cfg.Cache)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ws := &WebServer{
		address:  cfg.Address,
		manager:  manager,
		settings: settings,
		origins:  cfg.CORSOrigins,
		reload:   cfg.Reload,
		caches:   caches,
		metrics:  NewMetrics(),
		player:   animation.NewPlayer(0, nil),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	if err := ws.SetDatasets(cfg.Datasets, cfg.Focus); err != nil {
		cancel()
		caches.Close()
		return nil, err
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}
	return ws, nil
}

// Handler returns the routed handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		review.Opsf("monitor: starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			ws.Close()
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	review.Opsf("monitor: shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		review.Opsf("monitor: HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			review.Opsf("monitor: HTTP server force close error: %v", err)
		}
	}
	ws.Close()
	review.Opsf("monitor: HTTP server routine stopped")
	return nil
}

// Close stops playback and releases the caches. It is safe to call twice.
func (ws *WebServer) Close() error {
	ws.closeOnce.Do(func() {
		ws.cancel()
		ws.player.Stop()
		ws.closeErr = ws.caches.Close()
	})
	return ws.closeErr
}

// SetDatasets replaces the loaded datasets. An empty focus keeps the
// current focus when that dataset is still loaded, else the first by name.
func (ws *WebServer) SetDatasets(datasets []*review.Dataset, focus string) error {
	state := formatter.NewState(datasets...)
	names := state.Names()

	ws.mu.Lock()
	defer ws.mu.Unlock()
	switch {
	case focus != "":
		if _, ok := state.Datasets[focus]; !ok {
			return fmt.Errorf("focus dataset %q is not loaded", focus)
		}
		state.Focus = focus
	case ws.state != nil && state.Datasets[ws.state.Focus] != nil:
		state.Focus = ws.state.Focus
	case len(names) > 0:
		state.Focus = names[0]
	}
	ws.state = state
	ws.key = stateKey(state)
	ws.caches.Purge()
	ws.metrics.SetDatasets(len(state.Datasets))
	review.Opsf("monitor: %d datasets loaded, focus %q", len(names), state.Focus)
	return nil
}

// SetFocus changes the focus dataset.
func (ws *WebServer) SetFocus(name string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.state.Datasets[name]; !ok {
		return fmt.Errorf("dataset %q is not loaded", name)
	}
	next := &formatter.State{Datasets: ws.state.Datasets, Focus: name}
	ws.state = next
	ws.key = stateKey(next)
	return nil
}

func (ws *WebServer) snapshot() (*formatter.State, string) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.state, ws.key
}

func stateKey(s *formatter.State) string {
	var b strings.Builder
	for _, name := range s.Names() {
		b.WriteString(s.Datasets[name].ID)
		b.WriteByte(',')
	}
	b.WriteString("focus=")
	b.WriteString(s.Focus)
	return b.String()
}

// newCompressor negotiates zstd ahead of gzip and deflate.
func newCompressor() *middleware.Compressor {
	c := middleware.NewCompressor(5)
	c.SetEncoder("zstd", func(w io.Writer, level int) io.Writer {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil
		}
		return enc
	})
	return c
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(newCompressor().Handler)
	r.Use(ws.metrics.Middleware)

	origins := ws.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", ws.handleIndex)
	r.Get("/health", ws.handleHealth)
	r.Method(http.MethodGet, "/metrics", ws.metrics.Handler())
	r.Get("/plot/{name}", ws.handlePlotPage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/datasets", ws.handleDatasets)
		r.Post("/focus", ws.handleFocus)
		r.Post("/reload", ws.handleReload)
		r.Get("/formatters", ws.handleFormatters)
		r.Get("/plot/{name}", ws.handlePlotJSON)
		r.Get("/frames", ws.handleFrames)
		r.Get("/cache", ws.handleCacheStats)

		r.Route("/playback", func(r chi.Router) {
			r.Get("/", ws.handlePlaybackStatus)
			r.Post("/play", ws.handlePlaybackPlay)
			r.Post("/pause", ws.handlePlaybackPause)
			r.Post("/stop", ws.handlePlaybackStop)
			r.Post("/step", ws.handlePlaybackStep)
			r.Post("/seek", ws.handlePlaybackSeek)
			r.Post("/speed", ws.handlePlaybackSpeed)
		})
	})
	return r
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "trackreview",
		"version":   version.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type indexData struct {
	Version    string
	Focus      string
	Datasets   []string
	Formatters []plotmanager.Availability
}

func (ws *WebServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	state, _ := ws.snapshot()
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, indexData{
		Version:    version.String(),
		Focus:      state.Focus,
		Datasets:   state.Names(),
		Formatters: ws.manager.Available(state),
	})
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render index: %v", err))
		return
	}
	httputil.WriteBody(w, http.StatusOK, httputil.ContentHTML, buf.Bytes())
}

// DatasetInfo describes one loaded dataset.
type DatasetInfo struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Source      string `json:"source"`
	Tracks      int    `json:"tracks_rows"`
	Truth       int    `json:"truth_rows"`
	Detections  int    `json:"detection_rows"`
	Precomputed bool   `json:"precomputed_errors"`
	Focus       bool   `json:"focus"`
}

func (ws *WebServer) handleDatasets(w http.ResponseWriter, r *http.Request) {
	state, _ := ws.snapshot()
	out := make([]DatasetInfo, 0, len(state.Datasets))
	for _, name := range state.Names() {
		ds := state.Datasets[name]
		out = append(out, DatasetInfo{
			Name:        ds.Name,
			ID:          ds.ID,
			Source:      ds.Source,
			Tracks:      ds.Tracks.Len(),
			Truth:       ds.Truth.Len(),
			Detections:  ds.Detections.Len(),
			Precomputed: ds.Has(review.CapPrecomputedErrors),
			Focus:       name == state.Focus,
		})
	}
	httputil.WriteJSONOK(w, out)
}

// handleFocus sets the focus dataset.
// POST /api/focus?dataset=<name>
func (ws *WebServer) handleFocus(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("dataset")
	if name == "" {
		httputil.BadRequest(w, "missing 'dataset' parameter")
		return
	}
	if err := ws.SetFocus(name); err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	ws.player.Stop()
	httputil.WriteJSONOK(w, map[string]string{"focus": name})
}

func (ws *WebServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if ws.reload == nil {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "reload not configured")
		return
	}
	datasets, err := ws.reload(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to reload datasets: %v", err))
		return
	}
	if err := ws.SetDatasets(datasets, ""); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	ws.player.Stop()
	state, _ := ws.snapshot()
	httputil.WriteJSONOK(w, map[string]interface{}{"datasets": state.Names(), "focus": state.Focus})
}

func (ws *WebServer) handleFormatters(w http.ResponseWriter, r *http.Request) {
	state, _ := ws.snapshot()
	httputil.WriteJSONOK(w, ws.manager.Available(state))
}

func (ws *WebServer) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, ws.caches.Stats())
}

// plotRequest is one parsed plot request.
type plotRequest struct {
	name  string
	state *formatter.State
	ctx   formatter.Context
	key   string
}

func (ws *WebServer) parsePlotRequest(r *http.Request, kind string) (*plotRequest, int, error) {
	name := chi.URLParam(r, "name")
	if _, ok := ws.manager.Registry().Get(name); !ok {
		return nil, http.StatusNotFound, fmt.Errorf("unknown formatter %q", name)
	}
	state, key := ws.snapshot()
	q := r.URL.Query()
	state, err := withFocus(state, q.Get("dataset"))
	if err != nil {
		return nil, http.StatusNotFound, err
	}
	defaultFrame := -1
	if name == formatter.LatLonAnimation && ws.player.State() != animation.Stopped {
		defaultFrame = ws.player.Index()
	}
	ctx, err := ParseContext(q, ws.settings, defaultFrame)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	q.Set("frame", fmt.Sprint(ctx.Frame))
	return &plotRequest{
		name:  name,
		state: state,
		ctx:   ctx,
		key:   PlotKey(kind, name, key, q),
	}, http.StatusOK, nil
}

// withFocus returns state focused on name, or state itself for "".
func withFocus(state *formatter.State, name string) (*formatter.State, error) {
	if name == "" || name == state.Focus {
		return state, nil
	}
	if _, ok := state.Datasets[name]; !ok {
		return nil, fmt.Errorf("dataset %q is not loaded", name)
	}
	return &formatter.State{Datasets: state.Datasets, Focus: name}, nil
}

// handlePlotJSON returns the validated plot config.
// GET /api/plot/{name}?dataset=&tracks=&truth=&frame=&bins=&sigma=&mode=&units=
func (ws *WebServer) handlePlotJSON(w http.ResponseWriter, r *http.Request) {
	req, status, err := ws.parsePlotRequest(r, "json")
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}
	if body, ok := ws.caches.GetConfig(req.key); ok {
		ws.metrics.RecordCache("config", true)
		httputil.WriteBody(w, http.StatusOK, httputil.ContentJSON, body)
		return
	}
	ws.metrics.RecordCache("config", false)

	start := time.Now()
	cfg := ws.manager.Prepare(req.name, req.state, req.ctx)
	body, err := json.Marshal(cfg)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode plot: %v", err))
		return
	}
	ws.metrics.RecordRender(req.name, "json", time.Since(start))
	ws.caches.SetConfig(req.key, body)
	httputil.WriteBody(w, http.StatusOK, httputil.ContentJSON, body)
}

// handlePlotPage renders a plot with the configured backend, or the one
// named by ?format=echarts|png|table.
func (ws *WebServer) handlePlotPage(w http.ResponseWriter, r *http.Request) {
	backend := ws.manager.Backend()
	if format := r.URL.Query().Get("format"); format != "" {
		b, err := render.New(format)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		backend = b
	}
	if backend == nil {
		httputil.InternalServerError(w, "no render backend configured")
		return
	}
	req, status, err := ws.parsePlotRequest(r, "page:"+backend.Name())
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}
	if body, ok := ws.caches.GetPage(req.key); ok {
		ws.metrics.RecordCache("page", true)
		httputil.WriteBody(w, http.StatusOK, backend.ContentType(), body)
		return
	}
	ws.metrics.RecordCache("page", false)

	start := time.Now()
	cfg := ws.manager.Prepare(req.name, req.state, req.ctx)
	var buf bytes.Buffer
	if err := backend.Render(&buf, cfg); err != nil {
		review.Opsf("monitor: failed to render %s: %v", req.name, err)
		httputil.InternalServerError(w, fmt.Sprintf("failed to render %s: %v", req.name, err))
		return
	}
	ws.metrics.RecordRender(req.name, backend.Name(), time.Since(start))
	if err := ws.caches.SetPage(req.key, buf.Bytes()); err != nil {
		review.Diagf("monitor: page for %s not cached: %v", req.name, err)
	}
	httputil.WriteBody(w, http.StatusOK, backend.ContentType(), buf.Bytes())
}

// FramesResponse describes the animation timeline under a selection.
type FramesResponse struct {
	Dataset string  `json:"dataset"`
	Frames  int     `json:"frames"`
	FPS     int     `json:"fps"`
	Speed   float64 `json:"speed"`
}

func (ws *WebServer) handleFrames(w http.ResponseWriter, r *http.Request) {
	state, ctx, ok := ws.selectionFor(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, FramesResponse{
		Dataset: state.Focus,
		Frames:  formatter.FrameCount(state, ctx),
		FPS:     animation.BaseFPS,
		Speed:   ws.player.Speed(),
	})
}

func (ws *WebServer) selectionFor(w http.ResponseWriter, r *http.Request) (*formatter.State, formatter.Context, bool) {
	state, _ := ws.snapshot()
	q := r.URL.Query()
	state, err := withFocus(state, q.Get("dataset"))
	if err != nil {
		httputil.NotFound(w, err.Error())
		return nil, formatter.Context{}, false
	}
	ctx, err := ParseContext(q, ws.settings, -1)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, formatter.Context{}, false
	}
	return state, ctx, true
}

// PlaybackStatus is the animation player state.
type PlaybackStatus struct {
	State string  `json:"state"`
	Index int     `json:"index"`
	Total int     `json:"total"`
	Speed float64 `json:"speed"`
}

func (ws *WebServer) playbackStatus() PlaybackStatus {
	return PlaybackStatus{
		State: ws.player.State().String(),
		Index: ws.player.Index(),
		Total: ws.player.Total(),
		Speed: ws.player.Speed(),
	}
}

func (ws *WebServer) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, ws.playbackStatus())
}

// handlePlaybackPlay sizes the timeline for the request's selection and
// starts playback. Frames advance in the background; clients poll the
// animation plot to follow.
// POST /api/playback/play?tracks=&truth=
func (ws *WebServer) handlePlaybackPlay(w http.ResponseWriter, r *http.Request) {
	state, ctx, ok := ws.selectionFor(w, r)
	if !ok {
		return
	}
	ws.player.SetTotal(formatter.FrameCount(state, ctx))
	if speed := ctx.Settings.GetAnimationSpeed(); speed > 0 {
		if err := ws.player.SetSpeed(speed); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}
	frames := ws.player.Play(ws.baseCtx)
	go func() {
		for range frames {
		}
	}()
	httputil.WriteJSONOK(w, ws.playbackStatus())
}

func (ws *WebServer) handlePlaybackPause(w http.ResponseWriter, r *http.Request) {
	ws.player.Pause()
	httputil.WriteJSONOK(w, ws.playbackStatus())
}

func (ws *WebServer) handlePlaybackStop(w http.ResponseWriter, r *http.Request) {
	ws.player.Stop()
	httputil.WriteJSONOK(w, ws.playbackStatus())
}

// handlePlaybackStep moves by ?delta=N frames, default 1.
func (ws *WebServer) handlePlaybackStep(w http.ResponseWriter, r *http.Request) {
	delta := 1
	if v := r.URL.Query().Get("delta"); v != "" {
		if _, err := fmt.Sscan(v, &delta); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid 'delta' parameter: %v", err))
			return
		}
	}
	ws.player.Step(delta)
	httputil.WriteJSONOK(w, ws.playbackStatus())
}

// handlePlaybackSeek jumps to ?frame=N.
func (ws *WebServer) handlePlaybackSeek(w http.ResponseWriter, r *http.Request) {
	var frame int
	if _, err := fmt.Sscan(r.URL.Query().Get("frame"), &frame); err != nil {
		httputil.BadRequest(w, "missing or invalid 'frame' parameter")
		return
	}
	ws.player.Seek(frame)
	httputil.WriteJSONOK(w, ws.playbackStatus())
}

// handlePlaybackSpeed sets the multiplier from ?value=X.
func (ws *WebServer) handlePlaybackSpeed(w http.ResponseWriter, r *http.Request) {
	var speed float64
	if _, err := fmt.Sscan(r.URL.Query().Get("value"), &speed); err != nil {
		httputil.BadRequest(w, "missing or invalid 'value' parameter")
		return
	}
	if err := ws.player.SetSpeed(speed); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, ws.playbackStatus())
}

// Routes lists the registered routes, sorted.
func (ws *WebServer) Routes() []string {
	var out []string
	routes, ok := ws.server.Handler.(chi.Routes)
	if !ok {
		return nil
	}
	_ = chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out = append(out, method+" "+route)
		return nil
	})
	sort.Strings(out)
	return out
}
