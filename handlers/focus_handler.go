package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"focus-pipeline/analytics"
	"focus-pipeline/models"
	"focus-pipeline/pipeline"
)

const (
	dateLayout      = "2006-01-02"
	maxIngestBytes  = 4 << 20
	maxRefreshBytes = 64 << 10
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	samplesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samples_ingested_total",
			Help: "Total number of raw health samples accepted",
		},
		[]string{"metric"},
	)
)

// SampleSink stores ingested samples.
type SampleSink interface {
	Add(samples ...models.RawSample)
}

// Service is the pipeline surface used by the handlers.
type Service interface {
	Refresh(ctx context.Context, req pipeline.Request) (models.Snapshot, error)
	Latest(ctx context.Context, userID string) (*models.Snapshot, error)
	Pattern(ctx context.Context, userID string, start, end time.Time) (models.FocusPattern, error)
	HeartRate(ctx context.Context, g models.Granularity) (analytics.HeartRateSeries, error)
}

// Syncer drains the offline record queue.
type Syncer interface {
	Sync(ctx context.Context) (int, error)
	Pending(ctx context.Context) (int64, error)
}

// SessionRefresher runs user-triggered refreshes for the bound user.
type SessionRefresher interface {
	RefreshNow(ctx context.Context, intake models.Intake) (models.Snapshot, error)
}

type Options struct {
	Samples  SampleSink
	Service  Service
	Syncer   Syncer
	Session  SessionRefresher
	UserID   string
	Location *time.Location
	Clock    func() time.Time
	Logger   *slog.Logger
}

type FocusHandler struct {
	samples  SampleSink
	service  Service
	syncer   Syncer
	session  SessionRefresher
	userID   string
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

func NewFocusHandler(opts Options) *FocusHandler {
	h := &FocusHandler{
		samples:  opts.Samples,
		service:  opts.Service,
		syncer:   opts.Syncer,
		session:  opts.Session,
		userID:   opts.UserID,
		location: opts.Location,
		now:      opts.Clock,
		logger:   opts.Logger,
	}
	if h.location == nil {
		h.location = time.Local
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Router registers every route, including /metrics.
func (h *FocusHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)

	r.HandleFunc("/health", HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/samples", h.HandleSamples).Methods(http.MethodPost)
	api.HandleFunc("/refresh", h.HandleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/score", h.HandleScore).Methods(http.MethodGet)
	api.HandleFunc("/pattern", h.HandlePattern).Methods(http.MethodGet)
	api.HandleFunc("/heart-rate", h.HandleHeartRate).Methods(http.MethodGet)
	api.HandleFunc("/sync", h.HandleSync).Methods(http.MethodPost)

	r.Path("/metrics").Handler(promhttp.Handler())
	return r
}

type ingestRequest struct {
	Samples []models.RawSample `json:"samples"`
}

func (h *FocusHandler) HandleSamples(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(req.Samples) == 0 {
		http.Error(w, "samples must not be empty", http.StatusBadRequest)
		return
	}
	for i := range req.Samples {
		if err := req.Samples[i].Validate(); err != nil {
			http.Error(w, fmt.Sprintf("sample %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	h.samples.Add(req.Samples...)
	for _, s := range req.Samples {
		samplesIngestedTotal.WithLabelValues(s.Metric.String()).Inc()
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"count":  len(req.Samples),
	})
}

type refreshRequest struct {
	UserID     string   `json:"user_id"`
	CaffeineMg *float64 `json:"caffeine_mg"`
	WaterMl    *float64 `json:"water_ml"`
}

func (h *FocusHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRefreshBytes)).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON format", http.StatusBadRequest)
			return
		}
	}
	if (req.CaffeineMg != nil && *req.CaffeineMg < 0) || (req.WaterMl != nil && *req.WaterMl < 0) {
		http.Error(w, "intake values must be non-negative", http.StatusBadRequest)
		return
	}
	intake := models.Intake{CaffeineMg: req.CaffeineMg, WaterMl: req.WaterMl}

	var (
		snap models.Snapshot
		err  error
	)
	if h.session != nil && (req.UserID == "" || req.UserID == h.userID) {
		snap, err = h.session.RefreshNow(r.Context(), intake)
	} else {
		userID := req.UserID
		if userID == "" {
			userID = h.userID
		}
		snap, err = h.service.Refresh(r.Context(), pipeline.Request{
			UserID:  userID,
			Trigger: models.TriggerUser,
			Intake:  intake,
		})
	}

	switch {
	case errors.Is(err, models.ErrRefreshInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, pipeline.ErrSessionClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case errors.Is(err, context.Canceled):
		h.logger.Debug("refresh abandoned by client", "err", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		h.logger.Error("refresh failed", "err", err)
		http.Error(w, "Failed to refresh: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *FocusHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	userID := h.userParam(r)
	snap, err := h.service.Latest(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to get score: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if snap == nil {
		http.Error(w, "no score for user "+userID, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *FocusHandler) HandlePattern(w http.ResponseWriter, r *http.Request) {
	userID := h.userParam(r)
	window := models.TrailingWindow(h.now().In(h.location), 7)

	q := r.URL.Query()
	if s := q.Get("start_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, h.location)
		if err != nil {
			http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		window.Start = t
	}
	if s := q.Get("end_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, h.location)
		if err != nil {
			http.Error(w, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		window.End = t
	}

	pattern, err := h.service.Pattern(r.Context(), userID, window.Start, window.End)
	if errors.Is(err, models.ErrInvalidWindow) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "Failed to analyze pattern: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pattern)
}

func (h *FocusHandler) HandleHeartRate(w http.ResponseWriter, r *http.Request) {
	g := models.Day
	if p := r.URL.Query().Get("period"); p != "" {
		parsed, err := models.ParseGranularity(p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g = parsed
	}

	series, err := h.service.HeartRate(r.Context(), g)
	if err != nil {
		http.Error(w, "Failed to build heart rate series: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (h *FocusHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeJSON(w, http.StatusOK, map[string]any{"synced": 0, "pending": 0})
		return
	}

	synced, err := h.syncer.Sync(r.Context())
	pending, pendErr := h.syncer.Pending(r.Context())
	if pendErr != nil {
		h.logger.Warn("offline queue length unavailable", "err", pendErr)
	}

	body := map[string]any{"synced": synced, "pending": pending}
	if err != nil {
		h.logger.Warn("offline sync stopped", "synced", synced, "err", err)
		body["error"] = err.Error()
		writeJSON(w, http.StatusBadGateway, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *FocusHandler) userParam(r *http.Request) string {
	if id := r.URL.Query().Get("user_id"); id != "" {
		return id
	}
	return h.userID
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
