package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-pipeline/analytics"
	"focus-pipeline/collector"
	"focus-pipeline/models"
	"focus-pipeline/pipeline"
)

var testNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type fakeService struct {
	mu          sync.Mutex
	refreshErr  error
	refreshed   []pipeline.Request
	latest      *models.Snapshot
	patternArgs [2]time.Time
	granularity models.Granularity
}

func (f *fakeService) Refresh(_ context.Context, req pipeline.Request) (models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, req)
	if f.refreshErr != nil {
		return models.Snapshot{}, f.refreshErr
	}
	return models.Snapshot{RunID: "run-1", UserID: req.UserID, Trigger: req.Trigger}, nil
}

func (f *fakeService) Latest(_ context.Context, userID string) (*models.Snapshot, error) {
	if f.latest != nil && f.latest.UserID == userID {
		return f.latest, nil
	}
	return nil, nil
}

func (f *fakeService) Pattern(_ context.Context, _ string, start, end time.Time) (models.FocusPattern, error) {
	f.patternArgs = [2]time.Time{start, end}
	if !start.Before(end) {
		return models.FocusPattern{}, models.ErrInvalidWindow
	}
	return models.FocusPattern{DailyAverage: 58, Synthetic: true}, nil
}

func (f *fakeService) HeartRate(_ context.Context, g models.Granularity) (analytics.HeartRateSeries, error) {
	f.granularity = g
	return analytics.HeartRateSeries{Period: g.String()}, nil
}

type fakeSession struct {
	err    error
	intake models.Intake
	calls  int
}

func (f *fakeSession) RefreshNow(_ context.Context, intake models.Intake) (models.Snapshot, error) {
	f.calls++
	f.intake = intake
	if f.err != nil {
		return models.Snapshot{}, f.err
	}
	return models.Snapshot{RunID: "session-run", UserID: "user123", Trigger: models.TriggerUser}, nil
}

type fakeSyncer struct {
	synced  int
	pending int64
	err     error
}

func (f *fakeSyncer) Sync(context.Context) (int, error) { return f.synced, f.err }
func (f *fakeSyncer) Pending(context.Context) (int64, error) { return f.pending, nil }

type env struct {
	source  *collector.MemorySource
	service *fakeService
	session *fakeSession
	syncer  *fakeSyncer
	router  http.Handler
}

func newEnv() *env {
	e := &env{
		source:  collector.NewMemorySource(),
		service: &fakeService{},
		session: &fakeSession{},
		syncer:  &fakeSyncer{},
	}
	h := NewFocusHandler(Options{
		Samples:  e.source,
		Service:  e.service,
		Syncer:   e.syncer,
		Session:  e.session,
		UserID:   "user123",
		Location: time.UTC,
		Clock:    func() time.Time { return testNow },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	e.router = h.Router()
	return e
}

func (e *env) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := newEnv().do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestIngestSamples(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodPost, "/api/v1/samples", `{"samples": [
		{"metric": "heart_rate", "value": 72, "start_time": "2024-01-15T09:00:00Z"},
		{"metric": "sleep", "start_time": "2024-01-15T00:30:00Z", "end_time": "2024-01-15T07:00:00Z", "state": "asleep"}
	]}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, 2, e.source.Len())
}

func TestIngestRejectsInvalidSamples(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{"samples": [`,
		"empty":          `{"samples": []}`,
		"unknown metric": `{"samples": [{"metric": "mood", "value": 1, "start_time": "2024-01-15T09:00:00Z"}]}`,
		"negative":       `{"samples": [{"metric": "steps", "value": -5, "start_time": "2024-01-15T09:00:00Z"}]}`,
		"reversed":       `{"samples": [{"metric": "sleep", "start_time": "2024-01-15T09:00:00Z", "end_time": "2024-01-15T08:00:00Z"}]}`,
		"no start":       `{"samples": [{"metric": "steps", "value": 5}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv()
			rec := e.do(http.MethodPost, "/api/v1/samples", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, e.source.Len())
		})
	}
}

func TestRefreshUsesSessionForBoundUser(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodPost, "/api/v1/refresh", `{"caffeine_mg": 250}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, 1, e.session.calls)
	require.NotNil(t, e.session.intake.CaffeineMg)
	assert.Equal(t, 250.0, *e.session.intake.CaffeineMg)
	assert.Nil(t, e.session.intake.WaterMl)
	assert.Empty(t, e.service.refreshed)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "session-run", snap.RunID)
}

func TestRefreshOtherUserGoesToPipeline(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodPost, "/api/v1/refresh", `{"user_id": "bob"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, e.service.refreshed, 1)
	assert.Equal(t, "bob", e.service.refreshed[0].UserID)
	assert.Equal(t, models.TriggerUser, e.service.refreshed[0].Trigger)
	assert.Zero(t, e.session.calls)
}

func TestRefreshStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"in progress", models.ErrRefreshInProgress, http.StatusConflict},
		{"closed", pipeline.ErrSessionClosed, http.StatusServiceUnavailable},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv()
			e.session.err = tc.err
			rec := e.do(http.MethodPost, "/api/v1/refresh", "")
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	e := newEnv()
	rec := e.do(http.MethodPost, "/api/v1/refresh", `{"water_ml": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshRejectsOversizedBody(t *testing.T) {
	e := newEnv()
	body := `{"caffeine_mg": 100, "user_id": "` + strings.Repeat("x", maxRefreshBytes) + `"}`
	rec := e.do(http.MethodPost, "/api/v1/refresh", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, e.session.calls)
	assert.Empty(t, e.service.refreshed)
}

func TestIngestRejectsNonFiniteAndHugeValues(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodPost, "/api/v1/samples",
		`{"samples": [{"metric": "steps", "value": 1e19, "start_time": "2024-01-15T09:00:00Z"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, e.source.Len())
}

func TestScore(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodGet, "/api/v1/score", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	e.service.latest = &models.Snapshot{UserID: "user123", Score: models.FocusScore{Score: 58}}
	rec = e.do(http.MethodGet, "/api/v1/score?user_id=user123", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 58.0, snap.Score.Score)

	rec = e.do(http.MethodGet, "/api/v1/score?user_id=someone", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPattern(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodGet, "/api/v1/pattern", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), e.service.patternArgs[0])
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), e.service.patternArgs[1])

	var p models.FocusPattern
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, 58.0, p.DailyAverage)
	assert.True(t, p.Synthetic)

	rec = e.do(http.MethodGet, "/api/v1/pattern?start_date=2024-01-01&end_date=2024-01-08", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), e.service.patternArgs[0])

	rec = e.do(http.MethodGet, "/api/v1/pattern?start_date=2024-01-08&end_date=2024-01-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(http.MethodGet, "/api/v1/pattern?start_date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHeartRate(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodGet, "/api/v1/heart-rate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Day, e.service.granularity)

	rec = e.do(http.MethodGet, "/api/v1/heart-rate?period=month", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Month, e.service.granularity)

	rec = e.do(http.MethodGet, "/api/v1/heart-rate?period=decade", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSync(t *testing.T) {
	e := newEnv()
	e.syncer.synced = 3
	rec := e.do(http.MethodPost, "/api/v1/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"synced": 3, "pending": 0}`, rec.Body.String())

	e.syncer.synced, e.syncer.pending, e.syncer.err = 1, 2, models.ErrPersistenceFailure
	rec = e.do(http.MethodPost, "/api/v1/sync", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending":2`)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv()
	e.do(http.MethodGet, "/health", "")
	rec := e.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := newEnv().do(http.MethodGet, "/api/v1/samples", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
