package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"focus-pipeline/analytics"
	"focus-pipeline/collector"
	"focus-pipeline/models"
)

const (
	DefaultPredictTimeout = 10 * time.Second
	patternDays           = 7
)

// Predictor is the remote concentration model.
type Predictor interface {
	Predict(ctx context.Context, rec models.HealthRecord) (models.FocusScore, error)
}

// SnapshotStore keeps the latest snapshot per user.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
	GetSnapshot(ctx context.Context, userID string) (*models.Snapshot, error)
}

type Request struct {
	UserID  string
	Trigger models.Trigger
	Intake  models.Intake
}

// Options wires a Pipeline. Predictor, Recorder and Store may be nil.
type Options struct {
	Collector      *collector.Collector
	Analyzer       *analytics.Analyzer
	Thresholds     analytics.Thresholds
	Predictor      Predictor
	Recorder       *Recorder
	Store          SnapshotStore
	PredictTimeout time.Duration
	Location       *time.Location
	Clock          func() time.Time
	Logger         *slog.Logger
}

// Pipeline runs Collector, Aggregator, Scorer and Analyzer for one user at a
// time. Refreshes for different users run independently.
type Pipeline struct {
	collector      *collector.Collector
	aggregator     *analytics.Aggregator
	scorer         *analytics.Scorer
	analyzer       *analytics.Analyzer
	predictor      Predictor
	recorder       *Recorder
	store          SnapshotStore
	predictTimeout time.Duration
	location       *time.Location
	now            func() time.Time
	logger         *slog.Logger

	mu      sync.RWMutex
	running map[string]*atomic.Bool

	records sync.WaitGroup
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		collector:      opts.Collector,
		aggregator:     analytics.NewAggregator(opts.Thresholds),
		scorer:         analytics.NewScorer(opts.Thresholds),
		analyzer:       opts.Analyzer,
		predictor:      opts.Predictor,
		recorder:       opts.Recorder,
		store:          opts.Store,
		predictTimeout: opts.PredictTimeout,
		location:       opts.Location,
		now:            opts.Clock,
		logger:         opts.Logger,
		running:        make(map[string]*atomic.Bool),
	}
	if p.collector == nil {
		p.collector = collector.NewCollector(nil, opts.Logger)
	}
	if p.predictTimeout <= 0 {
		p.predictTimeout = DefaultPredictTimeout
	}
	if p.location == nil {
		p.location = time.Local
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.analyzer == nil {
		history := NewLocalHistory(p.collector, opts.Thresholds)
		p.analyzer = analytics.NewAnalyzer(nil, history, opts.Thresholds, p.logger)
	}
	p.scorer.WithClock(p.now)
	return p
}

func (p *Pipeline) guard(userID string) *atomic.Bool {
	p.mu.RLock()
	g, ok := p.running[userID]
	p.mu.RUnlock()
	if ok {
		return g
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok = p.running[userID]; !ok {
		g = &atomic.Bool{}
		p.running[userID] = g
	}
	return g
}

// Running reports whether a refresh for userID is in flight.
func (p *Pipeline) Running(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	g, ok := p.running[userID]
	return ok && g.Load()
}

// Refresh recomputes the focus snapshot for req.UserID. It returns
// models.ErrRefreshInProgress when a refresh for the same user is already
// running, and ctx.Err() when ctx ends before the snapshot is stored. Every
// other stage degrades instead of failing.
func (p *Pipeline) Refresh(ctx context.Context, req Request) (models.Snapshot, error) {
	if req.Trigger == "" {
		req.Trigger = models.TriggerUser
	}
	g := p.guard(req.UserID)
	if !g.CompareAndSwap(false, true) {
		refreshesTotal.WithLabelValues(string(req.Trigger), "skipped").Inc()
		return models.Snapshot{}, models.ErrRefreshInProgress
	}
	defer g.Store(false)

	started := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("user_id", req.UserID, "run_id", runID, "trigger", string(req.Trigger))

	now := p.now().In(p.location)
	window := models.DayWindow(now)

	set, err := p.collector.CollectAll(ctx, window)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return p.abandon(logger, req.Trigger, ctxErr)
	}
	if err != nil {
		logger.Warn("collect failed", "err", err)
	}
	agg := p.aggregator.Aggregate(set.Flatten(), window)
	agg.Intake = req.Intake.Clone()

	record := agg.Record(req.UserID)
	score := p.predict(ctx, logger, record, agg)
	if err := ctx.Err(); err != nil {
		return p.abandon(logger, req.Trigger, err)
	}
	p.record(ctx, record)

	trailing := models.TrailingWindow(now, patternDays)
	pattern, err := p.analyzer.AnalyzePattern(ctx, req.UserID, trailing.Start, trailing.End)
	if err != nil {
		logger.Warn("pattern analysis failed", "err", err)
	}

	snap := models.Snapshot{
		RunID:       runID,
		UserID:      req.UserID,
		Trigger:     req.Trigger,
		Aggregate:   agg,
		Score:       score,
		Pattern:     pattern,
		CompletedAt: p.now(),
	}
	if err := ctx.Err(); err != nil {
		return p.abandon(logger, req.Trigger, err)
	}
	if p.store != nil {
		if err := p.store.SaveSnapshot(ctx, snap); err != nil {
			logger.Warn("snapshot not stored", "err", err)
		}
	}

	refreshDurationSeconds.WithLabelValues(string(req.Trigger)).Observe(time.Since(started).Seconds())
	refreshesTotal.WithLabelValues(string(req.Trigger), "ok").Inc()
	logger.Info("refresh completed",
		"score", score.Score, "synthetic", score.Synthetic, "pattern_synthetic", pattern.Synthetic)
	return snap, nil
}

// abandon ends a refresh whose context was cancelled. Nothing is recorded
// or stored for it.
func (p *Pipeline) abandon(logger *slog.Logger, trigger models.Trigger, err error) (models.Snapshot, error) {
	refreshesTotal.WithLabelValues(string(trigger), "cancelled").Inc()
	logger.Info("refresh abandoned", "err", err)
	return models.Snapshot{}, err
}

func (p *Pipeline) predict(ctx context.Context, logger *slog.Logger, rec models.HealthRecord, agg models.BiometricAggregate) models.FocusScore {
	if p.predictor == nil {
		return p.scorer.Score(agg)
	}

	ctx, cancel := context.WithTimeout(ctx, p.predictTimeout)
	defer cancel()

	score, err := p.predictor.Predict(ctx, rec)
	if err != nil {
		oracleFallbacksTotal.WithLabelValues("predict").Inc()
		logger.Warn("prediction failed, scoring locally", "err", err)
		return p.scorer.Score(agg)
	}
	return score
}

// record hands rec to the recorder without waiting for the write.
func (p *Pipeline) record(ctx context.Context, rec models.HealthRecord) {
	if p.recorder == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	p.records.Add(1)
	go func() {
		defer p.records.Done()
		ctx, cancel := context.WithTimeout(ctx, p.predictTimeout)
		defer cancel()
		_ = p.recorder.Record(ctx, rec)
	}()
}

// Wait blocks until pending record writes have finished.
func (p *Pipeline) Wait() {
	p.records.Wait()
}

// Latest returns the stored snapshot for userID, or nil when there is none.
func (p *Pipeline) Latest(ctx context.Context, userID string) (*models.Snapshot, error) {
	if p.store == nil {
		return nil, nil
	}
	return p.store.GetSnapshot(ctx, userID)
}

// Pattern analyses [start, end) for userID outside of a refresh.
func (p *Pipeline) Pattern(ctx context.Context, userID string, start, end time.Time) (models.FocusPattern, error) {
	return p.analyzer.AnalyzePattern(ctx, userID, start, end)
}

// HeartRate builds the heart-rate chart series for the window of the given
// granularity containing now.
func (p *Pipeline) HeartRate(ctx context.Context, g models.Granularity) (analytics.HeartRateSeries, error) {
	now := p.now().In(p.location)
	var window models.PeriodWindow
	switch g {
	case models.Hour:
		window = models.HourWindow(now)
	case models.Week:
		window = models.WeekWindow(now)
	case models.Month:
		window = models.MonthWindow(now)
	default:
		window = models.DayWindow(now)
	}
	samples, err := p.collector.Collect(ctx, models.HeartRate, window)
	if err != nil {
		return analytics.HeartRateSeries{}, err
	}
	return analytics.BuildHeartRateSeries(samples, window, p.scorer.Thresholds()), nil
}

func (p *Pipeline) Recorder() *Recorder {
	return p.recorder
}
