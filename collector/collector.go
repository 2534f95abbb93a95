package collector

import (
	"context"
	"log/slog"
	"sort"

	"focus-pipeline/models"
)

// Source is the device health store.
type Source interface {
	GetSamples(ctx context.Context, metric models.Metric, window models.PeriodWindow) ([]models.RawSample, error)
}

// SampleSet holds the samples of every metric kind for one window.
type SampleSet map[models.Metric][]models.RawSample

// Flatten returns all samples in metric order.
func (s SampleSet) Flatten() []models.RawSample {
	var out []models.RawSample
	for _, m := range models.AllMetrics {
		out = append(out, s[m]...)
	}
	return out
}

type Collector struct {
	source Source
	logger *slog.Logger
}

func NewCollector(source Source, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{source: source, logger: logger}
}

// Collect reads samples of one metric whose start falls in window. Source
// failures yield an empty result, never an error. It returns
// models.ErrInvalidWindow for a bad window and ctx.Err() once the caller's
// context is done, so a cancelled read is never mistaken for an empty one.
func (c *Collector) Collect(ctx context.Context, metric models.Metric, window models.PeriodWindow) ([]models.RawSample, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if c.source == nil {
		return []models.RawSample{}, nil
	}

	raw, err := c.source.GetSamples(ctx, metric, window)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		c.logger.Warn("health source read failed, treating as no data",
			"metric", metric.String(), "err", err)
		return []models.RawSample{}, nil
	}

	out := make([]models.RawSample, 0, len(raw))
	for _, s := range raw {
		if s.Metric != metric || !window.Contains(s.Start) {
			continue
		}
		if s.End.IsZero() {
			s.End = s.Start
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// CollectAll reads every metric kind one after another.
func (c *Collector) CollectAll(ctx context.Context, window models.PeriodWindow) (SampleSet, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	set := make(SampleSet, len(models.AllMetrics))
	for _, m := range models.AllMetrics {
		samples, err := c.Collect(ctx, m, window)
		if err != nil {
			return nil, err
		}
		set[m] = samples
	}
	return set, nil
}
