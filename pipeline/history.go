package pipeline

import (
	"context"

	"focus-pipeline/analytics"
	"focus-pipeline/collector"
	"focus-pipeline/models"
)

// LocalHistory scores past days from the local health source. Days without
// any sample are left out.
type LocalHistory struct {
	collector  *collector.Collector
	aggregator *analytics.Aggregator
	thresholds analytics.Thresholds
}

func NewLocalHistory(c *collector.Collector, t analytics.Thresholds) *LocalHistory {
	return &LocalHistory{collector: c, aggregator: analytics.NewAggregator(t), thresholds: t}
}

func (h *LocalHistory) DailyScores(ctx context.Context, window models.PeriodWindow) ([]analytics.DailyScore, error) {
	var out []analytics.DailyScore
	for _, day := range window.Days() {
		set, err := h.collector.CollectAll(ctx, day)
		if err != nil {
			return nil, err
		}
		samples := set.Flatten()
		if len(samples) == 0 {
			continue
		}
		agg := h.aggregator.Aggregate(samples, day)
		score := analytics.RawScore(agg, h.thresholds)
		out = append(out, analytics.DailyScore{
			Day:        day.Start,
			Score:      score,
			Conditions: analytics.Conditions(agg, score, h.thresholds),
		})
	}
	return out, nil
}
