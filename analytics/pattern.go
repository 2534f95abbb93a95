package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"focus-pipeline/models"
)

// PatternSource is the remote oracle's focus-pattern endpoint.
type PatternSource interface {
	FocusPattern(ctx context.Context, userID string, start, end time.Time) (models.PatternReport, error)
}

// DailyScore is one day's locally computed score together with the
// conditions that shaped it.
type DailyScore struct {
	Day        time.Time
	Score      float64
	Conditions []Condition
}

// History supplies local daily scores for the synthetic fallback.
type History interface {
	DailyScores(ctx context.Context, window models.PeriodWindow) ([]DailyScore, error)
}

// Analyzer summarises focus over a date range. It keeps no state between
// calls.
type Analyzer struct {
	source     PatternSource
	history    History
	thresholds Thresholds
	logger     *slog.Logger
}

// NewAnalyzer accepts a nil source; every call then uses local synthesis.
func NewAnalyzer(source PatternSource, history History, t Thresholds, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{source: source, history: history, thresholds: t, logger: logger}
}

// AnalyzePattern covers the day windows in [start, end). It always returns a
// usable pattern; the only error is models.ErrInvalidWindow.
func (a *Analyzer) AnalyzePattern(ctx context.Context, userID string, start, end time.Time) (models.FocusPattern, error) {
	window := models.PeriodWindow{Start: start, End: end, Granularity: models.Week}
	if err := window.Validate(); err != nil {
		return models.FocusPattern{}, err
	}

	report, err := a.fetch(ctx, userID, start, end)
	if err == nil {
		return NormalizePattern(report), nil
	}
	a.logger.Warn("focus pattern oracle failed, synthesizing locally",
		"user_id", userID, "err", err)

	return a.Synthesize(ctx, window), nil
}

func (a *Analyzer) fetch(ctx context.Context, userID string, start, end time.Time) (models.PatternReport, error) {
	if a.source == nil {
		return models.PatternReport{}, fmt.Errorf("%w: no pattern source configured", models.ErrOracleFailure)
	}
	timeout := a.thresholds.PatternTimeout
	if timeout <= 0 {
		timeout = DefaultThresholds().PatternTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report, err := a.source.FocusPattern(ctx, userID, start, end)
	if err != nil {
		if errors.Is(err, models.ErrOracleFailure) {
			return models.PatternReport{}, err
		}
		return models.PatternReport{}, fmt.Errorf("%w: %v", models.ErrOracleFailure, err)
	}
	if math.IsNaN(report.DailyAverage) || math.IsInf(report.DailyAverage, 0) {
		return models.PatternReport{}, fmt.Errorf("%w: daily average is not a number", models.ErrOracleFailure)
	}
	return report, nil
}

// NormalizePattern forces an oracle report into the pattern invariants:
// exactly seven trend entries, sorted distinct peak hours in 0..23.
func NormalizePattern(r models.PatternReport) models.FocusPattern {
	p := models.FocusPattern{
		DailyAverage:     r.DailyAverage,
		PeakHours:        normalizeHours(r.PeakHours),
		ImprovementAreas: append([]string{}, r.ImprovementAreas...),
	}
	for i := range p.WeeklyTrend {
		if i < len(r.WeeklyTrend) {
			p.WeeklyTrend[i] = r.WeeklyTrend[i]
		} else {
			p.WeeklyTrend[i] = r.DailyAverage
		}
	}
	return p
}

// Synthesize builds a deterministic pattern from local daily scores. The
// result is always marked synthetic.
func (a *Analyzer) Synthesize(ctx context.Context, window models.PeriodWindow) models.FocusPattern {
	var days []DailyScore
	if a.history != nil {
		var err error
		days, err = a.history.DailyScores(ctx, window)
		if err != nil {
			a.logger.Warn("local score history unavailable", "err", err)
			days = nil
		}
	}
	return SynthesizePattern(days, a.thresholds)
}

// SynthesizePattern is the pure part of Synthesize.
func SynthesizePattern(days []DailyScore, t Thresholds) models.FocusPattern {
	p := models.FocusPattern{
		PeakHours: normalizeHours(t.DefaultPeakHours),
		Synthetic: true,
	}

	var overall RunningStats
	var byWeekday [7]RunningStats
	seen := make(map[Condition]bool)
	for _, d := range days {
		overall.Add(d.Score)
		byWeekday[models.WeekdayIndex(d.Day.Weekday())].Add(d.Score)
		for _, c := range d.Conditions {
			seen[c] = true
		}
	}

	if overall.Count() == 0 {
		p.DailyAverage = RawScore(models.BiometricAggregate{
			HeartRateAvg:     t.FallbackHeartRateAvg,
			RestingHeartRate: t.FallbackRestingHR,
			StressLevel:      StressLevel(t.FallbackHeartRateAvg, t.FallbackRestingHR, t),
		}, t)
	} else {
		p.DailyAverage = overall.Average()
	}
	for i := range p.WeeklyTrend {
		if byWeekday[i].Count() == 0 {
			p.WeeklyTrend[i] = p.DailyAverage
			continue
		}
		p.WeeklyTrend[i] = byWeekday[i].Average()
	}

	for c := ShortSleep; c <= LowOverallScore; c++ {
		if area := c.ImprovementArea(); seen[c] && area != "" {
			p.ImprovementAreas = append(p.ImprovementAreas, area)
		}
	}
	if len(p.ImprovementAreas) == 0 {
		p.ImprovementAreas = []string{DefaultImprovementArea}
	}
	return p
}

func normalizeHours(hours []int) []int {
	set := make(map[int]struct{}, len(hours))
	out := make([]int, 0, len(hours))
	for _, h := range hours {
		if h < 0 || h > 23 {
			continue
		}
		if _, dup := set[h]; dup {
			continue
		}
		set[h] = struct{}{}
		out = append(out, h)
	}
	sort.Ints(out)
	return out
}
