package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-pipeline/models"
)

type stubSource struct {
	report models.PatternReport
	err    error
	delay  time.Duration
	calls  int
}

func (s *stubSource) FocusPattern(ctx context.Context, _ string, _, _ time.Time) (models.PatternReport, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.PatternReport{}, ctx.Err()
		}
	}
	return s.report, s.err
}

type stubHistory struct {
	days []DailyScore
	err  error
}

func (h stubHistory) DailyScores(context.Context, models.PeriodWindow) ([]DailyScore, error) {
	return h.days, h.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// 2024-01-15 is a Monday.
var monday = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func TestAnalyzePatternWeeklyTrendAlwaysSeven(t *testing.T) {
	for _, n := range []int{0, 3, 7, 10} {
		trend := make([]float64, n)
		for i := range trend {
			trend[i] = float64(60 + i)
		}
		src := &stubSource{report: models.PatternReport{DailyAverage: 75, WeeklyTrend: trend}}
		a := NewAnalyzer(src, nil, DefaultThresholds(), quietLogger())

		p, err := a.AnalyzePattern(context.Background(), "u1", monday, monday.AddDate(0, 0, 7))
		require.NoError(t, err)
		assert.Len(t, p.WeeklyTrend, 7)
		assert.False(t, p.Synthetic)
		for i := 0; i < 7; i++ {
			if i < n {
				assert.Equal(t, float64(60+i), p.WeeklyTrend[i], "n=%d i=%d", n, i)
			} else {
				assert.Equal(t, 75.0, p.WeeklyTrend[i], "n=%d i=%d", n, i)
			}
		}
	}
}

func TestAnalyzePatternNormalizesPeakHours(t *testing.T) {
	src := &stubSource{report: models.PatternReport{
		DailyAverage:     70,
		PeakHours:        []int{15, 9, 24, 9, -1, 0, 23, 15},
		ImprovementAreas: []string{"sleep"},
	}}
	p, err := NewAnalyzer(src, nil, DefaultThresholds(), quietLogger()).
		AnalyzePattern(context.Background(), "u1", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 9, 15, 23}, p.PeakHours)
	assert.Equal(t, []string{"sleep"}, p.ImprovementAreas)
}

func TestAnalyzePatternFallsBackOnOracleFailure(t *testing.T) {
	th := DefaultThresholds()
	days := []DailyScore{
		{Day: monday, Score: 58, Conditions: []Condition{HighStress, LowOverallScore}},
	}
	src := &stubSource{err: errors.New("status 500")}
	a := NewAnalyzer(src, stubHistory{days: days}, th, quietLogger())

	p, err := a.AnalyzePattern(context.Background(), "u1", monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, p.Synthetic)
	assert.Equal(t, 58.0, p.DailyAverage)
	assert.Equal(t, [7]float64{58, 58, 58, 58, 58, 58, 58}, p.WeeklyTrend)
	assert.Equal(t, []int{9, 10, 14, 15}, p.PeakHours)
	assert.Equal(t, []string{"stress management", "overall wellbeing"}, p.ImprovementAreas)
	assert.Equal(t, 1, src.calls)
}

func TestAnalyzePatternWithoutSourceIsSynthetic(t *testing.T) {
	a := NewAnalyzer(nil, nil, DefaultThresholds(), quietLogger())
	p, err := a.AnalyzePattern(context.Background(), "u1", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.True(t, p.Synthetic)
	assert.Equal(t, 47.0, p.DailyAverage)
	assert.Equal(t, []string{DefaultImprovementArea}, p.ImprovementAreas)
}

func TestAnalyzePatternTimesOut(t *testing.T) {
	th := DefaultThresholds()
	th.PatternTimeout = 20 * time.Millisecond
	src := &stubSource{delay: time.Second, report: models.PatternReport{DailyAverage: 99}}
	a := NewAnalyzer(src, stubHistory{days: []DailyScore{{Day: monday, Score: 40}}}, th, quietLogger())

	start := time.Now()
	p, err := a.AnalyzePattern(context.Background(), "u1", monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, p.Synthetic)
	assert.Equal(t, 40.0, p.DailyAverage)
}

func TestAnalyzePatternRejectsInvalidRange(t *testing.T) {
	a := NewAnalyzer(nil, nil, DefaultThresholds(), quietLogger())
	_, err := a.AnalyzePattern(context.Background(), "u1", monday, monday)
	require.ErrorIs(t, err, models.ErrInvalidWindow)
}

func TestAnalyzePatternHistoryFailureStillSynthesizes(t *testing.T) {
	a := NewAnalyzer(nil, stubHistory{err: errors.New("disk")}, DefaultThresholds(), quietLogger())
	p, err := a.AnalyzePattern(context.Background(), "u1", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.True(t, p.Synthetic)
	assert.Len(t, p.WeeklyTrend, 7)
}

func TestSynthesizePatternWeekdayMeans(t *testing.T) {
	days := []DailyScore{
		{Day: monday, Score: 60},
		{Day: monday.AddDate(0, 0, 1), Score: 70},
		{Day: monday.AddDate(0, 0, 6), Score: 80, Conditions: []Condition{ShortSleep, HighActivity}},
		{Day: monday.AddDate(0, 0, 7), Score: 70, Conditions: []Condition{LowHydration, ShortSleep}},
	}
	p := SynthesizePattern(days, DefaultThresholds())

	assert.Equal(t, 70.0, p.DailyAverage)
	assert.Equal(t, [7]float64{65, 70, 70, 70, 70, 70, 80}, p.WeeklyTrend)
	assert.Equal(t, []string{"sleep duration", "hydration"}, p.ImprovementAreas)

	again := SynthesizePattern(days, DefaultThresholds())
	assert.Equal(t, p, again)
}
