package analytics

import (
	"fmt"
	"math"
	"time"

	"focus-pipeline/models"
)

// HeartRateSeries is a bucketed heart-rate chart for one window.
type HeartRateSeries struct {
	Period  string    `json:"period"`
	Labels  []string  `json:"labels"`
	Values  []float64 `json:"values"`
	Average float64   `json:"average"`
	Max     float64   `json:"max"`
	Min     float64   `json:"min"`
	// Measured is false when no bucket had data and the summary fields
	// hold the fallback heart rate.
	Measured bool `json:"measured"`
}

type bucket struct {
	window models.PeriodWindow
	label  string
}

// BuildHeartRateSeries buckets heart-rate samples: five-minute buckets for an
// hour window, hourly for a day, daily for week and month windows. Empty
// buckets are zero and excluded from the summary.
func BuildHeartRateSeries(samples []models.RawSample, window models.PeriodWindow, t Thresholds) HeartRateSeries {
	buckets := bucketsFor(window)
	stats := make([]RunningStats, len(buckets))

	for _, s := range canonicalOrder(samples) {
		if s.Metric != models.HeartRate || !window.Contains(s.Start) {
			continue
		}
		for i := range buckets {
			if buckets[i].window.Contains(s.Start) {
				stats[i].Add(s.Value)
				break
			}
		}
	}

	series := HeartRateSeries{
		Period: window.Granularity.String(),
		Labels: make([]string, len(buckets)),
		Values: make([]float64, len(buckets)),
	}
	var summary RunningStats
	for i, b := range buckets {
		series.Labels[i] = b.label
		if stats[i].Count() == 0 {
			continue
		}
		avg := math.Round(stats[i].Average())
		series.Values[i] = avg
		summary.Add(avg)
	}

	if summary.Count() == 0 {
		series.Average = t.FallbackHeartRateAvg
		series.Max = t.FallbackHeartRateMax
		series.Min = t.FallbackHeartRateMin
		return series
	}
	series.Average = math.Round(summary.Average())
	series.Max = summary.Max()
	series.Min = summary.Min()
	series.Measured = true
	return series
}

func bucketsFor(window models.PeriodWindow) []bucket {
	if window.Validate() != nil {
		return nil
	}
	switch window.Granularity {
	case models.Hour:
		return fixedBuckets(window, 5*time.Minute, func(t time.Time) string { return t.Format("15:04") })
	case models.Day:
		return fixedBuckets(window, time.Hour, func(t time.Time) string { return fmt.Sprintf("%02d:00", t.Hour()) })
	case models.Week:
		return dayBuckets(window, func(t time.Time) string { return t.Format("Mon") })
	default:
		return dayBuckets(window, func(t time.Time) string { return fmt.Sprintf("%d/%d", t.Month(), t.Day()) })
	}
}

func fixedBuckets(window models.PeriodWindow, step time.Duration, label func(time.Time) string) []bucket {
	var out []bucket
	for cur := window.Start; cur.Before(window.End); cur = cur.Add(step) {
		end := cur.Add(step)
		if end.After(window.End) {
			end = window.End
		}
		out = append(out, bucket{
			window: models.PeriodWindow{Start: cur, End: end, Granularity: window.Granularity},
			label:  label(cur),
		})
	}
	return out
}

func dayBuckets(window models.PeriodWindow, label func(time.Time) string) []bucket {
	days := window.Days()
	out := make([]bucket, len(days))
	for i, d := range days {
		out[i] = bucket{window: d, label: label(d.Start)}
	}
	return out
}
