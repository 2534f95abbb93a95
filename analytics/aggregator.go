package analytics

import (
	"math"
	"sort"

	"focus-pipeline/models"
)

// MaxStepsTotal caps the daily step total so it always fits an int.
const MaxStepsTotal = math.MaxInt32

// Aggregator reduces raw samples to per-window statistics. It holds no
// state besides its thresholds and is safe for concurrent use.
type Aggregator struct {
	thresholds Thresholds
}

func NewAggregator(t Thresholds) *Aggregator {
	return &Aggregator{thresholds: t}
}

// Aggregate is deterministic: the same samples yield the same aggregate
// regardless of input order.
func (a *Aggregator) Aggregate(samples []models.RawSample, window models.PeriodWindow) models.BiometricAggregate {
	t := a.thresholds
	ordered := canonicalOrder(samples)

	var heart, resting RunningStats
	var sleepHours, steps, calories float64
	var sawSleep, sawSteps, sawEnergy bool

	for _, s := range ordered {
		if !window.Contains(s.Start) || s.Value < 0 || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		switch s.Metric {
		case models.HeartRate:
			heart.Add(s.Value)
		case models.RestingHeartRate:
			if s.Value > 0 {
				resting.Add(s.Value)
			}
		case models.SleepInterval:
			sawSleep = true
			if s.State.CountsAsSleep() && s.End.After(s.Start) {
				sleepHours += s.Duration().Hours()
			}
		case models.Steps:
			sawSteps = true
			steps += s.Value
		case models.ActiveEnergy:
			sawEnergy = true
			calories += s.Value
		}
	}

	agg := models.BiometricAggregate{
		WindowStart:         window.Start,
		HeartRateAvg:        t.FallbackHeartRateAvg,
		HeartRateMax:        t.FallbackHeartRateMax,
		HeartRateMin:        t.FallbackHeartRateMin,
		RestingHeartRate:    t.FallbackRestingHR,
		SleepDurationHours:  sleepHours,
		StepsTotal:          int(math.Round(math.Min(steps, MaxStepsTotal))),
		ActiveCaloriesTotal: calories,
		Measured: models.Provenance{
			Sleep:        sawSleep,
			Steps:        sawSteps,
			ActiveEnergy: sawEnergy,
		},
	}
	if heart.Count() > 0 {
		agg.HeartRateAvg = heart.Average()
		agg.HeartRateMax = heart.Max()
		agg.HeartRateMin = heart.Min()
		agg.Measured.HeartRate = true
	}
	if resting.Count() > 0 {
		agg.RestingHeartRate = resting.Average()
		agg.Measured.RestingHeartRate = true
	}

	agg.SleepQuality = SleepQuality(agg.SleepDurationHours, t)
	agg.StressLevel = StressLevel(agg.HeartRateAvg, agg.RestingHeartRate, t)
	agg.ActivityLevel = ActivityLevel(agg.StepsTotal, agg.ActiveCaloriesTotal, t)
	return agg
}

// SleepQuality maps total sleep hours onto the 0..10 quality scale. The
// ideal band is closed at both ends; every other band is half-open.
func SleepQuality(hours float64, t Thresholds) int {
	var q int
	switch {
	case hours >= t.SleepIdealMinHours && hours <= t.SleepIdealMaxHours:
		q = t.SleepQualityIdeal
	case hours >= t.SleepFairMinHours && hours < t.SleepIdealMinHours,
		hours > t.SleepIdealMaxHours && hours < t.SleepExcessHours:
		q = t.SleepQualityFair
	case hours >= t.SleepPoorMinHours && hours < t.SleepFairMinHours:
		q = t.SleepQualityPoor
	case hours >= t.SleepExcessHours:
		q = t.SleepQualityExcess
	default:
		q = t.SleepQualityDeprived
	}
	return clampInt(q, 0, 10)
}

// StressLevel derives a 0..10 stress level from the ratio of average to
// resting heart rate. A non-positive resting rate uses the fallback.
func StressLevel(heartRateAvg, restingHeartRate float64, t Thresholds) int {
	if restingHeartRate <= 0 || math.IsNaN(restingHeartRate) {
		restingHeartRate = t.FallbackRestingHR
	}
	ratio := heartRateAvg / restingHeartRate
	level := t.StressLevels[len(t.StressLevels)-1]
	for i, band := range t.StressRatioBands {
		if ratio < band {
			level = t.StressLevels[i]
			break
		}
	}
	return clampInt(level, 0, 10)
}

// ActivityLevel maps daily steps onto 1..MaxActivityLevel, bumped by one
// when active calories exceed the bonus threshold.
func ActivityLevel(steps int, activeCalories float64, t Thresholds) int {
	level := len(t.ActivityStepBands) + 1
	for i, band := range t.ActivityStepBands {
		if steps < band {
			level = i + 1
			break
		}
	}
	if activeCalories > t.ActivityCalorieBonus {
		level++
	}
	return clampInt(level, 1, t.MaxActivityLevel)
}

func canonicalOrder(samples []models.RawSample) []models.RawSample {
	out := make([]models.RawSample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.State < b.State
	})
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
