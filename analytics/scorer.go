package analytics

import (
	"time"

	"focus-pipeline/models"
)

// Condition identifies a scoring rule that fired for an aggregate.
type Condition int

const (
	ShortSleep Condition = iota + 1
	LongSleep
	HighStress
	LowActivity
	HighActivity
	HighCaffeine
	LowHydration
	LowOverallScore
)

var recommendationText = map[Condition]string{
	ShortSleep:      "Try to get more sleep; 7 to 9 hours is recommended.",
	LongSleep:       "Oversleeping can dull focus; aim for a consistent 7 to 9 hours.",
	HighStress:      "Stress looks elevated; take a short break or try breathing exercises.",
	LowActivity:     "Activity is low today; a short walk can help you refocus.",
	HighActivity:    "Great activity level today; keep it up.",
	HighCaffeine:    "Consider cutting back on caffeine.",
	LowHydration:    "Drink more water to stay sharp.",
	LowOverallScore: "Overall condition is low; look after your general health today.",
}

var improvementArea = map[Condition]string{
	ShortSleep:      "sleep duration",
	LongSleep:       "sleep regularity",
	HighStress:      "stress management",
	LowActivity:     "physical activity",
	HighCaffeine:    "caffeine intake",
	LowHydration:    "hydration",
	LowOverallScore: "overall wellbeing",
}

const (
	InsufficientDataMessage = "Not enough data yet; more measurements will improve the prediction."
	DefaultImprovementArea  = "keep current routine"
)

// Recommendation returns the fixed message for c.
func (c Condition) Recommendation() string {
	return recommendationText[c]
}

// ImprovementArea returns the short area label for c, or "" when the
// condition is not an area to improve.
func (c Condition) ImprovementArea() string {
	return improvementArea[c]
}

type Scorer struct {
	thresholds Thresholds
	now        func() time.Time
}

func NewScorer(t Thresholds) *Scorer {
	return &Scorer{thresholds: t, now: time.Now}
}

// WithClock replaces the timestamp source.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

func (s *Scorer) Thresholds() Thresholds {
	return s.thresholds
}

// Score computes the local heuristic focus score. It never fails.
func (s *Scorer) Score(agg models.BiometricAggregate) models.FocusScore {
	value := RawScore(agg, s.thresholds)
	return models.FocusScore{
		Score:           value,
		Confidence:      Confidence(s.thresholds),
		Recommendations: Recommendations(agg, value, s.thresholds),
		Timestamp:       s.now(),
		Synthetic:       true,
	}
}

// RawScore applies the additive adjustments in order and clamps to [0,100].
func RawScore(agg models.BiometricAggregate, t Thresholds) float64 {
	score := t.BaseScore

	if agg.SleepDurationHours < t.ShortSleepHours {
		score -= t.ShortSleepPenalty
	} else if agg.SleepDurationHours > t.LongSleepHours {
		score -= t.LongSleepPenalty
	}

	score -= float64(agg.StressLevel) * t.StressWeight

	if agg.StepsTotal < t.LowStepsBelow {
		score -= t.LowStepsPenalty
	} else if agg.StepsTotal > t.HighStepsAbove {
		score += t.HighStepsBonus
	}

	if c := agg.Intake.CaffeineMg; c != nil && *c > t.CaffeineLimitMg {
		score -= t.CaffeinePenalty
	}
	if w := agg.Intake.WaterMl; w != nil && *w < t.WaterMinimumMl {
		score -= t.WaterPenalty
	}

	return clampFloat(score, 0, 100)
}

// Confidence is constant until a trained model replaces the heuristic.
func Confidence(t Thresholds) float64 {
	return clampFloat(t.Confidence, 0, 1)
}

// Conditions lists the rules that fire for agg, in scoring order. score is
// the clamped result of RawScore and drives the overall condition.
func Conditions(agg models.BiometricAggregate, score float64, t Thresholds) []Condition {
	var out []Condition
	if agg.SleepDurationHours < t.ShortSleepHours {
		out = append(out, ShortSleep)
	} else if agg.SleepDurationHours > t.LongSleepHours {
		out = append(out, LongSleep)
	}
	if agg.StressLevel > t.StressAdviceAbove {
		out = append(out, HighStress)
	}
	if agg.StepsTotal < t.LowStepsBelow {
		out = append(out, LowActivity)
	} else if agg.StepsTotal > t.HighStepsAbove {
		out = append(out, HighActivity)
	}
	if c := agg.Intake.CaffeineMg; c != nil && *c > t.CaffeineLimitMg {
		out = append(out, HighCaffeine)
	}
	if w := agg.Intake.WaterMl; w != nil && *w < t.WaterMinimumMl {
		out = append(out, LowHydration)
	}
	if score < t.LowScoreAdviceBelow {
		out = append(out, LowOverallScore)
	}
	return out
}

// Recommendations is never empty.
func Recommendations(agg models.BiometricAggregate, score float64, t Thresholds) []string {
	conds := Conditions(agg, score, t)
	if len(conds) == 0 {
		return []string{InsufficientDataMessage}
	}
	out := make([]string, 0, len(conds))
	for _, c := range conds {
		out = append(out, c.Recommendation())
	}
	return out
}
