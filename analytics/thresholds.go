package analytics

import (
	"errors"
	"time"
)

// Thresholds holds every tuning constant of the aggregation and scoring
// heuristics. The defaults reproduce the dashboard's original calibration.
type Thresholds struct {
	FallbackHeartRateAvg float64 `yaml:"fallback_heart_rate_avg"`
	FallbackHeartRateMax float64 `yaml:"fallback_heart_rate_max"`
	FallbackHeartRateMin float64 `yaml:"fallback_heart_rate_min"`
	FallbackRestingHR    float64 `yaml:"fallback_resting_heart_rate"`

	// Stress bands are upper bounds on avg/resting heart rate ratio, checked
	// in order; StressLevels has one more entry than StressRatioBands.
	StressRatioBands []float64 `yaml:"stress_ratio_bands"`
	StressLevels     []int     `yaml:"stress_levels"`

	// Sleep bands in hours: [IdealMin, IdealMax] is ideal, [FairMin, IdealMin)
	// and (IdealMax, Excess) are fair, [PoorMin, FairMin) is poor, Excess and
	// above is oversleep, anything shorter is deprived.
	SleepIdealMinHours   float64 `yaml:"sleep_ideal_min_hours"`
	SleepIdealMaxHours   float64 `yaml:"sleep_ideal_max_hours"`
	SleepFairMinHours    float64 `yaml:"sleep_fair_min_hours"`
	SleepPoorMinHours    float64 `yaml:"sleep_poor_min_hours"`
	SleepExcessHours     float64 `yaml:"sleep_excess_hours"`
	SleepQualityIdeal    int     `yaml:"sleep_quality_ideal"`
	SleepQualityFair     int     `yaml:"sleep_quality_fair"`
	SleepQualityPoor     int     `yaml:"sleep_quality_poor"`
	SleepQualityExcess   int     `yaml:"sleep_quality_excess"`
	SleepQualityDeprived int     `yaml:"sleep_quality_deprived"`

	// Activity bands are upper bounds on daily steps.
	ActivityStepBands    []int   `yaml:"activity_step_bands"`
	ActivityCalorieBonus float64 `yaml:"activity_calorie_bonus"`
	MaxActivityLevel     int     `yaml:"max_activity_level"`

	BaseScore           float64 `yaml:"base_score"`
	ShortSleepHours     float64 `yaml:"short_sleep_hours"`
	ShortSleepPenalty   float64 `yaml:"short_sleep_penalty"`
	LongSleepHours      float64 `yaml:"long_sleep_hours"`
	LongSleepPenalty    float64 `yaml:"long_sleep_penalty"`
	StressWeight        float64 `yaml:"stress_weight"`
	StressAdviceAbove   int     `yaml:"stress_advice_above"`
	LowStepsBelow       int     `yaml:"low_steps_below"`
	LowStepsPenalty     float64 `yaml:"low_steps_penalty"`
	HighStepsAbove      int     `yaml:"high_steps_above"`
	HighStepsBonus      float64 `yaml:"high_steps_bonus"`
	CaffeineLimitMg     float64 `yaml:"caffeine_limit_mg"`
	CaffeinePenalty     float64 `yaml:"caffeine_penalty"`
	WaterMinimumMl      float64 `yaml:"water_minimum_ml"`
	WaterPenalty        float64 `yaml:"water_penalty"`
	LowScoreAdviceBelow float64 `yaml:"low_score_advice_below"`
	Confidence          float64 `yaml:"confidence"`

	DefaultPeakHours []int         `yaml:"default_peak_hours"`
	PatternTimeout   time.Duration `yaml:"pattern_timeout"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		FallbackHeartRateAvg: 70,
		FallbackHeartRateMax: 85,
		FallbackHeartRateMin: 60,
		FallbackRestingHR:    60,

		StressRatioBands: []float64{1.05, 1.1, 1.2, 1.3},
		StressLevels:     []int{2, 3, 4, 6, 8},

		SleepIdealMinHours:   7,
		SleepIdealMaxHours:   9,
		SleepFairMinHours:    6,
		SleepPoorMinHours:    5,
		SleepExcessHours:     10,
		SleepQualityIdeal:    9,
		SleepQualityFair:     7,
		SleepQualityPoor:     5,
		SleepQualityExcess:   6,
		SleepQualityDeprived: 4,

		ActivityStepBands:    []int{3000, 5000, 8000, 12000},
		ActivityCalorieBonus: 500,
		MaxActivityLevel:     5,

		BaseScore:           70,
		ShortSleepHours:     6,
		ShortSleepPenalty:   10,
		LongSleepHours:      8,
		LongSleepPenalty:    5,
		StressWeight:        2,
		StressAdviceAbove:   5,
		LowStepsBelow:       5000,
		LowStepsPenalty:     5,
		HighStepsAbove:      10000,
		HighStepsBonus:      5,
		CaffeineLimitMg:     200,
		CaffeinePenalty:     5,
		WaterMinimumMl:      1500,
		WaterPenalty:        5,
		LowScoreAdviceBelow: 60,
		Confidence:          0.8,

		DefaultPeakHours: []int{9, 10, 14, 15},
		PatternTimeout:   10 * time.Second,
	}
}

func (t Thresholds) Validate() error {
	if len(t.StressLevels) != len(t.StressRatioBands)+1 {
		return errors.New("stress_levels must have one more entry than stress_ratio_bands")
	}
	for _, l := range t.StressLevels {
		if l < 0 || l > 10 {
			return errors.New("stress_levels must be within 0..10")
		}
	}
	if !(t.SleepPoorMinHours >= 0 &&
		t.SleepPoorMinHours <= t.SleepFairMinHours &&
		t.SleepFairMinHours <= t.SleepIdealMinHours &&
		t.SleepIdealMinHours <= t.SleepIdealMaxHours &&
		t.SleepIdealMaxHours < t.SleepExcessHours) {
		return errors.New("sleep hour bands must be ordered poor <= fair <= ideal min <= ideal max < excess")
	}
	for _, q := range []int{t.SleepQualityIdeal, t.SleepQualityFair, t.SleepQualityPoor, t.SleepQualityExcess, t.SleepQualityDeprived} {
		if q < 0 || q > 10 {
			return errors.New("sleep quality values must be within 0..10")
		}
	}
	if t.MaxActivityLevel < 1 || len(t.ActivityStepBands)+1 > t.MaxActivityLevel {
		return errors.New("max_activity_level must cover every activity step band")
	}
	if t.FallbackRestingHR <= 0 {
		return errors.New("fallback_resting_heart_rate must be positive")
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return errors.New("confidence must be within 0..1")
	}
	for _, h := range t.DefaultPeakHours {
		if h < 0 || h > 23 {
			return errors.New("default_peak_hours must be within 0..23")
		}
	}
	return nil
}
