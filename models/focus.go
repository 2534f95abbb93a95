package models

import "time"

// Provenance records which aggregate fields come from measured samples.
// A false field means the documented fallback value was used.
type Provenance struct {
	HeartRate        bool `json:"heart_rate"`
	RestingHeartRate bool `json:"resting_heart_rate"`
	Sleep            bool `json:"sleep"`
	Steps            bool `json:"steps"`
	ActiveEnergy     bool `json:"active_energy"`
}

// Intake holds optional self-reported values that no health store provides.
type Intake struct {
	CaffeineMg *float64 `json:"caffeine_mg,omitempty"`
	WaterMl    *float64 `json:"water_ml,omitempty"`
}

func (in Intake) Clone() Intake {
	var out Intake
	if in.CaffeineMg != nil {
		v := *in.CaffeineMg
		out.CaffeineMg = &v
	}
	if in.WaterMl != nil {
		v := *in.WaterMl
		out.WaterMl = &v
	}
	return out
}

type BiometricAggregate struct {
	WindowStart         time.Time  `json:"window_start"`
	HeartRateAvg        float64    `json:"heart_rate_avg"`
	HeartRateMax        float64    `json:"heart_rate_max"`
	HeartRateMin        float64    `json:"heart_rate_min"`
	RestingHeartRate    float64    `json:"resting_heart_rate"`
	SleepDurationHours  float64    `json:"sleep_duration_hours"`
	SleepQuality        int        `json:"sleep_quality"`
	StepsTotal          int        `json:"steps_total"`
	ActiveCaloriesTotal float64    `json:"active_calories_total"`
	StressLevel         int        `json:"stress_level"`
	ActivityLevel       int        `json:"activity_level"`
	Intake              Intake     `json:"intake"`
	Measured            Provenance `json:"measured"`
}

// Record flattens the aggregate into the oracle wire form.
func (a BiometricAggregate) Record(userID string) HealthRecord {
	return HealthRecord{
		UserID:           userID,
		Date:             a.WindowStart.Format("2006-01-02"),
		HeartRateAvg:     a.HeartRateAvg,
		HeartRateResting: a.RestingHeartRate,
		SleepDuration:    a.SleepDurationHours,
		SleepQuality:     a.SleepQuality,
		StepsCount:       a.StepsTotal,
		ActiveCalories:   a.ActiveCaloriesTotal,
		StressLevel:      a.StressLevel,
		ActivityLevel:    a.ActivityLevel,
		CaffeineIntake:   a.Intake.Clone().CaffeineMg,
		WaterIntake:      a.Intake.Clone().WaterMl,
	}
}

// HealthRecord is the body of /predict/concentration and /api/health-metrics.
type HealthRecord struct {
	UserID           string   `json:"user_id"`
	Date             string   `json:"date"`
	HeartRateAvg     float64  `json:"heart_rate_avg"`
	HeartRateResting float64  `json:"heart_rate_resting"`
	SleepDuration    float64  `json:"sleep_duration"`
	SleepQuality     int      `json:"sleep_quality"`
	StepsCount       int      `json:"steps_count"`
	ActiveCalories   float64  `json:"active_calories"`
	StressLevel      int      `json:"stress_level"`
	ActivityLevel    int      `json:"activity_level"`
	CaffeineIntake   *float64 `json:"caffeine_intake,omitempty"`
	WaterIntake      *float64 `json:"water_intake,omitempty"`
}

type FocusScore struct {
	Score           float64   `json:"score"`
	Confidence      float64   `json:"confidence"`
	Recommendations []string  `json:"recommendations"`
	Timestamp       time.Time `json:"timestamp"`
	// Synthetic is set when the score was computed locally instead of by
	// the remote oracle.
	Synthetic bool `json:"synthetic"`
}

type FocusPattern struct {
	DailyAverage     float64    `json:"daily_average"`
	WeeklyTrend      [7]float64 `json:"weekly_trend"`
	PeakHours        []int      `json:"peak_hours"`
	ImprovementAreas []string   `json:"improvement_areas"`
	Synthetic        bool       `json:"synthetic"`
}

// PatternReport is a focus pattern as returned by the remote oracle, before
// normalisation.
type PatternReport struct {
	DailyAverage     float64
	WeeklyTrend      []float64
	PeakHours        []int
	ImprovementAreas []string
}
