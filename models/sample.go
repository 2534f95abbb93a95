package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type Metric int

const (
	HeartRate Metric = iota + 1
	RestingHeartRate
	Steps
	SleepInterval
	ActiveEnergy
)

// AllMetrics lists every metric kind in collection order.
var AllMetrics = []Metric{HeartRate, RestingHeartRate, Steps, SleepInterval, ActiveEnergy}

func (m Metric) String() string {
	switch m {
	case HeartRate:
		return "heart_rate"
	case RestingHeartRate:
		return "resting_heart_rate"
	case Steps:
		return "steps"
	case SleepInterval:
		return "sleep"
	case ActiveEnergy:
		return "active_energy"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

func ParseMetric(s string) (Metric, error) {
	for _, m := range AllMetrics {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}

func (m Metric) Valid() bool {
	return m >= HeartRate && m <= ActiveEnergy
}

func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown metric %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Metric) UnmarshalText(b []byte) error {
	parsed, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type SleepState string

const (
	SleepUnrecorded SleepState = ""
	SleepAsleep     SleepState = "asleep"
	SleepInBed      SleepState = "in_bed"
	SleepAwake      SleepState = "awake"
)

// CountsAsSleep reports whether an interval in this state adds to sleep
// duration. Unrecorded intervals count.
func (s SleepState) CountsAsSleep() bool {
	return s == SleepAsleep || s == SleepInBed || s == SleepUnrecorded
}

// MaxSampleValue bounds a single reading. No real heart rate, step interval
// or energy sample comes near it.
const MaxSampleValue = 1e6

// RawSample is a single reading from the device health store.
type RawSample struct {
	Metric Metric     `json:"metric"`
	Value  float64    `json:"value"`
	Start  time.Time  `json:"start_time"`
	End    time.Time  `json:"end_time"`
	State  SleepState `json:"state,omitempty"`
}

func (s *RawSample) Validate() error {
	if !s.Metric.Valid() {
		return errors.New("metric is required")
	}
	if s.Start.IsZero() {
		return errors.New("start_time is required")
	}
	if s.End.IsZero() {
		s.End = s.Start
	}
	if s.End.Before(s.Start) {
		return errors.New("end_time must not be before start_time")
	}
	switch {
	case math.IsNaN(s.Value) || math.IsInf(s.Value, 0):
		return errors.New("value must be a finite number")
	case s.Value < 0:
		return errors.New("value must be non-negative")
	case s.Value > MaxSampleValue:
		return fmt.Errorf("value must not exceed %g", float64(MaxSampleValue))
	}
	switch s.State {
	case SleepUnrecorded:
	case SleepAsleep, SleepInBed, SleepAwake:
		if s.Metric != SleepInterval {
			return errors.New("state is only valid for sleep samples")
		}
	default:
		return fmt.Errorf("unknown sleep state %q", s.State)
	}
	return nil
}

// Duration is the span covered by the sample; zero for instantaneous metrics.
func (s RawSample) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
