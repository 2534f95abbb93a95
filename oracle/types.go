package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"focus-pipeline/models"
)

const dateLayout = "2006-01-02"

// PlaceholderRecommendation fills a prediction that came back without any
// recommendation.
const PlaceholderRecommendation = "Not enough data yet; more measurements will improve the prediction."

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// stringList decodes either a JSON string or an array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*l = stringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("recommendations must be a string or a list of strings: %w", err)
	}
	*l = many
	return nil
}

type predictionResponse struct {
	ConcentrationScore *float64   `json:"concentration_score"`
	Confidence         float64    `json:"confidence"`
	Recommendations    stringList `json:"recommendations"`
	Recommendation     stringList `json:"recommendation"`
	Timestamp          string     `json:"timestamp"`
}

func (p predictionResponse) normalize(now time.Time) (models.FocusScore, error) {
	if p.ConcentrationScore == nil || math.IsNaN(*p.ConcentrationScore) || math.IsInf(*p.ConcentrationScore, 0) {
		return models.FocusScore{}, fmt.Errorf("%w: response has no usable concentration_score", models.ErrOracleFailure)
	}

	recs := p.Recommendations
	if len(recs) == 0 {
		recs = p.Recommendation
	}
	cleaned := make([]string, 0, len(recs))
	for _, r := range recs {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{PlaceholderRecommendation}
	}

	return models.FocusScore{
		Score:           math.Max(0, math.Min(100, *p.ConcentrationScore)),
		Confidence:      math.Max(0, math.Min(1, p.Confidence)),
		Recommendations: cleaned,
		Timestamp:       parseTimestamp(p.Timestamp, now),
	}, nil
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

// hour decodes a peak hour given as an integer or as an "HH:MM" string.
type hour int

func (h *hour) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*h = hour(int(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("peak hour must be a number or an HH:MM string")
	}
	head, _, _ := strings.Cut(strings.TrimSpace(s), ":")
	v, err := strconv.Atoi(head)
	if err != nil {
		return fmt.Errorf("peak hour %q: %w", s, err)
	}
	*h = hour(v)
	return nil
}

type patternResponse struct {
	DailyAverage     *float64  `json:"daily_average"`
	WeeklyTrend      []float64 `json:"weekly_trend"`
	PeakHours        []hour    `json:"peak_hours"`
	ImprovementAreas []string  `json:"improvement_areas"`
}

func (p patternResponse) report() (models.PatternReport, error) {
	if p.DailyAverage == nil {
		return models.PatternReport{}, fmt.Errorf("%w: response has no daily_average", models.ErrOracleFailure)
	}
	hours := make([]int, len(p.PeakHours))
	for i, h := range p.PeakHours {
		hours[i] = int(h)
	}
	return models.PatternReport{
		DailyAverage:     *p.DailyAverage,
		WeeklyTrend:      p.WeeklyTrend,
		PeakHours:        hours,
		ImprovementAreas: p.ImprovementAreas,
	}, nil
}
