package models

import "time"

type Trigger string

const (
	TriggerPeriodic Trigger = "periodic"
	TriggerUser     Trigger = "user"
)

// Snapshot is the outcome of one refresh run.
type Snapshot struct {
	RunID       string             `json:"run_id"`
	UserID      string             `json:"user_id"`
	Trigger     Trigger            `json:"trigger"`
	Aggregate   BiometricAggregate `json:"aggregate"`
	Score       FocusScore         `json:"score"`
	Pattern     FocusPattern       `json:"pattern"`
	CompletedAt time.Time          `json:"completed_at"`
}
