package models

import (
	"time"

	"github.com/google/uuid"
)

// Preferences holds explicit user preferences consulted during prediction.
type Preferences struct {
	PreferredActions []string `json:"preferred_actions,omitempty"`
	DisabledActions  []string `json:"disabled_actions,omitempty"`
	AutoFormat       bool     `json:"auto_format,omitempty"`
}

// Habit is a recurring behavior (e.g. "runs tests after editing") with the
// hour-of-day window it is usually seen in.
type Habit struct {
	Action    string  `json:"action"`
	HourStart int     `json:"hour_start"`
	HourEnd   int     `json:"hour_end"`
	Weekdays  bool    `json:"weekdays"`
	Strength  float64 `json:"strength"`
}

// UserModel is a per-user snapshot the Anticipation Predictor reads.
// It is rebuilt wholesale from the persistence layer on a fixed interval
// rather than updated incrementally; predictions made against a stale
// model are not flagged.
type UserModel struct {
	UserID          uuid.UUID                    `json:"user_id"`
	Sequences       map[string]int               `json:"sequences"`
	Habits          []Habit                      `json:"habits"`
	Workflows       []Workflow                   `json:"workflows"`
	ProjectPatterns map[string][]SequencePattern `json:"project_patterns"`
	Preferences     Preferences                  `json:"preferences"`
	BuiltAt         time.Time                    `json:"built_at"`
}

// Stale reports whether the snapshot is older than the rebuild interval.
func (m *UserModel) Stale(now time.Time, rebuildAfter time.Duration) bool {
	return now.Sub(m.BuiltAt) >= rebuildAfter
}

// Profile is the bootstrap payload from the user profile store.
type Profile struct {
	UserID      uuid.UUID         `json:"user_id"`
	Preferences Preferences       `json:"preferences"`
	Patterns    []SequencePattern `json:"patterns"`
	Facts       []Fact            `json:"facts"`
}

// Fact is a high-confidence statement about the user's frequent actions,
// consumed by the historical strategy when confidence exceeds 0.7.
type Fact struct {
	Content    string  `json:"content"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}
