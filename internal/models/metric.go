package models

import "time"

// Trend classifies the direction of an action type's recent success rate.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// TrendWindow is the number of recent observations compared half-against-half
// when classifying a trend.
const TrendWindow = 20

// TrendDelta is the first-half/second-half success-rate difference beyond
// which a trend is no longer considered stable.
const TrendDelta = 0.1

// ActionMetric holds rolling statistics for one action type. AvgTime is a
// running incremental mean; Trend compares the first and second halves of
// the most recent TrendWindow observations.
type ActionMetric struct {
	Action      string        `json:"action"`
	Total       int           `json:"total"`
	Successful  int           `json:"successful"`
	Failed      int           `json:"failed"`
	AvgTime     time.Duration `json:"avg_time"`
	SuccessRate float64       `json:"success_rate"`
	Trend       Trend         `json:"trend"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Regression marks an action type whose performance declined; pruned after
// seven days.
type Regression struct {
	Action     string    `json:"action"`
	FromRate   float64   `json:"from_rate"`
	ToRate     float64   `json:"to_rate"`
	DetectedAt time.Time `json:"detected_at"`
}
