package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FeedbackKind distinguishes inferred from user-stated feedback.
type FeedbackKind string

const (
	FeedbackImplicit FeedbackKind = "implicit"
	FeedbackExplicit FeedbackKind = "explicit"
)

// Signal is the behavioral signal inferred from an implicit feedback event.
type Signal string

const (
	SignalModification Signal = "modification"
	SignalRetry        Signal = "retry"
	SignalSuccess      Signal = "success"
	SignalFailure      Signal = "failure"
)

// Sentiment is the polarity mapped from an explicit 1-5 rating:
// >=4 positive, 3 neutral, <=2 negative.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// CorrectionCategory classifies free-text corrections by keyword.
type CorrectionCategory string

const (
	CorrectionParameter CorrectionCategory = "parameter"
	CorrectionSequence  CorrectionCategory = "sequence"
	CorrectionTiming    CorrectionCategory = "timing"
	CorrectionGeneral   CorrectionCategory = "general"
)

// FeedbackRecord is an immutable record of a suggestion outcome. It feeds
// both pattern-weight updates and acceptance-rate aggregates.
type FeedbackRecord struct {
	ID           uuid.UUID          `json:"id"`
	SuggestionID uuid.UUID          `json:"suggestion_id"`
	UserID       uuid.UUID          `json:"user_id"`
	SessionID    string             `json:"session_id,omitempty"`
	Type         StrategyType       `json:"type"`
	Action       string             `json:"action"`
	Confidence   float64            `json:"confidence"`
	Accepted     bool               `json:"accepted"`
	Kind         FeedbackKind       `json:"kind"`
	Signal       Signal             `json:"signal,omitempty"`
	Rating       int                `json:"rating,omitempty"`
	Sentiment    Sentiment          `json:"sentiment,omitempty"`
	Correction   string             `json:"correction,omitempty"`
	Category     CorrectionCategory `json:"category,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

// InferSignal maps an action-type tag to a behavioral signal.
func InferSignal(actionType string) Signal {
	tag := strings.ToLower(actionType)
	switch {
	case strings.Contains(tag, "modif") || strings.Contains(tag, "edit"):
		return SignalModification
	case strings.Contains(tag, "retry") || strings.Contains(tag, "again"):
		return SignalRetry
	case strings.Contains(tag, "fail") || strings.Contains(tag, "error") || strings.Contains(tag, "abandon"):
		return SignalFailure
	default:
		return SignalSuccess
	}
}

// SentimentFromRating maps a 1-5 rating to its polarity.
func SentimentFromRating(rating int) Sentiment {
	switch {
	case rating >= 4:
		return SentimentPositive
	case rating <= 2:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Correlation records a feedback event paired with a recent action whose
// combined time-decay/session/type score exceeded the recording threshold.
type Correlation struct {
	FeedbackID uuid.UUID `json:"feedback_id"`
	Action     string    `json:"action"`
	ActionType string    `json:"action_type"`
	Score      float64   `json:"score"`
	Timestamp  time.Time `json:"timestamp"`
}

// FeedbackPattern is a durable pattern mined from grouped feedback events.
// Persisted once the group reaches three occurrences above the confidence bar.
type FeedbackPattern struct {
	ID          uuid.UUID `json:"id"`
	Signal      Signal    `json:"signal"`
	ActionType  string    `json:"action_type"`
	Abandoned   bool      `json:"abandoned"`
	Occurrences int       `json:"occurrences"`
	Confidence  float64   `json:"confidence"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}
