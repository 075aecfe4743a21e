package models

import (
	"time"

	"github.com/google/uuid"
)

// EpisodeType categorizes what kind of event an episode records
type EpisodeType string

const (
	// EpisodeTypeAction records an action the user performed
	EpisodeTypeAction EpisodeType = "action"
	// EpisodeTypeError records an error the user encountered
	EpisodeTypeError EpisodeType = "error"
	// EpisodeTypeSuggestion records a suggestion that was surfaced
	EpisodeTypeSuggestion EpisodeType = "suggestion"
)

// EpisodeRecord is a single event in a user's interaction history
type EpisodeRecord struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	Type      EpisodeType `json:"type"`
	Action    string      `json:"action"`
	SessionID string      `json:"session_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
