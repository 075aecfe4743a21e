package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Context is the ephemeral input to suggestion and prediction calls.
// It is reconstructed per call and never persisted; absent fields mean
// "no signal" for the strategies that would read them.
type Context struct {
	UserID       uuid.UUID `json:"user_id"`
	SessionID    string    `json:"session_id,omitempty"`
	ProjectID    string    `json:"project_id,omitempty"`
	CurrentFile  string    `json:"current_file,omitempty"`
	Error        bool      `json:"error,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// HourOfDay returns the hour bucket used by temporal rules and cache keys.
func (c *Context) HourOfDay() int {
	return c.Timestamp.Hour()
}

// HasEmbedding reports whether the cluster strategy has anything to work with.
func (c *Context) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// EmbeddingText renders the context's textual signals for embedding
// backfill. Empty when the context carries no text worth embedding.
func (c *Context) EmbeddingText() string {
	parts := make([]string, 0, 3)
	if c.ProjectID != "" {
		parts = append(parts, c.ProjectID)
	}
	if c.CurrentFile != "" {
		parts = append(parts, c.CurrentFile)
	}
	if c.ErrorMessage != "" {
		parts = append(parts, c.ErrorMessage)
	}
	return strings.Join(parts, " ")
}
