package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/praxislabs/foresight/internal/models"
)

func TestEpisodeRepository_GetRecent_WindowAndLimit(t *testing.T) {
	// This test requires a real database connection
	// For integration tests, we'd use testcontainers or an in-memory DB
	t.Skip("Requires database setup - implement with testcontainers or integration test setup")
}

func TestEpisodeRepository_GetBySessionID_Ordering(t *testing.T) {
	t.Skip("Requires database setup - implement with testcontainers or integration test setup")
}

// GetRecent selects newest-first so the limit keeps the latest events, then
// reverses to chronological order. With 11 events and a limit of 10, the
// slice tail must be the 11th (newest) event, not the 10th oldest.
func TestReverseEpisodesRestoresChronologicalOrder(t *testing.T) {
	t.Parallel()

	now := time.Now()
	newestFirst := make([]*models.EpisodeRecord, 0, 10)
	for i := 10; i >= 1; i-- {
		newestFirst = append(newestFirst, &models.EpisodeRecord{
			ID:        uuid.New(),
			Action:    fmt.Sprintf("a%d", i),
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
	}

	reverseEpisodes(newestFirst)

	if got := newestFirst[0].Action; got != "a1" {
		t.Errorf("first action = %q, want a1", got)
	}
	if got := newestFirst[len(newestFirst)-1].Action; got != "a10" {
		t.Errorf("last action = %q, want the newest event a10", got)
	}
	for i := 1; i < len(newestFirst); i++ {
		if newestFirst[i].CreatedAt.Before(newestFirst[i-1].CreatedAt) {
			t.Fatalf("episodes out of chronological order at index %d", i)
		}
	}
}

func TestReverseEpisodesHandlesShortSlices(t *testing.T) {
	t.Parallel()

	reverseEpisodes(nil)

	single := []*models.EpisodeRecord{{Action: "commit"}}
	reverseEpisodes(single)
	if single[0].Action != "commit" {
		t.Error("single-element slice changed by reversal")
	}
}
