// Package workflow mines repeated action sequences into executable
// multi-step workflows and runs them.
package workflow

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/models"
)

// Mining bounds: contiguous subsequences of length 2..5 over the recent
// episode window, surfaced at >= 3 total occurrences and capped at 10 steps.
const (
	minSubsequenceLen = 2
	maxSubsequenceLen = 5
	minOccurrences    = 3
	maxWorkflowSteps  = 10

	// surfaceConfidence is the bar an opportunity must clear to be returned
	surfaceConfidence = 0.75

	mineWindow = 7 * 24 * time.Hour
	mineLimit  = 500

	stepSeparator = "→"
)

// Miner detects automation opportunities from repeated behavior. Known
// frequencies persist across mining runs so occurrence counts accumulate.
type Miner struct {
	episodes memory.EpisodicReader
	logger   *zap.Logger

	mu    sync.Mutex
	known map[uuid.UUID]map[string]int
}

// NewMiner creates a workflow miner
func NewMiner(episodes memory.EpisodicReader, logger *zap.Logger) *Miner {
	return &Miner{
		episodes: episodes,
		logger:   logger,
		known:    make(map[uuid.UUID]map[string]int),
	}
}

// DetectOpportunities mines the user's recent episodes for sequences worth
// automating. Recall failures fail open with no opportunities.
func (m *Miner) DetectOpportunities(ctx context.Context, userID uuid.UUID) []models.Opportunity {
	episodes, err := m.episodes.RecallRecent(ctx, userID, mineWindow, mineLimit)
	if err != nil {
		m.logger.Warn("opportunity_recall_failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil
	}

	actions := make([]string, 0, len(episodes))
	for _, episode := range episodes {
		actions = append(actions, episode.Action)
	}

	counts := countSubsequences(actions)

	m.mu.Lock()
	knownForUser, ok := m.known[userID]
	if !ok {
		knownForUser = make(map[string]int)
		m.known[userID] = knownForUser
	}
	for key, count := range counts {
		if count > knownForUser[key] {
			knownForUser[key] = count
		}
	}
	merged := make(map[string]int, len(knownForUser))
	for key, count := range knownForUser {
		merged[key] = count
	}
	m.mu.Unlock()

	var opportunities []models.Opportunity
	for key, occurrences := range merged {
		sequence := strings.Split(key, stepSeparator)
		if occurrences < minOccurrences || len(sequence) > maxWorkflowSteps {
			continue
		}
		confidence := automationConfidence(occurrences, len(sequence))
		if confidence < surfaceConfidence {
			continue
		}
		opportunities = append(opportunities, models.Opportunity{
			Sequence:    sequence,
			Occurrences: occurrences,
			Confidence:  confidence,
		})
	}

	// Longer, more frequent sequences first so the most automatable
	// behavior leads the list.
	sort.Slice(opportunities, func(i, j int) bool {
		if opportunities[i].Confidence != opportunities[j].Confidence {
			return opportunities[i].Confidence > opportunities[j].Confidence
		}
		return len(opportunities[i].Sequence) > len(opportunities[j].Sequence)
	})

	return opportunities
}

// countSubsequences counts every contiguous subsequence of the allowed
// lengths, skipping self-overlapping repeats of the same key at the same
// position.
func countSubsequences(actions []string) map[string]int {
	counts := make(map[string]int)
	for length := minSubsequenceLen; length <= maxSubsequenceLen; length++ {
		for start := 0; start+length <= len(actions); start++ {
			key := strings.Join(actions[start:start+length], stepSeparator)
			counts[key]++
		}
	}
	return counts
}

// automationConfidence combines an occurrence term with fixed bonuses for
// having any history at all and for short sequences, clamped to 1.
func automationConfidence(occurrences, steps int) float64 {
	confidence := 0.5
	occurrenceBonus := float64(occurrences) / 10
	if occurrenceBonus > 0.3 {
		occurrenceBonus = 0.3
	}
	confidence += occurrenceBonus
	confidence += 0.1 // history bonus
	if steps <= 3 {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
