package tuner

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/models"
)

// DefaultLearningRate is the multiplicative step applied per weight update
const DefaultLearningRate = 0.1

// Acceptance-rate bands that move a multiplier. Between the two bands the
// multiplier holds steady.
const (
	boostAbove  = 0.8
	reduceBelow = 0.7
)

const weightShards = 32

type weightKey struct {
	userID uuid.UUID
	ptype  models.StrategyType
	action string
}

type weightShard struct {
	mu      sync.Mutex
	weights map[weightKey]*models.PatternWeight
}

// WeightStore holds per-(type, action) confidence multipliers with sharded
// locking so concurrent updates to the same key serialize and the bounded
// multiplier invariant holds. Reads for scoring are lock-cheap.
type WeightStore struct {
	shards       [weightShards]*weightShard
	repo         database.PatternWeightRepositoryInterface
	logger       *zap.Logger
	learningRate float64
	now          func() time.Time
}

// NewWeightStore creates a weight store backed by the pattern weight repository
func NewWeightStore(repo database.PatternWeightRepositoryInterface, learningRate float64, logger *zap.Logger) *WeightStore {
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	store := &WeightStore{
		repo:         repo,
		logger:       logger,
		learningRate: learningRate,
		now:          time.Now,
	}
	for i := range store.shards {
		store.shards[i] = &weightShard{weights: make(map[weightKey]*models.PatternWeight)}
	}
	return store
}

func (s *WeightStore) shard(key weightKey) *weightShard {
	h := fnv.New32a()
	h.Write(key.userID[:])
	h.Write([]byte(key.ptype))
	h.Write([]byte(key.action))
	return s.shards[h.Sum32()%weightShards]
}

// Multiplier returns the current multiplier for a key, defaulting to neutral
func (s *WeightStore) Multiplier(ctx context.Context, userID uuid.UUID, ptype models.StrategyType, action string) float64 {
	key := weightKey{userID: userID, ptype: ptype, action: action}
	shard := s.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	weight := s.loadLocked(ctx, shard, key)
	if weight == nil {
		return models.MultiplierInitial
	}
	return weight.Multiplier
}

// Record applies one acceptance observation to a key. The multiplier moves
// multiplicatively by the learning rate scaled by scale (the orchestrator's
// decaying global rate), only when the acceptance rate sits outside the
// hold band, and is always clamped to its bounds.
func (s *WeightStore) Record(ctx context.Context, userID uuid.UUID, ptype models.StrategyType, action string, accepted bool, scale float64) *models.PatternWeight {
	if scale <= 0 {
		scale = 1
	}
	key := weightKey{userID: userID, ptype: ptype, action: action}
	shard := s.shard(key)

	shard.mu.Lock()
	weight := s.loadLocked(ctx, shard, key)
	if weight == nil {
		weight = &models.PatternWeight{
			Type:       ptype,
			Action:     action,
			Multiplier: models.MultiplierInitial,
		}
		shard.weights[key] = weight
	}

	weight.Total++
	if accepted {
		weight.Positive++
	} else {
		weight.Negative++
	}

	step := s.learningRate * scale
	rate := weight.AcceptanceRate()
	switch {
	case rate > boostAbove:
		weight.Multiplier *= 1 + step
	case rate < reduceBelow:
		weight.Multiplier *= 1 - step
	}
	weight.Multiplier = models.ClampMultiplier(weight.Multiplier)
	weight.UpdatedAt = s.now()

	snapshot := *weight
	shard.mu.Unlock()

	if err := s.repo.Upsert(ctx, userID, &snapshot); err != nil {
		s.logger.Error("pattern_weight_persist_failed",
			zap.String("pattern_type", string(ptype)),
			zap.String("action", action),
			zap.Error(err))
	}

	return &snapshot
}

// Decay multiplicatively relaxes every loaded multiplier toward neutral.
// Explicit decay is the only path that moves a multiplier without feedback.
func (s *WeightStore) Decay(ctx context.Context, userID uuid.UUID, factor float64) {
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, weight := range shard.weights {
			if key.userID != userID {
				continue
			}
			weight.Multiplier = models.ClampMultiplier(
				models.MultiplierInitial + (weight.Multiplier-models.MultiplierInitial)*factor)
			weight.UpdatedAt = s.now()
			snapshot := *weight
			shard.mu.Unlock()
			if err := s.repo.Upsert(ctx, userID, &snapshot); err != nil {
				s.logger.Error("pattern_weight_persist_failed",
					zap.String("action", key.action),
					zap.Error(err))
			}
			shard.mu.Lock()
		}
		shard.mu.Unlock()
	}
}

// Snapshot returns all loaded weights for a user
func (s *WeightStore) Snapshot(userID uuid.UUID) []*models.PatternWeight {
	var weights []*models.PatternWeight
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, weight := range shard.weights {
			if key.userID == userID {
				snapshot := *weight
				weights = append(weights, &snapshot)
			}
		}
		shard.mu.Unlock()
	}
	return weights
}

// Warm loads a user's persisted weights into memory
func (s *WeightStore) Warm(ctx context.Context, userID uuid.UUID) error {
	weights, err := s.repo.GetAllByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, weight := range weights {
		key := weightKey{userID: userID, ptype: weight.Type, action: weight.Action}
		shard := s.shard(key)
		shard.mu.Lock()
		if _, ok := shard.weights[key]; !ok {
			w := *weight
			shard.weights[key] = &w
		}
		shard.mu.Unlock()
	}
	return nil
}

// loadLocked fetches a weight from the repo on in-memory miss. Lookup errors
// fail open: the caller sees no weight rather than an error.
func (s *WeightStore) loadLocked(ctx context.Context, shard *weightShard, key weightKey) *models.PatternWeight {
	if weight, ok := shard.weights[key]; ok {
		return weight
	}

	weight, err := s.repo.Get(ctx, key.userID, string(key.ptype), key.action)
	if err != nil {
		s.logger.Warn("pattern_weight_lookup_failed",
			zap.String("action", key.action),
			zap.Error(err))
		return nil
	}
	if weight == nil {
		return nil
	}
	shard.weights[key] = weight
	return weight
}
