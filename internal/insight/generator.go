// Package insight derives prioritized, human-readable recommendations from
// pattern, performance, and feedback data. It is read-only: nothing here
// mutates state consumed by scoring.
package insight

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/tuner"
)

const (
	// Surfacing bar: insights must be actionable with confidence above 0.7.
	surfaceConfidence = 0.7

	// Automation opportunity bar over pattern weights.
	automationOccurrences = 10
	automationConfidence  = 0.8

	// Per-action success rate below this is critical.
	criticalSuccessRate = 0.5

	// Actions averaging longer than this invite optimization.
	slowActionTime = 30 * time.Second

	// Overall acceptance below this with enough samples is systemic.
	systemicAcceptanceRate = 0.5
	systemicSampleFloor    = 20

	maxRecommendations = 5
	metricSampleFloor  = 5
)

// FeedbackStats is the read-side view of the feedback collector.
type FeedbackStats interface {
	AcceptanceRate() float64
	Correlations() []models.Correlation
}

// Generator scans the stores and emits insights that clear the surfacing bar.
type Generator struct {
	weights  *tuner.WeightStore
	metrics  database.ActionMetricRepositoryInterface
	feedback FeedbackStats
	logger   *zap.Logger
	now      func() time.Time
}

// NewGenerator creates an insight generator
func NewGenerator(weights *tuner.WeightStore, metrics database.ActionMetricRepositoryInterface, feedback FeedbackStats, logger *zap.Logger) *Generator {
	return &Generator{
		weights:  weights,
		metrics:  metrics,
		feedback: feedback,
		logger:   logger,
		now:      time.Now,
	}
}

// GenerateInsights scans patterns, performance, and feedback for a user and
// returns the insights that are actionable with confidence above 0.7.
func (g *Generator) GenerateInsights(ctx context.Context, userID uuid.UUID) []models.Insight {
	var insights []models.Insight
	insights = append(insights, g.patternInsights(userID)...)
	insights = append(insights, g.performanceInsights(ctx, userID)...)
	insights = append(insights, g.feedbackInsights()...)

	surfaced := insights[:0]
	for _, insight := range insights {
		if insight.Actionable && insight.Confidence > surfaceConfidence {
			surfaced = append(surfaced, insight)
		}
	}

	g.logger.Debug("insights_generated",
		zap.String("user_id", userID.String()),
		zap.Int("surfaced", len(surfaced)))
	return surfaced
}

// Report produces a periodic rollup with a prioritized top recommendation
// list, ordered critical, skill gap, optimization, systemic.
func (g *Generator) Report(ctx context.Context, userID uuid.UUID, period models.ReportPeriod) *models.Report {
	insights := g.GenerateInsights(ctx, userID)

	recommendations := make([]models.Insight, len(insights))
	copy(recommendations, insights)
	sort.SliceStable(recommendations, func(i, j int) bool {
		pi, pj := categoryPriority(recommendations[i].Category), categoryPriority(recommendations[j].Category)
		if pi != pj {
			return pi < pj
		}
		return recommendations[i].Confidence > recommendations[j].Confidence
	})
	if len(recommendations) > maxRecommendations {
		recommendations = recommendations[:maxRecommendations]
	}

	return &models.Report{
		Period:          period,
		GeneratedAt:     g.now(),
		Insights:        insights,
		Recommendations: recommendations,
	}
}

// patternInsights flags heavily used, well-accepted patterns as automation
// opportunities.
func (g *Generator) patternInsights(userID uuid.UUID) []models.Insight {
	var insights []models.Insight
	for _, weight := range g.weights.Snapshot(userID) {
		rate := weight.AcceptanceRate()
		if weight.Total < automationOccurrences || rate <= automationConfidence {
			continue
		}
		impact := models.ImpactMedium
		if weight.Total >= 2*automationOccurrences {
			impact = models.ImpactHigh
		}
		insights = append(insights, models.Insight{
			Category:       models.InsightAutomation,
			Title:          fmt.Sprintf("Automate %q", weight.Action),
			Recommendation: fmt.Sprintf("You accept %q suggestions %.0f%% of the time across %d uses; a workflow could run it automatically.", weight.Action, rate*100, weight.Total),
			Confidence:     models.ClampConfidence(rate),
			Impact:         impact,
			Actionable:     true,
			CreatedAt:      g.now(),
		})
	}
	return insights
}

// performanceInsights covers failing actions, declining trends, regressions,
// and slow actions.
func (g *Generator) performanceInsights(ctx context.Context, userID uuid.UUID) []models.Insight {
	var insights []models.Insight

	metrics, err := g.metrics.GetAllByUserID(ctx, userID)
	if err != nil {
		g.logger.Warn("metric_scan_failed", zap.Error(err))
		metrics = nil
	}
	for _, metric := range metrics {
		if metric.Total < metricSampleFloor {
			continue
		}
		if metric.SuccessRate < criticalSuccessRate {
			insights = append(insights, models.Insight{
				Category:       models.InsightCritical,
				Title:          fmt.Sprintf("%q is failing more than it succeeds", metric.Action),
				Recommendation: fmt.Sprintf("Only %.0f%% of %d %q executions succeed; review its inputs before relying on it.", metric.SuccessRate*100, metric.Total, metric.Action),
				Confidence:     models.ClampConfidence(1 - metric.SuccessRate),
				Impact:         models.ImpactHigh,
				Actionable:     true,
				CreatedAt:      g.now(),
			})
		}
		if metric.Trend == models.TrendDeclining {
			insights = append(insights, models.Insight{
				Category:       models.InsightSkillGap,
				Title:          fmt.Sprintf("%q success is declining", metric.Action),
				Recommendation: fmt.Sprintf("Recent %q executions succeed less often than earlier ones; revisit how it is being used.", metric.Action),
				Confidence:     0.75,
				Impact:         models.ImpactMedium,
				Actionable:     true,
				CreatedAt:      g.now(),
			})
		}
		if metric.AvgTime > slowActionTime {
			insights = append(insights, models.Insight{
				Category:       models.InsightOptimization,
				Title:          fmt.Sprintf("%q is slow", metric.Action),
				Recommendation: fmt.Sprintf("%q averages %s per execution; caching or batching could reduce that.", metric.Action, metric.AvgTime.Round(time.Second)),
				Confidence:     0.72,
				Impact:         models.ImpactMedium,
				Actionable:     true,
				CreatedAt:      g.now(),
			})
		}
	}

	regressions, err := g.metrics.GetRegressions(ctx, userID, g.now().Add(-7*24*time.Hour))
	if err != nil {
		g.logger.Warn("regression_scan_failed", zap.Error(err))
		regressions = nil
	}
	for _, regression := range regressions {
		drop := regression.FromRate - regression.ToRate
		insights = append(insights, models.Insight{
			Category:       models.InsightCritical,
			Title:          fmt.Sprintf("Regression detected in %q", regression.Action),
			Recommendation: fmt.Sprintf("%q dropped from %.0f%% to %.0f%% success; a recent change likely broke it.", regression.Action, regression.FromRate*100, regression.ToRate*100),
			Confidence:     models.ClampConfidence(0.7 + drop),
			Impact:         models.ImpactHigh,
			Actionable:     true,
			CreatedAt:      g.now(),
		})
	}

	return insights
}

// feedbackInsights raises a systemic flag when suggestions as a whole are
// being rejected.
func (g *Generator) feedbackInsights() []models.Insight {
	if g.feedback == nil {
		return nil
	}

	rate := g.feedback.AcceptanceRate()
	samples := len(g.feedback.Correlations())
	if rate >= systemicAcceptanceRate || samples < systemicSampleFloor {
		return nil
	}

	return []models.Insight{{
		Category:       models.InsightSystemic,
		Title:          "Most suggestions are being rejected",
		Recommendation: fmt.Sprintf("Overall acceptance is %.0f%%; thresholds may be too low for this user's working style.", rate*100),
		Confidence:     0.75,
		Impact:         models.ImpactHigh,
		Actionable:     true,
		CreatedAt:      g.now(),
	}}
}

func categoryPriority(category models.InsightCategory) int {
	switch category {
	case models.InsightCritical:
		return 0
	case models.InsightSkillGap:
		return 1
	case models.InsightOptimization:
		return 2
	case models.InsightSystemic:
		return 3
	default:
		return 4
	}
}
