package models

import "time"

// InsightCategory groups insights for prioritization. Priority order for
// the top-recommendation list: critical > skill gap > optimization > systemic.
type InsightCategory string

const (
	InsightCritical     InsightCategory = "critical"
	InsightSkillGap     InsightCategory = "skill_gap"
	InsightOptimization InsightCategory = "optimization"
	InsightSystemic     InsightCategory = "systemic"
	InsightAutomation   InsightCategory = "automation"
)

// InsightImpact estimates how much acting on an insight would matter.
type InsightImpact string

const (
	ImpactHigh   InsightImpact = "high"
	ImpactMedium InsightImpact = "medium"
	ImpactLow    InsightImpact = "low"
)

// Insight is a human-readable recommendation derived from pattern,
// performance, and feedback data. Consumers only see insights that are
// actionable with confidence above 0.7.
type Insight struct {
	Category       InsightCategory `json:"category"`
	Title          string          `json:"title"`
	Recommendation string          `json:"recommendation"`
	Confidence     float64         `json:"confidence"`
	Impact         InsightImpact   `json:"impact"`
	Actionable     bool            `json:"actionable"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ReportPeriod selects a rollup window.
type ReportPeriod string

const (
	ReportDaily  ReportPeriod = "daily"
	ReportWeekly ReportPeriod = "weekly"
)

// Report is a periodic rollup with a prioritized top-5 recommendation list.
type Report struct {
	Period          ReportPeriod `json:"period"`
	GeneratedAt     time.Time    `json:"generated_at"`
	Insights        []Insight    `json:"insights"`
	Recommendations []Insight    `json:"recommendations"`
}
