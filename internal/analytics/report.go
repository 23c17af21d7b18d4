// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package analytics computes rolling performance intelligence from buffered
// events and learning data. Reports are fully derived, disposable snapshots:
// recomputed on demand, never persisted, no incremental state.
package analytics

import (
	"time"
)

// PerformanceReport is a complete derived snapshot of the user's recent
// performance. It is recomputed from the input buffers on every call.
type PerformanceReport struct {
	GeneratedAt     time.Time           `json:"generated_at"`
	Summary         Summary             `json:"summary"`
	Models          []ModelComparison   `json:"models"`
	Insights        []ContextualInsight `json:"insights"`
	Trends          TrendAnalysis       `json:"trends"`
	Recommendations []string            `json:"recommendations"`
	Predictive      Forecast            `json:"predictive"`
	Shifts          []BehavioralShift   `json:"shifts"`
}

// Summary holds the headline figures.
type Summary struct {
	// ProductivityScore is the overall 0-100 score:
	// completionRate*40 + min(sessionFrequency/10,1)*30 + satisfaction*30, rounded.
	ProductivityScore int `json:"productivity_score"`

	CompletionRate   float64 `json:"completion_rate"`   // 0-1, recent sessions
	SessionFrequency float64 `json:"session_frequency"` // sessions in the last 7 days
	Satisfaction     float64 `json:"satisfaction"`      // 0-1, normalized from the 1-5 feedback scale

	TotalSessions int `json:"total_sessions"`
	TotalEvents   int `json:"total_events"`

	// MostEffectiveModel is the arg-max performance score across the
	// candidate model set. Empty when no model has data.
	MostEffectiveModel string `json:"most_effective_model,omitempty"`
}

// ModelComparison holds per-model performance figures.
type ModelComparison struct {
	ModelID        string  `json:"model_id"`
	Sessions       int     `json:"sessions"`
	CompletionRate float64 `json:"completion_rate"`
	Satisfaction   float64 `json:"satisfaction"` // 0-1 normalized

	// SuccessRate = completionRate*0.7 + satisfaction*0.3.
	SuccessRate float64 `json:"success_rate"`

	// UsageFrequency is sessions per week on this model.
	UsageFrequency float64 `json:"usage_frequency"`

	// PerformanceScore = successRate*0.8 + min(usageFrequency,10)/10*0.2.
	PerformanceScore float64 `json:"performance_score"`
}

// Insight dimensions.
const (
	DimensionTimeOfDay = "time-of-day"
	DimensionTaskType  = "task-type"
	DimensionEnergy    = "energy-level"
)

// ContextualInsight describes effectiveness within one context bucket.
type ContextualInsight struct {
	Dimension        string  `json:"dimension"` // one of the Dimension constants
	Bucket           string  `json:"bucket"`    // e.g. "morning", "coding", "low"
	Effectiveness    float64 `json:"effectiveness"`     // 0-100
	RecommendedModel string  `json:"recommended_model,omitempty"`
	ExpectedOutcome  float64 `json:"expected_outcome"` // 0-100
	SampleSize       int     `json:"sample_size"`
}

// TrendAnalysis holds week-over-week deltas and the long-window baseline
// comparison.
type TrendAnalysis struct {
	// ProductivityTrend is the per-day productivity delta between this week
	// and the previous week.
	ProductivityTrend float64 `json:"productivity_trend"`

	CompletionRateDelta float64 `json:"completion_rate_delta"`
	SatisfactionDelta   float64 `json:"satisfaction_delta"`

	// BaselineComparison is the current productivity score minus the score
	// over the 28-day baseline window.
	BaselineComparison float64 `json:"baseline_comparison"`
}

// Forecast holds short-horizon predictive figures.
type Forecast struct {
	// NextWeekProductivity = clamp(current + productivityTrend*7, 0, 100).
	NextWeekProductivity float64 `json:"next_week_productivity"`
}

// Behavioral shift kinds.
const (
	ShiftBreakSkipping  = "break-skipping"
	ShiftSessionCadence = "session-cadence"
	ShiftDistraction    = "distraction-rate"
)

// BehavioralShift describes a detected change in user behavior between the
// current and previous week.
type BehavioralShift struct {
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	Delta       float64 `json:"delta"`
}

// MetricsSnapshot is the small metric set captured as an adaptation baseline
// and compared at monitoring time.
type MetricsSnapshot struct {
	ProductivityScore float64   `json:"productivity_score"` // 0-100
	CompletionRate    float64   `json:"completion_rate"`    // 0-1
	Satisfaction      float64   `json:"satisfaction"`       // 1-5 scale
	CapturedAt        time.Time `json:"captured_at"`
}
