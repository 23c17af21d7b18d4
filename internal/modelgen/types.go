// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package modelgen synthesizes candidate work/rest scheduling models from a
// user assessment and observed usage data. Confidence scores are closed-form
// heuristics over signal counts, not learned weights.
package modelgen

import (
	"time"
)

// Work styles a user can declare in an assessment.
const (
	WorkStyleSustainedFlow   = "sustained-flow"
	WorkStyleShortIterations = "short-iterations"
	WorkStyleBalanced        = "balanced"
)

// Scenario tags. One candidate model is generated per scenario.
const (
	ScenarioGeneralFlow  = "general-flow"
	ScenarioMorningFocus = "morning-focus"
	ScenarioAfternoon    = "afternoon-push"
	ScenarioEvening      = "evening-winddown"
	ScenarioCreative     = "creative-work"
	ScenarioDebugging    = "debugging-session"
	ScenarioLearning     = "learning-session"
)

// Scenarios lists every scenario in generation order.
var Scenarios = []string{
	ScenarioGeneralFlow,
	ScenarioMorningFocus,
	ScenarioAfternoon,
	ScenarioEvening,
	ScenarioCreative,
	ScenarioDebugging,
	ScenarioLearning,
}

// Assessment is the user's self-reported working profile.
type Assessment struct {
	ID                 string  `json:"id"`
	PreferredWorkStyle string  `json:"preferred_work_style"`
	CompletionScore    float64 `json:"completion_score"`   // 0-1
	AdaptabilityScore  float64 `json:"adaptability_score"` // 0-1
}

// ObservedData aggregates the activity, wellness, and usage signals feeding
// generation. Zero values mean "no signal" and only lower confidence.
type ObservedData struct {
	AverageSessionMinutes float64 `json:"average_session_minutes"`
	ActivitySignals       int     `json:"activity_signals"`
	UsageHistorySessions  int     `json:"usage_history_sessions"`
	HourlyEnergySamples   int     `json:"hourly_energy_samples"`

	// LastBurnoutAt is the most recent high-severity burnout indicator.
	// Zero when none occurred.
	LastBurnoutAt time.Time `json:"last_burnout_at,omitempty"`
}

// ModelMetrics holds observed performance for a model once it has been used.
// Fresh candidates start at zero.
type ModelMetrics struct {
	Sessions         int     `json:"sessions"`
	SuccessRate      float64 `json:"success_rate"`
	PerformanceScore float64 `json:"performance_score"`
}

// GeneratedModel is one candidate scheduling model. Treated as an immutable
// value: transitions produce a new value instead of mutating in place.
type GeneratedModel struct {
	ID              string `json:"id"`
	Scenario        string `json:"scenario"`
	WorkMinutes     int    `json:"work_minutes"` // [15,120], multiple of 5
	RestMinutes     int    `json:"rest_minutes"` // [3,30]
	Cycles          int    `json:"cycles,omitempty"`
	LongRestMinutes int    `json:"long_rest_minutes,omitempty"`

	Confidence   float64   `json:"confidence"` // [0.1,1.0]
	AssessmentID string    `json:"assessment_id"`
	CreatedAt    time.Time `json:"created_at"`

	AdaptationHistory []string     `json:"adaptation_history,omitempty"`
	Metrics           ModelMetrics `json:"metrics"`
}

// GenerationResult buckets the surviving candidates.
type GenerationResult struct {
	Recommended  []GeneratedModel `json:"recommended"`  // top-3, confidence >= 0.7
	Alternatives []GeneratedModel `json:"alternatives"` // confidence in [0.5, 0.7)
	Truncated    bool             `json:"truncated"`    // latency budget exceeded
	Elapsed      time.Duration    `json:"elapsed"`
}
