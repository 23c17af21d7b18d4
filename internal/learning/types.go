// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package learning reduces completed work sessions into compact labeled
// data points used as aggregation and model-generation input.
package learning

import (
	"time"

	"github.com/flowpulse/flowpulse/internal/telemetry"
)

// SessionCounters are the raw counters accumulated over one work session.
type SessionCounters struct {
	CompletionRate  float64 `json:"completion_rate"` // 0-1
	Interruptions   int     `json:"interruptions"`
	BreaksTaken     int     `json:"breaks_taken"`
	FocusPeriods    int     `json:"focus_periods"`
	ManualOverrides int     `json:"manual_overrides"`
	DurationMinutes int     `json:"duration_minutes"`
}

// Metrics are the raw session metrics carried on a data point.
type Metrics struct {
	CompletionRate  float64 `json:"completion_rate"`
	Interruptions   int     `json:"interruptions"`
	BreaksTaken     int     `json:"breaks_taken"`
	FocusPeriods    int     `json:"focus_periods"`
	ManualOverrides int     `json:"manual_overrides"`
}

// Break pattern classifications derived from session counters.
const (
	BreakPatternSkips    = "skips-breaks"
	BreakPatternFrequent = "frequent-short"
	BreakPatternRegular  = "regular"
)

// Hints are the derived tuning hints on a data point.
type Hints struct {
	// IdealDurationDelta is the suggested work duration adjustment in minutes.
	IdealDurationDelta int `json:"ideal_duration_delta"`

	// PreferredBreakPattern is one of the BreakPattern constants.
	PreferredBreakPattern string `json:"preferred_break_pattern"`

	// OptimalBreakFrequency is the suggested minutes between breaks.
	OptimalBreakFrequency int `json:"optimal_break_frequency"`
}

// DataPoint is a compact labeled summary of one completed work session.
type DataPoint struct {
	Timestamp time.Time                 `json:"timestamp"`
	ModelID   string                    `json:"model_id,omitempty"`
	Success   bool                      `json:"success"`
	Context   telemetry.ContextSnapshot `json:"context"`
	Metrics   Metrics                   `json:"metrics"`
	Hints     Hints                     `json:"hints"`
}
