// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapt

import (
	"fmt"
	"time"

	"github.com/flowpulse/flowpulse/internal/analytics"
)

// State is an adaptation's lifecycle state.
type State string

const (
	StateActive        State = "active"
	StateSuccessful    State = "successful"
	StateNeedsRollback State = "needs-rollback"
	StateRolledBack    State = "rolled-back"
)

// validTransitions encodes the state machine. Successful and RolledBack are
// terminal; no transition skips states.
var validTransitions = map[State][]State{
	StateActive:        {StateSuccessful, StateNeedsRollback},
	StateNeedsRollback: {StateRolledBack},
}

// Adaptation is the persisted record of an executed opportunity, tracked
// through its success/rollback lifecycle. Treated as an immutable value:
// transitions return a new record. Terminal records are retained as history,
// never deleted.
type Adaptation struct {
	ID          string          `json:"id"`
	Type        OpportunityType `json:"type"`
	Description string          `json:"description"`
	Source      Opportunity     `json:"source"`
	CreatedAt   time.Time       `json:"created_at"`
	State       State           `json:"state"`

	Baseline           analytics.MetricsSnapshot `json:"baseline"`
	MonitoringInterval time.Duration             `json:"monitoring_interval"`

	Impact             *analytics.MetricsSnapshot `json:"impact,omitempty"`
	OverallImprovement *float64                   `json:"overall_improvement,omitempty"`
	RolledBackAt       *time.Time                 `json:"rolled_back_at,omitempty"`
}

// Transition returns a copy of the adaptation in the new state, or an error
// when the state machine forbids the move.
func (a Adaptation) Transition(to State) (Adaptation, error) {
	for _, allowed := range validTransitions[a.State] {
		if allowed == to {
			a.State = to
			return a, nil
		}
	}
	return a, fmt.Errorf("invalid adaptation transition %s -> %s", a.State, to)
}

// Due reports whether the adaptation has aged past its monitoring interval.
func (a Adaptation) Due(now time.Time) bool {
	return a.State == StateActive && !now.Before(a.CreatedAt.Add(a.MonitoringInterval))
}

// Terminal reports whether the adaptation has reached a final state.
func (a Adaptation) Terminal() bool {
	return a.State == StateSuccessful || a.State == StateRolledBack
}

// overallImprovement compares current metrics against the baseline. The
// satisfaction delta (1-5 scale) is scaled by 20 into percentage space before
// weighting.
func overallImprovement(baseline, current analytics.MetricsSnapshot) float64 {
	productivityDelta := current.ProductivityScore - baseline.ProductivityScore
	satisfactionDelta := current.Satisfaction - baseline.Satisfaction
	return productivityDelta*0.6 + satisfactionDelta*20*0.4
}
