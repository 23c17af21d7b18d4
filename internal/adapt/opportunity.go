// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package adapt closes the personalization feedback loop: it detects
// adaptation opportunities in performance reports, executes them under
// per-type cooldowns, and monitors executed adaptations for rollback.
package adapt

import (
	"fmt"
)

// OpportunityType enumerates the kinds of adaptation the engine can apply.
type OpportunityType string

const (
	TypeModelSwitch         OpportunityType = "model-switch"
	TypeContextOptimization OpportunityType = "context-optimization"
	TypeEnergyAdaptation    OpportunityType = "energy-adaptation"
	TypeTrendResponse       OpportunityType = "trend-response"
	TypeBehaviorAdaptation  OpportunityType = "behavior-adaptation"
	TypeRollback            OpportunityType = "rollback"
)

// Priority orders opportunities for execution.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Weight maps a priority to its sort weight.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Payload is the tagged variant carried by an opportunity. Each opportunity
// type has exactly one payload shape; the executor dispatches on the concrete
// type. Fingerprint returns a stable, field-ordered string used for cooldown
// keying, so identical opportunities collide deterministically regardless of
// serialization order.
type Payload interface {
	Type() OpportunityType
	Fingerprint() string
}

// ModelSwitchPayload switches the active scheduling model.
type ModelSwitchPayload struct {
	FromModel string `json:"from_model"`
	ToModel   string `json:"to_model"`
}

func (p ModelSwitchPayload) Type() OpportunityType { return TypeModelSwitch }
func (p ModelSwitchPayload) Fingerprint() string {
	return fmt.Sprintf("from=%s|to=%s", p.FromModel, p.ToModel)
}

// ContextOptimizationPayload persists a contextual preference for one
// time-of-day bucket.
type ContextOptimizationPayload struct {
	Bucket           string  `json:"bucket"`
	RecommendedModel string  `json:"recommended_model"`
	Effectiveness    float64 `json:"effectiveness"`
}

func (p ContextOptimizationPayload) Type() OpportunityType { return TypeContextOptimization }
func (p ContextOptimizationPayload) Fingerprint() string {
	return fmt.Sprintf("bucket=%s|model=%s", p.Bucket, p.RecommendedModel)
}

// EnergyAdaptationPayload persists an adjustment for a low-yield energy level.
type EnergyAdaptationPayload struct {
	EnergyBucket     string  `json:"energy_bucket"`
	ExpectedOutcome  float64 `json:"expected_outcome"`
	RecommendedModel string  `json:"recommended_model,omitempty"`
}

func (p EnergyAdaptationPayload) Type() OpportunityType { return TypeEnergyAdaptation }
func (p EnergyAdaptationPayload) Fingerprint() string {
	return fmt.Sprintf("energy=%s|model=%s", p.EnergyBucket, p.RecommendedModel)
}

// TrendResponsePayload carries the diagnosed causes of a declining trend and
// a small batch of corrective sub-opportunities executed recursively.
type TrendResponsePayload struct {
	Trend       float64       `json:"trend"`
	Causes      []string      `json:"causes"`
	Corrections []Opportunity `json:"corrections"`
}

func (p TrendResponsePayload) Type() OpportunityType { return TypeTrendResponse }
func (p TrendResponsePayload) Fingerprint() string {
	// Corrections are derived from the causes, so causes alone identify the
	// opportunity for cooldown purposes.
	return fmt.Sprintf("trend-causes=%v", p.Causes)
}

// BehaviorAdaptationPayload responds to one detected behavioral shift.
type BehaviorAdaptationPayload struct {
	ShiftKind   string  `json:"shift_kind"`
	Delta       float64 `json:"delta"`
	Description string  `json:"description"`
}

func (p BehaviorAdaptationPayload) Type() OpportunityType { return TypeBehaviorAdaptation }
func (p BehaviorAdaptationPayload) Fingerprint() string {
	return fmt.Sprintf("shift=%s", p.ShiftKind)
}

// Opportunity is a detected, not-yet-applied candidate change. Transient:
// never persisted on its own, only as part of an executed Adaptation.
type Opportunity struct {
	Type             OpportunityType `json:"type"`
	Priority         Priority        `json:"priority"`
	Confidence       float64         `json:"confidence"`
	Description      string          `json:"description"`
	Payload          Payload         `json:"payload"`
	TriggerCondition string          `json:"trigger_condition"`
	RollbackPlan     string          `json:"rollback_plan"`
}
