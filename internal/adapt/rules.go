// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapt

import (
	"fmt"
	"sort"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	log "github.com/sirupsen/logrus"

	"github.com/flowpulse/flowpulse/internal/telemetry"
)

// ContextualPreference is one entry of the contextualPreferences blob: a
// model preference activated when its condition matches the current context.
type ContextualPreference struct {
	Bucket           string    `json:"bucket"`
	RecommendedModel string    `json:"recommended_model"`
	Effectiveness    float64   `json:"effectiveness"`
	Condition        string    `json:"condition"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EnergyAdjustment is one entry of the energyAdaptations blob.
type EnergyAdjustment struct {
	EnergyBucket     string    `json:"energy_bucket"`
	ExpectedOutcome  float64   `json:"expected_outcome"`
	RecommendedModel string    `json:"recommended_model,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BehavioralAdjustment is one entry of the behavioralAdaptations blob.
type BehavioralAdjustment struct {
	ShiftKind   string    `json:"shift_kind"`
	Delta       float64   `json:"delta"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RuleContext is the expression environment a preference condition is
// evaluated against. Field names are the identifiers available in rules,
// e.g. `Hour >= 9 && TaskCategory == "coding"`.
type RuleContext struct {
	Hour              int
	Day               int
	TaskCategory      string
	ScreenActivity    int
	NotificationLoad  int
	Energy            int
	MinutesSinceBreak int
	OpenDocuments     int
}

// NewRuleContext builds the evaluation environment from a context snapshot.
func NewRuleContext(snap telemetry.ContextSnapshot) RuleContext {
	return RuleContext{
		Hour:              snap.HourOfDay,
		Day:               snap.DayOfWeek,
		TaskCategory:      snap.TaskCategory,
		ScreenActivity:    snap.ScreenActivity,
		NotificationLoad:  snap.NotificationLoad,
		Energy:            snap.EnergyLevel,
		MinutesSinceBreak: snap.MinutesSinceBreak,
		OpenDocuments:     snap.OpenDocuments,
	}
}

// bucketConditions maps time-of-day buckets to their rule conditions, so
// executed context optimizations produce evaluatable preferences.
var bucketConditions = map[string]string{
	"morning":   "Hour >= 5 && Hour <= 11",
	"afternoon": "Hour >= 12 && Hour <= 16",
	"evening":   "Hour >= 17 && Hour <= 21",
	"night":     "Hour >= 22 || Hour <= 4",
}

// RuleEvaluator evaluates preference conditions, caching compiled programs.
type RuleEvaluator struct {
	programs map[string]*vm.Program
}

// NewRuleEvaluator creates an evaluator.
func NewRuleEvaluator() *RuleEvaluator {
	return &RuleEvaluator{programs: make(map[string]*vm.Program)}
}

// Evaluate runs one condition against the rule context. An empty condition
// matches unconditionally.
func (e *RuleEvaluator) Evaluate(condition string, ctx RuleContext) (bool, error) {
	if condition == "" || condition == "true" {
		return true, nil
	}

	program, exists := e.programs[condition]
	if !exists {
		var err error
		program, err = expr.Compile(condition, expr.Env(ctx))
		if err != nil {
			return false, fmt.Errorf("failed to compile condition '%s': %w", condition, err)
		}
		e.programs[condition] = program
	}

	output, err := expr.Run(program, ctx)
	if err != nil {
		return false, fmt.Errorf("failed to run condition '%s': %w", condition, err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition '%s' did not return a boolean", condition)
	}
	return result, nil
}

// PreferredModel returns the recommended model of the first matching
// preference, iterating buckets in a deterministic order. Invalid conditions
// are logged and skipped, never fatal. Returns "" when nothing matches.
func (e *RuleEvaluator) PreferredModel(prefs map[string]ContextualPreference, snap telemetry.ContextSnapshot) string {
	ctx := NewRuleContext(snap)

	buckets := make([]string, 0, len(prefs))
	for b := range prefs {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)

	for _, bucket := range buckets {
		pref := prefs[bucket]
		match, err := e.Evaluate(pref.Condition, ctx)
		if err != nil {
			log.Warnf("Skipping contextual preference %s: %v", bucket, err)
			continue
		}
		if match && pref.RecommendedModel != "" {
			return pref.RecommendedModel
		}
	}
	return ""
}
