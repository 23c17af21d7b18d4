// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapt

import (
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/flowpulse/flowpulse/internal/analytics"
)

// confidenceFloor: opportunities at or below this are never executed.
const confidenceFloor = 0.8

// Detection rule confidences. Fixed heuristics, not learned probabilities.
const (
	confidenceModelSwitch   = 0.87
	confidenceContextOpt    = 0.92
	confidenceEnergy        = 0.89
	confidenceTrend         = 0.95
	confidenceBehaviorShift = 0.82
)

const (
	contextEffectivenessThreshold = 85.0
	energyOutcomeThreshold        = 70.0
	decliningTrendThreshold       = 0.5
)

// Detector scans performance reports for exploitable patterns. All rules run
// independently on every scan; the post-filter drops low-confidence and
// cooled-down opportunities.
type Detector struct {
	cooldowns *CooldownRegistry
}

// NewDetector creates a detector sharing the given cooldown registry with the
// executor.
func NewDetector(cooldowns *CooldownRegistry) *Detector {
	return &Detector{cooldowns: cooldowns}
}

// Detect runs every rule against the report and returns surviving
// opportunities ordered by priority weight (stable on ties), plus the number
// suppressed by the post-filter.
func (d *Detector) Detect(report *analytics.PerformanceReport, activeModel string, now time.Time) ([]Opportunity, int) {
	if report == nil {
		log.Warn("Opportunity detection skipped: no performance report available")
		return nil, 0
	}

	var raw []Opportunity
	raw = append(raw, d.detectModelSwitch(report, activeModel)...)
	raw = append(raw, d.detectContextOptimizations(report)...)
	raw = append(raw, d.detectEnergyAdaptations(report)...)
	raw = append(raw, d.detectTrendResponse(report, activeModel)...)
	raw = append(raw, d.detectBehaviorShifts(report)...)

	return d.filter(raw, now)
}

// filter drops opportunities at or below the confidence floor or still in
// cooldown, then orders survivors by priority weight, stable on ties.
func (d *Detector) filter(raw []Opportunity, now time.Time) ([]Opportunity, int) {
	var out []Opportunity
	suppressed := 0
	for _, op := range raw {
		if op.Confidence <= confidenceFloor {
			suppressed++
			continue
		}
		if d.cooldowns.InCooldown(op.Type, op.Payload, now) {
			log.Debugf("Opportunity %s suppressed by cooldown", op.Type)
			suppressed++
			continue
		}
		out = append(out, op)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Weight() > out[j].Priority.Weight()
	})
	return out, suppressed
}

func (d *Detector) detectModelSwitch(report *analytics.PerformanceReport, activeModel string) []Opportunity {
	best := report.Summary.MostEffectiveModel
	if best == "" || best == activeModel {
		return nil
	}

	return []Opportunity{{
		Type:       TypeModelSwitch,
		Priority:   PriorityHigh,
		Confidence: confidenceModelSwitch,
		Description: fmt.Sprintf("Model %q outperforms the active model %q",
			best, activeModel),
		Payload:          ModelSwitchPayload{FromModel: activeModel, ToModel: best},
		TriggerCondition: "most effective model differs from active model",
		RollbackPlan:     fmt.Sprintf("restore active model %q", activeModel),
	}}
}

func (d *Detector) detectContextOptimizations(report *analytics.PerformanceReport) []Opportunity {
	var out []Opportunity
	for _, insight := range report.Insights {
		if insight.Dimension != analytics.DimensionTimeOfDay || insight.Effectiveness <= contextEffectivenessThreshold {
			continue
		}
		out = append(out, Opportunity{
			Type:       TypeContextOptimization,
			Priority:   PriorityMedium,
			Confidence: confidenceContextOpt,
			Description: fmt.Sprintf("%s sessions are %.0f%% effective; prefer %q then",
				insight.Bucket, insight.Effectiveness, insight.RecommendedModel),
			Payload: ContextOptimizationPayload{
				Bucket:           insight.Bucket,
				RecommendedModel: insight.RecommendedModel,
				Effectiveness:    insight.Effectiveness,
			},
			TriggerCondition: fmt.Sprintf("time-of-day effectiveness > %.0f", contextEffectivenessThreshold),
			RollbackPlan:     fmt.Sprintf("clear contextual preference for %s", insight.Bucket),
		})
	}
	return out
}

func (d *Detector) detectEnergyAdaptations(report *analytics.PerformanceReport) []Opportunity {
	var out []Opportunity
	for _, insight := range report.Insights {
		if insight.Dimension != analytics.DimensionEnergy || insight.ExpectedOutcome >= energyOutcomeThreshold {
			continue
		}
		out = append(out, Opportunity{
			Type:       TypeEnergyAdaptation,
			Priority:   PriorityHigh,
			Confidence: confidenceEnergy,
			Description: fmt.Sprintf("%s-energy sessions underperform (expected outcome %.0f)",
				insight.Bucket, insight.ExpectedOutcome),
			Payload: EnergyAdaptationPayload{
				EnergyBucket:     insight.Bucket,
				ExpectedOutcome:  insight.ExpectedOutcome,
				RecommendedModel: insight.RecommendedModel,
			},
			TriggerCondition: fmt.Sprintf("energy-level expected outcome < %.0f", energyOutcomeThreshold),
			RollbackPlan:     fmt.Sprintf("clear energy adaptation for %s", insight.Bucket),
		})
	}
	return out
}

func (d *Detector) detectTrendResponse(report *analytics.PerformanceReport, activeModel string) []Opportunity {
	// Trend is meaningless without session history.
	if report.Summary.TotalSessions == 0 {
		return nil
	}
	trend := report.Trends.ProductivityTrend
	if trend >= decliningTrendThreshold {
		return nil
	}

	causes := diagnoseCauses(report)
	corrections := deriveCorrections(report, activeModel)

	return []Opportunity{{
		Type:       TypeTrendResponse,
		Priority:   PriorityHigh,
		Confidence: confidenceTrend,
		Description: fmt.Sprintf("Productivity trend %.2f/day is declining (%d corrective actions)",
			trend, len(corrections)),
		Payload: TrendResponsePayload{
			Trend:       trend,
			Causes:      causes,
			Corrections: corrections,
		},
		TriggerCondition: fmt.Sprintf("productivity trend < %.1f", decliningTrendThreshold),
		RollbackPlan:     "revert each executed corrective action",
	}}
}

func (d *Detector) detectBehaviorShifts(report *analytics.PerformanceReport) []Opportunity {
	var out []Opportunity
	for _, shift := range report.Shifts {
		out = append(out, Opportunity{
			Type:        TypeBehaviorAdaptation,
			Priority:    PriorityMedium,
			Confidence:  confidenceBehaviorShift,
			Description: shift.Description,
			Payload: BehaviorAdaptationPayload{
				ShiftKind:   shift.Kind,
				Delta:       shift.Delta,
				Description: shift.Description,
			},
			TriggerCondition: "behavioral shift detected week over week",
			RollbackPlan:     fmt.Sprintf("clear behavioral adaptation for %s", shift.Kind),
		})
	}
	return out
}

// diagnoseCauses names the report figures that explain a declining trend.
func diagnoseCauses(report *analytics.PerformanceReport) []string {
	var causes []string
	if report.Trends.CompletionRateDelta < 0 {
		causes = append(causes, "completion rate declined week over week")
	}
	if report.Trends.SatisfactionDelta < 0 {
		causes = append(causes, "satisfaction declined week over week")
	}
	for _, shift := range report.Shifts {
		if shift.Kind == analytics.ShiftBreakSkipping && shift.Delta > 0 {
			causes = append(causes, "break skipping increased")
		}
		if shift.Kind == analytics.ShiftDistraction && shift.Delta > 0 {
			causes = append(causes, "distraction rate increased")
		}
	}
	if len(causes) == 0 {
		causes = append(causes, "productivity score declined without a single dominant factor")
	}
	return causes
}

// deriveCorrections builds the corrective sub-opportunities executed by the
// trend-response handler.
func deriveCorrections(report *analytics.PerformanceReport, activeModel string) []Opportunity {
	var out []Opportunity

	if best := report.Summary.MostEffectiveModel; best != "" && best != activeModel {
		out = append(out, Opportunity{
			Type:             TypeModelSwitch,
			Priority:         PriorityHigh,
			Confidence:       confidenceModelSwitch,
			Description:      fmt.Sprintf("Switch to %q to counter the declining trend", best),
			Payload:          ModelSwitchPayload{FromModel: activeModel, ToModel: best},
			TriggerCondition: "trend correction",
			RollbackPlan:     fmt.Sprintf("restore active model %q", activeModel),
		})
	}

	out = append(out, Opportunity{
		Type:        TypeBehaviorAdaptation,
		Priority:    PriorityMedium,
		Confidence:  confidenceBehaviorShift,
		Description: "Shorten work intervals while the trend recovers",
		Payload: BehaviorAdaptationPayload{
			ShiftKind:   "declining-trend",
			Delta:       report.Trends.ProductivityTrend,
			Description: "shorter work intervals while productivity recovers",
		},
		TriggerCondition: "trend correction",
		RollbackPlan:     "clear behavioral adaptation for declining-trend",
	})

	return out
}
