// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/flowpulse/flowpulse/internal/learning"
	"github.com/flowpulse/flowpulse/internal/telemetry"
)

// Aggregator computes performance reports. It holds no mutable state between
// calls; every report is a pure function of its inputs.
type Aggregator struct {
	candidates []string

	// usageFrequency computes sessions-per-week for a model. Pluggable so
	// hosts with a richer usage signal can replace the event-derived default.
	usageFrequency func(modelID string, events []telemetry.UsageEvent, now time.Time) float64
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCandidateModels fixes the candidate model set for the most-effective
// comparison. Without it, the set is derived from observed data.
func WithCandidateModels(models []string) Option {
	return func(a *Aggregator) {
		a.candidates = append([]string(nil), models...)
	}
}

// WithUsageFrequency replaces the default usage frequency computation.
func WithUsageFrequency(fn func(modelID string, events []telemetry.UsageEvent, now time.Time) float64) Option {
	return func(a *Aggregator) {
		a.usageFrequency = fn
	}
}

// NewAggregator creates an aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{}
	for _, opt := range opts {
		opt(a)
	}
	if a.usageFrequency == nil {
		a.usageFrequency = defaultUsageFrequency
	}
	return a
}

// Report computes a fresh performance report from the given buffers.
func (a *Aggregator) Report(events []telemetry.UsageEvent, points []learning.DataPoint, now time.Time) *PerformanceReport {
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)
	baselineStart := now.AddDate(0, 0, -28)

	curEvents := eventsBetween(events, weekAgo, now)
	prevEvents := eventsBetween(events, twoWeeksAgo, weekAgo)
	curPoints := pointsBetween(points, weekAgo, now)
	prevPoints := pointsBetween(points, twoWeeksAgo, weekAgo)
	baselinePoints := pointsBetween(points, baselineStart, now)
	baselineEvents := eventsBetween(events, baselineStart, now)

	summary := a.summarize(curEvents, curPoints)
	models := a.compareModels(events, points, now)
	if best := mostEffective(models); best != "" {
		summary.MostEffectiveModel = best
	}
	summary.TotalSessions = len(points)
	summary.TotalEvents = len(events)

	prevSummary := a.summarize(prevEvents, prevPoints)
	baselineSummary := a.summarize(baselineEvents, baselinePoints)

	trends := TrendAnalysis{
		ProductivityTrend:   float64(summary.ProductivityScore-prevSummary.ProductivityScore) / 7.0,
		CompletionRateDelta: summary.CompletionRate - prevSummary.CompletionRate,
		SatisfactionDelta:   summary.Satisfaction - prevSummary.Satisfaction,
		BaselineComparison:  float64(summary.ProductivityScore - baselineSummary.ProductivityScore),
	}

	report := &PerformanceReport{
		GeneratedAt: now,
		Summary:     summary,
		Models:      models,
		Insights:    a.contextualInsights(baselinePoints),
		Trends:      trends,
		Predictive: Forecast{
			NextWeekProductivity: clamp(float64(summary.ProductivityScore)+trends.ProductivityTrend*7, 0, 100),
		},
		Shifts: detectShifts(curEvents, prevEvents),
	}
	report.Recommendations = recommendations(report)
	return report
}

// Snapshot captures the baseline metric set used for adaptation impact
// comparison. Satisfaction stays on the raw 1-5 scale here.
func (a *Aggregator) Snapshot(events []telemetry.UsageEvent, points []learning.DataPoint, now time.Time) MetricsSnapshot {
	weekAgo := now.AddDate(0, 0, -7)
	curEvents := eventsBetween(events, weekAgo, now)
	curPoints := pointsBetween(points, weekAgo, now)

	summary := a.summarize(curEvents, curPoints)
	rawSatisfaction := meanSatisfactionRaw(curEvents)

	return MetricsSnapshot{
		ProductivityScore: float64(summary.ProductivityScore),
		CompletionRate:    summary.CompletionRate,
		Satisfaction:      rawSatisfaction,
		CapturedAt:        now,
	}
}

// summarize computes the headline figures for one window.
func (a *Aggregator) summarize(events []telemetry.UsageEvent, points []learning.DataPoint) Summary {
	completion := meanCompletion(points)
	frequency := float64(countEvents(events, telemetry.EventSessionEnded))
	satisfaction := normalizeSatisfaction(meanSatisfactionRaw(events))

	score := completion*40 + math.Min(frequency/10, 1)*30 + satisfaction*30

	return Summary{
		ProductivityScore: int(math.Round(score)),
		CompletionRate:    completion,
		SessionFrequency:  frequency,
		Satisfaction:      satisfaction,
	}
}

// compareModels computes per-model performance over the candidate set.
func (a *Aggregator) compareModels(events []telemetry.UsageEvent, points []learning.DataPoint, now time.Time) []ModelComparison {
	candidates := a.candidates
	if len(candidates) == 0 {
		candidates = observedModels(events, points)
	}

	overall := normalizeSatisfaction(meanSatisfactionRaw(events))

	var out []ModelComparison
	for _, id := range candidates {
		var modelPoints []learning.DataPoint
		for _, p := range points {
			if p.ModelID == id {
				modelPoints = append(modelPoints, p)
			}
		}

		completion := meanCompletion(modelPoints)
		satisfaction := modelSatisfaction(events, id, overall)
		successRate := completion*0.7 + satisfaction*0.3
		frequency := a.usageFrequency(id, events, now)
		score := successRate*0.8 + math.Min(frequency, 10)/10*0.2

		out = append(out, ModelComparison{
			ModelID:          id,
			Sessions:         len(modelPoints),
			CompletionRate:   completion,
			Satisfaction:     satisfaction,
			SuccessRate:      successRate,
			UsageFrequency:   frequency,
			PerformanceScore: score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PerformanceScore > out[j].PerformanceScore
	})
	return out
}

// mostEffective returns the top model with session data, or "".
func mostEffective(models []ModelComparison) string {
	for _, m := range models {
		if m.Sessions > 0 {
			return m.ModelID
		}
	}
	return ""
}

// contextualInsights groups effectiveness by time-of-day bucket, task type,
// and energy level.
func (a *Aggregator) contextualInsights(points []learning.DataPoint) []ContextualInsight {
	var out []ContextualInsight
	out = append(out, groupInsights(points, DimensionTimeOfDay, func(p learning.DataPoint) string {
		return p.Context.TimeBucket()
	})...)
	out = append(out, groupInsights(points, DimensionTaskType, func(p learning.DataPoint) string {
		return p.Context.TaskCategory
	})...)
	out = append(out, groupInsights(points, DimensionEnergy, func(p learning.DataPoint) string {
		return p.Context.EnergyBucket()
	})...)
	return out
}

func groupInsights(points []learning.DataPoint, dimension string, keyFn func(learning.DataPoint) string) []ContextualInsight {
	groups := make(map[string][]learning.DataPoint)
	for _, p := range points {
		key := keyFn(p)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], p)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []ContextualInsight
	for _, key := range keys {
		bucket := groups[key]
		effectiveness := meanCompletion(bucket) * 100

		recommended, expected := bestModelInBucket(bucket)
		if recommended == "" {
			expected = effectiveness
		}

		out = append(out, ContextualInsight{
			Dimension:        dimension,
			Bucket:           key,
			Effectiveness:    effectiveness,
			RecommendedModel: recommended,
			ExpectedOutcome:  expected,
			SampleSize:       len(bucket),
		})
	}
	return out
}

// bestModelInBucket picks the model with the highest mean completion within
// the bucket and returns its expected outcome on the 0-100 scale.
func bestModelInBucket(points []learning.DataPoint) (string, float64) {
	type acc struct {
		sum   float64
		count int
	}
	byModel := make(map[string]*acc)
	for _, p := range points {
		if p.ModelID == "" {
			continue
		}
		if byModel[p.ModelID] == nil {
			byModel[p.ModelID] = &acc{}
		}
		byModel[p.ModelID].sum += p.Metrics.CompletionRate
		byModel[p.ModelID].count++
	}

	best := ""
	bestScore := -1.0
	ids := make([]string, 0, len(byModel))
	for id := range byModel {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := byModel[id]
		score := a.sum / float64(a.count) * 100
		if score > bestScore {
			best = id
			bestScore = score
		}
	}
	if best == "" {
		return "", 0
	}
	return best, bestScore
}

// detectShifts compares behavior between the current and previous week.
func detectShifts(cur, prev []telemetry.UsageEvent) []BehavioralShift {
	var shifts []BehavioralShift

	curSkip := breakSkipRate(cur)
	prevSkip := breakSkipRate(prev)
	if hasBreakEvents(cur) && hasBreakEvents(prev) && math.Abs(curSkip-prevSkip) >= 0.2 {
		shifts = append(shifts, BehavioralShift{
			Kind:        ShiftBreakSkipping,
			Description: fmt.Sprintf("break skip rate moved from %.0f%% to %.0f%%", prevSkip*100, curSkip*100),
			Delta:       curSkip - prevSkip,
		})
	}

	curSessions := countEvents(cur, telemetry.EventSessionEnded)
	prevSessions := countEvents(prev, telemetry.EventSessionEnded)
	if prevSessions > 0 {
		change := float64(curSessions-prevSessions) / float64(prevSessions)
		if math.Abs(change) >= 0.5 {
			shifts = append(shifts, BehavioralShift{
				Kind:        ShiftSessionCadence,
				Description: fmt.Sprintf("weekly sessions moved from %d to %d", prevSessions, curSessions),
				Delta:       change,
			})
		}
	}

	if curSessions > 0 && prevSessions > 0 {
		curRate := float64(countEvents(cur, telemetry.EventDistractionDetected)) / float64(curSessions)
		prevRate := float64(countEvents(prev, telemetry.EventDistractionDetected)) / float64(prevSessions)
		if curRate-prevRate >= 1.0 {
			shifts = append(shifts, BehavioralShift{
				Kind:        ShiftDistraction,
				Description: fmt.Sprintf("distractions per session rose from %.1f to %.1f", prevRate, curRate),
				Delta:       curRate - prevRate,
			})
		}
	}

	return shifts
}

// recommendations derives human-readable suggestions from report findings.
func recommendations(r *PerformanceReport) []string {
	var out []string

	if r.Summary.MostEffectiveModel != "" {
		out = append(out, fmt.Sprintf("Your best results come from the %q model.", r.Summary.MostEffectiveModel))
	}
	if r.Trends.ProductivityTrend < 0 {
		out = append(out, "Productivity is trending down week over week; consider shorter work intervals.")
	}
	for _, insight := range r.Insights {
		if insight.Dimension == DimensionTimeOfDay && insight.Effectiveness > 85 && insight.RecommendedModel != "" {
			out = append(out, fmt.Sprintf("%s sessions with %q are highly effective; schedule demanding work then.", insight.Bucket, insight.RecommendedModel))
		}
	}
	for _, shift := range r.Shifts {
		if shift.Kind == ShiftBreakSkipping && shift.Delta > 0 {
			out = append(out, "You are skipping more breaks than before; rest keeps completion rates up.")
		}
	}
	return out
}

func defaultUsageFrequency(modelID string, events []telemetry.UsageEvent, now time.Time) float64 {
	weekAgo := now.AddDate(0, 0, -7)
	count := 0
	for _, e := range events {
		if e.Type == telemetry.EventSessionEnded && e.ModelID == modelID && !e.Timestamp.Before(weekAgo) {
			count++
		}
	}
	return float64(count)
}

func observedModels(events []telemetry.UsageEvent, points []learning.DataPoint) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, p := range points {
		add(p.ModelID)
	}
	for _, e := range events {
		add(e.ModelID)
	}
	sort.Strings(out)
	return out
}

func modelSatisfaction(events []telemetry.UsageEvent, modelID string, fallback float64) float64 {
	sum := 0.0
	count := 0
	for _, e := range events {
		if e.Type != telemetry.EventFeedbackGiven || e.ModelID != modelID {
			continue
		}
		if v, ok := e.Metadata["satisfaction"].(float64); ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return fallback
	}
	return normalizeSatisfaction(sum / float64(count))
}

func eventsBetween(events []telemetry.UsageEvent, from, to time.Time) []telemetry.UsageEvent {
	var out []telemetry.UsageEvent
	for _, e := range events {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			out = append(out, e)
		}
	}
	return out
}

func pointsBetween(points []learning.DataPoint, from, to time.Time) []learning.DataPoint {
	var out []learning.DataPoint
	for _, p := range points {
		if !p.Timestamp.Before(from) && p.Timestamp.Before(to) {
			out = append(out, p)
		}
	}
	return out
}

func countEvents(events []telemetry.UsageEvent, t telemetry.EventType) int {
	count := 0
	for _, e := range events {
		if e.Type == t {
			count++
		}
	}
	return count
}

func meanCompletion(points []learning.DataPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range points {
		sum += p.Metrics.CompletionRate
	}
	return sum / float64(len(points))
}

// meanSatisfactionRaw averages feedback ratings on the raw 1-5 scale.
// Returns 0 when no feedback exists.
func meanSatisfactionRaw(events []telemetry.UsageEvent) float64 {
	sum := 0.0
	count := 0
	for _, e := range events {
		if e.Type != telemetry.EventFeedbackGiven {
			continue
		}
		if v, ok := e.Metadata["satisfaction"].(float64); ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// normalizeSatisfaction maps the 1-5 scale to 0-1. Zero input (no feedback)
// stays zero.
func normalizeSatisfaction(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return clamp((raw-1)/4, 0, 1)
}

func breakSkipRate(events []telemetry.UsageEvent) float64 {
	taken := countEvents(events, telemetry.EventBreakTaken)
	skipped := countEvents(events, telemetry.EventBreakSkipped)
	total := taken + skipped
	if total == 0 {
		return 0
	}
	return float64(skipped) / float64(total)
}

func hasBreakEvents(events []telemetry.UsageEvent) bool {
	return countEvents(events, telemetry.EventBreakTaken)+countEvents(events, telemetry.EventBreakSkipped) > 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
