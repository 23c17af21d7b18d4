// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modelgen

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// minConfidence below which a candidate is discarded outright.
const minConfidence = 0.3

// recommendedThreshold and alternativeThreshold split surviving candidates
// into the recommended and alternative buckets.
const (
	recommendedThreshold = 0.7
	alternativeThreshold = 0.5
	maxRecommended       = 3
)

// burnoutLookback is how far back a high-severity burnout indicator still
// influences generation.
const burnoutLookback = 7 * 24 * time.Hour

// baseDurations is the lookup from preferred work style to starting values.
type baseDurations struct {
	work     float64
	rest     float64
	cycles   int
	longRest float64
}

var styleBases = map[string]baseDurations{
	WorkStyleSustainedFlow:   {work: 75, rest: 18, cycles: 3, longRest: 25},
	WorkStyleShortIterations: {work: 20, rest: 6},
	WorkStyleBalanced:        {work: 45, rest: 10, cycles: 4, longRest: 20},
}

// Generator synthesizes one candidate model per scenario. It is stateless and
// safe for concurrent use; generation may be invoked from the periodic tick or
// synchronously from an interactive assessment flow.
type Generator struct {
	budget time.Duration
	now    func() time.Time
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a generator with the given soft latency budget. A
// non-positive budget falls back to 4s.
func NewGenerator(budget time.Duration, opts ...GeneratorOption) *Generator {
	if budget <= 0 {
		budget = 4 * time.Second
	}
	g := &Generator{budget: budget, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds one candidate per scenario, scores each, and buckets the
// survivors. Exceeding the latency budget truncates the candidate list rather
// than failing; the partial result is still valid.
func (g *Generator) Generate(ctx context.Context, assessment Assessment, data ObservedData) *GenerationResult {
	start := g.now()
	confidence := confidenceScore(assessment, data)

	result := &GenerationResult{}
	if confidence < minConfidence {
		log.Warnf("Model generation confidence %.2f below minimum, no candidates produced", confidence)
		result.Elapsed = g.now().Sub(start)
		return result
	}

	var candidates []GeneratedModel
	for _, scenario := range Scenarios {
		if err := ctx.Err(); err != nil {
			log.Warnf("Model generation cancelled after %d candidates: %v", len(candidates), err)
			result.Truncated = true
			break
		}
		if elapsed := g.now().Sub(start); elapsed > g.budget {
			log.Warnf("Model generation exceeded %v budget after %d candidates, truncating", g.budget, len(candidates))
			result.Truncated = true
			break
		}
		candidates = append(candidates, g.buildCandidate(scenario, assessment, data, confidence))
	}

	// All candidates of one generation share a confidence, so generation
	// order is preserved within the buckets.
	for _, c := range candidates {
		switch {
		case c.Confidence >= recommendedThreshold && len(result.Recommended) < maxRecommended:
			result.Recommended = append(result.Recommended, c)
		case c.Confidence >= alternativeThreshold:
			result.Alternatives = append(result.Alternatives, c)
		}
	}

	result.Elapsed = g.now().Sub(start)
	return result
}

// buildCandidate runs the duration pipeline for one scenario.
func (g *Generator) buildCandidate(scenario string, assessment Assessment, data ObservedData, confidence float64) GeneratedModel {
	base, ok := styleBases[assessment.PreferredWorkStyle]
	if !ok {
		base = styleBases[WorkStyleBalanced]
	}

	work := base.work
	rest := base.rest
	longRest := base.longRest

	// Observed average session length nudges durations toward actual habits.
	switch {
	case data.AverageSessionMinutes > 60:
		work = math.Min(work+15, 90)
		rest = math.Min(rest+3, 20)
	case data.AverageSessionMinutes > 0 && data.AverageSessionMinutes < 30:
		work = math.Max(work-10, 20)
		rest = math.Max(rest-2, 5)
	}

	switch scenario {
	case ScenarioMorningFocus, ScenarioAfternoon:
		work += 5
	case ScenarioEvening:
		work *= 0.8
		rest *= 0.8
	case ScenarioCreative, ScenarioDebugging:
		rest += 3
	case ScenarioLearning:
		work *= 0.9
		rest += 2
	}

	if !data.LastBurnoutAt.IsZero() && g.now().Sub(data.LastBurnoutAt) <= burnoutLookback {
		rest += 5
		if longRest > 0 {
			longRest += 10
		}
	}

	workMinutes := clampInt(roundTo5(work), 15, 120)
	restMinutes := clampInt(int(math.Round(rest)), 3, 30)

	return GeneratedModel{
		ID:              uuid.NewString(),
		Scenario:        scenario,
		WorkMinutes:     workMinutes,
		RestMinutes:     restMinutes,
		Cycles:          base.cycles,
		LongRestMinutes: int(math.Round(longRest)),
		Confidence:      confidence,
		AssessmentID:    assessment.ID,
		CreatedAt:       g.now(),
	}
}

// confidenceScore is the closed-form heuristic over available signal counts.
func confidenceScore(assessment Assessment, data ObservedData) float64 {
	score := 0.5
	if assessment.CompletionScore >= 0.8 {
		score += 0.2
	}
	switch {
	case data.ActivitySignals >= 5:
		score += 0.15
	case data.ActivitySignals >= 3:
		score += 0.1
	}
	if data.UsageHistorySessions >= 5 {
		score += 0.1
	}
	if data.HourlyEnergySamples >= 12 {
		score += 0.05
	}

	if score < 0.1 {
		return 0.1
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

func roundTo5(v float64) int {
	return int(math.Round(v/5)) * 5
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
