// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modelgen

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property-based tests for the model generator duration and confidence
// invariants.

func TestProperty_GeneratedModelInvariants(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("durations and confidence stay in bounds", prop.ForAll(
		func(style string, completion float64, avgSession float64, signals int, history int, energy int, burnoutHoursAgo int) bool {
			g := NewGenerator(0)
			assessment := Assessment{
				ID:                 "prop",
				PreferredWorkStyle: style,
				CompletionScore:    completion,
			}
			data := ObservedData{
				AverageSessionMinutes: avgSession,
				ActivitySignals:       signals,
				UsageHistorySessions:  history,
				HourlyEnergySamples:   energy,
			}
			if burnoutHoursAgo >= 0 {
				data.LastBurnoutAt = time.Now().Add(-time.Duration(burnoutHoursAgo) * time.Hour)
			}

			result := g.Generate(context.Background(), assessment, data)

			for _, m := range allCandidates(result) {
				if m.WorkMinutes < 15 || m.WorkMinutes > 120 {
					return false
				}
				if m.WorkMinutes%5 != 0 {
					return false
				}
				if m.RestMinutes < 3 || m.RestMinutes > 30 {
					return false
				}
				if m.Confidence < 0.1 || m.Confidence > 1.0 {
					return false
				}
			}
			return true
		},
		gen.OneConstOf(WorkStyleSustainedFlow, WorkStyleShortIterations, WorkStyleBalanced, "unknown"),
		gen.Float64Range(0.0, 1.0), // completion score
		gen.Float64Range(0.0, 240), // average session minutes
		gen.IntRange(0, 20),        // activity signals
		gen.IntRange(0, 50),        // usage history sessions
		gen.IntRange(0, 48),        // hourly energy samples
		gen.IntRange(-1, 400),      // burnout hours ago, -1 for none
	))

	properties.Property("recommended bucket is bounded and sorted by threshold", prop.ForAll(
		func(completion float64, signals int) bool {
			g := NewGenerator(0)
			result := g.Generate(context.Background(),
				Assessment{CompletionScore: completion},
				ObservedData{ActivitySignals: signals})

			if len(result.Recommended) > 3 {
				return false
			}
			for _, m := range result.Recommended {
				if m.Confidence < 0.7 {
					return false
				}
			}
			for _, m := range result.Alternatives {
				if m.Confidence < 0.5 {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.0, 1.0),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
