// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modelgen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allCandidates(r *GenerationResult) []GeneratedModel {
	out := append([]GeneratedModel(nil), r.Recommended...)
	return append(out, r.Alternatives...)
}

func findScenario(t *testing.T, models []GeneratedModel, scenario string) GeneratedModel {
	t.Helper()
	for _, m := range models {
		if m.Scenario == scenario {
			return m
		}
	}
	t.Fatalf("no candidate for scenario %q", scenario)
	return GeneratedModel{}
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name       string
		assessment Assessment
		data       ObservedData
		want       float64
	}{
		{
			name: "all bonuses stack to exactly 1.0",
			assessment: Assessment{CompletionScore: 0.9},
			data: ObservedData{
				ActivitySignals:      6,
				UsageHistorySessions: 6,
				HourlyEnergySamples:  15,
			},
			want: 1.0,
		},
		{
			name: "base only",
			want: 0.5,
		},
		{
			name:       "completion bonus at threshold",
			assessment: Assessment{CompletionScore: 0.8},
			want:       0.7,
		},
		{
			name: "partial activity bonus",
			data: ObservedData{ActivitySignals: 3},
			want: 0.6,
		},
		{
			name: "full activity bonus",
			data: ObservedData{ActivitySignals: 5},
			want: 0.65,
		},
		{
			name: "history bonus",
			data: ObservedData{UsageHistorySessions: 5},
			want: 0.6,
		},
		{
			name: "energy samples bonus",
			data: ObservedData{HourlyEnergySamples: 12},
			want: 0.55,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, confidenceScore(tt.assessment, tt.data), 1e-9)
		})
	}
}

func TestGenerate_SustainedFlowLongSessionsCap(t *testing.T) {
	// 75-minute observed average: the session-length rule adds +15/+3 but is
	// capped, so sustained-flow work lands on 90 and rest on 20.
	g := NewGenerator(0)
	result := g.Generate(context.Background(), Assessment{
		ID:                 "a1",
		PreferredWorkStyle: WorkStyleSustainedFlow,
		CompletionScore:    0.9,
	}, ObservedData{AverageSessionMinutes: 75})

	m := findScenario(t, allCandidates(result), ScenarioGeneralFlow)
	assert.Equal(t, 90, m.WorkMinutes)
	assert.Equal(t, 20, m.RestMinutes)
	assert.Equal(t, 3, m.Cycles)
	assert.Equal(t, 25, m.LongRestMinutes)
	assert.Equal(t, "a1", m.AssessmentID)
}

func TestGenerate_ShortSessionsFloor(t *testing.T) {
	g := NewGenerator(0)
	result := g.Generate(context.Background(), Assessment{
		PreferredWorkStyle: WorkStyleShortIterations,
	}, ObservedData{AverageSessionMinutes: 20})

	// 20/6 base with -10/-2 floored at 20/5.
	m := findScenario(t, allCandidates(result), ScenarioGeneralFlow)
	assert.Equal(t, 20, m.WorkMinutes)
	assert.Equal(t, 5, m.RestMinutes)
}

func TestGenerate_ScenarioOffsets(t *testing.T) {
	g := NewGenerator(0)
	// Balanced base 45/10, no session-length signal.
	result := g.Generate(context.Background(), Assessment{
		PreferredWorkStyle: WorkStyleBalanced,
		CompletionScore:    0.9,
	}, ObservedData{})
	candidates := allCandidates(result)

	tests := []struct {
		scenario string
		work     int
		rest     int
	}{
		{ScenarioGeneralFlow, 45, 10},
		{ScenarioMorningFocus, 50, 10},
		{ScenarioAfternoon, 50, 10},
		{ScenarioEvening, 35, 8}, // 36 rounds to 35, 8 stays
		{ScenarioCreative, 45, 13},
		{ScenarioDebugging, 45, 13},
		{ScenarioLearning, 40, 12}, // 40.5 rounds to 40
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			m := findScenario(t, candidates, tt.scenario)
			assert.Equal(t, tt.work, m.WorkMinutes)
			assert.Equal(t, tt.rest, m.RestMinutes)
		})
	}
}

func TestGenerate_RecentBurnoutExtendsRest(t *testing.T) {
	g := NewGenerator(0)
	data := ObservedData{LastBurnoutAt: time.Now().Add(-48 * time.Hour)}
	result := g.Generate(context.Background(), Assessment{
		PreferredWorkStyle: WorkStyleBalanced,
	}, data)

	m := findScenario(t, allCandidates(result), ScenarioGeneralFlow)
	assert.Equal(t, 15, m.RestMinutes)
	assert.Equal(t, 30, m.LongRestMinutes)
}

func TestGenerate_StaleBurnoutIgnored(t *testing.T) {
	g := NewGenerator(0)
	data := ObservedData{LastBurnoutAt: time.Now().Add(-8 * 24 * time.Hour)}
	result := g.Generate(context.Background(), Assessment{
		PreferredWorkStyle: WorkStyleBalanced,
	}, data)

	m := findScenario(t, allCandidates(result), ScenarioGeneralFlow)
	assert.Equal(t, 10, m.RestMinutes)
	assert.Equal(t, 20, m.LongRestMinutes)
}

func TestGenerate_UnknownStyleFallsBackToBalanced(t *testing.T) {
	g := NewGenerator(0)
	result := g.Generate(context.Background(), Assessment{
		PreferredWorkStyle: "mystery-style",
	}, ObservedData{})

	m := findScenario(t, allCandidates(result), ScenarioGeneralFlow)
	assert.Equal(t, 45, m.WorkMinutes)
	assert.Equal(t, 10, m.RestMinutes)
}

func TestGenerate_Bucketing(t *testing.T) {
	t.Run("high confidence fills recommended then alternatives", func(t *testing.T) {
		g := NewGenerator(0)
		result := g.Generate(context.Background(), Assessment{
			CompletionScore: 0.9,
		}, ObservedData{ActivitySignals: 6, UsageHistorySessions: 6, HourlyEnergySamples: 15})

		require.Len(t, result.Recommended, 3)
		assert.Len(t, result.Alternatives, len(Scenarios)-3)
		for _, m := range result.Recommended {
			assert.InDelta(t, 1.0, m.Confidence, 1e-9)
		}
	})

	t.Run("mid confidence is all alternatives", func(t *testing.T) {
		g := NewGenerator(0)
		// 0.5 base + 0.1 (3 signals) = 0.6, below the recommended threshold.
		result := g.Generate(context.Background(), Assessment{}, ObservedData{ActivitySignals: 3})

		assert.Empty(t, result.Recommended)
		assert.Len(t, result.Alternatives, len(Scenarios))
	})
}

func TestGenerate_BudgetTruncates(t *testing.T) {
	// Each clock read advances one second against a two-second budget: the
	// generator produces a partial candidate list instead of failing.
	tick := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	g := NewGenerator(2*time.Second, WithClock(clock))
	result := g.Generate(context.Background(), Assessment{CompletionScore: 0.9},
		ObservedData{ActivitySignals: 6, UsageHistorySessions: 6, HourlyEnergySamples: 15})

	assert.True(t, result.Truncated)
	total := len(result.Recommended) + len(result.Alternatives)
	assert.Greater(t, total, 0)
	assert.Less(t, total, len(Scenarios))
}

func TestGenerate_CancelledContextTruncates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGenerator(0)
	result := g.Generate(ctx, Assessment{CompletionScore: 0.9}, ObservedData{})

	assert.True(t, result.Truncated)
	assert.Empty(t, result.Recommended)
	assert.Empty(t, result.Alternatives)
}

func TestGenerate_UniqueIDsAndProvenance(t *testing.T) {
	g := NewGenerator(0)
	result := g.Generate(context.Background(), Assessment{
		ID:              "assessment-7",
		CompletionScore: 0.9,
	}, ObservedData{ActivitySignals: 6, UsageHistorySessions: 6, HourlyEnergySamples: 15})

	seen := make(map[string]bool)
	for _, m := range allCandidates(result) {
		assert.False(t, seen[m.ID], "duplicate model id %s", m.ID)
		seen[m.ID] = true
		assert.Equal(t, "assessment-7", m.AssessmentID)
		assert.False(t, m.CreatedAt.IsZero())
	}
}
