// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/flowpulse/internal/analytics"
	"github.com/flowpulse/flowpulse/internal/settings"
	"github.com/flowpulse/flowpulse/internal/storage"
)

func newTestDeps(t *testing.T) (storage.Store, *settings.Provider) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStore(context.Background(), filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider, err := settings.NewProvider(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	return store, provider
}

func testBaseline() analytics.MetricsSnapshot {
	return analytics.MetricsSnapshot{
		ProductivityScore: 70,
		CompletionRate:    0.8,
		Satisfaction:      3.5,
		CapturedAt:        time.Now(),
	}
}

func modelSwitchOp(from, to string) Opportunity {
	return Opportunity{
		Type:        TypeModelSwitch,
		Priority:    PriorityHigh,
		Confidence:  0.87,
		Description: "switch " + from + " -> " + to,
		Payload:     ModelSwitchPayload{FromModel: from, ToModel: to},
	}
}

func TestExecute_ModelSwitchUpdatesSettings(t *testing.T) {
	store, provider := newTestDeps(t)
	ctx := context.Background()
	require.NoError(t, provider.Update(ctx, settings.KeyActiveModel, "quick-sprints", settings.ScopeUser))

	e := NewExecutor(store, provider, NewCooldownRegistry(), nil)
	created := e.Execute(ctx, []Opportunity{modelSwitchOp("quick-sprints", "deep-focus")}, testBaseline(), time.Now())

	require.Len(t, created, 1)
	assert.Equal(t, StateActive, created[0].State)
	assert.Equal(t, 7*24*time.Hour, created[0].MonitoringInterval)
	assert.Equal(t, "deep-focus", provider.GetString(settings.KeyActiveModel, ""))
}

func TestExecute_SetsCooldown(t *testing.T) {
	store, provider := newTestDeps(t)
	registry := NewCooldownRegistry()
	e := NewExecutor(store, provider, registry, nil)

	now := time.Now()
	op := modelSwitchOp("a", "b")
	e.Execute(context.Background(), []Opportunity{op}, testBaseline(), now)

	assert.True(t, registry.InCooldown(TypeModelSwitch, op.Payload, now.Add(time.Hour)))
}

func TestExecute_PersistsHistory(t *testing.T) {
	store, provider := newTestDeps(t)
	ctx := context.Background()
	e := NewExecutor(store, provider, NewCooldownRegistry(), nil)

	e.Execute(ctx, []Opportunity{modelSwitchOp("a", "b")}, testBaseline(), time.Now())

	var history []Adaptation
	found, err := store.Load(ctx, storage.KeyAdaptationHistory, &history)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, history, 1)
	assert.Equal(t, TypeModelSwitch, history[0].Type)
	assert.InDelta(t, 70, history[0].Baseline.ProductivityScore, 1e-9)

	// The persisted payload round-trips into its concrete variant.
	payload, ok := history[0].Source.Payload.(ModelSwitchPayload)
	require.True(t, ok)
	assert.Equal(t, "b", payload.ToModel)
}

func TestExecute_ContextOptimizationPersistsPreference(t *testing.T) {
	store, provider := newTestDeps(t)
	ctx := context.Background()
	e := NewExecutor(store, provider, NewCooldownRegistry(), nil)

	op := Opportunity{
		Type:       TypeContextOptimization,
		Priority:   PriorityMedium,
		Confidence: 0.92,
		Payload: ContextOptimizationPayload{
			Bucket:           "morning",
			RecommendedModel: "deep-focus",
			Effectiveness:    92,
		},
	}
	created := e.Execute(ctx, []Opportunity{op}, testBaseline(), time.Now())
	require.Len(t, created, 1)

	prefs := make(map[string]ContextualPreference)
	found, err := store.Load(ctx, storage.KeyContextualPreferences, &prefs)
	require.NoError(t, err)
	require.True(t, found)

	pref := prefs["morning"]
	assert.Equal(t, "deep-focus", pref.RecommendedModel)
	assert.Equal(t, "Hour >= 5 && Hour <= 11", pref.Condition)
}

func TestExecute_EnergyAndBehaviorPersistBlobs(t *testing.T) {
	store, provider := newTestDeps(t)
	ctx := context.Background()
	e := NewExecutor(store, provider, NewCooldownRegistry(), nil)

	ops := []Opportunity{
		{
			Type:       TypeEnergyAdaptation,
			Priority:   PriorityHigh,
			Confidence: 0.89,
			Payload:    EnergyAdaptationPayload{EnergyBucket: "low", ExpectedOutcome: 40},
		},
		{
			Type:       TypeBehaviorAdaptation,
			Priority:   PriorityMedium,
			Confidence: 0.82,
			Payload:    BehaviorAdaptationPayload{ShiftKind: "break-skipping", Delta: 0.4},
		},
	}
	created := e.Execute(ctx, ops, testBaseline(), time.Now())
	require.Len(t, created, 2)

	energy := make(map[string]EnergyAdjustment)
	_, err := store.Load(ctx, storage.KeyEnergyAdaptations, &energy)
	require.NoError(t, err)
	assert.Contains(t, energy, "low")

	behavior := make(map[string]BehavioralAdjustment)
	_, err = store.Load(ctx, storage.KeyBehavioralAdaptations, &behavior)
	require.NoError(t, err)
	assert.Contains(t, behavior, "break-skipping")
}

func TestExecute_TrendResponseAppliesCorrections(t *testing.T) {
	store, provider := newTestDeps(t)
	ctx := context.Background()
	registry := NewCooldownRegistry()
	e := NewExecutor(store, provider, registry, nil)

	op := Opportunity{
		Type:       TypeTrendResponse,
		Priority:   PriorityHigh,
		Confidence: 0.95,
		Payload: TrendResponsePayload{
			Trend:  -1.5,
			Causes: []string{"completion rate declined week over week"},
			Corrections: []Opportunity{
				modelSwitchOp("quick-sprints", "deep-focus"),
				{
					Type:       TypeBehaviorAdaptation,
					Priority:   PriorityMedium,
					Confidence: 0.82,
					Payload:    BehaviorAdaptationPayload{ShiftKind: "declining-trend", Delta: -1.5},
				},
			},
		},
	}

	now := time.Now()
	created := e.Execute(ctx, []Opportunity{op}, testBaseline(), now)

	// One record for the trend response; corrections share it.
	require.Len(t, created, 1)
	assert.Equal(t, TypeTrendResponse, created[0].Type)

	assert.Equal(t, "deep-focus", provider.GetString(settings.KeyActiveModel, ""))
	behavior := make(map[string]BehavioralAdjustment)
	_, err := store.Load(ctx, storage.KeyBehavioralAdaptations, &behavior)
	require.NoError(t, err)
	assert.Contains(t, behavior, "declining-trend")

	// Corrections get their own cooldowns.
	assert.True(t, registry.InCooldown(TypeModelSwitch, ModelSwitchPayload{FromModel: "quick-sprints", ToModel: "deep-focus"}, now.Add(time.Hour)))
}

func TestExecute_FailingHandlerDoesNotAbortBatch(t *testing.T) {
	store, provider := newTestDeps(t)
	ctx := context.Background()
	e := NewExecutor(store, provider, NewCooldownRegistry(), nil)

	ops := []Opportunity{
		// Empty target model makes the handler fail.
		modelSwitchOp("a", ""),
		modelSwitchOp("a", "deep-focus"),
	}
	created := e.Execute(ctx, ops, testBaseline(), time.Now())

	require.Len(t, created, 1)
	assert.Equal(t, "deep-focus", provider.GetString(settings.KeyActiveModel, ""))
}

func TestExecute_PanickingHandlerIsRecovered(t *testing.T) {
	store, _ := newTestDeps(t)
	// Nil settings provider: the model-switch handler panics on use.
	e := NewExecutor(store, nil, NewCooldownRegistry(), nil)

	created := e.Execute(context.Background(), []Opportunity{
		modelSwitchOp("a", "b"),
	}, testBaseline(), time.Now())

	assert.Empty(t, created)
}

func TestRollback_RestoresActiveModelExactly(t *testing.T) {
	store, provider := newTestDeps(t)
	ctx := context.Background()
	require.NoError(t, provider.Update(ctx, settings.KeyActiveModel, "quick-sprints", settings.ScopeUser))

	e := NewExecutor(store, provider, NewCooldownRegistry(), nil)
	created := e.Execute(ctx, []Opportunity{modelSwitchOp("quick-sprints", "deep-focus")}, testBaseline(), time.Now())
	require.Len(t, created, 1)
	require.Equal(t, "deep-focus", provider.GetString(settings.KeyActiveModel, ""))

	require.NoError(t, e.Rollback(ctx, created[0]))
	assert.Equal(t, "quick-sprints", provider.GetString(settings.KeyActiveModel, ""))
}

func TestRollback_ClearsPersistedPreference(t *testing.T) {
	store, provider := newTestDeps(t)
	ctx := context.Background()
	e := NewExecutor(store, provider, NewCooldownRegistry(), nil)

	op := Opportunity{
		Type:       TypeContextOptimization,
		Priority:   PriorityMedium,
		Confidence: 0.92,
		Payload:    ContextOptimizationPayload{Bucket: "morning", RecommendedModel: "deep-focus"},
	}
	created := e.Execute(ctx, []Opportunity{op}, testBaseline(), time.Now())
	require.Len(t, created, 1)

	require.NoError(t, e.Rollback(ctx, created[0]))

	prefs := make(map[string]ContextualPreference)
	_, err := store.Load(ctx, storage.KeyContextualPreferences, &prefs)
	require.NoError(t, err)
	assert.NotContains(t, prefs, "morning")
}
