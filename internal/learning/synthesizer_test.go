// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package learning

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/flowpulse/internal/storage"
	"github.com/flowpulse/flowpulse/internal/telemetry"
)

func TestSynthesize_SuccessLabel(t *testing.T) {
	tests := []struct {
		completion float64
		success    bool
	}{
		{0.95, true},
		{0.71, true},
		{0.7, false}, // threshold is strictly greater than
		{0.4, false},
	}

	for _, tt := range tests {
		p := Synthesize("m", SessionCounters{CompletionRate: tt.completion}, telemetry.ContextSnapshot{}, time.Now())
		assert.Equal(t, tt.success, p.Success, "completion %v", tt.completion)
	}
}

func TestSynthesize_IdealDurationDelta(t *testing.T) {
	tests := []struct {
		completion float64
		delta      int
	}{
		{0.3, -15},
		{0.49, -15},
		{0.5, -5},
		{0.69, -5},
		{0.7, 0},
		{0.9, 0},
		{0.91, 10},
	}

	for _, tt := range tests {
		p := Synthesize("m", SessionCounters{CompletionRate: tt.completion}, telemetry.ContextSnapshot{}, time.Now())
		assert.Equal(t, tt.delta, p.Hints.IdealDurationDelta, "completion %v", tt.completion)
	}
}

func TestSynthesize_BreakPattern(t *testing.T) {
	tests := []struct {
		name     string
		counters SessionCounters
		pattern  string
	}{
		{"no breaks", SessionCounters{BreaksTaken: 0, FocusPeriods: 4}, BreakPatternSkips},
		{"break per focus period", SessionCounters{BreaksTaken: 4, FocusPeriods: 4}, BreakPatternFrequent},
		{"occasional breaks", SessionCounters{BreaksTaken: 1, FocusPeriods: 4}, BreakPatternRegular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Synthesize("m", tt.counters, telemetry.ContextSnapshot{}, time.Now())
			assert.Equal(t, tt.pattern, p.Hints.PreferredBreakPattern)
		})
	}
}

func TestSynthesize_OptimalBreakFrequency(t *testing.T) {
	// High interruption rate shortens the interval.
	p := Synthesize("m", SessionCounters{Interruptions: 4, FocusPeriods: 3}, telemetry.ContextSnapshot{}, time.Now())
	assert.Equal(t, 20, p.Hints.OptimalBreakFrequency)

	// Calm session lengthens it.
	p = Synthesize("m", SessionCounters{Interruptions: 0, FocusPeriods: 3}, telemetry.ContextSnapshot{}, time.Now())
	assert.Equal(t, 40, p.Hints.OptimalBreakFrequency)

	// Moderate rate keeps the baseline.
	p = Synthesize("m", SessionCounters{Interruptions: 2, FocusPeriods: 4}, telemetry.ContextSnapshot{}, time.Now())
	assert.Equal(t, 30, p.Hints.OptimalBreakFrequency)
}

func newTestSynthesizer(t *testing.T, cap, keep int) (*Synthesizer, storage.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewSynthesizer(store, cap, keep), store
}

func TestOnSessionEnd_BoundedHistory(t *testing.T) {
	s, _ := newTestSynthesizer(t, 10, 5)

	for i := 0; i < 11; i++ {
		s.OnSessionEnd("m", SessionCounters{CompletionRate: 0.8}, telemetry.ContextSnapshot{HourOfDay: i})
	}

	// Overflow at 11 trims to the 5 most-recent entries.
	history := s.History()
	require.Len(t, history, 5)
	assert.Equal(t, 6, history[0].Context.HourOfDay)
	assert.Equal(t, 10, history[4].Context.HourOfDay)
}

func TestOnSessionEnd_PersistsBoundedSlice(t *testing.T) {
	s, store := newTestSynthesizer(t, 100, 50)

	for i := 0; i < 25; i++ {
		s.OnSessionEnd("m", SessionCounters{CompletionRate: 0.8}, telemetry.ContextSnapshot{})
	}

	var blob learningBlob
	found, err := store.Load(context.Background(), storage.KeyUsageAnalytics, &blob)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, blob.LearningData, persistedPoints)
}

func TestRestore(t *testing.T) {
	s, store := newTestSynthesizer(t, 100, 50)
	s.OnSessionEnd("deep-focus", SessionCounters{CompletionRate: 0.9}, telemetry.ContextSnapshot{})

	fresh := NewSynthesizer(store, 100, 50)
	require.NoError(t, fresh.Restore(context.Background()))

	history := fresh.History()
	require.Len(t, history, 1)
	assert.Equal(t, "deep-focus", history[0].ModelID)
}
