// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/flowpulse/internal/storage"
)

func newTestRecorder(t *testing.T) (*Recorder, storage.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := NewRecorder(store, nil, nil, time.Hour)
	t.Cleanup(func() { rec.Close() })
	return rec, store
}

func loadEvents(t *testing.T, store storage.Store) []UsageEvent {
	t.Helper()
	var blob analyticsBlob
	_, err := store.Load(context.Background(), storage.KeyUsageAnalytics, &blob)
	require.NoError(t, err)
	return blob.Events
}

func TestRecord_FreshSnapshotPerEvent(t *testing.T) {
	rec, _ := newTestRecorder(t)

	calls := 0
	rec.source = ContextSourceFunc(func(now time.Time) ContextSnapshot {
		calls++
		return ContextSnapshot{HourOfDay: now.Hour(), EnergyLevel: calls}
	})

	e1 := rec.RecordBreakTaken()
	e2 := rec.RecordBreakSkipped()

	assert.Equal(t, 2, calls)
	assert.NotEqual(t, e1.Context.EnergyLevel, e2.Context.EnergyLevel)
	assert.NotEqual(t, e1.ID, e2.ID)
}

func TestRecord_CriticalEventsPersistImmediately(t *testing.T) {
	rec, store := newTestRecorder(t)

	rec.RecordSessionEnded("deep-focus", map[string]interface{}{"completion_rate": 0.8})

	events := loadEvents(t, store)
	require.Len(t, events, 1)
	assert.Equal(t, EventSessionEnded, events[0].Type)
	assert.Equal(t, "deep-focus", events[0].ModelID)
}

func TestRecord_NonCriticalEventsWaitForFlush(t *testing.T) {
	rec, store := newTestRecorder(t)

	rec.RecordBreakTaken()
	assert.Empty(t, loadEvents(t, store))

	rec.Flush()
	events := loadEvents(t, store)
	require.Len(t, events, 1)
	assert.Equal(t, EventBreakTaken, events[0].Type)
}

func TestFlush_AppendsToExistingEvents(t *testing.T) {
	rec, store := newTestRecorder(t)

	rec.RecordBreakTaken()
	rec.Flush()
	rec.RecordBreakSkipped()
	rec.Flush()

	events := loadEvents(t, store)
	require.Len(t, events, 2)
	assert.Equal(t, EventBreakTaken, events[0].Type)
	assert.Equal(t, EventBreakSkipped, events[1].Type)
}

type failingStore struct{ err error }

func (f *failingStore) Load(ctx context.Context, key string, out interface{}) (bool, error) {
	return false, f.err
}
func (f *failingStore) Save(ctx context.Context, key string, value interface{}) error { return f.err }
func (f *failingStore) Delete(ctx context.Context, key string) error                  { return f.err }
func (f *failingStore) Close() error                                                  { return nil }

func TestFlush_PersistenceFailureDropsBatch(t *testing.T) {
	rec := NewRecorder(&failingStore{err: errors.New("disk full")}, nil, nil, time.Hour)
	defer rec.Close()

	rec.RecordBreakTaken()
	rec.Flush() // must not panic or block

	stats := rec.Stats()
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, 0, stats.BufferPending)
}

func TestWindow_ReturnsCopy(t *testing.T) {
	rec, _ := newTestRecorder(t)

	rec.RecordBreakTaken()
	w := rec.Window()
	require.Len(t, w, 1)

	w[0].ModelID = "mutated"
	assert.Empty(t, rec.Window()[0].ModelID)
}

func TestEventsSince(t *testing.T) {
	rec, _ := newTestRecorder(t)

	rec.RecordBreakTaken()
	cutoff := time.Now().Add(time.Minute)
	assert.Empty(t, rec.EventsSince(cutoff))
	assert.Len(t, rec.EventsSince(time.Now().Add(-time.Minute)), 1)
}

func TestEventTypeCritical(t *testing.T) {
	assert.True(t, EventModelSelected.Critical())
	assert.True(t, EventSessionEnded.Critical())
	assert.True(t, EventFeedbackGiven.Critical())
	assert.False(t, EventBreakTaken.Critical())
	assert.False(t, EventSessionStarted.Critical())
	assert.False(t, EventDistractionDetected.Critical())
}

func TestContextSnapshot_Buckets(t *testing.T) {
	tests := []struct {
		hour   int
		bucket string
	}{
		{6, "morning"}, {11, "morning"}, {12, "afternoon"}, {16, "afternoon"},
		{17, "evening"}, {21, "evening"}, {23, "night"}, {3, "night"},
	}
	for _, tt := range tests {
		snap := ContextSnapshot{HourOfDay: tt.hour}
		assert.Equal(t, tt.bucket, snap.TimeBucket(), "hour %d", tt.hour)
	}

	assert.Equal(t, "high", ContextSnapshot{EnergyLevel: 8}.EnergyBucket())
	assert.Equal(t, "medium", ContextSnapshot{EnergyLevel: 5}.EnergyBucket())
	assert.Equal(t, "low", ContextSnapshot{EnergyLevel: 2}.EnergyBucket())
}

func TestRestoreWindow(t *testing.T) {
	store, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	first := NewRecorder(store, nil, nil, time.Hour)
	first.RecordSessionEnded("deep-focus", nil)
	first.Close()

	second := NewRecorder(store, nil, nil, time.Hour)
	second.restoreWindow()
	defer second.Close()

	w := second.Window()
	require.Len(t, w, 1)
	assert.Equal(t, EventSessionEnded, w[0].Type)
}
