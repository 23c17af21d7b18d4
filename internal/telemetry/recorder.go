// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/flowpulse/flowpulse/internal/storage"
)

// maxPersistedEvents bounds the event list kept inside the analytics blob.
// Older events are archived and dropped from the live store.
const maxPersistedEvents = 1000

// maxWindowEvents bounds the in-memory rolling window used by aggregation.
const maxWindowEvents = 2000

// analyticsBlob is the recorder's view of the usageAnalyticsData store value.
// Sections owned by other packages pass through untouched.
type analyticsBlob struct {
	Events       []UsageEvent    `json:"events"`
	Sessions     json.RawMessage `json:"sessions,omitempty"`
	LearningData json.RawMessage `json:"learningData,omitempty"`
}

// RecorderStats holds recorder counters, copied out on read.
type RecorderStats struct {
	Recorded      int64     `json:"recorded"`
	Flushed       int64     `json:"flushed"`
	Dropped       int64     `json:"dropped"`
	LastFlush     time.Time `json:"last_flush,omitempty"`
	BufferPending int       `json:"buffer_pending"`
}

// Recorder captures usage events. Recording is synchronous and cheap: events
// land in an in-memory buffer and a rolling window; a background loop drains
// the buffer into the persistent store on a fixed interval. Critical event
// kinds are additionally persisted at record time.
type Recorder struct {
	store    storage.Store
	archiver *storage.Archiver
	source   ContextSource

	flushInterval time.Duration

	mu      sync.Mutex
	pending []UsageEvent // awaiting flush
	window  []UsageEvent // rolling window for aggregation
	stats   RecorderStats

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRecorder creates a recorder. source may be nil, in which case the
// clock-only fallback source is used.
func NewRecorder(store storage.Store, archiver *storage.Archiver, source ContextSource, flushInterval time.Duration) *Recorder {
	if source == nil {
		source = ClockContextSource{}
	}
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Recorder{
		store:         store,
		archiver:      archiver,
		source:        source,
		flushInterval: flushInterval,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop. It restores the persisted event
// window first so aggregation survives restarts.
func (r *Recorder) Start() {
	r.restoreWindow()

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				r.Flush()
			}
		}
	}()

	log.Info("Event recorder started")
}

// Close stops the flush loop and performs a final flush.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		r.cancel()
		<-r.done
		r.Flush()
	})
	return nil
}

// RecordModelSelected records the user choosing a scheduling model.
func (r *Recorder) RecordModelSelected(modelID string) UsageEvent {
	return r.record(EventModelSelected, modelID, nil)
}

// RecordSessionStarted records the start of a focused work session.
func (r *Recorder) RecordSessionStarted(modelID string) UsageEvent {
	return r.record(EventSessionStarted, modelID, nil)
}

// RecordSessionEnded records the end of a work session. metadata carries the
// session counters consumed by the learning synthesizer (completion_rate,
// interruptions, breaks_taken, manual_overrides, duration_minutes).
func (r *Recorder) RecordSessionEnded(modelID string, metadata map[string]interface{}) UsageEvent {
	return r.record(EventSessionEnded, modelID, metadata)
}

// RecordBreakTaken records the user taking a suggested break.
func (r *Recorder) RecordBreakTaken() UsageEvent {
	return r.record(EventBreakTaken, "", nil)
}

// RecordBreakSkipped records the user skipping a suggested break.
func (r *Recorder) RecordBreakSkipped() UsageEvent {
	return r.record(EventBreakSkipped, "", nil)
}

// RecordDistraction records a detected distraction.
func (r *Recorder) RecordDistraction(kind string) UsageEvent {
	return r.record(EventDistractionDetected, "", map[string]interface{}{"kind": kind})
}

// RecordFeedback records explicit user feedback about a scheduling model.
// satisfaction is on a 1-5 scale.
func (r *Recorder) RecordFeedback(modelID string, satisfaction float64, comment string) UsageEvent {
	md := map[string]interface{}{"satisfaction": satisfaction}
	if comment != "" {
		md["comment"] = comment
	}
	return r.record(EventFeedbackGiven, modelID, md)
}

func (r *Recorder) record(t EventType, modelID string, metadata map[string]interface{}) UsageEvent {
	now := time.Now()
	event := UsageEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: now,
		ModelID:   modelID,
		Context:   r.source.Snapshot(now),
		Metadata:  metadata,
	}

	r.mu.Lock()
	r.pending = append(r.pending, event)
	r.window = append(r.window, event)
	if len(r.window) > maxWindowEvents {
		r.window = r.window[len(r.window)-maxWindowEvents:]
	}
	r.stats.Recorded++
	r.mu.Unlock()

	if t.Critical() {
		// Critical events anchor downstream aggregation; persist them now
		// rather than waiting for the next flush.
		r.Flush()
	}

	return event
}

// Window returns a copy of the rolling event window.
func (r *Recorder) Window() []UsageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]UsageEvent, len(r.window))
	copy(out, r.window)
	return out
}

// EventsSince returns a copy of window events at or after the cutoff.
func (r *Recorder) EventsSince(cutoff time.Time) []UsageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []UsageEvent
	for _, e := range r.window {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Stats returns a copy of the recorder counters.
func (r *Recorder) Stats() RecorderStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.stats
	stats.BufferPending = len(r.pending)
	return stats
}

// Flush drains the pending buffer into the persistent store. Flush never
// fails upward: persistence errors are logged and the batch is dropped
// rather than retried indefinitely.
func (r *Recorder) Flush() {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if err := r.persistBatch(batch); err != nil {
		log.Warnf("Failed to flush %d events, dropping batch: %v", len(batch), err)
		r.mu.Lock()
		r.stats.Dropped += int64(len(batch))
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.stats.Flushed += int64(len(batch))
	r.stats.LastFlush = time.Now()
	r.mu.Unlock()
}

func (r *Recorder) persistBatch(batch []UsageEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var blob analyticsBlob
	if _, err := r.store.Load(ctx, storage.KeyUsageAnalytics, &blob); err != nil {
		return fmt.Errorf("failed to load analytics data: %w", err)
	}

	blob.Events = append(blob.Events, batch...)

	// Overflow beyond the persisted bound goes to the gzip archive.
	if len(blob.Events) > maxPersistedEvents {
		overflow := blob.Events[:len(blob.Events)-maxPersistedEvents]
		blob.Events = blob.Events[len(blob.Events)-maxPersistedEvents:]
		if r.archiver != nil {
			if err := r.archiver.WriteBatch(overflow, time.Now()); err != nil {
				log.Warnf("Failed to archive %d events: %v", len(overflow), err)
			}
		}
	}

	if err := r.store.Save(ctx, storage.KeyUsageAnalytics, &blob); err != nil {
		return fmt.Errorf("failed to save analytics data: %w", err)
	}
	return nil
}

// restoreWindow reloads persisted events into the rolling window.
func (r *Recorder) restoreWindow() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var blob analyticsBlob
	found, err := r.store.Load(ctx, storage.KeyUsageAnalytics, &blob)
	if err != nil {
		log.Warnf("Failed to restore event window: %v", err)
		return
	}
	if !found || len(blob.Events) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	events := blob.Events
	if len(events) > maxWindowEvents {
		events = events[len(events)-maxWindowEvents:]
	}
	r.window = append(events, r.window...)
}
