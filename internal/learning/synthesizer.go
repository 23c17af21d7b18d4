// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package learning

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/flowpulse/flowpulse/internal/storage"
	"github.com/flowpulse/flowpulse/internal/telemetry"
)

// successThreshold labels a session successful when its completion rate
// exceeds this value.
const successThreshold = 0.7

// persistedPoints bounds the learningData section of the analytics blob.
const persistedPoints = 20

// breakFrequencyBaseline is the starting point for the optimal break
// frequency hint, in minutes.
const breakFrequencyBaseline = 30

// learningBlob is the synthesizer's view of the usageAnalyticsData store
// value. Sections owned by other packages pass through untouched.
type learningBlob struct {
	Events       json.RawMessage `json:"events,omitempty"`
	Sessions     json.RawMessage `json:"sessions,omitempty"`
	LearningData []DataPoint     `json:"learningData"`
}

// Synthesizer turns session counters into data points and maintains the
// bounded in-memory history.
type Synthesizer struct {
	store storage.Store

	cap  int // history bound
	keep int // entries retained after an overflow trim

	mu      sync.RWMutex
	history []DataPoint
}

// NewSynthesizer creates a synthesizer. cap/keep follow the configured
// history bounds; zero values fall back to 100/50.
func NewSynthesizer(store storage.Store, cap, keep int) *Synthesizer {
	if cap < 1 {
		cap = 100
	}
	if keep < 1 || keep > cap {
		keep = cap / 2
		if keep < 1 {
			keep = 1
		}
	}
	return &Synthesizer{store: store, cap: cap, keep: keep}
}

// Restore reloads the persisted learning data into the in-memory history.
func (s *Synthesizer) Restore(ctx context.Context) error {
	var blob learningBlob
	found, err := s.store.Load(ctx, storage.KeyUsageAnalytics, &blob)
	if err != nil {
		return fmt.Errorf("failed to restore learning data: %w", err)
	}
	if !found {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(blob.LearningData, s.history...)
	return nil
}

// OnSessionEnd reduces one session's counters into a data point, appends it
// to the bounded history, and persists the recent slice.
func (s *Synthesizer) OnSessionEnd(modelID string, counters SessionCounters, snap telemetry.ContextSnapshot) DataPoint {
	point := Synthesize(modelID, counters, snap, time.Now())

	s.mu.Lock()
	s.history = append(s.history, point)
	if len(s.history) > s.cap {
		// Trim to the most-recent entries, keeping recency bias without
		// unbounded growth.
		s.history = append([]DataPoint(nil), s.history[len(s.history)-s.keep:]...)
	}
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		log.Warnf("Failed to persist learning data: %v", err)
	}

	return point
}

// History returns a copy of the in-memory data point history.
func (s *Synthesizer) History() []DataPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DataPoint, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Synthesizer) persist() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var blob learningBlob
	if _, err := s.store.Load(ctx, storage.KeyUsageAnalytics, &blob); err != nil {
		return err
	}

	s.mu.RLock()
	recent := s.history
	if len(recent) > persistedPoints {
		recent = recent[len(recent)-persistedPoints:]
	}
	blob.LearningData = append([]DataPoint(nil), recent...)
	s.mu.RUnlock()

	return s.store.Save(ctx, storage.KeyUsageAnalytics, &blob)
}

// Synthesize computes a single data point from session counters. Pure
// function; the timestamp is passed in for testability.
func Synthesize(modelID string, counters SessionCounters, snap telemetry.ContextSnapshot, at time.Time) DataPoint {
	return DataPoint{
		Timestamp: at,
		ModelID:   modelID,
		Success:   counters.CompletionRate > successThreshold,
		Context:   snap,
		Metrics: Metrics{
			CompletionRate:  counters.CompletionRate,
			Interruptions:   counters.Interruptions,
			BreaksTaken:     counters.BreaksTaken,
			FocusPeriods:    counters.FocusPeriods,
			ManualOverrides: counters.ManualOverrides,
		},
		Hints: Hints{
			IdealDurationDelta:    idealDurationDelta(counters.CompletionRate),
			PreferredBreakPattern: classifyBreakPattern(counters),
			OptimalBreakFrequency: optimalBreakFrequency(counters),
		},
	}
}

// idealDurationDelta maps the completion rate to a suggested work duration
// adjustment in minutes.
func idealDurationDelta(completionRate float64) int {
	switch {
	case completionRate < 0.5:
		return -15
	case completionRate < 0.7:
		return -5
	case completionRate > 0.9:
		return 10
	default:
		return 0
	}
}

// classifyBreakPattern buckets the session's break behavior.
func classifyBreakPattern(c SessionCounters) string {
	if c.BreaksTaken == 0 {
		return BreakPatternSkips
	}
	if c.FocusPeriods > 0 && c.BreaksTaken >= c.FocusPeriods {
		return BreakPatternFrequent
	}
	return BreakPatternRegular
}

// optimalBreakFrequency adjusts the 30-minute baseline by +-10 minutes based
// on the interruption rate: frequent interruptions call for earlier breaks,
// uninterrupted sessions can run longer.
func optimalBreakFrequency(c SessionCounters) int {
	periods := c.FocusPeriods
	if periods < 1 {
		periods = 1
	}
	rate := float64(c.Interruptions) / float64(periods)

	switch {
	case rate >= 1.0:
		return breakFrequencyBaseline - 10
	case rate < 0.3:
		return breakFrequencyBaseline + 10
	default:
		return breakFrequencyBaseline
	}
}
