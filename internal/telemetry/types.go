// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package telemetry captures discrete behavioral events from the host
// application. Every event carries a fresh context snapshot taken at
// creation time; events are immutable once recorded.
package telemetry

import (
	"time"
)

// EventType identifies the kind of behavioral event.
type EventType string

const (
	EventModelSelected       EventType = "model-selected"
	EventSessionStarted      EventType = "session-started"
	EventSessionEnded        EventType = "session-ended"
	EventBreakTaken          EventType = "break-taken"
	EventBreakSkipped        EventType = "break-skipped"
	EventDistractionDetected EventType = "distraction-detected"
	EventFeedbackGiven       EventType = "feedback-given"
)

// Critical reports whether events of this type anchor downstream aggregation
// and must be persisted synchronously at record time.
func (t EventType) Critical() bool {
	switch t {
	case EventModelSelected, EventSessionEnded, EventFeedbackGiven:
		return true
	}
	return false
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventModelSelected, EventSessionStarted, EventSessionEnded,
		EventBreakTaken, EventBreakSkipped, EventDistractionDetected, EventFeedbackGiven:
		return true
	}
	return false
}

// ContextSnapshot is a point-in-time picture of the user's working context.
// It is a value type, derived fresh at event creation and never shared by
// reference across events.
type ContextSnapshot struct {
	HourOfDay         int    `json:"hour_of_day"`       // 0-23
	DayOfWeek         int    `json:"day_of_week"`       // 0-6, Sunday = 0
	TaskCategory      string `json:"task_category"`     // e.g. "coding", "writing", "meetings"
	ScreenActivity    int    `json:"screen_activity"`   // 1-10
	NotificationLoad  int    `json:"notification_load"` // pending notifications
	EnergyLevel       int    `json:"energy_level"`      // 1-10, inferred
	MinutesSinceBreak int    `json:"minutes_since_break"`
	OpenDocuments     int    `json:"open_documents"`
}

// TimeBucket classifies the snapshot's hour into a coarse time-of-day bucket.
func (c ContextSnapshot) TimeBucket() string {
	switch {
	case c.HourOfDay >= 5 && c.HourOfDay < 12:
		return "morning"
	case c.HourOfDay >= 12 && c.HourOfDay < 17:
		return "afternoon"
	case c.HourOfDay >= 17 && c.HourOfDay < 22:
		return "evening"
	default:
		return "night"
	}
}

// EnergyBucket classifies the snapshot's energy level.
func (c ContextSnapshot) EnergyBucket() string {
	switch {
	case c.EnergyLevel >= 7:
		return "high"
	case c.EnergyLevel >= 4:
		return "medium"
	default:
		return "low"
	}
}

// ContextSource supplies fresh context snapshots. The screen-time and idle
// polling machinery lives outside this subsystem; only the contract is here.
type ContextSource interface {
	Snapshot(now time.Time) ContextSnapshot
}

// ContextSourceFunc adapts a function to the ContextSource interface.
type ContextSourceFunc func(now time.Time) ContextSnapshot

func (f ContextSourceFunc) Snapshot(now time.Time) ContextSnapshot { return f(now) }

// ClockContextSource is the fallback source used when the host provides no
// richer signal. It fills in the time-derived fields and leaves the inferred
// ones at neutral values.
type ClockContextSource struct{}

func (ClockContextSource) Snapshot(now time.Time) ContextSnapshot {
	return ContextSnapshot{
		HourOfDay:   now.Hour(),
		DayOfWeek:   int(now.Weekday()),
		EnergyLevel: 5,
	}
}

// UsageEvent is an immutable behavioral event record.
type UsageEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	ModelID   string                 `json:"model_id,omitempty"`
	Context   ContextSnapshot        `json:"context"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
