// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package storage provides the persistent key-value store used by the
// personalization engine. Values are JSON-serializable blobs addressed by
// well-known keys. Two backends are available: SQLite (default, local file)
// and Postgres.
package storage

import (
	"context"
	"errors"
)

// Well-known store keys. The shapes behind these keys are owned by the
// packages that write them.
const (
	// KeyUsageAnalytics holds the event buffer spill, session summaries, and
	// the bounded learning data history.
	KeyUsageAnalytics = "usageAnalyticsData"

	// KeyContextualPreferences holds per-context preference blobs written by
	// context-optimization adaptations.
	KeyContextualPreferences = "contextualPreferences"

	// KeyEnergyAdaptations holds energy-level adjustment blobs.
	KeyEnergyAdaptations = "energyAdaptations"

	// KeyBehavioralAdaptations holds behavioral-shift adjustment blobs.
	KeyBehavioralAdaptations = "behavioralAdaptations"

	// KeyAdaptationHistory holds every Adaptation record ever created.
	// Terminal states are retained as history, never deleted.
	KeyAdaptationHistory = "adaptationHistory"

	// KeyFinalAdaptationResults is written once at shutdown with the full
	// adaptation record set.
	KeyFinalAdaptationResults = "finalAdaptationResults"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// Store is the persistent key-value store contract. Implementations must be
// safe for concurrent use.
type Store interface {
	// Load reads the value stored under key into out. It returns false with
	// a nil error when the key does not exist; callers supply their own
	// defaults in that case.
	Load(ctx context.Context, key string, out interface{}) (bool, error)

	// Save serializes value as JSON and stores it under key, replacing any
	// previous value.
	Save(ctx context.Context, key string, value interface{}) error

	// Delete removes the value stored under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}
