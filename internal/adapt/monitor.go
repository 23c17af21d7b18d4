// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapt

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/flowpulse/flowpulse/internal/analytics"
	"github.com/flowpulse/flowpulse/internal/notify"
	"github.com/flowpulse/flowpulse/internal/storage"
)

// MetricsProvider supplies the current metrics snapshot at evaluation time.
// ok is false when no usable data exists yet; the evaluation is then skipped
// and retried next tick rather than misclassified.
type MetricsProvider func(ctx context.Context, now time.Time) (analytics.MetricsSnapshot, bool)

// Monitor judges Active adaptations after their observation window and routes
// failures to rollback. Rollback execution is scheduled off the evaluation
// path so a slow handler cannot stall the monitoring pass.
type Monitor struct {
	store    storage.Store
	executor *Executor
	notifier notify.Notifier
	metrics  MetricsProvider

	rollbackDelay time.Duration
	schedule      func(delay time.Duration, fn func())
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithRollbackDelay sets the gap between a NeedsRollback verdict and the
// rollback attempt.
func WithRollbackDelay(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d >= 0 {
			m.rollbackDelay = d
		}
	}
}

// WithScheduler replaces the default timer-based rollback scheduling, so the
// engine can route it through its own cancellable scheduler.
func WithScheduler(schedule func(delay time.Duration, fn func())) MonitorOption {
	return func(m *Monitor) {
		m.schedule = schedule
	}
}

// NewMonitor creates a monitor. notifier may be nil.
func NewMonitor(store storage.Store, executor *Executor, metrics MetricsProvider, notifier notify.Notifier, opts ...MonitorOption) *Monitor {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	m := &Monitor{
		store:         store,
		executor:      executor,
		notifier:      notifier,
		metrics:       metrics,
		rollbackDelay: 5 * time.Second,
		schedule: func(delay time.Duration, fn func()) {
			time.AfterFunc(delay, fn)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EvaluationStats summarizes one monitoring pass.
type EvaluationStats struct {
	Evaluated  int
	Successful int
	Rollbacks  int
	Skipped    int
}

// Evaluate judges every Active adaptation whose age has reached its
// monitoring interval, and re-schedules rollback for records stuck in
// NeedsRollback from earlier failed attempts.
func (m *Monitor) Evaluate(ctx context.Context, now time.Time) (EvaluationStats, error) {
	var stats EvaluationStats

	history, err := m.loadHistory(ctx)
	if err != nil {
		return stats, err
	}

	changed := false
	var pendingRollbacks []string
	for i, adaptation := range history {
		switch {
		case adaptation.Due(now):
			updated, verdict := m.evaluateOne(ctx, adaptation, now)
			switch verdict {
			case StateSuccessful:
				stats.Evaluated++
				stats.Successful++
				history[i] = updated
				changed = true
			case StateNeedsRollback:
				stats.Evaluated++
				stats.Rollbacks++
				history[i] = updated
				changed = true
				pendingRollbacks = append(pendingRollbacks, updated.ID)
			default:
				stats.Skipped++
			}

		case adaptation.State == StateNeedsRollback:
			// A previous rollback attempt failed; try again.
			stats.Rollbacks++
			pendingRollbacks = append(pendingRollbacks, adaptation.ID)
		}
	}

	if changed {
		if err := m.saveHistory(ctx, history); err != nil {
			return stats, err
		}
	}

	// Rollbacks are scheduled only after the verdicts are persisted, so the
	// decoupled rollback path always sees the NeedsRollback state.
	for _, id := range pendingRollbacks {
		m.scheduleRollback(id)
	}
	return stats, nil
}

// evaluateOne returns the transitioned record and the verdict state, or the
// original record and "" when evaluation data is missing.
func (m *Monitor) evaluateOne(ctx context.Context, adaptation Adaptation, now time.Time) (Adaptation, State) {
	current, ok := m.metrics(ctx, now)
	if !ok {
		log.Warnf("Skipping impact evaluation for %s: no current metrics", adaptation.ID)
		return adaptation, ""
	}

	improvement := overallImprovement(adaptation.Baseline, current)

	verdict := StateNeedsRollback
	if improvement > 0 {
		verdict = StateSuccessful
	}

	updated, err := adaptation.Transition(verdict)
	if err != nil {
		log.Errorf("Impact evaluation for %s: %v", adaptation.ID, err)
		return adaptation, ""
	}
	updated.Impact = &current
	updated.OverallImprovement = &improvement

	log.Infof("Adaptation %s (%s) evaluated: improvement %.2f -> %s",
		adaptation.ID, adaptation.Type, improvement, verdict)
	return updated, verdict
}

func (m *Monitor) scheduleRollback(adaptationID string) {
	m.schedule(m.rollbackDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.ExecuteRollback(ctx, adaptationID); err != nil {
			log.Errorf("Rollback of adaptation %s failed: %v", adaptationID, err)
		}
	})
}

// ExecuteRollback reverts one NeedsRollback adaptation. On handler failure
// the record stays in NeedsRollback so it can be retried or surfaced.
func (m *Monitor) ExecuteRollback(ctx context.Context, adaptationID string) error {
	history, err := m.loadHistory(ctx)
	if err != nil {
		return err
	}

	idx := -1
	for i, a := range history {
		if a.ID == adaptationID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("adaptation %s not found", adaptationID)
	}

	adaptation := history[idx]
	if adaptation.State != StateNeedsRollback {
		// Already rolled back by a competing attempt, or never failed.
		return nil
	}

	if err := m.executor.Rollback(ctx, adaptation); err != nil {
		return fmt.Errorf("rollback handler failed: %w", err)
	}

	updated, err := adaptation.Transition(StateRolledBack)
	if err != nil {
		return err
	}
	now := time.Now()
	updated.RolledBackAt = &now

	// Suppress the same change from re-triggering right after the revert.
	m.executor.cooldowns.Set(TypeRollback, adaptation.Source.Payload, now)

	history[idx] = updated
	if err := m.saveHistory(ctx, history); err != nil {
		return err
	}

	m.notifier.AdaptationReverted(adaptation.Description)
	return nil
}

// History returns a copy of the persisted adaptation records.
func (m *Monitor) History(ctx context.Context) ([]Adaptation, error) {
	return m.loadHistory(ctx)
}

func (m *Monitor) loadHistory(ctx context.Context) ([]Adaptation, error) {
	var history []Adaptation
	if _, err := m.store.Load(ctx, storage.KeyAdaptationHistory, &history); err != nil {
		return nil, fmt.Errorf("failed to load adaptation history: %w", err)
	}
	return history, nil
}

func (m *Monitor) saveHistory(ctx context.Context, history []Adaptation) error {
	if err := m.store.Save(ctx, storage.KeyAdaptationHistory, history); err != nil {
		return fmt.Errorf("failed to save adaptation history: %w", err)
	}
	return nil
}
