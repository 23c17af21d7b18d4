// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/flowpulse/flowpulse/internal/analytics"
	"github.com/flowpulse/flowpulse/internal/notify"
	"github.com/flowpulse/flowpulse/internal/settings"
	"github.com/flowpulse/flowpulse/internal/storage"
)

// defaultMonitoringInterval is how long an adaptation is observed before its
// impact is judged.
const defaultMonitoringInterval = 7 * 24 * time.Hour

// Executor applies surviving opportunities. Each opportunity performs exactly
// one side effect and produces an Active adaptation record; a failing handler
// is logged and the batch continues.
type Executor struct {
	store     storage.Store
	settings  *settings.Provider
	cooldowns *CooldownRegistry
	notifier  notify.Notifier

	monitoringInterval time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMonitoringInterval overrides the observation window for new
// adaptations.
func WithMonitoringInterval(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.monitoringInterval = d
		}
	}
}

// NewExecutor creates an executor. notifier may be nil.
func NewExecutor(store storage.Store, provider *settings.Provider, cooldowns *CooldownRegistry, notifier notify.Notifier, opts ...ExecutorOption) *Executor {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	e := &Executor{
		store:              store,
		settings:           provider,
		cooldowns:          cooldowns,
		notifier:           notifier,
		monitoringInterval: defaultMonitoringInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies each opportunity in order: sets its cooldown, dispatches
// the type handler, and records an Active adaptation with the baseline
// snapshot. Returns the created records.
func (e *Executor) Execute(ctx context.Context, opportunities []Opportunity, baseline analytics.MetricsSnapshot, now time.Time) []Adaptation {
	var created []Adaptation

	for _, op := range opportunities {
		// The cooldown is set regardless of handler outcome so a failing
		// handler does not retrigger every tick.
		e.cooldowns.Set(op.Type, op.Payload, now)

		if err := e.applyOne(ctx, op); err != nil {
			log.Errorf("Adaptation handler for %s failed: %v", op.Type, err)
			continue
		}

		adaptation := Adaptation{
			ID:                 uuid.NewString(),
			Type:               op.Type,
			Description:        op.Description,
			Source:             op,
			CreatedAt:          now,
			State:              StateActive,
			Baseline:           baseline,
			MonitoringInterval: e.monitoringInterval,
		}

		if err := e.appendHistory(ctx, adaptation); err != nil {
			log.Errorf("Failed to persist adaptation record: %v", err)
		}
		e.notifier.AdaptationApplied(op.Description)
		created = append(created, adaptation)
	}

	return created
}

// applyOne dispatches one opportunity to its handler, converting panics into
// errors so one bad handler cannot abort the batch.
func (e *Executor) applyOne(ctx context.Context, op Opportunity) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	switch payload := op.Payload.(type) {
	case ModelSwitchPayload:
		return e.applyModelSwitch(ctx, payload)
	case ContextOptimizationPayload:
		return e.applyContextOptimization(ctx, payload)
	case EnergyAdaptationPayload:
		return e.applyEnergyAdaptation(ctx, payload)
	case TrendResponsePayload:
		return e.applyTrendResponse(ctx, payload)
	case BehaviorAdaptationPayload:
		return e.applyBehaviorAdaptation(ctx, payload)
	default:
		return fmt.Errorf("no handler for opportunity type %s", op.Type)
	}
}

func (e *Executor) applyModelSwitch(ctx context.Context, payload ModelSwitchPayload) error {
	if payload.ToModel == "" {
		return fmt.Errorf("model switch with empty target")
	}
	if err := e.settings.Update(ctx, settings.KeyActiveModel, payload.ToModel, settings.ScopeUser); err != nil {
		e.notifier.SettingsSaveFailed(err.Error())
		return fmt.Errorf("failed to update active model: %w", err)
	}
	log.Infof("Active model switched %q -> %q", payload.FromModel, payload.ToModel)
	return nil
}

func (e *Executor) applyContextOptimization(ctx context.Context, payload ContextOptimizationPayload) error {
	prefs := make(map[string]ContextualPreference)
	if _, err := e.store.Load(ctx, storage.KeyContextualPreferences, &prefs); err != nil {
		return fmt.Errorf("failed to load contextual preferences: %w", err)
	}

	prefs[payload.Bucket] = ContextualPreference{
		Bucket:           payload.Bucket,
		RecommendedModel: payload.RecommendedModel,
		Effectiveness:    payload.Effectiveness,
		Condition:        bucketConditions[payload.Bucket],
		UpdatedAt:        time.Now(),
	}

	if err := e.store.Save(ctx, storage.KeyContextualPreferences, prefs); err != nil {
		return fmt.Errorf("failed to save contextual preferences: %w", err)
	}
	return nil
}

func (e *Executor) applyEnergyAdaptation(ctx context.Context, payload EnergyAdaptationPayload) error {
	adjustments := make(map[string]EnergyAdjustment)
	if _, err := e.store.Load(ctx, storage.KeyEnergyAdaptations, &adjustments); err != nil {
		return fmt.Errorf("failed to load energy adaptations: %w", err)
	}

	adjustments[payload.EnergyBucket] = EnergyAdjustment{
		EnergyBucket:     payload.EnergyBucket,
		ExpectedOutcome:  payload.ExpectedOutcome,
		RecommendedModel: payload.RecommendedModel,
		UpdatedAt:        time.Now(),
	}

	if err := e.store.Save(ctx, storage.KeyEnergyAdaptations, adjustments); err != nil {
		return fmt.Errorf("failed to save energy adaptations: %w", err)
	}
	return nil
}

func (e *Executor) applyBehaviorAdaptation(ctx context.Context, payload BehaviorAdaptationPayload) error {
	adjustments := make(map[string]BehavioralAdjustment)
	if _, err := e.store.Load(ctx, storage.KeyBehavioralAdaptations, &adjustments); err != nil {
		return fmt.Errorf("failed to load behavioral adaptations: %w", err)
	}

	adjustments[payload.ShiftKind] = BehavioralAdjustment{
		ShiftKind:   payload.ShiftKind,
		Delta:       payload.Delta,
		Description: payload.Description,
		UpdatedAt:   time.Now(),
	}

	if err := e.store.Save(ctx, storage.KeyBehavioralAdaptations, adjustments); err != nil {
		return fmt.Errorf("failed to save behavioral adaptations: %w", err)
	}
	return nil
}

// applyTrendResponse executes the corrective sub-opportunities. They share
// the trend-response adaptation record; their side effects are reverted
// together if the trend response rolls back.
func (e *Executor) applyTrendResponse(ctx context.Context, payload TrendResponsePayload) error {
	log.Infof("Responding to declining trend (%.2f/day): %v", payload.Trend, payload.Causes)

	var failed int
	now := time.Now()
	for _, correction := range payload.Corrections {
		e.cooldowns.Set(correction.Type, correction.Payload, now)
		if err := e.applyOne(ctx, correction); err != nil {
			log.Errorf("Trend correction %s failed: %v", correction.Type, err)
			failed++
		}
	}

	if failed == len(payload.Corrections) && len(payload.Corrections) > 0 {
		return fmt.Errorf("all %d trend corrections failed", failed)
	}
	return nil
}

// Rollback inverts an adaptation's side effect: the prior configuration
// value is restored or the persisted preference cleared.
func (e *Executor) Rollback(ctx context.Context, adaptation Adaptation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rollback panic: %v", r)
		}
	}()
	return e.rollbackPayload(ctx, adaptation.Source.Payload)
}

func (e *Executor) rollbackPayload(ctx context.Context, p Payload) error {
	switch payload := p.(type) {
	case ModelSwitchPayload:
		if err := e.settings.Update(ctx, settings.KeyActiveModel, payload.FromModel, settings.ScopeUser); err != nil {
			e.notifier.SettingsSaveFailed(err.Error())
			return fmt.Errorf("failed to restore active model: %w", err)
		}
		log.Infof("Active model restored to %q", payload.FromModel)
		return nil

	case ContextOptimizationPayload:
		return clearEntry[ContextualPreference](ctx, e.store, storage.KeyContextualPreferences, payload.Bucket)

	case EnergyAdaptationPayload:
		return clearEntry[EnergyAdjustment](ctx, e.store, storage.KeyEnergyAdaptations, payload.EnergyBucket)

	case BehaviorAdaptationPayload:
		return clearEntry[BehavioralAdjustment](ctx, e.store, storage.KeyBehavioralAdaptations, payload.ShiftKind)

	case TrendResponsePayload:
		var firstErr error
		for _, correction := range payload.Corrections {
			if err := e.rollbackPayload(ctx, correction.Payload); err != nil {
				log.Errorf("Failed to revert trend correction %s: %v", correction.Type, err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr

	default:
		return fmt.Errorf("no rollback handler for payload %T", p)
	}
}

// clearEntry removes one key from a persisted preference map.
func clearEntry[T any](ctx context.Context, store storage.Store, key, entry string) error {
	values := make(map[string]T)
	found, err := store.Load(ctx, key, &values)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	if !found {
		return nil
	}

	delete(values, entry)
	if err := store.Save(ctx, key, values); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// appendHistory appends an adaptation to the persisted history.
func (e *Executor) appendHistory(ctx context.Context, adaptation Adaptation) error {
	var history []Adaptation
	if _, err := e.store.Load(ctx, storage.KeyAdaptationHistory, &history); err != nil {
		return fmt.Errorf("failed to load adaptation history: %w", err)
	}
	history = append(history, adaptation)
	if err := e.store.Save(ctx, storage.KeyAdaptationHistory, history); err != nil {
		return fmt.Errorf("failed to save adaptation history: %w", err)
	}
	return nil
}
