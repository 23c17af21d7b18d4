// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package engine wires the personalization pipeline together and drives it
// from one periodic scheduler tick: aggregate, detect, execute, monitor.
// Event ingestion stays asynchronous relative to the tick.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/flowpulse/flowpulse/internal/adapt"
	"github.com/flowpulse/flowpulse/internal/analytics"
	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/learning"
	"github.com/flowpulse/flowpulse/internal/modelgen"
	"github.com/flowpulse/flowpulse/internal/notify"
	"github.com/flowpulse/flowpulse/internal/scheduler"
	"github.com/flowpulse/flowpulse/internal/settings"
	"github.com/flowpulse/flowpulse/internal/storage"
	"github.com/flowpulse/flowpulse/internal/telemetry"
)

// Stats holds engine counters, copied out on read.
type Stats struct {
	TicksRun                int64     `json:"ticks_run"`
	OpportunitiesDetected   int64     `json:"opportunities_detected"`
	OpportunitiesExecuted   int64     `json:"opportunities_executed"`
	OpportunitiesSuppressed int64     `json:"opportunities_suppressed"`
	AdaptationsSuccessful   int64     `json:"adaptations_successful"`
	RollbacksScheduled      int64     `json:"rollbacks_scheduled"`
	LastTickAt              time.Time `json:"last_tick_at,omitempty"`
}

// Engine owns the full adaptation pipeline. Construct one per process and
// pass it explicitly to consumers; there is no shared global instance.
type Engine struct {
	cfg      *config.Config
	store    storage.Store
	settings *settings.Provider
	notifier notify.Notifier

	recorder    *telemetry.Recorder
	synthesizer *learning.Synthesizer
	aggregator  *analytics.Aggregator
	generator   *modelgen.Generator
	cooldowns   *adapt.CooldownRegistry
	detector    *adapt.Detector
	executor    *adapt.Executor
	monitor     *adapt.Monitor
	evaluator   *adapt.RuleEvaluator
	loop        *scheduler.Loop
	watcher     *settings.Watcher

	mu    sync.Mutex
	stats Stats
}

// New assembles an engine from its collaborators. source may be nil (clock
// fallback), notifier may be nil (log-only).
func New(cfg *config.Config, store storage.Store, provider *settings.Provider, source telemetry.ContextSource, notifier notify.Notifier) *Engine {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	var archiver *storage.Archiver
	if cfg.Storage.ArchiveDir != "" {
		archiver = storage.NewArchiver(cfg.Storage.ArchiveDir, cfg.Storage.RetentionDays)
	}

	e := &Engine{
		cfg:      cfg,
		store:    store,
		settings: provider,
		notifier: notifier,
	}

	e.recorder = telemetry.NewRecorder(store, archiver, source, cfg.GetFlushInterval())
	e.synthesizer = learning.NewSynthesizer(store, cfg.Engine.LearningHistoryCap, cfg.Engine.LearningHistoryKeep)
	e.aggregator = analytics.NewAggregator()
	e.generator = modelgen.NewGenerator(cfg.GetGenerationBudget())
	e.cooldowns = adapt.NewCooldownRegistry()
	e.detector = adapt.NewDetector(e.cooldowns)
	e.executor = adapt.NewExecutor(store, provider, e.cooldowns, notifier,
		adapt.WithMonitoringInterval(cfg.GetMonitoringInterval()))
	e.evaluator = adapt.NewRuleEvaluator()
	e.loop = scheduler.NewLoop(cfg.GetTickInterval(), e.tick)
	e.monitor = adapt.NewMonitor(store, e.executor, e.currentMetrics, notifier,
		adapt.WithRollbackDelay(cfg.GetRollbackDelay()),
		adapt.WithScheduler(e.loop.After))
	e.watcher = settings.NewWatcher(provider, e.onSettingsChange)

	return e
}

// Start restores persisted state and launches the recorder, the settings
// watcher, and the tick loop. The loop starts paused when adaptive learning
// is disabled in settings.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.synthesizer.Restore(ctx); err != nil {
		log.Warnf("Failed to restore learning history: %v", err)
	}
	e.recorder.Start()

	if e.cfg.Engine.Enabled {
		if err := e.loop.Start(ctx); err != nil {
			return fmt.Errorf("failed to start adaptation loop: %w", err)
		}
		if !e.adaptiveEnabled() {
			e.loop.Pause()
		}
	}

	if err := e.watcher.Start(); err != nil {
		log.Warnf("Settings watcher unavailable: %v", err)
	}

	log.Info("Personalization engine started")
	return nil
}

// Shutdown drains the pipeline: stops the loop and watcher, flushes buffered
// events, and writes the final adaptation results.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.watcher.Stop()
	e.loop.Stop()

	if err := e.recorder.Close(); err != nil {
		log.Warnf("Failed to close recorder: %v", err)
	}

	history, err := e.monitor.History(ctx)
	if err != nil {
		return fmt.Errorf("failed to load final adaptation results: %w", err)
	}
	if err := e.store.Save(ctx, storage.KeyFinalAdaptationResults, history); err != nil {
		return fmt.Errorf("failed to write final adaptation results: %w", err)
	}

	log.Info("Personalization engine stopped")
	return nil
}

// tick runs one adaptation cycle: aggregate, detect, execute, monitor.
func (e *Engine) tick(ctx context.Context) {
	now := time.Now()
	events := e.recorder.Window()
	points := e.synthesizer.History()

	report := e.aggregator.Report(events, points, now)
	activeModel := e.settings.GetString(settings.KeyActiveModel, "")

	opportunities, suppressed := e.detector.Detect(report, activeModel, now)

	var executed int
	if len(opportunities) > 0 {
		baseline := e.aggregator.Snapshot(events, points, now)
		created := e.executor.Execute(ctx, opportunities, baseline, now)
		executed = len(created)
	}

	evalStats, err := e.monitor.Evaluate(ctx, now)
	if err != nil {
		log.Errorf("Impact evaluation failed: %v", err)
	}
	e.cooldowns.Prune(now)

	e.mu.Lock()
	e.stats.TicksRun++
	e.stats.OpportunitiesDetected += int64(len(opportunities))
	e.stats.OpportunitiesExecuted += int64(executed)
	e.stats.OpportunitiesSuppressed += int64(suppressed)
	e.stats.AdaptationsSuccessful += int64(evalStats.Successful)
	e.stats.RollbacksScheduled += int64(evalStats.Rollbacks)
	e.stats.LastTickAt = now
	e.mu.Unlock()

	log.Debugf("Tick complete: %d opportunities, %d executed, %d suppressed",
		len(opportunities), executed, suppressed)
}

// TickNow runs one adaptation cycle immediately, outside the schedule.
func (e *Engine) TickNow(ctx context.Context) {
	e.tick(ctx)
}

// currentMetrics supplies the impact monitor with a current snapshot. ok is
// false when no recent data exists, so evaluations are deferred instead of
// misclassified.
func (e *Engine) currentMetrics(ctx context.Context, now time.Time) (analytics.MetricsSnapshot, bool) {
	weekAgo := now.AddDate(0, 0, -7)
	events := e.recorder.EventsSince(weekAgo)
	points := e.synthesizer.History()

	recent := false
	for _, p := range points {
		if !p.Timestamp.Before(weekAgo) {
			recent = true
			break
		}
	}
	if len(events) == 0 && !recent {
		return analytics.MetricsSnapshot{}, false
	}
	return e.aggregator.Snapshot(e.recorder.Window(), points, now), true
}

// onSettingsChange pauses or resumes the loop when the adaptive-learning
// flag flips externally.
func (e *Engine) onSettingsChange() {
	if !e.loop.Running() {
		return
	}
	if e.adaptiveEnabled() {
		e.loop.Resume()
	} else {
		e.loop.Pause()
	}
}

func (e *Engine) adaptiveEnabled() bool {
	return e.settings.GetBool(settings.KeyAdaptiveEnabled, true)
}

// SelectModel records the user choosing a scheduling model and makes it the
// active one.
func (e *Engine) SelectModel(ctx context.Context, modelID string) error {
	e.recorder.RecordModelSelected(modelID)
	if err := e.settings.Update(ctx, settings.KeyActiveModel, modelID, settings.ScopeUser); err != nil {
		e.notifier.SettingsSaveFailed(err.Error())
		return fmt.Errorf("failed to persist active model: %w", err)
	}
	return nil
}

// StartSession records the start of a focused work session.
func (e *Engine) StartSession(modelID string) {
	e.recorder.RecordSessionStarted(modelID)
}

// EndSession records the end of a work session and feeds the learning
// synthesizer.
func (e *Engine) EndSession(modelID string, counters learning.SessionCounters) learning.DataPoint {
	event := e.recorder.RecordSessionEnded(modelID, map[string]interface{}{
		"completion_rate":  counters.CompletionRate,
		"interruptions":    counters.Interruptions,
		"breaks_taken":     counters.BreaksTaken,
		"focus_periods":    counters.FocusPeriods,
		"manual_overrides": counters.ManualOverrides,
		"duration_minutes": float64(counters.DurationMinutes),
	})
	return e.synthesizer.OnSessionEnd(modelID, counters, event.Context)
}

// RecordBreakTaken records the user taking a suggested break.
func (e *Engine) RecordBreakTaken() { e.recorder.RecordBreakTaken() }

// RecordBreakSkipped records the user skipping a suggested break.
func (e *Engine) RecordBreakSkipped() { e.recorder.RecordBreakSkipped() }

// RecordDistraction records a detected distraction.
func (e *Engine) RecordDistraction(kind string) { e.recorder.RecordDistraction(kind) }

// RecordFeedback records explicit user feedback about a scheduling model.
func (e *Engine) RecordFeedback(modelID string, satisfaction float64, comment string) {
	e.recorder.RecordFeedback(modelID, satisfaction, comment)
}

// Report computes a fresh performance report from the current buffers.
func (e *Engine) Report() *analytics.PerformanceReport {
	return e.aggregator.Report(e.recorder.Window(), e.synthesizer.History(), time.Now())
}

// GenerateModels synthesizes candidate scheduling models for an assessment,
// honoring the generation latency budget. Callable outside the tick.
func (e *Engine) GenerateModels(ctx context.Context, assessment modelgen.Assessment) *modelgen.GenerationResult {
	return e.generator.Generate(ctx, assessment, e.observedData(time.Now()))
}

// observedData derives the generation input signals from the current
// buffers. Missing signals stay zero and only lower confidence.
func (e *Engine) observedData(now time.Time) modelgen.ObservedData {
	weekAgo := now.AddDate(0, 0, -7)
	events := e.recorder.EventsSince(weekAgo)
	points := e.synthesizer.History()

	data := modelgen.ObservedData{
		UsageHistorySessions: len(points),
	}

	seenTypes := make(map[telemetry.EventType]bool)
	var durationSum, durationCount float64
	for _, ev := range events {
		seenTypes[ev.Type] = true
		if ev.Context.EnergyLevel > 0 {
			data.HourlyEnergySamples++
		}
		if ev.Type == telemetry.EventSessionEnded {
			if minutes, ok := ev.Metadata["duration_minutes"].(float64); ok && minutes > 0 {
				durationSum += minutes
				durationCount++
			}
		}
		if ev.Type == telemetry.EventDistractionDetected {
			if kind, ok := ev.Metadata["kind"].(string); ok && kind == "burnout" {
				if ev.Timestamp.After(data.LastBurnoutAt) {
					data.LastBurnoutAt = ev.Timestamp
				}
			}
		}
	}
	data.ActivitySignals = len(seenTypes)
	if durationCount > 0 {
		data.AverageSessionMinutes = durationSum / durationCount
	}

	return data
}

// PreferredModelFor resolves the persisted contextual preferences against a
// context snapshot. Returns "" when no preference matches.
func (e *Engine) PreferredModelFor(ctx context.Context, snap telemetry.ContextSnapshot) string {
	prefs := make(map[string]adapt.ContextualPreference)
	if _, err := e.store.Load(ctx, storage.KeyContextualPreferences, &prefs); err != nil {
		log.Warnf("Failed to load contextual preferences: %v", err)
		return ""
	}
	return e.evaluator.PreferredModel(prefs, snap)
}

// Adaptations returns the persisted adaptation history.
func (e *Engine) Adaptations(ctx context.Context) ([]adapt.Adaptation, error) {
	return e.monitor.History(ctx)
}

// Stats returns a copy of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// RecorderStats returns a copy of the recorder counters.
func (e *Engine) RecorderStats() telemetry.RecorderStats {
	return e.recorder.Stats()
}

// Paused reports whether the adaptation loop is currently paused.
func (e *Engine) Paused() bool {
	return e.loop.Paused()
}
