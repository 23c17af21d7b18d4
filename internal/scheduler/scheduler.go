// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scheduler provides the periodic loop driving the adaptation
// pipeline. One abstraction replaces ad hoc timers: an explicit
// start/pause/resume/stop lifecycle with a cancellation token, so re-enabling
// never double-schedules and shutdown cleanly drains scheduled work.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Task is one tick's work. The context is cancelled on Stop.
type Task func(ctx context.Context)

// Loop runs a task on a fixed interval. Safe for concurrent use.
type Loop struct {
	interval time.Duration
	task     Task

	mu      sync.Mutex
	running bool
	paused  bool
	ctx     context.Context
	cancel  context.CancelFunc
	ticker  *time.Ticker
	done    chan struct{}
	timers  map[*time.Timer]struct{}
}

// NewLoop creates a loop. The task runs once per interval while the loop is
// running and not paused.
func NewLoop(interval time.Duration, task Task) *Loop {
	return &Loop{
		interval: interval,
		task:     task,
		timers:   make(map[*time.Timer]struct{}),
	}
}

// Start launches the loop. Starting an already-running loop is an error, so a
// re-enable cannot stack a second timer on top of the first.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("scheduler loop is already running")
	}

	l.ctx, l.cancel = context.WithCancel(ctx)
	l.ticker = time.NewTicker(l.interval)
	l.done = make(chan struct{})
	l.running = true
	l.paused = false

	go l.run()
	log.Infof("Scheduler loop started (interval %v)", l.interval)
	return nil
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.ticker.C:
			l.mu.Lock()
			paused := l.paused
			l.mu.Unlock()
			if paused {
				continue
			}
			l.task(l.ctx)
		}
	}
}

// Pause suspends tick work without tearing down the timer. Idempotent.
func (l *Loop) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running && !l.paused {
		l.paused = true
		log.Info("Scheduler loop paused")
	}
}

// Resume re-enables tick work. A resume on a loop that was never paused or
// is not running is a no-op; the existing timer keeps driving ticks, so no
// second schedule is created.
func (l *Loop) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running && l.paused {
		l.paused = false
		log.Info("Scheduler loop resumed")
	}
}

// Stop cancels the loop and any scheduled one-shots, then waits for the
// in-flight tick to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.cancel()
	l.ticker.Stop()
	for timer := range l.timers {
		timer.Stop()
	}
	l.timers = make(map[*time.Timer]struct{})
	done := l.done
	l.mu.Unlock()

	<-done
	log.Info("Scheduler loop stopped")
}

// After schedules fn once after delay. The timer is cancelled by Stop, so a
// scheduled rollback cannot fire into a torn-down engine.
func (l *Loop) After(delay time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		log.Debug("Ignoring one-shot schedule on stopped loop")
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		l.mu.Lock()
		delete(l.timers, timer)
		l.mu.Unlock()
		fn()
	})
	l.timers[timer] = struct{}{}
}

// Running reports whether the loop has been started and not stopped.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Paused reports whether tick work is currently suspended.
func (l *Loop) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}
