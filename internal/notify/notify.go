// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package notify is the fire-and-forget notification surface. Outcomes are
// presented to the user but never gate the pipeline; responses, if any,
// arrive asynchronously.
package notify

import (
	log "github.com/sirupsen/logrus"
)

// Notifier presents adaptation outcomes. Implementations must not block.
type Notifier interface {
	AdaptationApplied(description string)
	AdaptationReverted(description string)
	SettingsSaveFailed(reason string)
}

// LogNotifier writes notifications to the log. The default surface when no
// interactive host is attached.
type LogNotifier struct{}

func (LogNotifier) AdaptationApplied(description string) {
	log.Infof("Adaptation applied: %s", description)
}

func (LogNotifier) AdaptationReverted(description string) {
	log.Infof("Adaptation reverted: %s", description)
}

func (LogNotifier) SettingsSaveFailed(reason string) {
	log.Warnf("Settings could not be saved: %s", reason)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) AdaptationApplied(string)  {}
func (NopNotifier) AdaptationReverted(string) {}
func (NopNotifier) SettingsSaveFailed(string) {}
