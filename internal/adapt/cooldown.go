// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapt

import (
	"hash/fnv"
	"sync"
	"time"
)

// Default cooldown windows per opportunity type.
var defaultCooldowns = map[OpportunityType]time.Duration{
	TypeModelSwitch:         24 * time.Hour,
	TypeContextOptimization: 12 * time.Hour,
	TypeEnergyAdaptation:    6 * time.Hour,
	TypeTrendResponse:       168 * time.Hour,
	TypeBehaviorAdaptation:  48 * time.Hour,
	TypeRollback:            24 * time.Hour,
}

// cooldownKey is the structured composite key: opportunity type plus a stable
// hash of the payload fields. Using a hash of the fixed-order fingerprint
// avoids collisions from non-deterministic serialization ordering.
type cooldownKey struct {
	Type        OpportunityType
	PayloadHash uint64
}

func keyFor(t OpportunityType, payload Payload) cooldownKey {
	h := fnv.New64a()
	if payload != nil {
		h.Write([]byte(payload.Fingerprint()))
	}
	return cooldownKey{Type: t, PayloadHash: h.Sum64()}
}

// CooldownRegistry tracks when an identical opportunity becomes eligible
// again. Shared between the detector (filtering) and the executor (setting);
// safe for concurrent use.
type CooldownRegistry struct {
	mu        sync.Mutex
	until     map[cooldownKey]time.Time
	durations map[OpportunityType]time.Duration
}

// NewCooldownRegistry creates a registry with the default per-type windows.
func NewCooldownRegistry() *CooldownRegistry {
	durations := make(map[OpportunityType]time.Duration, len(defaultCooldowns))
	for t, d := range defaultCooldowns {
		durations[t] = d
	}
	return &CooldownRegistry{
		until:     make(map[cooldownKey]time.Time),
		durations: durations,
	}
}

// SetDuration overrides the window for one type. Intended for tests and
// config tuning.
func (r *CooldownRegistry) SetDuration(t OpportunityType, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[t] = d
}

// DurationFor returns the cooldown window for a type.
func (r *CooldownRegistry) DurationFor(t OpportunityType) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.durations[t]
}

// InCooldown reports whether an identical opportunity is still suppressed.
func (r *CooldownRegistry) InCooldown(t OpportunityType, payload Payload, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.until[keyFor(t, payload)]
	return ok && now.Before(until)
}

// Set marks the opportunity ineligible until now plus its type's window.
func (r *CooldownRegistry) Set(t OpportunityType, payload Payload, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.until[keyFor(t, payload)] = now.Add(r.durations[t])
}

// Prune drops expired entries. Entries expire naturally either way; pruning
// just bounds the map.
func (r *CooldownRegistry) Prune(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, until := range r.until {
		if !now.Before(until) {
			delete(r.until, k)
		}
	}
}

// Len returns the number of live entries.
func (r *CooldownRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.until)
}
