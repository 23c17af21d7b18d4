// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package settings implements the configuration provider: scoped-key reads
// and writes over a JSON settings document, with a file watcher that signals
// external changes.
package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Scope selects which section of the settings document a write lands in.
// Workspace values override user values on read.
type Scope string

const (
	ScopeUser      Scope = "user"
	ScopeWorkspace Scope = "workspace"
)

// Well-known scoped keys.
const (
	KeyActiveModel     = "activeModelId"
	KeyAdaptiveEnabled = "adaptiveLearning.enabled"
)

// Provider reads and writes scoped keys in a JSON settings document on disk.
// Safe for concurrent use.
type Provider struct {
	path string

	mu  sync.RWMutex
	doc []byte
}

// NewProvider loads the settings document at path, creating an empty one if
// the file does not exist.
func NewProvider(path string) (*Provider, error) {
	p := &Provider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the document from disk, replacing the in-memory copy.
func (p *Provider) Reload() error {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		data = []byte(`{}`)
	} else if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}
	if len(data) > 0 && !gjson.ValidBytes(data) {
		return fmt.Errorf("settings file %s is not valid JSON", p.path)
	}

	p.mu.Lock()
	p.doc = data
	p.mu.Unlock()
	return nil
}

// Get resolves a scoped key, preferring the workspace section over the user
// section. The result is non-existent when neither scope has the key.
func (p *Provider) Get(key string) gjson.Result {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if v := gjson.GetBytes(p.doc, string(ScopeWorkspace)+"."+key); v.Exists() {
		return v
	}
	return gjson.GetBytes(p.doc, string(ScopeUser)+"."+key)
}

// GetString returns the key's string value or def when absent.
func (p *Provider) GetString(key, def string) string {
	if v := p.Get(key); v.Exists() {
		return v.String()
	}
	return def
}

// GetBool returns the key's boolean value or def when absent.
func (p *Provider) GetBool(key string, def bool) bool {
	if v := p.Get(key); v.Exists() {
		return v.Bool()
	}
	return def
}

// Update writes a scoped key and persists the document. The write is atomic:
// a temp file is written and renamed over the original.
func (p *Provider) Update(ctx context.Context, key string, value interface{}, scope Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if scope != ScopeUser && scope != ScopeWorkspace {
		return fmt.Errorf("unknown settings scope %q", scope)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := sjson.SetBytes(p.doc, string(scope)+"."+key, value)
	if err != nil {
		return fmt.Errorf("failed to set settings key %s: %w", key, err)
	}

	if err := p.persist(doc); err != nil {
		return err
	}
	p.doc = doc
	return nil
}

// Delete removes a scoped key and persists the document. Deleting an absent
// key is a no-op.
func (p *Provider) Delete(ctx context.Context, key string, scope Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := sjson.DeleteBytes(p.doc, string(scope)+"."+key)
	if err != nil {
		return fmt.Errorf("failed to delete settings key %s: %w", key, err)
	}

	if err := p.persist(doc); err != nil {
		return err
	}
	p.doc = doc
	return nil
}

func (p *Provider) persist(doc []byte) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, doc, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	log.Debugf("Settings persisted to %s", p.path)
	return nil
}

// Path returns the settings document location.
func (p *Provider) Path() string {
	return p.path
}
