// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	return p
}

func TestProvider_MissingFileStartsEmpty(t *testing.T) {
	p := newTestProvider(t)
	assert.False(t, p.Get(KeyActiveModel).Exists())
	assert.Equal(t, "fallback", p.GetString(KeyActiveModel, "fallback"))
	assert.True(t, p.GetBool(KeyAdaptiveEnabled, true))
}

func TestProvider_UpdateAndGet(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Update(ctx, KeyActiveModel, "deep-focus", ScopeUser))
	assert.Equal(t, "deep-focus", p.GetString(KeyActiveModel, ""))

	// Workspace overrides user.
	require.NoError(t, p.Update(ctx, KeyActiveModel, "quick-sprints", ScopeWorkspace))
	assert.Equal(t, "quick-sprints", p.GetString(KeyActiveModel, ""))

	require.NoError(t, p.Delete(ctx, KeyActiveModel, ScopeWorkspace))
	assert.Equal(t, "deep-focus", p.GetString(KeyActiveModel, ""))
}

func TestProvider_UpdateSurvivesReload(t *testing.T) {
	p := newTestProvider(t)
	require.NoError(t, p.Update(context.Background(), KeyAdaptiveEnabled, false, ScopeUser))

	fresh, err := NewProvider(p.Path())
	require.NoError(t, err)
	assert.False(t, fresh.GetBool(KeyAdaptiveEnabled, true))
}

func TestProvider_UnknownScopeRejected(t *testing.T) {
	p := newTestProvider(t)
	err := p.Update(context.Background(), KeyActiveModel, "m", Scope("machine"))
	assert.Error(t, err)
}

func TestProvider_InvalidJSONRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewProvider(path)
	assert.Error(t, err)
}

func TestWatcher_SignalsOnExternalWrite(t *testing.T) {
	p := newTestProvider(t)
	require.NoError(t, p.Update(context.Background(), KeyAdaptiveEnabled, true, ScopeUser))

	changed := make(chan struct{}, 1)
	w := NewWatcher(p, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, w.Start())
	defer w.Stop()

	// External edit flips the flag; the watcher reloads before signaling.
	require.NoError(t, os.WriteFile(p.Path(), []byte(`{"user":{"adaptiveLearning":{"enabled":false}}}`), 0644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not signal settings change")
	}
	assert.False(t, p.GetBool(KeyAdaptiveEnabled, true))
}
