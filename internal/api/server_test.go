// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/engine"
	"github.com/flowpulse/flowpulse/internal/learning"
	"github.com/flowpulse/flowpulse/internal/settings"
	"github.com/flowpulse/flowpulse/internal/storage"
	"github.com/flowpulse/flowpulse/internal/telemetry"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "test.db")
	cfg.Storage.ArchiveDir = ""
	cfg.SettingsFile = filepath.Join(dir, "settings.json")

	store, err := storage.NewSQLiteStore(context.Background(), cfg.Storage.Path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider, err := settings.NewProvider(cfg.SettingsFile)
	require.NoError(t, err)

	source := telemetry.ContextSourceFunc(func(now time.Time) telemetry.ContextSnapshot {
		return telemetry.ContextSnapshot{HourOfDay: 10, TaskCategory: "coding", EnergyLevel: 7}
	})

	eng := engine.New(cfg, store, provider, source, nil)
	return NewServer(cfg.API, eng, false), eng
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	w := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestReportEndpoint(t *testing.T) {
	s, eng := newTestServer(t)

	eng.EndSession("deep-focus", learning.SessionCounters{
		CompletionRate:  0.85,
		DurationMinutes: 45,
	})

	w := get(t, s, "/v1/report")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "summary")
	assert.Contains(t, body, "trends")
}

func TestModelsEndpoint(t *testing.T) {
	s, eng := newTestServer(t)

	eng.EndSession("deep-focus", learning.SessionCounters{
		CompletionRate:  0.9,
		DurationMinutes: 50,
	})

	w := get(t, s, "/v1/models")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		MostEffective string                   `json:"most_effective"`
		Models        []map[string]interface{} `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "deep-focus", body.MostEffective)
	require.Len(t, body.Models, 1)
}

func TestAdaptationsEndpointEmpty(t *testing.T) {
	s, _ := newTestServer(t)

	w := get(t, s, "/v1/adaptations")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
}

func TestStatsEndpoint(t *testing.T) {
	s, eng := newTestServer(t)

	eng.TickNow(context.Background())

	w := get(t, s, "/v1/stats")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Engine struct {
			TicksRun int64 `json:"ticks_run"`
		} `json:"engine"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Engine.TicksRun)
}

func TestStartAndShutdown(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.Port = 0 // ephemeral

	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
