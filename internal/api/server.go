// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes a read-only status API over HTTP. It reports on the
// engine; it never mutates it. Rendering dashboards stays external.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/engine"
)

// Server serves the status endpoints for one engine instance.
type Server struct {
	cfg    config.APIConfig
	engine *engine.Engine
	srv    *http.Server
	done   chan struct{}
}

// NewServer creates a status API server. Call Start to begin listening.
func NewServer(cfg config.APIConfig, eng *engine.Engine, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		engine: eng,
		done:   make(chan struct{}),
	}
	s.srv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed for handler tests.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)

	v1 := r.Group("/v1")
	{
		v1.GET("/report", s.handleReport)
		v1.GET("/models", s.handleModels)
		v1.GET("/adaptations", s.handleAdaptations)
		v1.GET("/stats", s.handleStats)
	}
	return r
}

// Start begins listening on the configured host and port.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		if errServe := s.srv.Serve(ln); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			log.WithError(errServe).Warn("status API server stopped unexpectedly")
		}
		close(s.done)
	}()

	log.Infof("Status API listening on %s", addr)
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down status API: %w", err)
	}
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"paused": s.engine.Paused(),
	})
}

func (s *Server) handleReport(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Report())
}

func (s *Server) handleModels(c *gin.Context) {
	report := s.engine.Report()
	c.JSON(http.StatusOK, gin.H{
		"most_effective": report.Summary.MostEffectiveModel,
		"models":         report.Models,
	})
}

func (s *Server) handleAdaptations(c *gin.Context) {
	adaptations, err := s.engine.Adaptations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load adaptation history",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":       len(adaptations),
		"adaptations": adaptations,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"engine":   s.engine.Stats(),
		"recorder": s.engine.RecorderStats(),
		"paused":   s.engine.Paused(),
	})
}
