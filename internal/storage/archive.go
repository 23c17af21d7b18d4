// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
)

// Archiver compacts flushed event batches into gzip files so raw event data
// beyond the retention window can leave the live store without being lost.
type Archiver struct {
	dir           string
	retentionDays int
}

// NewArchiver creates an archiver writing to dir. An empty dir disables
// archiving; WriteBatch becomes a no-op.
func NewArchiver(dir string, retentionDays int) *Archiver {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Archiver{dir: dir, retentionDays: retentionDays}
}

// WriteBatch serializes the batch as JSON and writes it to a timestamped
// gzip file. Batches are append-only; files are never rewritten.
func (a *Archiver) WriteBatch(batch interface{}, at time.Time) error {
	if a.dir == "" {
		return nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	raw, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode archive batch: %w", err)
	}

	name := fmt.Sprintf("events-%s.json.gz", at.UTC().Format("20060102T150405.000"))
	path := filepath.Join(a.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

// Cleanup removes archive files older than the retention window.
func (a *Archiver) Cleanup() error {
	if a.dir == "" {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -a.retentionDays)

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read archive directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(a.dir, entry.Name())); err != nil {
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		log.Infof("Removed %d archive files older than %d days", removed, a.retentionDays)
	}
	return nil
}
