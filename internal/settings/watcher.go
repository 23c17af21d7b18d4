// Copyright 2026 The FlowPulse Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package settings

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher observes the settings file and invokes a callback after external
// changes, so the engine can pick up an enable/disable flip without restart.
type Watcher struct {
	provider *Provider
	onChange func()

	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewWatcher creates a watcher over the provider's settings file. onChange
// runs after the document has been reloaded.
func NewWatcher(provider *Provider, onChange func()) *Watcher {
	return &Watcher{
		provider: provider,
		onChange: onChange,
		stop:     make(chan struct{}),
	}
}

// Start begins watching. The parent directory is watched rather than the file
// itself so atomic rename-over writes keep triggering events.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := watcher.Add(filepath.Dir(w.provider.Path())); err != nil {
		watcher.Close()
		return err
	}

	target := filepath.Base(w.provider.Path())

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					log.Infof("Settings file changed (%s), reloading", event.Name)
					// Debounce: editors and atomic writers emit event bursts.
					time.Sleep(100 * time.Millisecond)
					if err := w.provider.Reload(); err != nil {
						log.Errorf("Failed to reload settings: %v", err)
						continue
					}
					if w.onChange != nil {
						w.onChange()
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("Settings watcher error: %v", err)
			case <-w.stop:
				return
			}
		}
	}()

	return nil
}

// Stop ends watching.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		select {
		case <-w.stop:
		default:
			close(w.stop)
		}
		w.watcher.Close()
		w.watcher = nil
	}
}
