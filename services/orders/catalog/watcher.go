// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultWatchDebounce coalesces the burst of events an atomic rename emits.
const defaultWatchDebounce = 250 * time.Millisecond

// Watcher refreshes a SnapshotStore when its snapshot file changes.
//
// # Description
//
// Watches the file's directory rather than the file itself, because an
// atomic rename replaces the inode and a file-level watch would be lost.
// Events for other files in the directory are ignored. Bursts are debounced
// so a single sync triggers a single refresh.
//
// # Thread Safety
//
// Start once. Stop is safe to call from any goroutine.
type Watcher struct {
	file     *FileStore
	store    *SnapshotStore
	debounce time.Duration
	logger   *slog.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher creates a watcher for file feeding store.
func NewWatcher(file *FileStore, store *SnapshotStore, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		file:     file,
		store:    store,
		debounce: defaultWatchDebounce,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins watching. The watch ends when ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	dir := filepath.Dir(w.file.Path())
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.fsw = fsw

	go w.loop(ctx)
	w.logger.Info("watching catalog file", slog.String("path", w.file.Path()))
	return nil
}

// Stop ends the watch and waits for the loop to exit.
func (w *Watcher) Stop() {
	if w.fsw == nil {
		return
	}
	_ = w.fsw.Close()
	<-w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	target := filepath.Clean(w.file.Path())
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.fsw.Close()
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			if err := w.store.Refresh(ctx, w.file); err != nil {
				w.logger.Warn("catalog reload after file change failed",
					slog.String("path", target),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
