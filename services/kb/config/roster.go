// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Roster is the hot-reloadable reviewer authorization set.
//
// # Description
//
// The review resolver consults the roster on every draft/approve/reject.
// Reviewer turnover should not require a restart, so Watch reloads the
// roster from the config file on change. A reload that fails to parse,
// or that yields an empty reviewer set, keeps the previous roster: an
// unreadable or half-written config must never lock every reviewer out.
//
// # Thread Safety
//
// Safe for concurrent use; reads take a read lock.
type Roster struct {
	mu  sync.RWMutex
	ids map[string]struct{}

	logger *slog.Logger
}

// NewRoster builds a Roster from an initial reviewer list.
func NewRoster(reviewers []string, logger *slog.Logger) *Roster {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Roster{logger: logger}
	r.replace(reviewers)
	return r
}

// IsReviewer reports whether id is in the roster.
func (r *Roster) IsReviewer(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// Len returns the roster size.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// replace swaps the roster contents.
func (r *Roster) replace(reviewers []string) {
	ids := make(map[string]struct{}, len(reviewers))
	for _, id := range reviewers {
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	r.mu.Lock()
	r.ids = ids
	r.mu.Unlock()
}

// Watch reloads the roster whenever the config file at path changes.
//
// # Description
//
// Runs until ctx is cancelled; intended for an errgroup alongside the
// HTTP server. Editors commonly replace rather than write config files,
// so the watcher re-adds the path after remove/rename events. Returns
// nil on cancellation.
func (r *Roster) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	r.logger.Info("watching config for roster changes", slog.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				// Atomic-replace editors drop the watch with the old inode.
				_ = watcher.Add(path)
			}

			cfg, err := Load(path)
			if err != nil {
				r.logger.Warn("roster reload failed, keeping previous roster",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				continue
			}
			if len(cfg.Review.Reviewers) == 0 {
				// A truncate-then-write rewrite fires a Write event while the
				// file is still empty, which parses as a valid config with no
				// reviewers. An empty set is never an intentional live change,
				// so treat it like a failed reload.
				r.logger.Warn("roster reload yielded no reviewers, keeping previous roster",
					slog.String("path", path),
				)
				continue
			}
			r.replace(cfg.Review.Reviewers)
			r.logger.Info("reviewer roster reloaded",
				slog.Int("reviewers", r.Len()),
			)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}
