// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps a BadgerDB instance with the small lifecycle and
// transaction surface the knowledge-base stores need. The community corpus
// and the review queue share one DB opened at startup; each store owns a
// distinct key prefix.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// gcInterval is how often the value-log garbage collector runs.
// Badger recommends periodic GC from application code; 10 minutes keeps
// disk usage bounded without measurable read impact at this corpus size.
const gcInterval = 10 * time.Minute

// gcDiscardRatio is the minimum fraction of reclaimable space required
// before a value-log file is rewritten. 0.5 is the badger-documented default.
const gcDiscardRatio = 0.5

// conflictRetries bounds optimistic-transaction retries on ErrConflict.
const conflictRetries = 5

// Config holds the options needed to open a DB.
//
// # Thread Safety
//
// Config is a value type; copy freely before OpenDB.
type Config struct {
	// Path is the on-disk directory for the badger data and value logs.
	Path string

	// InMemory runs badger without touching disk. Used by tests.
	InMemory bool

	// Logger receives open/GC diagnostics. May be nil (slog.Default).
	Logger *slog.Logger
}

// DefaultConfig returns a Config with production defaults. The caller
// must set Path before OpenDB unless InMemory is true.
func DefaultConfig() Config {
	return Config{}
}

// DB wraps a badger instance opened by OpenDB.
//
// # Description
//
// The wrapper exposes transaction helpers with context awareness and a
// bounded conflict-retry loop for read-modify-write updates. The owner
// (typically main) is responsible for calling Close on shutdown.
//
// # Thread Safety
//
// Safe for concurrent use. Badger transactions are per-goroutine.
type DB struct {
	inner  *dgbadger.DB
	logger *slog.Logger
}

// OpenDB opens (or creates) a badger database at cfg.Path.
//
// # Inputs
//
//   - cfg: Open options. Path must be non-empty unless InMemory is set.
//
// # Outputs
//
//   - *DB: The opened wrapper. Nil on error.
//   - error: Non-nil if the directory cannot be opened or is locked by
//     another process.
func OpenDB(cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger: Config.Path must not be empty")
		}
		opts = dgbadger.DefaultOptions(cfg.Path)
	}
	// Badger logs through its own interface; silence it and surface
	// anything interesting through slog at the call sites instead.
	opts = opts.WithLogger(nil)

	inner, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}

	return &DB{inner: inner, logger: logger}, nil
}

// WithReadTxn runs fn inside a read-only transaction.
//
// # Inputs
//
//   - ctx: Checked before the transaction starts.
//   - fn: Transaction body. Errors propagate unchanged.
func (db *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.inner.View(fn)
}

// WithTxn runs fn inside a read-write transaction, retrying a bounded
// number of times on optimistic-concurrency conflicts.
//
// # Description
//
// Badger serializes writes optimistically: two transactions updating the
// same key race, and the loser gets ErrConflict at commit. Retrying the
// whole body re-reads current state, which is exactly the atomic
// read-modify-write behavior per-record counters need.
//
// # Inputs
//
//   - ctx: Checked before each attempt.
//   - fn: Transaction body. Must be safe to re-run.
func (db *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = db.inner.Update(fn)
		if !errors.Is(err, dgbadger.ErrConflict) {
			return err
		}
		// Brief backoff so contending writers stop committing in lockstep.
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
	return fmt.Errorf("badger txn: conflict persisted after %d retries: %w", conflictRetries, err)
}

// RunGC runs the value-log garbage collector until ctx is cancelled.
//
// # Description
//
// Intended to be launched once from the serve command (errgroup). Returns
// nil on context cancellation so it does not abort sibling goroutines.
func (db *DB) RunGC(ctx context.Context) error {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// ErrNoRewrite means nothing to reclaim; every other error is
			// logged and retried next tick.
			err := db.inner.RunValueLogGC(gcDiscardRatio)
			if err != nil && !errors.Is(err, dgbadger.ErrNoRewrite) {
				db.logger.Warn("badger value-log GC failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Close flushes and closes the underlying badger instance.
func (db *DB) Close() error {
	return db.inner.Close()
}
