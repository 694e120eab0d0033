// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package review

// =============================================================================
// Queue: Ticket Persistence
// =============================================================================
//
// Tickets outlive the asking user's request and must survive a service
// restart: the reviewer may act hours later. They live in the same
// BadgerDB as the community corpus, under their own key prefix.
//
// Storage layout:
//
//	kb/review/v1/{uuid}  →  gob-encoded PendingReview
//
// Mutations go through Mutate, which runs read-validate-write inside one
// badger transaction. The wrapper's conflict retry serializes concurrent
// resolutions of the same ticket: the loser re-reads a terminal state and
// gets AlreadyResolved from the state machine.

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AstraHome/AstraKB/services/kb/kberr"
	badgerstore "github.com/AstraHome/AstraKB/services/kb/storage/badger"
)

// ticketKeyPrefix is prepended to the ticket uuid to form the BadgerDB key.
const ticketKeyPrefix = "kb/review/v1/"

// Queue persists PendingReview tickets in BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use.
type Queue struct {
	db     *badgerstore.DB
	logger *slog.Logger
}

// NewQueue creates a Queue over an opened badger wrapper. The caller owns
// the DB lifecycle.
func NewQueue(db *badgerstore.DB, logger *slog.Logger) *Queue {
	if db == nil {
		panic("NewQueue: db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{db: db, logger: logger}
}

// Put persists a ticket under its id.
func (q *Queue) Put(ctx context.Context, pr PendingReview) error {
	raw, err := encodeTicket(pr)
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}
	err = q.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(ticketKey(pr.ID), raw)
	})
	if err != nil {
		return kberr.Wrap(kberr.CodeStoreUnavailable, "ticket put failed", true, err)
	}
	return nil
}

// Get loads a ticket by id. Unknown ids return CodeTicketNotFound.
func (q *Queue) Get(ctx context.Context, id string) (PendingReview, error) {
	var pr PendingReview
	err := q.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(ticketKey(id))
		if err == dgbadger.ErrKeyNotFound {
			return kberr.New(kberr.CodeTicketNotFound, "no ticket "+id, false)
		}
		if err != nil {
			return fmt.Errorf("get ticket: %w", err)
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		pr, err = decodeTicket(raw)
		return err
	})
	if err != nil {
		if kberr.HasCode(err, kberr.CodeTicketNotFound) {
			return PendingReview{}, err
		}
		return PendingReview{}, kberr.Wrap(kberr.CodeStoreUnavailable, "ticket get failed", true, err)
	}
	return pr, nil
}

// Mutate applies fn to the stored ticket inside a single transaction and
// persists the result.
//
// # Description
//
// fn sees the current stored value (re-read on conflict retry) and may
// return an error to abort without writing. The updated ticket is
// returned on success. This is the serialization point for per-ticket
// resolution: two concurrent Approve calls cannot both see StateOpen.
func (q *Queue) Mutate(ctx context.Context, id string, fn func(*PendingReview) error) (PendingReview, error) {
	var out PendingReview
	err := q.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(ticketKey(id))
		if err == dgbadger.ErrKeyNotFound {
			return kberr.New(kberr.CodeTicketNotFound, "no ticket "+id, false)
		}
		if err != nil {
			return fmt.Errorf("get ticket: %w", err)
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		pr, err := decodeTicket(raw)
		if err != nil {
			return err
		}

		if err := fn(&pr); err != nil {
			return err
		}

		updated, err := encodeTicket(pr)
		if err != nil {
			return err
		}
		if err := txn.Set(ticketKey(id), updated); err != nil {
			return fmt.Errorf("set ticket: %w", err)
		}
		out = pr
		return nil
	})
	if err != nil {
		// Domain errors from fn (AlreadyResolved, InvalidState, ...) and
		// TicketNotFound pass through untouched; only raw storage errors
		// get wrapped.
		var kerr *kberr.Error
		if errors.As(err, &kerr) {
			return PendingReview{}, err
		}
		return PendingReview{}, kberr.Wrap(kberr.CodeStoreUnavailable, "ticket mutate failed", true, err)
	}
	return out, nil
}

// ListOpen returns all non-terminal tickets, oldest first.
func (q *Queue) ListOpen(ctx context.Context) ([]PendingReview, error) {
	var open []PendingReview
	err := q.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(ticketKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value: %w", err)
			}
			pr, err := decodeTicket(raw)
			if err != nil {
				q.logger.Warn("skipping undecodable ticket",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !pr.State.Terminal() {
				open = append(open, pr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, kberr.Wrap(kberr.CodeStoreUnavailable, "ticket list failed", true, err)
	}

	sort.SliceStable(open, func(i, j int) bool {
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	return open, nil
}

// =============================================================================
// Helpers
// =============================================================================

func ticketKey(id string) []byte {
	return []byte(ticketKeyPrefix + id)
}

func encodeTicket(pr PendingReview) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pr); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeTicket(data []byte) (PendingReview, error) {
	var pr PendingReview
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&pr); err != nil {
		return PendingReview{}, fmt.Errorf("gob decode: %w", err)
	}
	return pr, nil
}
