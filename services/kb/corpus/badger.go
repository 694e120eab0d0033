// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package corpus

// =============================================================================
// BadgerStore: Community Partition Persistence
// =============================================================================
//
// Community records live in BadgerDB, embedded alongside the service.
// The partition is append/increment-only: records are created by review
// approval, mutated only to bump UseCount, never deleted here.
//
// Storage layout:
//
//	kb/qa/v1/{uuid}  →  gob-encoded QuestionRecord
//
// Search is a coarse linear prefix scan. The community corpus grows at
// human review speed (one record per approved ticket); a full scan of a
// few thousand records is microseconds and needs no index. Scoring and
// ranking happen in the match package, not here.

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AstraHome/AstraKB/services/kb/kberr"
	badgerstore "github.com/AstraHome/AstraKB/services/kb/storage/badger"
)

// qaKeyPrefix is prepended to the record uuid to form the BadgerDB key.
// Versioned (v1) to allow future format changes without collision.
const qaKeyPrefix = "kb/qa/v1/"

// defaultMaxSearchResults bounds CommunitySearch output.
const defaultMaxSearchResults = 15

// BadgerStore implements Store over a static Snapshot plus a BadgerDB
// community partition.
//
// # Thread Safety
//
// Safe for concurrent use. The snapshot is immutable; community access
// goes through badger transactions.
type BadgerStore struct {
	snap       *Snapshot
	db         *badgerstore.DB
	maxResults int
	logger     *slog.Logger
}

// NewBadgerStore creates a BadgerStore.
//
// # Inputs
//
//   - snap: The static snapshot. Must not be nil.
//   - db: Opened badger wrapper. The caller owns its lifecycle.
//   - maxResults: CommunitySearch bound. Pass 0 for the default (15).
//   - logger: Diagnostics sink. May be nil.
func NewBadgerStore(snap *Snapshot, db *badgerstore.DB, maxResults int, logger *slog.Logger) *BadgerStore {
	if snap == nil {
		panic("NewBadgerStore: snap must not be nil")
	}
	if db == nil {
		panic("NewBadgerStore: db must not be nil")
	}
	if maxResults <= 0 {
		maxResults = defaultMaxSearchResults
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{snap: snap, db: db, maxResults: maxResults, logger: logger}
}

// StaticAll returns the immutable startup snapshot.
func (s *BadgerStore) StaticAll() []QuestionRecord {
	return s.snap.All()
}

// CommunitySearch scans the community partition for coarse matches.
//
// # Description
//
// A record matches when its question text case-insensitively contains the
// query, or the query contains the question text. Matches are ordered by
// UseCount descending (well-worn answers first) and truncated to the
// store bound. Storage failure maps to kberr CodeStoreUnavailable.
func (s *BadgerStore) CommunitySearch(ctx context.Context, query string) ([]QuestionRecord, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	var matches []QuestionRecord
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(qaKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value: %w", err)
			}
			rec, err := decodeRecord(raw)
			if err != nil {
				// A record that no longer decodes is corruption, not a search
				// failure. Log and keep scanning.
				s.logger.Warn("skipping undecodable community record",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()),
				)
				continue
			}

			haystack := strings.ToLower(rec.Question)
			if strings.Contains(haystack, needle) || strings.Contains(needle, haystack) {
				matches = append(matches, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, kberr.Wrap(kberr.CodeStoreUnavailable, "community search failed", true, err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].UseCount > matches[j].UseCount
	})
	if len(matches) > s.maxResults {
		matches = matches[:s.maxResults]
	}
	return matches, nil
}

// CommunityAppend persists a new community record.
//
// # Description
//
// Identity is a fresh uuid; CreatedAt is assigned here. The non-empty
// question/answer invariant is enforced before any write.
func (s *BadgerStore) CommunityAppend(ctx context.Context, question, answer, authorID, approverID string) (QuestionRecord, error) {
	rec := QuestionRecord{
		Question:   strings.TrimSpace(question),
		Answer:     strings.TrimSpace(answer),
		Origin:     OriginCommunity,
		ID:         uuid.NewString(),
		AuthorID:   authorID,
		ApproverID: approverID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := rec.Validate(); err != nil {
		return QuestionRecord{}, err
	}

	raw, err := encodeRecord(rec)
	if err != nil {
		return QuestionRecord{}, fmt.Errorf("encode community record: %w", err)
	}

	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(recordKey(rec.ID), raw)
	})
	if err != nil {
		return QuestionRecord{}, kberr.Wrap(kberr.CodeStoreUnavailable, "community append failed", true, err)
	}

	s.logger.Info("community record published",
		slog.String("id", rec.ID),
		slog.String("approver", approverID),
	)
	return rec, nil
}

// IncrementUsage atomically bumps UseCount for a community record.
//
// # Description
//
// The read-modify-write happens inside a single badger transaction; the
// wrapper's conflict retry makes concurrent increments on the same record
// serialize rather than lose updates. Unknown ids are a no-op: the record
// may predate a corpus migration and a usage count is not worth failing
// a served answer over.
func (s *BadgerStore) IncrementUsage(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err == dgbadger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return fmt.Errorf("decode record: %w", err)
		}

		rec.UseCount++
		updated, err := encodeRecord(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		return txn.Set(recordKey(id), updated)
	})
	if err != nil {
		return kberr.Wrap(kberr.CodeStoreUnavailable, "usage increment failed", true, err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// recordKey builds the BadgerDB key for a community record id.
func recordKey(id string) []byte {
	return []byte(qaKeyPrefix + id)
}

// encodeRecord serializes a QuestionRecord using encoding/gob.
func encodeRecord(rec QuestionRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeRecord deserializes a QuestionRecord from gob-encoded bytes.
func decodeRecord(data []byte) (QuestionRecord, error) {
	var rec QuestionRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return QuestionRecord{}, fmt.Errorf("gob decode: %w", err)
	}
	return rec, nil
}
