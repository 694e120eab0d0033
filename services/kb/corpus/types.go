// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package corpus owns the question/answer record model and its two
// partitions: an immutable static snapshot loaded once at startup, and a
// BadgerDB-backed community partition grown by the review workflow.
package corpus

import (
	"context"
	"time"

	"github.com/AstraHome/AstraKB/services/kb/kberr"
)

// Origin tags which partition a QuestionRecord belongs to. Handling is
// exhaustive: code switching on Origin must cover both variants.
type Origin string

const (
	// OriginStatic marks records from the startup snapshot. Static records
	// are identity-less and carry no mutable counter.
	OriginStatic Origin = "static"

	// OriginCommunity marks records created by review approval. Community
	// records have a uuid identity and a usage counter.
	OriginCommunity Origin = "community"
)

// QuestionRecord is one question/answer pair in the knowledge base.
//
// # Description
//
// Static records are matched by content only: ID, AuthorID, ApproverID,
// CreatedAt and UseCount are zero values. Community records are owned by
// the community store and mutated only through IncrementUsage.
//
// # Thread Safety
//
// Treated as a value. The store returns copies; callers never share a
// mutable record across goroutines.
type QuestionRecord struct {
	// Question is the stored question text. Never empty.
	Question string

	// Answer is the approved answer text. Never empty.
	Answer string

	// Origin is the partition tag.
	Origin Origin

	// ID is the community record identity (uuid). Empty for static records.
	ID string

	// AuthorID is the opaque id of the user whose escalation produced this
	// record. Empty for static records.
	AuthorID string

	// ApproverID is the opaque id of the reviewer who approved the answer.
	// Empty for static records.
	ApproverID string

	// CreatedAt is when the community record was published.
	CreatedAt time.Time

	// UseCount counts servings as the unique best answer. Monotonically
	// non-decreasing; incremented exactly once per serving event.
	UseCount int64
}

// Validate enforces the non-empty question/answer invariant.
func (r QuestionRecord) Validate() error {
	if r.Question == "" {
		return kberr.New(kberr.CodeEmptyField, "record question must not be empty", false)
	}
	if r.Answer == "" {
		return kberr.New(kberr.CodeEmptyField, "record answer must not be empty", false)
	}
	return nil
}

// Store is the corpus abstraction the matching engine consumes.
//
// # Description
//
// StaticAll is snapshot access: cheap, never fails, no ordering promises
// beyond load order. The community methods touch storage and return
// kberr CodeStoreUnavailable on I/O failure.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// StaticAll returns the immutable startup snapshot, in load order.
	StaticAll() []QuestionRecord

	// CommunitySearch returns up to the store's bounded number of community
	// records whose question text case-insensitively contains the query or
	// is contained by it. This is a coarse pre-filter; scoring is the
	// caller's job. Results are ordered by UseCount descending.
	CommunitySearch(ctx context.Context, query string) ([]QuestionRecord, error)

	// CommunityAppend persists a new community record and returns it with
	// identity and timestamp assigned.
	CommunityAppend(ctx context.Context, question, answer, authorID, approverID string) (QuestionRecord, error)

	// IncrementUsage atomically increments UseCount for the community
	// record with the given id. Unknown ids are a no-op.
	IncrementUsage(ctx context.Context, id string) error
}
