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

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AstraHome/AstraKB/services/kb/kberr"
	badgerstore "github.com/AstraHome/AstraKB/services/kb/storage/badger"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := badgerstore.OpenDB(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewQueue(db, nil)
}

func TestQueue_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	in := PendingReview{
		ID:          "t1",
		Question:    "how do I configure the thing?",
		RequesterID: "user-9",
		ChannelID:   "chan-3",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		State:       StateOpen,
	}
	require.NoError(t, q.Put(ctx, in))

	out, err := q.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestQueue_GetUnknownID(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Get(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, kberr.HasCode(err, kberr.CodeTicketNotFound))
}

func TestQueue_MutatePersistsChange(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	require.NoError(t, q.Put(ctx, PendingReview{ID: "t1", State: StateOpen}))

	updated, err := q.Mutate(ctx, "t1", func(pr *PendingReview) error {
		pr.DraftAnswer = "a draft"
		return pr.transition(StateDrafted)
	})
	require.NoError(t, err)
	require.Equal(t, StateDrafted, updated.State)

	stored, err := q.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, StateDrafted, stored.State)
	require.Equal(t, "a draft", stored.DraftAnswer)
}

func TestQueue_MutateAbortsWithoutWrite(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	require.NoError(t, q.Put(ctx, PendingReview{ID: "t1", State: StateApproved}))

	_, err := q.Mutate(ctx, "t1", func(pr *PendingReview) error {
		return pr.transition(StateRejected)
	})
	require.Error(t, err)
	require.True(t, kberr.HasCode(err, kberr.CodeAlreadyResolved),
		"domain errors must pass through unwrapped, got %v", err)

	stored, err := q.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, StateApproved, stored.State)
}

func TestQueue_MutateUnknownID(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Mutate(context.Background(), "missing", func(pr *PendingReview) error {
		return nil
	})
	require.Error(t, err)
	require.True(t, kberr.HasCode(err, kberr.CodeTicketNotFound))
}

func TestQueue_ListOpenOrdersOldestFirstAndSkipsTerminal(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	base := time.Now().UTC()
	require.NoError(t, q.Put(ctx, PendingReview{ID: "newer", State: StateOpen, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, q.Put(ctx, PendingReview{ID: "done", State: StateApproved, CreatedAt: base}))
	require.NoError(t, q.Put(ctx, PendingReview{ID: "older", State: StateDrafted, CreatedAt: base.Add(-time.Minute)}))

	open, err := q.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	require.Equal(t, "older", open[0].ID)
	require.Equal(t, "newer", open[1].ID)
}
