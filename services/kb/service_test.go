// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AstraHome/AstraKB/services/kb/corpus"
	"github.com/AstraHome/AstraKB/services/kb/match"
	"github.com/AstraHome/AstraKB/services/kb/review"
	badgerstore "github.com/AstraHome/AstraKB/services/kb/storage/badger"
)

// rosterAll authorizes a fixed reviewer for workflow tests.
type rosterAll map[string]bool

func (r rosterAll) IsReviewer(id string) bool { return r[id] }

// newTestService wires a full in-memory service: real badger store, real
// resolver, no notifier.
func newTestService(t *testing.T, static []corpus.QuestionRecord) (*Service, *corpus.BadgerStore) {
	t.Helper()
	db, err := badgerstore.OpenDB(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := corpus.NewBadgerStore(corpus.NewSnapshot(static), db, 0, nil)
	queue := review.NewQueue(db, nil)
	resolver := review.NewResolver(queue, store, rosterAll{"rev-1": true}, nil, nil)
	return NewService(store, match.DefaultParams(), resolver, nil), store
}

func defaultStatic() []corpus.QuestionRecord {
	return []corpus.QuestionRecord{
		{Question: "What is karma?", Answer: "Cause and effect."},
		{Question: "How do I meditate?", Answer: "Sit quietly and breathe."},
		{Question: "What is the meaning of life?", Answer: "Forty-two."},
	}
}

func TestService_AskDirectAnswer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, defaultStatic())

	result, err := svc.Ask(ctx, AskRequest{Question: "karma", UserID: "u1", ChannelID: "c1"})
	require.NoError(t, err)
	require.Equal(t, match.OutcomeAnswer, result.Decision.Outcome)
	require.Equal(t, "Cause and effect.", result.Decision.Answer.Record.Answer)
	require.Nil(t, result.Ticket)
}

func TestService_AskEscalatesUnknownQuestion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, defaultStatic())

	result, err := svc.Ask(ctx, AskRequest{
		Question:  "tell me about the moon",
		UserID:    "u1",
		ChannelID: "c1",
	})
	require.NoError(t, err)
	require.Equal(t, match.OutcomeEscalate, result.Decision.Outcome)
	require.NotNil(t, result.Ticket)
	require.Equal(t, "tell me about the moon", result.Ticket.Question,
		"the ticket must carry the literal original question")
	require.Equal(t, "u1", result.Ticket.RequesterID)
	require.Equal(t, "c1", result.Ticket.ChannelID)
	require.Equal(t, review.StateOpen, result.Ticket.State)
}

func TestService_AskIncrementsCommunityUsageOnly(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, defaultStatic())

	// Static answers have no counter to bump.
	result, err := svc.Ask(ctx, AskRequest{Question: "karma", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, match.OutcomeAnswer, result.Decision.Outcome)

	// Publish a community record through the review workflow, then serve it.
	rec, err := store.CommunityAppend(ctx, "how do I pair the remote?", "Hold both buttons.", "u2", "rev-1")
	require.NoError(t, err)

	result, err = svc.Ask(ctx, AskRequest{Question: "how do I pair the remote?", UserID: "u3"})
	require.NoError(t, err)
	require.Equal(t, match.OutcomeAnswer, result.Decision.Outcome)
	require.Equal(t, corpus.OriginCommunity, result.Decision.Answer.Record.Origin)

	found, err := store.CommunitySearch(ctx, "pair the remote")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, rec.ID, found[0].ID)
	require.EqualValues(t, 1, found[0].UseCount)
}

func TestService_AskDisambiguatesCloseCandidates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, []corpus.QuestionRecord{
		{Question: "how do I reset my password", Answer: "a1"},
		{Question: "how do I reset my router", Answer: "a2"},
	})

	result, err := svc.Ask(ctx, AskRequest{Question: "how do I reset my passwort", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, match.OutcomeDisambiguate, result.Decision.Outcome)
	require.Len(t, result.Decision.Choices, 2)
	require.Nil(t, result.Ticket)
}

func TestService_EscalateBypassesMatching(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, defaultStatic())

	// The question would match directly, but manual escalation skips
	// the pipeline.
	ticket, err := svc.Escalate(ctx, AskRequest{Question: "What is karma?", UserID: "u1", ChannelID: "c1"})
	require.NoError(t, err)
	require.Equal(t, review.StateOpen, ticket.State)
	require.Equal(t, "What is karma?", ticket.Question)
}

func TestService_FullEscalationRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, defaultStatic())

	asked, err := svc.Ask(ctx, AskRequest{Question: "can I use the garage after 10pm?", UserID: "u1", ChannelID: "c1"})
	require.NoError(t, err)
	require.Equal(t, match.OutcomeEscalate, asked.Decision.Outcome)

	notice, err := svc.Resolver().Approve(ctx, asked.Ticket.ID, "rev-1", "Yes, but keep the noise down.")
	require.NoError(t, err)
	require.Equal(t, "u1", notice.RequesterID)
	require.Equal(t, "c1", notice.ChannelID)

	// The published answer is now served directly to the next asker.
	again, err := svc.Ask(ctx, AskRequest{Question: "can I use the garage after 10pm?", UserID: "u2"})
	require.NoError(t, err)
	require.Equal(t, match.OutcomeAnswer, again.Decision.Outcome)
	require.Equal(t, "Yes, but keep the noise down.", again.Decision.Answer.Record.Answer)
	require.Equal(t, corpus.OriginCommunity, again.Decision.Answer.Record.Origin)
}
