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
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AstraHome/AstraKB/services/kb/corpus"
	"github.com/AstraHome/AstraKB/services/kb/kberr"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	reviewPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "astra",
		Subsystem: "review",
		Name:      "published_total",
		Help:      "Escalation tickets published",
	})

	reviewResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astra",
		Subsystem: "review",
		Name:      "resolved_total",
		Help:      "Ticket resolutions by outcome: approved, rejected",
	}, []string{"outcome"})

	reviewNotifySuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "astra",
		Subsystem: "review",
		Name:      "notify_suppressed_total",
		Help:      "Reviewer notifications suppressed by the publish rate limit",
	})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var resolverTracer = otel.Tracer("astra.kb.review.resolver")

// defaultNotifyRate bounds reviewer-channel notifications. A burst of
// escalations (store outage, spam) still creates every ticket; only the
// live broadcasts are throttled.
var defaultNotifyRate = rate.Limit(1.0)

const defaultNotifyBurst = 5

// =============================================================================
// Resolver
// =============================================================================

// Resolver owns the escalation and resolution workflow.
//
// # Description
//
// Publish creates tickets from Escalate decisions. Draft, Approve, and
// Reject drive the ticket state machine on behalf of authorized
// reviewers. Approval converts the ticket into a community corpus record
// exactly once: the state transition is the serialization point, so a
// second approval attempt fails AlreadyResolved without appending a
// duplicate.
//
// # Thread Safety
//
// Safe for concurrent use.
type Resolver struct {
	queue    *Queue
	store    corpus.Store
	roster   Roster
	notifier Notifier
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
//
// # Inputs
//
//   - queue: Ticket persistence. Must not be nil.
//   - store: Corpus store for publication. Must not be nil.
//   - roster: Reviewer authorization set. Must not be nil.
//   - notifier: Review channel sink. May be nil (no notifications).
//   - logger: Logger instance. May be nil.
func NewResolver(queue *Queue, store corpus.Store, roster Roster, notifier Notifier, logger *slog.Logger) *Resolver {
	if queue == nil {
		panic("NewResolver: queue must not be nil")
	}
	if store == nil {
		panic("NewResolver: store must not be nil")
	}
	if roster == nil {
		panic("NewResolver: roster must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		queue:    queue,
		store:    store,
		roster:   roster,
		notifier: notifier,
		limiter:  rate.NewLimiter(defaultNotifyRate, defaultNotifyBurst),
		logger:   logger,
	}
}

// Publish creates and persists a new ticket for an escalated question.
//
// # Description
//
// Every escalation creates an independent ticket. Concurrent identical
// questions are not deduplicated; each asker gets an answer in their
// own channel. The ticket is always persisted; the
// reviewer broadcast is rate-limited and may be suppressed under a flood.
//
// # Outputs
//
//   - PendingReview: The persisted ticket (the opaque handle is its ID).
//   - error: Non-nil on storage failure.
func (r *Resolver) Publish(ctx context.Context, question, requesterID, channelID string) (PendingReview, error) {
	ctx, span := resolverTracer.Start(ctx, "review.Resolver.Publish")
	defer span.End()

	pr := PendingReview{
		ID:          uuid.NewString(),
		Question:    question,
		RequesterID: requesterID,
		ChannelID:   channelID,
		CreatedAt:   time.Now().UTC(),
		State:       StateOpen,
	}
	if err := r.queue.Put(ctx, pr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ticket persist failed")
		return PendingReview{}, err
	}

	reviewPublishedTotal.Inc()
	span.SetAttributes(attribute.String("ticket_id", pr.ID))
	r.logger.Info("review ticket published",
		slog.String("ticket_id", pr.ID),
		slog.String("requester", requesterID),
	)

	if r.notifier != nil {
		if r.limiter.Allow() {
			r.notifier.NotifyPending(pr)
		} else {
			reviewNotifySuppressedTotal.Inc()
			r.logger.Warn("reviewer notification suppressed by rate limit",
				slog.String("ticket_id", pr.ID),
			)
		}
	}
	return pr, nil
}

// Draft records a proposed answer on an open ticket.
//
// # Description
//
// Open → Drafted; re-drafting a Drafted ticket replaces the proposal.
// Requires reviewer authorization.
func (r *Resolver) Draft(ctx context.Context, ticketID, reviewerID, answer string) (PendingReview, error) {
	if err := r.authorize(reviewerID); err != nil {
		return PendingReview{}, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return PendingReview{}, kberr.New(kberr.CodeEmptyField, "draft answer must not be empty", false)
	}

	return r.queue.Mutate(ctx, ticketID, func(pr *PendingReview) error {
		if err := pr.transition(StateDrafted); err != nil {
			return err
		}
		pr.DraftAnswer = answer
		pr.DraftedBy = reviewerID
		return nil
	})
}

// Approve resolves a ticket by publishing its answer to the community
// corpus.
//
// # Description
//
// answer may be empty when the ticket already carries a draft; an
// explicit answer overrides the draft. The terminal state transition
// happens first, inside one transaction: the winner of a concurrent
// double-approve proceeds to publication, the loser re-reads a terminal
// ticket and gets AlreadyResolved. If publication then fails, the ticket
// state is rolled back so the approval can be retried.
//
// # Outputs
//
//   - ResolvedNotice: Structured payload for requester notification.
//   - error: Unauthorized, AlreadyResolved, EmptyField, or store failure.
func (r *Resolver) Approve(ctx context.Context, ticketID, reviewerID, answer string) (ResolvedNotice, error) {
	ctx, span := resolverTracer.Start(ctx, "review.Resolver.Approve",
		trace.WithAttributes(attribute.String("ticket_id", ticketID)),
	)
	defer span.End()

	if err := r.authorize(reviewerID); err != nil {
		return ResolvedNotice{}, err
	}

	var prior State
	claimed, err := r.queue.Mutate(ctx, ticketID, func(pr *PendingReview) error {
		prior = pr.State
		final := strings.TrimSpace(answer)
		if final == "" {
			final = strings.TrimSpace(pr.DraftAnswer)
		}
		if final == "" {
			return kberr.New(kberr.CodeEmptyField, "approval requires an answer or a prior draft", false)
		}
		if err := pr.transition(StateApproved); err != nil {
			return err
		}
		pr.DraftAnswer = final
		pr.ResolvedBy = reviewerID
		pr.ResolvedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return ResolvedNotice{}, err
	}

	rec, err := r.store.CommunityAppend(ctx, claimed.Question, claimed.DraftAnswer, claimed.RequesterID, reviewerID)
	if err != nil {
		// The claim succeeded but publication did not. Roll the ticket back
		// to its prior state so the approval can be retried; a failed
		// rollback leaves the ticket approved-without-record and is flagged
		// loudly for operator intervention.
		span.RecordError(err)
		span.SetStatus(codes.Error, "publication failed")
		if _, rbErr := r.queue.Mutate(ctx, ticketID, func(pr *PendingReview) error {
			pr.State = prior
			pr.ResolvedBy = ""
			pr.ResolvedAt = time.Time{}
			return nil
		}); rbErr != nil {
			r.logger.Error("ticket rollback failed after publication error",
				slog.String("ticket_id", ticketID),
				slog.String("publish_error", err.Error()),
				slog.String("rollback_error", rbErr.Error()),
			)
		}
		return ResolvedNotice{}, err
	}

	reviewResolvedTotal.WithLabelValues("approved").Inc()
	r.logger.Info("review ticket approved",
		slog.String("ticket_id", ticketID),
		slog.String("record_id", rec.ID),
		slog.String("approver", reviewerID),
	)

	notice := ResolvedNotice{
		Question:    claimed.Question,
		Answer:      claimed.DraftAnswer,
		RequesterID: claimed.RequesterID,
		ChannelID:   claimed.ChannelID,
		ApproverID:  reviewerID,
		RecordID:    rec.ID,
	}
	if r.notifier != nil {
		r.notifier.NotifyResolved(notice)
	}
	return notice, nil
}

// Reject discards a ticket with no record created. Terminal.
func (r *Resolver) Reject(ctx context.Context, ticketID, reviewerID string) (PendingReview, error) {
	if err := r.authorize(reviewerID); err != nil {
		return PendingReview{}, err
	}

	pr, err := r.queue.Mutate(ctx, ticketID, func(pr *PendingReview) error {
		if err := pr.transition(StateRejected); err != nil {
			return err
		}
		pr.ResolvedBy = reviewerID
		pr.ResolvedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return PendingReview{}, err
	}

	reviewResolvedTotal.WithLabelValues("rejected").Inc()
	r.logger.Info("review ticket rejected",
		slog.String("ticket_id", ticketID),
		slog.String("reviewer", reviewerID),
	)
	return pr, nil
}

// Open lists non-terminal tickets, oldest first.
func (r *Resolver) Open(ctx context.Context) ([]PendingReview, error) {
	return r.queue.ListOpen(ctx)
}

// Get loads one ticket by id.
func (r *Resolver) Get(ctx context.Context, ticketID string) (PendingReview, error) {
	return r.queue.Get(ctx, ticketID)
}

// authorize checks reviewerID against the roster. Violations have no
// side effect.
func (r *Resolver) authorize(reviewerID string) error {
	if !r.roster.IsReviewer(reviewerID) {
		return kberr.New(kberr.CodeUnauthorized,
			"identity "+reviewerID+" is not in the reviewer roster", false)
	}
	return nil
}
