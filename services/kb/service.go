// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kb is the knowledge-base service facade: it wires the corpus
// store, the matching engine, and the review workflow into the ask
// pipeline, and exposes them over HTTP.
package kb

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AstraHome/AstraKB/services/kb/corpus"
	"github.com/AstraHome/AstraKB/services/kb/match"
	"github.com/AstraHome/AstraKB/services/kb/review"
)

// =============================================================================
// OTel Tracer
// =============================================================================

var serviceTracer = otel.Tracer("astra.kb.service")

// =============================================================================
// Service
// =============================================================================

// AskRequest is one user question with its attribution context.
type AskRequest struct {
	// Question is the literal question text.
	Question string

	// UserID is the opaque id of the asking user.
	UserID string

	// ChannelID is the opaque id of the originating channel.
	ChannelID string
}

// AskResult is the plain-data outcome the presentation layer renders.
type AskResult struct {
	// Decision is the classified matching outcome.
	Decision match.Decision

	// Ticket is set when Decision.Outcome is escalate: the published
	// pending review, whose ID is the caller's receipt.
	Ticket *review.PendingReview
}

// Service orchestrates the ask pipeline:
// normalize → score → aggregate → decide → (answer | disambiguate | escalate).
//
// # Description
//
// One request runs the pipeline to completion on its own goroutine; the
// only suspension points are store-access calls, which take ctx. No state
// is mutated before the decision is reached, so an abandoned request
// leaves nothing behind.
//
// # Thread Safety
//
// Safe for concurrent use.
type Service struct {
	store      corpus.Store
	aggregator *match.Aggregator
	engine     *match.Engine
	resolver   *review.Resolver
	logger     *slog.Logger
}

// NewService wires the service from its collaborators.
//
// # Inputs
//
//   - store: Corpus store. Must not be nil.
//   - params: Matching thresholds. Zero fields take defaults.
//   - resolver: Review workflow. Must not be nil.
//   - logger: Logger instance. May be nil.
func NewService(store corpus.Store, params match.Params, resolver *review.Resolver, logger *slog.Logger) *Service {
	if store == nil {
		panic("NewService: store must not be nil")
	}
	if resolver == nil {
		panic("NewService: resolver must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		aggregator: match.NewAggregator(store, params, logger),
		engine:     match.NewEngine(params),
		resolver:   resolver,
		logger:     logger,
	}
}

// Ask runs the full pipeline for one question.
//
// # Description
//
// A direct answer increments the served community record's usage counter
// exactly once; static records have no counter. An escalation publishes
// an independent ticket carrying the literal original question. A store
// failure during aggregation propagates as CodeStoreUnavailable; the
// handler distinguishes "could not search" from "no match" and still
// offers manual escalation.
func (s *Service) Ask(ctx context.Context, req AskRequest) (AskResult, error) {
	ctx, span := serviceTracer.Start(ctx, "kb.Service.Ask")
	defer span.End()

	candidates, err := s.aggregator.Aggregate(ctx, req.Question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation failed")
		return AskResult{}, err
	}

	decision := s.engine.Decide(candidates)
	span.SetAttributes(attribute.String("outcome", string(decision.Outcome)))

	switch decision.Outcome {
	case match.OutcomeAnswer:
		rec := decision.Answer.Record
		if rec.Origin == corpus.OriginCommunity {
			if err := s.store.IncrementUsage(ctx, rec.ID); err != nil {
				// The answer was served; a lost counter bump is a warning,
				// not a user-visible failure.
				s.logger.Warn("usage increment failed",
					slog.String("record_id", rec.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		return AskResult{Decision: decision}, nil

	case match.OutcomeEscalate:
		ticket, err := s.resolver.Publish(ctx, req.Question, req.UserID, req.ChannelID)
		if err != nil {
			span.RecordError(err)
			return AskResult{}, err
		}
		return AskResult{Decision: decision, Ticket: &ticket}, nil

	default:
		return AskResult{Decision: decision}, nil
	}
}

// Escalate publishes a ticket directly, bypassing matching.
//
// # Description
//
// The manual path for when the store is down ("could not search") or the
// user declined every disambiguation choice ("none of these").
func (s *Service) Escalate(ctx context.Context, req AskRequest) (review.PendingReview, error) {
	return s.resolver.Publish(ctx, req.Question, req.UserID, req.ChannelID)
}

// Resolver exposes the review workflow for the HTTP handlers and the CLI.
func (s *Service) Resolver() *review.Resolver {
	return s.resolver
}
