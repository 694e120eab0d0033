// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package match

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AstraHome/AstraKB/services/kb/corpus"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	aggregateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "astra",
		Subsystem: "match",
		Name:      "aggregate_latency_seconds",
		Help:      "Latency of candidate aggregation (score + rank + dedupe)",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	aggregateCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "astra",
		Subsystem: "match",
		Name:      "aggregate_candidates",
		Help:      "Candidates surviving the relevance floor, per query",
		Buckets:   []float64{0, 1, 2, 3, 5, 10, 24},
	})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var aggregatorTracer = otel.Tracer("astra.kb.match.aggregator")

// =============================================================================
// Candidate Aggregator
// =============================================================================

// ScoredCandidate pairs a corpus record with its per-query score.
// Ephemeral: constructed per aggregation call, never persisted.
type ScoredCandidate struct {
	Record corpus.QuestionRecord
	Score  float64
}

// Aggregator scores a query against both corpus partitions and produces
// the ranked, deduplicated candidate list the decision engine consumes.
//
// # Description
//
// The static partition is scored exhaustively (it is an in-memory
// snapshot). The community partition is pre-filtered by the store's
// coarse bounded search, then scored. Candidates at or below the
// relevance floor are dropped; survivors are stable-sorted descending by
// score (ties keep insertion order, static before community) and
// deduplicated by exact question text, first occurrence winning.
//
// # Thread Safety
//
// Safe for concurrent use; all state is read-only after construction.
type Aggregator struct {
	store  corpus.Store
	scorer *Scorer
	params Params
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
//
// # Inputs
//
//   - store: The corpus store. Must not be nil.
//   - params: Matching thresholds. Zero fields take defaults.
//   - logger: Logger instance. May be nil.
func NewAggregator(store corpus.Store, params Params, logger *slog.Logger) *Aggregator {
	if store == nil {
		panic("NewAggregator: store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	params = params.normalized()
	return &Aggregator{
		store:  store,
		scorer: NewScorer(params.SubstringScore),
		params: params,
		logger: logger,
	}
}

// Aggregate runs the scoring pipeline for one query.
//
// # Description
//
// Deterministic given the same corpus snapshot and query: the sort is
// stable and the tie-break is documented insertion order. A community
// store failure propagates as kberr CodeStoreUnavailable; the caller
// must treat that as escalation-only, never as "no match".
//
// # Inputs
//
//   - ctx: Context for cancellation at the store boundary.
//   - query: The raw user query.
//
// # Outputs
//
//   - []ScoredCandidate: Ranked, deduplicated candidates above the floor.
//     May be empty. Not restartable; recomputed per call.
//   - error: Non-nil only on store failure.
func (a *Aggregator) Aggregate(ctx context.Context, query string) ([]ScoredCandidate, error) {
	ctx, span := aggregatorTracer.Start(ctx, "match.Aggregator.Aggregate",
		trace.WithAttributes(
			attribute.String("query_preview", truncateForLog(query, 80)),
		),
	)
	defer span.End()

	start := time.Now()

	// Static partition: exhaustive scoring over the snapshot.
	var combined []ScoredCandidate
	for _, rec := range a.store.StaticAll() {
		combined = append(combined, ScoredCandidate{
			Record: rec,
			Score:  a.scorer.Score(query, rec.Question),
		})
	}

	// Community partition: coarse bounded pre-filter, then scoring.
	communityRecs, err := a.store.CommunitySearch(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "community search failed")
		return nil, err
	}
	for _, rec := range communityRecs {
		combined = append(combined, ScoredCandidate{
			Record: rec,
			Score:  a.scorer.Score(query, rec.Question),
		})
	}

	filtered := filterByFloor(combined, a.params.RelevanceFloor)
	sortCandidates(filtered)
	deduped := dedupeByQuestion(filtered)

	aggregateLatency.Observe(time.Since(start).Seconds())
	aggregateCandidates.Observe(float64(len(deduped)))
	span.SetAttributes(
		attribute.Int("scored", len(combined)),
		attribute.Int("surfaced", len(deduped)),
	)

	a.logger.Debug("aggregation complete",
		slog.Int("static", a.snapshotLen()),
		slog.Int("community", len(communityRecs)),
		slog.Int("surfaced", len(deduped)),
		slog.Duration("duration", time.Since(start)),
	)
	return deduped, nil
}

// snapshotLen returns the static record count for diagnostics.
func (a *Aggregator) snapshotLen() int {
	return len(a.store.StaticAll())
}

// filterByFloor drops candidates scoring at or below floor.
func filterByFloor(in []ScoredCandidate, floor float64) []ScoredCandidate {
	out := in[:0]
	for _, c := range in {
		if c.Score > floor {
			out = append(out, c)
		}
	}
	return out
}

// sortCandidates stable-sorts descending by score in place. Ties keep
// insertion order: static records precede community records because they
// were appended first.
func sortCandidates(cs []ScoredCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Score > cs[j].Score
	})
}

// dedupeByQuestion removes candidates whose exact question text was
// already seen. Called after sorting, so the first (highest-scored)
// occurrence wins even when a static and a community record share text.
func dedupeByQuestion(cs []ScoredCandidate) []ScoredCandidate {
	seen := make(map[string]struct{}, len(cs))
	out := cs[:0]
	for _, c := range cs {
		if _, dup := seen[c.Record.Question]; dup {
			continue
		}
		seen[c.Record.Question] = struct{}{}
		out = append(out, c)
	}
	return out
}

// truncateForLog bounds attribute strings recorded on spans.
func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
