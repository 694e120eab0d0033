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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var decisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "astra",
	Subsystem: "match",
	Name:      "decision_total",
	Help:      "Decisions by outcome: answer, disambiguate, escalate",
}, []string{"outcome"})

// =============================================================================
// Decision Engine
// =============================================================================

// Outcome classifies the result of a decision.
type Outcome string

const (
	// OutcomeAnswer means a single record was selected as the direct answer.
	OutcomeAnswer Outcome = "answer"

	// OutcomeDisambiguate means two or more near-tied candidates need a
	// human choice.
	OutcomeDisambiguate Outcome = "disambiguate"

	// OutcomeEscalate means no candidate survived and the question goes to
	// the review workflow. Not an error.
	OutcomeEscalate Outcome = "escalate"
)

// Decision is the classified result for one query.
//
// # Description
//
// Exactly one of the payload fields is meaningful per outcome: Answer for
// OutcomeAnswer, Choices for OutcomeDisambiguate, neither for
// OutcomeEscalate. Ephemeral plain data for the presentation layer.
type Decision struct {
	Outcome Outcome

	// Answer is the selected candidate when Outcome is OutcomeAnswer.
	Answer *ScoredCandidate

	// Choices is the truncated disambiguation list when Outcome is
	// OutcomeDisambiguate. The "none of these, escalate" row is the
	// presentation layer's to add.
	Choices []ScoredCandidate

	// Truncated reports how many candidates were silently dropped from
	// Choices by the disambiguation cap.
	Truncated int
}

// Engine classifies a ranked candidate list into a Decision.
//
// # Thread Safety
//
// Immutable after construction. Safe for concurrent use.
type Engine struct {
	params Params
}

// NewEngine creates an Engine. Zero param fields take defaults.
func NewEngine(params Params) *Engine {
	return &Engine{params: params.normalized()}
}

// Decide applies the threshold policy to ranked candidates.
//
// # Description
//
//   - Empty list → Escalate.
//   - A single surviving candidate, or a top score strictly above the
//     auto-accept ceiling → Answer with the top candidate. Band rationale:
//     above the ceiling the match is practically exact and a
//     disambiguation prompt would be friction without benefit.
//   - Otherwise → Disambiguate with up to the configured cap of choices.
//
// Decide has no side effects; the usage-count increment for a served
// community record is the caller's responsibility, applied exactly once
// per OutcomeAnswer.
//
// # Inputs
//
//   - candidates: Ranked, deduplicated candidates from the Aggregator.
//
// # Outputs
//
//   - Decision: The classified outcome. Never holds more than the
//     configured number of choices.
func (e *Engine) Decide(candidates []ScoredCandidate) Decision {
	if len(candidates) == 0 {
		decisionTotal.WithLabelValues(string(OutcomeEscalate)).Inc()
		return Decision{Outcome: OutcomeEscalate}
	}

	top := candidates[0]
	if len(candidates) == 1 || top.Score > e.params.AutoAcceptCeiling {
		decisionTotal.WithLabelValues(string(OutcomeAnswer)).Inc()
		return Decision{Outcome: OutcomeAnswer, Answer: &top}
	}

	choices := candidates
	truncated := 0
	if len(choices) > e.params.MaxDisambiguation {
		truncated = len(choices) - e.params.MaxDisambiguation
		choices = choices[:e.params.MaxDisambiguation]
	}
	decisionTotal.WithLabelValues(string(OutcomeDisambiguate)).Inc()
	return Decision{Outcome: OutcomeDisambiguate, Choices: choices, Truncated: truncated}
}
