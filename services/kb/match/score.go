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
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultSubstringScore is the fixed score awarded when the normalized
// query is a substring of the normalized candidate. Users type keyword
// subsets of full stored questions; containment is a near-certain match
// that does not deserve edit-distance noise.
const DefaultSubstringScore = 0.95

// Scorer computes similarity between a query and a candidate question.
//
// # Description
//
// The score is in [0,1]. The substring fast path is directional: a short
// query inside a long stored question scores the fixed substring score,
// while the reverse direction falls through to the sequence ratio. This
// asymmetry is intentional: the stored question being a fragment of the
// query says much less about intent than the other way around.
//
// # Thread Safety
//
// Immutable after construction. Safe for concurrent use.
type Scorer struct {
	substringScore float64
}

// NewScorer creates a Scorer. Pass 0 for the default substring score.
func NewScorer(substringScore float64) *Scorer {
	if substringScore <= 0 || substringScore > 1 {
		substringScore = DefaultSubstringScore
	}
	return &Scorer{substringScore: substringScore}
}

// Score computes the similarity between query and candidate.
//
// # Description
//
//  1. Both inputs are normalized independently.
//  2. A non-empty normalized query contained in the normalized candidate
//     returns the fixed substring score.
//  3. Otherwise, the character-level sequence-similarity ratio of the two
//     normalized strings: longest-matching-blocks based, 1.0 only for
//     identical sequences, 0.0 for fully disjoint ones.
//
// # Outputs
//
//   - float64: Score in [0,1].
func (s *Scorer) Score(query, candidate string) float64 {
	nq := Normalize(query)
	nc := Normalize(candidate)

	if nq != "" && strings.Contains(nc, nq) {
		return s.substringScore
	}
	return sequenceRatio(nq, nc)
}

// sequenceRatio computes the difflib ratio (2*M/T over longest matching
// blocks) between two strings at character granularity.
func sequenceRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}
