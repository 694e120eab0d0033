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

// Default tuning values. The floor and ceiling were tuned empirically in
// the system this one replaces; they are exposed as configuration because
// their right values are domain-specific, not derivable.
const (
	// DefaultRelevanceFloor is the minimum score a candidate must exceed
	// to be surfaced at all. At or below it, matches are noise.
	DefaultRelevanceFloor = 0.6

	// DefaultAutoAcceptCeiling is the score above which the top candidate
	// is served directly without disambiguation. Above it the match is
	// for practical purposes exact.
	DefaultAutoAcceptCeiling = 0.95

	// DefaultMaxDisambiguation is the maximum number of choices presented
	// when the decision is to disambiguate. Later candidates are silently
	// truncated; the presentation layer adds its own "none of these" row.
	DefaultMaxDisambiguation = 24
)

// Params holds the matching thresholds.
//
// # Thread Safety
//
// Value type; copied at construction of the Aggregator and Engine.
type Params struct {
	// RelevanceFloor filters candidates scoring at or below it.
	RelevanceFloor float64

	// AutoAcceptCeiling auto-accepts a top candidate scoring strictly
	// above it.
	AutoAcceptCeiling float64

	// SubstringScore is the fixed score for the scorer's containment
	// fast path.
	SubstringScore float64

	// MaxDisambiguation caps the disambiguation choice list.
	MaxDisambiguation int
}

// DefaultParams returns Params with the given defaults filled in.
func DefaultParams() Params {
	return Params{
		RelevanceFloor:    DefaultRelevanceFloor,
		AutoAcceptCeiling: DefaultAutoAcceptCeiling,
		SubstringScore:    DefaultSubstringScore,
		MaxDisambiguation: DefaultMaxDisambiguation,
	}
}

// normalized returns a copy with zero or out-of-range fields replaced by
// defaults, so a partially-populated config cannot produce a degenerate
// engine.
func (p Params) normalized() Params {
	if p.RelevanceFloor <= 0 || p.RelevanceFloor >= 1 {
		p.RelevanceFloor = DefaultRelevanceFloor
	}
	if p.AutoAcceptCeiling <= 0 || p.AutoAcceptCeiling > 1 {
		p.AutoAcceptCeiling = DefaultAutoAcceptCeiling
	}
	if p.SubstringScore <= 0 || p.SubstringScore > 1 {
		p.SubstringScore = DefaultSubstringScore
	}
	if p.MaxDisambiguation <= 0 {
		p.MaxDisambiguation = DefaultMaxDisambiguation
	}
	return p
}
