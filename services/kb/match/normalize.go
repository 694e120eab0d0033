// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package match implements the query matching pipeline: normalization,
// similarity scoring, candidate aggregation, and the answer /
// disambiguate / escalate decision.
package match

import (
	"strings"
	"unicode"
)

// stopWords are tokens that carry no matching signal: articles, WH-question
// words, and common auxiliaries. Users ask "what is karma?"; the stored
// question asks "What is Karma?". The words that actually discriminate
// are the ones left after this set is removed.
var stopWords = map[string]struct{}{
	"who": {}, "what": {}, "where": {}, "when": {}, "why": {}, "how": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"the": {}, "a": {}, "an": {},
	"in": {}, "of": {}, "for": {}, "to": {}, "on": {}, "at": {},
	"do": {}, "does": {}, "did": {},
	"can": {}, "could": {}, "will": {}, "would": {},
	"i": {}, "you": {}, "it": {}, "my": {}, "me": {},
	"please": {},
}

// Normalize produces the canonical comparison form of text.
//
// # Description
//
// Lower-cases, drops runes that are neither alphanumeric nor whitespace,
// collapses runs of whitespace to single spaces, and removes stop-word
// tokens. If nothing survives the stop-word filter (the whole input was
// stop-words), the fallback skips only the stop-word removal: the result
// is still the cleaned form (lower-cased, punctuation stripped,
// whitespace collapsed), not the raw input, so Normalize stays
// idempotent. A degraded but defined result, never an error.
//
// # Inputs
//
//   - text: Raw user or corpus text. May be empty.
//
// # Outputs
//
//   - string: The canonical form. Empty only when text itself normalizes
//     to nothing at all.
func Normalize(text string) string {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; !stop {
			kept = append(kept, tok)
		}
	}

	if len(kept) == 0 {
		// Whole input was stop-words (or empty). Fall back to the
		// lower-cased unfiltered form so "what is it" still compares
		// against something rather than nothing.
		return strings.Join(strings.Fields(b.String()), " ")
	}
	return strings.Join(kept, " ")
}
