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
	"testing"
)

func TestNormalize_StripsStopWordsAndPunctuation(t *testing.T) {
	got := Normalize("What IS Karma?")
	if !strings.Contains(got, "karma") {
		t.Errorf("expected normalized form to contain %q, got %q", "karma", got)
	}
	if strings.Contains(got, "what") || strings.Contains(got, "is") {
		t.Errorf("expected stop-words removed, got %q", got)
	}
	if strings.ContainsAny(got, "?!.,") {
		t.Errorf("expected punctuation removed, got %q", got)
	}
}

func TestNormalize_LowerCases(t *testing.T) {
	got := Normalize("KARMA Points SYSTEM")
	if got != "karma points system" {
		t.Errorf("expected %q, got %q", "karma points system", got)
	}
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	got := Normalize("karma    points\t\tsystem")
	if got != "karma points system" {
		t.Errorf("expected single-spaced tokens, got %q", got)
	}
}

func TestNormalize_AllStopWordsFallsBack(t *testing.T) {
	// A query that is nothing but stop-words must degrade to the
	// lower-cased unfiltered form, not an empty string.
	got := Normalize("What is it?")
	if got == "" {
		t.Fatal("expected non-empty fallback for all-stop-word input")
	}
	if got != "what is it" {
		t.Errorf("expected fallback %q, got %q", "what is it", got)
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	if got := Normalize(""); got != "" {
		t.Errorf("expected empty output for empty input, got %q", got)
	}
	if got := Normalize("?!."); got != "" {
		t.Errorf("expected empty output for punctuation-only input, got %q", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"What IS Karma?",
		"how do I earn karma points",
		"What is it?",
		"KARMA",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
