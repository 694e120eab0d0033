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
	"math"
	"testing"
)

func TestScore_SubstringFastPath(t *testing.T) {
	s := NewScorer(0)
	got := s.Score("karma", "What is Karma?")
	if got < 0.95 {
		t.Errorf("expected substring containment score >= 0.95, got %.4f", got)
	}
}

func TestScore_DisjointBelowFloor(t *testing.T) {
	s := NewScorer(0)
	got := s.Score("xyz123", "What is Karma?")
	if got >= 0.6 {
		t.Errorf("expected disjoint score < 0.6, got %.4f", got)
	}
}

func TestScore_AsymmetryIsDocumentedBehavior(t *testing.T) {
	// The substring shortcut is directional: a keyword query contained in
	// a stored question scores the fixed substring score, while the
	// reverse direction falls through to the sequence ratio. This is a
	// designed property, not a bug.
	s := NewScorer(0)
	forward := s.Score("karma", "What is Karma doing for users?")
	reverse := s.Score("What is Karma doing for users?", "karma")
	if forward < 0.95 {
		t.Fatalf("expected forward containment score >= 0.95, got %.4f", forward)
	}
	if reverse >= forward {
		t.Errorf("expected directional asymmetry: reverse %.4f should be below forward %.4f",
			reverse, forward)
	}
}

func TestScore_IdenticalAfterNormalization(t *testing.T) {
	s := NewScorer(0)
	got := s.Score("What is Karma?", "what is karma")
	// Identical normalized forms hit the substring path.
	if got < 0.95 {
		t.Errorf("expected near-exact score for identical normalized forms, got %.4f", got)
	}
}

func TestScore_RangeBounds(t *testing.T) {
	s := NewScorer(0)
	pairs := [][2]string{
		{"karma", "What is Karma?"},
		{"zzz", "aaa"},
		{"", ""},
		{"how do i reset my password", "resetting your password"},
	}
	for _, p := range pairs {
		got := s.Score(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Score(%q, %q) = %.4f outside [0,1]", p[0], p[1], got)
		}
	}
}

func TestScore_CustomSubstringScore(t *testing.T) {
	s := NewScorer(0.9)
	got := s.Score("karma", "What is Karma?")
	if math.Abs(got-0.9) > 1e-9 {
		t.Errorf("expected configured substring score 0.9, got %.4f", got)
	}
}

func TestSequenceRatio_Identical(t *testing.T) {
	if got := sequenceRatio("karma", "karma"); got != 1.0 {
		t.Errorf("expected 1.0 for identical sequences, got %.4f", got)
	}
}

func TestSequenceRatio_Disjoint(t *testing.T) {
	if got := sequenceRatio("abc", "xyz"); got != 0.0 {
		t.Errorf("expected 0.0 for fully disjoint sequences, got %.4f", got)
	}
}
