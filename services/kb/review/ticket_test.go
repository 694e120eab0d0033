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
	"testing"

	"github.com/AstraHome/AstraKB/services/kb/kberr"
)

func TestTransition_OpenToDrafted(t *testing.T) {
	pr := PendingReview{ID: "t1", State: StateOpen}
	if err := pr.transition(StateDrafted); err != nil {
		t.Fatalf("open → drafted should succeed: %v", err)
	}
	if pr.State != StateDrafted {
		t.Errorf("expected drafted, got %q", pr.State)
	}
}

func TestTransition_RedraftAllowed(t *testing.T) {
	pr := PendingReview{ID: "t1", State: StateDrafted}
	if err := pr.transition(StateDrafted); err != nil {
		t.Fatalf("drafted → drafted should succeed: %v", err)
	}
}

func TestTransition_DirectResolutionFromOpen(t *testing.T) {
	for _, target := range []State{StateApproved, StateRejected} {
		pr := PendingReview{ID: "t1", State: StateOpen}
		if err := pr.transition(target); err != nil {
			t.Errorf("open → %s should succeed: %v", target, err)
		}
	}
}

func TestTransition_ResolutionFromDrafted(t *testing.T) {
	for _, target := range []State{StateApproved, StateRejected} {
		pr := PendingReview{ID: "t1", State: StateDrafted}
		if err := pr.transition(target); err != nil {
			t.Errorf("drafted → %s should succeed: %v", target, err)
		}
	}
}

func TestTransition_TerminalRejectsEverything(t *testing.T) {
	for _, terminal := range []State{StateApproved, StateRejected} {
		for _, target := range []State{StateDrafted, StateApproved, StateRejected} {
			pr := PendingReview{ID: "t1", State: terminal}
			err := pr.transition(target)
			if err == nil {
				t.Errorf("%s → %s should fail", terminal, target)
				continue
			}
			if !kberr.HasCode(err, kberr.CodeAlreadyResolved) {
				t.Errorf("%s → %s: expected AlreadyResolved, got %v", terminal, target, err)
			}
			if pr.State != terminal {
				t.Errorf("failed transition must not change state, got %q", pr.State)
			}
		}
	}
}

func TestTransition_UnknownTarget(t *testing.T) {
	pr := PendingReview{ID: "t1", State: StateOpen}
	err := pr.transition(StateOpen)
	if err == nil {
		t.Fatal("transition to open should fail")
	}
	if !kberr.HasCode(err, kberr.CodeInvalidState) {
		t.Errorf("expected InvalidState, got %v", err)
	}
}

func TestTerminal(t *testing.T) {
	if StateOpen.Terminal() || StateDrafted.Terminal() {
		t.Error("open and drafted must not be terminal")
	}
	if !StateApproved.Terminal() || !StateRejected.Terminal() {
		t.Error("approved and rejected must be terminal")
	}
}
