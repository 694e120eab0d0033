// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package review implements the escalation workflow: pending-review
// tickets, their state machine, the badger-backed queue, the resolver
// that converts approved answers into community corpus records, and the
// websocket channel that pushes tickets to connected reviewers.
package review

import (
	"time"

	"github.com/AstraHome/AstraKB/services/kb/kberr"
)

// State is a ticket's position in the review state machine.
//
// Transitions: Open → Drafted → Approved | Rejected, plus Open → Approved
// and Open → Rejected directly (a reviewer may resolve without a separate
// draft step). Approved and Rejected are terminal. Transitions are driven
// by resolver calls, never by widget lifecycle callbacks.
type State string

const (
	// StateOpen is a freshly escalated ticket awaiting a reviewer.
	StateOpen State = "open"

	// StateDrafted has a proposed answer recorded, awaiting approval.
	StateDrafted State = "drafted"

	// StateApproved is terminal: the answer was published to the
	// community corpus.
	StateApproved State = "approved"

	// StateRejected is terminal: the ticket was discarded, no record.
	StateRejected State = "rejected"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// PendingReview is one escalated question awaiting expert resolution.
//
// # Description
//
// The ticket carries everything the decoupled resolution step needs
// (original question text, requester id, channel id) by value. The asking
// user's session and the reviewer's approval share no in-process state;
// structured fields are never round-tripped through rendered text.
//
// Every escalation creates an independent ticket; concurrent identical
// pending reviews are not deduplicated.
type PendingReview struct {
	// ID is the opaque ticket handle (uuid).
	ID string

	// Question is the literal original question text.
	Question string

	// RequesterID is the opaque id of the asking user.
	RequesterID string

	// ChannelID is the opaque id of the channel the question came from.
	ChannelID string

	// CreatedAt is when the escalation happened.
	CreatedAt time.Time

	// State is the current state-machine position.
	State State

	// DraftAnswer is the proposed answer, set by Draft.
	DraftAnswer string

	// DraftedBy is the reviewer who recorded the draft.
	DraftedBy string

	// ResolvedBy is the reviewer who approved or rejected. Empty until
	// the ticket is terminal.
	ResolvedBy string

	// ResolvedAt is when the ticket became terminal.
	ResolvedAt time.Time
}

// transition validates and applies a state change in place.
//
// Terminal states reject every transition with CodeAlreadyResolved so a
// double resolution surfaces the dedicated error, not a generic one.
func (pr *PendingReview) transition(to State) error {
	if pr.State.Terminal() {
		return kberr.New(kberr.CodeAlreadyResolved,
			"ticket "+pr.ID+" is already "+string(pr.State), false)
	}

	switch to {
	case StateDrafted:
		// Open → Drafted, and Drafted → Drafted for re-drafts.
		if pr.State != StateOpen && pr.State != StateDrafted {
			return kberr.New(kberr.CodeInvalidState,
				"cannot draft ticket in state "+string(pr.State), false)
		}
	case StateApproved, StateRejected:
		if pr.State != StateOpen && pr.State != StateDrafted {
			return kberr.New(kberr.CodeInvalidState,
				"cannot resolve ticket in state "+string(pr.State), false)
		}
	default:
		return kberr.New(kberr.CodeInvalidState, "unknown target state "+string(to), false)
	}

	pr.State = to
	return nil
}

// ResolvedNotice is the structured payload the presentation layer uses to
// notify the original requester after approval. All fields are carried
// natively; nothing is parsed back out of formatted text.
type ResolvedNotice struct {
	Question    string
	Answer      string
	RequesterID string
	ChannelID   string
	ApproverID  string
	RecordID    string
}

// Roster is the read-only authorization input: the set of identities
// allowed to draft, approve, and reject. Supplied by configuration.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use (the config roster
// hot-reloads under a read lock).
type Roster interface {
	IsReviewer(id string) bool
}

// Notifier receives ticket lifecycle events for the review channel.
// Implementations must not block publication; a nil Notifier disables
// notification entirely.
type Notifier interface {
	// NotifyPending announces a newly published ticket to reviewers.
	NotifyPending(pr PendingReview)

	// NotifyResolved announces an approval so the requester's channel can
	// be told.
	NotifyResolved(n ResolvedNotice)
}
