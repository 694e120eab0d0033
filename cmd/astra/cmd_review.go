// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AstraHome/AstraKB/services/kb/kberr"
	"github.com/AstraHome/AstraKB/services/kb/review"
)

func newReviewCmd() *cobra.Command {
	var reviewerID string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Interactive console for resolving escalated questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd.Context(), reviewerID)
		},
	}
	cmd.Flags().StringVar(&reviewerID, "reviewer", "", "Reviewer identity (must be in the roster)")
	_ = cmd.MarkFlagRequired("reviewer")
	return cmd
}

// runReview loops over open tickets until the queue is drained or the
// reviewer quits. Every mutation goes through the Resolver, so the console
// gets the same authorization and idempotence guarantees as the HTTP API.
func runReview(ctx context.Context, reviewerID string) error {
	logger := setupLogger(false)

	st, err := openStack(logger, nil)
	if err != nil {
		return err
	}
	defer st.db.Close()

	for {
		open, err := st.resolver.Open(ctx)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			fmt.Println(render(dimStyle, "No open tickets."))
			return nil
		}

		ticket, quit, err := selectTicket(open)
		if err != nil || quit {
			return err
		}

		if err := resolveTicket(ctx, st.resolver, ticket, reviewerID); err != nil {
			// A ticket resolved under us by another reviewer is routine,
			// not a reason to abort the session.
			if kberr.HasCode(err, kberr.CodeAlreadyResolved) {
				fmt.Println(render(warnStyle, "Ticket was already resolved by another reviewer."))
				continue
			}
			return err
		}
	}
}

// selectTicket prompts for one open ticket. quit is true when the
// reviewer picks the exit option or cancels the form.
func selectTicket(open []review.PendingReview) (review.PendingReview, bool, error) {
	byID := make(map[string]review.PendingReview, len(open))
	opts := make([]huh.Option[string], 0, len(open)+1)
	for _, pr := range open {
		byID[pr.ID] = pr
		label := fmt.Sprintf("[%s] %s (from %s, %s)",
			pr.State, truncate(pr.Question, 60), pr.RequesterID,
			pr.CreatedAt.Format("Jan 2 15:04"))
		opts = append(opts, huh.NewOption(label, pr.ID))
	}
	opts = append(opts, huh.NewOption("(quit)", ""))

	var ticketID string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Open tickets (%d)", len(open))).
			Options(opts...).
			Value(&ticketID),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return review.PendingReview{}, true, nil
		}
		return review.PendingReview{}, false, err
	}
	if ticketID == "" {
		return review.PendingReview{}, true, nil
	}
	return byID[ticketID], false, nil
}

// resolveTicket shows one ticket and applies the chosen action.
func resolveTicket(ctx context.Context, resolver *review.Resolver, pr review.PendingReview, reviewerID string) error {
	fmt.Println(render(questionStyle, "Q: "+pr.Question))
	fmt.Println(render(dimStyle, fmt.Sprintf("requester %s  channel %s  ticket %s", pr.RequesterID, pr.ChannelID, pr.ID)))
	if pr.DraftAnswer != "" {
		fmt.Println(render(dimStyle, "draft by "+pr.DraftedBy+": ") + pr.DraftAnswer)
	}

	var (
		action = "skip"
		answer = pr.DraftAnswer
	)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Action").
				Options(
					huh.NewOption("Draft an answer", "draft"),
					huh.NewOption("Approve and publish", "approve"),
					huh.NewOption("Reject", "reject"),
					huh.NewOption("Skip", "skip"),
				).
				Value(&action),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Answer").
				Description("Published to the community corpus on approval.").
				Value(&answer),
		).WithHideFunc(func() bool {
			return action == "reject" || action == "skip"
		}),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	switch action {
	case "draft":
		if _, err := resolver.Draft(ctx, pr.ID, reviewerID, answer); err != nil {
			return err
		}
		fmt.Println(render(dimStyle, "Draft saved."))
	case "approve":
		notice, err := resolver.Approve(ctx, pr.ID, reviewerID, answer)
		if err != nil {
			return err
		}
		fmt.Println(render(answerStyle, "Published.") + " " + render(dimStyle, "record "+notice.RecordID))
	case "reject":
		if _, err := resolver.Reject(ctx, pr.ID, reviewerID); err != nil {
			return err
		}
		fmt.Println(render(dimStyle, "Rejected."))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
