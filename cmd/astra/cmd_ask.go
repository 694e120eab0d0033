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
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AstraHome/AstraKB/services/kb"
	"github.com/AstraHome/AstraKB/services/kb/kberr"
	"github.com/AstraHome/AstraKB/services/kb/match"
)

// CLI styles. Skipped entirely when stdout is not a terminal.
var (
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// render applies a style only when writing to a terminal, so piped output
// stays clean.
func render(style lipgloss.Style, s string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return s
	}
	return style.Render(s)
}

func newAskCmd() *cobra.Command {
	var (
		userID    string
		channelID string
	)

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Run the matching pipeline for a question against the local stores",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, strings.Join(args, " "), userID, channelID)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "cli", "Requester id recorded on escalation")
	cmd.Flags().StringVar(&channelID, "channel", "cli", "Channel id recorded on escalation")
	return cmd
}

func runAsk(cmd *cobra.Command, question, userID, channelID string) error {
	logger := setupLogger(false)

	st, err := openStack(logger, nil)
	if err != nil {
		return err
	}
	defer st.db.Close()

	svc := kb.NewService(st.store, st.cfg.Match.Params(), st.resolver, logger)

	result, err := svc.Ask(cmd.Context(), kb.AskRequest{
		Question:  question,
		UserID:    userID,
		ChannelID: channelID,
	})
	if err != nil {
		if kberr.HasCode(err, kberr.CodeStoreUnavailable) {
			fmt.Println(render(warnStyle, "Search is unavailable right now; your question was not lost. Retry shortly."))
		}
		return err
	}

	switch result.Decision.Outcome {
	case match.OutcomeAnswer:
		rec := result.Decision.Answer.Record
		fmt.Println(render(questionStyle, "Q: "+rec.Question))
		fmt.Println(render(answerStyle, "A: "+rec.Answer))
		fmt.Println(render(dimStyle, fmt.Sprintf("(%s, score %.2f)", rec.Origin, result.Decision.Answer.Score)))

	case match.OutcomeDisambiguate:
		fmt.Println("Did you mean:")
		for i, c := range result.Decision.Choices {
			fmt.Printf("  %2d. %s %s\n", i+1,
				render(questionStyle, c.Record.Question),
				render(dimStyle, fmt.Sprintf("(%.2f)", c.Score)))
		}
		if result.Decision.Truncated > 0 {
			fmt.Println(render(dimStyle, fmt.Sprintf("  ... %d more omitted", result.Decision.Truncated)))
		}
		fmt.Println(render(dimStyle, "  or none of these: re-run with a more specific question"))

	case match.OutcomeEscalate:
		fmt.Println(render(warnStyle, "No answer on file. Your question was forwarded to the expert team."))
		if result.Ticket != nil {
			fmt.Println(render(dimStyle, "ticket: "+result.Ticket.ID))
		}
	}
	return nil
}
