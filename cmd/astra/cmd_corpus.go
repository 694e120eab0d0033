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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AstraHome/AstraKB/services/kb/corpus"
)

func newCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect the static and community corpora",
	}
	cmd.AddCommand(newCorpusCheckCmd())
	cmd.AddCommand(newCorpusSearchCmd())
	return cmd
}

// newCorpusCheckCmd validates a static corpus file without starting the
// service. Useful as a pre-deploy gate: malformed lines are reported but
// only an unreadable file fails the command.
func newCorpusCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a static corpus file and report the load summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(false)

			snap, err := corpus.LoadSnapshot(args[0], logger)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d records loaded\n", args[0], snap.Len())
			return nil
		},
	}
}

// newCorpusSearchCmd runs a usage-ranked substring search over the
// community partition.
func newCorpusSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query...>",
		Short: "Search community records, most used first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(false)

			st, err := openStack(logger, nil)
			if err != nil {
				return err
			}
			defer st.db.Close()

			recs, err := st.store.CommunitySearch(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println(render(dimStyle, "No community records matched."))
				return nil
			}
			for _, rec := range recs {
				fmt.Println(render(questionStyle, "Q: "+rec.Question))
				fmt.Println("A: " + rec.Answer)
				fmt.Println(render(dimStyle, fmt.Sprintf("   id %s  used %d  approved by %s", rec.ID, rec.UseCount, rec.ApproverID)))
			}
			return nil
		},
	}
}
