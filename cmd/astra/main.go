// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command astra runs the Astra knowledge-base service and its operator
// tooling.
//
// Usage:
//
//	astra serve --config config.yaml
//	astra ask "what is karma" --user u123
//	astra review --reviewer r456
//	astra corpus check corpus.jsonl
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AstraHome/AstraKB/services/kb/config"
	"github.com/AstraHome/AstraKB/services/kb/corpus"
	"github.com/AstraHome/AstraKB/services/kb/review"
	badgerstore "github.com/AstraHome/AstraKB/services/kb/storage/badger"
)

// configPath holds the --config flag value shared by subcommands.
var configPath string

func main() {
	root := &cobra.Command{
		Use:          "astra",
		Short:        "Astra knowledge-base question answering service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (defaults embedded)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newAskCmd())
	root.AddCommand(newReviewCmd())
	root.AddCommand(newCorpusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogger installs the process-wide slog default.
func setupLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// dataDir resolves the BadgerDB directory: config value, or a default
// under the user's home directory.
func dataDir(cfg *config.Config) (string, error) {
	if cfg.Corpus.DataDir != "" {
		return cfg.Corpus.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".astra", "kb"), nil
}

// stack is the wired collaborator set shared by serve, ask, and review.
type stack struct {
	cfg      *config.Config
	db       *badgerstore.DB
	store    *corpus.BadgerStore
	roster   *config.Roster
	queue    *review.Queue
	resolver *review.Resolver
}

// openStack loads config, the static snapshot, and the badger stores, and
// wires the resolver. notifier may be nil. The caller closes stack.db.
func openStack(logger *slog.Logger, notifier review.Notifier) (*stack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	snap, err := corpus.LoadSnapshot(cfg.Corpus.StaticPath, logger)
	if err != nil {
		return nil, err
	}

	dir, err := dataDir(cfg)
	if err != nil {
		return nil, err
	}
	dbCfg := badgerstore.DefaultConfig()
	dbCfg.Path = dir
	dbCfg.Logger = logger
	db, err := badgerstore.OpenDB(dbCfg)
	if err != nil {
		return nil, err
	}

	store := corpus.NewBadgerStore(snap, db, cfg.Corpus.MaxSearchResults, logger)
	roster := config.NewRoster(cfg.Review.Reviewers, logger)
	queue := review.NewQueue(db, logger)
	resolver := review.NewResolver(queue, store, roster, notifier, logger)

	return &stack{
		cfg:      cfg,
		db:       db,
		store:    store,
		roster:   roster,
		queue:    queue,
		resolver: resolver,
	}, nil
}
