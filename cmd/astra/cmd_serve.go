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
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/AstraHome/AstraKB/services/kb"
	"github.com/AstraHome/AstraKB/services/kb/review"
	"github.com/AstraHome/AstraKB/services/kb/telemetry"
)

// shutdownGrace bounds in-flight request draining on SIGINT/SIGTERM.
const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		port  int
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the knowledge-base HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), port, debug)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging and request logs")
	return cmd
}

func runServe(ctx context.Context, portFlag int, debug bool) error {
	logger := setupLogger(debug)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "astra-kb", debug, logger)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	hub := review.NewHub(logger)
	st, err := openStack(logger, hub)
	if err != nil {
		return err
	}
	defer st.db.Close()

	svc := kb.NewService(st.store, st.cfg.Match.Params(), st.resolver, logger)
	handlers := kb.NewHandlers(svc, hub, logger)

	if debug || st.cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("astra-kb"))
	if debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	kb.RegisterRoutes(v1, handlers)

	port := st.cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	printBanner(port, st)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return st.db.RunGC(gctx)
	})

	if configPath != "" {
		g.Go(func() error {
			return st.roster.Watch(gctx, configPath)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// printBanner logs the startup summary.
func printBanner(port int, st *stack) {
	slog.Info("astra knowledge base online",
		slog.Int("port", port),
		slog.Int("static_records", len(st.store.StaticAll())),
		slog.Int("reviewers", st.roster.Len()),
		slog.Float64("relevance_floor", st.cfg.Match.RelevanceFloor),
		slog.Float64("auto_accept_ceiling", st.cfg.Match.AutoAcceptCeiling),
	)
}
