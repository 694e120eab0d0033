// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRoster_Membership(t *testing.T) {
	r := NewRoster([]string{"rev-1", "rev-2", ""}, nil)

	if !r.IsReviewer("rev-1") || !r.IsReviewer("rev-2") {
		t.Error("listed reviewers should be members")
	}
	if r.IsReviewer("rev-3") {
		t.Error("unlisted id should not be a member")
	}
	if r.IsReviewer("") {
		t.Error("empty id should never be a member")
	}
	if r.Len() != 2 {
		t.Errorf("empty ids should be dropped, got len %d", r.Len())
	}
}

func TestRoster_EmptyRoster(t *testing.T) {
	r := NewRoster(nil, nil)
	if r.Len() != 0 {
		t.Errorf("expected empty roster, got %d", r.Len())
	}
	if r.IsReviewer("anyone") {
		t.Error("empty roster authorizes nobody")
	}
}

func TestRoster_WatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	write := func(reviewers string) {
		t.Helper()
		content := "review:\n  reviewers: [" + reviewers + "]\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(`"rev-1"`)

	r := NewRoster([]string{"rev-1"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, path) }()

	// Give the watcher a moment to register before the write.
	time.Sleep(100 * time.Millisecond)
	write(`"rev-1", "rev-2"`)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if r.IsReviewer("rev-2") {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !r.IsReviewer("rev-2") {
		t.Fatal("roster did not pick up the new reviewer")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned error on cancellation: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancellation")
	}
}

func TestRoster_WatchKeepsRosterOnEmptyReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	good := "review:\n  reviewers: [\"rev-1\"]\n"
	if err := os.WriteFile(path, []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRoster([]string{"rev-1"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, path) }()

	time.Sleep(100 * time.Millisecond)

	// A rewrite first truncates the file; the watcher sees that state as
	// a valid config with zero reviewers and must not adopt it.
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if !r.IsReviewer("rev-1") {
		t.Fatal("truncated config must not wipe the roster")
	}

	// The completed rewrite is then adopted normally.
	if err := os.WriteFile(path, []byte("review:\n  reviewers: [\"rev-1\", \"rev-2\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if r.IsReviewer("rev-2") {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !r.IsReviewer("rev-2") {
		t.Error("completed rewrite should reload the roster")
	}

	cancel()
	<-done
}

func TestRoster_WatchKeepsRosterOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	good := "review:\n  reviewers: [\"rev-1\"]\n"
	if err := os.WriteFile(path, []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRoster([]string{"rev-1"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, path) }()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("review: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if !r.IsReviewer("rev-1") {
		t.Error("failed reload must keep the previous roster")
	}

	cancel()
	<-done
}
