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
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialHub starts a test server around hub.Subscribe and connects one
// websocket client.
func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.Subscribe))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_BroadcastsPendingTickets(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)

	waitForClients(t, hub, 1)

	hub.NotifyPending(PendingReview{
		ID:          "t1",
		Question:    "what is the answer?",
		RequesterID: "user-1",
		State:       StateOpen,
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev TicketEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != "pending" {
		t.Errorf("expected pending event, got %q", ev.Type)
	}
	if ev.Ticket == nil || ev.Ticket.ID != "t1" {
		t.Errorf("unexpected ticket payload: %+v", ev.Ticket)
	}
}

func TestHub_BroadcastsResolvedNotices(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)

	waitForClients(t, hub, 1)

	hub.NotifyResolved(ResolvedNotice{
		Question:    "q",
		Answer:      "a",
		RequesterID: "user-1",
		ApproverID:  "rev-1",
		RecordID:    "rec-1",
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev TicketEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != "resolved" {
		t.Errorf("expected resolved event, got %q", ev.Type)
	}
	if ev.Notice == nil || ev.Notice.RecordID != "rec-1" {
		t.Errorf("unexpected notice payload: %+v", ev.Notice)
	}
}

func TestHub_ConcurrentBroadcastsSerializeWrites(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)

	waitForClients(t, hub, 1)

	// Escalations broadcast from independent request goroutines; every
	// event must still arrive intact on the single connection.
	const broadcasts = 32
	var wg sync.WaitGroup
	for i := 0; i < broadcasts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			hub.NotifyPending(PendingReview{
				ID:    fmt.Sprintf("t-%d", n),
				State: StateOpen,
			})
		}(i)
	}

	seen := make(map[string]bool, broadcasts)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < broadcasts; i++ {
		var ev TicketEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event %d: %v", i, err)
		}
		if ev.Type != "pending" || ev.Ticket == nil {
			t.Fatalf("unexpected event: %+v", ev)
		}
		seen[ev.Ticket.ID] = true
	}
	wg.Wait()

	if len(seen) != broadcasts {
		t.Errorf("expected %d distinct tickets, got %d", broadcasts, len(seen))
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected client to survive concurrent broadcasts, have %d", hub.ClientCount())
	}
}

func TestHub_DisconnectUnregistersClient(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)

	waitForClients(t, hub, 1)
	_ = conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting to an empty hub is a no-op, not a panic.
	hub.NotifyPending(PendingReview{ID: "t2"})
}

// waitForClients polls ClientCount; subscription registration happens on
// the server goroutine.
func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", want, hub.ClientCount())
}
