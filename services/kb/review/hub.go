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
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single broadcast write. A reviewer client that
// cannot keep up within this window is dropped rather than allowed to
// block publication.
const writeTimeout = 5 * time.Second

// TicketEvent is the wire payload pushed to connected reviewer clients.
type TicketEvent struct {
	// Type is "pending" for new tickets, "resolved" for approvals.
	Type string `json:"type"`

	// Ticket is set for pending events.
	Ticket *PendingReview `json:"ticket,omitempty"`

	// Notice is set for resolved events.
	Notice *ResolvedNotice `json:"notice,omitempty"`
}

// hubClient is one connected reviewer. The write mutex serializes
// broadcasts onto the connection: gorilla/websocket allows at most one
// concurrent writer per Conn, and escalations broadcast from separate
// request goroutines.
type hubClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// writeEvent sends one event under the client's write lock.
func (c *hubClient) writeEvent(ev TicketEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ev)
}

// Hub is the websocket review channel: the live push surface reviewers
// subscribe to.
//
// # Description
//
// Implements Notifier. The hub renders nothing; it ships structured
// TicketEvent JSON and leaves presentation to the client. Broadcasts are
// best-effort: the durable source of truth is the Queue, which a client
// lists on connect and after any gap.
//
// # Thread Safety
//
// Safe for concurrent use; the client set is mutex-guarded and each
// connection carries its own write lock.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

// NewHub creates a Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
	}
}

// Subscribe upgrades an HTTP request to a websocket and registers the
// client for ticket events. Blocks until the client disconnects.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("error", err.Error()),
		)
		return
	}
	client := &hubClient{conn: conn}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("reviewer client connected", slog.Int("clients", count))

	// Drain (and discard) client frames until the connection closes; the
	// hub is push-only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(client)
}

// NotifyPending broadcasts a newly published ticket.
func (h *Hub) NotifyPending(pr PendingReview) {
	h.broadcast(TicketEvent{Type: "pending", Ticket: &pr})
}

// NotifyResolved broadcasts an approval notice.
func (h *Hub) NotifyResolved(n ResolvedNotice) {
	h.broadcast(TicketEvent{Type: "resolved", Notice: &n})
}

// broadcast writes an event to every connected client, dropping any that
// miss the write deadline.
func (h *Hub) broadcast(ev TicketEvent) {
	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.writeEvent(ev); err != nil {
			h.logger.Warn("dropping slow reviewer client",
				slog.String("error", err.Error()),
			)
			h.drop(client)
		}
	}
}

// drop unregisters and closes a client connection.
func (h *Hub) drop(client *hubClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	_ = client.conn.Close()
}

// ClientCount returns the number of connected reviewer clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
