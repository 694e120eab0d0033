// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kb

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AstraHome/AstraKB/services/kb/kberr"
	"github.com/AstraHome/AstraKB/services/kb/match"
	"github.com/AstraHome/AstraKB/services/kb/review"
)

// Handlers holds the HTTP handler set for the knowledge-base service.
type Handlers struct {
	svc    *Service
	hub    *review.Hub
	logger *slog.Logger
}

// NewHandlers creates the handler set. hub may be nil when the websocket
// stream is not exposed (tests).
func NewHandlers(svc *Service, hub *review.Hub, logger *slog.Logger) *Handlers {
	if svc == nil {
		panic("NewHandlers: svc must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, hub: hub, logger: logger}
}

// =============================================================================
// Request / Response Types
// =============================================================================

type askRequest struct {
	Question  string `json:"question" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	ChannelID string `json:"channel_id"`
}

type candidateView struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer,omitempty"`
	Origin   string  `json:"origin"`
	Score    float64 `json:"score"`
}

type askResponse struct {
	Outcome string `json:"outcome"`

	// Answer is set for outcome "answer".
	Answer *candidateView `json:"answer,omitempty"`

	// Choices is set for outcome "disambiguate". The client renders its
	// own trailing "none of these, escalate" option and calls /escalate.
	Choices   []candidateView `json:"choices,omitempty"`
	Truncated int             `json:"truncated,omitempty"`

	// TicketID is set for outcome "escalate": the receipt for the
	// forwarded question.
	TicketID string `json:"ticket_id,omitempty"`
}

type reviewActionRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
	Answer     string `json:"answer"`
}

// =============================================================================
// Ask Handlers
// =============================================================================

// Ask handles POST /v1/kb/ask.
func (h *Handlers) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.Ask(c.Request.Context(), AskRequest{
		Question:  req.Question,
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
	})
	if err != nil {
		if kberr.HasCode(err, kberr.CodeStoreUnavailable) {
			// "Could not search" is operationally distinct from "no match":
			// apologize, but keep the manual escalation door open.
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":           "knowledge base search is unavailable",
				"code":            string(kberr.CodeStoreUnavailable),
				"manual_escalate": "/v1/kb/escalate",
			})
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, toAskResponse(result))
}

// Escalate handles POST /v1/kb/escalate: manual escalation, used when the
// store is down or the user picked "none of these".
func (h *Handlers) Escalate(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, err := h.svc.Escalate(c.Request.Context(), AskRequest{
		Question:  req.Question,
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ticket_id": ticket.ID})
}

// =============================================================================
// Review Handlers
// =============================================================================

// ListReviews handles GET /v1/kb/reviews.
func (h *Handlers) ListReviews(c *gin.Context) {
	open, err := h.svc.Resolver().Open(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": open})
}

// GetReview handles GET /v1/kb/reviews/:id.
func (h *Handlers) GetReview(c *gin.Context) {
	pr, err := h.svc.Resolver().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pr)
}

// DraftReview handles POST /v1/kb/reviews/:id/draft.
func (h *Handlers) DraftReview(c *gin.Context) {
	var req reviewActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pr, err := h.svc.Resolver().Draft(c.Request.Context(), c.Param("id"), req.ReviewerID, req.Answer)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pr)
}

// ApproveReview handles POST /v1/kb/reviews/:id/approve.
func (h *Handlers) ApproveReview(c *gin.Context) {
	var req reviewActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	notice, err := h.svc.Resolver().Approve(c.Request.Context(), c.Param("id"), req.ReviewerID, req.Answer)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, notice)
}

// RejectReview handles POST /v1/kb/reviews/:id/reject.
func (h *Handlers) RejectReview(c *gin.Context) {
	var req reviewActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pr, err := h.svc.Resolver().Reject(c.Request.Context(), c.Param("id"), req.ReviewerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pr)
}

// StreamReviews handles GET /v1/kb/reviews/stream: the websocket review
// channel for connected reviewer clients.
func (h *Handlers) StreamReviews(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "review stream not enabled"})
		return
	}
	h.hub.Subscribe(c.Writer, c.Request)
}

// Health handles GET /v1/kb/health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// =============================================================================
// Error Mapping
// =============================================================================

// fail maps a typed error to its HTTP status and JSON body.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := ""

	var kerr *kberr.Error
	if errors.As(err, &kerr) {
		code = string(kerr.Code)
		switch kerr.Code {
		case kberr.CodeStoreUnavailable:
			status = http.StatusServiceUnavailable
		case kberr.CodeUnauthorized:
			status = http.StatusForbidden
		case kberr.CodeAlreadyResolved, kberr.CodeInvalidState:
			status = http.StatusConflict
		case kberr.CodeTicketNotFound:
			status = http.StatusNotFound
		case kberr.CodeEmptyField:
			status = http.StatusBadRequest
		}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

// toAskResponse flattens an AskResult for the wire.
func toAskResponse(result AskResult) askResponse {
	resp := askResponse{Outcome: string(result.Decision.Outcome)}

	switch result.Decision.Outcome {
	case match.OutcomeAnswer:
		v := toCandidateView(*result.Decision.Answer, true)
		resp.Answer = &v
	case match.OutcomeDisambiguate:
		for _, c := range result.Decision.Choices {
			// Disambiguation offers question texts only; the answer is
			// served after the user picks.
			resp.Choices = append(resp.Choices, toCandidateView(c, false))
		}
		resp.Truncated = result.Decision.Truncated
	case match.OutcomeEscalate:
		if result.Ticket != nil {
			resp.TicketID = result.Ticket.ID
		}
	}
	return resp
}

func toCandidateView(c match.ScoredCandidate, withAnswer bool) candidateView {
	v := candidateView{
		Question: c.Record.Question,
		Origin:   string(c.Record.Origin),
		Score:    c.Score,
	}
	if withAnswer {
		v.Answer = c.Record.Answer
	}
	return v
}
