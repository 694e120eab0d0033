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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all knowledge-base routes with the router.
//
// Description:
//
//	Registers all /v1/kb/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Ask Endpoints:
//
//	POST /v1/kb/ask - Run the matching pipeline for a question
//	POST /v1/kb/escalate - Manually escalate a question to review
//
// Review Endpoints:
//
//	GET  /v1/kb/reviews - List open tickets
//	GET  /v1/kb/reviews/:id - Get one ticket
//	POST /v1/kb/reviews/:id/draft - Record a proposed answer
//	POST /v1/kb/reviews/:id/approve - Publish the answer, close the ticket
//	POST /v1/kb/reviews/:id/reject - Discard the ticket
//	GET  /v1/kb/reviews/stream - Websocket ticket event stream
//
// Health Endpoints:
//
//	GET  /v1/kb/health - Liveness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	kb := rg.Group("/kb")

	kb.POST("/ask", handlers.Ask)
	kb.POST("/escalate", handlers.Escalate)

	kb.GET("/reviews", handlers.ListReviews)
	kb.GET("/reviews/stream", handlers.StreamReviews)
	kb.GET("/reviews/:id", handlers.GetReview)
	kb.POST("/reviews/:id/draft", handlers.DraftReview)
	kb.POST("/reviews/:id/approve", handlers.ApproveReview)
	kb.POST("/reviews/:id/reject", handlers.RejectReview)

	kb.GET("/health", handlers.Health)
}
