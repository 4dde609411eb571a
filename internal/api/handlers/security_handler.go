package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tradersage/bastion/internal/aegis"
	"github.com/tradersage/bastion/internal/api/middleware"
	"github.com/tradersage/bastion/internal/services"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// Reputation penalty applied when a client's submitted input fails
// validation. Repeat offenders tighten their own rate limits.
const badInputReputationPenalty = 10

// SecurityHandler exposes the engine's report, the audit trail and the
// validation endpoint.
type SecurityHandler struct {
	engine *aegis.Engine
	events *services.EventService
}

// NewSecurityHandler creates a new SecurityHandler.
func NewSecurityHandler(engine *aegis.Engine, events *services.EventService) *SecurityHandler {
	return &SecurityHandler{engine: engine, events: events}
}

// GetReport returns the engine's point-in-time activity summary.
func (h *SecurityHandler) GetReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Report())
}

// ListEvents returns recent audit events, optionally filtered by source.
func (h *SecurityHandler) ListEvents(c *gin.Context) {
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if n > maxEventLimit {
			n = maxEventLimit
		}
		limit = n
	}

	var (
		events interface{}
		err    error
	)
	if source := c.Query("source"); source != "" {
		events, err = h.events.ListBySource(source, limit)
	} else {
		events, err = h.events.List(limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type validateRequest struct {
	Input    string `json:"input"`
	Context  string `json:"context"`
	Strict   bool   `json:"strict"`
	Sanitize bool   `json:"sanitize"`
}

// ValidateInput runs the context-aware validation pipeline on a payload and
// returns the full result, sanitized form included.
func (h *SecurityHandler) ValidateInput(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res := h.engine.ValidateInput(req.Input, aegis.ParseContext(req.Context), aegis.ValidateOptions{
		Strict:   req.Strict,
		Sanitize: req.Sanitize,
	})
	if !res.IsValid && res.RiskScore > 0 {
		if identifier, ok := c.Get(middleware.ClientIdentifierKey); ok {
			if id, ok := identifier.(string); ok && id != "" {
				h.engine.Penalize(id, badInputReputationPenalty, aegis.ViolationBadInput)
			}
		}
	}
	c.JSON(http.StatusOK, res)
}
