package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"devpulse.app/pulse/internal/http/dto"
	"devpulse.app/pulse/internal/service"
)

// AnswerService answers one free-text question. Failures are encoded in
// the result's error kind, never as a Go error.
type AnswerService interface {
	Answer(ctx context.Context, text string) service.AnswerResult
}

type QueryHandler struct {
	service AnswerService
}

func NewQueryHandler(service AnswerService) *QueryHandler {
	return &QueryHandler{service: service}
}

// Query answers a question. A malformed body is the only 400; every
// pipeline outcome, faults included, is a 200 with an error_kind field
// so clients read one response shape.
func (h *QueryHandler) Query(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid query request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.service.Answer(ctx, req.Text)
	c.JSON(http.StatusOK, dto.FromAnswerResult(result))
}
