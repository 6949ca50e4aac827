package handler

import (
	"net/http"
	"strconv"

	"github.com/amiaygpt/chat-platform/internal/middleware"
	"github.com/amiaygpt/chat-platform/internal/service"
	"github.com/amiaygpt/chat-platform/pkg/logger"
)

// UsageHandler serves usage statistics.
type UsageHandler struct {
	responder
	service *service.UsageService
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(svc *service.UsageService, log *logger.Logger, exposeErrors bool) *UsageHandler {
	return &UsageHandler{
		responder: responder{logger: log, exposeErrors: exposeErrors},
		service:   svc,
	}
}

// Get handles GET /api/usage?days=N
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	resp, err := h.service.Summary(r.Context(), middleware.GetUserID(r.Context()), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
