package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amiaygpt/chat-platform/internal/middleware"
	"github.com/amiaygpt/chat-platform/internal/model"
	"github.com/amiaygpt/chat-platform/internal/service"
	"github.com/amiaygpt/chat-platform/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	responder
	service *service.MessageService
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.MessageService, log *logger.Logger, exposeErrors bool) *MessageHandler {
	return &MessageHandler{
		responder: responder{logger: log, exposeErrors: exposeErrors},
		service:   svc,
	}
}

// Send handles POST /api/conversations/{id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.service.Send(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
