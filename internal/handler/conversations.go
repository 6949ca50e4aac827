// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/amiaygpt/chat-platform/internal/middleware"
	"github.com/amiaygpt/chat-platform/internal/model"
	"github.com/amiaygpt/chat-platform/internal/service"
	"github.com/amiaygpt/chat-platform/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	responder
	service *service.ConversationService
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger, exposeErrors bool) *ConversationHandler {
	return &ConversationHandler{
		responder: responder{logger: log, exposeErrors: exposeErrors},
		service:   svc,
	}
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		h.writeError(w, r, err)
		return
	}

	conv, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := model.ListConversationsQuery{Archived: q.Get("archived") == "true"}

	if p := q.Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			query.Page = parsed
		}
	}
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			query.Limit = parsed
		}
	}

	resp, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	messages := conv.Messages
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, struct {
		*model.Conversation
		Messages []model.Message `json:"messages"`
	}{conv, messages})
}

// Rename handles PUT /api/conversations/{id}/title
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req model.RenameConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.Rename(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Title); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeMessage(w, "title updated")
}

// Archive handles PUT /api/conversations/{id}/archive
func (h *ConversationHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req model.ArchiveConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	archived := req.Archived == nil || *req.Archived
	if err := h.service.SetArchived(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), archived); err != nil {
		h.writeError(w, r, err)
		return
	}

	if archived {
		writeMessage(w, "conversation archived")
		return
	}
	writeMessage(w, "conversation unarchived")
}

// Delete handles DELETE /api/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeMessage(w, "conversation deleted")
}
