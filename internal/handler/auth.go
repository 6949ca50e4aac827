package handler

import (
	"net/http"

	"github.com/amiaygpt/chat-platform/internal/middleware"
	"github.com/amiaygpt/chat-platform/internal/model"
	"github.com/amiaygpt/chat-platform/internal/service"
	"github.com/amiaygpt/chat-platform/pkg/logger"
)

// AuthHandler handles account endpoints.
type AuthHandler struct {
	responder
	service *service.UserService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc *service.UserService, log *logger.Logger, exposeErrors bool) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: log, exposeErrors: exposeErrors},
		service:   svc,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := middleware.ValidateRegister(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := middleware.ValidateLogin(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Profile handles GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Profile(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

// UpdateProfile handles PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := middleware.ValidateProfile(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "profile updated",
		"user":    user,
	})
}

// ChangePassword handles PUT /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req model.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := middleware.ValidateChangePassword(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeMessage(w, "password changed")
}

// Preferences handles GET /api/auth/preferences
func (h *AuthHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.service.Preferences(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

// UpdatePreferences handles PUT /api/auth/preferences
func (h *AuthHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req model.UpdatePreferencesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := middleware.ValidatePreferences(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	prefs, err := h.service.UpdatePreferences(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}
