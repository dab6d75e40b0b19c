package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/middleware"
	"github.com/roomchat/internal/storage"
)

// TokenHandler отзывает access-токены (logout и служебный отзыв по jti).
type TokenHandler struct {
	store storage.Store
}

func NewTokenHandler(store storage.Store) *TokenHandler {
	return &TokenHandler{store: store}
}

// Logout отзывает токен текущего запроса: дальнейшие запросы с ним — 401.
func (h *TokenHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok || id.TokenID == "" {
		writeError(w, http.StatusBadRequest, "token has no id")
		return
	}
	if err := h.store.RevokeToken(r.Context(), id.TokenID, 0); err != nil {
		logger.Errorf("token revoke jti=%s: %v", middleware.MaskToken(id.TokenID), err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

type RevokeTokenRequest struct {
	JTI        string `json:"jti"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// Revoke — служебная ручка (/internal, закрыта InternalOnly): отзыв токена по jti,
// например при компрометации аккаунта.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.JTI == "" {
		writeError(w, http.StatusBadRequest, "jti required")
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := h.store.RevokeToken(r.Context(), req.JTI, ttl); err != nil {
		logger.Errorf("token revoke jti=%s: %v", middleware.MaskToken(req.JTI), err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
