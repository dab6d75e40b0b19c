package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/logger"
)

// apiResponse — единый конверт ответа: {status, message?, data?}.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, apiResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiResponse{Status: "error", Message: msg})
}

// writeServiceError переводит доменные ошибки в HTTP-статусы.
// Детали внутренних ошибок клиенту не отдаются.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrOwnerCannotLeave), errors.Is(err, chat.ErrCannotRemoveOwner):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrAccessDenied), errors.Is(err, chat.ErrNotAuthorized), errors.Is(err, chat.ErrNotParticipant):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrRoomNotFound), errors.Is(err, chat.ErrMessageNotFound), errors.Is(err, chat.ErrParticipantNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrRoomFull), errors.Is(err, chat.ErrAlreadyJoined):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Errorf("handler internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func urlParamInt64(r *http.Request, key string) (int64, bool) {
	v := chi.URLParam(r, key)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
