package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"talkdoc/internal/app/chat"
	"talkdoc/internal/domain/rag"
	"talkdoc/internal/domain/retrieval"
	applog "talkdoc/internal/platform/log"
)

// APIResponse 统一 JSON 响应
type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeMessage(w, status, "ok", data)
}

func writeMessage(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&APIResponse{
		Code:    status,
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&APIResponse{
		Code:    status,
		Message: message,
	})
}

// writeServiceError 领域错误 -> HTTP 状态码
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		applog.Error("[API] "+op+" failed", "error", err)
		writeError(w, status, op+" failed")
		return
	}
	applog.Warn("[API] "+op+" rejected", "status", status, "error", err)
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, retrieval.ErrDuplicateFilename):
		return http.StatusConflict
	case errors.Is(err, retrieval.ErrNotFound), errors.Is(err, chat.ErrNoChunks):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, chat.ErrEmptyQuery),
		errors.Is(err, chat.ErrInvalidFilename),
		errors.Is(err, rag.ErrUnsupportedFileType),
		errors.Is(err, rag.ErrEmptyDocument),
		errors.Is(err, rag.ErrInvalidSummaryType):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
