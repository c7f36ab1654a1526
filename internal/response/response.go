package response

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	apperr "github.com/UkralStul/rubbhub/internal/errors"
)

type Error struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

var hideInternal atomic.Bool

// HideInternal включает продакшн-режим: тексты внутренних ошибок не уходят клиенту.
func HideInternal(hide bool) {
	hideInternal.Store(hide)
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// OK отвечает {"success": true} с дополнительными полями.
func OK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	JSON(w, http.StatusOK, body)
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, Error{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
			TraceID: middleware.GetReqID(ctx),
		},
	})
}

// Status сопоставляет категорию ошибки со статусом и кодом по умолчанию.
func Status(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case apperr.KindForbidden:
		return http.StatusForbidden, "FORBIDDEN"
	case apperr.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case apperr.KindConflict:
		return http.StatusConflict, "DUPLICATE_ERROR"
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests, "RATE_LIMIT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// FromError пишет конверт ошибки для err. Внутренние ошибки логируются
// целиком, а в продакшне клиент видит только общий текст.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Status(apperr.KindOf(err))
	if c := apperr.CodeOf(err); c != "" {
		code = c
	}

	message := apperr.Message(err)
	var details any
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		details = fields
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("internal error")
		if hideInternal.Load() {
			message = "internal server error"
		}
	}
	WriteError(r.Context(), w, status, code, message, details)
}
