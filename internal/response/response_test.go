package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/UkralStul/rubbhub/internal/errors"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Error {
	var body Error
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestFromError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperr.NotFound("entry not found"), http.StatusNotFound, "NOT_FOUND"},
		{"explicit code", apperr.New(apperr.KindConflict, "EMAIL_EXISTS", "email already registered"), http.StatusConflict, "EMAIL_EXISTS"},
		{"forbidden", apperr.Forbidden("nope"), http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", apperr.RateLimited("slow down"), http.StatusTooManyRequests, "RATE_LIMIT"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
			assert.Equal(t, tc.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tc.wantCode, body.Error.Code)
		})
	}
}

func TestFromError_ValidationDetails(t *testing.T) {
	err := apperr.WrapValidation(apperr.FieldErrors{{Field: "title", Message: "required"}}, "request validation failed")
	rec := httptest.NewRecorder()
	FromError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t,
		`{"success":false,"error":{"code":"VALIDATION_ERROR","message":"request validation failed","details":[{"field":"title","message":"required"}]}}`,
		rec.Body.String())
}

func TestFromError_HidesInternalInProduction(t *testing.T) {
	HideInternal(true)
	defer HideInternal(false)

	rec := httptest.NewRecorder()
	FromError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: connection refused"))
	body := decode(t, rec)
	assert.Equal(t, "internal server error", body.Error.Message)
}
