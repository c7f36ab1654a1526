package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/rubbhub/internal/auth"
	"github.com/UkralStul/rubbhub/internal/response"
)

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	res, err := h.Forum.ListNotifications(r.Context(), auth.IdentityFrom(r.Context()), page, size)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Forum.UnreadCount(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Forum.MarkRead(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, nil)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Forum.MarkAllRead(r.Context(), auth.IdentityFrom(r.Context())); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, nil)
}
