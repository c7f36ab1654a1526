package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/rubbhub/internal/auth"
	"github.com/UkralStul/rubbhub/internal/response"
)

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Forum.Profile(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}

func (h *Handler) userEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Forum.UserEntries(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, entries)
}

func (h *Handler) followers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Forum.Followers(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, users)
}

func (h *Handler) following(w http.ResponseWriter, r *http.Request) {
	users, err := h.Forum.Following(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, users)
}

func (h *Handler) toggleFollow(w http.ResponseWriter, r *http.Request) {
	following, err := h.Forum.ToggleFollow(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"following": following})
}
