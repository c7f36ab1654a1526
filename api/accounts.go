package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/rubbhub/internal/auth"
	"github.com/UkralStul/rubbhub/internal/forum"
	"github.com/UkralStul/rubbhub/internal/response"
)

// === Auth ===

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}
	if err := h.Auth.Register(r.Context(), in); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"message": "registration successful"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}
	res, err := h.Auth.Login(r.Context(), in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"token": res.Token, "user": res.User})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.Me(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"user": u})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in auth.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}
	if err := h.Auth.UpdateProfile(r.Context(), auth.IdentityFrom(r.Context()), in); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"message": "profile updated"})
}

// === Admin ===

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Forum.ListUsers(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"data": users})
}

type banInput struct {
	IsBanned bool `json:"is_banned"`
}

func (h *Handler) setBanned(w http.ResponseWriter, r *http.Request) {
	var in banInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}
	if err := h.Forum.SetBanned(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"), in.IsBanned); err != nil {
		response.FromError(w, r, err)
		return
	}
	msg := "user unbanned"
	if in.IsBanned {
		msg = "user banned"
	}
	response.OK(w, map[string]any{"message": msg})
}

func (h *Handler) onlineUsers(w http.ResponseWriter, r *http.Request) {
	window := queryInt(r, "window")
	users, err := h.Forum.OnlineUsers(r.Context(), window)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if window <= 0 {
		window = forum.DefaultOnlineWindowMinutes
	}
	response.OK(w, map[string]any{"data": users, "count": len(users), "window": window})
}
