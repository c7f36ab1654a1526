package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/UkralStul/rubbhub/internal/auth"
	"github.com/UkralStul/rubbhub/internal/forum"
	"github.com/UkralStul/rubbhub/internal/response"
)

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	res, err := h.Forum.ListEntries(r.Context(), auth.IdentityFrom(r.Context()), page, size)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Forum.GetEntry(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, entry)
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var in forum.EntryInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}
	id, err := h.Forum.CreateEntry(r.Context(), auth.IdentityFrom(r.Context()), in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"id": id})
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	var in forum.EntryInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}
	if err := h.Forum.UpdateEntry(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"), in); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, nil)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.Forum.DeleteEntry(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, nil)
}

func (h *Handler) toggleEntryLike(w http.ResponseWriter, r *http.Request) {
	liked, err := h.Forum.ToggleEntryLike(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

type commentInput struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId"`
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	var in commentInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.FromError(w, r, err)
		return
	}
	id, err := h.Forum.AddComment(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"), in.Content, in.ParentID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"id": id})
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.Forum.DeleteComment(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "commentId")); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.OK(w, nil)
}

func (h *Handler) toggleCommentLike(w http.ResponseWriter, r *http.Request) {
	liked, err := h.Forum.ToggleCommentLike(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "commentId"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"liked": liked})
}
