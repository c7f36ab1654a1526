package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/UkralStul/rubbhub/internal/auth"
	"github.com/UkralStul/rubbhub/internal/dataloader"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
	"github.com/UkralStul/rubbhub/internal/notify"
	"github.com/UkralStul/rubbhub/internal/response"
)

func NewRouter(h *Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   h.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(accessLog)
	router.Use(middleware.Recoverer)
	router.Use(c.Handler)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.FromError(w, r, apperr.NotFound("route not found"))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.WriteError(r.Context(), w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	optional := chi.Chain(h.Tokens.Optional, h.Tracker.Middleware)
	required := chi.Chain(h.Tokens.Require, h.Tracker.Middleware)

	router.Route("/api", func(r chi.Router) {
		r.Use(h.Limits.API.Middleware)
		r.Use(dataloader.Middleware(h.Likes))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(h.Limits.Auth.Middleware).Post("/register", h.register)
			r.With(h.Limits.Auth.Middleware).Post("/login", h.login)
			r.With(required...).Get("/me", h.me)
			r.With(required...).Put("/profile", h.updateProfile)
		})

		r.Route("/entries", func(r chi.Router) {
			r.With(optional...).Get("/", h.listEntries)
			r.With(optional...).Get("/{id}", h.getEntry)

			r.Group(func(r chi.Router) {
				r.Use(required...)
				r.With(h.Limits.Create.Middleware).Post("/", h.createEntry)
				r.Put("/{id}", h.updateEntry)
				r.Delete("/{id}", h.deleteEntry)
				r.Post("/{id}/like", h.toggleEntryLike)
				r.Post("/{id}/comments", h.addComment)
				r.Delete("/comments/{commentId}", h.deleteComment)
				r.Post("/comments/{commentId}/like", h.toggleCommentLike)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			// токен приходит в query, заголовки на websocket не ставятся
			r.Method(http.MethodGet, "/stream", notify.NewStreamHandler(h.Hub, h.Tokens.FromRequest, c.OriginAllowed))

			r.Group(func(r chi.Router) {
				r.Use(required...)
				r.Get("/", h.listNotifications)
				r.Get("/unread-count", h.unreadCount)
				r.Put("/read-all", h.markAllRead)
				r.Put("/{id}/read", h.markRead)
			})
		})

		r.Route("/users/{username}", func(r chi.Router) {
			r.With(optional...).Get("/", h.profile)
			r.With(optional...).Get("/entries", h.userEntries)
			r.With(required...).Get("/followers", h.followers)
			r.With(required...).Get("/following", h.following)
			r.With(required...).Post("/follow", h.toggleFollow)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(required...)
			r.Use(auth.RequireAdmin)
			r.Get("/users", h.listUsers)
			r.Put("/users/{id}/ban", h.setBanned)
			r.Get("/online-users", h.onlineUsers)
		})
	})

	return router
}
