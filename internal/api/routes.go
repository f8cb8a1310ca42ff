package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(m.Compress)
	r.Use(m.Timeout(15 * time.Second))
	r.Use(middleware.Heartbeat("/ping"))

	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))
	r.Use(m.CurrentViewer)

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	// Identity
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register/", h.Register)
		r.Post("/login/", h.Login)
	})

	// Listings
	r.Get("/", h.Index)
	r.Get("/category/{slug}/", h.CategoryPosts)
	r.Get("/profile/{username}/", h.Profile)
	r.Post("/edit_profile/", h.EditProfile)

	// Posts and comments
	r.Route("/posts", func(r chi.Router) {
		r.Post("/create/", h.CreatePost)
		r.Get("/{postID}/", h.PostDetail)
		r.Post("/{postID}/edit/", h.EditPost)
		r.Post("/{postID}/delete/", h.DeletePost)
		r.Post("/{postID}/comment/", h.AddComment)
		r.Post("/{postID}/edit_comment/{commentID}/", h.EditComment)
		r.Post("/{postID}/delete_comment/{commentID}/", h.DeleteComment)
	})

	return r
}
