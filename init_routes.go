package main

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/akinalp/pulse/middleware"
	"github.com/akinalp/pulse/pkg/metrics"
)

// initRoutes builds the full HTTP handler: API routes behind the request
// instrumentation, the gateway endpoint, health and metrics, all behind CORS.
//
// The gateway is mounted outside Instrument so the upgrade sees the raw
// ResponseWriter.
func initRoutes(h *Handlers, authMw *middleware.AuthMiddleware, corsOrigins []string) http.Handler {
	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(handler)
	}
	optional := func(handler http.HandlerFunc) http.Handler {
		return authMw.Optional(handler)
	}

	api := http.NewServeMux()

	// Auth
	api.HandleFunc("POST /api/auth/register", h.Auth.Register)
	api.HandleFunc("POST /api/auth/login", h.Auth.Login)
	api.Handle("GET /api/auth/me", auth(h.Auth.Me))

	// Posts
	api.Handle("GET /api/posts", optional(h.Post.List))
	api.Handle("POST /api/posts", auth(h.Post.Create))
	api.Handle("POST /api/posts/{id}/like", auth(h.Post.ToggleLike))
	api.Handle("DELETE /api/posts/{id}", auth(h.Post.Delete))

	// Comments
	api.HandleFunc("GET /api/comments/{postId}", h.Comment.List)
	api.Handle("POST /api/comments/{postId}", auth(h.Comment.Create))
	api.Handle("DELETE /api/comments/{postId}/{commentId}", auth(h.Comment.Delete))

	// Presence
	api.HandleFunc("GET /api/users/online", h.Presence.Online)
	api.Handle("POST /api/users/status", auth(h.Presence.ReportStatus))

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.Instrument(api))
	mux.HandleFunc("GET /health", h.Health.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// The gateway authenticates its own handshake: browsers cannot set
	// headers on an upgrade, so the token may come in the query string.
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)

	c := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(mux)
}
