package main

import (
	"github.com/akinalp/pulse/config"
	"github.com/akinalp/pulse/handlers"
	"github.com/akinalp/pulse/ws"
)

// Handlers holds the HTTP endpoints.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Post     *handlers.PostHandler
	Comment  *handlers.CommentHandler
	Presence *handlers.PresenceHandler
	Health   *handlers.HealthHandler
	WS       *ws.Handler
}

func initHandlers(svcs *Services, limiters *RateLimiters, hub *ws.Hub, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:     handlers.NewAuthHandler(svcs.Auth, limiters.Login),
		Post:     handlers.NewPostHandler(svcs.Post),
		Comment:  handlers.NewCommentHandler(svcs.Comment),
		Presence: handlers.NewPresenceHandler(svcs.Presence),
		Health:   handlers.NewHealthHandler(hub, ws.GroupFeed),
		WS:       ws.NewHandler(hub, svcs.Auth, cfg.Gateway.SendBufferSize),
	}
}
