package main

import (
	"database/sql"

	"github.com/akinalp/pulse/config"
	"github.com/akinalp/pulse/pkg/ratelimit"
	"github.com/akinalp/pulse/services"
	"github.com/akinalp/pulse/ws"
)

// Services holds the business layer.
type Services struct {
	Auth     services.AuthService
	Post     services.PostService
	Comment  services.CommentService
	Presence services.PresenceService
}

// RateLimiters holds the request throttles. Stop them on shutdown.
type RateLimiters struct {
	Login *ratelimit.LoginLimiter
}

// initServices builds the services. The services that need a transaction get
// the raw pool; everything else goes through repositories.
func initServices(db *sql.DB, repos *Repositories, hub ws.EventPublisher, cfg *config.Config) (*Services, *RateLimiters) {
	svcs := &Services{
		Auth:     services.NewAuthService(repos.User, cfg.JWT.Secret, cfg.JWT.TokenTTL()),
		Post:     services.NewPostService(db, repos.Post),
		Comment:  services.NewCommentService(db, repos.Post, repos.Comment),
		Presence: services.NewPresenceService(repos.User, hub, cfg.Gateway.PresencePush),
	}

	limiters := &RateLimiters{
		Login: ratelimit.NewLoginLimiter(cfg.RateLimit.LoginAttempts, cfg.RateLimit.LoginWindow),
	}

	return svcs, limiters
}
