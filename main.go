// Command pulse runs the social feed server: the REST data service and the
// push gateway on one listener.
//
// Startup order:
//  1. config and logger
//  2. database and migrations
//  3. repositories, hub, services, handlers
//  4. routes and HTTP server
//  5. graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akinalp/pulse/config"
	"github.com/akinalp/pulse/database"
	"github.com/akinalp/pulse/middleware"
	"github.com/akinalp/pulse/pkg/logger"
	"github.com/akinalp/pulse/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(logger.Config{Level: cfg.Log.Level, JSONOutput: cfg.Log.JSON})
	log := logger.WithComponent("main")
	log.Info().Int("port", cfg.Server.Port).Msg("pulse server starting")

	db, err := database.New(cfg.Database.Path, database.Migrations())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	repos := initRepositories(db.Conn)

	hub := ws.NewHub()
	svcs, limiters := initServices(db.Conn, repos, hub, cfg)
	defer limiters.Login.Stop()

	registerHubCallbacks(hub, svcs.Presence)
	go hub.Run()

	h := initHandlers(svcs, limiters, hub, cfg)
	authMw := middleware.NewAuthMiddleware(svcs.Auth, repos.User)
	defer authMw.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           initRoutes(h, authMw, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-done
	log.Info().Msg("shutting down")

	// Close the gateway first so clients see a close frame, then drain HTTP.
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	// The hub no longer calls the presence hooks; flush what they queued
	// before the database closes.
	svcs.Presence.Close()

	log.Info().Msg("server stopped")
}
