// Package server is the composition root: it wires the store into
// services and handlers, defines the routes and runs the HTTP server with
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/auth"
	"github.com/sakif/videotube/internal/config"
	"github.com/sakif/videotube/internal/handler"
	"github.com/sakif/videotube/internal/middleware"
	"github.com/sakif/videotube/internal/service"
	"github.com/sakif/videotube/internal/store"
)

// Server owns the router and the store. The store is closed when Start
// returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	store  *store.Store
	logger logrus.FieldLogger
}

// New wires every dependency. Passwords is optional; nil means bcrypt's
// production cost.
func New(cfg *config.Config, st *store.Store, passwords *auth.PasswordService, logger logrus.FieldLogger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	if passwords == nil {
		passwords = auth.NewPasswordService()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		store:  st,
		logger: logger,
	}
	s.setupRoutes(tokens, passwords)
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes registers:
//
//	GET    /healthz
//	POST   /api/auth/register | /login | /logout
//	GET    /api/auth/me                              (auth)
//	GET    /api/{collection}[/{id}]
//	POST   /api/{collection}                         (auth)
//	PATCH  /api/{collection}/{id}                    (auth)
//	DELETE /api/{collection}/{id}                    (auth)
//	POST   /api/likes/toggle/{kind}/{id}             (auth)
//	POST   /api/subscriptions/toggle/{channelId}     (auth)
//
// Users are read-only here; accounts are created through /api/auth.
func (s *Server) setupRoutes(tokens *auth.TokenService, passwords *auth.PasswordService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	requireAuth := auth.RequireAuth(tokens)

	authService := service.NewAuthService(s.store.Users, tokens, passwords, s.logger)
	engagementService := service.NewEngagementService(s.store, s.logger)

	authHandler := handler.NewAuthHandler(authService, tokens.TTL(), s.logger)
	engagementHandler := handler.NewEngagementHandler(engagementService, s.logger)

	s.router.Get("/healthz", handler.HandleHealth(s.store, s.logger))

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(requireAuth).Get("/me", authHandler.HandleMe)
		})

		mountResource(r, handler.NewResource(s.store.Users, "", s.logger), requireAuth, true, nil)
		mountResource(r, handler.NewResource(s.store.Videos, "owner", s.logger), requireAuth, false, nil)
		mountResource(r, handler.NewResource(s.store.Comments, "owner", s.logger), requireAuth, false, nil)
		mountResource(r, handler.NewResource(s.store.Tweets, "owner", s.logger), requireAuth, false, nil)
		mountResource(r, handler.NewResource(s.store.Playlists, "owner", s.logger), requireAuth, false, nil)
		mountResource(r, handler.NewResource(s.store.Likes, "likedBy", s.logger), requireAuth, false,
			func(r chi.Router) {
				r.With(requireAuth).Post("/toggle/{kind}/{id}", engagementHandler.HandleToggleLike)
			})
		mountResource(r, handler.NewResource(s.store.Subscriptions, "subscriber", s.logger), requireAuth, false,
			func(r chi.Router) {
				r.With(requireAuth).Post("/toggle/{channelId}", engagementHandler.HandleToggleSubscription)
			})
	})
}

// resource is what mountResource needs from a *handler.Resource[T].
type resource interface {
	Name() string
	HandleList(http.ResponseWriter, *http.Request)
	HandleGet(http.ResponseWriter, *http.Request)
	HandleCreate(http.ResponseWriter, *http.Request)
	HandleUpdate(http.ResponseWriter, *http.Request)
	HandleDelete(http.ResponseWriter, *http.Request)
}

func mountResource(r chi.Router, h resource, requireAuth func(http.Handler) http.Handler, readOnly bool, extra func(chi.Router)) {
	r.Route("/"+h.Name(), func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		if !readOnly {
			r.With(requireAuth).Post("/", h.HandleCreate)
			r.With(requireAuth).Patch("/{id}", h.HandleUpdate)
			r.With(requireAuth).Delete("/{id}", h.HandleDelete)
		}
		if extra != nil {
			extra(r)
		}
	})
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to the configured shutdown timeout and closes the store.
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("failed to close store")
		}
	}()

	srv := &http.Server{
		Addr:         s.config.Server.Address(),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"database": s.config.Database.Path,
			"cache":    s.config.Redis.Enabled,
		}).Info("server starting")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.WithField("signal", sig.String()).Info("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
