// Package server is the composition root: it opens the store, builds the
// services and handlers, and mounts them on a chi router.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB, media.Store, auth.Revoker
//	             → services (repository interfaces)
//	             → handlers (services)
//	             → routes
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/config"
	"github.com/sakif/foodgram/internal/handler"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/middleware"
	"github.com/sakif/foodgram/internal/model"
	sqliteRepo "github.com/sakif/foodgram/internal/repository/sqlite"
	"github.com/sakif/foodgram/internal/service"
)

// Server owns the HTTP router and every resource that must be released on
// shutdown.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	closers []func() error
}

// New opens the database, media store and revocation backend and wires the
// routes. On error everything opened so far is closed again.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.closers = append(s.closers, db.Close)

	if err := s.setupRoutes(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// OpenStore returns the media store selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.MediaConfig) (media.Store, error) {
	switch cfg.Backend {
	case config.MediaS3:
		return media.NewS3Store(ctx, media.S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		})
	case config.MediaLocal, "":
		return media.NewLocalStore(cfg.Dir, cfg.URLPrefix)
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

// openRevoker uses Redis when a URL is configured and the revoked_tokens
// table otherwise.
func (s *Server) openRevoker(ctx context.Context) (auth.Revoker, error) {
	if s.config.Redis.URL == "" {
		return auth.NewStoreRevoker(s.db), nil
	}
	revoker, client, err := auth.NewRedisRevoker(ctx, s.config.Redis.URL)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, client.Close)
	s.logger.Info("token revocation backed by redis")
	return revoker, nil
}

// setupRoutes builds the dependency graph and mounts every route.
//
// ROUTES (all JSON under /api):
//
//	POST   /api/auth/token/login/              login
//	POST   /api/auth/token/logout/             logout                      [auth]
//	GET    /api/auth/github/login|callback     GitHub sign-in (optional)
//	GET    /api/users/                         list users
//	POST   /api/users/                         register
//	GET    /api/users/me/                      own profile                 [auth]
//	PUT    /api/users/me/avatar/               set avatar                  [auth]
//	DELETE /api/users/me/avatar/               clear avatar                [auth]
//	POST   /api/users/set_password/            change password             [auth]
//	GET    /api/users/subscriptions/           followed authors            [auth]
//	GET    /api/users/{id}/                    profile
//	POST   /api/users/{id}/subscribe/          follow                      [auth]
//	DELETE /api/users/{id}/subscribe/          unfollow                    [auth]
//	GET    /api/ingredients/                   prefix search
//	GET    /api/ingredients/{id}/              one ingredient
//	GET    /api/recipes/                       list
//	POST   /api/recipes/                       create                      [auth]
//	GET    /api/recipes/download_shopping_cart/                            [auth]
//	GET    /api/recipes/{id}/                  detail
//	PATCH  /api/recipes/{id}/                  update (author or staff)    [auth]
//	DELETE /api/recipes/{id}/                  delete (author or staff)    [auth]
//	GET    /api/recipes/{id}/get-link/         short link
//	POST   /api/recipes/{id}/favorite|shopping_cart/                       [auth]
//	DELETE /api/recipes/{id}/favorite|shopping_cart/                       [auth]
//	GET    /s/{id}                             short link redirect
//	GET    /media/*                            local media files
//	GET    /healthz                            liveness + database ping
//
// MIDDLEWARE ORDER: request id, real IP, logging, panic recovery, CORS,
// trailing-slash cleanup, then per-group authentication.
func (s *Server) setupRoutes(ctx context.Context) error {
	cfg := s.config

	store, err := OpenStore(ctx, cfg.Media)
	if err != nil {
		return fmt.Errorf("opening media store: %w", err)
	}
	revoker, err := s.openRevoker(ctx)
	if err != nil {
		return fmt.Errorf("opening token revocation: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration)
	if err != nil {
		return err
	}
	authenticator := auth.NewAuthenticator(tokens, revoker, s.logger)

	// === Services ===
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), revoker, s.logger)
	userService := service.NewUserService(s.db, s.db, s.db, store, s.logger)
	ingredientService, err := service.NewIngredientService(s.db,
		cfg.Cache.IngredientSize, cfg.Cache.IngredientTTL.Duration, s.logger)
	if err != nil {
		return err
	}
	recipeService := service.NewRecipeService(s.db, s.db, s.db, s.db, s.db, store, cfg.PublicBaseURL, s.logger)
	markerService := service.NewMarkerService(s.db, s.db, store, s.logger)
	subscriptionService := service.NewSubscriptionService(s.db, s.db, s.db, store, s.logger)

	// === Handlers ===
	pages := handler.Paginator{PageSize: cfg.Pagination.PageSize, MaxPageSize: cfg.Pagination.MaxPageSize}

	var github handler.GitHubProvider
	if cfg.GitHub.Enabled() {
		callback := cfg.GitHub.CallbackURL
		if callback == "" {
			callback = strings.TrimSuffix(cfg.PublicBaseURL, "/") + "/api/auth/github/callback"
		}
		github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, callback)
	}
	authHandler := handler.NewAuthHandler(authService, github, cfg.Auth.TokenTTL.Duration, s.logger)
	userHandler := handler.NewUserHandler(userService, authService, pages, s.logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, pages, s.logger)
	ingredientHandler := handler.NewIngredientHandler(ingredientService, s.logger)
	recipeHandler := handler.NewRecipeHandler(recipeService, markerService, pages, s.logger)

	// === Global middleware ===
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	// Routes are registered without the trailing slash; clients may send it.
	r.Use(chimiddleware.StripSlashes)

	r.Get("/healthz", s.handleHealth)
	r.With(authenticator.OptionalAuth).Get("/s/{id}", recipeHandler.HandleShortLink)

	if local, ok := store.(*media.LocalStore); ok && strings.HasPrefix(cfg.Media.URLPrefix, "/") {
		prefix := "/" + strings.Trim(cfg.Media.URLPrefix, "/") + "/"
		fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(local.Dir())))
		r.Handle(prefix+"*", fileServer)
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(a chi.Router) {
			a.Post("/token/login", authHandler.HandleLogin)
			a.With(authenticator.RequireAuth).Post("/token/logout", authHandler.HandleLogout)
			a.Get("/github/login", authHandler.HandleGitHubLogin)
			a.Get("/github/callback", authHandler.HandleGitHubCallback)
		})

		api.Route("/users", func(u chi.Router) {
			u.Use(authenticator.OptionalAuth)
			u.Get("/", userHandler.HandleList)
			u.Post("/", userHandler.HandleRegister)
			u.Get("/{id}", userHandler.HandleGet)

			u.Group(func(p chi.Router) {
				p.Use(authenticator.RequireAuth)
				p.Get("/me", userHandler.HandleMe)
				p.Put("/me/avatar", userHandler.HandleSetAvatar)
				p.Delete("/me/avatar", userHandler.HandleDeleteAvatar)
				p.Post("/set_password", userHandler.HandleSetPassword)
				p.Get("/subscriptions", subscriptionHandler.HandleList)
				p.Post("/{id}/subscribe", subscriptionHandler.HandleSubscribe)
				p.Delete("/{id}/subscribe", subscriptionHandler.HandleUnsubscribe)
			})
		})

		api.Route("/ingredients", func(i chi.Router) {
			i.Get("/", ingredientHandler.HandleSearch)
			i.Get("/{id}", ingredientHandler.HandleGet)
		})

		api.Route("/recipes", func(rc chi.Router) {
			rc.Use(authenticator.OptionalAuth)
			rc.Get("/", recipeHandler.HandleList)
			rc.Get("/{id}", recipeHandler.HandleGet)
			rc.Get("/{id}/get-link", recipeHandler.HandleGetLink)

			rc.Group(func(p chi.Router) {
				p.Use(authenticator.RequireAuth)
				p.Post("/", recipeHandler.HandleCreate)
				p.Get("/download_shopping_cart", recipeHandler.HandleDownloadShoppingCart)
				p.Patch("/{id}", recipeHandler.HandleUpdate)
				p.Delete("/{id}", recipeHandler.HandleDelete)
				p.Post("/{id}/favorite", recipeHandler.HandleAddMarker(model.MarkerFavorite))
				p.Delete("/{id}/favorite", recipeHandler.HandleRemoveMarker(model.MarkerFavorite))
				p.Post("/{id}/shopping_cart", recipeHandler.HandleAddMarker(model.MarkerShoppingCart))
				p.Delete("/{id}/shopping_cart", recipeHandler.HandleRemoveMarker(model.MarkerShoppingCart))
			})
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and any Redis client, in reverse order of
// opening.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes every resource.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
		// Recipe bodies carry base64 images, so reads get more time than
		// a plain JSON API would need.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.PublicBaseURL),
			slog.String("database", s.config.DBPath),
			slog.String("media", s.config.Media.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
