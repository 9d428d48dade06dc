package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Clark-Hu/movie-catalog/internal/auth"
	"github.com/Clark-Hu/movie-catalog/internal/config"
	"github.com/Clark-Hu/movie-catalog/internal/events"
	"github.com/Clark-Hu/movie-catalog/internal/rating"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/store"
	"github.com/Clark-Hu/movie-catalog/internal/upload"
)

// Options carries the collaborators the handlers depend on. Nil fields get defaults
// derived from the config.
type Options struct {
	Recalculator *rating.Recalculator
	Issuer       *auth.Issuer
	Revocations  auth.Revocations
	Uploads      *upload.Storage
	Events       events.Publisher
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg         config.Config
	store       *store.Store
	repo        *repository.Repository
	recalc      *rating.Recalculator
	issuer      *auth.Issuer
	revocations auth.Revocations
	uploads     *upload.Storage
	events      events.Publisher
	logger      *log.Logger
	router      chi.Router
	httpSrv     *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, st *store.Store, repo *repository.Repository, opts Options, logger *log.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if logger == nil {
		logger = log.Default()
	}
	if opts.Recalculator == nil {
		opts.Recalculator = rating.NewRecalculator(repo, logger)
	}
	if opts.Issuer == nil {
		opts.Issuer = auth.NewIssuer(cfg.JWTSecret, time.Duration(cfg.SessionTTLHours)*time.Hour)
	}
	if opts.Revocations == nil {
		opts.Revocations = auth.NewMemoryRevocations()
	}
	if opts.Uploads == nil {
		opts.Uploads = upload.NewStorage(cfg.PublicDir, cfg.UploadMaxBytes)
	}
	if opts.Events == nil {
		opts.Events = events.Noop{}
	}

	s := &Server{
		cfg:         cfg,
		store:       st,
		repo:        repo,
		recalc:      opts.Recalculator,
		issuer:      opts.Issuer,
		revocations: opts.Revocations,
		uploads:     opts.Uploads,
		events:      opts.Events,
		logger:      logger,
		router:      r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)

	files := http.FileServer(http.Dir(s.cfg.PublicDir))
	s.router.Handle("/uploads/*", files)
	s.router.Handle("/static/*", files)

	s.router.Get("/", s.handleHome)
	s.router.Group(func(r chi.Router) {
		r.Use(s.redirectIfAuthenticated)
		r.Get("/login", s.handleLoginForm)
		r.Get("/signup", s.handleSignupForm)
		r.Get("/register", s.handleSignupForm)
	})
	s.router.Post("/signup", s.handleSignup)
	s.router.Post("/login", s.handleLogin)
	s.router.Get("/logout", s.handleLogout)

	s.router.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/profile", s.handleProfile)

		r.Route("/movies", func(r chi.Router) {
			r.Get("/", s.handleListMovies)
			r.Get("/add", s.handleAddMovieForm)
			r.Post("/add", s.handleCreateMovie)
			r.Get("/edit/{id}", s.handleEditMovieForm)
			r.Post("/edit/{id}", s.handleUpdateMovie)
			r.Get("/delete/{id}", s.handleDeleteMovie)
			r.Get("/{id}", s.handleMovieDetail)
		})
		r.Get("/api/movies/trending", s.handleTrendingMovies)

		r.Post("/api/reviews", s.handleSubmitReview)
		r.Get("/api/reviews/{movieId}", s.handleListReviews)
		r.With(s.requireAdmin).Delete("/api/reviews/{reviewId}", s.handleDeleteReview)

		r.Post("/api/watchlist/toggle", s.handleToggleWatchlist)
		r.Get("/my-watchlist", s.handleWatchlist)

		for _, people := range []*repository.PeopleRepository{s.repo.Actors, s.repo.Directors} {
			base := "/" + people.Kind().Plural()
			r.Get(base, s.handleListPeople(people))
			r.With(s.requireAdmin).Get(base+"/add", s.handleAddPersonForm(people))
			r.With(s.requireAdmin).Post(base+"/add", s.handleCreatePerson(people))
			r.Get(base+"/{id}", s.handlePersonDetail(people))
		}

		r.With(s.requireAdmin).Get("/admin/dashboard", s.handleDashboard)
	})
}

// Start boots the HTTP server asynchronously.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unreachable")
		return
	}
	resp := healthResponse{Status: "ok"}
	if stat := s.store.Stats(); stat != nil {
		resp.TotalConns = stat.TotalConns()
		resp.IdleConns = stat.IdleConns()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status     string `json:"status"`
	TotalConns int32  `json:"totalConns"`
	IdleConns  int32  `json:"idleConns"`
}
