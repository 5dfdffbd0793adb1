package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Clark-Hu/cinestream/internal/catalog"
	"github.com/Clark-Hu/cinestream/internal/config"
	"github.com/Clark-Hu/cinestream/internal/domain"
	"github.com/Clark-Hu/cinestream/internal/metrics"
	"github.com/Clark-Hu/cinestream/internal/tmdb"
)

// Catalog is the movie service the handlers call.
type Catalog interface {
	List(ctx context.Context, filter catalog.ListFilter) (catalog.ListResult, error)
	Get(ctx context.Context, id string) (domain.Movie, error)
	Create(ctx context.Context, sessionToken string, input catalog.CreateMovieInput) (domain.Movie, error)
	Delete(ctx context.Context, sessionToken, id string) error
	Genres() []string
}

// Authenticator checks admin credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (domain.Identity, error)
}

// SessionManager issues session tokens and manages the cookie carrying them.
type SessionManager interface {
	Issue(identity domain.Identity) (string, time.Time, error)
	Validate(token string) (domain.Identity, error)
	SetCookie(w http.ResponseWriter, token string, expiresAt time.Time)
	ClearCookie(w http.ResponseWriter)
}

// HealthChecker reports database reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps bundles the collaborators the server routes to.
type Deps struct {
	Store    HealthChecker
	Catalog  Catalog
	Auth     Authenticator
	Sessions SessionManager
	TMDB     tmdb.Client
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg          config.Config
	deps         Deps
	logger       zerolog.Logger
	router       chi.Router
	httpSrv      *http.Server
	loginLimiter *ipLimiter
	startedAt    time.Time
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(handlers.CORS(
			handlers.AllowedOrigins(cfg.CORSAllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
			handlers.AllowCredentials(),
		))
	}

	s := &Server{
		cfg:          cfg,
		deps:         deps,
		logger:       logger,
		router:       r,
		loginLimiter: newIPLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst),
		startedAt:    time.Now(),
	}
	s.registerRoutes()
	return s
}

// requestIDLogger tags the request logger with chi's request id.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}
	s.router.Get("/genres", s.handleGenres)
	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.Get("/{id}", s.handleGetMovie)
	})
	s.router.Route("/admin", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.With(s.loginLimiter.middleware(s.respondError)).Post("/", s.handleLogin)
			r.Get("/", s.handleCurrentSession)
			r.Delete("/", s.handleLogout)
		})
		r.Route("/movies", func(r chi.Router) {
			r.Post("/", s.handleCreateMovie)
			r.Delete("/", s.handleDeleteMovie)
		})
		r.Get("/tmdb/search", s.handleTMDBSearch)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server and blocks until ctx is cancelled or the listener fails.
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
		s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
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

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Database: "up",
		Uptime:   time.Since(s.startedAt).Truncate(time.Second).String(),
	}
	status := http.StatusOK
	if s.deps.Store == nil {
		resp.Status, resp.Database = "degraded", "unconfigured"
		status = http.StatusServiceUnavailable
	} else if err := s.deps.Store.HealthCheck(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("health check failed")
		resp.Status, resp.Database = "degraded", "down"
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string][]string{"genres": s.deps.Catalog.Genres()})
}
