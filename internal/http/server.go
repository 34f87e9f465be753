package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Clark-Hu/watchstats/internal/config"
	"github.com/Clark-Hu/watchstats/internal/metadata"
	"github.com/Clark-Hu/watchstats/internal/repository"
	"github.com/Clark-Hu/watchstats/internal/stats"
	"github.com/Clark-Hu/watchstats/internal/store"
)

// Recomputer rebuilds stored rollups.
type Recomputer interface {
	Recompute(ctx context.Context, userID string) error
	RecomputeAll(ctx context.Context) (stats.BatchReport, error)
}

// Refresher re-fetches entry metadata for a user.
type Refresher interface {
	Refresh(ctx context.Context, userID string) (metadata.Report, error)
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg       config.Config
	store     *store.Store
	repo      *repository.Repository
	engine    Recomputer
	refresher Refresher
	logger    *log.Logger
	router    chi.Router
	httpSrv   *http.Server

	// background work started by async triggers outlives the request but not the server
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the HTTP server with base middleware and routes. refresher may be
// nil when no metadata API key is configured.
func New(cfg config.Config, st *store.Store, repo *repository.Repository, engine Recomputer, refresher Refresher, logger *log.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if logger == nil {
		logger = log.Default()
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		store:     st,
		repo:      repo,
		engine:    engine,
		refresher: refresher,
		logger:    logger,
		router:    r,
		bgCtx:     bgCtx,
		bgCancel:  bgCancel,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Route("/stats", func(r chi.Router) {
		r.Get("/overview/{userID}/{mediaType}", s.handleGetOverview)
		r.Get("/other/{statKind}/{userID}/{mediaType}", s.handleListRanked)
		r.Patch("/update", s.handleUpdate)
		r.Patch("/update-all", s.handleUpdateAll)
		r.Post("/refresh-metadata/{userID}", s.handleRefreshMetadata)
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
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and cancels background recomputes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.bgCancel()
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.bgWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Printf("http: shutdown with background recomputes still running")
	}
	return err
}

// goBackground runs fn detached from the request on the server's lifetime context.
func (s *Server) goBackground(name string, fn func(ctx context.Context) error) {
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := fn(s.bgCtx); err != nil {
			s.logger.Printf("http: background %s failed: %v", name, err)
		}
	}()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
