package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"portal_sync/internal/domain"
	"portal_sync/internal/feed"
)

// FeedRenderer synthesizes a portal feed from the catalog.
type FeedRenderer interface {
	Render(ctx context.Context, slug, token string) (*feed.Output, error)
}

// Drainer processes due jobs from the queue.
type Drainer interface {
	Drain(ctx context.Context, batchSize int) (*domain.DispatchStats, error)
}

// JobEnqueuer records push-integration intent for one listing.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, portalID, listingID int64, action domain.JobAction) (*domain.Job, error)
}

// ConnectivityTester validates a portal's credentials.
type ConnectivityTester interface {
	Test(ctx context.Context, portalID int64) (*domain.ConnectivityResult, error)
}

// TokenRotator swaps a portal's feed capability token.
type TokenRotator interface {
	RotateToken(ctx context.Context, portalID int64) (string, error)
}

// PublicationLister backs the per-portal admin view.
type PublicationLister interface {
	ListByPortal(ctx context.Context, portalID int64) ([]domain.Publication, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New wires the HTTP surface: the public (token-protected) feed endpoint
// and the admin API. Admin authentication sits in front of this service
// at the platform gateway.
func New(
	port int,
	feeds FeedRenderer,
	drainer Drainer,
	enqueuer JobEnqueuer,
	tester ConnectivityTester,
	rotator TokenRotator,
	pubs PublicationLister,
	defaultBatchSize int,
	logger *slog.Logger,
) *Server {
	h := &handlers{
		feeds:            feeds,
		drainer:          drainer,
		enqueuer:         enqueuer,
		tester:           tester,
		rotator:          rotator,
		pubs:             pubs,
		defaultBatchSize: defaultBatchSize,
		logger:           logger,
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(h, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func newRouter(h *handlers, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/feed", h.renderFeed)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/queue/drain", h.drainQueue)
		r.Route("/portals/{portalID}", func(r chi.Router) {
			r.Post("/listings/{listingID}/jobs", h.enqueueJob)
			r.Post("/test", h.testPortal)
			r.Post("/token/rotate", h.rotateToken)
			r.Get("/publications", h.listPublications)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request with status and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
