// Package server exposes the character collection over HTTP as JSON
// snapshots of the query cache.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/character-catalog/pkg/browse"
	"github.com/Sternrassler/character-catalog/pkg/logging"
	"github.com/Sternrassler/character-catalog/pkg/metrics"
)

// HeaderSlot names the display slot a request belongs to. Requests of the
// same slot share a browse.Session, so moving between pages reports the
// previous page as placeholder while the next one loads.
const HeaderSlot = "X-Catalog-Slot"

// Pinger checks that the catalog is reachable. *catalog.Client implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the server.
type Options struct {
	// WaitTimeout bounds how long a request waits for a fetch to resolve.
	WaitTimeout time.Duration

	// MaxSlots caps the number of named display slots; requests for new slots
	// beyond it get a one-off session.
	MaxSlots int

	// Pinger backs /readyz. Nil reports ready.
	Pinger Pinger
}

// DefaultOptions returns the default server options.
func DefaultOptions() Options {
	return Options{
		WaitTimeout: 10 * time.Second,
		MaxSlots:    256,
	}
}

// Server serves the collection.
type Server struct {
	collection *browse.Collection
	opts       Options
	slots      *xsync.MapOf[string, *browse.Session]
	logger     zerolog.Logger
}

// New creates a server over collection.
func New(collection *browse.Collection, opts Options) *Server {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.MaxSlots < 0 {
		opts.MaxSlots = 0
	}
	return &Server{
		collection: collection,
		opts:       opts,
		slots:      xsync.NewMapOf[string, *browse.Session](),
		logger:     logging.NewLogger("server"),
	}
}

// Router constructs the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/characters", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/{id}", s.handleCharacter)
	})
	return r
}

// session returns the session of the request's slot. The release function
// closes one-off sessions and must be called when the request is done.
func (s *Server) session(r *http.Request) (*browse.Session, func()) {
	slot := r.Header.Get(HeaderSlot)
	if slot != "" {
		if sess, ok := s.slots.Load(slot); ok {
			return sess, func() {}
		}
		if s.slots.Size() < s.opts.MaxSlots {
			sess, _ := s.slots.LoadOrCompute(slot, func() *browse.Session {
				return browse.NewSession(s.collection)
			})
			return sess, func() {}
		}
		s.logger.Warn().Str("slot", slot).Int("max_slots", s.opts.MaxSlots).Msg("Slot limit reached - using one-off session")
	}

	sess := browse.NewSession(s.collection)
	return sess, sess.Close
}

// Close detaches all slot sessions.
func (s *Server) Close() {
	s.slots.Range(func(key string, sess *browse.Session) bool {
		sess.Close()
		s.slots.Delete(key)
		return true
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}
