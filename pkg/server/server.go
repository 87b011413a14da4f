// Package server owns the HTTP listener: the route table, the middleware
// chain and graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ashpect/itemstream/pkg/logging"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	shutdownTimeout          = 5 * time.Second
)

// Routes registers handlers on the server mux.
type Routes interface {
	Register(mux *http.ServeMux)
}

type Server struct {
	addr   string
	mux    *http.ServeMux
	srv    *http.Server
	logger *slog.Logger

	mu  sync.Mutex
	lis net.Listener
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.srv.ReadHeaderTimeout = d
		}
	}
}

// WithRoutes registers r on the mux.
func WithRoutes(r Routes) Option {
	return func(s *Server) {
		r.Register(s.mux)
	}
}

// WithHandler mounts h on pattern, e.g. "GET /metrics".
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) {
		s.mux.Handle(pattern, h)
	}
}

// New builds a server listening on addr. No WriteTimeout is set: a stream
// stays open for count*interval.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		mux:    http.NewServeMux(),
		logger: logging.Discard(),
		srv:    &http.Server{ReadHeaderTimeout: defaultReadHeaderTimeout},
	}
	s.mux.HandleFunc("GET /healthz", handleHealth)
	for _, opt := range opts {
		opt(s)
	}
	s.srv.Handler = chain(s.mux, Recover(s.logger), LogRequests(s.logger), Trace())
	s.srv.ErrorLog = slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn)
	return s
}

// Handler exposes the full chain, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Addr is the bound address once ListenAndServe is running, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return s.lis.Addr().String()
	}
	return s.addr
}

// ListenAndServe serves until ctx is done, then shuts down gracefully. It
// returns nil after a ctx triggered shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()

	s.logger.Info("listening", slog.String("addr", l.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()

	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(cctx); err != nil {
			// streams still open after the grace period get cut
			s.logger.Warn("graceful shutdown incomplete", slog.Any("error", err))
			_ = s.srv.Close()
		}
		<-errCh
		s.logger.Info("server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
