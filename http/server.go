// Package http translates inbound requests into commands, dispatches them on
// the command bus and maps the returned events or errors to responses. It
// owns status-code mapping; the core never sees a request.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/corefold/eventcore/logging"
)

// CorrelationHeader carries the correlation id across service boundaries.
const CorrelationHeader = "X-Correlation-ID"

// Config holds the server settings; mirrors config.HTTPConfig without
// importing the config package here. CommandTimeout bounds the context each
// dispatched command runs under; net/http's read/write timeouts do not cancel
// the request context, so without it a stuck append would hold the stream
// lock indefinitely. Zero means unbounded.
type Config struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	CommandTimeout time.Duration
}

// Server is the mux-backed API surface.
type Server struct {
	router         *mux.Router
	server         *http.Server
	logger         *zap.Logger
	commandTimeout time.Duration
}

// NewServer builds a server with the correlation middleware installed.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	s := &Server{
		router:         router,
		logger:         logger,
		commandTimeout: cfg.CommandTimeout,
		server: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
			Handler:      correlationMiddleware(router),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
	return s
}

// Router exposes the underlying router for endpoint registration.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// correlationMiddleware attaches the inbound correlation id (or a fresh one)
// to the request context and echoes it on the response.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(CorrelationHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set(CorrelationHeader, correlationID)
		ctx := logging.ContextWithCorrelationID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
