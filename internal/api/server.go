// Package api serves the chat page and its JSON endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/internal/chat"
	"github.com/xkilldash9x/grantscout/internal/config"
	"github.com/xkilldash9x/grantscout/internal/session"
	"github.com/xkilldash9x/grantscout/internal/tasks"
)

// ChatEngine advances a conversation by one user message.
type ChatEngine interface {
	Handle(ctx context.Context, state chat.State, message string) (chat.State, string, error)
}

// TaskLister exposes launched search runs.
type TaskLister interface {
	Get(id string) (tasks.Task, bool)
	List() []tasks.Task
}

// Server is the chat HTTP server.
type Server struct {
	cfg      config.ServerConfig
	engine   ChatEngine
	sessions *session.MemoryStore
	signer   *session.Signer
	tasks    TaskLister
	logger   *zap.Logger
}

// NewServer wires the handlers. Every dependency is required.
func NewServer(cfg config.ServerConfig, engine ChatEngine, sessions *session.MemoryStore, signer *session.Signer, tasks TaskLister, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		engine:   engine,
		sessions: sessions,
		signer:   signer,
		tasks:    tasks,
		logger:   logger.Named("api"),
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.index)
	r.Get("/history", s.history)
	r.Post("/chat", s.chat)
	r.Get("/tasks", s.listTasks)
	r.Get("/tasks/{id}", s.getTask)
	r.Get("/health", s.health)

	return r
}

// Start serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
