package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Router builds the full API route tree.
func (h *Handler) Router(allowedOrigins []string) chi.Router {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.healthz)
	r.Get("/ws", h.Hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		// Read-only dashboard surface.
		r.Get("/hyperliquid/symbols", h.listSymbols)
		r.Get("/hyperliquid/watchlist", h.getWatchlist)
		r.Get("/hyperliquid/ticker/{symbol}", h.getTicker)
		r.Get("/hyperliquid/klines/{symbol}", h.getKlines)
		r.Get("/hyperliquid/rewards/{address}", h.getRewards)
		r.Get("/arena/trades", h.tradeFeed)
		r.Get("/arena/positions", h.positionFeed)
		r.Get("/arena/model-chat", h.modelChatFeed)
		r.Get("/strategy/status", h.strategyStatus)
		r.Get("/market/cache-stats", h.cacheStats)
		r.Get("/system/logs", h.systemLogs)
		r.Get("/prompts", h.listPrompts)
		r.Get("/prompts/{id}", h.getPrompt)
		r.Get("/config/sampling", h.getSampling)
		r.Get("/accounts", h.listAccounts)
		r.Get("/accounts/{id}/strategy", h.getStrategy)
		r.Get("/accounts/{id}/prompt-binding", h.getPromptBinding)
		r.Get("/accounts/{id}/asset-curve", h.assetCurve)

		// Mutations require a token.
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Middleware)
			r.Post("/accounts", h.createAccount)
			r.Put("/accounts/{id}/strategy", h.putStrategy)
			r.Put("/accounts/{id}/prompt-binding", h.putPromptBinding)
			r.Put("/config/sampling", h.putSampling)
			r.Post("/prompts", h.createPrompt)
			r.Put("/prompts/{id}", h.updatePrompt)
			r.Delete("/prompts/{id}", h.deletePrompt)
			r.Put("/hyperliquid/watchlist", h.putWatchlist)
		})
	})

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// Server wraps the HTTP listener with the Start/Stop lifecycle the rest
// of the process uses.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	errCh      chan error
}

// NewServer creates an API server listening on addr.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		errCh:  make(chan error, 1),
	}
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("api server listening", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
	}()
	return nil
}

// Err reports a fatal listener error, if any.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Stop shuts the listener down, waiting for in-flight requests up to
// the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}
