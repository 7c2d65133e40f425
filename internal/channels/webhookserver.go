package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// WebhookServerConfig configures the unified webhook server.
type WebhookServerConfig struct {
	Addr string

	// Logger is optional; nil disables logging.
	Logger *slog.Logger
}

// WebhookServer is a single HTTP server that hosts every channel's
// webhook routes. Channels contribute route fragments via AddRoutes;
// a single Start call binds the listener and serves them all.
type WebhookServer struct {
	config   WebhookServerConfig
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
}

// NewWebhookServer returns a WebhookServer bound to config.Addr once
// Start is called.
func NewWebhookServer(config WebhookServerConfig) *WebhookServer {
	return &WebhookServer{config: config, mux: http.NewServeMux()}
}

// AddRoutes merges fragment's patterns into the server's mux.
// fragment's handlers should already carry their own state; the
// server never introspects them.
func (s *WebhookServer) AddRoutes(prefix string, fragment http.Handler) {
	if prefix == "" || prefix == "/" {
		s.mux.Handle("/", fragment)
		return
	}
	s.mux.Handle(prefix+"/", http.StripPrefix(prefix, fragment))
}

// Start binds the listener and serves the merged routes in the
// background. A server error other than a clean shutdown is logged.
func (s *WebhookServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return startupFailed("webhook_server", fmt.Errorf("listen on %s: %w", s.config.Addr, err))
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log(slog.LevelError, "webhook server error", "error", err)
		}
	}()

	s.log(slog.LevelInfo, "webhook server listening", "addr", s.config.Addr)
	return nil
}

// Shutdown signals a graceful stop and waits up to ctx's deadline for
// in-flight requests to finish.
func (s *WebhookServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		s.log(slog.LevelWarn, "webhook server shutdown error", "error", err)
		return err
	}
	s.log(slog.LevelInfo, "webhook server shut down")
	return nil
}

func (s *WebhookServer) log(level slog.Level, msg string, args ...any) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(context.Background(), level, msg, args...)
}
