// Package httpapi exposes the relay over JSON/HTTP and upgrades /ws to the
// realtime hub.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/recochat/internal/logging"
	"github.com/dmitrijs2005/recochat/internal/server/hub"
	"github.com/dmitrijs2005/recochat/internal/server/metrics"
	"github.com/dmitrijs2005/recochat/internal/server/services"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	address        string
	users          *services.UserService
	chats          *services.ChatService
	hub            *hub.Hub
	metrics        *metrics.Metrics
	logger         logging.Logger
	allowedOrigins []string
}

func NewServer(address string, l logging.Logger, us *services.UserService, cs *services.ChatService,
	h *hub.Hub, m *metrics.Metrics, allowedOrigins []string) *Server {
	return &Server{
		address:        address,
		logger:         l.With("module", "http_server"),
		users:          us,
		chats:          cs,
		hub:            h,
		metrics:        m,
		allowedOrigins: allowedOrigins,
	}
}

// Handler builds the routed handler with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/users", s.register).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("/user/keys", s.uploadPublicKey).Methods(http.MethodPost)
	authed.HandleFunc("/chats", s.createChat).Methods(http.MethodPost)
	authed.HandleFunc("/chats", s.listChats).Methods(http.MethodGet)
	authed.HandleFunc("/chats/{id}/keys", s.getChatKey).Methods(http.MethodGet)
	authed.HandleFunc("/chats/{id}/messages", s.listMessages).Methods(http.MethodGet)
	authed.HandleFunc("/messages", s.sendMessage).Methods(http.MethodPost)
	authed.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)

	// mux only runs its middleware for matched routes, so CORS preflights
	// and the outer stack wrap the router itself.
	var h http.Handler = r
	h = cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})(h)
	h = s.logRequests(h)
	h = middleware.Recoverer(h)
	h = middleware.RealIP(h)
	h = middleware.RequestID(h)
	return h
}

// Run serves until ctx is canceled, then shuts down gracefully and closes
// the realtime hub.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		s.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
