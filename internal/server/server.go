// Package server is the bot's inbound HTTP surface: the webhook receiver,
// the REST API, the dashboard routes and the /ws activity feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kehao95/gh-deploybot/internal/deploy"
	"github.com/kehao95/gh-deploybot/internal/sse"
	"github.com/kehao95/gh-deploybot/internal/webhook"
)

type Config struct {
	Port int

	// SmeeURL, when set, relays deliveries from a smee.io channel into the
	// webhook pipeline.
	SmeeURL string
}

// Deps are the collaborators the handlers are built from.
type Deps struct {
	Service  *deploy.Service
	Mapper   *webhook.Mapper
	Verifier *webhook.Verifier

	// Dashboard serves GET /, GET /dashboard and POST /dashboard/trigger.
	// It may be nil.
	Dashboard http.Handler

	Logger *slog.Logger
}

// Server routes requests to the webhook pipeline, the API and the dashboard.
type Server struct {
	service   *deploy.Service
	mapper    *webhook.Mapper
	verifier  *webhook.Verifier
	dashboard http.Handler
	hub       *Hub
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// New builds a Server. Every dispatch made through deps.Service is
// published on the activity feed.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service:   deps.Service,
		mapper:    deps.Mapper,
		verifier:  deps.Verifier,
		dashboard: deps.Dashboard,
		hub:       newHub(logger),
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.service.OnDispatch(s.hub.PublishDispatch)
	return s
}

// Handler returns the routed handler wrapped in panic recovery and
// request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/webhook", s.handleWebhook)
	mux.HandleFunc("GET /api/webhook", s.handleWebhookHealth)
	mux.HandleFunc("POST /api/trigger", s.handleTrigger)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.dashboard != nil {
		mux.Handle("GET /{$}", s.dashboard)
		mux.Handle("GET /dashboard", s.dashboard)
		mux.Handle("POST /dashboard/trigger", s.dashboard)
	}
	return s.recoverer(s.requestLogger(mux))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	s.logger.Info("ws connected", "remote", r.RemoteAddr)

	client := &Client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, 16),
		logger: s.logger,
	}
	if !s.hub.join(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	client.readPump()

	s.logger.Info("ws disconnected", "remote", r.RemoteAddr)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, deps Deps) error {
	s := New(deps)
	go s.hub.run(ctx)

	if cfg.SmeeURL != "" {
		s.logger.Warn(smeeWarning(s.verifier.Enabled()), "url", cfg.SmeeURL, "secret_bypassed", s.verifier.Enabled())
		relay := sse.NewClient(cfg.SmeeURL, s.logger)
		go func() {
			err := relay.Run(ctx, func(d sse.Delivery) error {
				status, _ := s.processDelivery(ctx, d.Event, d.DeliveryID, d.Body)
				s.logger.Info("smee delivery handled", "event", d.Event, "delivery", d.DeliveryID, "status", status)
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("smee relay stopped", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", "port", cfg.Port, "signature_check", s.verifier.Enabled(), "smee_unverified", cfg.SmeeURL != "")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// smeeWarning is logged when the smee relay starts. Relayed bodies are
// re-encoded by smee, so they skip signature verification even when a
// webhook secret is configured.
func smeeWarning(secretConfigured bool) string {
	if secretConfigured {
		return "relaying deliveries from smee; the configured webhook secret is bypassed on this path"
	}
	return "relaying deliveries from smee; signatures are not checked on this path"
}
