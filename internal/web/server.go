// Package web exposes the REST API and the websocket event stream. Events
// arrive over the internal NATS bus and fan out to the conversation rooms
// websocket clients joined.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mkarag/venturo/internal/config"
	"github.com/mkarag/venturo/internal/event"
	"github.com/mkarag/venturo/internal/natsbus"
	"github.com/mkarag/venturo/internal/store"
	"github.com/mkarag/venturo/internal/workflow"
)

type Server struct {
	store     store.Store
	bus       *natsbus.Bus
	nats      *natsbus.Client
	orch      *workflow.Orchestrator
	hub       *Hub
	cfg       config.WebConfig
	version   string
	startedAt time.Time
}

func NewServer(s store.Store, bus *natsbus.Bus, orch *workflow.Orchestrator, cfg config.WebConfig, version string) *Server {
	return &Server{
		store:     s,
		bus:       bus,
		orch:      orch,
		hub:       NewHub(),
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Bridge NATS events into the websocket hub.
	s.subscribeEvents()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: s.handler()}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	s.registerAPI(mux)
	mux.HandleFunc("/api/v1/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.withMiddleware(mux)
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Basic auth for the API; health and the websocket stay open so
		// probes and browser clients work without credentials.
		if s.cfg.Auth != "" && strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/v1/ws" {
			if _, pass, ok := r.BasicAuth(); !ok || pass != s.cfg.Auth {
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{
		"status":  "healthy",
		"service": "venturo",
		"version": s.version,
	})
}

func (s *Server) subscribeEvents() {
	if s.bus == nil {
		return
	}
	client, err := natsbus.NewClient(s.bus)
	if err != nil {
		slog.Error("web server nats client failed", "error", err)
		return
	}
	s.nats = client

	_, _ = client.Subscribe(natsbus.TopicAllConversationEvents, func(msg *nats.Msg) {
		var ev event.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("invalid NATS event payload", "error", err)
			return
		}
		s.hub.Broadcast(ev)
	})
}
