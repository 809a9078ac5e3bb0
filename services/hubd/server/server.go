package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crosshub/gateway/config"
	"crosshub/gateway/middleware"
	"crosshub/gateway/routes"
)

// Server exposes the hub over HTTP: read-only queries, packet intake for
// relayers, admin commands and the event stream.
type Server struct {
	cfg    config.HTTP
	hub    *Hub
	stream *Stream
	logger *slog.Logger
	router http.Handler
}

// New builds the hubd HTTP handler.
func New(cfg config.HTTP, hub *Hub, stream *Stream, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, hub: hub, stream: stream, logger: logger}
	kit := routes.NewKit(cfg, logger)
	r := routes.New(cfg, kit)

	routes.Group(r, kit, "queries", "/v1", "queries", nil, func(api chi.Router) {
		api.Get("/state", s.handleState)
		api.Post("/pools/list", s.handlePools)
		api.Post("/pools/get", s.handlePool)
		api.Post("/chains/list", s.handleChains)
		api.Get("/chains/{uid}", s.handleChain)
		api.Post("/simulate/swap", s.handleSimulateSwap)
		api.Post("/simulate/release", s.handleSimulateRelease)
		api.Post("/escrows/list", s.handleTokenEscrows)
		api.Post("/tokens/list", s.handleTokens)
	})
	routes.Group(r, kit, "packets", "/v1/packets", "packets", []string{middleware.ScopeRelay}, func(api chi.Router) {
		api.Post("/", s.handlePacket)
		api.Post("/status", s.handlePacketStatus)
	})
	routes.Group(r, kit, "admin", "/v1/admin", "admin", []string{middleware.ScopeAdmin}, func(api chi.Router) {
		api.Post("/chains", s.handleRegisterChain)
		api.Post("/pools", s.handleRegisterPool)
		api.Post("/escrow/deposit", s.handleDeposit)
		api.Post("/lock", s.handleLock)
	})
	if stream != nil {
		r.Handle("/ws/events", stream)
	}
	s.router = r
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return routes.Serve(ctx, s.cfg, s.router, s.logger)
}
