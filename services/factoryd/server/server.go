package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crosshub/gateway/config"
	"crosshub/gateway/middleware"
	"crosshub/gateway/routes"
	"crosshub/services/factoryd/relayer"
	"crosshub/services/factoryd/relaylog"
)

// Server exposes a factory over HTTP: queries, requester commands
// authenticated by JWT subject, admin commands and relay inspection.
type Server struct {
	cfg     config.HTTP
	factory *Factory
	relays  *relaylog.Log
	relayer *relayer.Relayer
	logger  *slog.Logger
	router  http.Handler
}

// New builds the factoryd HTTP handler. relays and rl may be nil.
func New(cfg config.HTTP, f *Factory, relays *relaylog.Log, rl *relayer.Relayer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, factory: f, relays: relays, relayer: rl, logger: logger}
	kit := routes.NewKit(cfg, logger)
	r := routes.New(cfg, kit)

	routes.Group(r, kit, "queries", "/v1", "queries", nil, func(api chi.Router) {
		api.Get("/state", s.handleState)
		api.Get("/hub-channel", s.handleHubChannel)
		api.Get("/escrows/{token}", s.handleEscrow)
		api.Post("/denoms/list", s.handleDenoms)
		api.Get("/partner-fees", s.handlePartnerFees)
		api.Post("/pools/list", s.handlePools)
		api.Post("/pools/get", s.handlePool)
		api.Get("/outbox", s.handleOutbox)
		api.Post("/pending/{kind}", s.handlePending)
		api.Get("/relays", s.handleRelays)
	})
	routes.Group(r, kit, "requests", "/v1/requests", "requests", []string{middleware.ScopeSubmit}, func(api chi.Router) {
		api.Post("/pools", s.handleRequestPool)
		api.Post("/liquidity/add", s.handleRequestAddLiquidity)
		api.Post("/liquidity/remove", s.handleRequestRemoveLiquidity)
		api.Post("/swaps", s.handleRequestSwap)
	})
	routes.Group(r, kit, "admin", "/v1/admin", "admin", []string{middleware.ScopeAdmin}, func(api chi.Router) {
		api.Post("/hub-channel", s.handleUpdateHubChannel)
		api.Post("/escrows", s.handleRegisterEscrow)
		api.Post("/denoms/register", s.handleRegisterDenom)
		api.Post("/denoms/deregister", s.handleDeregisterDenom)
		api.Post("/pause", s.handlePause)
		api.Post("/relay", s.handleFlush)
	})
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
