package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"crosshub/core/packet"
	"crosshub/core/types"
	"crosshub/gateway/middleware"
	"crosshub/gateway/routes"
	"crosshub/native/escrow"
	"crosshub/native/registry"
	"crosshub/native/router"
	"crosshub/native/swap"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var out router.HubState
	if err := s.hub.View(func(rt *router.Router) (err error) {
		out, err = rt.State()
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	var page types.Pagination[types.Pair]
	if !decode(w, r, &page) {
		return
	}
	var out []registry.PoolEntry
	if err := s.hub.View(func(rt *router.Router) (err error) {
		out, err = rt.Pools(page)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, map[string]interface{}{"pools": out})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pair types.Pair `json:"pair"`
	}
	if !decode(w, r, &req) {
		return
	}
	var pool types.PoolID
	if err := s.hub.View(func(rt *router.Router) (err error) {
		pool, err = rt.Pool(req.Pair)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, registry.PoolEntry{Pair: req.Pair.Canonical(), Pool: pool})
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	var page types.Pagination[types.ChainUID]
	if !decode(w, r, &page) {
		return
	}
	var out []registry.ChainEntry
	if err := s.hub.View(func(rt *router.Router) (err error) {
		out, err = rt.Chains(page)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, map[string]interface{}{"chains": out})
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	uid := types.ChainUID(chi.URLParam(r, "uid"))
	var chain types.Chain
	if err := s.hub.View(func(rt *router.Router) (err error) {
		chain, err = rt.Chain(uid)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, registry.ChainEntry{ChainUID: uid, Chain: chain})
}

func (s *Server) handleSimulateSwap(w http.ResponseWriter, r *http.Request) {
	var req swap.SimulateSwapRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AmountIn == nil {
		routes.BadRequest(w, "amount_in required")
		return
	}
	var quote swap.Quote
	if err := s.hub.View(func(rt *router.Router) (err error) {
		quote, err = rt.SimulateSwap(r.Context(), req)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, quote)
}

type releaseRequest struct {
	Token     types.Token                     `json:"token"`
	Amount    *uint256.Int                    `json:"amount"`
	Claimants []types.CrossChainUserWithLimit `json:"cross_chain_addresses"`
}

func (s *Server) handleSimulateRelease(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Amount == nil {
		routes.BadRequest(w, "amount required")
		return
	}
	var alloc escrow.Allocation
	if err := s.hub.View(func(rt *router.Router) (err error) {
		alloc, err = rt.SimulateEscrowRelease(req.Token, req.Amount, req.Claimants)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, alloc)
}

func (s *Server) handleTokenEscrows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token      types.Token                      `json:"token"`
		Pagination types.Pagination[types.ChainUID] `json:"pagination"`
	}
	if !decode(w, r, &req) {
		return
	}
	var out []escrow.ChainBalance
	if err := s.hub.View(func(rt *router.Router) (err error) {
		out, err = rt.TokenEscrows(req.Token, req.Pagination)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, map[string]interface{}{"escrows": out})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	var page types.Pagination[types.Token]
	if !decode(w, r, &page) {
		return
	}
	var out []escrow.TokenChain
	if err := s.hub.View(func(rt *router.Router) (err error) {
		out, err = rt.AllTokens(page)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, map[string]interface{}{"tokens": out})
}

func (s *Server) handlePacket(w http.ResponseWriter, r *http.Request) {
	var p packet.Packet
	if !decode(w, r, &p) {
		return
	}
	if err := p.Validate(); err != nil {
		routes.BadRequest(w, err.Error())
		return
	}
	ack, err := s.hub.Deliver(r.Context(), p)
	if err != nil {
		s.logger.Error("packet delivery failed", "kind", p.Kind, "tx_id", p.TxID, "chain_uid", string(p.Sender.ChainUID), "error", err.Error())
		routes.WriteError(w, err)
		return
	}
	s.logger.Info("packet answered", "kind", p.Kind, "tx_id", p.TxID, "chain_uid", string(p.Sender.ChainUID), "status", ack.Success, "code", ack.Code)
	routes.WriteJSON(w, http.StatusOK, ack)
}

func (s *Server) handlePacketStatus(w http.ResponseWriter, r *http.Request) {
	var p packet.Packet
	if !decode(w, r, &p) {
		return
	}
	var (
		ack packet.Ack
		ok  bool
	)
	if err := s.hub.View(func(rt *router.Router) (err error) {
		ack, ok, err = rt.Executed(p)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	if !ok {
		routes.WriteJSON(w, http.StatusNotFound, routes.ErrorBody{Code: "not_executed", Error: "packet has not been executed"})
		return
	}
	routes.WriteJSON(w, http.StatusOK, ack)
}

func (s *Server) handleRegisterChain(w http.ResponseWriter, r *http.Request) {
	var req registry.ChainEntry
	if !decode(w, r, &req) {
		return
	}
	caller, _ := middleware.Subject(r.Context())
	if err := s.hub.Update(func(rt *router.Router) error {
		return rt.RegisterChain(caller, req.ChainUID, req.Chain)
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, req)
}

func (s *Server) handleRegisterPool(w http.ResponseWriter, r *http.Request) {
	var req registry.PoolEntry
	if !decode(w, r, &req) {
		return
	}
	caller, _ := middleware.Subject(r.Context())
	var pool types.PoolID
	if err := s.hub.Update(func(rt *router.Router) (err error) {
		pool, err = rt.RegisterPool(caller, req.Pair, req.Pool)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, registry.PoolEntry{Pair: req.Pair.Canonical(), Pool: pool})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    types.Token    `json:"token"`
		ChainUID types.ChainUID `json:"chain_uid"`
		Amount   *uint256.Int   `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Amount == nil {
		routes.BadRequest(w, "amount required")
		return
	}
	caller, _ := middleware.Subject(r.Context())
	var balance *uint256.Int
	if err := s.hub.Update(func(rt *router.Router) (err error) {
		balance, err = rt.DepositEscrow(caller, req.Token, req.ChainUID, req.Amount)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, escrow.ChainBalance{ChainUID: req.ChainUID, Balance: balance})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locked bool `json:"locked"`
	}
	if !decode(w, r, &req) {
		return
	}
	caller, _ := middleware.Subject(r.Context())
	if err := s.hub.Update(func(rt *router.Router) error {
		return rt.SetLocked(caller, req.Locked)
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, req)
}

func decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := routes.DecodeJSON(r, out); err != nil {
		routes.BadRequest(w, err.Error())
		return false
	}
	return true
}
