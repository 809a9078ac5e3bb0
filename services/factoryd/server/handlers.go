package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	coreerrors "crosshub/core/errors"
	"crosshub/core/packet"
	"crosshub/core/types"
	"crosshub/gateway/middleware"
	"crosshub/gateway/routes"
	"crosshub/native/factory"
	"crosshub/native/registry"
	"crosshub/observability"
	"crosshub/observability/logging"
	"crosshub/services/factoryd/relaylog"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var out factory.State
	if err := s.factory.View(func(e *factory.Engine) (err error) {
		out, err = e.State()
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleHubChannel(w http.ResponseWriter, r *http.Request) {
	var channel string
	if err := s.factory.View(func(e *factory.Engine) (err error) {
		channel, err = e.HubChannel()
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, map[string]string{"channel": channel})
}

func (s *Server) handleEscrow(w http.ResponseWriter, r *http.Request) {
	token := types.Token(chi.URLParam(r, "token"))
	var escrow string
	if err := s.factory.View(func(e *factory.Engine) (err error) {
		escrow, err = e.EscrowOf(token)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, map[string]string{"token": string(token), "escrow": escrow})
}

func (s *Server) handleDenoms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token      types.Token              `json:"token"`
		Pagination types.Pagination[string] `json:"pagination"`
	}
	if !decode(w, r, &req) {
		return
	}
	var out []types.TokenType
	if err := s.factory.View(func(e *factory.Engine) (err error) {
		out, err = e.AllowedDenoms(req.Token, req.Pagination)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, map[string]interface{}{"denoms": out})
}

func (s *Server) handlePartnerFees(w http.ResponseWriter, r *http.Request) {
	var fees types.DenomFees
	if err := s.factory.View(func(e *factory.Engine) (err error) {
		fees, err = e.PartnerFees()
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, fees)
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	var page types.Pagination[types.Pair]
	if !decode(w, r, &page) {
		return
	}
	var out []registry.PoolEntry
	if err := s.factory.View(func(e *factory.Engine) (err error) {
		out, err = e.LocalPools(page)
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
	if err := s.factory.View(func(e *factory.Engine) (err error) {
		pool, err = e.LocalPool(req.Pair)
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, registry.PoolEntry{Pair: req.Pair.Canonical(), Pool: pool})
}

func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryUint(w, r, "limit")
	if !ok {
		return
	}
	var out []packet.Packet
	if err := s.factory.View(func(e *factory.Engine) (err error) {
		out, err = e.Outbox(uint32(limit))
		return err
	}); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, map[string]interface{}{"packets": out})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requester  string                   `json:"requester"`
		Pagination types.Pagination[string] `json:"pagination"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := types.ValidateAddress(req.Requester); err != nil {
		routes.WriteError(w, err)
		return
	}
	kind := chi.URLParam(r, "kind")
	var out interface{}
	err := s.factory.View(func(e *factory.Engine) (err error) {
		switch kind {
		case "pools":
			out, err = e.PendingPoolCreations(req.Requester, req.Pagination)
		case "swaps":
			out, err = e.PendingSwaps(req.Requester, req.Pagination)
		case "liquidity":
			out, err = e.PendingLiquidityOf(req.Requester, req.Pagination)
		case "liquidity-add":
			out, err = e.PendingAddLiquidity(req.Requester, req.Pagination)
		case "liquidity-remove":
			out, err = e.PendingRemoveLiquidity(req.Requester, req.Pagination)
		default:
			return nil
		}
		return err
	})
	if err != nil {
		routes.WriteError(w, err)
		return
	}
	if out == nil {
		routes.WriteJSON(w, http.StatusNotFound, routes.ErrorBody{Code: "unknown_kind", Error: "unknown pending kind " + kind})
		return
	}
	routes.WriteJSON(w, http.StatusOK, map[string]interface{}{"pending": out})
}

func (s *Server) handleRelays(w http.ResponseWriter, r *http.Request) {
	if s.relays == nil {
		routes.WriteJSON(w, http.StatusNotFound, routes.ErrorBody{Code: "relay_log_disabled", Error: "relay log not configured"})
		return
	}
	limit, ok := queryUint(w, r, "limit")
	if !ok {
		return
	}
	q := r.URL.Query()
	out, err := s.relays.List(r.Context(), relaylog.Filter{
		TxID:      q.Get("tx_id"),
		Requester: q.Get("requester"),
		Result:    q.Get("result"),
		Limit:     int(limit),
	})
	if err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, map[string]interface{}{"attempts": out})
}

// submission is the body of a requester command: the parameters plus the
// funds the requester attaches.
type submission[P any] struct {
	Funds         []factory.Coin `json:"funds,omitempty"`
	TokenContract string         `json:"token_contract,omitempty"`
	Params        P              `json:"params"`
}

type requestFunc[P any] func(e *factory.Engine, ctx context.Context, caller factory.Caller, params P) (factory.Receipt, error)

func submit[P any](s *Server, w http.ResponseWriter, r *http.Request, kind string, fn requestFunc[P]) {
	var body submission[P]
	if !decode(w, r, &body) {
		return
	}
	subject, _ := middleware.Subject(r.Context())
	caller := factory.Caller{Address: subject, Funds: body.Funds, TokenContract: body.TokenContract}
	var receipt factory.Receipt
	err := s.factory.Update(func(e *factory.Engine) (err error) {
		receipt, err = fn(e, r.Context(), caller, body.Params)
		return err
	})
	metrics := observability.Factory()
	if err != nil {
		metrics.ObserveRequest(kind, coreerrors.CodeOf(err))
		s.logger.Info("request rejected",
			"kind", kind,
			"code", coreerrors.CodeOf(err),
			logging.MaskField("requester", subject))
		routes.WriteError(w, err)
		return
	}
	metrics.ObserveRequest(kind, "ok")
	s.logger.Info("request accepted",
		"kind", kind,
		"tx_id", receipt.TxID,
		"sequence", receipt.Packet.Sequence,
		logging.MaskField("requester", subject))
	routes.WriteJSON(w, http.StatusAccepted, receipt)
}

func (s *Server) handleRequestPool(w http.ResponseWriter, r *http.Request) {
	submit(s, w, r, packet.KindPoolCreation, (*factory.Engine).RequestPoolCreation)
}

func (s *Server) handleRequestAddLiquidity(w http.ResponseWriter, r *http.Request) {
	submit(s, w, r, packet.KindAddLiquidity, (*factory.Engine).RequestAddLiquidity)
}

func (s *Server) handleRequestRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	submit(s, w, r, packet.KindRemoveLiquidity, (*factory.Engine).RequestRemoveLiquidity)
}

func (s *Server) handleRequestSwap(w http.ResponseWriter, r *http.Request) {
	submit(s, w, r, packet.KindSwap, (*factory.Engine).RequestSwap)
}

func (s *Server) handleUpdateHubChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel string `json:"channel"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.admin(w, r, req, func(e *factory.Engine, caller string) error {
		return e.UpdateHubChannel(caller, req.Channel)
	})
}

func (s *Server) handleRegisterEscrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token  types.Token `json:"token"`
		Escrow string      `json:"escrow"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.admin(w, r, req, func(e *factory.Engine, caller string) error {
		return e.RegisterEscrow(caller, req.Token, req.Escrow)
	})
}

type denomRequest struct {
	Token types.Token     `json:"token"`
	Denom types.TokenType `json:"denom"`
}

func (s *Server) handleRegisterDenom(w http.ResponseWriter, r *http.Request) {
	var req denomRequest
	if !decode(w, r, &req) {
		return
	}
	s.admin(w, r, req, func(e *factory.Engine, caller string) error {
		return e.RegisterDenom(caller, req.Token, req.Denom)
	})
}

func (s *Server) handleDeregisterDenom(w http.ResponseWriter, r *http.Request) {
	var req denomRequest
	if !decode(w, r, &req) {
		return
	}
	s.admin(w, r, req, func(e *factory.Engine, caller string) error {
		return e.DeregisterDenom(caller, req.Token, req.Denom)
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Module string `json:"module"`
		Paused bool   `json:"paused"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Module == "" {
		req.Module = factory.ModuleName
	}
	s.admin(w, r, req, func(e *factory.Engine, caller string) error {
		return e.SetPaused(caller, req.Module, req.Paused)
	})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if s.relayer == nil {
		routes.WriteJSON(w, http.StatusNotFound, routes.ErrorBody{Code: "relayer_disabled", Error: "relayer not configured"})
		return
	}
	summary, err := s.relayer.RelayOnce(r.Context())
	if err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, summary)
}

// admin runs fn as the authenticated caller and echoes req on success.
func (s *Server) admin(w http.ResponseWriter, r *http.Request, req interface{}, fn func(*factory.Engine, string) error) {
	caller, _ := middleware.Subject(r.Context())
	if err := s.factory.Update(func(e *factory.Engine) error { return fn(e, caller) }); err != nil {
		routes.WriteError(w, err)
		return
	}
	routes.WriteJSON(w, http.StatusOK, req)
}

func queryUint(w http.ResponseWriter, r *http.Request, key string) (uint64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		routes.BadRequest(w, key+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := routes.DecodeJSON(r, out); err != nil {
		routes.BadRequest(w, err.Error())
		return false
	}
	return true
}
