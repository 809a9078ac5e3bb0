package relayer_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/packet"
	"crosshub/core/types"
	gwconfig "crosshub/gateway/config"
	"crosshub/native/factory"
	"crosshub/native/router"
	"crosshub/native/swap"
	"crosshub/services/factoryd/relayer"
	"crosshub/services/factoryd/relaylog"
	fserver "crosshub/services/factoryd/server"
	hserver "crosshub/services/hubd/server"
	"crosshub/storage"
)

const (
	secret      = "relay-secret"
	adminAddr   = "0x00000000000000000000000000000000000000ad"
	factoryAddr = "0x00000000000000000000000000000000000000fa"
	alice       = "0x00000000000000000000000000000000000000a1"
)

var pair = types.PairWithDenom{
	Token1: types.TokenWithDenom{Token: "usdc", TokenType: types.NativeDenom("uusdc")},
	Token2: types.TokenWithDenom{Token: "atom", TokenType: types.NativeDenom("uatom")},
}

type noPools struct{}

func (noPools) SimulateSwap(context.Context, types.PoolID, types.Token, *uint256.Int, []types.NextSwapVlp) (swap.Quote, error) {
	return swap.Quote{}, errors.New("no pools")
}

func (noPools) ExecuteSwap(context.Context, types.PoolID, types.Token, *uint256.Int, []types.NextSwapVlp, swap.Quote) error {
	return errors.New("no pools")
}

func (noPools) AddLiquidity(context.Context, types.PoolID, types.Pair, *uint256.Int, *uint256.Int, uint64) (*uint256.Int, error) {
	return nil, errors.New("no pools")
}

func (noPools) QuoteWithdrawal(context.Context, types.PoolID, types.Pair, *uint256.Int) (router.Withdrawal, error) {
	return router.Withdrawal{}, errors.New("no pools")
}

func (noPools) RemoveLiquidity(context.Context, types.PoolID, types.Pair, *uint256.Int) error {
	return errors.New("no pools")
}

type recorder struct{ got []string }

func (r *recorder) Emit(evt events.Event) { r.got = append(r.got, evt.EventType()) }

type transportFunc func(context.Context, packet.Packet) (packet.Ack, error)

func (f transportFunc) Dispatch(ctx context.Context, p packet.Packet) (packet.Ack, error) {
	return f(ctx, p)
}

type fixture struct {
	factory *fserver.Factory
	events  *recorder
	log     *relaylog.Log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	rec := &recorder{}
	f := fserver.NewFactory(db, factory.Config{ChainUID: "osmosis", Address: factoryAddr, Admin: adminAddr}, rec)
	require.NoError(t, f.Update(func(e *factory.Engine) error { return e.UpdateHubChannel(adminAddr, "channel-0") }))

	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, relaylog.AutoMigrate(gdb))
	return &fixture{factory: f, events: rec, log: relaylog.New(gdb)}
}

func (f *fixture) requestPool(t *testing.T, txID string) packet.Packet {
	t.Helper()
	var receipt factory.Receipt
	require.NoError(t, f.factory.Update(func(e *factory.Engine) (err error) {
		receipt, err = e.RequestPoolCreation(context.Background(), factory.Caller{Address: alice}, factory.PoolCreationParams{Pair: pair, TxID: txID})
		return err
	}))
	f.events.got = nil
	return receipt.Packet
}

func (f *fixture) outbox(t *testing.T) []packet.Packet {
	t.Helper()
	var out []packet.Packet
	require.NoError(t, f.factory.View(func(e *factory.Engine) (err error) {
		out, err = e.Outbox(0)
		return err
	}))
	return out
}

func (f *fixture) pending(t *testing.T) []factory.PoolCreationRequest {
	t.Helper()
	var out []factory.PoolCreationRequest
	require.NoError(t, f.factory.View(func(e *factory.Engine) (err error) {
		out, err = e.PendingPoolCreations(alice, types.Pagination[string]{})
		return err
	}))
	return out
}

func startHub(t *testing.T) string {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	hub := hserver.NewHub(db, router.Config{Admin: adminAddr}, noPools{}, nil)
	require.NoError(t, hub.Update(func(r *router.Router) error {
		return r.RegisterChain(adminAddr, "osmosis", types.Chain{ChainID: "osmosis-1", FromFactoryChannel: "channel-0"})
	}))
	cfg := gwconfig.DefaultHTTP("hubd", ":0")
	cfg.Auth.HMACSecret = secret
	cfg.ApplyDefaults()
	srv := httptest.NewServer(hserver.New(cfg, hub, nil, nil).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRelayerDeliversToHub(t *testing.T) {
	f := newFixture(t)
	f.requestPool(t, "tx-pool")

	transport, err := relayer.NewHTTPTransport(relayer.HubConfig{Endpoint: startHub(t), Subject: factoryAddr, HMACSecret: secret})
	require.NoError(t, err)
	r := relayer.New(f.factory, transport, f.log, relayer.Config{}, nil)

	summary, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, relayer.Summary{Acked: 1}, summary)
	require.Empty(t, f.outbox(t))
	require.Empty(t, f.pending(t))
	require.Equal(t, []string{events.TypeFactoryReconciled}, f.events.got)

	var pool types.PoolID
	require.NoError(t, f.factory.View(func(e *factory.Engine) (err error) {
		pool, err = e.LocalPool(types.Pair{Token1: "usdc", Token2: "atom"})
		return err
	}))
	require.NotEmpty(t, pool)

	attempts, err := f.log.List(context.Background(), relaylog.Filter{TxID: "tx-pool"})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, relaylog.ResultAcked, attempts[0].Result)
}

func TestRelayerSettlesFailureAcks(t *testing.T) {
	f := newFixture(t)
	f.requestPool(t, "tx-fail")

	transport := transportFunc(func(context.Context, packet.Packet) (packet.Ack, error) {
		return packet.Failure("pool_already_exists", "pool already exists"), nil
	})
	r := relayer.New(f.factory, transport, f.log, relayer.Config{}, nil)
	summary, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, relayer.Summary{Failed: 1}, summary)
	require.Empty(t, f.outbox(t))
	require.Empty(t, f.pending(t))

	attempts, err := f.log.List(context.Background(), relaylog.Filter{Result: relaylog.ResultFailed})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, "pool_already_exists", attempts[0].Code)
}

func TestRelayerKeepsPacketOnTransportError(t *testing.T) {
	f := newFixture(t)
	f.requestPool(t, "tx-retry")

	calls := 0
	transport := transportFunc(func(context.Context, packet.Packet) (packet.Ack, error) {
		calls++
		return packet.Ack{}, errors.New("connection refused")
	})
	r := relayer.New(f.factory, transport, f.log, relayer.Config{}, nil)
	summary, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, relayer.Summary{Errors: 1}, summary)
	require.Equal(t, 1, calls)
	require.Len(t, f.outbox(t), 1)
	require.Len(t, f.pending(t), 1)
	require.Empty(t, f.events.got)
}

func TestRelayerExpiresStalePackets(t *testing.T) {
	f := newFixture(t)
	p := f.requestPool(t, "tx-stale")

	transport := transportFunc(func(context.Context, packet.Packet) (packet.Ack, error) {
		t.Fatalf("expired packet must not be dispatched")
		return packet.Ack{}, nil
	})
	r := relayer.New(f.factory, transport, f.log, relayer.Config{}, nil)
	r.SetNowFunc(func() time.Time { return time.Unix(int64(p.ExpiresAt), 0) })

	summary, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, relayer.Summary{TimedOut: 1}, summary)
	require.Empty(t, f.outbox(t))
	require.Empty(t, f.pending(t))
	require.Equal(t, []string{events.TypeFactoryExpired}, f.events.got)
}

func TestRelayerTimesOutSlowHub(t *testing.T) {
	f := newFixture(t)
	f.requestPool(t, "tx-slow")

	transport := transportFunc(func(ctx context.Context, _ packet.Packet) (packet.Ack, error) {
		<-ctx.Done()
		return packet.Ack{}, fmt.Errorf("dispatch: %w", ctx.Err())
	})
	r := relayer.New(f.factory, transport, f.log, relayer.Config{}, nil)
	p := f.outbox(t)[0]
	// one second of budget left on the relayer's clock
	r.SetNowFunc(func() time.Time { return time.Unix(int64(p.ExpiresAt)-1, 0) })

	summary, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, relayer.Summary{TimedOut: 1}, summary)
	require.Empty(t, f.pending(t))
}

// dropAnswers delivers packets to the hub but loses every answer.
type dropAnswers struct {
	*relayer.HTTPTransport
	calls int
}

func (d *dropAnswers) Dispatch(ctx context.Context, p packet.Packet) (packet.Ack, error) {
	d.calls++
	if _, err := d.HTTPTransport.Dispatch(ctx, p); err != nil {
		return packet.Ack{}, err
	}
	return packet.Ack{}, fmt.Errorf("%w: connection reset", coreerrors.ErrTransport)
}

func TestRelayerSettlesLostAnswerFromHubRecord(t *testing.T) {
	f := newFixture(t)
	p := f.requestPool(t, "tx-lost")

	inner, err := relayer.NewHTTPTransport(relayer.HubConfig{Endpoint: startHub(t), Subject: factoryAddr, HMACSecret: secret})
	require.NoError(t, err)
	transport := &dropAnswers{HTTPTransport: inner}
	r := relayer.New(f.factory, transport, f.log, relayer.Config{}, nil)

	summary, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, relayer.Summary{Errors: 1}, summary)
	require.Len(t, f.pending(t), 1)

	// Past expiry the hub's stored ack settles the request.
	r.SetNowFunc(func() time.Time { return time.Unix(int64(p.ExpiresAt)+1, 0) })
	summary, err = r.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, relayer.Summary{Acked: 1}, summary)
	require.Equal(t, 1, transport.calls)
	require.Empty(t, f.pending(t))
	require.Empty(t, f.outbox(t))
	require.Equal(t, []string{events.TypeFactoryReconciled}, f.events.got)

	var pool types.PoolID
	require.NoError(t, f.factory.View(func(e *factory.Engine) (err error) {
		pool, err = e.LocalPool(types.Pair{Token1: "usdc", Token2: "atom"})
		return err
	}))
	require.NotEmpty(t, pool)
}

func TestRelayerExpiresPacketHubNeverExecuted(t *testing.T) {
	f := newFixture(t)
	p := f.requestPool(t, "tx-unseen")

	transport, err := relayer.NewHTTPTransport(relayer.HubConfig{Endpoint: startHub(t), Subject: factoryAddr, HMACSecret: secret})
	require.NoError(t, err)
	r := relayer.New(f.factory, transport, f.log, relayer.Config{}, nil)
	r.SetNowFunc(func() time.Time { return time.Unix(int64(p.ExpiresAt), 0) })

	summary, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, relayer.Summary{TimedOut: 1}, summary)
	require.Empty(t, f.pending(t))
	require.Equal(t, []string{events.TypeFactoryExpired}, f.events.got)
}

type unreachableHub struct{}

func (unreachableHub) Dispatch(context.Context, packet.Packet) (packet.Ack, error) {
	return packet.Ack{}, errors.New("connection refused")
}

func (unreachableHub) Status(context.Context, packet.Packet) (packet.Ack, bool, error) {
	return packet.Ack{}, false, errors.New("connection refused")
}

func TestRelayerKeepsExpiredPacketWhileHubUnreachable(t *testing.T) {
	f := newFixture(t)
	p := f.requestPool(t, "tx-dark")

	r := relayer.New(f.factory, unreachableHub{}, f.log, relayer.Config{}, nil)
	r.SetNowFunc(func() time.Time { return time.Unix(int64(p.ExpiresAt)+5, 0) })

	summary, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, relayer.Summary{Errors: 1}, summary)
	require.Len(t, f.pending(t), 1)
	require.Len(t, f.outbox(t), 1)
	require.Empty(t, f.events.got)
}
