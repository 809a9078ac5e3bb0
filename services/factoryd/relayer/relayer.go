package relayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crosshub/core/packet"
	"crosshub/native/factory"
	"crosshub/observability"
	"crosshub/observability/logging"
	"crosshub/services/factoryd/relaylog"
)

// Steps runs factory engine calls, atomically for Update.
type Steps interface {
	View(fn func(*factory.Engine) error) error
	Update(fn func(*factory.Engine) error) error
}

// StatusChecker is implemented by transports that can ask the hub whether a
// packet was executed. Before expiring a packet the relayer settles it with
// the hub's stored ack when there is one.
type StatusChecker interface {
	Status(ctx context.Context, p packet.Packet) (packet.Ack, bool, error)
}

// Summary counts the outcomes of one drain.
type Summary struct {
	Acked    int `json:"acked"`
	Failed   int `json:"failed"`
	TimedOut int `json:"timed_out"`
	Errors   int `json:"errors"`
}

// Total is the number of packets handled.
func (s Summary) Total() int { return s.Acked + s.Failed + s.TimedOut + s.Errors }

func (s *Summary) add(result string) {
	switch result {
	case relaylog.ResultAcked:
		s.Acked++
	case relaylog.ResultFailed:
		s.Failed++
	case relaylog.ResultTimeout:
		s.TimedOut++
	default:
		s.Errors++
	}
}

// Relayer drains the factory outbox into a transport. Acks and expiries are
// settled through the engine; transport errors leave the packet queued until
// its expiry, when the hub's record decides between ack and timeout.
type Relayer struct {
	steps     Steps
	transport packet.Transport
	log       *relaylog.Log
	logger    *slog.Logger
	interval  time.Duration
	batch     uint32
	nowFn     func() time.Time
}

// Config tunes the drain loop.
type Config struct {
	Interval time.Duration
	Batch    uint32
}

// New constructs a relayer. log may be nil.
func New(steps Steps, transport packet.Transport, log *relaylog.Log, cfg Config, logger *slog.Logger) *Relayer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Batch == 0 {
		cfg.Batch = 32
	}
	return &Relayer{
		steps:     steps,
		transport: transport,
		log:       log,
		logger:    logger,
		interval:  cfg.Interval,
		batch:     cfg.Batch,
		nowFn:     time.Now,
	}
}

// SetNowFunc overrides the clock used to detect expired packets.
func (r *Relayer) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	r.nowFn = now
}

// Run drains the outbox every interval until ctx ends.
func (r *Relayer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		summary, err := r.RelayOnce(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			r.logger.Error("relay pass failed", "error", err.Error())
		case summary.Total() > 0:
			r.logger.Info("relay pass", "acked", summary.Acked, "failed", summary.Failed, "timed_out", summary.TimedOut, "errors", summary.Errors)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce hands one batch of outbox packets to the transport.
func (r *Relayer) RelayOnce(ctx context.Context) (Summary, error) {
	var batch []packet.Packet
	if err := r.steps.View(func(e *factory.Engine) (err error) {
		batch, err = e.Outbox(r.batch)
		return err
	}); err != nil {
		return Summary{}, err
	}
	observability.Factory().SetOutboxDepth(len(batch))

	var summary Summary
	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := r.relay(ctx, p)
		if err != nil {
			return summary, err
		}
		summary.add(result)
	}
	return summary, nil
}

func (r *Relayer) relay(ctx context.Context, p packet.Packet) (string, error) {
	start := r.nowFn()
	attempt := &relaylog.Attempt{
		Sequence:  p.Sequence,
		TxID:      p.TxID,
		Kind:      p.Kind,
		Requester: p.Sender.Address,
		CreatedAt: start,
	}
	remaining := time.Unix(int64(p.ExpiresAt), 0).Sub(start)
	if remaining <= 0 {
		return r.expire(ctx, p, attempt, start)
	}

	dctx, cancel := context.WithTimeout(ctx, remaining)
	ack, err := r.transport.Dispatch(dctx, p)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return r.expire(ctx, p, attempt, start)
		}
		r.logger.Warn("packet dispatch failed",
			"kind", p.Kind,
			"tx_id", p.TxID,
			"sequence", p.Sequence,
			"error", err.Error())
		attempt.Result = relaylog.ResultError
		attempt.Error = err.Error()
		r.finish(ctx, attempt, start)
		return relaylog.ResultError, nil
	}

	return r.acknowledge(ctx, p, ack, attempt, start)
}

func (r *Relayer) acknowledge(ctx context.Context, p packet.Packet, ack packet.Ack, attempt *relaylog.Attempt, start time.Time) (string, error) {
	if err := r.steps.Update(func(e *factory.Engine) error { return e.OnAck(p, ack) }); err != nil {
		return "", fmt.Errorf("relayer: settle %s %s: %w", p.Kind, p.TxID, err)
	}
	attempt.Result = relaylog.ResultAcked
	if !ack.Success {
		attempt.Result = relaylog.ResultFailed
	}
	attempt.Code = ack.Code
	attempt.Error = ack.Error
	attempt.Releases = len(ack.Releases)
	r.logger.Info("packet acknowledged",
		"kind", p.Kind,
		"tx_id", p.TxID,
		"status", attempt.Result,
		"code", ack.Code,
		logging.MaskField("requester", p.Sender.Address))
	r.finish(ctx, attempt, start)
	return attempt.Result, nil
}

// expire settles a packet whose deadline passed. A hub that executed it
// while the answer was lost still holds the ack, which wins over the
// timeout; when the hub cannot be asked the packet stays queued.
func (r *Relayer) expire(ctx context.Context, p packet.Packet, attempt *relaylog.Attempt, start time.Time) (string, error) {
	if checker, ok := r.transport.(StatusChecker); ok {
		ack, executed, err := checker.Status(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			r.logger.Warn("packet status lookup failed",
				"kind", p.Kind,
				"tx_id", p.TxID,
				"sequence", p.Sequence,
				"error", err.Error())
			attempt.Result = relaylog.ResultError
			attempt.Error = err.Error()
			r.finish(ctx, attempt, start)
			return relaylog.ResultError, nil
		}
		if executed {
			return r.acknowledge(ctx, p, ack, attempt, start)
		}
	}
	if err := r.steps.Update(func(e *factory.Engine) error { return e.OnTimeout(p) }); err != nil {
		return "", fmt.Errorf("relayer: expire %s %s: %w", p.Kind, p.TxID, err)
	}
	r.logger.Info("packet timed out", "kind", p.Kind, "tx_id", p.TxID, "sequence", p.Sequence)
	attempt.Result = relaylog.ResultTimeout
	r.finish(ctx, attempt, start)
	return relaylog.ResultTimeout, nil
}

func (r *Relayer) finish(ctx context.Context, attempt *relaylog.Attempt, start time.Time) {
	elapsed := r.nowFn().Sub(start)
	attempt.DurationMs = elapsed.Milliseconds()
	observability.Factory().ObserveRelay(attempt.Result, elapsed)
	if err := r.log.Record(context.WithoutCancel(ctx), attempt); err != nil {
		r.logger.Warn("relay log write failed", "tx_id", attempt.TxID, "error", err.Error())
	}
}
