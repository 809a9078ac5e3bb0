package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	coreerrors "crosshub/core/errors"
	"crosshub/core/packet"
	"crosshub/gateway/middleware"
)

// HubConfig describes how to reach hubd.
type HubConfig struct {
	Endpoint string
	// Subject is the identity relay tokens are issued for.
	Subject    string
	HMACSecret string
	Issuer     string
	Audience   string
	Timeout    time.Duration
}

// HTTPTransport dispatches packets to hubd's packet endpoint with a relay
// scoped bearer token.
type HTTPTransport struct {
	target     string
	status     string
	cfg        HubConfig
	httpClient *http.Client
}

var (
	_ packet.Transport = (*HTTPTransport)(nil)
	_ StatusChecker    = (*HTTPTransport)(nil)
)

const tokenTTL = 5 * time.Minute

// NewHTTPTransport constructs a transport for cfg.Endpoint.
func NewHTTPTransport(cfg HubConfig) (*HTTPTransport, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"))
	if err != nil {
		return nil, fmt.Errorf("relayer: parse hub endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("relayer: hub endpoint %q must be absolute", cfg.Endpoint)
	}
	if strings.TrimSpace(cfg.HMACSecret) == "" {
		return nil, fmt.Errorf("relayer: hub secret required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPTransport{
		target: base.JoinPath("v1", "packets").String(),
		status: base.JoinPath("v1", "packets", "status").String(),
		cfg:    cfg,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// Dispatch posts p and decodes the hub's ack. Any non-200 answer is an
// ErrTransport failure; the packet stays in the outbox.
func (t *HTTPTransport) Dispatch(ctx context.Context, p packet.Packet) (packet.Ack, error) {
	status, failure, payload, err := t.post(ctx, t.target, p)
	if err != nil {
		return packet.Ack{}, err
	}
	if status != http.StatusOK {
		return packet.Ack{}, hubError(status, failure)
	}
	return decodeAck(payload)
}

// Status asks the hub for the ack it stored for p. The boolean is false when
// the hub has not executed the packet.
func (t *HTTPTransport) Status(ctx context.Context, p packet.Packet) (packet.Ack, bool, error) {
	status, failure, payload, err := t.post(ctx, t.status, p)
	if err != nil {
		return packet.Ack{}, false, err
	}
	switch {
	case status == http.StatusOK:
		ack, err := decodeAck(payload)
		return ack, err == nil, err
	case status == http.StatusNotFound && failure.Code == "not_executed":
		return packet.Ack{}, false, nil
	default:
		return packet.Ack{}, false, hubError(status, failure)
	}
}

type hubFailure struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (t *HTTPTransport) post(ctx context.Context, target string, p packet.Packet) (int, hubFailure, []byte, error) {
	var failure hubFailure
	body, err := json.Marshal(p)
	if err != nil {
		return 0, failure, nil, err
	}
	token, err := middleware.IssueToken(t.cfg.HMACSecret, t.cfg.Issuer, t.cfg.Audience, t.cfg.Subject, []string{middleware.ScopeRelay}, tokenTTL)
	if err != nil {
		return 0, failure, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, failure, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, failure, nil, fmt.Errorf("%w: %w", coreerrors.ErrTransport, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, failure, nil, fmt.Errorf("%w: read ack: %w", coreerrors.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = json.Unmarshal(payload, &failure)
	}
	return resp.StatusCode, failure, payload, nil
}

func hubError(status int, failure hubFailure) error {
	msg := strings.TrimSpace(failure.Error)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%w: hub answered %d: %s", coreerrors.ErrTransport, status, msg)
}

func decodeAck(payload []byte) (packet.Ack, error) {
	var ack packet.Ack
	if err := json.Unmarshal(payload, &ack); err != nil {
		return packet.Ack{}, fmt.Errorf("%w: decode ack: %w", coreerrors.ErrTransport, err)
	}
	return ack, nil
}
