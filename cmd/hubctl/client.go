package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"crosshub/config"
	"crosshub/gateway/middleware"
	"crosshub/gateway/routes"
)

// apiError is a non-2xx answer from hubd or factoryd.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s (http %d)", e.Code, e.Message, e.Status)
}

type client struct {
	cfg         *config.Config
	http        *http.Client
	historyPath string
}

func newClient(cfg *config.Config, historyPath string) *client {
	return &client{
		cfg:         cfg,
		historyPath: historyPath,
		http: &http.Client{
			Timeout:   cfg.Timeout(),
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// call sends body as JSON to base+path and decodes the answer into out.
// Scopes, when present, are minted into a bearer token for the profile
// subject.
func (c *client) call(ctx context.Context, method, base, path string, body, out interface{}, scopes ...string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if len(scopes) > 0 {
		token, err := c.token(scopes)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body routes.ErrorBody
		if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
			return &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return &apiError{Status: resp.StatusCode, Code: body.Code, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *client) token(scopes []string) (string, error) {
	if strings.TrimSpace(c.cfg.Subject) == "" {
		return "", fmt.Errorf("profile Subject must be set for authenticated commands")
	}
	secret, err := c.cfg.Secret()
	if err != nil {
		return "", err
	}
	return middleware.IssueToken(secret, c.cfg.Issuer, c.cfg.Audience, c.cfg.Subject, scopes, c.cfg.TokenTTL())
}

func (c *client) hub(ctx context.Context, method, path string, body, out interface{}, scopes ...string) error {
	return c.call(ctx, method, c.cfg.HubURL, path, body, out, scopes...)
}

func (c *client) factory(ctx context.Context, method, path string, body, out interface{}, scopes ...string) error {
	return c.call(ctx, method, c.cfg.FactoryURL, path, body, out, scopes...)
}
