// Package upstream is the REST client for the marketplace backend API. It
// unwraps the {success, <plural>, total} list envelope and the
// {success, data, message} mutation envelope into raw records.
package upstream

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sourcing-hub/marketplace/internal/observability"
)

// RawRecord is an undecoded upstream record.
type RawRecord = map[string]any

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// AuthBypassRoutes lists path prefixes for which a 401 is converted into
	// an empty successful response. Empty disables the bypass.
	AuthBypassRoutes []string
	HTTPClient       *http.Client
	Logger           *slog.Logger
	Metrics          *observability.Metrics
}

// Client talks to the upstream marketplace API.
type Client struct {
	base    *url.URL
	http    *http.Client
	bypass  []string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream: invalid base url %q", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bypass := make([]string, 0, len(cfg.AuthBypassRoutes))
	for _, route := range cfg.AuthBypassRoutes {
		if route = strings.TrimSpace(route); route != "" {
			bypass = append(bypass, route)
		}
	}
	if len(bypass) > 0 {
		logger.Warn("upstream auth bypass enabled", slog.Any("routes", bypass))
	}
	return &Client{base: base, http: httpClient, bypass: bypass, logger: logger, metrics: cfg.Metrics}, nil
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx for forwarding.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token attached by WithToken.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// CallerKey is a short stable digest of the caller's token, safe to embed in
// cache and Redis keys. Anonymous callers share one key.
func CallerKey(ctx context.Context) string {
	sum := sha256.Sum256([]byte(TokenFrom(ctx)))
	return hex.EncodeToString(sum[:8])
}

type request struct {
	method         string
	path           string
	query          url.Values
	body           any
	idempotencyKey string
}

func (r request) route() string {
	return r.method + " " + r.path
}

// do performs the request and returns the decoded envelope.
func (c *Client) do(ctx context.Context, req request, label string) (map[string]any, error) {
	start := time.Now()
	body, err := c.roundTrip(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
	}
	c.metrics.ObserveUpstream(label, outcome, time.Since(start))
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, req request) (map[string]any, error) {
	u := c.base.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var payload io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("upstream: encode %s: %w", req.route(), err)
		}
		payload = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("upstream: build %s: %w", req.route(), err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		httpReq.Header.Set("X-Request-ID", reqID)
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.idempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, req.route(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, req.route(), err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if c.bypassed(req.path) {
			c.logger.Warn("upstream auth bypass applied",
				slog.String("route", req.route()),
				slog.Int("status", resp.StatusCode))
			return map[string]any{"success": true}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, req.route())
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.route())
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnavailable, req.route(), resp.StatusCode)
	}

	envelope, decodeErr := decodeEnvelope(data)
	if resp.StatusCode >= 400 {
		msg := ""
		if decodeErr == nil {
			msg = stringField(envelope, "message")
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, req.route(), decodeErr)
	}
	if ok, _ := envelope["success"].(bool); !ok {
		if msg := stringField(envelope, "message"); msg != "" {
			return nil, &APIError{Status: resp.StatusCode, Message: msg}
		}
		return nil, fmt.Errorf("%w: %s: success flag not set", ErrMalformed, req.route())
	}
	return envelope, nil
}

func (c *Client) bypassed(path string) bool {
	for _, prefix := range c.bypass {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func decodeEnvelope(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var envelope map[string]any
	if err := dec.Decode(&envelope); err != nil {
		return nil, err
	}
	if envelope == nil {
		return nil, errors.New("null body")
	}
	return envelope, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func outcomeOf(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return "rejected"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unavailable"
	}
}

// records extracts the record list stored under key, falling back to
// data or data.<key>. A missing list is empty; a list of the wrong shape is
// malformed.
func records(envelope map[string]any, key string) ([]RawRecord, error) {
	candidates := []any{envelope[key]}
	if data, ok := envelope["data"].(map[string]any); ok {
		candidates = append(candidates, data[key])
	} else {
		candidates = append(candidates, envelope["data"])
	}
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		items, ok := candidate.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a list", ErrMalformed, key)
		}
		out := make([]RawRecord, 0, len(items))
		for _, item := range items {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s contains a non-object", ErrMalformed, key)
			}
			out = append(out, rec)
		}
		return out, nil
	}
	return []RawRecord{}, nil
}

// record extracts a single object stored under key, falling back to data.
func record(envelope map[string]any, key string) (RawRecord, error) {
	for _, candidate := range []any{envelope[key], envelope["data"]} {
		if candidate == nil {
			continue
		}
		rec, ok := candidate.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an object", ErrMalformed, key)
		}
		if nested, ok := rec[key].(map[string]any); ok {
			return nested, nil
		}
		return rec, nil
	}
	return RawRecord{}, nil
}

func total(envelope map[string]any, fallback int) int {
	switch v := envelope["total"].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case float64:
		return int(v)
	}
	return fallback
}
