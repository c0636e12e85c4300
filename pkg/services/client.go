package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// IdempotencyHeader carries the per-entry key on create requests.
const IdempotencyHeader = "Idempotency-Key"

const maxErrorBody = 4 << 10

// Client implements every backend interface against a single JSON API.
type Client struct {
	baseURL       *url.URL
	token         string
	http          *http.Client
	maxRetries    uint64
	retryInterval time.Duration
	userAgent     string
}

var (
	_ LeadService        = (*Client)(nil)
	_ ApplicationService = (*Client)(nil)
	_ PaymentService     = (*Client)(nil)
	_ EmailService       = (*Client)(nil)
	_ DecisionService    = (*Client)(nil)
	_ CampaignService    = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithRetry bounds retries of retry-safe calls. max 0 disables retrying.
func WithRetry(max uint64, interval time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		if interval > 0 {
			c.retryInterval = interval
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNotConfigured
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("services: parse base url: %w", err)
	}
	c := &Client{
		baseURL:       parsed,
		http:          &http.Client{Timeout: 15 * time.Second},
		maxRetries:    2,
		retryInterval: 250 * time.Millisecond,
		userAgent:     "go-formwizard",
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) CreateLead(ctx context.Context, req LeadRequest) (LeadResponse, error) {
	var out LeadResponse
	err := c.do(ctx, call{
		method:         http.MethodPost,
		path:           "leads",
		body:           req,
		out:            &out,
		idempotencyKey: req.IdempotencyKey,
		retry:          req.IdempotencyKey != "",
	})
	return out, err
}

func (c *Client) CreateApplication(ctx context.Context, req ApplicationRequest) (ApplicationResponse, error) {
	var out ApplicationResponse
	err := c.do(ctx, call{
		method:         http.MethodPost,
		path:           "applications",
		body:           req,
		out:            &out,
		idempotencyKey: req.IdempotencyKey,
		retry:          req.IdempotencyKey != "",
	})
	return out, err
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	var out CheckoutResponse
	err := c.do(ctx, call{method: http.MethodPost, path: "payments/checkout-sessions", body: req, out: &out})
	if err == nil && strings.TrimSpace(out.URL) == "" {
		err = errors.New("services: checkout session without url")
	}
	return out, err
}

func (c *Client) Send(ctx context.Context, msg EmailMessage) error {
	return c.do(ctx, call{method: http.MethodPost, path: "emails", body: msg})
}

// GetPreview posts to endpoint, which is either absolute or relative to the
// base URL.
func (c *Client) GetPreview(ctx context.Context, endpoint string, req PreviewRequest) (DecisionPreview, error) {
	var out DecisionPreview
	if strings.TrimSpace(endpoint) == "" {
		return out, errors.New("services: decision endpoint is required")
	}
	err := c.do(ctx, call{method: http.MethodPost, path: endpoint, body: req, out: &out, retry: true})
	return out, err
}

func (c *Client) Assign(ctx context.Context, campaignID, leadID int64) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   fmt.Sprintf("campaigns/%d/leads", campaignID),
		body:   map[string]int64{"lead_id": leadID},
		retry:  true,
	})
}

type call struct {
	method         string
	path           string
	body           any
	out            any
	idempotencyKey string
	retry          bool
}

func (c *Client) do(ctx context.Context, rc call) error {
	payload, err := json.Marshal(rc.body)
	if err != nil {
		return fmt.Errorf("services: encode %s: %w", rc.path, err)
	}
	target, err := c.resolve(rc.path)
	if err != nil {
		return err
	}

	op := func() error {
		err := c.roundTrip(ctx, rc, target, payload)
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	if !rc.retry || c.maxRetries == 0 {
		return op()
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryInterval), c.maxRetries),
		ctx,
	)
	return backoff.Retry(op, policy)
}

func (c *Client) roundTrip(ctx context.Context, rc call, target string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, rc.method, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("services: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if rc.idempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, rc.idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("services: %s %s: %w", rc.method, rc.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if rc.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(rc.out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("services: decode %s: %w", rc.path, err)
	}
	return nil
}

func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("services: parse path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	ref.Path = strings.TrimLeft(ref.Path, "/")
	return c.baseURL.ResolveReference(ref).String(), nil
}
