// Package axonflow is the Go client for the AxonFlow governance platform.
// It routes application requests through the agent for policy approval,
// with transparent retry, response caching, and error classification.
package axonflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/getaxonflow/axonflow-go/internal/cache"
	"github.com/getaxonflow/axonflow-go/internal/retry"
	"github.com/getaxonflow/axonflow-go/internal/transport"
	"github.com/getaxonflow/axonflow-go/pkg/logging"
	"github.com/getaxonflow/axonflow-go/pkg/telemetry"
)

// Client is the governance client. One instance owns a connection pool and a
// response cache, released together by Close. All methods are safe for
// concurrent use and block until the call resolves or ctx is cancelled.
type Client struct {
	cfg       Config
	transport *transport.Transport
	retrier   *retry.Engine
	cache     *cache.Cache
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	closed    atomic.Bool

	traceCfg      *telemetry.TraceConfig
	traceShutdown func(context.Context) error
}

// Option customizes a Client beyond its Config.
type Option func(*Client)

// WithLogger sets the structured logger. Defaults to slog.Default, raised to
// debug output when Config.Debug is set.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics attaches Prometheus instrumentation to the client.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracing exports the client's request spans to an OTLP collector. The
// service name defaults to axonflow-client and the environment tag to the
// client's operating mode. Close flushes buffered spans. Without this option
// spans still propagate to the host application's tracer provider.
func WithTracing(tc telemetry.TraceConfig) Option {
	return func(c *Client) { c.traceCfg = &tc }
}

// New builds a client from cfg. The configuration is validated, normalized
// (trailing slashes stripped, orchestrator URL derived), and frozen: later
// changes to the caller's copy have no effect.
func New(cfg Config, opts ...Option) (*Client, error) {
	normalized, err := cfg.normalized()
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: normalized}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		if normalized.Debug {
			c.logger = logging.NewLogger(logging.Config{Level: "debug"})
		} else {
			c.logger = slog.Default()
		}
	}

	c.transport = transport.New(transport.Options{
		ClientID:           normalized.ClientID,
		ClientSecret:       normalized.ClientSecret,
		LicenseKey:         normalized.LicenseKey,
		InsecureSkipVerify: normalized.InsecureSkipVerify,
		Logger:             c.logger,
	})
	c.retrier = retry.New(retry.Config{
		Enabled:         normalized.Retry.Enabled,
		MaxAttempts:     normalized.Retry.MaxAttempts,
		InitialDelay:    normalized.Retry.InitialDelay,
		MaxDelay:        normalized.Retry.MaxDelay,
		ExponentialBase: normalized.Retry.ExponentialBase,
	}, c.logger)
	c.cache = cache.New(cache.Config{
		Enabled: normalized.Cache.Enabled,
		TTL:     normalized.Cache.TTL,
		MaxSize: normalized.Cache.MaxSize,
	}, c.logger, c.metrics)

	if c.traceCfg != nil {
		tc := *c.traceCfg
		if tc.Environment == "" {
			tc.Environment = string(normalized.Mode)
		}
		shutdown, err := telemetry.SetupProvider(context.Background(), tc)
		if err != nil {
			return nil, fmt.Errorf("setup tracing: %w", err)
		}
		c.traceShutdown = shutdown
	}

	return c, nil
}

// Config returns the frozen configuration the client runs with.
func (c *Client) Config() Config {
	return c.cfg
}

// Close releases the connection pool and drops the response cache. The
// client must not be used afterwards.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.transport.Close()
	c.cache.Clear()
	if c.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.traceShutdown(ctx); err != nil {
			c.logger.Warn("trace flush on close failed", "error", err)
		}
	}
	return nil
}

// HealthCheck reports whether the agent is reachable and healthy. Any
// transport failure, non-2xx status, or non-healthy payload yields false;
// errors are logged, never returned, so callers can gate startup on a bool.
func (c *Client) HealthCheck(ctx context.Context) bool {
	payload, err := c.do(ctx, operation{
		name:    "health_check",
		method:  http.MethodGet,
		url:     c.cfg.AgentURL + "/health",
		timeout: c.cfg.Timeout,
	})
	if err != nil {
		c.logger.Debug("health check failed", "error", err)
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &health); err != nil {
		c.logger.Debug("health check returned malformed body", "error", err)
		return false
	}
	return health.Status == "healthy"
}

// QueryRequest is a governed query submitted on behalf of an end user.
type QueryRequest struct {
	UserToken   string
	Query       string
	RequestType string
	Context     map[string]any
}

// ExecuteQuery routes a query through governance and returns the agent's
// response. Identical requests within the cache TTL are served from the
// response cache without a network call. A policy block is returned as a
// *PolicyViolationError, never as a successful response.
func (c *Client) ExecuteQuery(ctx context.Context, req QueryRequest) (*ClientResponse, error) {
	payload, err := c.governed(ctx, governedCall{
		name: "execute_query",
		request: clientRequest{
			Query:       req.Query,
			UserToken:   req.UserToken,
			ClientID:    c.cfg.ClientID,
			RequestType: req.RequestType,
			Context:     req.Context,
		},
		useCache: true,
		retry:    true,
		timeout:  c.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var resp ClientResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return &resp, nil
}

// governedCall describes one request against the agent's governed endpoint.
type governedCall struct {
	name     string
	request  clientRequest
	useCache bool
	retry    bool
	timeout  time.Duration
}

// governed runs a call against POST /api/request, deduplicating through the
// response cache when asked. Only successful payloads are cached: blocked
// and failed responses are classified into errors before storage.
func (c *Client) governed(ctx context.Context, call governedCall) ([]byte, error) {
	op := operation{
		name:    call.name,
		method:  http.MethodPost,
		url:     c.cfg.AgentURL + "/api/request",
		body:    call.request,
		retry:   call.retry,
		timeout: call.timeout,
	}

	compute := func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, op)
	}

	if !call.useCache {
		return compute(ctx)
	}

	fingerprint := cache.Fingerprint(call.name, map[string]any{
		"user_token":   call.request.UserToken,
		"query":        call.request.Query,
		"request_type": call.request.RequestType,
		"context":      call.request.Context,
	})
	return c.cache.GetOrCompute(ctx, fingerprint, compute)
}

// operation is one HTTP call with its classification and retry behavior.
type operation struct {
	name    string
	method  string
	url     string
	body    any
	timeout time.Duration

	// retry opts the call into the backoff engine. Only read-like or
	// naturally idempotent operations should set it.
	retry bool

	// allowBlocked skips the body block probe for endpoints where a denial
	// is payload, not an error (pre-check, replay reads).
	allowBlocked bool

	// notFound, when set, maps a 404 to a typed not-found failure instead
	// of a generic client error.
	notFound *NotFoundError
}

// do executes one operation through retry, classification, and telemetry.
func (c *Client) do(ctx context.Context, op operation) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	var (
		payload  []byte
		status   int
		attempts int
		started  = time.Now()
	)

	attempt := func(ctx context.Context) error {
		attempts++
		if op.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, op.timeout)
			defer cancel()
		}

		res, err := c.transport.Do(ctx, op.method, op.url, op.body)
		if err != nil {
			return &ConnectionError{URL: op.url, Err: err}
		}
		status = res.StatusCode

		if op.notFound != nil && res.StatusCode == http.StatusNotFound {
			return op.notFound
		}
		if err := classifyOp(res, op.allowBlocked); err != nil {
			return err
		}
		payload = res.Body
		return nil
	}

	var err error
	if op.retry {
		err = c.retrier.Do(ctx, attempt)
	} else {
		err = attempt(ctx)
	}

	c.record(ctx, op.name, status, attempts, time.Since(started), err)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) record(ctx context.Context, opName string, status, attempts int, duration time.Duration, err error) {
	outcome := telemetry.OutcomeSuccess
	switch {
	case IsPolicyViolation(err):
		outcome = telemetry.OutcomeBlocked
		c.metrics.ObserveBlock(opName)
		var pv *PolicyViolationError
		errors.As(err, &pv)
		telemetry.RecordPolicyEvent(ctx, true, pv.BlockReason, len(pv.Policies))
	case err != nil:
		outcome = telemetry.OutcomeError
	}

	label := outcome
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.metrics.ObserveRequest(opName, label, duration)
	c.metrics.ObserveRetries(opName, attempts-1)

	telemetry.RecordRequestMetrics(ctx, telemetry.RequestMetrics{
		Operation:  opName,
		Outcome:    outcome,
		StatusCode: status,
		Duration:   duration,
		Attempts:   attempts,
	})
}

func classifyOp(res *transport.Result, allowBlocked bool) error {
	if allowBlocked {
		return classifyStatus(res)
	}
	return classify(res)
}
