// Package provider is the client for the dropshipping provider's REST API.
//
// Every call goes through Executor, which owns the request pipeline:
// drain wait, global throttle, token, dispatch, classification and the
// bounded retry policy. Endpoint methods on Client only shape payloads.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"dropship-gateway/internal/metrics"
	"dropship-gateway/internal/model"
	"dropship-gateway/internal/throttle"
)

const (
	// RequestTimeout bounds one HTTP round trip.
	RequestTimeout = 30 * time.Second

	// Each failure class gets exactly one extra attempt per call.
	maxRateLimitRetries = 1
	maxAuthRetries      = 1

	// maxResponseBytes caps how much of a response body we read.
	maxResponseBytes = 8 << 20
)

// TokenSource supplies the access token for authenticated calls.
// Implemented by token.Lifecycle.
type TokenSource interface {
	EnsureValidToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
	Credentials(ctx context.Context) (model.Credentials, error)
}

// ExecutorConfig wires an Executor.
type ExecutorConfig struct {
	// BaseURL includes the versioned API path, e.g. https://host/api2.0/v1.
	BaseURL    string
	HTTPClient *http.Client
	// Gate is the process-wide throttle. Required.
	Gate *throttle.Gate
	// Tokens is nil for the unauthenticated auth endpoints.
	Tokens TokenSource
	// Tier applies when Tokens is nil; otherwise the credential tier wins.
	Tier   model.Tier
	Logger *slog.Logger
}

// Executor issues provider calls. Safe for concurrent use.
type Executor struct {
	baseURL    string
	httpClient *http.Client
	gate       *throttle.Gate
	tokens     TokenSource
	tier       model.Tier
	logger     *slog.Logger

	drainMu sync.Mutex
	drained chan struct{} // non-nil while a Batch runs; closed when it ends
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("throttle gate is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tier == "" {
		cfg.Tier = model.TierFree
	}
	return &Executor{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		gate:       cfg.Gate,
		tokens:     cfg.Tokens,
		tier:       cfg.Tier,
		logger:     cfg.Logger,
	}, nil
}

// =============================================================================
// DRAIN QUEUE
// =============================================================================
//
// Batch callers (catalog import) issue bursts of related calls. While a batch
// runs, calls from other callers wait until it drains so a burst is not
// interleaved with unrelated traffic. Calls made with the ctx handed to the
// batch function skip the wait, otherwise the batch would block on itself.
// =============================================================================

type batchKey struct{}

// Batch runs fn exclusively. Batches from different callers run one at a time.
func (e *Executor) Batch(ctx context.Context, fn func(ctx context.Context) error) error {
	if inBatch(ctx) {
		return fn(ctx)
	}

	for {
		e.drainMu.Lock()
		wait := e.drained
		if wait == nil {
			e.drained = make(chan struct{})
			e.drainMu.Unlock()
			break
		}
		e.drainMu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	defer func() {
		e.drainMu.Lock()
		close(e.drained)
		e.drained = nil
		e.drainMu.Unlock()
	}()

	return fn(context.WithValue(ctx, batchKey{}, true))
}

func inBatch(ctx context.Context) bool {
	v, _ := ctx.Value(batchKey{}).(bool)
	return v
}

// waitForDrain blocks while another caller's batch is running.
func (e *Executor) waitForDrain(ctx context.Context) error {
	if inBatch(ctx) {
		return nil
	}
	for {
		e.drainMu.Lock()
		wait := e.drained
		e.drainMu.Unlock()
		if wait == nil {
			return nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// =============================================================================
// EXECUTE
// =============================================================================

// Execute performs one logical provider call and decodes the envelope's data
// into out (if non-nil). GET payloads must be url.Values and go in the query
// string; other methods send payload as a JSON body.
//
// Rate-limit and auth failures are retried once each. Anything else, or a
// second failure of the same class, is returned as *model.UpstreamError.
// ctx bounds the waits (drain, throttle, backoff); a dispatched HTTP call
// runs to completion or RequestTimeout regardless of ctx.
func (e *Executor) Execute(ctx context.Context, method, endpoint string, payload, out any) (*Envelope, error) {
	if err := e.waitForDrain(ctx); err != nil {
		return nil, err
	}

	rateLimitRetries, authRetries := 0, 0
	for attempt := 1; ; attempt++ {
		if _, err := e.gate.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("waiting for provider throttle: %w", err)
		}

		accessToken, tier, platformToken, err := e.account(ctx)
		if err != nil {
			return nil, err
		}

		env, upErr := e.dispatch(ctx, method, endpoint, payload, accessToken, platformToken)
		if upErr == nil {
			if out != nil && env.hasData() {
				if err := json.Unmarshal(env.Data, out); err != nil {
					metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "decode").Inc()
					return nil, &model.UpstreamError{
						Kind:       model.KindUpstream,
						Endpoint:   endpoint,
						HTTPStatus: http.StatusOK,
						Code:       env.Code,
						Message:    "malformed response data",
						RequestID:  env.RequestID,
						Err:        err,
					}
				}
			}
			if delay := throttle.ExtraDelay(tier); delay > 0 {
				_ = e.gate.Clock().Sleep(ctx, delay)
			}
			return env, nil
		}

		switch {
		case upErr.Kind == model.KindRateLimit && rateLimitRetries < maxRateLimitRetries:
			rateLimitRetries++
			backoff := throttle.RateLimitBackoff(tier)
			metrics.ProviderRetriesTotal.WithLabelValues(string(model.KindRateLimit)).Inc()
			e.logger.Warn("provider rate limited, backing off",
				"endpoint", endpoint,
				"attempt", attempt,
				"tier", tier,
				"backoff", backoff,
				"request_id", upErr.RequestID,
			)
			if err := e.gate.Clock().Sleep(ctx, backoff); err != nil {
				return nil, fmt.Errorf("backing off after rate limit: %w", err)
			}

		case upErr.Kind == model.KindAuth && authRetries < maxAuthRetries && e.tokens != nil:
			authRetries++
			metrics.ProviderRetriesTotal.WithLabelValues(string(model.KindAuth)).Inc()
			e.logger.Warn("provider rejected token, refreshing",
				"endpoint", endpoint,
				"attempt", attempt,
				"code", upErr.Code,
				"request_id", upErr.RequestID,
			)
			if _, err := e.tokens.ForceRefresh(ctx); err != nil {
				return nil, err
			}

		default:
			return nil, upErr
		}
	}
}

// account resolves the token and tier settings for one attempt.
func (e *Executor) account(ctx context.Context) (accessToken string, tier model.Tier, platformToken string, err error) {
	if e.tokens == nil {
		return "", e.tier, "", nil
	}
	accessToken, err = e.tokens.EnsureValidToken(ctx)
	if err != nil {
		return "", "", "", err
	}
	creds, err := e.tokens.Credentials(ctx)
	if err != nil {
		return "", "", "", err
	}
	return accessToken, creds.Tier, creds.PlatformToken, nil
}

// dispatch sends one HTTP request and classifies the outcome.
// Returns either a successful envelope or a classified error, never both.
func (e *Executor) dispatch(ctx context.Context, method, endpoint string, payload any, accessToken, platformToken string) (*Envelope, *model.UpstreamError) {
	start := time.Now()
	fail := func(kind model.UpstreamKind, status int, env *Envelope, msg string, cause error) *model.UpstreamError {
		metrics.ObserveProvider(endpoint, string(kind), time.Since(start))
		ue := &model.UpstreamError{Kind: kind, Endpoint: endpoint, HTTPStatus: status, Message: msg, Err: cause}
		if env != nil {
			ue.Code = env.Code
			ue.RequestID = env.RequestID
			if env.Message != "" {
				ue.Message = env.Message
			}
		}
		return ue
	}

	// Detached from caller cancellation: once dispatched, the call completes.
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RequestTimeout)
	defer cancel()

	req, err := e.newRequest(reqCtx, method, endpoint, payload)
	if err != nil {
		return nil, fail(model.KindUpstream, 0, nil, "building request", err)
	}
	if accessToken != "" {
		req.Header.Set("CJ-Access-Token", accessToken)
	}
	if platformToken != "" {
		req.Header.Set("platformToken", platformToken)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fail(model.KindUpstream, 0, nil, "provider unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fail(model.KindUpstream, resp.StatusCode, nil, "reading response", err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(body, &env)
	var envp *Envelope
	if decodeErr == nil {
		envp = &env
	}

	kind := classify(resp.StatusCode, envp)
	if kind == model.KindRateLimit && resp.StatusCode == http.StatusTooManyRequests {
		e.logger.Debug("provider rate limit headers",
			"endpoint", endpoint,
			"ratelimit", parseRateLimitHeader(resp.Header),
		)
	}
	if kind != "" {
		return nil, fail(kind, resp.StatusCode, envp, http.StatusText(resp.StatusCode), nil)
	}
	if decodeErr != nil {
		return nil, fail(model.KindUpstream, resp.StatusCode, nil, "malformed response", decodeErr)
	}
	if !env.OK() {
		return nil, fail(model.KindUpstream, resp.StatusCode, envp, "provider reported failure", nil)
	}

	metrics.ObserveProvider(endpoint, "ok", time.Since(start))
	return &env, nil
}

// classify maps a response to a failure class, or "" when nothing is wrong
// at the status/code level. Business codes win over a 2xx status.
func classify(status int, env *Envelope) model.UpstreamKind {
	if status == http.StatusTooManyRequests || (env != nil && env.Code == CodeTooManyCalls) {
		return model.KindRateLimit
	}
	if status == http.StatusUnauthorized || (env != nil && (env.Code == CodeTokenInvalid || env.Code == CodeTokenExpired)) {
		return model.KindAuth
	}
	if status < 200 || status >= 300 {
		return model.KindUpstream
	}
	return ""
}

func (e *Executor) newRequest(ctx context.Context, method, endpoint string, payload any) (*http.Request, error) {
	target := e.baseURL + endpoint

	if method == http.MethodGet {
		if payload != nil {
			q, ok := payload.(url.Values)
			if !ok {
				return nil, errors.New("GET payload must be url.Values")
			}
			if enc := q.Encode(); enc != "" {
				target += "?" + enc
			}
		}
		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling payload: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
