package token

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dropship-gateway/internal/metrics"
	"dropship-gateway/internal/model"
)

const (
	// StalenessMargin: a token this close to expiry is treated as expired so a
	// dispatched call never races the provider's own expiry check.
	StalenessMargin = time.Hour

	// LoginValidity is the provider-documented access token lifetime, used when
	// the auth response carries no expiry of its own.
	LoginValidity = 15 * 24 * time.Hour
)

// Authenticator exchanges credentials or a refresh token for a token pair.
// Implemented by provider.AuthAPI. A zero ExpiresAt means "use LoginValidity".
type Authenticator interface {
	GetAccessToken(ctx context.Context, email, apiKey string) (*model.TokenState, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*model.TokenState, error)
}

// PersistResult is the outcome of writing a token pair back to the Store.
// Persistence never fails the login or refresh that produced the token.
type PersistResult struct {
	Saved bool
	Err   error
	At    time.Time
}

// Lifecycle decides whether to reuse, reload, refresh, or log in.
//
// Concurrent callers may each decide to refresh; the last one to finish wins.
// Any valid token works for the provider, so the lost update is harmless.
type Lifecycle struct {
	store  Store
	auth   Authenticator
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	creds       *model.Credentials
	current     *model.TokenState
	lastPersist PersistResult
}

// NewLifecycle creates a Lifecycle. A nil logger means slog.Default().
func NewLifecycle(store Store, auth Authenticator, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		store:  store,
		auth:   auth,
		logger: logger,
		now:    time.Now,
	}
}

// Credentials returns the session credentials, loading them on first use.
// Missing or disabled credentials yield a ConfigError.
func (l *Lifecycle) Credentials(ctx context.Context) (model.Credentials, error) {
	l.mu.Lock()
	cached := l.creds
	l.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	creds, err := l.store.LoadCredentials(ctx)
	if err != nil {
		return model.Credentials{}, err
	}
	if !creds.Enabled {
		return model.Credentials{}, model.NewConfigError("provider integration is disabled")
	}
	if !creds.Usable() {
		return model.Credentials{}, model.NewConfigError("provider email and API key are not configured")
	}
	if creds.Tier == "" {
		creds.Tier = model.TierFree
	}

	l.mu.Lock()
	l.creds = &creds
	l.mu.Unlock()
	return creds, nil
}

// EnsureValidToken returns an access token valid for more than StalenessMargin.
// Order: in-memory token, persisted token, refresh, login.
func (l *Lifecycle) EnsureValidToken(ctx context.Context) (string, error) {
	if _, err := l.Credentials(ctx); err != nil {
		return "", err
	}

	if cur := l.snapshot(); cur.ValidFor(l.now(), StalenessMargin) {
		metrics.TokenOperationsTotal.WithLabelValues("reuse", "ok").Inc()
		return cur.AccessToken, nil
	}

	persisted, err := l.store.LoadToken(ctx)
	if err != nil {
		l.logger.Warn("loading persisted provider token failed", "error", err)
	} else if persisted.ValidFor(l.now(), StalenessMargin) {
		l.adopt(persisted)
		metrics.TokenOperationsTotal.WithLabelValues("reload", "ok").Inc()
		l.logger.Debug("adopted persisted provider token", "expires_at", persisted.ExpiresAt)
		return persisted.AccessToken, nil
	}

	state, err := l.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return state.AccessToken, nil
}

// Login exchanges email and API key for a new token pair and persists it.
func (l *Lifecycle) Login(ctx context.Context) (model.TokenState, error) {
	creds, err := l.Credentials(ctx)
	if err != nil {
		return model.TokenState{}, err
	}

	got, err := l.auth.GetAccessToken(ctx, creds.Email, creds.APIKey)
	if err == nil && (got == nil || got.AccessToken == "") {
		err = errors.New("empty access token in login response")
	}
	if err != nil {
		metrics.TokenOperationsTotal.WithLabelValues("login", "error").Inc()
		return model.TokenState{}, loginError(err)
	}

	state := l.stamp(*got)
	l.adopt(&state)
	metrics.TokenOperationsTotal.WithLabelValues("login", "ok").Inc()
	l.logger.Info("provider login succeeded", "expires_at", state.ExpiresAt)

	l.persist(ctx, state)
	return state, nil
}

// Refresh exchanges the refresh token for a new pair. Without a refresh token,
// or when the exchange fails for any reason, it falls back to Login.
func (l *Lifecycle) Refresh(ctx context.Context) (model.TokenState, error) {
	refreshToken := l.refreshToken(ctx)
	if refreshToken == "" {
		l.logger.Debug("no provider refresh token, logging in")
		return l.Login(ctx)
	}

	got, err := l.auth.RefreshAccessToken(ctx, refreshToken)
	if err == nil && (got == nil || got.AccessToken == "") {
		err = errors.New("empty access token in refresh response")
	}
	if err != nil {
		metrics.TokenOperationsTotal.WithLabelValues("refresh", "error").Inc()
		l.logger.Warn("provider token refresh failed, logging in", "error", err)
		return l.Login(ctx)
	}

	state := l.stamp(*got)
	if state.RefreshToken == "" {
		state.RefreshToken = refreshToken
	}
	l.adopt(&state)
	metrics.TokenOperationsTotal.WithLabelValues("refresh", "ok").Inc()
	l.logger.Info("provider token refreshed", "expires_at", state.ExpiresAt)

	l.persist(ctx, state)
	return state, nil
}

// ForceRefresh discards the current access token after the provider rejected
// it and returns a replacement. The refresh token is kept for the exchange.
func (l *Lifecycle) ForceRefresh(ctx context.Context) (string, error) {
	l.mu.Lock()
	if l.current != nil {
		l.current = &model.TokenState{RefreshToken: l.current.RefreshToken}
	}
	l.mu.Unlock()

	state, err := l.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return state.AccessToken, nil
}

// Current returns a copy of the in-memory token pair, or nil.
func (l *Lifecycle) Current() *model.TokenState {
	return l.snapshot()
}

// LastPersist returns the outcome of the most recent save attempt.
func (l *Lifecycle) LastPersist() PersistResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastPersist
}

func (l *Lifecycle) snapshot() *model.TokenState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	cp := *l.current
	return &cp
}

func (l *Lifecycle) adopt(state *model.TokenState) {
	cp := *state
	l.mu.Lock()
	l.current = &cp
	l.mu.Unlock()
}

// refreshToken prefers the in-memory refresh token, then the persisted one.
func (l *Lifecycle) refreshToken(ctx context.Context) string {
	if cur := l.snapshot(); cur != nil && cur.RefreshToken != "" {
		return cur.RefreshToken
	}
	persisted, err := l.store.LoadToken(ctx)
	if err != nil || persisted == nil {
		return ""
	}
	return persisted.RefreshToken
}

func (l *Lifecycle) stamp(state model.TokenState) model.TokenState {
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = l.now().Add(LoginValidity)
	}
	return state
}

func (l *Lifecycle) persist(ctx context.Context, state model.TokenState) PersistResult {
	res := PersistResult{At: l.now()}
	if err := l.store.SaveToken(ctx, state); err != nil {
		res.Err = err
		metrics.TokenOperationsTotal.WithLabelValues("persist", "error").Inc()
		l.logger.Warn("persisting provider token failed, continuing with in-memory token", "error", err)
	} else {
		res.Saved = true
		metrics.TokenOperationsTotal.WithLabelValues("persist", "ok").Inc()
	}

	l.mu.Lock()
	l.lastPersist = res
	l.mu.Unlock()
	return res
}

// loginError keeps rate-limit and config failures recognizable and reports
// everything else as an auth failure.
func loginError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) || model.IsRateLimited(err) {
		return err
	}
	var upErr *model.UpstreamError
	if errors.As(err, &upErr) && upErr.Kind == model.KindAuth {
		return err
	}
	ue := &model.UpstreamError{
		Kind:     model.KindAuth,
		Endpoint: "authentication/getAccessToken",
		Message:  "provider login failed",
		Err:      err,
	}
	if upErr != nil {
		ue.HTTPStatus = upErr.HTTPStatus
		ue.Code = upErr.Code
		ue.RequestID = upErr.RequestID
		if upErr.Message != "" {
			ue.Message = upErr.Message
		}
	}
	return ue
}
