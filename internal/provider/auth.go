package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dropship-gateway/internal/model"
)

const (
	pathGetAccessToken     = "/authentication/getAccessToken"
	pathRefreshAccessToken = "/authentication/refreshAccessToken"
)

// AuthAPI calls the token endpoints. Its Executor has no TokenSource: these
// calls are throttled like any other but never trigger an auth retry.
type AuthAPI struct {
	exec *Executor
}

// NewAuthAPI creates an AuthAPI over an unauthenticated Executor.
func NewAuthAPI(exec *Executor) *AuthAPI {
	return &AuthAPI{exec: exec}
}

// GetAccessToken exchanges account credentials for a token pair.
func (a *AuthAPI) GetAccessToken(ctx context.Context, email, apiKey string) (*model.TokenState, error) {
	var resp tokenResponse
	if _, err := a.exec.Execute(ctx, http.MethodPost, pathGetAccessToken, accessTokenRequest{Email: email, APIKey: apiKey}, &resp); err != nil {
		return nil, fmt.Errorf("requesting access token: %w", err)
	}
	return resp.state(), nil
}

// RefreshAccessToken exchanges a refresh token for a new pair.
func (a *AuthAPI) RefreshAccessToken(ctx context.Context, refreshToken string) (*model.TokenState, error) {
	var resp tokenResponse
	if _, err := a.exec.Execute(ctx, http.MethodPost, pathRefreshAccessToken, refreshTokenRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	return resp.state(), nil
}

// state converts the wire response. An unparseable expiry is left zero so the
// lifecycle applies the documented validity.
func (r tokenResponse) state() *model.TokenState {
	return &model.TokenState{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    parseExpiry(r.AccessTokenExpiryDate),
	}
}

// parseExpiry accepts RFC 3339 ("2026-03-16T09:16:33+08:00") and the
// zone-less form some API versions return, read as UTC.
func parseExpiry(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
