package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvcrn/adboard/internal/auth"
	"github.com/dvcrn/adboard/internal/credentials"
)

// Login exchanges credentials for a token pair and stores it.
// On failure the store is left untouched.
func (c *Client) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	if err := c.Validate(req); err != nil {
		return nil, err
	}

	resp, err := c.Issue(ctx, Post(auth.LoginPath, req))
	if err != nil {
		return nil, err
	}

	var out auth.LoginResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	out.Raw = resp.Body

	if out.Access != "" && out.Refresh != "" {
		pair := credentials.TokenPair{AccessToken: out.Access, RefreshToken: out.Refresh}
		if err := credentials.SaveTokenPair(ctx, c.store, pair); err != nil {
			return nil, fmt.Errorf("failed to store session: %w", err)
		}
		c.logger.Info().Str("access_preview", tokenPreview(out.Access)).Msg("✅ Logged in, session stored")
	} else {
		c.logger.Warn().Msg("Login response did not contain a token pair, session not stored")
	}
	return &out, nil
}

// Register creates a new member. If the server also returns a token pair it is
// stored like a login.
func (c *Client) Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResponse, error) {
	if err := c.Validate(req); err != nil {
		return nil, err
	}

	resp, err := c.Issue(ctx, Post(auth.RegisterPath, req))
	if err != nil {
		return nil, err
	}

	var out auth.RegisterResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode register response: %w", err)
	}
	out.Raw = resp.Body

	if out.Access != "" && out.Refresh != "" {
		pair := credentials.TokenPair{AccessToken: out.Access, RefreshToken: out.Refresh}
		if err := credentials.SaveTokenPair(ctx, c.store, pair); err != nil {
			return nil, fmt.Errorf("failed to store session: %w", err)
		}
	}
	return &out, nil
}

// Logout removes every session key. Storage errors are logged, never returned.
func (c *Client) Logout(ctx context.Context) {
	c.clearSession(ctx)
	c.logger.Info().Msg("Session cleared")
}

// Refresh exchanges refreshToken for a new access token and stores it.
// The stored refresh token is not changed.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*auth.RefreshResponse, error) {
	resp, err := c.Issue(ctx, Post(auth.RefreshPath, auth.RefreshRequest{Refresh: refreshToken}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	var out auth.RefreshResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode refresh response: %w", ErrRefreshFailed, err)
	}
	if out.Access == "" {
		return nil, fmt.Errorf("%w: no access token in refresh response", ErrRefreshFailed)
	}
	out.Raw = resp.Body

	if err := credentials.SaveAccessToken(ctx, c.store, out.Access); err != nil {
		// The new token is still usable for this process.
		c.logger.Error().Err(err).Msg("❌ Failed to update tokens in storage")
	} else {
		c.logger.Info().Str("access_preview", tokenPreview(out.Access)).Msg("✅ Access token refreshed")
	}
	return &out, nil
}

// RefreshStored refreshes using the refresh token held in the store.
func (c *Client) RefreshStored(ctx context.Context) (*auth.RefreshResponse, error) {
	refreshToken, err := c.store.Get(ctx, credentials.KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoRefreshToken, err)
	}
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	return c.Refresh(ctx, refreshToken)
}

// SessionStatus summarises the stored session.
type SessionStatus struct {
	HasAccessToken     bool            `json:"hasAccessToken" yaml:"hasAccessToken"`
	HasRefreshToken    bool            `json:"hasRefreshToken" yaml:"hasRefreshToken"`
	LegacyInSync       bool            `json:"legacyInSync" yaml:"legacyInSync"`
	Access             *auth.TokenInfo `json:"access,omitempty" yaml:"access,omitempty"`
	MinutesUntilExpiry int64           `json:"minutesUntilExpiry,omitempty" yaml:"minutesUntilExpiry,omitempty"`
	IsExpired          bool            `json:"isExpired" yaml:"isExpired"`
	NeedsRefreshSoon   bool            `json:"needsRefreshSoon" yaml:"needsRefreshSoon"`
	Error              string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Status reports what the store holds and, when the access token is a JWT, its expiry.
func (c *Client) Status(ctx context.Context) (*SessionStatus, error) {
	pair, err := credentials.LoadTokenPair(ctx, c.store)
	if err != nil {
		return nil, err
	}
	legacy, err := c.store.Get(ctx, credentials.KeyLegacyToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy token: %w", err)
	}

	status := &SessionStatus{
		HasAccessToken:  pair.AccessToken != "",
		HasRefreshToken: pair.RefreshToken != "",
		LegacyInSync:    legacy == pair.AccessToken,
	}
	if pair.AccessToken == "" {
		return status, nil
	}

	info, err := auth.Inspect(pair.AccessToken)
	if err != nil {
		status.Error = err.Error()
		return status, nil
	}
	status.Access = info
	if info.HasExpiry() {
		now := c.now()
		status.MinutesUntilExpiry = info.MinutesUntilExpiry(now)
		status.IsExpired = info.Expired(now)
		status.NeedsRefreshSoon = info.ExpiringSoon(now)
	}
	return status, nil
}
