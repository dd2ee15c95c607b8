package credentials

import (
	"context"
	"errors"
	"fmt"
)

// Storage keys shared with the browser front-end.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	// KeyLegacyToken mirrors KeyAccessToken for older consumers that only know "token".
	KeyLegacyToken = "token"
)

// Keys returns every key a session may occupy.
func Keys() []string {
	return []string{KeyAccessToken, KeyRefreshToken, KeyLegacyToken}
}

// Store is a durable key-value session store.
// Get returns an empty string and a nil error for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// TokenPair is the access/refresh credential pair issued at login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SaveTokenPair stores both tokens and the legacy access key. If a write
// fails the keys are restored to their previous values.
func SaveTokenPair(ctx context.Context, s Store, pair TokenPair) error {
	prev := make(map[string]string, len(Keys()))
	for _, key := range Keys() {
		v, err := s.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		prev[key] = v
	}

	err := s.Set(ctx, KeyRefreshToken, pair.RefreshToken)
	if err != nil {
		err = fmt.Errorf("failed to store refresh token: %w", err)
	} else {
		err = SaveAccessToken(ctx, s, pair.AccessToken)
	}
	if err != nil {
		if rerr := restore(ctx, s, prev); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

func restore(ctx context.Context, s Store, values map[string]string) error {
	var errs []error
	for _, key := range Keys() {
		var err error
		if v := values[key]; v != "" {
			err = s.Set(ctx, key, v)
		} else {
			err = s.Remove(ctx, key)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// SaveAccessToken overwrites the access token and its legacy duplicate.
// The refresh token is left untouched.
func SaveAccessToken(ctx context.Context, s Store, access string) error {
	if err := s.Set(ctx, KeyAccessToken, access); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := s.Set(ctx, KeyLegacyToken, access); err != nil {
		return fmt.Errorf("failed to store legacy token: %w", err)
	}
	return nil
}

// LoadTokenPair reads both tokens. Missing tokens come back empty.
func LoadTokenPair(ctx context.Context, s Store) (TokenPair, error) {
	access, err := s.Get(ctx, KeyAccessToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to read access token: %w", err)
	}
	refresh, err := s.Get(ctx, KeyRefreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to read refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Clear removes every session key. It attempts all removals and joins the errors.
func Clear(ctx context.Context, s Store) error {
	var errs []error
	for _, key := range Keys() {
		if err := s.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
