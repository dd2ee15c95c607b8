package credentials

import (
	"os"
)

const (
	EnvAccessToken  = "ADBOARD_ACCESS_TOKEN"
	EnvRefreshToken = "ADBOARD_REFRESH_TOKEN"
)

// EnvStore is an in-memory session seeded from environment variables.
// Writes are kept for the lifetime of the process only.
type EnvStore struct {
	*MemoryStore
}

// NewEnvStore creates a store seeded from ADBOARD_ACCESS_TOKEN and ADBOARD_REFRESH_TOKEN
func NewEnvStore() *EnvStore {
	s := &EnvStore{MemoryStore: NewMemoryStore()}
	if access := os.Getenv(EnvAccessToken); access != "" {
		s.values[KeyAccessToken] = access
		s.values[KeyLegacyToken] = access
	}
	if refresh := os.Getenv(EnvRefreshToken); refresh != "" {
		s.values[KeyRefreshToken] = refresh
	}
	return s
}
