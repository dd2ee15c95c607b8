package credentials

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	keychainService = "adboard"
	// security(1) exits with 44 when the item does not exist.
	keychainItemNotFound = 44
)

type cachedItem struct {
	value   string
	fetched time.Time
}

// KeychainStore keeps each session key as a generic password in the macOS keychain.
type KeychainStore struct {
	mu       sync.RWMutex
	cache    map[string]cachedItem
	cacheTTL time.Duration
	service  string
	run      func(ctx context.Context, args ...string) ([]byte, error)
	logger   *zerolog.Logger
}

// NewKeychainStore creates a keychain-backed store
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{
		cache:    make(map[string]cachedItem),
		cacheTTL: 30 * time.Second,
		service:  keychainService,
		run:      runSecurity,
	}
}

// NewKeychainStoreWithLogger creates a keychain-backed store with logger
func NewKeychainStoreWithLogger(logger zerolog.Logger) *KeychainStore {
	k := NewKeychainStore()
	k.logger = &logger
	return k
}

func (k *KeychainStore) Get(ctx context.Context, key string) (string, error) {
	k.mu.RLock()
	item, ok := k.cache[key]
	k.mu.RUnlock()
	if ok && time.Since(item.fetched) < k.cacheTTL {
		return item.value, nil
	}

	out, err := k.run(ctx, "find-generic-password", "-s", k.service, "-a", key, "-w")
	if err != nil {
		if isItemNotFound(err) {
			k.remember(key, "")
			return "", nil
		}
		return "", fmt.Errorf("failed to retrieve %s from Keychain: %w", key, err)
	}

	value := strings.TrimRight(string(out), "\n")
	k.remember(key, value)
	return value, nil
}

func (k *KeychainStore) Set(ctx context.Context, key, value string) error {
	if _, err := k.run(ctx, "add-generic-password", "-s", k.service, "-a", key, "-w", value, "-U"); err != nil {
		return fmt.Errorf("failed to update keychain: %w", err)
	}
	k.remember(key, value)
	if k.logger != nil {
		k.logger.Debug().Str("key", key).Msg("Stored session key in keychain")
	}
	return nil
}

func (k *KeychainStore) Remove(ctx context.Context, key string) error {
	k.mu.Lock()
	delete(k.cache, key)
	k.mu.Unlock()

	if _, err := k.run(ctx, "delete-generic-password", "-s", k.service, "-a", key); err != nil && !isItemNotFound(err) {
		return fmt.Errorf("failed to delete %s from keychain: %w", key, err)
	}
	return nil
}

func (k *KeychainStore) remember(key, value string) {
	k.mu.Lock()
	k.cache[key] = cachedItem{value: value, fetched: time.Now()}
	k.mu.Unlock()
}

func runSecurity(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "security", args...).Output()
}

func isItemNotFound(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == keychainItemNotFound
}
