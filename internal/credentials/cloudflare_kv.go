//go:build js && wasm

package credentials

import (
	"context"
	"fmt"

	"github.com/syumai/workers/cloudflare/kv"
)

// CloudflareKVStore keeps the session in a Cloudflare KV namespace
type CloudflareKVStore struct {
	kvStore *kv.Namespace
	prefix  string
}

// NewCloudflareKVStore binds to the given KV namespace.
// The binding name is configured in wrangler.toml.
func NewCloudflareKVStore(binding string) (*CloudflareKVStore, error) {
	kvStore, err := kv.NewNamespace(binding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &CloudflareKVStore{kvStore: kvStore, prefix: "adboard:"}, nil
}

func (c *CloudflareKVStore) Get(_ context.Context, key string) (string, error) {
	v, err := c.kvStore.GetString(c.prefix+key, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get %s from KV: %w", key, err)
	}
	return kvValue(v), nil
}

func (c *CloudflareKVStore) Set(_ context.Context, key, value string) error {
	if err := c.kvStore.PutString(c.prefix+key, value, nil); err != nil {
		return fmt.Errorf("failed to store %s in KV: %w", key, err)
	}
	return nil
}

func (c *CloudflareKVStore) Remove(_ context.Context, key string) error {
	if err := c.kvStore.Delete(c.prefix + key); err != nil {
		return fmt.Errorf("failed to delete %s from KV: %w", key, err)
	}
	return nil
}
