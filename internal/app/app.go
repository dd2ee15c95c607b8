// Package app wires configuration, session store, client and proxy together.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dvcrn/adboard/internal/client"
	"github.com/dvcrn/adboard/internal/config"
	"github.com/dvcrn/adboard/internal/credentials"
	"github.com/dvcrn/adboard/internal/metrics"
	"github.com/dvcrn/adboard/internal/server"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisPingTimeout = 3 * time.Second

// NewStore opens the session store selected by cfg.
func NewStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (credentials.Store, error) {
	switch cfg.Type {
	case config.StoreMemory:
		logger.Debug().Msg("Using in-memory session store")
		return credentials.NewMemoryStore(), nil
	case config.StoreFile, "":
		path := cfg.Path
		if path == "" {
			path = credentials.DefaultSessionPath()
		}
		logger.Debug().Str("path", path).Msg("📄 Using session file")
		return credentials.NewFSStore(path), nil
	case config.StoreEnv:
		logger.Debug().Msg("📝 Using environment session store")
		return credentials.NewEnvStore(), nil
	case config.StoreKeychain:
		logger.Debug().Msg("🔑 Using keychain session store")
		return credentials.NewKeychainStoreWithLogger(logger), nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := credentials.NewRedisStore(rdb, cfg.Redis.Prefix, cfg.Redis.TTL)

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Debug().Str("addr", cfg.Redis.Addr).Msg("Using redis session store")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Type)
	}
}

// NewClient creates the authenticated API client. observer may be nil.
func NewClient(cfg *config.Config, store credentials.Store, logger zerolog.Logger, observer client.Observer) (*client.Client, error) {
	hc := client.NewHTTPClient(client.TransportOptions{
		Timeout:          cfg.API.Timeout,
		BreakerThreshold: cfg.API.BreakerThreshold,
		BreakerTimeout:   cfg.API.BreakerTimeout,
	})
	opts := []client.Option{
		client.WithHTTPClient(hc),
		client.WithLogger(logger),
		client.WithUserAgent(cfg.API.UserAgent),
	}
	if observer != nil {
		opts = append(opts, client.WithObserver(observer))
	}
	return client.New(cfg.API.BaseURL, store, opts...)
}

// NewServer creates the authenticating proxy with metrics for the given store.
func NewServer(cfg *config.Config, store credentials.Store, logger zerolog.Logger) (*server.Server, error) {
	collector := metrics.New()
	c, err := NewClient(cfg, store, logger, collector)
	if err != nil {
		return nil, err
	}
	return server.New(logger, c,
		server.WithAdminAPIKey(cfg.Proxy.AdminAPIKey),
		server.WithMetricsHandler(collector.Handler()),
	), nil
}
