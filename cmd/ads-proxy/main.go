package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/dvcrn/adboard/internal/app"
	"github.com/dvcrn/adboard/internal/client"
	"github.com/dvcrn/adboard/internal/config"
	"github.com/dvcrn/adboard/internal/logger"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $CONFIG_PATH or ./adboard.yaml)")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	log := logger.New(cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	store, err := app.NewStore(ctx, cfg.Store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}

	// Validate the stored session at startup
	c, err := app.NewClient(cfg, store, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create API client")
	}
	validateSessionAtStartup(ctx, c, log)

	srv, err := app.NewServer(cfg, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	if cfg.Proxy.AdminAPIKey == "" {
		log.Warn().Msg("⚠️  ADMIN_API_KEY is not set, /session endpoints are unprotected")
	}

	httpServer := &http.Server{
		Addr:              cfg.Proxy.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().
		Str("addr", httpServer.Addr).
		Str("api", cfg.API.BaseURL).
		Str("store", cfg.Store.Type).
		Msg("Starting server")
	log.Fatal().Err(httpServer.ListenAndServe()).Msg("Server failed to start")
}

func validateSessionAtStartup(ctx context.Context, c *client.Client, log zerolog.Logger) {
	status, err := c.Status(ctx)
	if err != nil {
		log.Error().Err(err).Msg("⚠️  Failed to read session at startup")
		return
	}

	if !status.HasAccessToken && !status.HasRefreshToken {
		log.Warn().Msg("⚠️  No session stored, log in via POST /session/login")
		return
	}
	if !status.HasRefreshToken {
		log.Warn().Msg("⚠️  No refresh token stored, the session ends when the access token expires")
	}

	if status.Access == nil || !status.Access.HasExpiry() {
		log.Info().Msg("✅ Session loaded, access token expiry unknown")
		return
	}

	switch {
	case status.IsExpired:
		log.Warn().
			Int64("minutes_expired", -status.MinutesUntilExpiry).
			Msg("⚠️  Access token is already expired, will refresh on first request")
	case status.NeedsRefreshSoon:
		log.Warn().
			Int64("minutes_until_expiry", status.MinutesUntilExpiry).
			Msg("⚠️  Access token expires soon, will refresh on first rejected request")
	default:
		log.Info().
			Int64("minutes_until_expiry", status.MinutesUntilExpiry).
			Msg("✅ Access token is valid and not expiring soon")
	}
}
