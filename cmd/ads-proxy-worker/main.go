//go:build js && wasm

package main

import (
	"github.com/dvcrn/adboard/internal/app"
	"github.com/dvcrn/adboard/internal/config"
	"github.com/dvcrn/adboard/internal/credentials"
	"github.com/dvcrn/adboard/internal/logger"
	"github.com/syumai/workers"
	"github.com/syumai/workers/cloudflare"
)

// sessionBinding is the KV namespace binding declared in wrangler.toml.
const sessionBinding = "ADBOARD_SESSION"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	// Worker vars are not visible through os.Getenv.
	for env, field := range map[string]*string{
		"ENV":              &cfg.Env,
		"LOG_LEVEL":        &cfg.LogLevel,
		"ADBOARD_BASE_URL": &cfg.API.BaseURL,
		"ADMIN_API_KEY":    &cfg.Proxy.AdminAPIKey,
	} {
		if v := cloudflare.Getenv(env); v != "" {
			*field = v
		}
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("binding", sessionBinding).Msg("📦 Using Cloudflare KV session store")
	store, err := credentials.NewCloudflareKVStore(sessionBinding)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Cloudflare KV store")
	}

	srv, err := app.NewServer(cfg, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	// workers handles the HTTP server setup
	workers.Serve(srv)
}
