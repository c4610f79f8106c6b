package main

import (
	"context"
	"log"

	"submission-relay/internal/api"
	"submission-relay/internal/auth"
	"submission-relay/internal/bus"
	"submission-relay/internal/config"
	"submission-relay/internal/configstore"
	"submission-relay/internal/monitor"
	"submission-relay/internal/producer"
	"submission-relay/internal/queue"
	"submission-relay/internal/redisconn"
	"submission-relay/internal/storage"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	// Shared store handle, created once and reused for the process lifetime
	rdb := redisconn.MustConnect(ctx, redisconn.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	artifacts, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		log.Fatal("[INIT] Failed to build artifact store: ", err)
	}

	taskQueue := queue.New(rdb, cfg.QueueKey)
	notifyBus := bus.New(rdb, cfg.BusChannel)
	keys := auth.KeyPolicy{Production: cfg.Production(), SecretKey: cfg.SecretKey}

	prod := producer.New(keys, artifacts, taskQueue, notifyBus,
		cfg.MaxUploadBytes, cfg.AllowAllExtensions, cfg.AllowedExtensions)
	verifier := auth.NewIdentityVerifier(cfg.IdentityBaseURL, cfg.WhitelistedUsers)

	server := api.NewServer(
		cfg,
		prod,
		verifier,
		configstore.New(rdb),
		monitor.NewGateway(notifyBus, keys),
		monitor.NewWSGateway(notifyBus, keys),
	)

	log.Printf("[INIT] Server starting on %s (mode=%s)", cfg.ListenAddr, cfg.Mode)
	log.Fatal(server.Router().Run(cfg.ListenAddr))
}
