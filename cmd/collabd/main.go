package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/config"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/devserver"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}
	gitStore := devserver.NewGitStore(cfg.ReposDir)

	var presence devserver.PresenceStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid redis url: %v", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer client.Close()
		log.Printf("Using Redis for presence storage")
		presence = devserver.NewRedisPresence(client, cfg.PresenceTTL)
	} else {
		log.Printf("Using in-memory presence storage")
		presence = devserver.NewMemPresence(cfg.PresenceTTL)
	}

	collabServer := devserver.New(cfg.AuthSecret, gitStore, presence)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           collabServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// no blanket read/write timeouts: the /ws endpoint holds
		// long-lived connections
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Collaboration server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
