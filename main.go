package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sphere/internal/config"
	"sphere/internal/http"
	"sphere/internal/presence"
	"sphere/internal/push"
	"sphere/internal/storage"
	"sphere/internal/ws"

	"golang.org/x/sync/errgroup"
)

const storySweepInterval = time.Hour

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	var registry presence.Registry
	if cfg.RedisAddr != "" {
		registry, err = presence.NewRedisRegistry(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
	} else {
		registry = presence.NewMemoryRegistry()
	}

	hub := ws.NewHub(registry)
	pusher := push.New(bbStorage, cfg.VAPIDSubscriber, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)

	apiServer := http.NewAPIServer(ctx, *cfg, bbStorage, registry, hub, pusher)

	g, gCtx := errgroup.WithContext(ctx)

	// Start API Server
	g.Go(apiServer.Start)

	// Sweep expired stories in the background
	g.Go(func() error {
		ticker := time.NewTicker(storySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case now := <-ticker.C:
				swept, err := bbStorage.SweepExpiredStories(now, cfg.StoryTTL)
				if err != nil {
					log.Printf("Story sweep error: %v", err)
					continue
				}
				if swept > 0 {
					log.Printf("Swept %d expired stories", swept)
				}
			}
		}
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
