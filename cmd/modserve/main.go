package main

import (
	"context"
	"encoding/hex"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/comnet/modserve/internal/config"
	"github.com/comnet/modserve/internal/modules/text"
	"github.com/comnet/modserve/internal/ratelimit"
	"github.com/comnet/modserve/internal/server"
	"github.com/comnet/modserve/internal/signer"
	"github.com/comnet/modserve/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	key, err := loadKeypair(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to load server keypair", zap.Error(err))
	}

	var opts []server.Option
	if cfg.Throttle.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, server.WithLimiter(
			ratelimit.NewRedisLimiter(client, cfg.LimiterConfig(), zapLogger)))
		zapLogger.Info("using redis rate limiter", zap.String("addr", cfg.Redis.Address))
	}

	srv, err := server.NewModuleServer(cfg, zapLogger, text.New(), key, opts...)
	if err != nil {
		zapLogger.Fatal("Failed to construct module server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		zapLogger.Fatal("Server error", zap.Error(err))
	}
}

// loadKeypair derives the server identity from the configured hex seed, or
// generates a throwaway keypair when none is set.
func loadKeypair(cfg *config.Config) (*signer.Keypair, error) {
	scheme := signer.Scheme(cfg.Key.Scheme)
	seedHex := cfg.Key.Seed
	if seedHex == "" {
		seedHex = os.Getenv("MODSERVE_KEY_SEED")
	}
	if seedHex == "" {
		return signer.GenerateKeypair(scheme)
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	return signer.NewKeypairFromSeed(scheme, seed)
}
