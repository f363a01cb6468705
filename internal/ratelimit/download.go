package ratelimit

import (
	"context"
	"errors"
	"strings"

	"github.com/njaeplume/plume/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyDownloadUser = "plume:download:user:"

// DownloadLimiter throttles download link requests per user. A nil limiter
// allows everything.
type DownloadLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewDownloadLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*DownloadLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.DownloadRate <= 0 || limitCfg.DownloadBurst <= 0 {
		return nil, errors.New("download rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return client.Close() },
		})
	}

	log.Named("ratelimit").Info("download rate limit enabled",
		zap.String("redis_addr", addr),
		zap.Float64("rate", limitCfg.DownloadRate),
		zap.Int("burst", limitCfg.DownloadBurst),
	)
	return newDownloadLimiter(NewTokenBucket(client), limitCfg.DownloadRate, limitCfg.DownloadBurst), nil
}

func newDownloadLimiter(bucket *TokenBucket, rate float64, burst int) *DownloadLimiter {
	return &DownloadLimiter{bucket: bucket, rate: rate, burst: burst}
}

func (l *DownloadLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *DownloadLimiter) Allow(ctx context.Context, userID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidKey
	}
	return l.bucket.Allow(ctx, keyDownloadUser+userID, l.rate, l.burst)
}
