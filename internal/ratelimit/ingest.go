package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gridora/gridora/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyIngestTenant = "ingest:tenant:%s"

// IngestLimiter throttles reading ingestion per tenant. A nil limiter is
// the disabled mode and allows every request.
type IngestLimiter struct {
	bucket *TokenBucket

	rate  float64
	burst int
}

// NewIngestLimiter returns nil when no redis address is configured.
func NewIngestLimiter(cfg config.Config) (*IngestLimiter, error) {
	limitCfg := cfg.RateLimit
	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, nil
	}
	if limitCfg.IngestTenantRate <= 0 || limitCfg.IngestTenantBurst <= 0 {
		return nil, fmt.Errorf("ingest rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &IngestLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.IngestTenantRate,
		burst:  limitCfg.IngestTenantBurst,
	}, nil
}

func (l *IngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowTenant consumes one token from the tenant's bucket.
func (l *IngestLimiter) AllowTenant(ctx context.Context, tenantID uuid.UUID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyIngestTenant, tenantID), l.rate, l.burst)
}
