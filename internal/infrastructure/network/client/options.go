package client

import (
	"context"
	"errors"
	"time"

	"wallet_indexer/internal/domain/entity"

	"golang.org/x/time/rate"
)

const (
	defaultBatchSize     = 50
	defaultMaxConcurrent = 10
	defaultTimeout       = 30 * time.Second
)

// AdapterOptions are the limits shared by every chain adapter.
type AdapterOptions struct {
	BatchSize     int           // addresses per round-trip
	MaxConcurrent int           // in-flight requests per adapter, across calls
	Timeout       time.Duration // per external call
	RateLimit     float64       // requests per second, 0 disables limiting
	Burst         int
}

func (o AdapterOptions) withDefaults() AdapterOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaultMaxConcurrent
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Burst <= 0 {
		o.Burst = o.MaxConcurrent
	}
	return o
}

func (o AdapterOptions) newLimiter() *rate.Limiter {
	if o.RateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.RateLimit), o.Burst)
}

// waitLimiter blocks until limiter admits one request. A nil limiter admits immediately.
func waitLimiter(ctx context.Context, limiter *rate.Limiter, chain entity.Chain) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return entity.NewSyncError(entity.KindNetwork, chain, "rate limit wait", err)
		}
		return entity.NewSyncError(entity.KindTimeout, chain, "rate limit wait", err)
	}
	return nil
}

func containsChain(chains []entity.Chain, chain entity.Chain) bool {
	for _, c := range chains {
		if c == chain {
			return true
		}
	}
	return false
}
