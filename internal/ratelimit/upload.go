package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/rfacto/internal/config"
)

const keyUploadActor = "rfacto:upload:actor:%s"

// UploadLimiter throttles claim file uploads per caller.
type UploadLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewUploadLimiter(cfg config.Config, bucket *TokenBucket) *UploadLimiter {
	if bucket == nil || cfg.UploadRatePerSecond <= 0 || cfg.UploadBurst <= 0 {
		return nil
	}
	return &UploadLimiter{
		bucket: bucket,
		rate:   cfg.UploadRatePerSecond,
		burst:  cfg.UploadBurst,
	}
}

func (l *UploadLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow reports whether actor may upload now. Disabled limiters always allow.
func (l *UploadLimiter) Allow(ctx context.Context, actor string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyUploadActor, strings.ToLower(strings.TrimSpace(actor)))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
