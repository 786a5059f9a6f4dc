package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/classbook/internal/config"
)

const keyBookingMember = "classbook:ratelimit:booking:%s:%s"

// BookingLimiter throttles booking writes per member within a club.
type BookingLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewBookingLimiter(client *redis.Client, cfg config.Config) (*BookingLimiter, error) {
	if client == nil {
		return &BookingLimiter{}, nil
	}
	if cfg.RateLimit.BookingRate <= 0 {
		return nil, fmt.Errorf("booking rate limit: %w", ErrInvalidRate)
	}
	if cfg.RateLimit.BookingBurst <= 0 {
		return nil, fmt.Errorf("booking rate limit: %w", ErrInvalidBurst)
	}
	return &BookingLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RateLimit.BookingRate,
		burst:  cfg.RateLimit.BookingBurst,
	}, nil
}

func (l *BookingLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow always admits when the limiter is disabled.
func (l *BookingLimiter) Allow(ctx context.Context, clubID, memberID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	clubID = strings.TrimSpace(clubID)
	memberID = strings.TrimSpace(memberID)
	if clubID == "" || memberID == "" {
		return &RateLimitResult{Allowed: false, Limit: l.burst}, ErrEmptyBucketKey
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyBookingMember, clubID, memberID), l.rate, l.burst)
}
