package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/classbook/internal/clubcontext"
	"github.com/smallbiznis/classbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/classbook/internal/observability/metrics"
	"go.uber.org/zap"
)

const rateLimitReasonMemberRate = "member-rate"

// BookingRateLimit throttles booking writes per member. A limiter outage
// fails open; booking itself stays race-free through the ledger.
func (s *Server) BookingRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.bookingLimiter == nil || !s.bookingLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		clubID, ok := clubcontext.ClubIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		memberID, ok := clubcontext.MemberIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		endpoint := normalizeRateLimitEndpoint(c)

		res, err := s.bookingLimiter.Allow(ctx, clubID.String(), memberID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("booking rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			log := logger.FromContext(ctx)
			log.Warn("booking rate limit exceeded",
				zap.String("reason", rateLimitReasonMemberRate),
				zap.String("endpoint", endpoint),
			)
			recordRateLimitDenied(ctx, endpoint, clubID.String(), rateLimitReasonMemberRate, s.obsMetrics)

			retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-Rate-Limited-Reason", rateLimitReasonMemberRate)
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		recordRateLimitAllowed(ctx, endpoint, clubID.String(), s.obsMetrics)
		c.Next()
	}
}

func recordRateLimitAllowed(ctx context.Context, endpoint, clubID string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, clubID, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, clubID, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, clubID, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
