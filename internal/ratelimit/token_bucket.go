package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLimiterNotConfigured = errors.New("rate limiter not configured")
	ErrEmptyBucketKey       = errors.New("rate limiter key is empty")
	ErrInvalidRate          = errors.New("rate limiter rate must be positive")
	ErrInvalidBurst         = errors.New("rate limiter burst must be positive")
	errBadScriptResponse    = errors.New("invalid rate limit script response")
)

// Redis truncates Lua numbers to integers on return, so the fractional
// token count travels back as a string.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), ts}
`

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow takes one token from the bucket at key, refilling at rate tokens per
// second up to burst.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	denied := &RateLimitResult{Allowed: false, Limit: burst}
	if t == nil || t.client == nil {
		return denied, ErrLimiterNotConfigured
	}
	if key == "" {
		return denied, ErrEmptyBucketKey
	}
	if rate <= 0 {
		return denied, ErrInvalidRate
	}
	if burst <= 0 {
		return denied, ErrInvalidBurst
	}

	ttl := defaultBucketTTL(rate, burst)
	res, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return denied, err
	}
	if len(res) < 3 {
		return denied, errBadScriptResponse
	}

	return bucketResult(castToInt(res[0]) == 1, castToFloat(res[1]), castToInt(res[2]), rate, burst), nil
}

func bucketResult(allowed bool, tokens float64, tsMillis int64, rate float64, burst int) *RateLimitResult {
	now := time.UnixMilli(tsMillis)

	var retryAfter time.Duration
	if !allowed {
		needed := 1.0 - tokens
		if needed < 0 {
			needed = 0
		}
		retryAfter = time.Duration(math.Ceil(needed/rate*1000)) * time.Millisecond
	}

	missing := float64(burst) - tokens
	if missing < 0 {
		missing = 0
	}
	reset := now.Add(time.Duration(math.Ceil(missing/rate*1000)) * time.Millisecond)

	return &RateLimitResult{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(math.Floor(tokens)),
		ResetTime:  reset,
		RetryAfter: retryAfter,
	}
}

// A bucket idle long enough to refill completely carries no state worth keeping.
func defaultBucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Minute
	}
	ttl := time.Duration(float64(burst)/rate*float64(time.Second)) * 2
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func castToInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		n, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return int64(n)
	default:
		return 0
	}
}

func castToFloat(v interface{}) float64 {
	switch val := v.(type) {
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case float64:
		return val
	case string:
		n, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
