package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// slidingWindowScript counts requests in a sorted set scored by unix seconds.
// Returns {allowed, resetAt}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, window + 10)
return {1, now + window}
`)

// RateLimiter is a redis-backed sliding window limiter shared by all
// server instances.
type RateLimiter struct {
	client   *redis.Client
	failOpen bool
	seq      func() string
}

// NewRateLimiter creates a limiter. With failOpen set, requests are allowed
// when redis is unreachable; otherwise they are denied.
func NewRateLimiter(client *redis.Client, failOpen bool) *RateLimiter {
	return &RateLimiter{
		client:   client,
		failOpen: failOpen,
		seq:      func() string { return fmt.Sprintf("%d", time.Now().UnixNano()) },
	}
}

// CheckLimit records one request against key and reports whether it fits
// within limit for the trailing window.
func (rl *RateLimiter) CheckLimit(
	ctx context.Context,
	key string,
	limit int,
	window time.Duration,
) (allowed bool, resetAt time.Time) {
	now := time.Now().Unix()
	fullKey := fmt.Sprintf("ratelimit:%s", key)

	result, err := slidingWindowScript.Run(
		ctx,
		rl.client,
		[]string{fullKey},
		now,
		int64(window.Seconds()),
		limit,
		rl.seq(),
	).Int64Slice()

	if err != nil || len(result) != 2 {
		log.Warn().
			Err(err).
			Str("key", key).
			Bool("failOpen", rl.failOpen).
			Msg("rate limit check failed")
		return rl.failOpen, time.Now().Add(window)
	}

	return result[0] == 1, time.Unix(result[1], 0)
}
