package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// NotificationChannel is the pubsub channel carrying a user's live notifications.
func NotificationChannel(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

// JobLockKey is the key guarding a background job so one instance runs it at a time.
func JobLockKey(job string) string {
	return fmt.Sprintf("jobs:lock:%s", job)
}

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// TryLock sets key if absent for ttl. The returned release func deletes the
// key only while this holder still owns it.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), acquired bool, err error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, false, fmt.Errorf("generate lock token: %w", err)
	}
	token := hex.EncodeToString(buf)

	ok, err := c.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, c.Client, []string{key}, token).Err()
	}, true, nil
}
