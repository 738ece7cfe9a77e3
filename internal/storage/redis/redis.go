package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithClient(client), nil
}

func NewWithClient(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

// AcquireResendSlot atomically claims the resend window for email (SETNX).
// Returns true if the slot was free, false if a resend happened within ttl.
func (r *RedisRepo) AcquireResendSlot(ctx context.Context, email string, ttl time.Duration) (bool, error) {
	const op = "storage.redis.AcquireResendSlot"

	ok, err := r.client.SetNX(ctx, resendKey(email), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return ok, nil
}

func (r *RedisRepo) Close() {
	r.client.Close()
}

func resendKey(email string) string {
	return fmt.Sprintf("verify:resend:%s", strings.ToLower(email))
}
