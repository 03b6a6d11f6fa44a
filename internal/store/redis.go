package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "replay:"

// releaseScript deletes a key only while it is still pending under the
// caller's owner token, so a late Release never erases a committed delivery
// or another owner's reservation.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// commitScript marks the key committed when it is free or still pending
// under the caller's token. Returns 0 when another owner holds it.
var commitScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == false or current == ARGV[1] then
    redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
    return 1
end
return 0
`)

// RedisStore shares replay reservations across instances. Reservations
// are SET NX of "pending:<owner>" with the lease as TTL; commits overwrite
// with "committed" and the retention TTL.
type RedisStore struct {
	client *redis.Client
	opts   ReplayOptions
}

func NewRedis(ctx context.Context, redisURL string, replay ReplayOptions) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client, opts: replay}, nil
}

// NewRedisFromClient wraps an existing client; the caller keeps ownership.
func NewRedisFromClient(client *redis.Client, replay ReplayOptions) *RedisStore {
	return &RedisStore{client: client, opts: replay}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Reserve(ctx context.Context, key, owner string) (bool, error) {
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, pendingValue(owner), s.opts.lease()).Result()
	if err != nil {
		return false, fmt.Errorf("reserving replay key: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Commit(ctx context.Context, key, owner string) error {
	committed, err := commitScript.Run(ctx, s.client, []string{redisKeyPrefix + key},
		pendingValue(owner), stateCommitted, s.opts.retention().Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("committing replay key: %w", err)
	}
	if committed == 0 {
		return ErrReservationLost
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, s.client, []string{redisKeyPrefix + key}, pendingValue(owner)).Err(); err != nil {
		return fmt.Errorf("releasing replay key: %w", err)
	}
	return nil
}

func pendingValue(owner string) string {
	return statePending + ":" + owner
}
