// Package redisstate stores the shop aggregate as one JSON document under a
// single Redis key.
//
// Saves take a short redislock lock on "lock:<key>" so two running instances
// pointed at the same key cannot interleave writes. A save that cannot get
// the lock fails and is reported as unsaved by the caller.
package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/warp/tortipos/pos"
)

const DefaultKey = "tortipos_data_v1"

type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string

	// LockTTL bounds how long a crashed writer can hold the save lock.
	LockTTL time.Duration
}

// Store implements pos.Gateway on Redis.
type Store struct {
	client  *redis.Client
	locker  *redislock.Client
	key     string
	lockTTL time.Duration
}

var _ pos.Gateway = (*Store)(nil)

// New connects and pings the server.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect redis at %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, opts Options) *Store {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Store{
		client:  client,
		locker:  redislock.New(client),
		key:     key,
		lockTTL: ttl,
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Load(ctx context.Context) (*pos.State, error) {
	doc, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, pos.ErrNoSavedState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.key, err)
	}
	return pos.DecodeState("redis", doc)
}

func (s *Store) Save(ctx context.Context, state *pos.State) error {
	doc, err := pos.EncodeState(state)
	if err != nil {
		return err
	}

	lock, err := s.locker.Obtain(ctx, "lock:"+s.key, s.lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("another writer holds %s: %w", s.key, err)
	}
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.key, err)
	}
	defer lock.Release(context.WithoutCancel(ctx))

	if err := s.client.Set(ctx, s.key, doc, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.key, err)
	}
	return nil
}
