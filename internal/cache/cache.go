// Package cache keeps the freshest microstructure state per outcome in redis
// so downstream consumers don't have to query postgres for the hot path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daszybak/market_signals/internal/microstructure"
)

// ErrNotFound is returned when no state is cached for an outcome.
var ErrNotFound = errors.New("no cached state for outcome")

type Config struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a state stays current with no refresh.
	TTL time.Duration
}

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{client: client, ttl: cfg.TTL}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func stateKey(outcomeID string) string {
	return "mms:latest:" + outcomeID
}

// SetLatest overwrites the cached state for the state's outcome.
func (c *Cache) SetLatest(ctx context.Context, state *microstructure.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := c.client.Set(ctx, stateKey(state.OutcomeID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set latest state: %w", err)
	}
	return nil
}

// GetLatest returns the cached state for an outcome, or ErrNotFound.
func (c *Cache) GetLatest(ctx context.Context, outcomeID string) (*microstructure.State, error) {
	payload, err := c.client.Get(ctx, stateKey(outcomeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest state: %w", err)
	}

	state := &microstructure.State{}
	if err := json.Unmarshal(payload, state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return state, nil
}
