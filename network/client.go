package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client publishes and subscribes envelopes, reports and state.
type Client struct {
	rdb *redis.Client
}

// Dial connects to redis and checks the connection.
func Dial(ctx context.Context, o Options) (*Client, error) {
	if o.Addr == "" {
		return nil, errors.New("network: redis address is empty")
	}
	rdb := redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB, DialTimeout: 3 * time.Second})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// NewClient wraps an existing redis client.
func NewClient(rdb *redis.Client) *Client { return &Client{rdb: rdb} }

// Send publishes v as JSON on channel.
func (c *Client) Send(ctx context.Context, channel string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", v, err)
	}
	return c.rdb.Publish(ctx, channel, b).Err()
}

// Subscribe opens a subscription; the caller closes it.
func (c *Client) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	ps := c.rdb.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}
	return ps, nil
}

func (c *Client) Close() error { return c.rdb.Close() }
