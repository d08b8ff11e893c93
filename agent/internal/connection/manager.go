package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"azure-iot-serializer/agent/internal/logger"
	"azure-iot-serializer/network"
)

var ErrNotConnected = errors.New("connection: not connected")

const (
	maxDelay      = 30 * time.Second
	backoffFactor = 1.5
)

// DialFunc opens a client; network.Dial in production.
type DialFunc func(ctx context.Context, o network.Options) (*network.Client, error)

// Manager owns the agent's single redis connection
type Manager struct {
	opts network.Options
	dial DialFunc

	client *network.Client
	mu     sync.Mutex
}

// New creates a new connection manager
func New(o network.Options) *Manager {
	return &Manager{opts: o, dial: network.Dial}
}

// Connect establishes the connection with retry logic
func (m *Manager) Connect(ctx context.Context, maxRetries int, baseDelay time.Duration) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	delay := baseDelay
	for attempt := 1; ; attempt++ {
		logger.Infof("Agent is trying to connect to redis %s (attempt #%d)...", m.opts.Addr, attempt)
		client, err := m.dial(ctx, m.opts)
		if err == nil {
			m.mu.Lock()
			m.client = client
			m.mu.Unlock()
			logger.Info("Agent connected to redis successfully!")
			return nil
		}
		logger.Errorf("Agent cannot connect to redis (attempt #%d): %v", attempt, err)
		if attempt >= maxRetries {
			return fmt.Errorf("max retries reached: %w", err)
		}

		logger.Infof("Agent will retry in %v...", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = nextDelay(delay)
	}
}

func nextDelay(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * backoffFactor)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// Send publishes v on channel over the connection (thread-safe)
func (m *Manager) Send(ctx context.Context, channel string, v any) error {
	c := m.Client()
	if c == nil {
		return ErrNotConnected
	}
	if err := c.Send(ctx, channel, v); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Serve runs the envelope loop of ch until ctx ends.
func (m *Manager) Serve(ctx context.Context, ch network.Channels, h network.Handler) error {
	c := m.Client()
	if c == nil {
		return ErrNotConnected
	}
	return network.Serve(ctx, c, ch, h, logger.With("redis"))
}

func (m *Manager) Client() *network.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// IsConnected returns whether the manager has an active connection
func (m *Manager) IsConnected() bool { return m.Client() != nil }

// Close closes the connection
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}
