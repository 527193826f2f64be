package health

import (
	"context"
	"fmt"
	"time"

	"github.com/vambora/dispatch/pkg/redis"
)

// Checker is a health check function that returns an error if unhealthy
type Checker func() error

// CheckerConfig holds configuration for health checkers
type CheckerConfig struct {
	Timeout time.Duration
}

// DefaultCheckerConfig returns default configuration for health checkers
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		Timeout: 2 * time.Second,
	}
}

// RedisChecker returns a health check function for Redis
func RedisChecker(client redis.ClientInterface) Checker {
	return RedisCheckerWithConfig(client, DefaultCheckerConfig())
}

// RedisCheckerWithConfig returns a Redis health checker with custom configuration
func RedisCheckerWithConfig(client redis.ClientInterface, cfg CheckerConfig) Checker {
	return func() error {
		if client == nil {
			return fmt.Errorf("redis client is nil")
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()

		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}

		return nil
	}
}

// ConnectionStatus is satisfied by clients that expose connection liveness,
// such as the NATS event bus.
type ConnectionStatus interface {
	Connected() bool
}

// BusChecker returns a health check function for the event bus
func BusChecker(bus ConnectionStatus) Checker {
	return func() error {
		if bus == nil {
			return fmt.Errorf("event bus is nil")
		}
		if !bus.Connected() {
			return fmt.Errorf("event bus not connected")
		}
		return nil
	}
}

// CompositeChecker combines multiple health checkers into one
// It returns an error if any of the checkers fail
func CompositeChecker(name string, checkers map[string]Checker) Checker {
	return func() error {
		for checkName, checker := range checkers {
			if err := checker(); err != nil {
				return fmt.Errorf("%s.%s check failed: %w", name, checkName, err)
			}
		}
		return nil
	}
}
