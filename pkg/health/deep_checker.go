package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vambora/dispatch/pkg/redis"
)

// DependencyStatus represents the health status of a single dependency
type DependencyStatus struct {
	Name      string        `json:"name"`
	Status    string        `json:"status"` // "healthy", "unhealthy"
	Latency   time.Duration `json:"latency_ms"`
	Message   string        `json:"message,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// DeepHealthStatus represents the complete health status of the service
type DeepHealthStatus struct {
	Status       string                      `json:"status"` // "healthy", "degraded"
	Version      string                      `json:"version,omitempty"`
	Uptime       time.Duration               `json:"uptime_seconds"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
	CheckedAt    time.Time                   `json:"checked_at"`
}

// DeepChecker performs health checks on the configured dependencies.
// Dependencies are optional; an unset dependency is simply not reported.
type DeepChecker struct {
	redis       redis.ClientInterface
	bus         ConnectionStatus
	version     string
	startTime   time.Time
	timeout     time.Duration
	cacheTTL    time.Duration
	mu          sync.RWMutex
	lastResult  *DeepHealthStatus
	lastChecked time.Time
}

// DeepCheckerConfig holds configuration for the deep checker
type DeepCheckerConfig struct {
	Version  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DefaultDeepCheckerConfig returns sensible defaults
func DefaultDeepCheckerConfig() DeepCheckerConfig {
	return DeepCheckerConfig{
		Version:  "unknown",
		Timeout:  2 * time.Second,
		CacheTTL: 10 * time.Second,
	}
}

// NewDeepChecker creates a new deep health checker
func NewDeepChecker(config DeepCheckerConfig) *DeepChecker {
	return &DeepChecker{
		version:   config.Version,
		startTime: time.Now(),
		timeout:   config.Timeout,
		cacheTTL:  config.CacheTTL,
	}
}

// SetRedis sets the Redis client to check
func (d *DeepChecker) SetRedis(client redis.ClientInterface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.redis = client
}

// SetBus sets the event bus to check
func (d *DeepChecker) SetBus(bus ConnectionStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bus = bus
}

// Check performs a health check on all configured dependencies. Results are
// cached for CacheTTL so the readiness endpoint cannot hammer the backends.
func (d *DeepChecker) Check(ctx context.Context) *DeepHealthStatus {
	d.mu.RLock()
	if d.lastResult != nil && time.Since(d.lastChecked) < d.cacheTTL {
		result := d.lastResult
		d.mu.RUnlock()
		return result
	}
	redisClient := d.redis
	bus := d.bus
	d.mu.RUnlock()

	status := &DeepHealthStatus{
		Status:       "healthy",
		Version:      d.version,
		Uptime:       time.Since(d.startTime),
		Dependencies: make(map[string]DependencyStatus),
		CheckedAt:    time.Now(),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	if redisClient != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			depStatus := d.checkRedis(ctx, redisClient)
			mu.Lock()
			status.Dependencies["redis"] = depStatus
			if depStatus.Status != "healthy" {
				status.Status = "degraded"
			}
			mu.Unlock()
		}()
	}

	if bus != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			depStatus := checkBus(bus)
			mu.Lock()
			status.Dependencies["nats"] = depStatus
			if depStatus.Status != "healthy" {
				status.Status = "degraded"
			}
			mu.Unlock()
		}()
	}

	wg.Wait()

	d.mu.Lock()
	d.lastResult = status
	d.lastChecked = time.Now()
	d.mu.Unlock()

	return status
}

func (d *DeepChecker) checkRedis(ctx context.Context, client redis.ClientInterface) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Name:      "redis",
		CheckedAt: start,
	}

	checkCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := client.Ping(checkCtx); err != nil {
		status.Status = "unhealthy"
		status.Message = fmt.Sprintf("ping failed: %v", err)
		status.Latency = time.Since(start)
		return status
	}

	status.Status = "healthy"
	status.Latency = time.Since(start)
	return status
}

func checkBus(bus ConnectionStatus) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Name:      "nats",
		CheckedAt: start,
		Latency:   time.Since(start),
	}

	if !bus.Connected() {
		status.Status = "unhealthy"
		status.Message = "not connected"
		return status
	}

	status.Status = "healthy"
	return status
}

// IsReady returns true if every configured dependency is healthy
func (d *DeepChecker) IsReady() bool {
	status := d.Check(context.Background())
	for _, dep := range status.Dependencies {
		if dep.Status == "unhealthy" {
			return false
		}
	}
	return true
}

// Handler returns an http.HandlerFunc serving the deep health view.
// A degraded status still answers 200; readiness gating belongs to the
// readiness probe, not this endpoint.
func (d *DeepChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := d.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(status); err != nil {
			http.Error(w, "failed to encode health status", http.StatusInternalServerError)
		}
	}
}
