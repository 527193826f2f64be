package rides

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/vambora/dispatch/pkg/logger"
	"github.com/vambora/dispatch/pkg/metrics"
)

// ErrDuplicateRide is returned when a ride ID is already registered.
var ErrDuplicateRide = errors.New("ride id already registered")

// Registry holds the live rides in memory, keyed by ride ID. Methods
// are safe for concurrent use; the per-ride lock guards ride fields.
type Registry struct {
	mu    sync.RWMutex
	rides map[string]*Ride
}

// NewRegistry creates an empty ride registry.
func NewRegistry() *Registry {
	return &Registry{
		rides: make(map[string]*Ride),
	}
}

// Create publishes a ride. Ride IDs arrive from clients, so a
// duplicate is a protocol error for the caller to drop.
func (g *Registry) Create(r *Ride) error {
	g.mu.Lock()
	if _, exists := g.rides[r.ID]; exists {
		g.mu.Unlock()
		return ErrDuplicateRide
	}
	g.rides[r.ID] = r
	g.mu.Unlock()

	metrics.ActiveRides.Inc()
	return nil
}

// Get returns the live ride for ID. Mutating the result requires the
// ride's own lock.
func (g *Registry) Get(id string) (*Ride, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rides[id]
	return r, ok
}

// Delete removes a ride and stops its outstanding timers, so deletion
// never leaves a callback scheduled. Acquires the ride lock; callers
// must not hold it.
func (g *Registry) Delete(id string) bool {
	g.mu.Lock()
	r, ok := g.rides[id]
	if ok {
		delete(g.rides, id)
	}
	g.mu.Unlock()

	if !ok {
		return false
	}

	r.Lock()
	r.StopTimers()
	r.Unlock()

	metrics.ActiveRides.Dec()
	logger.Debug("Ride deleted", zap.String("ride_id", id))
	return true
}

// Count returns the number of live rides.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rides)
}
