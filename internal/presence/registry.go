package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vambora/dispatch/pkg/geo"
	"github.com/vambora/dispatch/pkg/logger"
	"github.com/vambora/dispatch/pkg/metrics"
)

// Location is a driver's last reported position fix.
type Location struct {
	Coordinate geo.Coordinate
	At         time.Time
}

// Driver is the presence record for one connected driver session.
// Records are keyed by connection ID: a driver who reconnects gets a
// fresh record with Available false and no location.
type Driver struct {
	ConnID    string
	DriverID  string
	Available bool
	Last      *Location
}

// FreshAt reports whether the driver's last position fix is recent
// enough to trust at the given instant. A driver with no fix is never
// fresh.
func (d Driver) FreshAt(now time.Time, staleAfter time.Duration) bool {
	if d.Last == nil {
		return false
	}
	return now.Sub(d.Last.At) <= staleAfter
}

// EligibleAt reports whether the driver can be ranked by distance for
// a new ride: available and with a fresh position fix.
func (d Driver) EligibleAt(now time.Time, staleAfter time.Duration) bool {
	return d.Available && d.FreshAt(now, staleAfter)
}

// Registry tracks connected drivers in memory. All methods are safe
// for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]*Driver
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]*Driver),
	}
}

// Register creates a presence record for a newly identified driver
// connection. Availability starts false; the driver opts in with an
// explicit status frame. Re-identifying on the same connection resets
// the record.
func (r *Registry) Register(connID, driverID string) {
	r.mu.Lock()
	prev, existed := r.drivers[connID]
	r.drivers[connID] = &Driver{
		ConnID:   connID,
		DriverID: driverID,
	}
	r.mu.Unlock()

	if !existed {
		metrics.DriversConnected.Inc()
	} else if prev.Available {
		metrics.DriversAvailable.Dec()
	}

	logger.Debug("Driver registered",
		zap.String("conn_id", connID),
		zap.String("driver_id", driverID))
}

// SetAvailable flips the driver's availability flag. Unknown
// connections are ignored.
func (r *Registry) SetAvailable(connID string, available bool) bool {
	r.mu.Lock()
	d, ok := r.drivers[connID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	changed := d.Available != available
	d.Available = available
	r.mu.Unlock()

	if changed {
		if available {
			metrics.DriversAvailable.Inc()
		} else {
			metrics.DriversAvailable.Dec()
		}
	}
	return true
}

// UpdateLocation records a position fix for the driver behind connID.
// Non-finite or out-of-range coordinates are dropped. Unknown
// connections are ignored, so passengers and unidentified sockets can
// share the same telemetry path.
func (r *Registry) UpdateLocation(connID string, lat, lng float64) bool {
	coord := geo.Coordinate{Latitude: lat, Longitude: lng}
	if !coord.Finite() || !coord.InRange() {
		logger.Debug("Dropping invalid location update",
			zap.String("conn_id", connID),
			zap.Float64("lat", lat),
			zap.Float64("lng", lng))
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[connID]
	if !ok {
		return false
	}
	d.Last = &Location{
		Coordinate: coord,
		At:         time.Now(),
	}
	return true
}

// Get returns a copy of the presence record for connID.
func (r *Registry) Get(connID string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drivers[connID]
	if !ok {
		return Driver{}, false
	}
	return copyDriver(d), true
}

// Remove deletes the presence record for a closed or demoted
// connection.
func (r *Registry) Remove(connID string) bool {
	r.mu.Lock()
	d, ok := r.drivers[connID]
	if ok {
		delete(r.drivers, connID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	metrics.DriversConnected.Dec()
	if d.Available {
		metrics.DriversAvailable.Dec()
	}

	logger.Debug("Driver removed",
		zap.String("conn_id", connID),
		zap.String("driver_id", d.DriverID))
	return true
}

// Snapshot returns copies of every presence record. The result is
// safe to read without holding registry locks.
func (r *Registry) Snapshot() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		out = append(out, copyDriver(d))
	}
	return out
}

// Count returns the number of registered driver connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drivers)
}

// AvailableCount returns the number of drivers currently flagged
// available.
func (r *Registry) AvailableCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, d := range r.drivers {
		if d.Available {
			n++
		}
	}
	return n
}

func copyDriver(d *Driver) Driver {
	out := *d
	if d.Last != nil {
		last := *d.Last
		out.Last = &last
	}
	return out
}
