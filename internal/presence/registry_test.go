package presence

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaults(t *testing.T) {
	reg := NewRegistry()
	reg.Register("conn-1", "driver-42")

	d, ok := reg.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, "conn-1", d.ConnID)
	assert.Equal(t, "driver-42", d.DriverID)
	assert.False(t, d.Available, "drivers must opt in to availability")
	assert.Nil(t, d.Last)
}

func TestReRegisterResetsRecord(t *testing.T) {
	reg := NewRegistry()
	reg.Register("conn-1", "driver-42")
	reg.SetAvailable("conn-1", true)
	require.True(t, reg.UpdateLocation("conn-1", -23.5, -46.6))

	reg.Register("conn-1", "driver-42")

	d, ok := reg.Get("conn-1")
	require.True(t, ok)
	assert.False(t, d.Available)
	assert.Nil(t, d.Last)
	assert.Equal(t, 1, reg.Count())
}

func TestSetAvailable(t *testing.T) {
	reg := NewRegistry()
	reg.Register("conn-1", "driver-42")

	assert.True(t, reg.SetAvailable("conn-1", true))
	d, _ := reg.Get("conn-1")
	assert.True(t, d.Available)

	assert.True(t, reg.SetAvailable("conn-1", false))
	d, _ = reg.Get("conn-1")
	assert.False(t, d.Available)

	assert.False(t, reg.SetAvailable("ghost", true))
}

func TestUpdateLocation(t *testing.T) {
	reg := NewRegistry()
	reg.Register("conn-1", "driver-42")

	require.True(t, reg.UpdateLocation("conn-1", -23.5475, -46.6361))

	d, _ := reg.Get("conn-1")
	require.NotNil(t, d.Last)
	assert.InDelta(t, -23.5475, d.Last.Coordinate.Latitude, 1e-9)
	assert.InDelta(t, -46.6361, d.Last.Coordinate.Longitude, 1e-9)
	assert.WithinDuration(t, time.Now(), d.Last.At, time.Second)
}

func TestUpdateLocationRejectsBadCoordinates(t *testing.T) {
	reg := NewRegistry()
	reg.Register("conn-1", "driver-42")

	tests := []struct {
		name string
		lat  float64
		lng  float64
	}{
		{"nan latitude", math.NaN(), -46.6},
		{"nan longitude", -23.5, math.NaN()},
		{"positive infinity", math.Inf(1), -46.6},
		{"negative infinity", -23.5, math.Inf(-1)},
		{"latitude out of range", 91.0, -46.6},
		{"longitude out of range", -23.5, 181.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, reg.UpdateLocation("conn-1", tt.lat, tt.lng))
			d, _ := reg.Get("conn-1")
			assert.Nil(t, d.Last, "rejected update must not touch the record")
		})
	}
}

func TestUpdateLocationUnknownConn(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.UpdateLocation("ghost", -23.5, -46.6))
}

func TestGetReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	reg.Register("conn-1", "driver-42")
	require.True(t, reg.UpdateLocation("conn-1", -23.5, -46.6))

	d, _ := reg.Get("conn-1")
	d.Available = true
	d.Last.Coordinate.Latitude = 0

	fresh, _ := reg.Get("conn-1")
	assert.False(t, fresh.Available)
	assert.InDelta(t, -23.5, fresh.Last.Coordinate.Latitude, 1e-9)
}

func TestRemove(t *testing.T) {
	reg := NewRegistry()
	reg.Register("conn-1", "driver-42")
	reg.SetAvailable("conn-1", true)

	assert.True(t, reg.Remove("conn-1"))
	_, ok := reg.Get("conn-1")
	assert.False(t, ok)

	assert.False(t, reg.Remove("conn-1"))
}

func TestSnapshot(t *testing.T) {
	reg := NewRegistry()
	reg.Register("conn-1", "driver-1")
	reg.Register("conn-2", "driver-2")
	reg.SetAvailable("conn-2", true)

	snap := reg.Snapshot()
	require.Len(t, snap, 2)

	byConn := make(map[string]Driver, len(snap))
	for _, d := range snap {
		byConn[d.ConnID] = d
	}
	assert.False(t, byConn["conn-1"].Available)
	assert.True(t, byConn["conn-2"].Available)
}

func TestFreshness(t *testing.T) {
	staleAfter := 50 * time.Millisecond
	reg := NewRegistry()
	reg.Register("conn-1", "driver-42")
	reg.SetAvailable("conn-1", true)

	d, _ := reg.Get("conn-1")
	assert.False(t, d.FreshAt(time.Now(), staleAfter), "no fix means not fresh")
	assert.False(t, d.EligibleAt(time.Now(), staleAfter))

	require.True(t, reg.UpdateLocation("conn-1", -23.5, -46.6))
	d, _ = reg.Get("conn-1")
	assert.True(t, d.FreshAt(time.Now(), staleAfter))
	assert.True(t, d.EligibleAt(time.Now(), staleAfter))

	time.Sleep(80 * time.Millisecond)
	assert.False(t, d.FreshAt(time.Now(), staleAfter), "fix older than the window is stale")
	assert.False(t, d.EligibleAt(time.Now(), staleAfter))
}

func TestEligibilityNeedsAvailability(t *testing.T) {
	staleAfter := time.Minute
	reg := NewRegistry()
	reg.Register("conn-1", "driver-42")
	require.True(t, reg.UpdateLocation("conn-1", -23.5, -46.6))

	d, _ := reg.Get("conn-1")
	assert.True(t, d.FreshAt(time.Now(), staleAfter))
	assert.False(t, d.EligibleAt(time.Now(), staleAfter), "fresh but unavailable must not be eligible")
}

func TestCounts(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 0, reg.Count())
	assert.Equal(t, 0, reg.AvailableCount())

	reg.Register("conn-1", "driver-1")
	reg.Register("conn-2", "driver-2")
	reg.SetAvailable("conn-1", true)

	assert.Equal(t, 2, reg.Count())
	assert.Equal(t, 1, reg.AvailableCount())

	reg.Remove("conn-1")
	assert.Equal(t, 1, reg.Count())
	assert.Equal(t, 0, reg.AvailableCount())
}

func TestConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := string(rune('a' + n))
			reg.Register(connID, "driver")
			reg.SetAvailable(connID, n%2 == 0)
			reg.UpdateLocation(connID, -23.5, -46.6)
			reg.Snapshot()
			reg.Get(connID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, reg.Count())
	assert.Equal(t, 5, reg.AvailableCount())
}
