package rides

import (
	"sync"
	"time"

	"github.com/vambora/dispatch/pkg/geo"
)

// Status is the lifecycle state of a ride.
type Status string

const (
	StatusSearching Status = "SEARCHING"
	StatusAccepted  Status = "ACCEPTED"
	StatusFailed    Status = "FAILED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

// Terminal reports whether the status ends the ride's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusFailed, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// OfferState is the state of a single solicitation sent to a driver.
type OfferState string

const (
	OfferPending OfferState = "PENDING"
	OfferWon     OfferState = "WON"
	OfferLost    OfferState = "LOST"
	OfferExpired OfferState = "EXPIRED"
)

// Offer records one solicitation of one driver connection for a ride.
type Offer struct {
	ID       string
	ConnID   string
	Round    int
	IssuedAt time.Time
	State    OfferState
}

// DriverInfo carries the winning driver's public details for room
// broadcasts and status queries.
type DriverInfo struct {
	DriverID         string
	Name             string
	Phone            string
	VehicleModel     string
	VehiclePlate     string
	ApproachPolyline string
}

// Ride is the live dispatch state for one ride request. The embedded
// mutex guards every mutable field; methods documented as requiring
// the lock must be called with it held.
type Ride struct {
	sync.Mutex

	ID                 string
	Status             Status
	PassengerConnID    string
	PassengerID        string
	PassengerName      string
	PickupAddress      string
	Pickup             geo.Coordinate
	DestinationAddress string
	Destination        geo.Coordinate
	RoutePolyline      string
	Fare               float64
	RequestedAt        time.Time

	Round        int
	Offers       map[string]*Offer
	OfferedConns map[string]struct{}
	WinnerConnID string
	Driver       *DriverInfo

	auctionTimer *time.Timer
	lingerTimer  *time.Timer
}

// NewRide creates a ride in SEARCHING state with empty offer books.
// Descriptive fields are filled by the caller before the ride is
// published to a registry.
func NewRide(id string) *Ride {
	return &Ride{
		ID:           id,
		Status:       StatusSearching,
		Offers:       make(map[string]*Offer),
		OfferedConns: make(map[string]struct{}),
		RequestedAt:  time.Now(),
	}
}

// RoomName returns the per-ride room identifier.
func RoomName(rideID string) string {
	return "ride:" + rideID
}

// AddOffer books a new solicitation. Caller must hold the ride lock.
func (r *Ride) AddOffer(o *Offer) {
	r.Offers[o.ID] = o
	r.OfferedConns[o.ConnID] = struct{}{}
}

// Offer looks up a solicitation by ID. Caller must hold the ride lock.
func (r *Ride) Offer(offerID string) (*Offer, bool) {
	o, ok := r.Offers[offerID]
	return o, ok
}

// SolicitedConns returns a copy of the connections already offered
// this ride. Caller must hold the ride lock.
func (r *Ride) SolicitedConns() map[string]struct{} {
	out := make(map[string]struct{}, len(r.OfferedConns))
	for connID := range r.OfferedConns {
		out[connID] = struct{}{}
	}
	return out
}

// MarkLosersExcept moves every pending offer except the winner to
// LOST and returns the losing connection IDs. Caller must hold the
// ride lock.
func (r *Ride) MarkLosersExcept(winningOfferID string) []string {
	var losers []string
	for id, o := range r.Offers {
		if id == winningOfferID || o.State != OfferPending {
			continue
		}
		o.State = OfferLost
		losers = append(losers, o.ConnID)
	}
	return losers
}

// ExpirePendingOffers moves every pending offer to EXPIRED and
// returns how many were expired. Used when a ride leaves SEARCHING
// without an award. Caller must hold the ride lock.
func (r *Ride) ExpirePendingOffers() int {
	n := 0
	for _, o := range r.Offers {
		if o.State == OfferPending {
			o.State = OfferExpired
			n++
		}
	}
	return n
}

// ArmAuctionTimer replaces the ride's auction timer, stopping any
// previous one. Caller must hold the ride lock.
func (r *Ride) ArmAuctionTimer(t *time.Timer) {
	if r.auctionTimer != nil {
		r.auctionTimer.Stop()
	}
	r.auctionTimer = t
}

// StopAuctionTimer stops and clears the auction timer. Caller must
// hold the ride lock.
func (r *Ride) StopAuctionTimer() {
	if r.auctionTimer != nil {
		r.auctionTimer.Stop()
		r.auctionTimer = nil
	}
}

// ArmLingerTimer replaces the ride's teardown timer, stopping any
// previous one. Caller must hold the ride lock.
func (r *Ride) ArmLingerTimer(t *time.Timer) {
	if r.lingerTimer != nil {
		r.lingerTimer.Stop()
	}
	r.lingerTimer = t
}

// StopTimers stops and clears both timers. Caller must hold the ride
// lock.
func (r *Ride) StopTimers() {
	r.StopAuctionTimer()
	if r.lingerTimer != nil {
		r.lingerTimer.Stop()
		r.lingerTimer = nil
	}
}
