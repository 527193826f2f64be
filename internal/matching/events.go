package matching

import "github.com/vambora/dispatch/pkg/geo"

// Events emitted by the auction and the acceptance arbiter.
const (
	EventRideAvailable = "corrida_disponivel"
	EventOfferWon      = "offer_won"
	EventOfferLost     = "offer_lost"
	EventNoDrivers     = "sem_motoristas"
	EventRideAccepted  = "corrida_aceita"
)

// Reasons attached to offer_lost frames.
const (
	ReasonNotSearching = "not_searching"
	ReasonOfferInvalid = "offer_invalid"
	ReasonAlreadyTaken = "already_taken"
)

// OfferPayload is the corrida_disponivel frame sent to one driver.
// ExpiresAt is epoch milliseconds.
type OfferPayload struct {
	OfferID             string         `json:"offerId"`
	RideID              string         `json:"rideId"`
	PassengerName       string         `json:"passengerName"`
	PickupAddress       string         `json:"pickupAddress"`
	PickupLocation      geo.Coordinate `json:"pickupLocation"`
	DestinationAddress  string         `json:"destinationAddress"`
	DestinationLocation geo.Coordinate `json:"destinationLocation"`
	RoutePolyline       string         `json:"routePolyline"`
	Fare                float64        `json:"fare"`
	ExpiresAt           int64          `json:"expiresAt"`
}

// OfferWonPayload confirms the award to the winning driver.
type OfferWonPayload struct {
	RideID string `json:"rideId"`
}

// OfferLostPayload tells a driver their offer is gone and why.
type OfferLostPayload struct {
	RideID string `json:"rideId"`
	Reason string `json:"reason"`
}

// NoDriversPayload tells the passenger the auction exhausted.
type NoDriversPayload struct {
	RideID string `json:"rideId"`
}

// RideAcceptedPayload is the corrida_aceita frame broadcast to the
// ride room after an award. Timestamp is epoch milliseconds.
type RideAcceptedPayload struct {
	RideID           string `json:"rideId"`
	DriverID         string `json:"driverId"`
	DriverName       string `json:"driverName"`
	DriverPhone      string `json:"driverPhone"`
	VehicleModel     string `json:"vehicleModel"`
	VehiclePlate     string `json:"vehiclePlate"`
	Status           string `json:"status"`
	Message          string `json:"message"`
	Timestamp        int64  `json:"timestamp"`
	ApproachPolyline string `json:"approachPolyline,omitempty"`
}

// AcceptRequest is the inbound corrida_aceita frame from a driver.
// Driver details ride along for the room broadcast; the arbiter only
// needs the ride and offer IDs.
type AcceptRequest struct {
	RideID           string `json:"rideId" validate:"required"`
	OfferID          string `json:"offerId" validate:"required"`
	DriverID         string `json:"driverId" validate:"required"`
	DriverName       string `json:"driverName"`
	DriverPhone      string `json:"driverPhone"`
	VehicleModel     string `json:"vehicleModel"`
	VehiclePlate     string `json:"vehiclePlate"`
	ApproachPolyline string `json:"approachPolyline"`
}
