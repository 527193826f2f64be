package eventbus

import "time"

// RideRequestedData is emitted when a passenger opens an auction.
type RideRequestedData struct {
	RideID             string    `json:"ride_id"`
	PassengerID        string    `json:"passenger_id"`
	PassengerName      string    `json:"passenger_name"`
	PickupAddress      string    `json:"pickup_address"`
	PickupLatitude     float64   `json:"pickup_latitude"`
	PickupLongitude    float64   `json:"pickup_longitude"`
	DestinationAddress string    `json:"destination_address"`
	DestLatitude       float64   `json:"dest_latitude"`
	DestLongitude      float64   `json:"dest_longitude"`
	Fare               float64   `json:"fare"`
	RequestedAt        time.Time `json:"requested_at"`
}

// RideOfferedData is emitted once per auction batch.
type RideOfferedData struct {
	RideID    string    `json:"ride_id"`
	Round     int       `json:"round"`
	BatchSize int       `json:"batch_size"`
	OfferedAt time.Time `json:"offered_at"`
}

// RideAcceptedData is emitted when a driver wins the auction.
type RideAcceptedData struct {
	RideID       string    `json:"ride_id"`
	DriverID     string    `json:"driver_id"`
	DriverName   string    `json:"driver_name"`
	VehicleModel string    `json:"vehicle_model"`
	VehiclePlate string    `json:"vehicle_plate"`
	AcceptedAt   time.Time `json:"accepted_at"`
}

// RideFailedData is emitted when the auction exhausts without a winner.
type RideFailedData struct {
	RideID     string    `json:"ride_id"`
	Rounds     int       `json:"rounds"`
	OffersSent int       `json:"offers_sent"`
	FailedAt   time.Time `json:"failed_at"`
}

// RideStatusData is emitted on terminal status transitions after acceptance.
type RideStatusData struct {
	RideID string    `json:"ride_id"`
	Status string    `json:"status"`
	By     string    `json:"by,omitempty"`
	At     time.Time `json:"at"`
}
