package realtime

import "github.com/vambora/dispatch/pkg/geo"

// Events handled and emitted by the gateway and session router. The
// acceptance frame is owned by the matching package since it both
// receives and rebroadcasts it.
const (
	EventIdentify          = "identificar"
	EventDriverStatus      = "driver_status"
	EventDriverLocation    = "driver_localizacao"
	EventNewRide           = "nova_corrida"
	EventSendMessage       = "enviar_mensagem"
	EventNewMessage        = "nova_mensagem"
	EventRideStatus        = "corrida_status"
	EventRideStatusUpdated = "corrida_status_atualizada"
	EventTyping            = "digitando"
	EventStatus            = "status"
)

// PassengerRoom is the passive group every identified passenger joins.
const PassengerRoom = "passageiros"

// IdentifyRequest declares what kind of peer a connection is.
type IdentifyRequest struct {
	Tipo     string `json:"tipo" validate:"required"`
	DriverID string `json:"driverId"`
}

// StatusAck is the generic acknowledgement frame.
type StatusAck struct {
	OK        bool   `json:"ok"`
	Tipo      string `json:"tipo,omitempty"`
	Error     string `json:"error,omitempty"`
	QuickTest bool   `json:"quickTest,omitempty"`
}

// DriverStatusRequest flips a driver's availability.
type DriverStatusRequest struct {
	Available bool `json:"available"`
}

// LocationUpdate is inbound driver telemetry. RideID is set once the
// driver is on a ride and wants the position relayed to the room.
type LocationUpdate struct {
	RideID  string  `json:"rideId,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Heading float64 `json:"heading,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
}

// LocationBroadcast is the room relay of driver telemetry. Timestamp
// is stamped by the server in epoch milliseconds.
type LocationBroadcast struct {
	RideID    string  `json:"rideId"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed"`
	Timestamp int64   `json:"timestamp"`
}

// NewRideRequest opens an auction for a passenger.
type NewRideRequest struct {
	RideID              string         `json:"rideId" validate:"required"`
	PassengerID         string         `json:"passengerId" validate:"required"`
	PassengerName       string         `json:"passengerName" validate:"required"`
	PickupAddress       string         `json:"pickupAddress" validate:"required"`
	PickupLocation      geo.Coordinate `json:"pickupLocation"`
	DestinationAddress  string         `json:"destinationAddress" validate:"required"`
	DestinationLocation geo.Coordinate `json:"destinationLocation"`
	Fare                float64        `json:"fare"`
	RoutePolyline       string         `json:"routePolyline"`
}

// ChatRequest is an inbound chat message for a ride room.
type ChatRequest struct {
	RideID  string `json:"rideId" validate:"required"`
	From    string `json:"from" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// ChatBroadcast is the fan-out form of a chat message.
type ChatBroadcast struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ChatMessage is one persisted chat history entry.
type ChatMessage struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// RideStatusRequest reports ride progress from a room member.
type RideStatusRequest struct {
	RideID string `json:"rideId" validate:"required"`
	By     string `json:"by"`
	Status string `json:"status" validate:"required,oneof=arrived_pickup ongoing arrived_dropoff completed canceled no_show"`
}

// RideStatusBroadcast is the stamped relay of a status report.
type RideStatusBroadcast struct {
	RideID    string `json:"rideId"`
	By        string `json:"by,omitempty"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// TypingSignal is the inbound typing indicator.
type TypingSignal struct {
	RideID   string `json:"rideId" validate:"required"`
	From     string `json:"from"`
	IsTyping bool   `json:"isTyping"`
}

// TypingBroadcast relays a typing indicator to the rest of the room.
type TypingBroadcast struct {
	RideID    string `json:"rideId"`
	From      string `json:"from"`
	IsTyping  bool   `json:"isTyping"`
	Timestamp int64  `json:"timestamp"`
}

// DriverLocationEntry is the cached position served by the driver
// location endpoint.
type DriverLocationEntry struct {
	DriverID  string  `json:"driverId"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed"`
	UpdatedAt int64   `json:"updatedAt"`
}

// Stats is the operational snapshot served by the stats endpoint.
type Stats struct {
	ConnectedClients int `json:"connected_clients"`
	DriversOnline    int `json:"drivers_online"`
	DriversAvailable int `json:"drivers_available"`
	ActiveRides      int `json:"active_rides"`
	Rooms            int `json:"rooms"`
}
