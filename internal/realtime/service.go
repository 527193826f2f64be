package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vambora/dispatch/internal/matching"
	"github.com/vambora/dispatch/internal/presence"
	"github.com/vambora/dispatch/internal/rides"
	"github.com/vambora/dispatch/pkg/async"
	"github.com/vambora/dispatch/pkg/common"
	"github.com/vambora/dispatch/pkg/eventbus"
	"github.com/vambora/dispatch/pkg/geo"
	"github.com/vambora/dispatch/pkg/logger"
	"github.com/vambora/dispatch/pkg/metrics"
	"github.com/vambora/dispatch/pkg/redis"
	"github.com/vambora/dispatch/pkg/validation"
	"github.com/vambora/dispatch/pkg/websocket"
)

const (
	chatKeyPrefix     = "ride:chat:"
	locationKeyPrefix = "driver:location:"
	locationTTL       = 5 * time.Minute
	chatHistoryLimit  = 200
	redisTimeout      = 2 * time.Second
)

var (
	errDriverOnly    = errors.New("driver-only event")
	errPassengerOnly = errors.New("passenger-only event")
	errNotRoomMember = errors.New("sender is not in the ride room")
	errBadCoordinate = errors.New("coordinate out of range")
)

// Config tunes the session fabric.
type Config struct {
	// Linger is how long a finished ride keeps its room so final
	// frames still fan out.
	Linger time.Duration

	// ChatHistoryTTL bounds how long a ride's chat log survives.
	ChatHistoryTTL time.Duration

	// QuickTest is echoed in identification acks so clients know the
	// selection override is on.
	QuickTest bool
}

// Service is the connection gateway and per-ride session router. It
// identifies peers, opens auctions, and relays ride-scoped telemetry,
// chat and status between room members.
type Service struct {
	hub      *websocket.Hub
	drivers  *presence.Registry
	rides    *rides.Registry
	matching *matching.Service
	redis    redis.ClientInterface
	bus      *eventbus.Bus
	cfg      Config
}

// NewService wires the gateway. redisClient and bus may be nil when
// those backends are disabled; chat history and the location mirror
// degrade to no-ops.
func NewService(
	hub *websocket.Hub,
	drivers *presence.Registry,
	registry *rides.Registry,
	matchingSvc *matching.Service,
	redisClient redis.ClientInterface,
	bus *eventbus.Bus,
	cfg Config,
) *Service {
	return &Service{
		hub:      hub,
		drivers:  drivers,
		rides:    registry,
		matching: matchingSvc,
		redis:    redisClient,
		bus:      bus,
		cfg:      cfg,
	}
}

// RegisterHandlers binds every inbound event to its handler and hooks
// connection teardown.
func (s *Service) RegisterHandlers() {
	s.hub.RegisterHandler(EventIdentify, s.handleIdentify)
	s.hub.RegisterHandler(EventDriverStatus, s.handleDriverStatus)
	s.hub.RegisterHandler(EventDriverLocation, s.handleDriverLocation)
	s.hub.RegisterHandler(EventNewRide, s.handleNewRide)
	s.hub.RegisterHandler(matching.EventRideAccepted, s.handleAccept)
	s.hub.RegisterHandler(EventSendMessage, s.handleChat)
	s.hub.RegisterHandler(EventRideStatus, s.handleRideStatus)
	s.hub.RegisterHandler(EventTyping, s.handleTyping)
	s.hub.SetOnDisconnect(s.handleDisconnect)
}

// handleIdentify declares a connection's role. Drivers get a presence
// record starting unavailable; passengers join the passive group.
func (s *Service) handleIdentify(client *websocket.Client, msg *websocket.Message) {
	var req IdentifyRequest
	if err := msg.DecodeData(&req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}

	switch req.Tipo {
	case websocket.RoleDriver:
		client.SetRole(websocket.RoleDriver)
		s.drivers.Register(client.ID, req.DriverID)
	case websocket.RolePassenger:
		if client.Role() == websocket.RoleDriver {
			s.drivers.Remove(client.ID)
		}
		client.SetRole(websocket.RolePassenger)
		s.hub.JoinRoom(client.ID, PassengerRoom)
	default:
		s.hub.SendToConn(client.ID, websocket.NewMessage(EventStatus, StatusAck{OK: false, Error: "tipo_invalido"}))
		return
	}

	logger.Info("Connection identified",
		zap.String("conn_id", client.ID),
		zap.String("tipo", req.Tipo),
		zap.String("driver_id", req.DriverID))

	s.hub.SendToConn(client.ID, websocket.NewMessage(EventStatus, StatusAck{
		OK:        true,
		Tipo:      req.Tipo,
		QuickTest: s.cfg.QuickTest,
	}))
}

func (s *Service) handleDriverStatus(client *websocket.Client, msg *websocket.Message) {
	if client.Role() != websocket.RoleDriver {
		s.dropProtocol(client, msg.Event, errDriverOnly)
		return
	}

	var req DriverStatusRequest
	if err := msg.DecodeData(&req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}

	if !s.drivers.SetAvailable(client.ID, req.Available) {
		logger.Warn("Availability update for unknown presence", zap.String("conn_id", client.ID))
		return
	}

	logger.Debug("Driver availability updated",
		zap.String("conn_id", client.ID),
		zap.Bool("available", req.Available))
}

// handleDriverLocation feeds the presence registry and, when the
// driver is on a ride, relays the position to the room with a server
// timestamp.
func (s *Service) handleDriverLocation(client *websocket.Client, msg *websocket.Message) {
	var req LocationUpdate
	if err := msg.DecodeData(&req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}

	coord := geo.Coordinate{Latitude: req.Lat, Longitude: req.Lng}
	if !coord.InRange() {
		s.dropProtocol(client, msg.Event, errBadCoordinate)
		return
	}

	s.drivers.UpdateLocation(client.ID, req.Lat, req.Lng)
	s.mirrorLocation(client.ID, req)

	if req.RideID == "" {
		return
	}
	room := rides.RoomName(req.RideID)
	if !s.hub.InRoom(client.ID, room) {
		return
	}

	s.hub.SendToRoom(room, websocket.NewMessage(EventDriverLocation, LocationBroadcast{
		RideID:    req.RideID,
		Lat:       req.Lat,
		Lng:       req.Lng,
		Heading:   req.Heading,
		Speed:     req.Speed,
		Timestamp: time.Now().UnixMilli(),
	}))
}

// handleNewRide books the ride, puts the passenger in the ride room
// and opens the auction.
func (s *Service) handleNewRide(client *websocket.Client, msg *websocket.Message) {
	if client.Role() != websocket.RolePassenger {
		s.dropProtocol(client, msg.Event, errPassengerOnly)
		return
	}

	var req NewRideRequest
	if err := msg.DecodeData(&req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}
	if !req.PickupLocation.InRange() || !req.DestinationLocation.InRange() {
		s.dropProtocol(client, msg.Event, errBadCoordinate)
		return
	}

	ride := rides.NewRide(req.RideID)
	ride.PassengerConnID = client.ID
	ride.PassengerID = req.PassengerID
	ride.PassengerName = req.PassengerName
	ride.PickupAddress = req.PickupAddress
	ride.Pickup = req.PickupLocation
	ride.DestinationAddress = req.DestinationAddress
	ride.Destination = req.DestinationLocation
	ride.RoutePolyline = req.RoutePolyline
	ride.Fare = req.Fare

	if err := s.rides.Create(ride); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}

	s.hub.JoinRoom(client.ID, rides.RoomName(req.RideID))

	logger.Info("Ride requested",
		zap.String("ride_id", req.RideID),
		zap.String("passenger_id", req.PassengerID),
		zap.Float64("fare", req.Fare))
	metrics.RecordRide("requested")

	s.publish(eventbus.SubjectRideRequested, "ride.requested", eventbus.RideRequestedData{
		RideID:             req.RideID,
		PassengerID:        req.PassengerID,
		PassengerName:      req.PassengerName,
		PickupAddress:      req.PickupAddress,
		PickupLatitude:     req.PickupLocation.Latitude,
		PickupLongitude:    req.PickupLocation.Longitude,
		DestinationAddress: req.DestinationAddress,
		DestLatitude:       req.DestinationLocation.Latitude,
		DestLongitude:      req.DestinationLocation.Longitude,
		Fare:               req.Fare,
		RequestedAt:        ride.RequestedAt.UTC(),
	})

	s.matching.StartAuction(req.RideID)
}

func (s *Service) handleAccept(client *websocket.Client, msg *websocket.Message) {
	var req matching.AcceptRequest
	if err := msg.DecodeData(&req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}
	s.matching.Accept(client.ID, req)
}

// handleChat fans a message out to the room and appends it to the
// capped history. Membership is the only authorization.
func (s *Service) handleChat(client *websocket.Client, msg *websocket.Message) {
	var req ChatRequest
	if err := msg.DecodeData(&req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}

	room := rides.RoomName(req.RideID)
	if !s.hub.InRoom(client.ID, room) {
		s.dropProtocol(client, msg.Event, errNotRoomMember)
		return
	}

	now := time.Now().UnixMilli()
	s.hub.SendToRoom(room, websocket.NewMessage(EventNewMessage, ChatBroadcast{
		From:      req.From,
		Message:   req.Message,
		Timestamp: now,
	}))

	s.storeChatMessage(req.RideID, ChatMessage{From: req.From, Message: req.Message, Timestamp: now})
}

// handleRideStatus relays progress reports and winds the ride down on
// a terminal status.
func (s *Service) handleRideStatus(client *websocket.Client, msg *websocket.Message) {
	var req RideStatusRequest
	if err := msg.DecodeData(&req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}

	room := rides.RoomName(req.RideID)
	if !s.hub.InRoom(client.ID, room) {
		s.dropProtocol(client, msg.Event, errNotRoomMember)
		return
	}

	s.hub.SendToRoom(room, websocket.NewMessage(EventRideStatusUpdated, RideStatusBroadcast{
		RideID:    req.RideID,
		By:        req.By,
		Status:    req.Status,
		Timestamp: time.Now().UnixMilli(),
	}))

	if req.Status == "completed" || req.Status == "canceled" {
		s.finishRide(req.RideID, req.Status, req.By)
	}
}

// handleTyping relays the indicator to everyone in the room except
// the sender.
func (s *Service) handleTyping(client *websocket.Client, msg *websocket.Message) {
	var req TypingSignal
	if err := msg.DecodeData(&req); err != nil {
		s.dropProtocol(client, msg.Event, err)
		return
	}
	if req.RideID == "" {
		s.dropProtocol(client, msg.Event, errNotRoomMember)
		return
	}

	room := rides.RoomName(req.RideID)
	if !s.hub.InRoom(client.ID, room) {
		return
	}

	out := websocket.NewMessage(EventTyping, TypingBroadcast{
		RideID:    req.RideID,
		From:      req.From,
		IsTyping:  req.IsTyping,
		Timestamp: time.Now().UnixMilli(),
	})
	for _, member := range s.hub.RoomMembers(room) {
		if member.ID == client.ID {
			continue
		}
		s.hub.SendToConn(member.ID, out)
	}
}

// handleDisconnect removes driver presence when the hub drops a
// connection. Rides the driver already won stay ACCEPTED; only an
// explicit status frame ends a ride.
func (s *Service) handleDisconnect(client *websocket.Client) {
	if s.drivers.Remove(client.ID) {
		logger.Info("Driver disconnected", zap.String("conn_id", client.ID))
		return
	}
	logger.Debug("Connection closed",
		zap.String("conn_id", client.ID),
		zap.String("role", client.Role()))
}

// finishRide applies a terminal status and schedules room teardown
// after the linger window.
func (s *Service) finishRide(rideID, status, by string) {
	ride, ok := s.rides.Get(rideID)
	if !ok {
		return
	}

	final := rides.StatusCompleted
	if status == "canceled" {
		final = rides.StatusCanceled
	}

	ride.Lock()
	if ride.Status.Terminal() {
		ride.Unlock()
		return
	}
	wasSearching := ride.Status == rides.StatusSearching
	ride.Status = final
	ride.StopAuctionTimer()
	expired := 0
	if wasSearching {
		expired = ride.ExpirePendingOffers()
	}
	ride.ArmLingerTimer(time.AfterFunc(s.cfg.Linger, func() {
		async.Go(context.Background(), "ride-teardown", func(context.Context) {
			s.teardownRide(rideID)
		})
	}))
	ride.Unlock()

	if expired > 0 {
		metrics.OffersTotal.WithLabelValues("expired").Add(float64(expired))
	}
	metrics.RecordRide(status)

	logger.Info("Ride reached terminal status",
		zap.String("ride_id", rideID),
		zap.String("status", status),
		zap.String("by", by))

	subject := eventbus.SubjectRideCompleted
	eventType := "ride.completed"
	if final == rides.StatusCanceled {
		subject = eventbus.SubjectRideCancelled
		eventType = "ride.cancelled"
	}
	s.publish(subject, eventType, eventbus.RideStatusData{
		RideID: rideID,
		Status: status,
		By:     by,
		At:     time.Now().UTC(),
	})
}

// teardownRide evicts the room and deletes the ride once the linger
// passes. After this, frames referencing the ride find no room and
// die silently.
func (s *Service) teardownRide(rideID string) {
	s.hub.EvictRoom(rides.RoomName(rideID))
	if s.rides.Delete(rideID) {
		logger.Debug("Ride state torn down", zap.String("ride_id", rideID))
	}

	if s.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
		defer cancel()
		if err := s.redis.Delete(ctx, chatKeyPrefix+rideID); err != nil {
			logger.Warn("Failed to drop chat history", zap.String("ride_id", rideID), zap.Error(err))
		}
	}
}

// mirrorLocation caches the driver's position for the location
// endpoint. Best effort; dispatch never depends on it.
func (s *Service) mirrorLocation(connID string, loc LocationUpdate) {
	if s.redis == nil {
		return
	}
	d, ok := s.drivers.Get(connID)
	if !ok || d.DriverID == "" {
		return
	}

	entry := DriverLocationEntry{
		DriverID:  d.DriverID,
		Lat:       loc.Lat,
		Lng:       loc.Lng,
		Heading:   loc.Heading,
		Speed:     loc.Speed,
		UpdatedAt: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := s.redis.SetWithExpiration(ctx, locationKeyPrefix+d.DriverID, string(data), locationTTL); err != nil {
		logger.Warn("Failed to mirror driver location",
			zap.String("driver_id", d.DriverID),
			zap.Error(err))
	}
}

// storeChatMessage appends to the capped per-ride history. Chat still
// flows when Redis is down; history is best effort.
func (s *Service) storeChatMessage(rideID string, entry ChatMessage) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	key := chatKeyPrefix + rideID
	if err := s.redis.RPush(ctx, key, string(data)); err != nil {
		logger.Warn("Failed to store chat message", zap.String("ride_id", rideID), zap.Error(err))
		return
	}
	if err := s.redis.LTrim(ctx, key, -chatHistoryLimit, -1); err != nil {
		logger.Warn("Failed to trim chat history", zap.String("ride_id", rideID), zap.Error(err))
	}
	if err := s.redis.Expire(ctx, key, s.cfg.ChatHistoryTTL); err != nil {
		logger.Warn("Failed to expire chat history", zap.String("ride_id", rideID), zap.Error(err))
	}
}

// GetChatHistory returns the persisted messages for a ride, oldest
// first. Corrupt entries are skipped, not fatal.
func (s *Service) GetChatHistory(ctx context.Context, rideID string) ([]ChatMessage, error) {
	if s.redis == nil {
		return nil, common.NewAppError(http.StatusServiceUnavailable, "chat history is not configured", nil)
	}

	raw, err := s.redis.LRange(ctx, chatKeyPrefix+rideID, 0, -1)
	if err != nil {
		return nil, common.NewInternalError("failed to load chat history", err)
	}

	out := make([]ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			logger.Warn("Skipping corrupt chat entry", zap.String("ride_id", rideID), zap.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// GetDriverLocation returns the last mirrored position for a driver.
func (s *Service) GetDriverLocation(ctx context.Context, driverID string) (*DriverLocationEntry, error) {
	if s.redis == nil {
		return nil, common.NewAppError(http.StatusServiceUnavailable, "location cache is not configured", nil)
	}

	raw, err := s.redis.GetString(ctx, locationKeyPrefix+driverID)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, common.NewNotFoundError("no recent location for driver", err)
		}
		return nil, common.NewInternalError("failed to load driver location", err)
	}

	var entry DriverLocationEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, common.NewInternalError("corrupt location entry", err)
	}
	return &entry, nil
}

// GetStats snapshots the live counters.
func (s *Service) GetStats() Stats {
	return Stats{
		ConnectedClients: s.hub.ClientCount(),
		DriversOnline:    s.drivers.Count(),
		DriversAvailable: s.drivers.AvailableCount(),
		ActiveRides:      s.rides.Count(),
		Rooms:            s.hub.RoomCount(),
	}
}

// dropProtocol logs and counts a malformed frame. The peer gets no
// reply; error chatter to untrusted clients only invites probing.
func (s *Service) dropProtocol(client *websocket.Client, event string, err error) {
	metrics.RecordProtocolDrop(event)
	logger.Warn("Dropping malformed frame",
		zap.String("event", event),
		zap.String("conn_id", client.ID),
		zap.Error(err))
}

// publish emits a lifecycle event off the hot path. A nil bus is a
// no-op.
func (s *Service) publish(subject, eventType string, data interface{}) {
	if s.bus == nil {
		return
	}
	async.Go(context.Background(), "publish "+subject, func(ctx context.Context) {
		evt, err := eventbus.NewEvent(eventType, "dispatch", data)
		if err != nil {
			logger.Error("Failed to build bus event", zap.String("subject", subject), zap.Error(err))
			return
		}
		err = s.bus.Publish(ctx, subject, evt)
		metrics.RecordEventPublish(subject, err)
		if err != nil {
			logger.Error("Failed to publish bus event", zap.String("subject", subject), zap.Error(err))
		}
	})
}
