package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vambora/dispatch/internal/rides"
	"github.com/vambora/dispatch/pkg/async"
	"github.com/vambora/dispatch/pkg/eventbus"
	"github.com/vambora/dispatch/pkg/logger"
	"github.com/vambora/dispatch/pkg/metrics"
	"github.com/vambora/dispatch/pkg/websocket"
)

// Config tunes the auction scheduler.
type Config struct {
	// BatchSize is how many drivers each round solicits at most.
	BatchSize int

	// MaxRounds bounds how many rounds a ride may run.
	MaxRounds int

	// OfferTTL is how long a round's offers stay open before the
	// auction moves on.
	OfferTTL time.Duration

	// RetryDelay is the pause before retrying a round that found no
	// candidates.
	RetryDelay time.Duration
}

// Service runs the offer auction for searching rides and arbitrates
// driver acceptances. One instance serves all rides; per-ride state
// lives on the ride itself.
type Service struct {
	hub      *websocket.Hub
	rides    *rides.Registry
	selector *Selector
	bus      *eventbus.Bus
	cfg      Config
}

// NewService creates the auction service. bus may be nil when NATS is
// disabled.
func NewService(hub *websocket.Hub, registry *rides.Registry, selector *Selector, bus *eventbus.Bus, cfg Config) *Service {
	return &Service{
		hub:      hub,
		rides:    registry,
		selector: selector,
		bus:      bus,
		cfg:      cfg,
	}
}

// StartAuction opens the offer auction for a freshly created ride.
func (s *Service) StartAuction(rideID string) {
	logger.Info("Starting auction", zap.String("ride_id", rideID))
	s.dispatchRound(rideID)
}

// dispatchRound solicits one batch of drivers for the ride's current
// round. Selection runs outside the ride lock; the ride is re-checked
// before any offer is booked.
func (s *Service) dispatchRound(rideID string) {
	ride, ok := s.rides.Get(rideID)
	if !ok {
		return
	}

	ride.Lock()
	if ride.Status != rides.StatusSearching {
		ride.Unlock()
		return
	}
	if ride.Round >= s.cfg.MaxRounds {
		s.finishExhausted(ride)
		return
	}
	pickup := ride.Pickup
	exclude := ride.SolicitedConns()
	ride.Unlock()

	shortlist := s.selector.Shortlist(pickup, exclude)
	if len(shortlist) > s.cfg.BatchSize {
		shortlist = shortlist[:s.cfg.BatchSize]
	}

	ride.Lock()
	if ride.Status != rides.StatusSearching {
		ride.Unlock()
		return
	}

	if len(shortlist) == 0 {
		if ride.Round >= s.cfg.MaxRounds-1 {
			s.finishExhausted(ride)
			return
		}
		ride.Round++
		round := ride.Round
		ride.ArmAuctionTimer(s.afterFunc(s.cfg.RetryDelay, "auction-retry", func() {
			s.dispatchRound(rideID)
		}))
		ride.Unlock()

		logger.Debug("No candidates for round, retrying",
			zap.String("ride_id", rideID),
			zap.Int("round", round))
		return
	}

	now := time.Now()
	expiresAt := now.Add(s.cfg.OfferTTL)
	round := ride.Round

	frames := make([]outboundFrame, 0, len(shortlist))
	for _, cand := range shortlist {
		offer := &rides.Offer{
			ID:       uuid.New().String(),
			ConnID:   cand.ConnID,
			Round:    round,
			IssuedAt: now,
			State:    rides.OfferPending,
		}
		ride.AddOffer(offer)

		frames = append(frames, outboundFrame{
			connID: cand.ConnID,
			msg: websocket.NewMessage(EventRideAvailable, OfferPayload{
				OfferID:             offer.ID,
				RideID:              ride.ID,
				PassengerName:       ride.PassengerName,
				PickupAddress:       ride.PickupAddress,
				PickupLocation:      ride.Pickup,
				DestinationAddress:  ride.DestinationAddress,
				DestinationLocation: ride.Destination,
				RoutePolyline:       ride.RoutePolyline,
				Fare:                ride.Fare,
				ExpiresAt:           expiresAt.UnixMilli(),
			}),
		})
	}
	ride.ArmAuctionTimer(s.afterFunc(s.cfg.OfferTTL, "auction-advance", func() {
		s.advanceRound(rideID)
	}))
	ride.Unlock()

	for _, f := range frames {
		s.hub.SendToConn(f.connID, f.msg)
		metrics.RecordOffer("sent")
	}
	metrics.AuctionRoundsTotal.Inc()

	logger.Info("Auction round dispatched",
		zap.String("ride_id", rideID),
		zap.Int("round", round),
		zap.Int("offers", len(frames)))

	s.publish(eventbus.SubjectRideOffered, "ride.offered", eventbus.RideOfferedData{
		RideID:    rideID,
		Round:     round,
		BatchSize: len(frames),
		OfferedAt: now.UTC(),
	})
}

// advanceRound runs when a round's offer window closes without an
// award. Offers from the closed round stay pending, so a slow driver
// can still accept while later rounds run.
func (s *Service) advanceRound(rideID string) {
	ride, ok := s.rides.Get(rideID)
	if !ok {
		return
	}

	ride.Lock()
	if ride.Status != rides.StatusSearching {
		ride.Unlock()
		return
	}
	ride.Round++
	round := ride.Round
	ride.Unlock()

	logger.Debug("Offer window closed, advancing",
		zap.String("ride_id", rideID),
		zap.Int("round", round))

	s.dispatchRound(rideID)
}

// Accept arbitrates a driver's acceptance frame. At most one caller
// moves the ride out of SEARCHING; every other claim gets a typed
// offer_lost frame. Late acceptances of offers from earlier rounds
// win normally as long as the offer is still pending.
func (s *Service) Accept(connID string, req AcceptRequest) {
	ride, ok := s.rides.Get(req.RideID)
	if !ok {
		s.hub.SendToConn(connID, websocket.NewMessage(EventOfferLost, OfferLostPayload{
			RideID: req.RideID,
			Reason: ReasonNotSearching,
		}))
		return
	}

	ride.Lock()

	if ride.Status != rides.StatusSearching {
		ride.Unlock()
		s.hub.SendToConn(connID, websocket.NewMessage(EventOfferLost, OfferLostPayload{
			RideID: req.RideID,
			Reason: ReasonNotSearching,
		}))
		return
	}

	offer, ok := ride.Offer(req.OfferID)
	if !ok || offer.ConnID != connID || offer.State != rides.OfferPending {
		ride.Unlock()
		s.hub.SendToConn(connID, websocket.NewMessage(EventOfferLost, OfferLostPayload{
			RideID: req.RideID,
			Reason: ReasonOfferInvalid,
		}))
		return
	}

	offer.State = rides.OfferWon
	ride.Status = rides.StatusAccepted
	ride.WinnerConnID = connID
	ride.Driver = &rides.DriverInfo{
		DriverID:         req.DriverID,
		Name:             req.DriverName,
		Phone:            req.DriverPhone,
		VehicleModel:     req.VehicleModel,
		VehiclePlate:     req.VehiclePlate,
		ApproachPolyline: req.ApproachPolyline,
	}
	ride.StopAuctionTimer()
	losers := ride.MarkLosersExcept(req.OfferID)
	wonRound := offer.Round
	ride.Unlock()

	room := rides.RoomName(req.RideID)
	s.hub.JoinRoom(connID, room)

	for _, loser := range losers {
		s.hub.SendToConn(loser, websocket.NewMessage(EventOfferLost, OfferLostPayload{
			RideID: req.RideID,
			Reason: ReasonAlreadyTaken,
		}))
		metrics.RecordOffer("lost")
	}

	s.hub.SendToConn(connID, websocket.NewMessage(EventOfferWon, OfferWonPayload{RideID: req.RideID}))

	now := time.Now()
	s.hub.SendToRoom(room, websocket.NewMessage(EventRideAccepted, RideAcceptedPayload{
		RideID:           req.RideID,
		DriverID:         req.DriverID,
		DriverName:       req.DriverName,
		DriverPhone:      req.DriverPhone,
		VehicleModel:     req.VehicleModel,
		VehiclePlate:     req.VehiclePlate,
		Status:           "accepted",
		Message:          fmt.Sprintf("Corrida aceita por %s", req.DriverName),
		Timestamp:        now.UnixMilli(),
		ApproachPolyline: req.ApproachPolyline,
	}))

	metrics.RecordOffer("won")
	metrics.RecordRide("accepted")

	logger.Info("Ride accepted",
		zap.String("ride_id", req.RideID),
		zap.String("driver_id", req.DriverID),
		zap.Int("won_round", wonRound),
		zap.Int("losing_offers", len(losers)))

	s.publish(eventbus.SubjectRideAccepted, "ride.accepted", eventbus.RideAcceptedData{
		RideID:       req.RideID,
		DriverID:     req.DriverID,
		DriverName:   req.DriverName,
		VehicleModel: req.VehicleModel,
		VehiclePlate: req.VehiclePlate,
		AcceptedAt:   now.UTC(),
	})
}

// finishExhausted fails a searching ride that has nobody left to ask.
// Called with the ride lock held; releases it.
func (s *Service) finishExhausted(ride *rides.Ride) {
	ride.Status = rides.StatusFailed
	ride.StopAuctionTimer()
	expired := ride.ExpirePendingOffers()
	rideID := ride.ID
	passengerConn := ride.PassengerConnID
	rounds := ride.Round + 1
	offersSent := len(ride.Offers)
	ride.Unlock()

	if expired > 0 {
		metrics.OffersTotal.WithLabelValues("expired").Add(float64(expired))
	}
	s.hub.SendToConn(passengerConn, websocket.NewMessage(EventNoDrivers, NoDriversPayload{RideID: rideID}))
	metrics.RecordRide("failed")

	logger.Info("Auction exhausted, no driver found",
		zap.String("ride_id", rideID),
		zap.Int("rounds", rounds),
		zap.Int("offers_sent", offersSent))

	s.publish(eventbus.SubjectRideFailed, "ride.failed", eventbus.RideFailedData{
		RideID:     rideID,
		Rounds:     rounds,
		OffersSent: offersSent,
		FailedAt:   time.Now().UTC(),
	})
}

// afterFunc schedules fn with panic recovery, so a fault in one
// ride's timer path never kills the process.
func (s *Service) afterFunc(d time.Duration, task string, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		async.Go(context.Background(), task, func(context.Context) {
			fn()
		})
	})
}

// publish emits a lifecycle event off the dispatch path. A nil bus
// (NATS disabled) is a no-op.
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

type outboundFrame struct {
	connID string
	msg    *websocket.Message
}
