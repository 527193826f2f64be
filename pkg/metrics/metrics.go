package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of active WebSocket connections",
		},
	)

	DriversConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivers_online_total",
			Help: "Current number of identified driver connections",
		},
	)

	DriversAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivers_available_total",
			Help: "Current number of drivers flagged available",
		},
	)

	// Business metrics
	ActiveRides = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_rides_total",
			Help: "Current number of rides with live state",
		},
	)

	RidesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rides_total",
			Help: "Total number of rides by lifecycle outcome",
		},
		[]string{"status"},
	)

	OffersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ride_offers_total",
			Help: "Total number of ride offers by outcome",
		},
		[]string{"outcome"},
	)

	AuctionRoundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_rounds_total",
			Help: "Total number of auction rounds dispatched",
		},
	)

	// Message metrics
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_total",
			Help: "Total number of WebSocket messages by direction and event",
		},
		[]string{"direction", "event"},
	)

	ProtocolDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protocol_drops_total",
			Help: "Total number of inbound messages dropped as malformed",
		},
		[]string{"event"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_published_total",
			Help: "Total number of events published to the bus",
		},
		[]string{"subject", "status"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordRide counts a ride lifecycle outcome (requested, accepted, failed,
// completed, canceled).
func RecordRide(status string) {
	RidesTotal.WithLabelValues(status).Inc()
}

// RecordOffer counts an offer outcome (sent, won, lost, expired).
func RecordOffer(outcome string) {
	OffersTotal.WithLabelValues(outcome).Inc()
}

// RecordMessage counts a WebSocket message ("in" or "out").
func RecordMessage(direction, event string) {
	MessagesTotal.WithLabelValues(direction, event).Inc()
}

// RecordProtocolDrop counts a malformed inbound message.
func RecordProtocolDrop(event string) {
	ProtocolDropsTotal.WithLabelValues(event).Inc()
}

// RecordEventPublish counts a bus publish attempt.
func RecordEventPublish(subject string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EventsPublishedTotal.WithLabelValues(subject, status).Inc()
}

// RecordHTTPRequest counts an HTTP request and observes its latency. Path
// should be the route template, not the raw URL, to keep cardinality bounded.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
