package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	BookingCreated  = "created"
	BookingConflict = "conflict"
	BookingRejected = "rejected"
	BookingError    = "error"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	GRPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_core_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "code"},
	)

	GRPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_core_grpc_request_duration_seconds",
			Help:    "gRPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_core_bookings_total",
			Help: "Booking attempts by result",
		},
		[]string{"result"},
	)

	AvailabilityDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_core_availability_degraded_total",
			Help: "Availability computations served without the reservation filter",
		},
	)

	CapacitySyncFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_core_capacity_sync_failures_total",
			Help: "Failed attempts to mark a legacy capacity slot as booked",
		},
	)

	AvailabilityCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_core_availability_cache_total",
			Help: "Availability cache lookups by result",
		},
		[]string{"result"},
	)
)
