// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package metrics provides Prometheus instrumentation for the PTT server:
// API latency and throughput, transmission lifecycle, chunk throughput,
// stream connections, push fan-out outcomes, and cache efficiency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ptt_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ptt_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ptt_api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)

	// Transmission metrics
	ActiveTransmissions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ptt_active_transmissions",
			Help: "Number of transmissions currently in progress across all channels",
		},
	)

	TransmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ptt_transmission_duration_seconds",
			Help:    "Duration of completed transmissions in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 30},
		},
	)

	TransmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ptt_transmissions_total",
			Help: "Total number of transmissions by end reason",
		},
		[]string{"reason"},
	)

	ChunksReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptt_audio_chunks_received_total",
			Help: "Total number of accepted audio chunks",
		},
	)

	ChunkBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptt_audio_chunk_bytes_total",
			Help: "Total accepted audio payload bytes",
		},
	)

	SequenceViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptt_chunk_sequence_violations_total",
			Help: "Total rejected chunks (gap, duplicate, regression, or size mismatch)",
		},
	)

	// Stream hub metrics
	StreamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ptt_stream_connections",
			Help: "Number of live stream subscriber connections",
		},
	)

	SlowConsumersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptt_stream_slow_consumers_total",
			Help: "Total subscriber connections closed due to send-queue overflow",
		},
	)

	// Roster metrics
	ParticipantsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptt_participants_evicted_total",
			Help: "Total participants evicted after the inactivity timeout",
		},
	)

	// Push fan-out metrics
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ptt_push_deliveries_total",
			Help: "Total push gateway deliveries by outcome",
		},
		[]string{"outcome"}, // delivered, retried, failed, token_cleared
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptt_channel_cache_hits_total",
			Help: "Total channel cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ptt_channel_cache_misses_total",
			Help: "Total channel cache misses",
		},
	)

	// Store metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ptt_store_query_duration_seconds",
			Help:    "Duration of channel store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAPIRequest records one finished API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordStoreQuery records one channel store query.
func RecordStoreQuery(operation string, duration time.Duration) {
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTransmissionEnd records a completed transmission.
func RecordTransmissionEnd(reason string, duration time.Duration) {
	TransmissionsTotal.WithLabelValues(reason).Inc()
	TransmissionDuration.Observe(duration.Seconds())
	ActiveTransmissions.Dec()
}
