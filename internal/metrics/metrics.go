// Package metrics provides OpenTelemetry-based instrumentation, exported via
// Prometheus, for the Tracker pipeline.
package metrics

import (
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Instruments holds every metric instrument the Tracker pipeline emits.
// Created once at Client construction and shared across the Client's Track
// path, the handler, the retry loop, and the optional dedup module.
type Instruments struct {
	BacklogDepth     otelmetric.Int64UpDownCounter
	BatchesSubmitted otelmetric.Int64Counter
	BatchesSent      otelmetric.Int64Counter
	BatchesFailed    otelmetric.Int64Counter
	BatchSize        otelmetric.Int64Histogram
	RetryAttempts    otelmetric.Int64Counter
	SendLatency      otelmetric.Float64Histogram
	DedupDropped     otelmetric.Int64Counter
}

// New creates every Tracker instrument from meter, following the same
// create-and-check-error pattern as the platform's observability module.
func New(meter otelmetric.Meter) (*Instruments, error) {
	var m Instruments
	var err error

	m.BacklogDepth, err = meter.Int64UpDownCounter(
		"eventtracker.backlog.depth",
		otelmetric.WithDescription("Events currently buffered in the backlog"),
	)
	if err != nil {
		return nil, err
	}

	m.BatchesSubmitted, err = meter.Int64Counter(
		"eventtracker.batches.submitted",
		otelmetric.WithDescription("Batches submitted to the worker pool"),
	)
	if err != nil {
		return nil, err
	}

	m.BatchesSent, err = meter.Int64Counter(
		"eventtracker.batches.sent",
		otelmetric.WithDescription("Batches delivered successfully"),
	)
	if err != nil {
		return nil, err
	}

	m.BatchesFailed, err = meter.Int64Counter(
		"eventtracker.batches.failed",
		otelmetric.WithDescription("Batches that reached a terminal failure"),
	)
	if err != nil {
		return nil, err
	}

	m.BatchSize, err = meter.Int64Histogram(
		"eventtracker.batch.size",
		otelmetric.WithDescription("Event count per submitted batch"),
	)
	if err != nil {
		return nil, err
	}

	m.RetryAttempts, err = meter.Int64Counter(
		"eventtracker.retry.attempts",
		otelmetric.WithDescription("Server-error retry attempts"),
	)
	if err != nil {
		return nil, err
	}

	m.SendLatency, err = meter.Float64Histogram(
		"eventtracker.send.latency",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("HTTP send latency per attempt in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.DedupDropped, err = meter.Int64Counter(
		"eventtracker.dedup.dropped",
		otelmetric.WithDescription("Track calls suppressed as client-side duplicates"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}
