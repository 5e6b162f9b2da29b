package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/msmm/aitools"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Auth metrics
	LoginsTotal     metric.Int64Counter
	SessionsIssued  metric.Int64Counter
	SessionsExpired metric.Int64Counter
	SessionsSwept   metric.Int64Counter
	SessionsRevoked metric.Int64Counter

	// Writeup metrics
	GenerationsTotal   metric.Int64Counter
	GenerationDuration metric.Float64Histogram
	UploadedFilesTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.LoginsTotal, _ = meter.Int64Counter(
		"aitools.auth.logins.total",
		metric.WithDescription("Total number of login attempts by outcome"),
		metric.WithUnit("{login}"),
	)

	m.SessionsIssued, _ = meter.Int64Counter(
		"aitools.auth.sessions.issued.total",
		metric.WithDescription("Total number of sessions issued"),
		metric.WithUnit("{session}"),
	)

	m.SessionsExpired, _ = meter.Int64Counter(
		"aitools.auth.sessions.expired.total",
		metric.WithDescription("Total number of sessions found expired when resolved"),
		metric.WithUnit("{session}"),
	)

	m.SessionsSwept, _ = meter.Int64Counter(
		"aitools.auth.sessions.swept.total",
		metric.WithDescription("Total number of expired sessions removed by the sweeper"),
		metric.WithUnit("{session}"),
	)

	m.SessionsRevoked, _ = meter.Int64Counter(
		"aitools.auth.sessions.revoked.total",
		metric.WithDescription("Total number of sessions revoked by logout"),
		metric.WithUnit("{session}"),
	)

	m.GenerationsTotal, _ = meter.Int64Counter(
		"aitools.writeup.generations.total",
		metric.WithDescription("Total number of text generation calls by kind and outcome"),
		metric.WithUnit("{call}"),
	)

	m.GenerationDuration, _ = meter.Float64Histogram(
		"aitools.writeup.generation.duration",
		metric.WithDescription("Duration of text generation calls"),
		metric.WithUnit("ms"),
	)

	m.UploadedFilesTotal, _ = meter.Int64Counter(
		"aitools.writeup.uploaded_files.total",
		metric.WithDescription("Total number of uploaded files accepted for extraction"),
		metric.WithUnit("{file}"),
	)

	return m
}
