package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Module owns the OTel MeterProvider backing a Tracker's Instruments and
// exposes a Prometheus scrape handler for it.
type Module struct {
	provider *sdkmetric.MeterProvider
	meter    otelmetric.Meter
}

// NewModule configures a Prometheus exporter as the metric reader and
// registers the resulting MeterProvider globally.
func NewModule() (*Module, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return &Module{
		provider: provider,
		meter:    provider.Meter("eventtracker"),
	}, nil
}

// Shutdown flushes and releases the MeterProvider.
func (m *Module) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Handler returns an http.Handler serving Prometheus exposition format,
// meant to be mounted at "/metrics" by an embedding application.
func (m *Module) Handler() http.Handler {
	return promhttp.Handler()
}

// Meter returns the OTel Meter used to create Instruments.
func (m *Module) Meter() otelmetric.Meter {
	return m.meter
}
