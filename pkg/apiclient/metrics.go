package apiclient

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/seaneb/seaneb-auth/pkg/apiclient"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

type metrics struct {
	requests metric.Int64Counter
	duration metric.Int64Histogram
	refresh  metric.Int64Counter
	retries  metric.Int64Counter
}

func newMetrics(provider metric.MeterProvider) (*metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter(instrumentationName, metric.WithInstrumentationVersion(otel.Version()))

	var m metrics
	var err error

	m.requests, err = meter.Int64Counter(
		"seaneb.client.request_count",
		metric.WithDescription("Outgoing backend request count"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request_count meter: %w", err)
	}

	m.duration, err = meter.Int64Histogram(
		"seaneb.client.duration",
		metric.WithDescription("Outgoing request duration"),
		metric.WithUnit("milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration meter: %w", err)
	}

	m.refresh, err = meter.Int64Counter(
		"seaneb.client.refresh_count",
		metric.WithDescription("Shared access token refreshes by outcome"),
		metric.WithUnit("refresh"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating refresh_count meter: %w", err)
	}

	m.retries, err = meter.Int64Counter(
		"seaneb.client.retry_count",
		metric.WithDescription("Requests re-issued after a refresh"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retry_count meter: %w", err)
	}

	return &m, nil
}

func (m *metrics) recordRequest(ctx context.Context, method string, status int, millis int64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Int("status", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, millis, attrs)
}

func (m *metrics) recordRefresh(ctx context.Context, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	m.refresh.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) recordRetry(ctx context.Context) {
	m.retries.Add(ctx, 1)
}
