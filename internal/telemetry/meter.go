package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc"
)

// Intent outcomes recorded on the intent instruments.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// Metrics holds the custom metrics instruments for the application.
type Metrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	IntentCounter   metric.Int64Counter
	IntentDuration  metric.Float64Histogram
	TasksGauge      metric.Int64ObservableGauge
	PendingGauge    metric.Int64ObservableGauge

	taskCountFunc    func() int64
	pendingCountFunc atomic.Pointer[func() int64]
}

// InitMeterProvider initializes the OpenTelemetry meter provider with a
// periodic OTLP reader and sets it as the global one.
func InitMeterProvider(ctx context.Context, conn *grpc.ClientConn, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	// Create meter provider with periodic reader (10 second interval)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(10*time.Second),
		)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}

// NewMetrics creates and registers custom metrics instruments.
// taskCountFunc reports the size of the persisted collection.
func NewMetrics(meter metric.Meter, taskCountFunc func() int64) (*Metrics, error) {
	m := &Metrics{
		taskCountFunc: taskCountFunc,
	}

	var err error

	m.RequestCounter, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	m.IntentCounter, err = meter.Int64Counter(
		"task_intents_total",
		metric.WithDescription("Total number of task intents by outcome"),
		metric.WithUnit("{intent}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent counter: %w", err)
	}

	// Buckets sized around the simulated backend delay.
	m.IntentDuration, err = meter.Float64Histogram(
		"task_intent_duration_seconds",
		metric.WithDescription("Time from intent dispatch to reconciliation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent duration histogram: %w", err)
	}

	m.TasksGauge, err = meter.Int64ObservableGauge(
		"tasks_total",
		metric.WithDescription("Current number of tasks in the system"),
		metric.WithUnit("{task}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if m.taskCountFunc != nil {
				o.Observe(m.taskCountFunc())
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks gauge: %w", err)
	}

	m.PendingGauge, err = meter.Int64ObservableGauge(
		"task_intents_pending",
		metric.WithDescription("Identifiers currently awaiting a backend response"),
		metric.WithUnit("{intent}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if fn := m.pendingCountFunc.Load(); fn != nil {
				o.Observe((*fn)())
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending gauge: %w", err)
	}

	return m, nil
}

// TrackPending sets the source of the pending gauge.
func (m *Metrics) TrackPending(fn func() int64) {
	if m == nil {
		return
	}
	m.pendingCountFunc.Store(&fn)
}

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// RecordIntent records one finished coordinator intent.
func (m *Metrics) RecordIntent(ctx context.Context, intent, outcome string, start time.Time) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("intent", intent),
		attribute.String("outcome", outcome),
	)

	m.IntentCounter.Add(ctx, 1, attrs)
	m.IntentDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
