package telemetry

import (
	"context"
	"errors"
	"fmt"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Providers bundles the OpenTelemetry providers sharing one OTLP connection.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
	Logger *sdklog.LoggerProvider

	conn *grpc.ClientConn
}

// Setup dials the collector once and initializes tracer, meter and logger
// providers on top of that connection. The providers are installed as the
// global OpenTelemetry providers.
func Setup(ctx context.Context, serviceName, otlpEndpoint, environment string) (*Providers, error) {
	conn, err := grpc.NewClient(otlpEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	res, err := newResource(serviceName, environment)
	if err != nil {
		conn.Close()
		return nil, err
	}

	p := &Providers{conn: conn}

	if p.Tracer, err = InitTracerProvider(ctx, conn, res); err != nil {
		p.Shutdown(ctx)
		return nil, err
	}
	if p.Meter, err = InitMeterProvider(ctx, conn, res); err != nil {
		p.Shutdown(ctx)
		return nil, err
	}
	if p.Logger, err = InitLoggerProvider(ctx, conn, res); err != nil {
		p.Shutdown(ctx)
		return nil, err
	}

	return p, nil
}

// Shutdown flushes and stops every provider, then closes the connection.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Logger != nil {
		errs = append(errs, p.Logger.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

func newResource(serviceName, environment string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
