package metrics

import (
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	AuthOperationsTotal     metric.Int64Counter
	AuthOperationErrors     metric.Int64Counter
	AuthOperationDuration   metric.Float64Histogram
	SyncOrphansRemovedTotal metric.Int64Counter
	MailSendsTotal          metric.Int64Counter
	MailSendErrorsTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// SetupPrometheusExporter wires the otel meter provider to a Prometheus
// registry. The caller exposes the registry via promhttp.
func SetupPrometheusExporter() error {
	exporter, err := otelprom.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	return nil
}

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("account-service")
		var err error
		m := &AppMetrics{}

		m.AuthOperationsTotal, err = meter.Int64Counter(
			"auth_operations_total",
			metric.WithDescription("Total number of account lifecycle operations completed"),
			metric.WithUnit("{operation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_operations_total: %v", err)
		}

		m.AuthOperationErrors, err = meter.Int64Counter(
			"auth_operation_errors_total",
			metric.WithDescription("Total number of failed account lifecycle operations"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_operation_errors_total: %v", err)
		}

		m.AuthOperationDuration, err = meter.Float64Histogram(
			"auth_operation_duration_seconds",
			metric.WithDescription("Duration of account lifecycle operations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_operation_duration_seconds: %v", err)
		}

		m.SyncOrphansRemovedTotal, err = meter.Int64Counter(
			"sync_orphans_removed_total",
			metric.WithDescription("Total number of orphaned users removed by sync"),
			metric.WithUnit("{user}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create sync_orphans_removed_total: %v", err)
		}

		m.MailSendsTotal, err = meter.Int64Counter(
			"mail_sends_total",
			metric.WithDescription("Total number of outbound mail sends attempted"),
			metric.WithUnit("{send}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create mail_sends_total: %v", err)
		}

		m.MailSendErrorsTotal, err = meter.Int64Counter(
			"mail_send_errors_total",
			metric.WithDescription("Total number of failed outbound mail sends"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create mail_send_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
