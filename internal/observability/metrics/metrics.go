package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes fulfillment instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	checkoutSessions metric.Int64Counter
	paymentEvents    metric.Int64Counter
	ordersCreated    metric.Int64Counter
	downloads        metric.Int64Counter
	notifications    metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "plume"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.checkoutSessions, err = meter.Int64Counter("plume_checkout_sessions_total"); err != nil {
		return nil, err
	}
	if m.paymentEvents, err = meter.Int64Counter("plume_webhook_events_total"); err != nil {
		return nil, err
	}
	if m.ordersCreated, err = meter.Int64Counter("plume_orders_created_total"); err != nil {
		return nil, err
	}
	if m.downloads, err = meter.Int64Counter("plume_downloads_total"); err != nil {
		return nil, err
	}
	if m.notifications, err = meter.Int64Counter("plume_notifications_total"); err != nil {
		return nil, err
	}
	if m.rateLimitDenied, err = meter.Int64Counter("plume_rate_limit_denied_total"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCheckoutSession counts session creation attempts by outcome.
func (m *Metrics) RecordCheckoutSession(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.checkoutSessions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

// RecordPaymentEvent counts verified provider events by type and outcome.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType, outcome string) {
	if m == nil {
		return
	}
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, currency string) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("currency", strings.ToUpper(strings.TrimSpace(currency))),
	)...))
}

// RecordDownload counts download gate decisions by outcome.
func (m *Metrics) RecordDownload(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.downloads.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

func (m *Metrics) RecordNotification(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// User, order and item ids never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"provider":    {},
	"event_type":  {},
	"outcome":     {},
	"kind":        {},
	"currency":    {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
