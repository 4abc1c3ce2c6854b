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
	// AutosaveTimeout caps the autosave latency buckets. Zero keeps the
	// prometheus defaults.
	AutosaveTimeout time.Duration
}

// Metrics exposes domain instruments pushed over OTLP.
type Metrics struct {
	claimWrites  metric.Int64Counter
	exports      metric.Int64Counter
	importedRows metric.Int64Counter
	storedBytes  metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

// New builds the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "rfacto"
	}
	meter := provider.Meter(name)

	claimWrites, err := meter.Int64Counter("rfacto_claim_writes_total")
	if err != nil {
		return nil, err
	}
	exports, err := meter.Int64Counter("rfacto_exports_total")
	if err != nil {
		return nil, err
	}
	importedRows, err := meter.Int64Counter("rfacto_imported_rows_total")
	if err != nil {
		return nil, err
	}
	storedBytes, err := meter.Int64Counter("rfacto_stored_bytes_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		claimWrites:  claimWrites,
		exports:      exports,
		importedRows: importedRows,
		storedBytes:  storedBytes,
	}, nil
}

// RecordClaimWrite counts claim creates, updates and deletes.
func (m *Metrics) RecordClaimWrite(ctx context.Context, operation, claimType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("claim_type", strings.TrimSpace(claimType)),
	)
	m.claimWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordExport(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.exports.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("kind", kind))...))
}

func (m *Metrics) RecordImportedRows(ctx context.Context, source string, rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.importedRows.Add(ctx, int64(rows), metric.WithAttributes(FilterAttributes(attribute.String("source", source))...))
}

func (m *Metrics) RecordStoredBytes(ctx context.Context, driver string, size int64) {
	if m == nil || size <= 0 {
		return
	}
	m.storedBytes.Add(ctx, size, metric.WithAttributes(FilterAttributes(attribute.String("driver", driver))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"operation":   {},
	"claim_type":  {},
	"kind":        {},
	"source":      {},
	"driver":      {},
	"status_code": {},
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
