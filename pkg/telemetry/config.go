package telemetry

import (
	"fmt"
	"time"
)

// Config is the telemetry configuration.
type Config struct {
	// ServiceName identifies the service in traces.
	ServiceName string

	// ServiceVersion is the running version.
	ServiceVersion string

	// Environment is the resolved deployment environment name.
	Environment string

	// Logging configures structured logging.
	Logging LoggingConfig

	// Tracing configures OpenTelemetry tracing.
	Tracing TracingConfig

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string

	// Format is console or json.
	Format string

	// Output is stdout, stderr, or a file path.
	Output string

	// EnableCaller adds file:line caller information.
	EnableCaller bool
}

// TracingConfig configures tracing.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool

	// Exporter is stdout or none.
	Exporter string

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64

	// MaxExportBatchSize is the maximum batch size for export.
	MaxExportBatchSize int

	// ExportTimeout is the timeout for trace export.
	ExportTimeout time.Duration
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// ListenAddress is the address for the metrics HTTP endpoint.
	// Empty means no listener; the registry is still populated.
	ListenAddress string

	// Path is the HTTP path for metrics.
	Path string

	// Namespace is the metrics namespace prefix.
	Namespace string

	// DefaultHistogramBuckets are the latency buckets in seconds.
	DefaultHistogramBuckets []float64
}

// DefaultConfig returns a sensible default configuration: console
// logging at info, tracing off, metrics registry on without a listener.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "topiary",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Enabled:            false,
			Exporter:           "none",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "topiary",
		},
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Logging.Format)
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "none":
		default:
			return fmt.Errorf("unsupported trace exporter: %s", c.Tracing.Exporter)
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			return fmt.Errorf("sampling rate must be between 0.0 and 1.0")
		}
	}
	return nil
}
