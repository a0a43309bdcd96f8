package telemetry

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ServiceName identifies git2pdf in exported resources.
const ServiceName = "git2pdf"

// Config holds telemetry configuration.
type Config struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`

	// Insecure dials the collector without TLS. Only loopback endpoints
	// accept it.
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`

	// MetricsInterval is the OTLP metric push period; zero leaves metrics
	// to the Prometheus endpoint only.
	MetricsInterval time.Duration `koanf:"metrics_interval"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Logs forwards zap entries to the collector alongside local output.
	Logs bool `koanf:"logs"`
}

// NewDefaultConfig returns telemetry defaults. Export is off until a
// collector is configured.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		Insecure:        true,
		SampleRate:      1.0,
		MetricsInterval: 30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		Logs:            true,
	}
}

// Validate checks an enabled configuration. Disabled configs always pass.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required when telemetry is enabled"))
	} else if c.Insecure && !loopback(c.Endpoint) {
		errs = append(errs, fmt.Errorf("insecure export to %s refused: only loopback collectors may skip TLS", c.Endpoint))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample_rate must be within [0, 1], got %g", c.SampleRate))
	}
	if c.MetricsInterval < 0 {
		errs = append(errs, errors.New("metrics_interval cannot be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// loopback reports whether a host:port endpoint names the local machine.
func loopback(endpoint string) bool {
	host, _, err := net.SplitHostPort(endpoint)
	if err != nil {
		host = endpoint
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
