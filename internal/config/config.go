package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// UPS
	UPSAccessKey          string        `envconfig:"UPS_ACCESS_KEY"`
	UPSUserID             string        `envconfig:"UPS_USER_ID"`
	UPSPassword           string        `envconfig:"UPS_PASSWORD"`
	UPSShipperNumber      string        `envconfig:"UPS_SHIPPER_NUMBER"`
	UPSShipperZip         string        `envconfig:"UPS_SHIPPER_ZIP"`
	UPSSandbox            bool          `envconfig:"UPS_SANDBOX" default:"false"`
	UPSInsecureSkipVerify bool          `envconfig:"UPS_INSECURE_SKIP_VERIFY" default:"false"`
	UPSTimeout            time.Duration `envconfig:"UPS_TIMEOUT" default:"10s"`
	UPSEnabled            bool          `envconfig:"UPS_ENABLED" default:"true"`
	UPSUseMock            bool          `envconfig:"UPS_USE_MOCK" default:"false"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"upsrate"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("ups.enabled", c.UPSEnabled),
		attribute.Bool("ups.sandbox", c.UPSSandbox),
		attribute.Bool("ups.use_mock", c.UPSUseMock),
	}
}
