package main

import (
	"context"

	"github.com/tournevent/upsrate/internal/config"
	"github.com/tournevent/upsrate/internal/telemetry"
	"github.com/tournevent/upsrate/pkg/shipper"
	"github.com/tournevent/upsrate/pkg/shipper/ups"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initCLILogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewCLILogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}

	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Attributes()...)
}

func initShipperRegistry(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) *shipper.Registry {
	registry := shipper.NewRegistry()

	if cfg.UPSEnabled {
		registry.Register(ups.New(ups.Config{
			AccessKey:          cfg.UPSAccessKey,
			UserID:             cfg.UPSUserID,
			Password:           cfg.UPSPassword,
			ShipperNumber:      cfg.UPSShipperNumber,
			ShipperZip:         cfg.UPSShipperZip,
			Sandbox:            cfg.UPSSandbox,
			InsecureSkipVerify: cfg.UPSInsecureSkipVerify,
			Timeout:            cfg.UPSTimeout,
			UseMock:            cfg.UPSUseMock,
		}, logger, tracer))
	}

	return registry
}

func newRateClient(cfg *config.Config, logger *otelzap.Logger) *ups.RateClient {
	opts := []ups.Option{
		ups.WithTimeout(cfg.UPSTimeout),
		ups.WithInsecureSkipVerify(cfg.UPSInsecureSkipVerify),
		ups.WithLogger(logger),
	}
	if cfg.UPSUseMock {
		opts = append(opts, ups.WithAPIClient(ups.NewMockAPIClient()))
	}

	client := ups.NewRateClient(cfg.UPSAccessKey, cfg.UPSUserID, cfg.UPSPassword, cfg.UPSSandbox, opts...)
	client.SetShipperZip(cfg.UPSShipperZip)
	client.SetShipperNumber(cfg.UPSShipperNumber)
	return client
}
