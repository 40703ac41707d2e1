// Package ups provides integration with the UPS XML Rating API.
package ups

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/upsrate/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = "ups"

const (
	kgToLb = 2.20462
	cmToIn = 1 / 2.54
)

// Config holds UPS configuration.
type Config struct {
	AccessKey          string
	UserID             string
	Password           string
	ShipperNumber      string
	ShipperZip         string
	Sandbox            bool
	InsecureSkipVerify bool
	Timeout            time.Duration
	UseMock            bool
}

// Client is the UPS shipper client.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new UPS client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: EndpointURL(cfg.Sandbox),
			Credentials: Credentials{
				AccessKey: cfg.AccessKey,
				UserID:    cfg.UserID,
				Password:  cfg.Password,
			},
			Timeout:            cfg.Timeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new UPS client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// GetQuote returns one UPS rate per requested service level ("GND" when none
// are requested). Levels that fail are logged and skipped; the first error is
// returned only when no level could be rated.
func (c *Client) GetQuote(ctx context.Context, req *shipper.QuoteRequest) (*shipper.QuoteResponse, error) {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "ups.GetQuote", trace.WithAttributes(
			attribute.String("destination_postal", req.Destination.PostalCode),
			attribute.Int("package_count", len(req.Packages)),
		))
		defer span.End()

		resp, err := c.getQuote(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return resp, err
	}
	return c.getQuote(ctx, req)
}

func (c *Client) getQuote(ctx context.Context, req *shipper.QuoteRequest) (*shipper.QuoteResponse, error) {
	c.logger.Info("Getting UPS quotes",
		zap.String("origin_postal", req.Origin.PostalCode),
		zap.String("destination_postal", req.Destination.PostalCode),
		zap.Int("package_count", len(req.Packages)),
	)

	if err := validateDestination(req.Destination); err != nil {
		return nil, err
	}

	packages, err := packagesToAPI(req.Packages)
	if err != nil {
		return nil, err
	}

	shipperZip := req.Origin.PostalCode
	if shipperZip == "" {
		shipperZip = c.config.ShipperZip
	}
	shipperNumber := req.ShipperID
	if shipperNumber == "" {
		shipperNumber = c.config.ShipperNumber
	}

	levels := req.Options.ServiceLevels
	if len(levels) == 0 {
		levels = []string{"GND"}
	}

	expiresAt := time.Now().Add(30 * time.Minute)
	rates := make([]shipper.RateOption, 0, len(levels))
	var firstErr error

	for _, level := range levels {
		code := ServiceCode(level)
		apiResp, err := c.apiClient.GetRates(ctx, &RatesRequest{
			ShipperNumber:  shipperNumber,
			ShipperZip:     shipperZip,
			DestinationZip: req.Destination.PostalCode,
			ServiceCode:    code,
			Packages:       packages,
		})
		if err == nil {
			var total float64
			if total, err = apiResp.TotalCharges(); err == nil {
				rates = append(rates, shipper.RateOption{
					RateID:      fmt.Sprintf("ups-%s-%s", code, uuid.New().String()[:8]),
					Carrier:     carrierName,
					ServiceCode: code,
					ServiceName: ServiceName(code),
					ServiceType: mapServiceType(code),
					TotalPrice:  shipper.Money{Amount: total, Currency: apiResp.CurrencyCode()},
					ExpiresAt:   expiresAt,
				})
				continue
			}
		}

		c.logger.Error("UPS API error",
			zap.String("service_level", level),
			zap.String("service_code", code),
			zap.Error(err),
		)
		if firstErr == nil {
			firstErr = err
		}
	}

	if len(rates) == 0 {
		return nil, firstErr
	}

	return &shipper.QuoteResponse{
		QuoteID:   "ups-quote-" + uuid.New().String(),
		Carrier:   carrierName,
		Rates:     rates,
		ExpiresAt: expiresAt,
	}, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

// validateDestination requires a postal code and a US (or unset) country;
// requests always carry country US.
func validateDestination(addr shipper.Address) error {
	if addr.PostalCode == "" {
		return fmt.Errorf("%w: destination postal code is required", shipper.ErrInvalidAddress)
	}
	if addr.CountryCode != "" && !strings.EqualFold(addr.CountryCode, countryUS) {
		return fmt.Errorf("%w: destination country %q is not supported", shipper.ErrInvalidAddress, addr.CountryCode)
	}
	return nil
}

// packagesToAPI converts packages to inches and pounds. Units default to
// inches and pounds when unset.
func packagesToAPI(pkgs []shipper.Package) ([]Package, error) {
	out := make([]Package, len(pkgs))
	for i, p := range pkgs {
		if p.Weight <= 0 || p.Length < 0 || p.Width < 0 || p.Height < 0 {
			return nil, fmt.Errorf("%w: package %d", shipper.ErrInvalidPackage, i)
		}

		dim := 1.0
		if p.DimensionUnit == shipper.DimensionCM {
			dim = cmToIn
		}
		weight := p.Weight
		if p.WeightUnit == shipper.WeightKG {
			weight *= kgToLb
		}

		out[i] = Package{
			Length: p.Length * dim,
			Width:  p.Width * dim,
			Height: p.Height * dim,
			Weight: weight,
		}
	}
	return out, nil
}

var _ shipper.Shipper = (*Client)(nil)
