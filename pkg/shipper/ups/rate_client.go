package ups

import (
	"context"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// UPS Rating API endpoints.
const (
	LiveURL    = "https://www.ups.com/ups.app/xml/Rate"
	SandboxURL = "https://wwwcie.ups.com/ups.app/xml/Rate"
)

// DefaultTimeout bounds every rate request.
const DefaultTimeout = 10 * time.Second

// EndpointURL returns SandboxURL when sandbox is set, LiveURL otherwise.
func EndpointURL(sandbox bool) string {
	if sandbox {
		return SandboxURL
	}
	return LiveURL
}

// RateResult is the outcome of GetShippingRateOrObject. In price-only mode
// only Price is set; otherwise only Document is set.
type RateResult struct {
	PriceOnly bool
	Price     float64
	Document  *xmlquery.Node
}

// Option configures a RateClient.
type Option func(*rateClientOptions)

type rateClientOptions struct {
	apiClient          APIClient
	baseURL            string
	timeout            time.Duration
	insecureSkipVerify bool
	logger             *otelzap.Logger
}

// WithAPIClient replaces the HTTP transport entirely.
func WithAPIClient(api APIClient) Option {
	return func(o *rateClientOptions) {
		o.apiClient = api
	}
}

// WithBaseURL overrides the live/sandbox endpoint.
func WithBaseURL(url string) Option {
	return func(o *rateClientOptions) {
		o.baseURL = url
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *rateClientOptions) {
		o.timeout = d
	}
}

// WithInsecureSkipVerify disables TLS certificate and host verification.
// Verification is on unless this is set to true.
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *rateClientOptions) {
		o.insecureSkipVerify = skip
	}
}

// WithLogger enables debug logging of outgoing requests.
func WithLogger(logger *otelzap.Logger) Option {
	return func(o *rateClientOptions) {
		o.logger = logger
	}
}

// RateClient quotes UPS rates for a configured shipper and package list.
//
// Shipper context, packages and result mode persist across calls until
// replaced. Each call works on a snapshot taken when it starts, so setters
// are safe to call concurrently, but a caller that configures and then calls
// must serialize that sequence itself or use one client per shipment.
type RateClient struct {
	endpoint string
	api      APIClient
	logger   *otelzap.Logger

	mu              sync.RWMutex
	shipperNumber   string
	shipperZip      string
	packages        []Package
	returnPriceOnly bool
}

// NewRateClient creates a client for the live endpoint, or the sandbox
// endpoint when sandbox is true. Credentials are not validated; bad ones
// surface as a carrier error in the response.
func NewRateClient(accessKey, userID, password string, sandbox bool, opts ...Option) *RateClient {
	o := rateClientOptions{
		baseURL: EndpointURL(sandbox),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	api := o.apiClient
	if api == nil {
		api = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: o.baseURL,
			Credentials: Credentials{
				AccessKey: accessKey,
				UserID:    userID,
				Password:  password,
			},
			Timeout:            o.timeout,
			InsecureSkipVerify: o.insecureSkipVerify,
		})
	}

	logger := o.logger
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}

	return &RateClient{
		endpoint: o.baseURL,
		api:      api,
		logger:   logger,
	}
}

// Endpoint returns the live or sandbox URL selected at construction, or the
// WithBaseURL override. When WithAPIClient replaces the transport, nothing is
// posted to this URL.
func (c *RateClient) Endpoint() string {
	return c.endpoint
}

// SetReturnPriceOnly selects price-only results (true) or full documents (false).
func (c *RateClient) SetReturnPriceOnly(priceOnly bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.returnPriceOnly = priceOnly
}

// SetShipperNumber sets the UPS shipper account number.
func (c *RateClient) SetShipperNumber(number string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shipperNumber = number
}

// SetShipperZip sets the origin postal code used for Shipper and ShipFrom.
func (c *RateClient) SetShipperZip(zip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shipperZip = zip
}

// SetPackages replaces the package list. An empty list is allowed.
func (c *RateClient) SetPackages(pkgs []Package) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packages = append([]Package(nil), pkgs...)
}

// Packages returns a copy of the current package list.
func (c *RateClient) Packages() []Package {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Package(nil), c.packages...)
}

func (c *RateClient) snapshot(destinationZip, serviceLevel string) (*RatesRequest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &RatesRequest{
		ShipperNumber:  c.shipperNumber,
		ShipperZip:     c.shipperZip,
		DestinationZip: destinationZip,
		ServiceCode:    ServiceCode(serviceLevel),
		Packages:       append([]Package(nil), c.packages...),
	}, c.returnPriceOnly
}

// GetShippingRateOrObject requests a rate for the current shipper and
// packages to destinationZip. serviceLevel is a short name such as "GND" or
// "2DA"; unknown or empty names fall back to ground.
//
// In price-only mode the result carries the total charge; otherwise it
// carries the whole response document. Transport failures, malformed
// responses and a missing total charge are returned as errors matching
// shipper.ErrTransport, shipper.ErrMalformedResponse and
// shipper.ErrMissingField. Nothing is retried.
func (c *RateClient) GetShippingRateOrObject(ctx context.Context, destinationZip, serviceLevel string) (*RateResult, error) {
	req, priceOnly := c.snapshot(destinationZip, serviceLevel)

	c.logger.Debug("Requesting UPS rate",
		zap.String("endpoint", c.endpoint),
		zap.String("service_code", req.ServiceCode),
		zap.String("destination_postal", destinationZip),
		zap.Int("package_count", len(req.Packages)),
		zap.Bool("price_only", priceOnly),
	)

	resp, err := c.api.GetRates(ctx, req)
	if err != nil {
		return nil, err
	}

	if !priceOnly {
		return &RateResult{Document: resp.Document}, nil
	}

	price, err := resp.TotalCharges()
	if err != nil {
		return nil, err
	}
	return &RateResult{PriceOnly: true, Price: price}, nil
}
