package ups

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tournevent/upsrate/pkg/shipper"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP/XML.
type HTTPAPIClient struct {
	baseURL     string
	credentials Credentials
	httpClient  *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL     string
	Credentials Credentials
	Timeout     time.Duration
	// InsecureSkipVerify disables TLS certificate and host verification.
	InsecureSkipVerify bool
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in only
	}

	return &HTTPAPIClient{
		baseURL:     cfg.BaseURL,
		credentials: cfg.Credentials,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// BaseURL returns the endpoint every request is posted to.
func (c *HTTPAPIClient) BaseURL() string {
	return c.baseURL
}

// ============================================================================
// XML Request structures for the UPS Rating API
// ============================================================================

const xmlDeclaration = `<?xml version="1.0"?>` + "\n"

type accessRequest struct {
	XMLName             xml.Name `xml:"AccessRequest"`
	Lang                string   `xml:"xml:lang,attr"`
	AccessLicenseNumber string   `xml:"AccessLicenseNumber"`
	UserID              string   `xml:"UserId"`
	Password            string   `xml:"Password"`
}

type ratingServiceSelectionRequest struct {
	XMLName    xml.Name    `xml:"RatingServiceSelectionRequest"`
	Lang       string      `xml:"xml:lang,attr"`
	Request    xmlRequest  `xml:"Request"`
	PickupType xmlCode     `xml:"PickupType"`
	Shipment   xmlShipment `xml:"Shipment"`
}

type xmlRequest struct {
	CustomerContext string `xml:"TransactionReference>CustomerContext"`
	XpciVersion     string `xml:"TransactionReference>XpciVersion"`
	RequestAction   string `xml:"RequestAction"`
	RequestOption   string `xml:"RequestOption"`
}

type xmlCode struct {
	Code string `xml:"Code"`
}

type xmlShipment struct {
	Shipper  xmlShipper   `xml:"Shipper"`
	ShipTo   xmlParty     `xml:"ShipTo"`
	ShipFrom xmlParty     `xml:"ShipFrom"`
	Service  xmlCode      `xml:"Service"`
	Packages []xmlPackage `xml:"Package"`
}

type xmlShipper struct {
	Address       xmlAddress `xml:"Address"`
	ShipperNumber string     `xml:"ShipperNumber"`
}

type xmlParty struct {
	Address xmlAddress `xml:"Address"`
}

type xmlAddress struct {
	PostalCode                  string    `xml:"PostalCode"`
	CountryCode                 string    `xml:"CountryCode"`
	ResidentialAddressIndicator *struct{} `xml:"ResidentialAddressIndicator,omitempty"`
}

type xmlPackage struct {
	PackagingType xmlCode       `xml:"PackagingType"`
	Dimensions    xmlDimensions `xml:"Dimensions"`
	PackageWeight xmlWeight     `xml:"PackageWeight"`
}

// Numeric values are pre-rendered as plain decimals; encoding/xml would use
// exponent form for large or tiny floats.
type xmlDimensions struct {
	UnitOfMeasurement xmlCode `xml:"UnitOfMeasurement"`
	Length            string  `xml:"Length"`
	Width             string  `xml:"Width"`
	Height            string  `xml:"Height"`
}

type xmlWeight struct {
	UnitOfMeasurement xmlCode `xml:"UnitOfMeasurement"`
	Weight            string  `xml:"Weight"`
}

const (
	lang              = "en-US"
	customerContext   = "Bare Bones Rate Request"
	xpciVersion       = "1.0001"
	requestActionRate = "Rate"
	pickupDailyCode   = "01"
	packagingCode     = "02" // customer supplied package
	countryUS         = "US"
	unitInches        = "IN"
	unitPounds        = "LBS"
)

func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func buildPackages(pkgs []Package) []xmlPackage {
	out := make([]xmlPackage, len(pkgs))
	for i, p := range pkgs {
		out[i] = xmlPackage{
			PackagingType: xmlCode{Code: packagingCode},
			Dimensions: xmlDimensions{
				UnitOfMeasurement: xmlCode{Code: unitInches},
				Length:            decimal(p.Length),
				Width:             decimal(p.Width),
				Height:            decimal(p.Height),
			},
			PackageWeight: xmlWeight{
				UnitOfMeasurement: xmlCode{Code: unitPounds},
				Weight:            decimal(p.Weight),
			},
		}
	}
	return out
}

// BuildRequestBody renders the two concatenated documents UPS expects:
// an AccessRequest followed by a RatingServiceSelectionRequest.
// All text content is XML-escaped.
func BuildRequestBody(creds Credentials, req *RatesRequest) ([]byte, error) {
	access := accessRequest{
		Lang:                lang,
		AccessLicenseNumber: creds.AccessKey,
		UserID:              creds.UserID,
		Password:            creds.Password,
	}

	shipperAddress := xmlAddress{PostalCode: req.ShipperZip, CountryCode: countryUS}
	rating := ratingServiceSelectionRequest{
		Lang: lang,
		Request: xmlRequest{
			CustomerContext: customerContext,
			XpciVersion:     xpciVersion,
			RequestAction:   requestActionRate,
			RequestOption:   requestActionRate,
		},
		PickupType: xmlCode{Code: pickupDailyCode},
		Shipment: xmlShipment{
			Shipper: xmlShipper{
				Address:       shipperAddress,
				ShipperNumber: req.ShipperNumber,
			},
			ShipTo: xmlParty{Address: xmlAddress{
				PostalCode:                  req.DestinationZip,
				CountryCode:                 countryUS,
				ResidentialAddressIndicator: &struct{}{},
			}},
			ShipFrom: xmlParty{Address: shipperAddress},
			Service:  xmlCode{Code: req.ServiceCode},
			Packages: buildPackages(req.Packages),
		},
	}

	var buf bytes.Buffer
	for _, doc := range []any{access, rating} {
		buf.WriteString(xmlDeclaration)
		out, err := xml.Marshal(doc)
		if err != nil {
			return nil, err
		}
		buf.Write(out)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ============================================================================
// API Implementation
// ============================================================================

// GetRates posts one rate request and parses the response document.
// The HTTP status is recorded but not interpreted: UPS reports most
// failures inside a well-formed document.
func (c *HTTPAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	body, err := BuildRequestBody(c.credentials, req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err).WithStatusCode(resp.StatusCode)
	}

	return ParseRatesResponse(bytes.NewReader(data), resp.StatusCode)
}

func transportError(err error) *shipper.ShipperError {
	return shipper.NewShipperError(carrierName, shipper.CodeTransport, "rate request failed").
		WithCause(err).
		WithRetryable(true)
}

var _ APIClient = (*HTTPAPIClient)(nil)
