package ups

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/tournevent/upsrate/pkg/shipper"
)

// APIClient defines the interface for UPS Rating API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// GetRates submits one rate request and returns the parsed response document.
	GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error)
}

// Credentials holds the UPS access key and account login. Values are sent
// as given; they are never validated locally.
type Credentials struct {
	AccessKey string
	UserID    string
	Password  string
}

// Package is one parcel of a shipment. Dimensions are inches, weight is pounds.
type Package struct {
	Length float64
	Width  float64
	Height float64
	Weight float64
}

// RatesRequest is a single UPS rate request. Packages are sent in order.
type RatesRequest struct {
	ShipperNumber  string
	ShipperZip     string
	DestinationZip string
	ServiceCode    string
	Packages       []Package
}

// RatesResponse wraps the parsed UPS response document.
type RatesResponse struct {
	StatusCode int
	Document   *xmlquery.Node
}

const (
	totalChargesPath     = "/*/RatedShipment/TotalCharges/MonetaryValue"
	currencyCodePath     = "/*/RatedShipment/TotalCharges/CurrencyCode"
	errorDescriptionPath = "/*/Response/Error/ErrorDescription"
	errorCodePath        = "/*/Response/Error/ErrorCode"
)

// UPS error codes for rejected access keys or account logins.
var authErrorCodes = map[string]bool{
	"250002": true, // invalid authentication information
	"250003": true, // invalid access license number
}

// ParseRatesResponse parses a UPS response body. The body must be a
// well-formed document with exactly one root element.
func ParseRatesResponse(r io.Reader, statusCode int) (*RatesResponse, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, shipper.NewShipperError(carrierName, shipper.CodeMalformedResponse, "response is not well-formed XML").
			WithCause(err).
			WithStatusCode(statusCode)
	}

	if msg := checkDocument(doc); msg != "" {
		return nil, shipper.NewShipperError(carrierName, shipper.CodeMalformedResponse, msg).
			WithStatusCode(statusCode)
	}

	return &RatesResponse{StatusCode: statusCode, Document: doc}, nil
}

func checkDocument(doc *xmlquery.Node) string {
	roots := 0
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		switch n.Type {
		case xmlquery.ElementNode:
			roots++
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if strings.TrimSpace(n.Data) != "" {
				return "response has text outside the root element"
			}
		}
	}
	switch roots {
	case 0:
		return "response has no root element"
	case 1:
		return ""
	default:
		return "response has more than one root element"
	}
}

// Root returns the document's root element.
func (r *RatesResponse) Root() *xmlquery.Node {
	for n := r.Document.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// TotalCharges extracts RatedShipment/TotalCharges/MonetaryValue from the
// first rated shipment. A missing value is an error, never zero.
func (r *RatesResponse) TotalCharges() (float64, error) {
	node := xmlquery.FindOne(r.Document, totalChargesPath)
	if node == nil {
		msg := "RatedShipment/TotalCharges/MonetaryValue not found in response"
		if desc := r.ErrorDescription(); desc != "" {
			msg += ": " + desc
		}
		err := shipper.NewShipperError(carrierName, shipper.CodeMissingField, msg).
			WithStatusCode(r.StatusCode)
		if authErrorCodes[r.ErrorCode()] {
			err = err.WithCause(shipper.ErrAuthenticationFailed)
		}
		return 0, err
	}

	value := strings.TrimSpace(node.InnerText())
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, shipper.NewShipperError(carrierName, shipper.CodeMalformedResponse, "monetary value "+strconv.Quote(value)+" is not a number").
			WithCause(err).
			WithStatusCode(r.StatusCode)
	}
	return amount, nil
}

// CurrencyCode returns the currency of the total charges, defaulting to USD.
func (r *RatesResponse) CurrencyCode() string {
	if node := xmlquery.FindOne(r.Document, currencyCodePath); node != nil {
		if code := strings.TrimSpace(node.InnerText()); code != "" {
			return code
		}
	}
	return "USD"
}

// ErrorCode returns the carrier's Response/Error/ErrorCode, if any.
func (r *RatesResponse) ErrorCode() string {
	if node := xmlquery.FindOne(r.Document, errorCodePath); node != nil {
		return strings.TrimSpace(node.InnerText())
	}
	return ""
}

// ErrorDescription returns the carrier's Response/Error/ErrorDescription, if any.
func (r *RatesResponse) ErrorDescription() string {
	if node := xmlquery.FindOne(r.Document, errorDescriptionPath); node != nil {
		return strings.TrimSpace(node.InnerText())
	}
	return ""
}
