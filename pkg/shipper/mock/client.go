// Package mock provides a mock shipper implementation for testing.
package mock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/upsrate/pkg/shipper"
)

// Client is a mock shipper for testing.
type Client struct {
	name string
	// Err, when set, is returned by GetQuote instead of a quote.
	Err error
}

// New creates a new mock shipper.
func New(name string) *Client {
	return &Client{name: name}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// GetQuote returns one fixed USD rate per requested service level, or a
// single "GND" rate when none are requested.
func (c *Client) GetQuote(ctx context.Context, req *shipper.QuoteRequest) (*shipper.QuoteResponse, error) {
	if c.Err != nil {
		return nil, c.Err
	}

	levels := req.Options.ServiceLevels
	if len(levels) == 0 {
		levels = []string{"GND"}
	}

	expiresAt := time.Now().Add(30 * time.Minute)
	rates := make([]shipper.RateOption, 0, len(levels))
	for i, level := range levels {
		rates = append(rates, shipper.RateOption{
			RateID:      c.name + "-rate-" + uuid.New().String()[:8],
			Carrier:     c.name,
			ServiceCode: level,
			ServiceName: c.name + " " + level,
			ServiceType: shipper.ServiceStandard,
			TotalPrice:  shipper.Money{Amount: 12.50 + float64(i)*10, Currency: "USD"},
			ExpiresAt:   expiresAt,
		})
	}

	return &shipper.QuoteResponse{
		QuoteID:   c.name + "-quote-" + uuid.New().String()[:8],
		Carrier:   c.name,
		Rates:     rates,
		ExpiresAt: expiresAt,
	}, nil
}

var _ shipper.Shipper = (*Client)(nil)
