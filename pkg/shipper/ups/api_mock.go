package ups

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tournevent/upsrate/pkg/shipper"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetRates func(ctx context.Context, req *RatesRequest) (*RatesResponse, error)

	mu       sync.Mutex
	requests []RatesRequest
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// Requests returns a copy of every request received so far.
func (m *MockAPIClient) Requests() []RatesRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RatesRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or nil if none was made.
func (m *MockAPIClient) LastRequest() *RatesRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}

// GetRates returns a priced response derived from the service code and total weight.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	m.mu.Lock()
	snapshot := *req
	snapshot.Packages = append([]Package(nil), req.Packages...)
	m.requests = append(m.requests, snapshot)
	m.mu.Unlock()

	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, transportError(ctx.Err())
		}
	}

	if m.SimulateErrors {
		return nil, shipper.NewShipperError(carrierName, shipper.CodeTransport, "simulated API error")
	}

	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	return ParseRatesResponse(strings.NewReader(mockResponseXML(req)), 200)
}

var mockBaseRates = map[string]float64{
	"01": 45.00,
	"02": 28.00,
	"03": 9.50,
	"07": 80.00,
	"08": 60.00,
	"11": 14.00,
	"12": 19.00,
	"13": 40.00,
	"14": 75.00,
	"54": 110.00,
	"59": 33.00,
}

func mockResponseXML(req *RatesRequest) string {
	var weight float64
	for _, p := range req.Packages {
		weight += p.Weight
	}

	base, ok := mockBaseRates[req.ServiceCode]
	if !ok {
		base = mockBaseRates[DefaultServiceCode]
	}
	total := base + weight*1.25

	return fmt.Sprintf(`<?xml version="1.0"?>
<RatingServiceSelectionResponse>
  <Response>
    <ResponseStatusCode>1</ResponseStatusCode>
    <ResponseStatusDescription>Success</ResponseStatusDescription>
  </Response>
  <RatedShipment>
    <Service><Code>%s</Code></Service>
    <BillingWeight>
      <UnitOfMeasurement><Code>LBS</Code></UnitOfMeasurement>
      <Weight>%.1f</Weight>
    </BillingWeight>
    <TotalCharges>
      <CurrencyCode>USD</CurrencyCode>
      <MonetaryValue>%.2f</MonetaryValue>
    </TotalCharges>
  </RatedShipment>
</RatingServiceSelectionResponse>`, req.ServiceCode, weight, total)
}

var _ APIClient = (*MockAPIClient)(nil)
