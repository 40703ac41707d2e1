package shipper

import (
	"time"
)

// ServiceType represents the shipping service type.
type ServiceType string

const (
	ServiceStandard  ServiceType = "standard"
	ServiceExpress   ServiceType = "express"
	ServicePriority  ServiceType = "priority"
	ServiceOvernight ServiceType = "overnight"
	ServiceEconomy   ServiceType = "economy"
)

// WeightUnit represents weight measurement unit.
type WeightUnit string

const (
	WeightKG WeightUnit = "kg"
	WeightLB WeightUnit = "lb"
)

// DimensionUnit represents dimension measurement unit.
type DimensionUnit string

const (
	DimensionCM DimensionUnit = "cm"
	DimensionIN DimensionUnit = "in"
)

// Address represents a shipping address.
type Address struct {
	PostalCode  string
	CountryCode string // ISO 3166-1 alpha-2, e.g., "US"
}

// Package represents a package to be shipped.
type Package struct {
	Length        float64
	Width         float64
	Height        float64
	DimensionUnit DimensionUnit
	Weight        float64
	WeightUnit    WeightUnit
}

// Money represents a monetary amount.
type Money struct {
	Amount   float64
	Currency string
}

// RateOption represents a shipping rate option from a carrier.
type RateOption struct {
	RateID      string
	Carrier     string
	ServiceCode string
	ServiceName string
	ServiceType ServiceType
	TotalPrice  Money
	ExpiresAt   time.Time
}

// ShippingOptions represents shipping preferences.
type ShippingOptions struct {
	Carriers      []string // Empty = all carriers
	ServiceLevels []string // Carrier-specific short names, e.g. "GND", "2DA"
}

// ============================================================================
// Request/Response Types
// ============================================================================

// QuoteRequest is the request for getting shipping quotes.
type QuoteRequest struct {
	ShipperID   string
	Origin      Address
	Destination Address
	Packages    []Package
	Options     ShippingOptions
}

// QuoteResponse is the response from getting shipping quotes.
type QuoteResponse struct {
	QuoteID   string
	Carrier   string
	Rates     []RateOption
	ExpiresAt time.Time
}
