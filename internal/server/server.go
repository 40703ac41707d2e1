package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/upsrate/internal/telemetry"
	"github.com/tournevent/upsrate/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the rate-quote service.
type Server struct {
	port     int
	registry *shipper.Registry
	logger   *otelzap.Logger
	metrics  *telemetry.Metrics
	gatherer prometheus.Gatherer
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance with its own metrics registry.
func New(cfg Config, registry *shipper.Registry, logger *otelzap.Logger) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		port:     cfg.Port,
		registry: registry,
		logger:   logger,
		metrics:  telemetry.NewMetrics(reg),
		gatherer: reg,
	}
}

// Handler returns the HTTP routes served by Run.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/rates", s.handleRates)
	return mux
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ============================================================================
// Rates endpoint
// ============================================================================

type addressInput struct {
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode,omitempty"`
}

type packageInput struct {
	Length        float64 `json:"length"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Weight        float64 `json:"weight"`
	DimensionUnit string  `json:"dimensionUnit,omitempty"`
	WeightUnit    string  `json:"weightUnit,omitempty"`
}

type ratesRequest struct {
	ShipperID     string         `json:"shipperId,omitempty"`
	Carriers      []string       `json:"carriers,omitempty"`
	ServiceLevels []string       `json:"serviceLevels,omitempty"`
	Origin        addressInput   `json:"origin"`
	Destination   addressInput   `json:"destination"`
	Packages      []packageInput `json:"packages"`
}

type rateOutput struct {
	RateID      string    `json:"rateId"`
	Carrier     string    `json:"carrier"`
	ServiceCode string    `json:"serviceCode"`
	ServiceName string    `json:"serviceName"`
	ServiceType string    `json:"serviceType"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type quoteOutput struct {
	QuoteID   string       `json:"quoteId"`
	Carrier   string       `json:"carrier"`
	Rates     []rateOutput `json:"rates"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type ratesResponse struct {
	Quotes []quoteOutput `json:"quotes"`
	Errors []errorOutput `json:"errors,omitempty"`
}

type errorOutput struct {
	Carrier string `json:"carrier,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ratesResponse{
			Errors: []errorOutput{{Message: "Method not allowed, use POST"}},
		})
		return
	}

	var in ratesRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, ratesResponse{
			Errors: []errorOutput{{Message: "Invalid JSON: " + err.Error()}},
		})
		return
	}
	if in.Destination.PostalCode == "" {
		writeJSON(w, http.StatusBadRequest, ratesResponse{
			Errors: []errorOutput{{Message: "destination.postalCode is required"}},
		})
		return
	}

	start := time.Now()
	quotes, errs := s.registry.GetQuotes(r.Context(), ratesRequestToShipper(in))
	elapsed := time.Since(start).Seconds()

	out := ratesResponse{Quotes: make([]quoteOutput, 0, len(quotes))}
	for _, q := range quotes {
		s.metrics.RecordRequest("get_quote", q.Carrier, "success", elapsed)
		out.Quotes = append(out.Quotes, quoteToOutput(q))
	}
	for _, err := range errs {
		e := errorToOutput(err)
		s.metrics.RecordRequest("get_quote", e.Carrier, "error", elapsed)
		s.metrics.RecordError(e.Carrier, e.Code)
		s.logger.Warn("Carrier quote failed",
			zap.String("carrier", e.Carrier),
			zap.String("code", e.Code),
			zap.Error(err),
		)
		out.Errors = append(out.Errors, e)
	}

	status := http.StatusOK
	if len(quotes) == 0 && len(errs) > 0 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, out)
}

func ratesRequestToShipper(in ratesRequest) *shipper.QuoteRequest {
	pkgs := make([]shipper.Package, len(in.Packages))
	for i, p := range in.Packages {
		pkgs[i] = shipper.Package{
			Length:        p.Length,
			Width:         p.Width,
			Height:        p.Height,
			DimensionUnit: shipper.DimensionUnit(p.DimensionUnit),
			Weight:        p.Weight,
			WeightUnit:    shipper.WeightUnit(p.WeightUnit),
		}
	}

	return &shipper.QuoteRequest{
		ShipperID:   in.ShipperID,
		Origin:      addressToShipper(in.Origin),
		Destination: addressToShipper(in.Destination),
		Packages:    pkgs,
		Options: shipper.ShippingOptions{
			Carriers:      in.Carriers,
			ServiceLevels: in.ServiceLevels,
		},
	}
}

func addressToShipper(in addressInput) shipper.Address {
	country := in.CountryCode
	if country == "" {
		country = "US"
	}
	return shipper.Address{
		PostalCode:  in.PostalCode,
		CountryCode: country,
	}
}

func quoteToOutput(q *shipper.QuoteResponse) quoteOutput {
	rates := make([]rateOutput, len(q.Rates))
	for i, r := range q.Rates {
		rates[i] = rateOutput{
			RateID:      r.RateID,
			Carrier:     r.Carrier,
			ServiceCode: r.ServiceCode,
			ServiceName: r.ServiceName,
			ServiceType: string(r.ServiceType),
			Amount:      r.TotalPrice.Amount,
			Currency:    r.TotalPrice.Currency,
			ExpiresAt:   r.ExpiresAt,
		}
	}
	return quoteOutput{
		QuoteID:   q.QuoteID,
		Carrier:   q.Carrier,
		Rates:     rates,
		ExpiresAt: q.ExpiresAt,
	}
}

func errorToOutput(err error) errorOutput {
	out := errorOutput{Carrier: "unknown", Code: "UNKNOWN", Message: err.Error()}

	var carrierErr *shipper.CarrierError
	if errors.As(err, &carrierErr) {
		out.Carrier = carrierErr.Carrier
	}

	var shipperErr *shipper.ShipperError
	switch {
	case errors.Is(err, shipper.ErrAuthenticationFailed):
		out.Code = "AUTHENTICATION_FAILED"
	case errors.As(err, &shipperErr):
		out.Code = shipperErr.Code
		if shipperErr.Carrier != "" {
			out.Carrier = shipperErr.Carrier
		}
	case errors.Is(err, shipper.ErrCarrierNotFound):
		out.Code = "CARRIER_NOT_FOUND"
	case errors.Is(err, shipper.ErrInvalidPackage):
		out.Code = "INVALID_PACKAGE"
	case errors.Is(err, shipper.ErrInvalidAddress):
		out.Code = "INVALID_ADDRESS"
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
