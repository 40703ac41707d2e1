package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/upsrate/internal/server"
	"github.com/tournevent/upsrate/pkg/shipper"
	"github.com/tournevent/upsrate/pkg/shipper/mock"
	"github.com/tournevent/upsrate/pkg/shipper/ups"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, shippers ...shipper.Shipper) http.Handler {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	registry := shipper.NewRegistry()
	for _, s := range shippers {
		registry.Register(s)
	}

	return server.New(server.Config{Port: 8080}, registry, logger).Handler()
}

type ratesBody struct {
	Quotes []struct {
		QuoteID string `json:"quoteId"`
		Carrier string `json:"carrier"`
		Rates   []struct {
			ServiceCode string  `json:"serviceCode"`
			Amount      float64 `json:"amount"`
			Currency    string  `json:"currency"`
		} `json:"rates"`
	} `json:"quotes"`
	Errors []struct {
		Carrier string `json:"carrier"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func postRates(t *testing.T, handler http.Handler, body string) (*httptest.ResponseRecorder, ratesBody) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/rates", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp ratesBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

const validRates = `{
	"serviceLevels": ["GND", "2DA"],
	"origin": {"postalCode": "90210"},
	"destination": {"postalCode": "10001"},
	"packages": [{"length": 10, "width": 8, "height": 6, "weight": 5}]
}`

func TestServer_Health(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_Rates_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, mock.New("ups"))

	req := httptest.NewRequest(http.MethodGet, "/rates", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestServer_Rates_InvalidJSON(t *testing.T) {
	handler := newTestHandler(t, mock.New("ups"))

	rec, resp := postRates(t, handler, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "Invalid JSON")
}

func TestServer_Rates_MissingDestination(t *testing.T) {
	handler := newTestHandler(t, mock.New("ups"))

	rec, resp := postRates(t, handler, `{"packages": []}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, resp.Errors, 1)
}

func TestServer_Rates_Success(t *testing.T) {
	logger := otelzap.New(zap.NewNop())
	upsClient := ups.New(ups.Config{UseMock: true}, logger, nil)
	handler := newTestHandler(t, upsClient)

	rec, resp := postRates(t, handler, validRates)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp.Errors)
	require.Len(t, resp.Quotes, 1)
	assert.Equal(t, "ups", resp.Quotes[0].Carrier)
	require.Len(t, resp.Quotes[0].Rates, 2)
	assert.Equal(t, "03", resp.Quotes[0].Rates[0].ServiceCode)
	assert.Equal(t, "02", resp.Quotes[0].Rates[1].ServiceCode)
	assert.Equal(t, "USD", resp.Quotes[0].Rates[0].Currency)
}

func TestServer_Rates_AllCarriersFail(t *testing.T) {
	failing := mock.New("ups")
	failing.Err = shipper.NewShipperError("ups", shipper.CodeTransport, "connection refused")
	handler := newTestHandler(t, failing)

	rec, resp := postRates(t, handler, validRates)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, resp.Quotes)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "ups", resp.Errors[0].Carrier)
	assert.Equal(t, shipper.CodeTransport, resp.Errors[0].Code)
}

func TestServer_Rates_UnknownCarrier(t *testing.T) {
	handler := newTestHandler(t, mock.New("ups"))

	body := `{"carriers": ["ups", "nope"], "destination": {"postalCode": "10001"}, "packages": [{"weight": 1}]}`
	rec, resp := postRates(t, handler, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Quotes, 1)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "CARRIER_NOT_FOUND", resp.Errors[0].Code)
	assert.Equal(t, "nope", resp.Errors[0].Carrier)
}

func TestServer_Rates_ErrorsAttributedToCarrier(t *testing.T) {
	failing := mock.New("fedex")
	failing.Err = fmt.Errorf("%w: package 0", shipper.ErrInvalidPackage)
	handler := newTestHandler(t, mock.New("ups"), failing)

	rec, resp := postRates(t, handler, validRates)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "fedex", resp.Errors[0].Carrier)
	assert.Equal(t, "INVALID_PACKAGE", resp.Errors[0].Code)
}

func TestServer_Rates_AuthenticationFailed(t *testing.T) {
	failing := mock.New("ups")
	failing.Err = shipper.NewShipperError("ups", shipper.CodeMissingField, "no price").
		WithCause(shipper.ErrAuthenticationFailed)
	handler := newTestHandler(t, failing)

	rec, resp := postRates(t, handler, validRates)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "ups", resp.Errors[0].Carrier)
	assert.Equal(t, "AUTHENTICATION_FAILED", resp.Errors[0].Code)
}

func TestServer_Rates_RejectsUnknownFields(t *testing.T) {
	handler := newTestHandler(t, mock.New("ups"))

	body := `{"destination": {"postalCode": "10001", "isResidential": true}, "packages": [{"weight": 1}]}`
	rec, resp := postRates(t, handler, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "isResidential")
}

func TestServer_Metrics(t *testing.T) {
	handler := newTestHandler(t, mock.New("ups"))
	postRates(t, handler, validRates)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `upsrate_requests_total{carrier="ups",operation="get_quote",status="success"} 1`)
}
