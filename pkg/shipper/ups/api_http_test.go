package ups_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/upsrate/pkg/shipper"
	"github.com/tournevent/upsrate/pkg/shipper/ups"
)

const successResponse = `<?xml version="1.0"?>
<RatingServiceSelectionResponse>
  <Response>
    <ResponseStatusCode>1</ResponseStatusCode>
    <ResponseStatusDescription>Success</ResponseStatusDescription>
  </Response>
  <RatedShipment>
    <Service><Code>03</Code></Service>
    <TotalCharges>
      <CurrencyCode>USD</CurrencyCode>
      <MonetaryValue>42.50</MonetaryValue>
    </TotalCharges>
  </RatedShipment>
</RatingServiceSelectionResponse>`

const authFailureResponse = `<?xml version="1.0"?>
<RatingServiceSelectionResponse>
  <Response>
    <ResponseStatusCode>0</ResponseStatusCode>
    <Error>
      <ErrorSeverity>Hard</ErrorSeverity>
      <ErrorCode>250003</ErrorCode>
      <ErrorDescription>Invalid Access License number</ErrorDescription>
    </Error>
  </Response>
</RatingServiceSelectionResponse>`

// rateServer serves a fixed body and records every request body it receives.
type rateServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies [][]byte
	method string
}

func newRateServer(t *testing.T, response string) *rateServer {
	t.Helper()
	rs := &rateServer{}
	rs.Server = httptest.NewServer(rs.handler(response))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *rateServer) handler(response string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rs.mu.Lock()
		rs.bodies = append(rs.bodies, body)
		rs.method = r.Method
		rs.mu.Unlock()
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(response))
	}
}

func (rs *rateServer) lastBody(t *testing.T) []byte {
	t.Helper()
	rs.mu.Lock()
	defer rs.mu.Unlock()
	require.NotEmpty(t, rs.bodies, "server received no requests")
	return rs.bodies[len(rs.bodies)-1]
}

// splitDocuments parses the access and rating documents out of a request body.
func splitDocuments(t *testing.T, body []byte) (access, rating *xmlquery.Node) {
	t.Helper()
	parts := bytes.Split(body, []byte(`<?xml version="1.0"?>`))
	require.Len(t, parts, 3, "body should hold two documents")
	assert.Empty(t, strings.TrimSpace(string(parts[0])))

	access, err := xmlquery.Parse(bytes.NewReader(parts[1]))
	require.NoError(t, err)
	rating, err = xmlquery.Parse(bytes.NewReader(parts[2]))
	require.NoError(t, err)
	return access, rating
}

func text(t *testing.T, top *xmlquery.Node, expr string) string {
	t.Helper()
	node := xmlquery.FindOne(top, expr)
	require.NotNil(t, node, "missing %s", expr)
	return node.InnerText()
}

func newRatesRequest() *ups.RatesRequest {
	return &ups.RatesRequest{
		ShipperNumber:  "ABC123",
		ShipperZip:     "90210",
		DestinationZip: "10001",
		ServiceCode:    "02",
		Packages: []ups.Package{
			{Length: 12.5, Width: 8, Height: 6, Weight: 5},
			{Length: 4, Width: 4, Height: 4, Weight: 0.25},
		},
	}
}

func TestHTTPAPIClient_GetRates_RequestShape(t *testing.T) {
	srv := newRateServer(t, successResponse)
	client := ups.NewHTTPAPIClient(ups.HTTPAPIClientConfig{
		BaseURL:     srv.URL,
		Credentials: ups.Credentials{AccessKey: "KEY", UserID: "user", Password: "secret"},
	})

	_, err := client.GetRates(context.Background(), newRatesRequest())
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, srv.method)

	access, rating := splitDocuments(t, srv.lastBody(t))

	assert.Equal(t, "KEY", text(t, access, "/AccessRequest/AccessLicenseNumber"))
	assert.Equal(t, "user", text(t, access, "/AccessRequest/UserId"))
	assert.Equal(t, "secret", text(t, access, "/AccessRequest/Password"))

	root := "/RatingServiceSelectionRequest"
	assert.Equal(t, "Bare Bones Rate Request", text(t, rating, root+"/Request/TransactionReference/CustomerContext"))
	assert.Equal(t, "1.0001", text(t, rating, root+"/Request/TransactionReference/XpciVersion"))
	assert.Equal(t, "Rate", text(t, rating, root+"/Request/RequestAction"))
	assert.Equal(t, "Rate", text(t, rating, root+"/Request/RequestOption"))
	assert.Equal(t, "01", text(t, rating, root+"/PickupType/Code"))

	shipment := root + "/Shipment"
	assert.Equal(t, "90210", text(t, rating, shipment+"/Shipper/Address/PostalCode"))
	assert.Equal(t, "US", text(t, rating, shipment+"/Shipper/Address/CountryCode"))
	assert.Equal(t, "ABC123", text(t, rating, shipment+"/Shipper/ShipperNumber"))
	assert.Equal(t, "10001", text(t, rating, shipment+"/ShipTo/Address/PostalCode"))
	assert.Equal(t, "US", text(t, rating, shipment+"/ShipTo/Address/CountryCode"))
	assert.Equal(t, "", text(t, rating, shipment+"/ShipTo/Address/ResidentialAddressIndicator"))
	assert.Equal(t, "90210", text(t, rating, shipment+"/ShipFrom/Address/PostalCode"))
	assert.Equal(t, "US", text(t, rating, shipment+"/ShipFrom/Address/CountryCode"))
	assert.Nil(t, xmlquery.FindOne(rating, shipment+"/ShipFrom/ShipperNumber"))
	assert.Nil(t, xmlquery.FindOne(rating, shipment+"/ShipTo/ShipperNumber"))
	assert.Equal(t, "02", text(t, rating, shipment+"/Service/Code"))
}

func TestHTTPAPIClient_GetRates_PackagesInOrder(t *testing.T) {
	srv := newRateServer(t, successResponse)
	client := ups.NewHTTPAPIClient(ups.HTTPAPIClientConfig{BaseURL: srv.URL})

	_, err := client.GetRates(context.Background(), newRatesRequest())
	require.NoError(t, err)

	_, rating := splitDocuments(t, srv.lastBody(t))
	pkgs := xmlquery.Find(rating, "/RatingServiceSelectionRequest/Shipment/Package")
	require.Len(t, pkgs, 2)

	want := [][4]string{
		{"12.5", "8", "6", "5"},
		{"4", "4", "4", "0.25"},
	}
	for i, pkg := range pkgs {
		assert.Equal(t, "02", text(t, pkg, "PackagingType/Code"))
		assert.Equal(t, "IN", text(t, pkg, "Dimensions/UnitOfMeasurement/Code"))
		assert.Equal(t, want[i][0], text(t, pkg, "Dimensions/Length"))
		assert.Equal(t, want[i][1], text(t, pkg, "Dimensions/Width"))
		assert.Equal(t, want[i][2], text(t, pkg, "Dimensions/Height"))
		assert.Equal(t, "LBS", text(t, pkg, "PackageWeight/UnitOfMeasurement/Code"))
		assert.Equal(t, want[i][3], text(t, pkg, "PackageWeight/Weight"))
	}
}

func TestHTTPAPIClient_GetRates_NoPackages(t *testing.T) {
	srv := newRateServer(t, successResponse)
	client := ups.NewHTTPAPIClient(ups.HTTPAPIClientConfig{BaseURL: srv.URL})

	req := newRatesRequest()
	req.Packages = nil

	_, err := client.GetRates(context.Background(), req)
	require.NoError(t, err)

	body := srv.lastBody(t)
	assert.NotContains(t, string(body), "<Package>")
	_, rating := splitDocuments(t, body)
	assert.Empty(t, xmlquery.Find(rating, "//Package"))
}

func TestBuildRequestBody_PlainDecimals(t *testing.T) {
	req := newRatesRequest()
	req.Packages = []ups.Package{{Length: 1000000, Width: 0.00001, Height: 1234567, Weight: 150}}

	body, err := ups.BuildRequestBody(ups.Credentials{}, req)
	require.NoError(t, err)

	_, rating := splitDocuments(t, body)
	pkg := xmlquery.FindOne(rating, "/RatingServiceSelectionRequest/Shipment/Package")
	require.NotNil(t, pkg)
	assert.Equal(t, "1000000", text(t, pkg, "Dimensions/Length"))
	assert.Equal(t, "0.00001", text(t, pkg, "Dimensions/Width"))
	assert.Equal(t, "1234567", text(t, pkg, "Dimensions/Height"))
	assert.Equal(t, "150", text(t, pkg, "PackageWeight/Weight"))
}

func TestBuildRequestBody_EscapesText(t *testing.T) {
	creds := ups.Credentials{AccessKey: "k<ey>", UserID: "a&b", Password: `p"w'</Password>`}
	req := newRatesRequest()
	req.ShipperNumber = "<ShipperNumber>"

	body, err := ups.BuildRequestBody(creds, req)
	require.NoError(t, err)

	access, rating := splitDocuments(t, body)
	assert.Equal(t, "k<ey>", text(t, access, "/AccessRequest/AccessLicenseNumber"))
	assert.Equal(t, "a&b", text(t, access, "/AccessRequest/UserId"))
	assert.Equal(t, `p"w'</Password>`, text(t, access, "/AccessRequest/Password"))
	assert.Equal(t, "<ShipperNumber>", text(t, rating, "//Shipper/ShipperNumber"))
}

func TestBuildRequestBody_Lang(t *testing.T) {
	body, err := ups.BuildRequestBody(ups.Credentials{}, newRatesRequest())
	require.NoError(t, err)

	assert.Contains(t, string(body), `<AccessRequest xml:lang="en-US">`)
	assert.Contains(t, string(body), `<RatingServiceSelectionRequest xml:lang="en-US">`)
}

func TestHTTPAPIClient_GetRates_FullDocument(t *testing.T) {
	srv := newRateServer(t, successResponse)
	client := ups.NewHTTPAPIClient(ups.HTTPAPIClientConfig{BaseURL: srv.URL})

	resp, err := client.GetRates(context.Background(), newRatesRequest())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, resp.Root())
	assert.Equal(t, "RatingServiceSelectionResponse", resp.Root().Data)
	assert.Equal(t, "Success", text(t, resp.Document, "/RatingServiceSelectionResponse/Response/ResponseStatusDescription"))
	assert.Equal(t, "03", text(t, resp.Document, "//RatedShipment/Service/Code"))

	price, err := resp.TotalCharges()
	require.NoError(t, err)
	assert.Equal(t, 42.5, price)
	assert.Equal(t, "USD", resp.CurrencyCode())
}

func TestHTTPAPIClient_GetRates_MalformedResponse(t *testing.T) {
	bodies := map[string]string{
		"truncated":  `<RatingServiceSelectionResponse><RatedShipment>`,
		"mismatched": `<RatingServiceSelectionResponse></RatedShipment>`,
		"plain text": `Service Unavailable`,
		"empty":      ``,
		"two roots":  `<a/><b/>`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := newRateServer(t, body)
			client := ups.NewHTTPAPIClient(ups.HTTPAPIClientConfig{BaseURL: srv.URL})

			resp, err := client.GetRates(context.Background(), newRatesRequest())
			assert.Nil(t, resp)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shipper.ErrMalformedResponse), "got %v", err)
		})
	}
}

func TestHTTPAPIClient_GetRates_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := ups.NewHTTPAPIClient(ups.HTTPAPIClientConfig{BaseURL: url})
	_, err := client.GetRates(context.Background(), newRatesRequest())

	require.Error(t, err)
	assert.True(t, errors.Is(err, shipper.ErrTransport))
	assert.True(t, shipper.IsRetryable(err))
}

func TestHTTPAPIClient_GetRates_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(successResponse))
	}))
	defer srv.Close()

	client := ups.NewHTTPAPIClient(ups.HTTPAPIClientConfig{
		BaseURL: srv.URL,
		Timeout: 20 * time.Millisecond,
	})
	_, err := client.GetRates(context.Background(), newRatesRequest())

	require.Error(t, err)
	assert.True(t, errors.Is(err, shipper.ErrTransport))
}

func TestHTTPAPIClient_GetRates_TLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(successResponse))
	}))
	defer srv.Close()

	t.Run("verified by default", func(t *testing.T) {
		client := ups.NewHTTPAPIClient(ups.HTTPAPIClientConfig{BaseURL: srv.URL})
		_, err := client.GetRates(context.Background(), newRatesRequest())

		require.Error(t, err)
		assert.True(t, errors.Is(err, shipper.ErrTransport))
	})

	t.Run("skipped on request", func(t *testing.T) {
		client := ups.NewHTTPAPIClient(ups.HTTPAPIClientConfig{
			BaseURL:            srv.URL,
			InsecureSkipVerify: true,
		})
		resp, err := client.GetRates(context.Background(), newRatesRequest())

		require.NoError(t, err)
		price, err := resp.TotalCharges()
		require.NoError(t, err)
		assert.Equal(t, 42.5, price)
	})
}

func TestRatesResponse_TotalCharges_Missing(t *testing.T) {
	resp, err := ups.ParseRatesResponse(strings.NewReader(authFailureResponse), http.StatusOK)
	require.NoError(t, err)

	price, err := resp.TotalCharges()
	require.Error(t, err)
	assert.Zero(t, price)
	assert.True(t, errors.Is(err, shipper.ErrMissingField))
	assert.Contains(t, err.Error(), "Invalid Access License number")
	assert.Equal(t, "Invalid Access License number", resp.ErrorDescription())
}

func TestRatesResponse_TotalCharges_NotNumeric(t *testing.T) {
	body := `<RatingServiceSelectionResponse><RatedShipment><TotalCharges><MonetaryValue>N/A</MonetaryValue></TotalCharges></RatedShipment></RatingServiceSelectionResponse>`
	resp, err := ups.ParseRatesResponse(strings.NewReader(body), http.StatusOK)
	require.NoError(t, err)

	_, err = resp.TotalCharges()
	require.Error(t, err)
	assert.True(t, errors.Is(err, shipper.ErrMalformedResponse))
}

func TestRatesResponse_TotalCharges_FirstRatedShipment(t *testing.T) {
	body := `<RatingServiceSelectionResponse>
  <RatedShipment><TotalCharges><MonetaryValue> 10.00 </MonetaryValue></TotalCharges></RatedShipment>
  <RatedShipment><TotalCharges><MonetaryValue>99.99</MonetaryValue></TotalCharges></RatedShipment>
</RatingServiceSelectionResponse>`
	resp, err := ups.ParseRatesResponse(strings.NewReader(body), http.StatusOK)
	require.NoError(t, err)

	price, err := resp.TotalCharges()
	require.NoError(t, err)
	assert.Equal(t, 10.0, price)
	assert.Equal(t, "USD", resp.CurrencyCode())
}

func TestRatesResponse_TotalCharges_AuthenticationFailure(t *testing.T) {
	resp, err := ups.ParseRatesResponse(strings.NewReader(authFailureResponse), http.StatusOK)
	require.NoError(t, err)
	assert.Equal(t, "250003", resp.ErrorCode())

	_, err = resp.TotalCharges()
	require.Error(t, err)
	assert.True(t, errors.Is(err, shipper.ErrMissingField))
	assert.True(t, errors.Is(err, shipper.ErrAuthenticationFailed))
}

func TestRatesResponse_TotalCharges_OtherCarrierError(t *testing.T) {
	body := strings.Replace(authFailureResponse, "250003", "111210", 1)
	resp, err := ups.ParseRatesResponse(strings.NewReader(body), http.StatusOK)
	require.NoError(t, err)

	_, err = resp.TotalCharges()
	require.Error(t, err)
	assert.True(t, errors.Is(err, shipper.ErrMissingField))
	assert.False(t, errors.Is(err, shipper.ErrAuthenticationFailed))
}
