package shipper

import (
	"errors"
	"fmt"
)

// Error codes shared by carrier clients.
const (
	CodeTransport         = "TRANSPORT_ERROR"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeMissingField      = "MISSING_FIELD"
)

// ShipperError represents an error from a shipping carrier.
type ShipperError struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ShipperError.
func (e *ShipperError) Is(target error) bool {
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new ShipperError.
func NewShipperError(carrier, code, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// CarrierError attributes an error to the carrier it came from.
type CarrierError struct {
	Carrier string
	Err     error
}

func (e *CarrierError) Error() string {
	return e.Carrier + ": " + e.Err.Error()
}

func (e *CarrierError) Unwrap() error {
	return e.Err
}

// Code-matched sentinels. Any ShipperError carrying the same code satisfies
// errors.Is against these, regardless of carrier or message.
var (
	// ErrTransport indicates the HTTP exchange failed (connection, DNS, TLS or timeout).
	ErrTransport = NewShipperError("", CodeTransport, "transport failure")

	// ErrMalformedResponse indicates the carrier response could not be parsed.
	ErrMalformedResponse = NewShipperError("", CodeMalformedResponse, "malformed response")

	// ErrMissingField indicates an expected field is absent from a well-formed response.
	ErrMissingField = NewShipperError("", CodeMissingField, "missing field")
)

// Sentinel errors for common shipping scenarios.
var (
	// ErrInvalidAddress indicates the address is invalid or incomplete.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrAuthenticationFailed indicates carrier authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidPackage indicates package dimensions or weight are invalid.
	ErrInvalidPackage = errors.New("invalid package")

	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = errors.New("carrier not found")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}
