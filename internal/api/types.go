package api

import "errors"

// Sweep and record errors.
var (
	ErrMalformedResponse = errors.New("malformed listings response")
	ErrTooManyPages      = errors.New("listings sweep exceeded page limit")
	ErrRecordShape       = errors.New("listing missing required field")
)

// RawListing is one upstream listing record exactly as received.
type RawListing []byte

// Status is the status envelope CoinMarketCap attaches to every response.
type Status struct {
	Timestamp    string
	ErrorCode    int64
	ErrorMessage string
	CreditCount  int64
}

// ListingsPage from GET /v1/cryptocurrency/listings/latest
type ListingsPage struct {
	Status   Status
	Listings []RawListing
}
