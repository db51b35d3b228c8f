package apperrors

import "errors"

// Data availability errors. The cache and refresher absorb these locally and only
// surface ErrNoData when nothing, not even a stale snapshot, can be served.
var (
	// ErrNoData indicates that neither a fresh nor a stale snapshot exists for a key.
	ErrNoData = errors.New("no data")

	// ErrSourceUnavailable indicates that no provider could produce data.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrFetchTimeout indicates an upstream fetch exceeded its deadline.
	// Treated exactly like ErrSourceUnavailable.
	ErrFetchTimeout = errors.New("fetch timeout")

	// ErrEmptyResult indicates a provider answered successfully with no bars.
	ErrEmptyResult = errors.New("empty result")

	// ErrNotConnected indicates the live provider has no working connection.
	ErrNotConnected = errors.New("provider not connected")
)

// Computation errors.
var (
	// ErrInsufficientData marks a series shorter than an indicator needs.
	// Indicators report this as a null value, never as an error.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrMalformedBar indicates a bar whose close is NaN or infinite.
	ErrMalformedBar = errors.New("malformed price bar")

	// ErrInvalidPeriod indicates a non-positive indicator period.
	ErrInvalidPeriod = errors.New("period must be positive")
)

// Validation errors.
var (
	ErrInvalidSymbol = errors.New("symbol is required")
	ErrUnknownKind   = errors.New("unknown resource kind")
)
