package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownProduct is returned when a request names a product that is not in
// the product registry.
var ErrUnknownProduct = errors.New("invalid product specified")

// ConfigError reports missing or invalid service configuration, such as absent
// catalog credentials. It is fatal for the run and never retried.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// NotFoundError reports an unknown country code.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("country with ISO code '%s' not found.", e.Code)
}

// EmptyReason identifies which pipeline stage ran out of data.
type EmptyReason int

const (
	NoProducts EmptyReason = iota
	NoObservations
	NoneInBounds
	NoneInCountry
)

func (r EmptyReason) String() string {
	switch r {
	case NoProducts:
		return "no_products"
	case NoObservations:
		return "no_observations"
	case NoneInBounds:
		return "none_in_bounds"
	case NoneInCountry:
		return "none_in_country"
	default:
		return "unknown"
	}
}

// EmptyResultError is a user-facing "no data" outcome. Each reason has its own
// message so callers can tell the stages apart.
type EmptyResultError struct {
	Reason  EmptyReason
	Country string
}

func (e *EmptyResultError) Error() string {
	switch e.Reason {
	case NoProducts:
		return "no satellite products found for this period."
	case NoObservations:
		return "no valid lightning data could be extracted."
	case NoneInBounds:
		return fmt.Sprintf("no flashes within the bounding box of %s.", e.Country)
	case NoneInCountry:
		return fmt.Sprintf("no lightning strikes found directly over %s.", e.Country)
	default:
		return "no data."
	}
}

// ProductError reports a failure to download, extract or decode one catalog
// product. The fetcher recovers from it: the product contributes no flashes.
type ProductError struct {
	Product string
	Stage   string // "download", "extract", "decode"
	Err     error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product %s: %s: %v", e.Product, e.Stage, e.Err)
}

func (e *ProductError) Unwrap() error { return e.Err }

// Outcome classifies a terminal error for logs, metrics and the run journal.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var (
		cfgErr   *ConfigError
		nfErr    *NotFoundError
		emptyErr *EmptyResultError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &cfgErr):
		return "config_error"
	case errors.As(err, &nfErr):
		return "not_found"
	case errors.As(err, &emptyErr):
		return "empty_" + emptyErr.Reason.String()
	default:
		return "unexpected_error"
	}
}
