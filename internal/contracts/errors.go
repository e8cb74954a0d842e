package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Match with errors.Is / errors.As.
var (
	// ErrInvalidParameter: rejected before any gateway call, never retried
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoDataAvailable: the snapshot fallback window was exhausted
	ErrNoDataAvailable = errors.New("no market data available")

	// ErrGatewayFailure: a single upstream call failed (recoverable per date)
	ErrGatewayFailure = errors.New("market data gateway failure")

	// ErrPriceLookup: a ticker or index price series could not be read
	ErrPriceLookup = errors.New("price lookup failed")
)

// NoDataError carries the market and the searched window size
type NoDataError struct {
	Market     Market
	WindowDays int
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no market data available for %s in last %d days", e.Market, e.WindowDays)
}

func (e *NoDataError) Unwrap() error {
	return ErrNoDataAvailable
}

func invalidParameter(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
