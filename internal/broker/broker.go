// Package broker defines the MarketData interface and provides a
// Schwab-style REST implementation for option chains, market hours, and
// quotes.
package broker

import (
	"context"
	"time"

	"excavator/internal/domain"
)

// MarketData abstracts the upstream market-data API. All calls are
// synchronous request/response; implementations apply their own bounded
// retry and return a tagged *APIError on failure.
type MarketData interface {
	// Name returns the client identifier (e.g. "schwab", "simulator").
	Name() string

	// GetOptionChain fetches a full option chain snapshot for the request's
	// symbol and date range.
	GetOptionChain(ctx context.Context, req ChainRequest) (*ChainResponse, error)

	// GetMarketHours returns the regular-hours trading session covering the
	// given date for a market/product pair. ErrNoSession is returned when
	// the upstream has no session for that date.
	GetMarketHours(ctx context.Context, market, product string, date time.Time) (domain.TradingSession, error)

	// GetQuote returns the last price for a single instrument.
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
}
