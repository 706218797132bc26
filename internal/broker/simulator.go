package broker

import (
	"context"
	"fmt"
	"time"

	"excavator/internal/domain"
)

// Compile-time interface check.
var _ MarketData = (*SimulatorClient)(nil)

// SimulatorClient implements MarketData with scripted in-memory responses
// for tests and dry runs. It makes no external calls. Zero-value fields
// yield empty results; the optional Fn hooks override the canned data.
type SimulatorClient struct {
	Chain    *ChainResponse
	ChainErr error
	Sessions map[string]domain.TradingSession // keyed by date "2006-01-02"
	Quotes   map[string]float64

	// Optional overrides.
	ChainFn func(req ChainRequest) (*ChainResponse, error)
	HoursFn func(market, product string, date time.Time) (domain.TradingSession, error)
	QuoteFn func(symbol string) (domain.Quote, error)

	// Call counters for assertions.
	ChainCalls int
	HoursCalls int
	QuoteCalls int
}

// NewSimulatorClient creates an empty simulator.
func NewSimulatorClient() *SimulatorClient {
	return &SimulatorClient{
		Sessions: make(map[string]domain.TradingSession),
		Quotes:   make(map[string]float64),
	}
}

// Name returns "simulator".
func (s *SimulatorClient) Name() string { return "simulator" }

// GetOptionChain returns the scripted chain response.
func (s *SimulatorClient) GetOptionChain(_ context.Context, req ChainRequest) (*ChainResponse, error) {
	s.ChainCalls++
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.ChainFn != nil {
		return s.ChainFn(req)
	}
	if s.ChainErr != nil {
		return nil, s.ChainErr
	}
	return s.Chain, nil
}

// GetMarketHours returns the scripted session for the date, or ErrNoSession.
func (s *SimulatorClient) GetMarketHours(_ context.Context, market, product string, date time.Time) (domain.TradingSession, error) {
	s.HoursCalls++
	if s.HoursFn != nil {
		return s.HoursFn(market, product, date)
	}
	if sess, ok := s.Sessions[date.Format("2006-01-02")]; ok {
		return sess, nil
	}
	return domain.TradingSession{}, ErrNoSession
}

// GetQuote returns the scripted last price for the symbol.
func (s *SimulatorClient) GetQuote(_ context.Context, symbol string) (domain.Quote, error) {
	s.QuoteCalls++
	if s.QuoteFn != nil {
		return s.QuoteFn(symbol)
	}
	price, ok := s.Quotes[symbol]
	if !ok {
		return domain.Quote{}, &APIError{Kind: KindMalformed, Op: "getQuote", Err: fmt.Errorf("no quote for %s", symbol)}
	}
	return domain.Quote{Symbol: symbol, LastPrice: price}, nil
}
