package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"excavator/internal/domain"
	"excavator/internal/util"
)

// Compile-time interface check.
var _ MarketData = (*SchwabClient)(nil)

// fetchAttempts bounds the retries per upstream call. After the final
// failure the tagged error is returned and the caller skips the iteration.
const fetchAttempts = 3

// sessionTimeLayout is the timestamp format of sessionHours windows.
const sessionTimeLayout = "2006-01-02T15:04:05-07:00"

// regularSession is the sessionHours key for the regular trading session.
const regularSession = "regularMarket"

// SchwabClient implements MarketData against a Schwab/TDA-style market-data
// REST API using bearer-token authentication.
type SchwabClient struct {
	http *resty.Client
	loc  *time.Location
	log  *slog.Logger
}

// NewSchwabClient creates a client for the API rooted at baseURL. All
// session timestamps are returned in loc (the exchange's local timezone).
func NewSchwabClient(baseURL, accessToken string, timeout time.Duration, loc *time.Location, log *slog.Logger) *SchwabClient {
	httpc := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(accessToken).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &SchwabClient{
		http: httpc,
		loc:  loc,
		log:  log.With("client", "schwab"),
	}
}

// Name returns "schwab".
func (c *SchwabClient) Name() string { return "schwab" }

// GetOptionChain fetches the option chain snapshot for the request. An
// invalid request short-circuits before any network call. A response whose
// status field is "FAILED" counts as a failed attempt and is retried.
func (c *SchwabClient) GetOptionChain(ctx context.Context, req ChainRequest) (*ChainResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := map[string]string{
		"symbol":        req.Symbol,
		"contractType":  string(req.ContractType),
		"includeQuotes": boolParam(req.IncludeQuotes),
		"range":         req.Range,
		"fromDate":      req.FromDate.Format("2006-01-02"),
		"toDate":        req.ToDate.Format("2006-01-02"),
	}

	var out ChainResponse
	err := c.withRetry(ctx, "getOptionChain", func() error {
		out = ChainResponse{}
		if err := c.get(ctx, "getOptionChain", "/chains", params, &out); err != nil {
			return err
		}
		if out.Status == "FAILED" {
			return &APIError{Kind: KindMalformed, Op: "getOptionChain", Err: fmt.Errorf("upstream status FAILED")}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMarketHours returns the regular trading session for a market/product
// pair on the given date. The session is built in one step from the parsed
// response; ErrNoSession is returned when the product has no session hours.
func (c *SchwabClient) GetMarketHours(ctx context.Context, market, product string, date time.Time) (domain.TradingSession, error) {
	params := map[string]string{
		"markets": market,
		"date":    date.Format("2006-01-02"),
	}

	var session domain.TradingSession
	err := c.withRetry(ctx, "getMarketHours", func() error {
		var raw hoursResponse
		if err := c.get(ctx, "getMarketHours", "/markets", params, &raw); err != nil {
			return err
		}
		s, err := c.sessionFrom(raw, product)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return domain.TradingSession{}, err
	}
	return session, nil
}

// GetQuote returns the last price for one instrument. A response missing the
// requested symbol counts as a malformed attempt and is retried.
func (c *SchwabClient) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	params := map[string]string{"symbols": symbol}

	var quote domain.Quote
	err := c.withRetry(ctx, "getQuote", func() error {
		var raw map[string]quoteEntry
		if err := c.get(ctx, "getQuote", "/quotes", params, &raw); err != nil {
			return err
		}
		entry, ok := raw[symbol]
		if !ok {
			return &APIError{Kind: KindMalformed, Op: "getQuote", Err: fmt.Errorf("symbol %s missing from response", symbol)}
		}
		quote = domain.Quote{Symbol: symbol, LastPrice: entry.LastPrice}
		return nil
	})
	if err != nil {
		return domain.Quote{}, err
	}
	return quote, nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// withRetry runs fn up to fetchAttempts times, logging each failed attempt
// with its number and operation. Non-retryable errors (auth, no-session)
// return immediately.
func (c *SchwabClient) withRetry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	return util.RetryIf(ctx, fetchAttempts, 0, Retryable, func() error {
		attempt++
		err := fn()
		if err != nil {
			c.log.Error("upstream call failed", "op", op, "attempt", attempt, "error", err)
		}
		return err
	})
}

// get performs one GET attempt and decodes the body into out, classifying
// every failure mode into a tagged *APIError.
func (c *SchwabClient) get(ctx context.Context, op, path string, params map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return &APIError{Kind: KindNetwork, Op: op, Err: err}
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &APIError{Kind: KindAuth, Op: op, Err: fmt.Errorf("status %s", resp.Status())}
	case resp.IsError():
		return &APIError{Kind: KindNetwork, Op: op, Err: fmt.Errorf("status %s", resp.Status())}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &APIError{Kind: KindMalformed, Op: op, Err: err}
	}
	return nil
}

// sessionFrom extracts the regular-hours session for product from a parsed
// hours response, converting timestamps to the client's location.
func (c *SchwabClient) sessionFrom(raw hoursResponse, product string) (domain.TradingSession, error) {
	for _, products := range raw {
		ph, ok := products[product]
		if !ok {
			continue
		}

		windows := ph.SessionHours[regularSession]
		if len(windows) == 0 {
			return domain.TradingSession{}, ErrNoSession
		}

		start, err := time.Parse(sessionTimeLayout, windows[0].Start)
		if err != nil {
			return domain.TradingSession{}, &APIError{Kind: KindMalformed, Op: "getMarketHours", Err: fmt.Errorf("parsing session start: %w", err)}
		}
		end, err := time.Parse(sessionTimeLayout, windows[0].End)
		if err != nil {
			return domain.TradingSession{}, &APIError{Kind: KindMalformed, Op: "getMarketHours", Err: fmt.Errorf("parsing session end: %w", err)}
		}

		return domain.TradingSession{
			Start:  start.In(c.loc),
			End:    end.In(c.loc),
			IsOpen: ph.IsOpen,
		}, nil
	}
	return domain.TradingSession{}, ErrNoSession
}

func boolParam(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
