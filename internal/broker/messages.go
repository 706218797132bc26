package broker

import (
	"fmt"
	"time"

	"excavator/internal/domain"
)

// ---------------------------------------------------------------------------
// Option chain request
// ---------------------------------------------------------------------------

// ChainRequest describes one option-chain fetch. Built fresh each poll from
// the current date and the configured days-to-expiration window.
type ChainRequest struct {
	Symbol        string
	ContractType  domain.ContractType
	IncludeQuotes bool
	Range         string // strike range filter, e.g. "ALL", "ITM", "OTM"
	FromDate      time.Time
	ToDate        time.Time
}

// NewChainRequest builds a request covering expirations from minDTE to
// maxDTE calendar days after today.
func NewChainRequest(symbol string, contractType domain.ContractType, minDTE, maxDTE int, today time.Time) ChainRequest {
	return ChainRequest{
		Symbol:       symbol,
		ContractType: contractType,
		Range:        "ALL",
		FromDate:     today.AddDate(0, 0, minDTE),
		ToDate:       today.AddDate(0, 0, maxDTE),
	}
}

// Validate checks the request before any network call is made.
func (r ChainRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("chain request: symbol is empty")
	}
	if !r.ContractType.Valid() {
		return fmt.Errorf("chain request: contract type %q is invalid", r.ContractType)
	}
	if r.ToDate.Before(r.FromDate) {
		return fmt.Errorf("chain request: fromDate %s is after toDate %s",
			r.FromDate.Format("2006-01-02"), r.ToDate.Format("2006-01-02"))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Option chain response
// ---------------------------------------------------------------------------

// StrikeDetail is one option contract as returned by the upstream. The
// upstream wraps each detail in a one-element list under its strike price.
type StrikeDetail struct {
	PutCall     string  `json:"putCall"`
	StrikePrice float64 `json:"strikePrice"`
	Bid         float64 `json:"bid"`
	Ask         float64 `json:"ask"`
	Delta       float64 `json:"delta"`
	Gamma       float64 `json:"gamma"`
	Theta       float64 `json:"theta"`
	Vega        float64 `json:"vega"`
	Rho         float64 `json:"rho"`
}

// ExpDateMap groups contracts by expiration key ("YYYY-MM-DD:daysToExp"),
// then by strike price string, each holding a one-element detail list.
type ExpDateMap map[string]map[string][]StrikeDetail

// ChainResponse is the raw option chain snapshot. It is transient: consumed
// by the flattener immediately after the fetch, never stored.
type ChainResponse struct {
	Status          string     `json:"status"`
	Symbol          string     `json:"symbol"`
	UnderlyingPrice float64    `json:"underlyingPrice"`
	PutExpDateMap   ExpDateMap `json:"putExpDateMap"`
	CallExpDateMap  ExpDateMap `json:"callExpDateMap"`
}

// Complete reports whether the snapshot carries both expiration maps. A
// snapshot failing this check causes the poll iteration to be skipped.
func (c *ChainResponse) Complete() bool {
	return c != nil && c.PutExpDateMap != nil && c.CallExpDateMap != nil
}

// ---------------------------------------------------------------------------
// Market hours and quote wire shapes
// ---------------------------------------------------------------------------

// sessionWindow is one start/end pair inside sessionHours.
type sessionWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// productHours is the per-product block of the market hours response.
type productHours struct {
	IsOpen       bool                       `json:"isOpen"`
	SessionHours map[string][]sessionWindow `json:"sessionHours"`
}

// hoursResponse maps market type -> product code -> hours.
type hoursResponse map[string]map[string]productHours

// quoteEntry is the per-instrument block of the quotes response.
type quoteEntry struct {
	LastPrice float64 `json:"lastPrice"`
}
