// Package chain flattens nested option-chain snapshots into per-expiration
// batches of appendable rows.
package chain

import (
	"sort"
	"strconv"
	"strings"

	"excavator/internal/broker"
	"excavator/internal/domain"
)

// Ticker derives the output ticker from a broker symbol: the leading index
// marker is stripped and everything after the first dot is dropped, so
// "$SPX.X" becomes "SPX".
func Ticker(symbol string) string {
	trimmed := strings.TrimPrefix(symbol, "$")
	if i := strings.IndexByte(trimmed, '.'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

// ExpDate extracts the date portion of an expiration key and removes the
// separators: "2024-03-15:7" becomes "20240315".
func ExpDate(expKey string) string {
	datePart := expKey
	if i := strings.IndexByte(expKey, ':'); i >= 0 {
		datePart = expKey[:i]
	}
	return strings.ReplaceAll(datePart, "-", "")
}

// Flatten converts one expiration's strike map into a batch of StrikeRecords.
// Every record carries the identical minute-truncated stamp so rows from one
// poll share an exact join key. Rows are ordered by ascending strike price.
// The upstream wraps each strike's detail in a one-element list; only the
// first element is read.
func Flatten(symbol, expKey string, strikes map[string][]broker.StrikeDetail, underlyingPrice, volatility float64, stamp domain.Minute) domain.RecordBatch {
	batch := domain.RecordBatch{
		Ticker:  Ticker(symbol),
		ExpDate: ExpDate(expKey),
		Stamp:   stamp,
		Records: make([]domain.StrikeRecord, 0, len(strikes)),
	}

	for _, key := range sortedStrikeKeys(strikes) {
		details := strikes[key]
		if len(details) == 0 {
			continue
		}
		d := details[0]

		putCall := "C"
		if d.PutCall == "PUT" {
			putCall = "P"
		}

		batch.Records = append(batch.Records, domain.StrikeRecord{
			Time:            stamp,
			Symbol:          symbol,
			UnderlyingPrice: underlyingPrice,
			Volatility:      volatility,
			Strike:          d.StrikePrice,
			PutCall:         putCall,
			Bid:             d.Bid,
			Ask:             d.Ask,
			Delta:           d.Delta,
			Gamma:           d.Gamma,
			Theta:           d.Theta,
			Vega:            d.Vega,
			Rho:             d.Rho,
		})
	}

	return batch
}

// sortedStrikeKeys orders the strike map keys numerically so output rows are
// deterministic regardless of map iteration order. Keys that fail to parse
// sort last, lexically.
func sortedStrikeKeys(strikes map[string][]broker.StrikeDetail) []string {
	keys := make([]string, 0, len(strikes))
	for k := range strikes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.ParseFloat(keys[i], 64)
		b, berr := strconv.ParseFloat(keys[j], 64)
		if aerr != nil || berr != nil {
			if (aerr == nil) != (berr == nil) {
				return aerr == nil
			}
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}
