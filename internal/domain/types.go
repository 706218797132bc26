// Package domain defines the core value types shared across the excavator:
// trading sessions, option chain rows, and quotes.
package domain

import (
	"fmt"
	"time"
)

// ContractType selects which side of the option chain to fetch.
type ContractType string

const (
	ContractPut  ContractType = "PUT"
	ContractCall ContractType = "CALL"
	ContractAll  ContractType = "ALL"
)

// Valid reports whether the contract type is one of PUT, CALL, or ALL.
func (c ContractType) Valid() bool {
	switch c {
	case ContractPut, ContractCall, ContractAll:
		return true
	}
	return false
}

// TradingSession is the regular-hours open/close window of one trading day
// for one market/product pair. It is immutable once returned by the hours
// resolver. Start and End are in the exchange's local timezone (US Eastern);
// comparisons against "now" must be made in the same zone.
type TradingSession struct {
	Start  time.Time
	End    time.Time
	IsOpen bool
}

// Contains reports whether t falls inside the session window, inclusive.
func (s TradingSession) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// Quote is a last-price reading for a single instrument.
type Quote struct {
	Symbol    string
	LastPrice float64
}

// Minute is a timestamp truncated to the minute. All rows flattened from one
// poll carry the identical Minute so they share an exact join key. It
// serialises as RFC 3339 in CSV output.
type Minute struct {
	time.Time
}

// MinuteOf truncates t to the minute, zeroing seconds and sub-second
// components while preserving the location.
func MinuteOf(t time.Time) Minute {
	return Minute{time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())}
}

// MarshalCSV implements the gocsv field marshaler.
func (m Minute) MarshalCSV() (string, error) {
	return m.Format(time.RFC3339), nil
}

// UnmarshalCSV implements the gocsv field unmarshaler.
func (m *Minute) UnmarshalCSV(s string) error {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parsing minute stamp %q: %w", s, err)
	}
	m.Time = t
	return nil
}

// StrikeRecord is one flattened option-chain row: a single strike of a single
// expiration observed at one poll. It is the unit of persistence, appended to
// the file keyed by (ticker, expiration date).
type StrikeRecord struct {
	Time            Minute  `csv:"Time"`
	Symbol          string  `csv:"Symbol"`
	UnderlyingPrice float64 `csv:"Underlying price"`
	Volatility      float64 `csv:"Volatility"`
	Strike          float64 `csv:"Strike"`
	PutCall         string  `csv:"PutCall"`
	Bid             float64 `csv:"Bid"`
	Ask             float64 `csv:"Ask"`
	Delta           float64 `csv:"Delta"`
	Gamma           float64 `csv:"Gamma"`
	Theta           float64 `csv:"Theta"`
	Vega            float64 `csv:"Vega"`
	Rho             float64 `csv:"Rho"`
}

// RecordBatch is the output of flattening one expiration during one poll.
// Every record carries the batch's Stamp.
type RecordBatch struct {
	Ticker  string // output ticker, e.g. "SPX" for symbol "$SPX.X"
	ExpDate string // expiration date portion, e.g. "20240315"
	Stamp   Minute
	Records []StrikeRecord
}
