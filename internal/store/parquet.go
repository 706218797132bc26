package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"excavator/internal/domain"
)

// Compile-time interface check.
var _ RecordSink = (*ParquetMirror)(nil)

// ParquetMirror mirrors each expiration's rows into a sibling Parquet file
// under the same day-directory layout as the CSV store. Because Parquet
// files cannot be appended in place, each Append reads the existing rows,
// merges the new batch, and rewrites the file. The merge dedupes on
// (time, strike, put/call), so the mirror is idempotent by value.
type ParquetMirror struct {
	ResultsDir string
}

// NewParquetMirror creates a ParquetMirror rooted at the given results
// directory.
func NewParquetMirror(resultsDir string) *ParquetMirror {
	return &ParquetMirror{ResultsDir: resultsDir}
}

// strikeRow is the Parquet schema for one flattened option-chain row.
type strikeRow struct {
	Time            int64   `parquet:"time,timestamp(millisecond)"` // Unix ms
	Symbol          string  `parquet:"symbol"`
	UnderlyingPrice float64 `parquet:"underlying_price"`
	Volatility      float64 `parquet:"volatility"`
	Strike          float64 `parquet:"strike"`
	PutCall         string  `parquet:"put_call"`
	Bid             float64 `parquet:"bid"`
	Ask             float64 `parquet:"ask"`
	Delta           float64 `parquet:"delta"`
	Gamma           float64 `parquet:"gamma"`
	Theta           float64 `parquet:"theta"`
	Vega            float64 `parquet:"vega"`
	Rho             float64 `parquet:"rho"`
}

// Append merges the batch into the expiration's Parquet file.
func (s *ParquetMirror) Append(batch domain.RecordBatch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	day := batch.Stamp.Time
	dir := filepath.Join(s.ResultsDir, batch.Ticker, day.Format("2006"), day.Format("20060102"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating day dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s.parquet", batch.Ticker, batch.ExpDate))

	incoming := make([]strikeRow, 0, len(batch.Records))
	for _, r := range batch.Records {
		incoming = append(incoming, strikeRow{
			Time:            r.Time.UnixMilli(),
			Symbol:          r.Symbol,
			UnderlyingPrice: r.UnderlyingPrice,
			Volatility:      r.Volatility,
			Strike:          r.Strike,
			PutCall:         r.PutCall,
			Bid:             r.Bid,
			Ask:             r.Ask,
			Delta:           r.Delta,
			Gamma:           r.Gamma,
			Theta:           r.Theta,
			Vega:            r.Vega,
			Rho:             r.Rho,
		})
	}

	// Read existing rows to merge; a missing file merges with nothing.
	existing, _ := parquet.ReadFile[strikeRow](path)
	merged := mergeStrikeRows(existing, incoming)

	if err := parquet.WriteFile(path, merged); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// mergeStrikeRows deduplicates rows by (time, strike, put/call), preferring
// new rows over existing ones. Results are sorted by time, then strike.
func mergeStrikeRows(existing, incoming []strikeRow) []strikeRow {
	type key struct {
		ts      int64
		strike  float64
		putCall string
	}
	seen := make(map[key]strikeRow, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Time, r.Strike, r.PutCall}] = r
	}
	for _, r := range incoming {
		seen[key{r.Time, r.Strike, r.PutCall}] = r
	}

	merged := make([]strikeRow, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Time != merged[j].Time {
			return merged[i].Time < merged[j].Time
		}
		if merged[i].Strike != merged[j].Strike {
			return merged[i].Strike < merged[j].Strike
		}
		return merged[i].PutCall < merged[j].PutCall
	})
	return merged
}
