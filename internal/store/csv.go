package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"excavator/internal/domain"
)

// Compile-time interface check.
var _ RecordSink = (*CSVStore)(nil)

// CSVStore appends flattened rows to daily CSV files. Layout:
//
//	<ResultsDir>/<ticker>/<YYYY>/<YYYYMMDD>/<ticker>.<expDate>.csv
//
// The header row is written only when the file is created. Appends are
// at-least-once: re-running the same minute's poll across process restarts
// appends duplicate rows, which downstream consumers dedupe on
// (Time, Strike, PutCall).
type CSVStore struct {
	ResultsDir string
}

// NewCSVStore creates a CSVStore rooted at the given results directory.
func NewCSVStore(resultsDir string) *CSVStore {
	return &CSVStore{ResultsDir: resultsDir}
}

// Append writes the batch's rows to its expiration file, creating the day
// directory and header as needed.
func (s *CSVStore) Append(batch domain.RecordBatch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	dir := s.DayDir(batch.Ticker, batch.Stamp.Time)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating day dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s.%s.csv", batch.Ticker, batch.ExpDate))
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if writeHeader {
		err = gocsv.Marshal(&batch.Records, f)
	} else {
		err = gocsv.MarshalWithoutHeaders(&batch.Records, f)
	}
	if err != nil {
		return fmt.Errorf("appending %d rows to %s: %w", len(batch.Records), path, err)
	}
	return nil
}

// DayDir returns the output directory for a ticker on the given day.
func (s *CSVStore) DayDir(ticker string, day time.Time) string {
	return filepath.Join(s.ResultsDir, ticker, day.Format("2006"), day.Format("20060102"))
}
