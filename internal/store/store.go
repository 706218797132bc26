// Package store persists flattened option-chain rows as flat per-expiration
// files and archives finished days.
package store

import (
	"excavator/internal/domain"
)

// RecordSink persists one expiration's batch of rows from one poll. Appends
// for a given expiration file are strictly ordered by poll time; each call
// opens and closes the file, so no handle outlives the call.
type RecordSink interface {
	// Append persists the batch's records under its (ticker, expiration
	// date) key for the day of the batch stamp.
	Append(batch domain.RecordBatch) error
}
