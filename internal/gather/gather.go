// Package gather drives the market-session-aware polling loop: sleep while
// the market is closed, poll the option chain at a fixed cadence while it is
// open, and archive the day's files after the close.
package gather

import (
	"context"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run starts the data gathering process. It blocks until ctx is cancelled.
	Run(ctx context.Context) error
}
