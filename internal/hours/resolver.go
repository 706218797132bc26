// Package hours resolves the next actionable trading session for a
// market/product pair, rolling forward past days without a session and past
// sessions that have already ended.
package hours

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"excavator/internal/broker"
	"excavator/internal/domain"
)

// ErrNoUpcomingSession is returned when no trading session exists within the
// resolver's lookahead window. The day-rolling is deliberately bounded so a
// dead upstream cannot send the caller into an endless walk of the calendar.
var ErrNoUpcomingSession = errors.New("no upcoming trading session within lookahead window")

// Resolver finds trading sessions via the broker's market-hours endpoint.
// All time comparisons happen in the exchange's local timezone.
type Resolver struct {
	client       broker.MarketData
	market       string
	product      string
	maxLookahead int
	loc          *time.Location
	now          func() time.Time
	log          *slog.Logger
}

// NewResolver creates a Resolver checking at most maxLookahead calendar days
// ahead. loc must be the exchange's local timezone (US Eastern).
func NewResolver(client broker.MarketData, market, product string, maxLookahead int, loc *time.Location, log *slog.Logger) *Resolver {
	return &Resolver{
		client:       client,
		market:       market,
		product:      product,
		maxLookahead: maxLookahead,
		loc:          loc,
		now:          time.Now,
		log:          log.With("component", "hours"),
	}
}

// WithClock overrides the resolver's time source. Tests only.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve returns the first trading session on or after date whose end has
// not yet passed. Days with no session, failed lookups, and sessions that
// ended before "now" all advance the walk by one calendar day; after
// maxLookahead days ErrNoUpcomingSession is returned.
func (r *Resolver) Resolve(ctx context.Context, date time.Time) (domain.TradingSession, error) {
	now := r.now().In(r.loc)

	for i := 0; i < r.maxLookahead; i++ {
		if err := ctx.Err(); err != nil {
			return domain.TradingSession{}, err
		}

		day := date.AddDate(0, 0, i)
		sess, err := r.client.GetMarketHours(ctx, r.market, r.product, day)
		if err != nil {
			if !errors.Is(err, broker.ErrNoSession) {
				r.log.Warn("market hours lookup failed",
					"date", day.Format("2006-01-02"), "error", err)
			}
			continue
		}

		if sess.End.Before(now) {
			continue
		}
		return sess, nil
	}

	return domain.TradingSession{}, ErrNoUpcomingSession
}

// Next resolves the first actionable session starting from today.
func (r *Resolver) Next(ctx context.Context) (domain.TradingSession, error) {
	return r.Resolve(ctx, r.now().In(r.loc))
}
