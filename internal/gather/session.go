package gather

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"excavator/internal/broker"
	"excavator/internal/chain"
	"excavator/internal/domain"
	"excavator/internal/hours"
	"excavator/internal/store"
)

// Compile-time interface check.
var _ Gatherer = (*SessionGatherer)(nil)

// Config holds the polling parameters for a SessionGatherer.
type Config struct {
	Symbol           string
	VolatilitySymbol string
	ContractType     domain.ContractType
	MinDTE           int
	MaxDTE           int
	Interval         time.Duration // polling cadence, wall-clock aligned
	OpenDelay        time.Duration // extra wait past the open for quotes to settle
}

// SessionGatherer alternates between two states: market closed (sleep until
// the next open, archiving the finished day on the way) and market open
// (poll the option chain once per interval). At most one fetch-and-flatten
// cycle is in flight at any time; everything runs on the caller's goroutine.
type SessionGatherer struct {
	cfg      Config
	client   broker.MarketData
	resolver *hours.Resolver
	csv      *store.CSVStore
	sinks    []store.RecordSink
	archiver *store.Archiver
	loc      *time.Location
	log      *slog.Logger

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error

	// Stamp of the last persisted poll. Guards against duplicate rows when
	// two iterations land inside the same minute.
	lastStamp domain.Minute
}

// NewSessionGatherer wires a gatherer from its collaborators. loc must be
// the exchange's local timezone; all session comparisons happen in it.
func NewSessionGatherer(cfg Config, client broker.MarketData, resolver *hours.Resolver, csv *store.CSVStore, sinks []store.RecordSink, archiver *store.Archiver, loc *time.Location, log *slog.Logger) *SessionGatherer {
	return &SessionGatherer{
		cfg:      cfg,
		client:   client,
		resolver: resolver,
		csv:      csv,
		sinks:    sinks,
		archiver: archiver,
		loc:      loc,
		log:      log.With("gatherer", "session"),
		now:      time.Now,
		wait:     sleepFor,
	}
}

// WithClock overrides the gatherer's time source and sleeper. Tests only.
func (g *SessionGatherer) WithClock(now func() time.Time, wait func(context.Context, time.Duration) error) *SessionGatherer {
	g.now = now
	g.wait = wait
	return g
}

// Name returns the gatherer identifier.
func (g *SessionGatherer) Name() string { return "session" }

// Run drives the polling loop until ctx is cancelled. It returns an error
// only on cancellation or when no upcoming session can be resolved.
func (g *SessionGatherer) Run(ctx context.Context) error {
	sess, err := g.resolver.Next(ctx)
	if err != nil {
		return fmt.Errorf("resolving first session: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := g.now().In(g.loc)
		if sess.Contains(now) {
			g.pollOnce(ctx, now)
			if err := g.sleepToNextTick(ctx); err != nil {
				return err
			}
			continue
		}

		sess, err = g.awaitOpen(ctx, sess, now)
		if err != nil {
			return err
		}
	}
}

// ---------------------------------------------------------------------------
// Closed market
// ---------------------------------------------------------------------------

// awaitOpen handles the closed-market state: archive the finished day when
// we are past its close, re-resolve the next session, and sleep until its
// start plus the open delay.
func (g *SessionGatherer) awaitOpen(ctx context.Context, sess domain.TradingSession, now time.Time) (domain.TradingSession, error) {
	if sess.Start.Before(now) {
		g.archiveDay(now)

		next, err := g.resolver.Next(ctx)
		if err != nil {
			return sess, fmt.Errorf("resolving next session: %w", err)
		}
		sess = next
		now = g.now().In(g.loc)
	}

	sleep := sess.Start.Sub(now) + g.cfg.OpenDelay
	g.log.Info("market closed, sleeping until open",
		"open", sess.Start.Format(time.RFC3339),
		"sleep", sleep.Round(time.Second).String())

	if err := g.wait(ctx, sleep); err != nil {
		return sess, err
	}
	return sess, nil
}

// archiveDay compresses the current day's output directory.
func (g *SessionGatherer) archiveDay(now time.Time) {
	dir := g.csv.DayDir(chain.Ticker(g.cfg.Symbol), now)
	if err := g.archiver.CompressDay(dir); err != nil {
		g.log.Error("after-hours archival failed", "dir", dir, "error", err)
	}
}

// ---------------------------------------------------------------------------
// Open market
// ---------------------------------------------------------------------------

// pollOnce runs one open-market iteration: fetch the chain and the
// volatility quote, flatten every put then every call expiration, and
// persist each batch. Any failure skips the iteration; nothing here may
// terminate the loop.
func (g *SessionGatherer) pollOnce(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("poll iteration panicked", "panic", r)
		}
	}()

	req := broker.NewChainRequest(g.cfg.Symbol, g.cfg.ContractType, g.cfg.MinDTE, g.cfg.MaxDTE, now)
	snapshot, err := g.client.GetOptionChain(ctx, req)
	if err != nil {
		g.log.Error("option chain fetch failed, skipping iteration", "error", err)
		return
	}
	if !snapshot.Complete() {
		g.log.Error("option chain missing expiration maps, skipping iteration")
		return
	}

	volatility, err := g.client.GetQuote(ctx, g.cfg.VolatilitySymbol)
	if err != nil {
		g.log.Error("volatility quote fetch failed, skipping iteration", "error", err)
		return
	}

	stamp := domain.MinuteOf(g.now().In(g.loc))
	if stamp.Equal(g.lastStamp.Time) {
		g.log.Warn("duplicate poll within one minute, skipping persist", "stamp", stamp.Format("15:04"))
		return
	}

	batches := 0
	for _, expMap := range []broker.ExpDateMap{snapshot.PutExpDateMap, snapshot.CallExpDateMap} {
		for _, key := range sortedExpKeys(expMap) {
			batch := chain.Flatten(g.cfg.Symbol, key, expMap[key], snapshot.UnderlyingPrice, volatility.LastPrice, stamp)
			g.persist(batch)
			batches++
		}
	}
	g.lastStamp = stamp

	g.log.Info("iteration complete", "stamp", stamp.Format("15:04"), "expirations", batches)
}

// persist hands the batch to every configured sink. A sink failure loses
// that sink's rows for this poll but never stops the loop.
func (g *SessionGatherer) persist(batch domain.RecordBatch) {
	for _, sink := range g.sinks {
		if err := sink.Append(batch); err != nil {
			g.log.Error("persisting batch failed",
				"file", batch.Ticker+"."+batch.ExpDate, "error", err)
		}
	}
}

// sleepToNextTick waits until the next wall-clock-aligned interval boundary
// so the cadence does not drift with iteration duration.
func (g *SessionGatherer) sleepToNextTick(ctx context.Context) error {
	now := g.now().In(g.loc)
	next := now.Truncate(time.Minute).Add(g.cfg.Interval)
	sleep := next.Sub(now)

	g.log.Info("sleeping until next tick",
		"next", next.Format("15:04"), "sleep", sleep.Round(time.Second).String())
	return g.wait(ctx, sleep)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func sortedExpKeys(m broker.ExpDateMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sleepFor blocks for d or until ctx is cancelled.
func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
