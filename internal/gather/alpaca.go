package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"kepler/internal/domain"
	"kepler/internal/store"
	"kepler/internal/util"
)

// Compile-time interface check.
var _ Gatherer = (*DailyBarGatherer)(nil)

// DailyBarGatherer fetches daily OHLCV bars for an explicit symbol list via
// the Alpaca market-data API and writes them to the bar store. Fetches are
// batched, rate-limited, and retried; re-running over the same range is
// idempotent because the store merges by (symbol, timestamp).
type DailyBarGatherer struct {
	client     *marketdata.Client
	store      store.BarStore
	symbols    []string
	rng        DateRange
	batchSize  int
	maxWorkers int
	limiter    *util.RateLimiter
	log        *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer for the given symbols and
// range. batchSize is symbols per API call; rateLimitPerMin bounds API calls.
func NewDailyBarGatherer(apiKey, apiSecret, dataURL string, s store.BarStore, symbols []string, rng DateRange, batchSize, maxWorkers, rateLimitPerMin int) *DailyBarGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 200
	}

	return &DailyBarGatherer{
		client:     marketdata.NewClient(opts),
		store:      s,
		symbols:    symbols,
		rng:        rng,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
		limiter:    util.NewRateLimiter(rateLimitPerMin),
		log:        slog.Default().With("gatherer", "daily-bars"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "daily-bars" }

// Run fetches daily bars for every configured symbol and writes them to the
// store. Failed batches are logged and skipped; the first write error aborts.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	if len(g.symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}

	var batches [][]string
	for i := 0; i < len(g.symbols); i += g.batchSize {
		end := min(i+g.batchSize, len(g.symbols))
		batches = append(batches, g.symbols[i:end])
	}

	batchCh := make(chan []string, len(batches))
	for _, b := range batches {
		batchCh <- b
	}
	close(batchCh)

	var (
		wg       sync.WaitGroup
		fetched  atomic.Int64
		runStart = time.Now()
		writeMu  sync.Mutex
		writeErr error
	)

	g.log.Info("starting fetch",
		"symbols", len(g.symbols),
		"batches", len(batches),
		"start", g.rng.Start.Format("2006-01-02"),
		"end", g.rng.End.Format("2006-01-02"),
	)

	workers := min(g.maxWorkers, len(batches))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batchCh {
				if ctx.Err() != nil {
					return
				}
				if err := g.limiter.Wait(ctx); err != nil {
					return
				}

				var bars []domain.Bar
				err := util.Retry(ctx, 3, time.Second, func() error {
					var ferr error
					bars, ferr = g.fetchMultiBars(ctx, batch)
					return ferr
				})
				if err != nil {
					g.log.Error("batch fetch failed", "symbols", len(batch), "err", err)
					continue
				}
				if len(bars) == 0 {
					continue
				}

				if err := g.store.WriteBars(ctx, bars); err != nil {
					writeMu.Lock()
					if writeErr == nil {
						writeErr = fmt.Errorf("writing bars: %w", err)
					}
					writeMu.Unlock()
					return
				}
				fetched.Add(int64(len(bars)))
			}
		}()
	}

	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if writeErr != nil {
		return writeErr
	}

	g.log.Info("fetch complete",
		"bars", fetched.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// fetchMultiBars fetches daily bars for multiple symbols in a single API call.
func (g *DailyBarGatherer) fetchMultiBars(ctx context.Context, symbols []string) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     g.rng.Start,
		End:       g.rng.End,
		Feed:      "sip",
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}
