package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voltrade/revbot/internal/crypto"
	"github.com/voltrade/revbot/internal/domain"
	"github.com/voltrade/revbot/internal/feed"
	"github.com/voltrade/revbot/internal/notify"
	"github.com/voltrade/revbot/internal/platform/paper"
	"github.com/voltrade/revbot/internal/platform/vest"
	"github.com/voltrade/revbot/internal/position"
	"github.com/voltrade/revbot/internal/risk"
)

// instanceLockTTL bounds how long a crashed process can hold the trading
// lock before another instance may take over. The lock is not renewed; a
// deployment that outlives the TTL simply re-acquires on restart.
const instanceLockTTL = 24 * time.Hour

// paperStartingBalance is the simulated account balance for paper mode.
const paperStartingBalance = 1000.0

const (
	// paperTickInterval is how often paper mode refreshes its mark prices.
	paperTickInterval = time.Second

	// paperDriftPercent bounds the per-tick random walk applied when no
	// cached price is available for a symbol.
	paperDriftPercent = 0.15
)

// TradeMode connects to the live exchange, takes the single-instance
// trading lock, and runs the signal-driven execution loop.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("trade mode: load signing key: %w", err)
	}
	signer, err := crypto.NewSigner(keyHex, a.cfg.Exchange.ChainID)
	if err != nil {
		return fmt.Errorf("trade mode: create signer: %w", err)
	}
	account := signer.Address().Hex()

	// Exactly one process may trade an account at a time.
	unlock, err := deps.LockManager.Acquire(ctx, "trader:"+account, instanceLockTTL)
	if err != nil {
		return fmt.Errorf("trade mode: acquire instance lock: %w", err)
	}
	defer unlock()

	client := vest.NewClient(a.cfg.Exchange.BaseURL, a.cfg.Exchange.Asset, signer).
		WithRateLimiter(deps.RateLimiter)
	if err := client.Register(ctx); err != nil {
		return fmt.Errorf("trade mode: register session: %w", err)
	}

	stream := vest.NewStream(a.cfg.Exchange.WsURL, account, a.logger).
		WithTickers(a.cfg.Trading.Symbols, deps.PriceCache)
	if err := stream.Connect(ctx); err != nil {
		return fmt.Errorf("trade mode: connect order stream: %w", err)
	}

	gw := vest.NewGateway(client, stream)
	defer func() { _ = gw.Close() }()

	a.logger.InfoContext(ctx, "exchange session established",
		slog.String("account", account),
		slog.String("base_url", a.cfg.Exchange.BaseURL),
	)

	return a.runTrading(ctx, deps, gw)
}

// PaperMode runs the same execution loop against a simulated exchange. No
// keys, no lock, no real orders.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode",
		slog.Float64("starting_balance", paperStartingBalance),
	)

	gw := paper.NewGateway(paperStartingBalance, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.runPaperTicker(ctx, gw, deps.PriceCache)
	})
	g.Go(func() error {
		return a.runTrading(ctx, deps, gw)
	})
	return g.Wait()
}

// runPaperTicker drives the simulated mark prices that fill resting
// protective orders. Cached live prices win when present; otherwise each
// symbol's last mark takes a small random walk so paper positions still
// resolve without a live feed.
func (a *App) runPaperTicker(ctx context.Context, gw *paper.Gateway, prices domain.PriceCache) error {
	ticker := time.NewTicker(paperTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.tickPaperMarks(ctx, gw, prices)
		}
	}
}

// tickPaperMarks advances every configured symbol's mark price once.
func (a *App) tickPaperMarks(ctx context.Context, gw *paper.Gateway, prices domain.PriceCache) {
	for _, symbol := range a.cfg.Trading.Symbols {
		if prices != nil {
			if price, _, err := prices.GetPrice(ctx, symbol); err == nil && price > 0 {
				gw.SetMark(symbol, price)
				continue
			}
		}
		last, ok := gw.Mark(symbol)
		if !ok {
			continue // no position has seeded this symbol yet
		}
		step := (rand.Float64()*2 - 1) * paperDriftPercent / 100
		gw.SetMark(symbol, last*(1+step))
	}
}

// runTrading builds the lifecycle manager and starts the shared goroutines:
// the manager loop, the signal feed, the fill pump, and the daily archiver.
func (a *App) runTrading(ctx context.Context, deps *Dependencies, gw domain.OrderGateway) error {
	params, err := risk.NewParams(
		a.cfg.Risk.RiskPercent,
		a.cfg.Risk.Leverage,
		a.cfg.Risk.TPPercent,
		a.cfg.Risk.SLPercent,
	)
	if err != nil {
		return fmt.Errorf("run trading: risk params: %w", err)
	}
	window, err := risk.NewWindow(
		a.cfg.Trading.WindowEnabled,
		a.cfg.Trading.WindowStart,
		a.cfg.Trading.WindowEnd,
	)
	if err != nil {
		return fmt.Errorf("run trading: trading window: %w", err)
	}

	manager := position.NewManager(
		gw,
		position.NewStore(),
		params,
		window,
		notify.NewTradeNotifier(deps.Notifier, a.logger),
		position.Config{
			Symbols:           a.cfg.Trading.Symbols,
			MaxDailyTrades:    a.cfg.Trading.MaxDailyTrades,
			MaxOpenPositions:  a.cfg.Trading.MaxOpenPositions,
			MinBalance:        a.cfg.Trading.MinBalance,
			SlippagePercent:   a.cfg.Trading.SlippagePercent,
			ProtectiveRetries: a.cfg.Trading.ProtectiveRetries,
			ProtectiveBackoff: a.cfg.Trading.ProtectiveBackoff.Duration,
			EntrySettleDelay:  a.cfg.Trading.EntrySettleDelay.Duration,
			ConfirmTimeout:    a.cfg.Trading.ConfirmTimeout.Duration,
			CallTimeout:       a.cfg.Trading.CallTimeout.Duration,
		},
		a.logger,
	).WithPriceCache(deps.PriceCache)
	if deps.TradeStore != nil {
		manager.WithStores(deps.TradeStore, deps.AuditStore)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return manager.Run(ctx)
	})

	signalFeed := feed.NewSignalFeed(deps.SignalBus, a.cfg.Trading.SignalChannel, manager, a.logger)
	g.Go(func() error {
		return signalFeed.Run(ctx)
	})

	// Fill pump: move exchange stream events into the manager's mailbox.
	g.Go(func() error {
		fills := gw.Fills()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-fills:
				if !ok {
					return fmt.Errorf("run trading: fill stream closed")
				}
				manager.OnFill(ev)
			}
		}
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiver(ctx, deps.Archiver)
		})
	}

	return g.Wait()
}

// runArchiver exports the previous UTC day's closed trades to object storage
// shortly after each midnight rollover. Failures are logged and retried the
// next day; the journal rows are never deleted.
func (a *App) runArchiver(ctx context.Context, archiver domain.Archiver) error {
	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24*time.Hour + time.Minute)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		day := time.Now().UTC().AddDate(0, 0, -1)
		count, err := archiver.ArchiveDay(ctx, day)
		if err != nil {
			a.logger.WarnContext(ctx, "daily archive failed",
				slog.Time("day", day),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.InfoContext(ctx, "daily archive complete",
			slog.Time("day", day),
			slog.Int("trades", count),
		)
	}
}
