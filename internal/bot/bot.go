// Package bot runs the polling trade loop: one cycle per interval, each
// cycle either manages the open position or looks for a new entry. A
// collaborator failure abandons the cycle with no local state committed;
// the next cycle starts from a clean read of the world.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AROMARkom/oil/internal/broker"
	"github.com/AROMARkom/oil/internal/config"
	"github.com/AROMARkom/oil/internal/gate"
	"github.com/AROMARkom/oil/internal/risk"
	"github.com/AROMARkom/oil/internal/strategy"
	"github.com/AROMARkom/oil/internal/tradingview"
	"github.com/AROMARkom/oil/internal/types"
)

// recentCandles is how many closed candles each cycle fetches; only the
// ones newer than the last seen open time are fed to the strategy.
const recentCandles = 5

type Bot struct {
	cfg  *config.Config
	data broker.MarketData
	exec broker.Execution

	signals   *strategy.SignalGenerator
	sizer     *risk.Manager
	drawdown  *risk.DrawdownTracker
	lifecycle *risk.LifecycleManager
	gates     *gate.Evaluator

	lastCandle time.Time
	nowFn      func() time.Time

	statsAt        time.Time
	cyclesRun      int
	signalsSeen    int
	entriesPlaced  int
	entriesBlocked int

	entries []tradingview.Entry
}

func New(cfg *config.Config, data broker.MarketData, exec broker.Execution) *Bot {
	v := cfg.Strategy.Volatility
	signals := strategy.NewSignalGenerator(strategy.SignalConfig{
		Volatility: strategy.VolatilityConfig{
			ATRPeriod:            v.ATRPeriod,
			CompressionPeriod:    v.CompressionPeriod,
			CompressionThreshold: v.CompressionThreshold,
			ExpansionMultiplier:  v.ExpansionMultiplier,
			ExpansionMaxAge:      v.ExpansionMaxAge,
		},
		Lookback:       cfg.Strategy.Breakout.Lookback,
		BreakoutMinATR: cfg.Strategy.Breakout.MinBreakoutATR,
		MomentumPeriod: cfg.Strategy.Momentum.Period,
	})

	sessions := make([]gate.SessionWindow, 0, len(cfg.Sessions))
	for _, s := range cfg.Sessions {
		sessions = append(sessions, gate.SessionWindow{
			Name: s.Name, StartHour: s.StartHour, EndHour: s.EndHour,
		})
	}
	blackouts := make([]gate.BlackoutWindow, 0, len(cfg.NewsBlackouts))
	for _, b := range cfg.NewsBlackouts {
		blackouts = append(blackouts, gate.BlackoutWindow{
			Name:    b.Name,
			Weekday: time.Weekday(b.Weekday),
			Hour:    b.Hour,
			Minute:  b.Minute,
			Before:  time.Duration(b.BeforeMinutes) * time.Minute,
			After:   time.Duration(b.AfterMinutes) * time.Minute,
		})
	}

	levels := make([]types.ProfitLevel, 0, len(cfg.TakeProfit.Levels))
	for _, l := range cfg.TakeProfit.Levels {
		levels = append(levels, types.ProfitLevel{
			TargetATRMultiple: l.TargetATRMultiple,
			CloseFraction:     l.CloseFraction,
		})
	}

	return &Bot{
		cfg:      cfg,
		data:     data,
		exec:     exec,
		signals:  signals,
		sizer:    risk.NewManager(cfg.Risk.MaxRiskPerTrade, cfg.Risk.StopLossATRMultiple),
		drawdown: risk.NewDrawdownTracker(cfg.Risk.MaxDailyDrawdown, cfg.Risk.MaxTotalDrawdown),
		lifecycle: risk.NewLifecycleManager(
			levels,
			cfg.TakeProfit.Trailing.ActivationATRMultiple,
			cfg.TakeProfit.Trailing.DistanceATRMultiple,
			exec,
		),
		gates: gate.NewEvaluator(sessions, blackouts),
		nowFn: time.Now,
	}
}

// ResetTotalHalt clears the sticky total-drawdown halt. Only an operator
// decision should trigger this.
func (b *Bot) ResetTotalHalt() {
	slog.Warn("Total drawdown halt reset by operator")
	b.drawdown.ResetTotalHalt()
}

// Warmup seeds the strategy with candle history so the indicators are
// ready before the first live cycle.
func (b *Bot) Warmup(ctx context.Context) error {
	candles, err := b.data.Candles(ctx, b.cfg.Symbol, b.cfg.Timeframe, b.cfg.HistoryCandles)
	if err != nil {
		return fmt.Errorf("warmup history: %w", err)
	}
	for _, c := range candles {
		b.signals.Update(c)
		b.lastCandle = c.OpenTime
	}

	slog.Info("Warmup complete",
		"candles", len(candles),
		"regime", b.signals.Regime(),
		"atr", b.signals.ATR(),
		"ready", b.signals.Ready())
	return nil
}

// Run executes cycles until the context is cancelled. A failed cycle is
// logged and abandoned; the loop itself only stops on cancellation.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Warmup(ctx); err != nil {
		return err
	}

	b.statsAt = b.nowFn()
	ticker := time.NewTicker(b.cfg.PollInterval())
	defer ticker.Stop()

	slog.Info("Bot running",
		"symbol", b.cfg.Symbol,
		"timeframe", b.cfg.Timeframe,
		"interval", b.cfg.PollInterval())

	for {
		if err := b.Cycle(ctx); err != nil {
			slog.Error("Cycle abandoned", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("Shutting down", "reason", ctx.Err())
			tradingview.DumpPineScript(b.entries)
			return nil
		case <-ticker.C:
		}
	}
}

// Cycle is one pass of the decision loop.
func (b *Bot) Cycle(ctx context.Context) error {
	now := b.nowFn()
	b.cyclesRun++

	candles, err := b.data.Candles(ctx, b.cfg.Symbol, b.cfg.Timeframe, recentCandles)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	for _, c := range candles {
		if c.OpenTime.After(b.lastCandle) {
			b.signals.Update(c)
			b.lastCandle = c.OpenTime
		}
	}

	equity, err := b.exec.Equity(ctx)
	if err != nil {
		return fmt.Errorf("fetch equity: %w", err)
	}
	b.drawdown.Observe(equity, now)

	snap, err := b.exec.OpenSnapshot(ctx, b.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("fetch position: %w", err)
	}
	b.reconcile(snap)

	if b.lifecycle.Tracking() {
		err = b.manageOpen(ctx)
	} else {
		err = b.tryEnter(ctx, now, equity)
	}
	if err != nil {
		return err
	}

	b.maybeLogStats(now, equity)
	return nil
}

// reconcile aligns local lifecycle state with the broker's view. The
// broker wins: an externally closed position is dropped, an unknown open
// position is adopted with the current ATR standing in for ATR at entry.
func (b *Bot) reconcile(snap *broker.PositionSnapshot) {
	switch {
	case snap == nil && b.lifecycle.Tracking():
		slog.Warn("Position closed externally, dropping lifecycle state")
		b.lifecycle.MarkClosed()
	case snap != nil && !b.lifecycle.Tracking():
		slog.Warn("Adopting untracked position",
			"id", snap.ID, "direction", snap.Direction,
			"entry", snap.EntryPrice, "size", snap.Size)
		b.lifecycle.Adopt(snap.ID, snap.Direction, snap.EntryPrice, snap.Size, snap.StopLoss, b.signals.ATR())
	}
}

// manageOpen runs take-profit and trailing-stop management. Gates and
// halts never apply here; an open position is always managed.
func (b *Bot) manageOpen(ctx context.Context) error {
	price, err := b.data.CurrentPrice(ctx, b.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("fetch price: %w", err)
	}
	if err := b.lifecycle.Manage(ctx, price); err != nil {
		return fmt.Errorf("manage position: %w", err)
	}
	return nil
}

func (b *Bot) tryEnter(ctx context.Context, now time.Time, equity float64) error {
	if ok, reason := b.gates.EntryAllowed(now); !ok {
		b.entriesBlocked++
		slog.Debug("Entry gated", "reason", reason)
		return nil
	}
	if ok, reason := b.drawdown.CanEnter(); !ok {
		b.entriesBlocked++
		slog.Warn("Entry halted", "reason", reason)
		return nil
	}

	sig := b.signals.Evaluate(now)
	if sig == nil {
		return nil
	}
	b.signalsSeen++
	slog.Info("Signal",
		"direction", sig.Direction, "entry", sig.EntryPrice, "atr", sig.ATR)

	spec, err := b.exec.ContractSpec(ctx, b.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("fetch contract spec: %w", err)
	}

	size, err := b.sizer.PositionSize(equity, sig.ATR, spec)
	if errors.Is(err, risk.ErrBelowMinimum) {
		// The signal is spent either way; re-entering on the same
		// breakout next cycle would double-count it.
		slog.Warn("Signal rejected, size below contract minimum", "equity", equity, "atr", sig.ATR)
		b.signals.Consume()
		return nil
	}
	if err != nil {
		return fmt.Errorf("position size: %w", err)
	}

	stop := b.sizer.StopLoss(sig.Direction, sig.EntryPrice, sig.ATR)
	id, err := b.exec.OpenPosition(ctx, broker.OrderRequest{
		Symbol:    b.cfg.Symbol,
		Direction: sig.Direction,
		Size:      size,
		StopLoss:  stop,
	})
	if err != nil {
		// Not consumed: the breakout is still valid and the next cycle
		// may retry against a recovered venue.
		return fmt.Errorf("open position: %w", err)
	}

	b.signals.Consume()
	b.lifecycle.Track(id, sig.Direction, sig.EntryPrice, size, stop, sig.ATR)
	b.entriesPlaced++
	b.entries = append(b.entries, tradingview.Entry{
		Seq:       b.entriesPlaced,
		Direction: sig.Direction,
		Price:     sig.EntryPrice,
		StopLoss:  stop,
		ATR:       sig.ATR,
		Time:      sig.Timestamp,
	})

	slog.Info("Entered position",
		"id", id, "direction", sig.Direction, "size", size,
		"entry", sig.EntryPrice, "stop", stop)
	return nil
}

// maybeLogStats emits an hourly heartbeat with loop counters and the
// current risk picture.
func (b *Bot) maybeLogStats(now time.Time, equity float64) {
	if now.Sub(b.statsAt) < time.Hour {
		return
	}
	b.statsAt = now

	args := []any{
		"cycles", b.cyclesRun,
		"signals", b.signalsSeen,
		"entries", b.entriesPlaced,
		"blocked", b.entriesBlocked,
		"equity", equity,
		"regime", b.signals.Regime(),
		"atr", b.signals.ATR(),
		"daily_dd", b.drawdown.DailyRatio(equity),
		"total_dd", b.drawdown.TotalRatio(equity),
		"sessions", b.gates.ActiveSessions(now),
	}
	if next, ok := b.gates.NextBlackout(now); ok {
		args = append(args, "next_blackout", next)
	}
	slog.Info("Hourly stats", args...)
}
