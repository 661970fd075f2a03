package strategy

import (
	"time"

	"github.com/AROMARkom/oil/internal/logging"
	"github.com/AROMARkom/oil/internal/types"
)

var signalLog = logging.New("signal")

// SignalConfig holds all strategy parameters.
type SignalConfig struct {
	Volatility     VolatilityConfig
	Lookback       int
	BreakoutMinATR float64
	MomentumPeriod int
}

// SignalGenerator composes regime, structural breakout and momentum into a
// directional entry signal. All three must agree on the same candle:
//
//   - volatility regime is EXPANDING
//   - the close broke the support/resistance band by more than the margin
//   - net price change over the momentum window has the breakout's sign
type SignalGenerator struct {
	volatility *VolatilityTracker
	structure  *StructureDetector
	momentum   *Momentum
}

func NewSignalGenerator(cfg SignalConfig) *SignalGenerator {
	return &SignalGenerator{
		volatility: NewVolatilityTracker(cfg.Volatility),
		structure:  NewStructureDetector(cfg.Lookback, cfg.BreakoutMinATR),
		momentum:   NewMomentum(cfg.MomentumPeriod),
	}
}

// Update feeds one closed candle to every component.
func (g *SignalGenerator) Update(c types.Candle) {
	g.volatility.Update(c)
	g.structure.Update(c)
	g.momentum.Update(c.Close)
}

// Evaluate returns at most one signal for the current candle, or nil. The
// caller must not evaluate while a position is open for the instrument.
func (g *SignalGenerator) Evaluate(now time.Time) *types.Signal {
	if g.volatility.Regime() != RegimeExpanding {
		return nil
	}
	if !g.structure.Ready() || !g.momentum.Ready() {
		return nil
	}

	atr := g.volatility.ATR()
	br, ok := g.structure.Confirmed(atr)
	if !ok {
		return nil
	}

	mom := g.momentum.Value()
	if br.Direction == types.BUY && mom <= 0 {
		signalLog.Debug("bullish breakout rejected by momentum", "momentum", mom)
		return nil
	}
	if br.Direction == types.SELL && mom >= 0 {
		signalLog.Debug("bearish breakout rejected by momentum", "momentum", mom)
		return nil
	}

	sig := &types.Signal{
		Direction:  br.Direction,
		EntryPrice: g.structure.lastClose,
		ATR:        atr,
		Timestamp:  now,
	}
	signalLog.Info("signal emitted",
		"direction", sig.Direction,
		"entry", sig.EntryPrice,
		"atr", sig.ATR,
		"breakoutMagnitude", br.Magnitude,
		"momentum", mom)
	return sig
}

// Consume clears the expansion latch after a successful entry.
func (g *SignalGenerator) Consume() {
	g.volatility.Consume()
}

// Regime exposes the current volatility regime for status logging.
func (g *SignalGenerator) Regime() Regime {
	return g.volatility.Regime()
}

// ATR exposes the current ATR value; zero until ready.
func (g *SignalGenerator) ATR() float64 {
	if !g.volatility.Ready() {
		return 0
	}
	return g.volatility.ATR()
}

// Ready reports whether every component has enough history to classify.
func (g *SignalGenerator) Ready() bool {
	return g.volatility.Ready() && g.structure.Ready() && g.momentum.Ready()
}
