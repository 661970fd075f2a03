package strategy

import (
	"testing"
	"time"

	"github.com/AROMARkom/oil/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignalConfig() SignalConfig {
	return SignalConfig{
		Volatility: VolatilityConfig{
			ATRPeriod:            1,
			CompressionPeriod:    2,
			CompressionThreshold: 0.6,
			ExpansionMultiplier:  1.5,
			ExpansionMaxAge:      3,
		},
		Lookback:       2,
		BreakoutMinATR: 0.3,
		MomentumPeriod: 1,
	}
}

// compressionPrelude drives the generator into COMPRESSED with an ATR
// baseline of 1.0 and a resistance/support band of 101/99.
func compressionPrelude(g *SignalGenerator) {
	g.Update(candle(0, 100, 101, 99, 100))
	g.Update(candle(1, 100, 101, 99, 100))
	g.Update(candle(2, 100, 100.5, 99.5, 100))
}

func TestSignalGenerator_BullishBreakoutSignal(t *testing.T) {
	g := NewSignalGenerator(testSignalConfig())
	compressionPrelude(g)

	assert.Nil(t, g.Evaluate(time.Now()), "no signal while compressed")

	// TR 4 expands volatility (ATR 4 >= 1.5 * baseline 1.0), close 104
	// clears the 101 resistance by 3 > 0.3*ATR, momentum +4.
	g.Update(candle(3, 100, 104, 100, 104))

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	sig := g.Evaluate(now)
	require.NotNil(t, sig)

	assert.Equal(t, types.BUY, sig.Direction)
	assert.Equal(t, 104.0, sig.EntryPrice)
	assert.InDelta(t, 4.0, sig.ATR, 1e-9)
	assert.Equal(t, now, sig.Timestamp)
}

func TestSignalGenerator_BearishBreakoutSignal(t *testing.T) {
	g := NewSignalGenerator(testSignalConfig())
	compressionPrelude(g)

	// Close 96 breaks the 99 support by 3.0 with negative momentum.
	g.Update(candle(3, 100, 100, 96, 96))

	sig := g.Evaluate(time.Now())
	require.NotNil(t, sig)
	assert.Equal(t, types.SELL, sig.Direction)
}

func TestSignalGenerator_ConsumePreventsRepeatedSignals(t *testing.T) {
	g := NewSignalGenerator(testSignalConfig())
	compressionPrelude(g)
	g.Update(candle(3, 100, 104, 100, 104))

	require.NotNil(t, g.Evaluate(time.Now()))

	g.Consume()
	assert.Equal(t, RegimeNormal, g.Regime())
	assert.Nil(t, g.Evaluate(time.Now()), "a consumed expansion must not fire again")
}

func TestSignalGenerator_NoSignalWithoutExpansion(t *testing.T) {
	g := NewSignalGenerator(testSignalConfig())

	// Same breakout candle, but volatility never compressed first, so the
	// regime is NORMAL and the breakout alone must not fire.
	g.Update(candle(0, 100, 102, 98, 100))
	g.Update(candle(1, 100, 102, 98, 100))
	g.Update(candle(2, 100, 102, 98, 100))
	g.Update(candle(3, 100, 106, 100, 106))

	assert.NotEqual(t, RegimeExpanding, g.Regime())
	assert.Nil(t, g.Evaluate(time.Now()))
}

func TestSignalGenerator_NoSignalBeforeReady(t *testing.T) {
	g := NewSignalGenerator(testSignalConfig())

	g.Update(candle(0, 100, 104, 100, 104))
	assert.False(t, g.Ready())
	assert.Nil(t, g.Evaluate(time.Now()), "insufficient history blocks signal generation")
	assert.Equal(t, 0.0, g.ATR(), "ATR reports zero until ready")
}
