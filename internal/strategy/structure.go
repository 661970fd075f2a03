package strategy

import (
	"github.com/AROMARkom/oil/internal/logging"
	"github.com/AROMARkom/oil/internal/types"
	"github.com/samber/lo"
)

var structureLog = logging.New("structure")

// StructureLevels are the rolling support/resistance band computed from the
// lookback window, strictly excluding the candle being evaluated.
type StructureLevels struct {
	Resistance float64
	Support    float64
}

// Breakout is a confirmed structural break: the close moved beyond the band
// by more than the volatility-scaled margin.
type Breakout struct {
	Direction types.Direction
	Magnitude float64
}

// StructureDetector recomputes support/resistance each candle and measures
// breakout magnitude against them.
type StructureDetector struct {
	lookback      int
	breakoutMin   float64 // minimum breakout size in ATR multiples
	window        []types.Candle
	levels        StructureLevels
	levelsReady   bool
	lastClose     float64
	haveLastClose bool
}

func NewStructureDetector(lookback int, breakoutMinATR float64) *StructureDetector {
	return &StructureDetector{
		lookback:    lookback,
		breakoutMin: breakoutMinATR,
		window:      make([]types.Candle, 0, lookback),
	}
}

// Update computes the levels for c from the candles before it, then rolls c
// into the window for the next cycle.
func (d *StructureDetector) Update(c types.Candle) {
	if len(d.window) >= d.lookback {
		d.levels = StructureLevels{
			Resistance: lo.MaxBy(d.window, func(a, b types.Candle) bool { return a.High > b.High }).High,
			Support:    lo.MinBy(d.window, func(a, b types.Candle) bool { return a.Low < b.Low }).Low,
		}
		d.levelsReady = true
	}

	d.lastClose = c.Close
	d.haveLastClose = true

	d.window = append(d.window, c)
	if len(d.window) > d.lookback {
		d.window = d.window[1:]
	}

	if d.levelsReady {
		structureLog.Debug("structure updated",
			"timestamp", c.OpenTime,
			"close", c.Close,
			"resistance", d.levels.Resistance,
			"support", d.levels.Support)
	}
}

func (d *StructureDetector) Ready() bool {
	return d.levelsReady
}

// Levels returns the band that applied to the most recent candle.
func (d *StructureDetector) Levels() StructureLevels {
	return d.levels
}

// Confirmed checks the latest close against the band. The margin comparison
// is a strict inequality: a magnitude exactly equal to breakoutMin*atr does
// not confirm.
func (d *StructureDetector) Confirmed(atr float64) (Breakout, bool) {
	if !d.levelsReady || !d.haveLastClose || atr <= 0 {
		return Breakout{}, false
	}

	margin := d.breakoutMin * atr

	if up := d.lastClose - d.levels.Resistance; up > margin {
		return Breakout{Direction: types.BUY, Magnitude: up}, true
	}
	if down := d.levels.Support - d.lastClose; down > margin {
		return Breakout{Direction: types.SELL, Magnitude: down}, true
	}
	return Breakout{}, false
}
