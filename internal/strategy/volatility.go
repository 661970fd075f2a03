package strategy

import (
	"github.com/AROMARkom/oil/internal/logging"
	"github.com/AROMARkom/oil/internal/types"
)

var regimeLog = logging.New("regime")

const (
	RegimeUnknown    Regime = "UNKNOWN"
	RegimeNormal     Regime = "NORMAL"
	RegimeCompressed Regime = "COMPRESSED"
	RegimeExpanding  Regime = "EXPANDING"
)

type Regime string

// VolatilityConfig holds the regime classification parameters.
type VolatilityConfig struct {
	ATRPeriod            int
	CompressionPeriod    int
	CompressionThreshold float64
	ExpansionMultiplier  float64
	// ExpansionMaxAge is the number of candles an unconsumed EXPANDING
	// state survives before decaying back to NORMAL.
	ExpansionMaxAge int
}

// VolatilityTracker maintains the ATR series and classifies the current
// volatility regime.
//
// Transitions:
//
//	UNKNOWN    -> NORMAL/COMPRESSED  once enough history has been seen
//	NORMAL     -> COMPRESSED         when ATR < threshold * mean(ATR, compressionPeriod), strict
//	COMPRESSED -> EXPANDING          when ATR >= multiplier * the ATR latched at
//	                                 the candle compression was first flagged
//	COMPRESSED -> NORMAL             when the compression condition lapses without expansion
//	EXPANDING  -> NORMAL             after ExpansionMaxAge candles, or immediately on Consume
type VolatilityTracker struct {
	cfg VolatilityConfig

	atr        *ATR
	atrHistory []float64 // previous ATR values, newest last, capped at CompressionPeriod
	candles    int

	regime       Regime
	baseline     float64 // ATR latched when compression was first detected
	expandingAge int
}

func NewVolatilityTracker(cfg VolatilityConfig) *VolatilityTracker {
	return &VolatilityTracker{
		cfg:    cfg,
		atr:    NewATR(cfg.ATRPeriod),
		regime: RegimeUnknown,
	}
}

// Update feeds one closed candle and reclassifies the regime.
func (v *VolatilityTracker) Update(c types.Candle) Regime {
	// Mean over ATR values that existed before this candle, so the current
	// ATR is never part of its own reference average.
	prevMean := v.historyMean()

	v.atr.Update(c)
	v.candles++

	cur := v.atr.Value()
	if v.atr.Ready() {
		v.atrHistory = append(v.atrHistory, cur)
		if len(v.atrHistory) > v.cfg.CompressionPeriod {
			v.atrHistory = v.atrHistory[1:]
		}
	}

	if !v.Ready() {
		v.regime = RegimeUnknown
		return v.regime
	}

	compressed := prevMean > 0 && cur < v.cfg.CompressionThreshold*prevMean
	prev := v.regime

	switch v.regime {
	case RegimeCompressed:
		switch {
		case cur >= v.cfg.ExpansionMultiplier*v.baseline:
			v.regime = RegimeExpanding
			v.expandingAge = 0
		case compressed:
			// stay compressed, baseline stays latched
		default:
			v.regime = RegimeNormal
			v.baseline = 0
		}
	case RegimeExpanding:
		v.expandingAge++
		if v.expandingAge >= v.cfg.ExpansionMaxAge {
			v.regime = RegimeNormal
		}
	default:
		if compressed {
			v.regime = RegimeCompressed
			v.baseline = cur
		} else {
			v.regime = RegimeNormal
		}
	}

	if v.regime != prev {
		regimeLog.Info("regime transition",
			"from", prev, "to", v.regime,
			"atr", cur, "meanATR", prevMean, "baseline", v.baseline,
			"timestamp", c.OpenTime)
	}
	return v.regime
}

// Consume clears the EXPANDING latch after a signal has been acted on, so a
// single expansion event cannot fire repeated entries.
func (v *VolatilityTracker) Consume() {
	if v.regime == RegimeExpanding {
		v.regime = RegimeNormal
		regimeLog.Info("expansion consumed")
	}
}

func (v *VolatilityTracker) Regime() Regime {
	return v.regime
}

func (v *VolatilityTracker) ATR() float64 {
	return v.atr.Value()
}

// Ready reports whether enough history has been seen to classify: the first
// candle primes the ATR, so max(atrPeriod, compressionPeriod)+1 candles.
func (v *VolatilityTracker) Ready() bool {
	need := v.cfg.ATRPeriod
	if v.cfg.CompressionPeriod > need {
		need = v.cfg.CompressionPeriod
	}
	return v.candles >= need+1
}

func (v *VolatilityTracker) historyMean() float64 {
	if len(v.atrHistory) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range v.atrHistory {
		sum += a
	}
	return sum / float64(len(v.atrHistory))
}
