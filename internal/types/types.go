package types

import "time"

const (
	BUY  Direction = "BUY"
	SELL Direction = "SELL"
)

type Direction string

// Sign returns +1 for BUY and -1 for SELL, so price math can be written
// once for both directions: favorable = (price - entry) * Sign().
func (d Direction) Sign() float64 {
	if d == SELL {
		return -1
	}
	return 1
}

// Opposite returns the closing direction for an open position.
func (d Direction) Opposite() Direction {
	if d == BUY {
		return SELL
	}
	return BUY
}

// Candle is one closed M15 bar. OpenTime is strictly increasing across a
// candle stream; gap handling is the market data provider's problem.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
}

// Signal is an entry decision. Immutable once emitted, consumed exactly
// once by the orchestrator.
type Signal struct {
	Direction  Direction
	EntryPrice float64
	ATR        float64 // ATR at signal time, drives stop distance and sizing
	Timestamp  time.Time
}

// ProfitLevel is one partial take-profit step. CloseFraction is measured
// against the original position size, so a full level sequence sums to 1.0.
type ProfitLevel struct {
	TargetATRMultiple float64
	CloseFraction     float64
}

// ContractSpec is the tradable-unit contract of an instrument, supplied by
// the execution collaborator.
type ContractSpec struct {
	MinSize  float64
	SizeStep float64
}
