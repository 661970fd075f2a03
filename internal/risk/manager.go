package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/AROMARkom/oil/internal/logging"
	"github.com/AROMARkom/oil/internal/types"
)

var riskLog = logging.New("risk")

// ErrBelowMinimum is returned when the rounded size falls under the
// instrument's minimum tradable unit. The entry is rejected outright, no
// partial orders.
var ErrBelowMinimum = errors.New("position size below minimum tradable unit")

// Manager converts account equity and ATR into a capital-at-risk position
// size and derives the initial stop level.
type Manager struct {
	maxRiskPerTrade     float64
	stopLossATRMultiple float64
}

func NewManager(maxRiskPerTrade, stopLossATRMultiple float64) *Manager {
	return &Manager{
		maxRiskPerTrade:     maxRiskPerTrade,
		stopLossATRMultiple: stopLossATRMultiple,
	}
}

// PositionSize returns the risk-normalized size for an entry:
//
//	size = (equity * maxRiskPerTrade) / (stopLossATRMultiple * atr)
//
// floored to the instrument's size step. Flooring never rounds up, so the
// realized risk can only undershoot the budget.
func (m *Manager) PositionSize(equity, atr float64, spec types.ContractSpec) (float64, error) {
	if atr <= 0 {
		return 0, fmt.Errorf("invalid ATR %.6f for sizing", atr)
	}
	if equity <= 0 {
		return 0, fmt.Errorf("invalid equity %.2f for sizing", equity)
	}

	riskAmount := equity * m.maxRiskPerTrade
	stopDistance := m.stopLossATRMultiple * atr
	size := riskAmount / stopDistance

	if spec.SizeStep > 0 {
		size = math.Floor(size/spec.SizeStep) * spec.SizeStep
	}

	riskLog.Debug("position size computed",
		"equity", equity, "atr", atr,
		"riskAmount", riskAmount, "stopDistance", stopDistance, "size", size)

	if size < spec.MinSize || size <= 0 {
		return 0, fmt.Errorf("%w: %.8f < %.8f", ErrBelowMinimum, size, spec.MinSize)
	}
	return size, nil
}

// StopLoss places the initial protective stop stopLossATRMultiple ATRs away
// from the entry, against the trade direction.
func (m *Manager) StopLoss(dir types.Direction, entry, atr float64) float64 {
	return entry - dir.Sign()*m.stopLossATRMultiple*atr
}

// StopDistance returns the stop distance in price units for a given ATR.
func (m *Manager) StopDistance(atr float64) float64 {
	return m.stopLossATRMultiple * atr
}
