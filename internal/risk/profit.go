package risk

import (
	"context"
	"math"

	"github.com/AROMARkom/oil/internal/logging"
	"github.com/AROMARkom/oil/internal/types"
)

var profitLog = logging.New("profit")

const (
	StateOpen            PositionState = "OPEN"
	StatePartiallyClosed PositionState = "PARTIALLY_CLOSED"
	StateTrailing        PositionState = "TRAILING"
	StateClosed          PositionState = "CLOSED"
)

type PositionState string

// fractionTolerance absorbs float error when summing close fractions.
const fractionTolerance = 1e-9

// Position is the lifecycle manager's view of the one open trade. Size is
// the ORIGINAL size; partial closes reduce RemainingFraction, never Size,
// so level fractions always sum against the same base.
type Position struct {
	ID         string
	Direction  types.Direction
	EntryPrice float64
	Size       float64
	StopLoss   float64
	ATRAtEntry float64

	RemainingFraction float64
	FilledLevels      map[int]bool
	TrailingActive    bool
	TrailingStop      float64
	State             PositionState
}

// Executor is the slice of the execution collaborator the lifecycle manager
// needs. Calls are synchronous and may fail; a failure leaves local state
// untouched and the action is retried next cycle.
type Executor interface {
	ModifyStop(ctx context.Context, positionID string, newStop float64) error
	CloseFraction(ctx context.Context, positionID string, fraction float64) error
}

// LifecycleManager owns the partial take-profit and trailing-stop state
// machine for the single open position.
type LifecycleManager struct {
	levels        []types.ProfitLevel
	activationATR float64
	distanceATR   float64
	exec          Executor

	pos *Position
}

func NewLifecycleManager(levels []types.ProfitLevel, activationATR, distanceATR float64, exec Executor) *LifecycleManager {
	return &LifecycleManager{
		levels:        levels,
		activationATR: activationATR,
		distanceATR:   distanceATR,
		exec:          exec,
	}
}

// Track registers a position this bot just opened.
func (m *LifecycleManager) Track(id string, dir types.Direction, entry, size, stopLoss, atrAtEntry float64) {
	m.pos = &Position{
		ID:                id,
		Direction:         dir,
		EntryPrice:        entry,
		Size:              size,
		StopLoss:          stopLoss,
		ATRAtEntry:        atrAtEntry,
		RemainingFraction: 1.0,
		FilledLevels:      make(map[int]bool),
		State:             StateOpen,
	}
	profitLog.Info("tracking position", "id", id, "direction", dir, "entry", entry, "size", size)
}

// Adopt registers a position reported by the execution collaborator that
// the bot was not tracking (restart, manual trade). The current ATR stands
// in for the unknown ATR-at-entry.
func (m *LifecycleManager) Adopt(id string, dir types.Direction, entry, size, stopLoss, currentATR float64) {
	m.Track(id, dir, entry, size, stopLoss, currentATR)
	profitLog.Warn("adopted untracked position", "id", id, "atrAtEntry", currentATR)
}

// MarkClosed reconciles an external close (stop filled, manual flat): the
// execution collaborator's snapshot is the source of truth for existence.
func (m *LifecycleManager) MarkClosed() {
	if m.pos == nil {
		return
	}
	m.pos.State = StateClosed
	profitLog.Info("position closed", "id", m.pos.ID, "remainingFraction", m.pos.RemainingFraction)
	m.pos = nil
}

// Tracking reports whether a position is currently managed.
func (m *LifecycleManager) Tracking() bool {
	return m.pos != nil
}

// Position returns the managed position, or nil.
func (m *LifecycleManager) Position() *Position {
	return m.pos
}

// Manage runs one cycle of partial take-profits and trailing-stop logic
// against the current price. Collaborator failures abort the cycle without
// committing local state; the same triggers fire again next poll.
func (m *LifecycleManager) Manage(ctx context.Context, price float64) error {
	p := m.pos
	if p == nil || p.State == StateClosed {
		return nil
	}

	excursion := (price - p.EntryPrice) * p.Direction.Sign()
	if p.ATRAtEntry <= 0 {
		return nil
	}
	excursionATR := excursion / p.ATRAtEntry

	profitLog.Debug("managing position",
		"id", p.ID, "price", price, "excursionATR", excursionATR,
		"remainingFraction", p.RemainingFraction, "state", p.State)

	// Partial take-profits, ascending target order. Several levels can fill
	// in one cycle after a fast move.
	for i, lvl := range m.levels {
		if p.FilledLevels[i] {
			continue
		}
		if excursionATR < lvl.TargetATRMultiple {
			break
		}

		if err := m.exec.CloseFraction(ctx, p.ID, lvl.CloseFraction); err != nil {
			return err
		}

		p.FilledLevels[i] = true
		p.RemainingFraction -= lvl.CloseFraction
		if p.State == StateOpen {
			p.State = StatePartiallyClosed
		}
		profitLog.Info("partial take-profit filled",
			"id", p.ID, "level", i, "targetATR", lvl.TargetATRMultiple,
			"closedFraction", lvl.CloseFraction, "remainingFraction", p.RemainingFraction)

		if p.RemainingFraction <= fractionTolerance {
			m.MarkClosed()
			return nil
		}
	}

	// Trailing stop: activates once, then only ever tightens.
	if !p.TrailingActive {
		if excursionATR >= m.activationATR {
			stop := price - p.Direction.Sign()*m.distanceATR*p.ATRAtEntry
			if err := m.exec.ModifyStop(ctx, p.ID, stop); err != nil {
				return err
			}
			p.TrailingActive = true
			p.TrailingStop = stop
			p.StopLoss = stop
			p.State = StateTrailing
			profitLog.Info("trailing stop activated", "id", p.ID, "stop", stop)
		}
		return nil
	}

	candidate := price - p.Direction.Sign()*m.distanceATR*p.ATRAtEntry
	if (candidate-p.TrailingStop)*p.Direction.Sign() > 0 {
		if err := m.exec.ModifyStop(ctx, p.ID, candidate); err != nil {
			return err
		}
		p.TrailingStop = candidate
		p.StopLoss = candidate
		profitLog.Debug("trailing stop tightened", "id", p.ID, "stop", candidate)
	}
	return nil
}

// ClosedFraction returns the total fraction closed through profit levels.
func (m *LifecycleManager) ClosedFraction() float64 {
	if m.pos == nil {
		return 0
	}
	return math.Min(1, 1-m.pos.RemainingFraction)
}
