package risk

import (
	"log/slog"
	"time"
)

// DrawdownTracker enforces the daily and total drawdown circuit breakers.
// Halts only ever block NEW entries; managing an open position is never
// gated here.
//
// The daily halt clears itself at the next UTC day boundary, when
// dayStartBalance reseeds from the first equity observation of the new day.
// The total halt is sticky and requires an explicit operator reset.
//
// State is process-local: after a restart the peak reseeds from the first
// fresh equity observation, so drawdown from a pre-restart peak is not
// enforced. Known limitation, not silently patched.
type DrawdownTracker struct {
	maxDaily float64
	maxTotal float64

	day             time.Time // UTC midnight anchor of the current trading day
	dayStartBalance float64
	peakEquity      float64

	haltedDaily bool
	haltedTotal bool
}

func NewDrawdownTracker(maxDaily, maxTotal float64) *DrawdownTracker {
	return &DrawdownTracker{
		maxDaily: maxDaily,
		maxTotal: maxTotal,
	}
}

// Observe records an equity reading. Call on every cycle; peak equity
// updates on every observation independent of halt state.
func (t *DrawdownTracker) Observe(equity float64, now time.Time) {
	day := utcDay(now)
	if t.day.IsZero() || !day.Equal(t.day) {
		if !t.day.IsZero() && t.haltedDaily {
			slog.Info("daily drawdown halt cleared at UTC day boundary", "day", day.Format("2006-01-02"))
		}
		t.day = day
		t.dayStartBalance = equity
		t.haltedDaily = false
	}

	if equity > t.peakEquity {
		t.peakEquity = equity
	}

	if !t.haltedDaily && t.dayStartBalance > 0 {
		if (t.dayStartBalance-equity)/t.dayStartBalance >= t.maxDaily {
			t.haltedDaily = true
			slog.Warn("daily drawdown halt triggered",
				"dayStartBalance", t.dayStartBalance, "equity", equity, "limit", t.maxDaily)
		}
	}

	if !t.haltedTotal && t.peakEquity > 0 {
		if (t.peakEquity-equity)/t.peakEquity >= t.maxTotal {
			t.haltedTotal = true
			slog.Error("total drawdown halt triggered, manual reset required",
				"peakEquity", t.peakEquity, "equity", equity, "limit", t.maxTotal)
		}
	}
}

// CanEnter reports whether new entries are permitted, with a denial reason.
func (t *DrawdownTracker) CanEnter() (bool, string) {
	if t.haltedTotal {
		return false, "total drawdown limit exceeded"
	}
	if t.haltedDaily {
		return false, "daily drawdown limit exceeded"
	}
	return true, ""
}

// ResetTotalHalt clears the total drawdown halt. Operator action only.
func (t *DrawdownTracker) ResetTotalHalt() {
	if t.haltedTotal {
		t.haltedTotal = false
		slog.Warn("total drawdown halt manually cleared")
	}
}

func (t *DrawdownTracker) HaltedDaily() bool { return t.haltedDaily }
func (t *DrawdownTracker) HaltedTotal() bool { return t.haltedTotal }
func (t *DrawdownTracker) PeakEquity() float64 { return t.peakEquity }

// DailyRatio returns the current loss ratio from the day-start balance.
func (t *DrawdownTracker) DailyRatio(equity float64) float64 {
	if t.dayStartBalance <= 0 {
		return 0
	}
	return (t.dayStartBalance - equity) / t.dayStartBalance
}

// TotalRatio returns the current loss ratio from the running peak.
func (t *DrawdownTracker) TotalRatio(equity float64) float64 {
	if t.peakEquity <= 0 {
		return 0
	}
	return (t.peakEquity - equity) / t.peakEquity
}

func utcDay(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
