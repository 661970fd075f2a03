package strategy

import (
	"math"

	"github.com/AROMARkom/oil/internal/logging"
	"github.com/AROMARkom/oil/internal/types"
)

var (
	atrLog = logging.New("atr")
	momLog = logging.New("momentum")
)

type Indicator interface {
	Value() float64
	Ready() bool
}

// IndicatorsReady calls .Ready() on all indicators and returns true if all are ready
func IndicatorsReady(indicators ...Indicator) bool {
	for _, ind := range indicators {
		if !ind.Ready() {
			return false
		}
	}
	return true
}

// SMA - Simple Moving Average over a fixed window
type SMA struct {
	period int
	values []float64
}

func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		values: make([]float64, 0, period),
	}
}

func (s *SMA) Update(v float64) {
	s.values = append(s.values, v)
	if len(s.values) > s.period {
		s.values = s.values[1:]
	}
}

func (s *SMA) Value() float64 {
	if len(s.values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range s.values {
		sum += v
	}
	return sum / float64(len(s.values))
}

func (s *SMA) Ready() bool {
	return len(s.values) >= s.period
}

// ATR - Average True Range, the rolling mean of the true range over the
// configured period. The first candle only primes the previous close, so
// the indicator is ready after period+1 candles.
type ATR struct {
	period    int
	sma       *SMA
	prevClose float64
	hasPrev   bool
}

func NewATR(period int) *ATR {
	return &ATR{
		period: period,
		sma:    NewSMA(period),
	}
}

func (a *ATR) Update(c types.Candle) {
	if !a.hasPrev {
		a.prevClose = c.Close
		a.hasPrev = true
		atrLog.Debug("ATR first candle", "timestamp", c.OpenTime, "close", c.Close)
		return
	}

	// True Range = max of:
	// 1. Current High - Current Low
	// 2. |Current High - Previous Close|
	// 3. |Current Low - Previous Close|
	tr1 := c.High - c.Low
	tr2 := math.Abs(c.High - a.prevClose)
	tr3 := math.Abs(c.Low - a.prevClose)

	tr := math.Max(tr1, math.Max(tr2, tr3))

	a.sma.Update(tr)
	a.prevClose = c.Close

	atrLog.Debug("ATR updated",
		"timestamp", c.OpenTime,
		"trueRange", tr,
		"value", a.Value(),
		"ready", a.Ready())
}

func (a *ATR) Value() float64 {
	return a.sma.Value()
}

func (a *ATR) Ready() bool {
	return a.sma.Ready()
}

// Momentum - net close-to-close price change over the configured period.
// Positive in an uptrend, negative in a downtrend.
type Momentum struct {
	period int
	closes []float64
}

func NewMomentum(period int) *Momentum {
	return &Momentum{
		period: period,
		closes: make([]float64, 0, period+1),
	}
}

func (m *Momentum) Update(close float64) {
	m.closes = append(m.closes, close)
	if len(m.closes) > m.period+1 {
		m.closes = m.closes[1:]
	}
	momLog.Debug("Momentum updated", "close", close, "value", m.Value(), "ready", m.Ready())
}

func (m *Momentum) Value() float64 {
	if len(m.closes) < 2 {
		return 0
	}
	return m.closes[len(m.closes)-1] - m.closes[0]
}

func (m *Momentum) Ready() bool {
	return len(m.closes) >= m.period+1
}
