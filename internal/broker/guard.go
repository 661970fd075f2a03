package broker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricOrdersAttempted  = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_attempted_total", Help: "Entry orders the bot tried to place"})
	metricOrdersPlaced     = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_placed_total", Help: "Entry orders accepted by the venue"})
	metricOrdersFailed     = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_failed_total", Help: "Entry orders rejected by the venue"})
	metricOrdersSuppressed = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_suppressed_total", Help: "Entry orders blocked by the safety layer"})
	metricRateWindow       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_orders_in_last_minute", Help: "Orders counted in the sliding minute window"})
)

func init() {
	prometheus.MustRegister(
		metricOrdersAttempted, metricOrdersPlaced,
		metricOrdersFailed, metricOrdersSuppressed, metricRateWindow,
	)
}

// SafeExecution wraps an Execution with a per-minute rate cap and duplicate
// suppression on entries. Failed orders are never retried here; the cycle
// that hit the failure is abandoned and the next cycle re-evaluates.
type SafeExecution struct {
	Execution

	mu           sync.Mutex
	orderTimes   []time.Time
	perMinuteCap int

	dupWindow    time.Duration
	lastOrderKey string
	lastOrderAt  time.Time

	now func() time.Time
}

func NewSafeExecution(inner Execution, perMinuteCap int, dupWindow time.Duration) *SafeExecution {
	return &SafeExecution{
		Execution:    inner,
		perMinuteCap: perMinuteCap,
		dupWindow:    dupWindow,
		now:          time.Now,
	}
}

func (s *SafeExecution) OpenPosition(ctx context.Context, req OrderRequest) (string, error) {
	now := s.now()
	metricOrdersAttempted.Inc()

	key := orderKey(req)
	s.mu.Lock()
	if s.rateExceeded(now) {
		s.mu.Unlock()
		metricOrdersSuppressed.Inc()
		return "", errors.New("order rate limit hit")
	}
	if key == s.lastOrderKey && now.Sub(s.lastOrderAt) < s.dupWindow {
		s.mu.Unlock()
		metricOrdersSuppressed.Inc()
		return "", errors.New("duplicate order suppressed")
	}
	s.mu.Unlock()

	id, err := s.Execution.OpenPosition(ctx, req)
	if err != nil {
		metricOrdersFailed.Inc()
		return "", err
	}

	s.mu.Lock()
	s.orderTimes = append(s.orderTimes, now)
	metricRateWindow.Set(float64(len(s.orderTimes)))
	s.lastOrderKey, s.lastOrderAt = key, now
	s.mu.Unlock()

	metricOrdersPlaced.Inc()
	return id, nil
}

// rateExceeded prunes the sliding window and reports whether another order
// would exceed the cap. Caller holds s.mu.
func (s *SafeExecution) rateExceeded(now time.Time) bool {
	cutoff := now.Add(-time.Minute)
	j := 0
	for _, t := range s.orderTimes {
		if t.After(cutoff) {
			s.orderTimes[j] = t
			j++
		}
	}
	s.orderTimes = s.orderTimes[:j]
	metricRateWindow.Set(float64(len(s.orderTimes)))
	return s.perMinuteCap > 0 && len(s.orderTimes) >= s.perMinuteCap
}

func orderKey(req OrderRequest) string {
	h := sha256.Sum256([]byte(
		req.Symbol + string(req.Direction) +
			strconv.FormatFloat(req.Size, 'f', 8, 64) +
			strconv.FormatFloat(req.StopLoss, 'f', 8, 64),
	))
	return hex.EncodeToString(h[:8])
}
