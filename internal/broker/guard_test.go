package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AROMARkom/oil/internal/types"
)

// fakeExecution counts entries and can be told to fail.
type fakeExecution struct {
	opens int
	fail  error
}

func (f *fakeExecution) Equity(ctx context.Context) (float64, error)  { return 10000, nil }
func (f *fakeExecution) Balance(ctx context.Context) (float64, error) { return 10000, nil }

func (f *fakeExecution) OpenPosition(ctx context.Context, req OrderRequest) (string, error) {
	f.opens++
	if f.fail != nil {
		return "", f.fail
	}
	return "pos-1", nil
}

func (f *fakeExecution) ModifyStop(ctx context.Context, id string, stop float64) error { return nil }
func (f *fakeExecution) CloseFraction(ctx context.Context, id string, fraction float64) error {
	return nil
}
func (f *fakeExecution) OpenSnapshot(ctx context.Context, symbol string) (*PositionSnapshot, error) {
	return nil, nil
}
func (f *fakeExecution) ContractSpec(ctx context.Context, symbol string) (types.ContractSpec, error) {
	return types.ContractSpec{MinSize: 1, SizeStep: 1}, nil
}

func buyOrder(size float64) OrderRequest {
	return OrderRequest{Symbol: "USOIL", Direction: types.BUY, Size: size, StopLoss: 78}
}

func TestSafeExecutionPassesThrough(t *testing.T) {
	inner := &fakeExecution{}
	safe := NewSafeExecution(inner, 5, time.Minute)

	id, err := safe.OpenPosition(context.Background(), buyOrder(10))
	require.NoError(t, err)
	assert.Equal(t, "pos-1", id)
	assert.Equal(t, 1, inner.opens)
}

func TestSafeExecutionSuppressesDuplicates(t *testing.T) {
	inner := &fakeExecution{}
	safe := NewSafeExecution(inner, 5, time.Minute)

	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	safe.now = func() time.Time { return now }

	_, err := safe.OpenPosition(context.Background(), buyOrder(10))
	require.NoError(t, err)

	// Identical order inside the window never reaches the venue.
	now = now.Add(10 * time.Second)
	_, err = safe.OpenPosition(context.Background(), buyOrder(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
	assert.Equal(t, 1, inner.opens)

	// A different size is a different order.
	_, err = safe.OpenPosition(context.Background(), buyOrder(12))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.opens)

	// Past the window the original order is allowed again.
	now = now.Add(2 * time.Minute)
	_, err = safe.OpenPosition(context.Background(), buyOrder(10))
	require.NoError(t, err)
}

func TestSafeExecutionRateLimit(t *testing.T) {
	inner := &fakeExecution{}
	safe := NewSafeExecution(inner, 2, 0)

	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	safe.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, err := safe.OpenPosition(context.Background(), buyOrder(float64(10+i)))
		require.NoError(t, err)
		now = now.Add(time.Second)
	}

	_, err := safe.OpenPosition(context.Background(), buyOrder(30))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 2, inner.opens)

	// The window slides: a minute later capacity is back.
	now = now.Add(70 * time.Second)
	_, err = safe.OpenPosition(context.Background(), buyOrder(30))
	require.NoError(t, err)
}

func TestSafeExecutionFailureDoesNotCountAsPlaced(t *testing.T) {
	inner := &fakeExecution{fail: errors.New("venue rejected")}
	safe := NewSafeExecution(inner, 5, time.Minute)

	_, err := safe.OpenPosition(context.Background(), buyOrder(10))
	require.Error(t, err)

	// The failed order is not remembered, so an identical retry on the
	// next cycle is not treated as a duplicate.
	inner.fail = nil
	_, err = safe.OpenPosition(context.Background(), buyOrder(10))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.opens)
}
