// Package broker abstracts market data and order execution so the bot
// can run against Binance futures or an in-process paper account.
package broker

import (
	"context"

	"github.com/AROMARkom/oil/internal/types"
)

// MarketData provides candle history and current pricing for a symbol.
type MarketData interface {
	// Candles returns the most recent closed candles, oldest first. The
	// still-forming candle is never included.
	Candles(ctx context.Context, symbol, timeframe string, count int) ([]types.Candle, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// OrderRequest describes a market entry with a protective stop.
type OrderRequest struct {
	Symbol    string
	Direction types.Direction
	Size      float64
	StopLoss  float64
}

// PositionSnapshot is the broker's view of the open position, used to
// reconcile local lifecycle state each cycle.
type PositionSnapshot struct {
	ID         string
	Direction  types.Direction
	EntryPrice float64
	Size       float64
	StopLoss   float64
}

// Execution places and manages orders against a single account.
type Execution interface {
	Equity(ctx context.Context) (float64, error)
	Balance(ctx context.Context) (float64, error)

	// OpenPosition places a market order plus its stop and returns the
	// position identifier.
	OpenPosition(ctx context.Context, req OrderRequest) (string, error)

	// ModifyStop replaces the protective stop for the open position.
	ModifyStop(ctx context.Context, id string, stop float64) error

	// CloseFraction closes the given fraction of the position's original
	// size. A fraction covering everything remaining closes the position.
	CloseFraction(ctx context.Context, id string, fraction float64) error

	// OpenSnapshot returns the current open position for the symbol, or
	// (nil, nil) when the account is flat.
	OpenSnapshot(ctx context.Context, symbol string) (*PositionSnapshot, error)

	ContractSpec(ctx context.Context, symbol string) (types.ContractSpec, error)
}
