package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/AROMARkom/oil/internal/types"
)

type paperPosition struct {
	id           int
	direction    types.Direction
	entryPrice   float64
	originalSize float64
	openSize     float64
	stopLoss     float64
}

// Paper is an in-process execution venue. Fills happen at the current
// market price with no slippage, and stops are evaluated lazily against
// the latest price whenever the position is inspected.
type Paper struct {
	data   MarketData
	symbol string

	balance float64
	pos     *paperPosition
	nextID  int
	spec    types.ContractSpec
}

func NewPaper(data MarketData, symbol string, initialBalance float64) *Paper {
	return &Paper{
		data:    data,
		symbol:  symbol,
		balance: initialBalance,
		nextID:  1,
		spec:    types.ContractSpec{MinSize: 0.01, SizeStep: 0.01},
	}
}

func (p *Paper) Balance(ctx context.Context) (float64, error) {
	return p.balance, nil
}

func (p *Paper) Equity(ctx context.Context) (float64, error) {
	if p.pos == nil {
		return p.balance, nil
	}
	price, err := p.data.CurrentPrice(ctx, p.symbol)
	if err != nil {
		return 0, err
	}
	unrealized := (price - p.pos.entryPrice) * p.pos.openSize * p.pos.direction.Sign()
	return p.balance + unrealized, nil
}

func (p *Paper) OpenPosition(ctx context.Context, req OrderRequest) (string, error) {
	if p.pos != nil {
		return "", fmt.Errorf("paper account already holds position %d", p.pos.id)
	}
	price, err := p.data.CurrentPrice(ctx, req.Symbol)
	if err != nil {
		return "", fmt.Errorf("fill price: %w", err)
	}

	p.pos = &paperPosition{
		id:           p.nextID,
		direction:    req.Direction,
		entryPrice:   price,
		originalSize: req.Size,
		openSize:     req.Size,
		stopLoss:     req.StopLoss,
	}
	p.nextID++

	slog.Info("Paper position opened",
		"id", p.pos.id, "direction", req.Direction, "price", price,
		"size", req.Size, "stop", req.StopLoss)
	return strconv.Itoa(p.pos.id), nil
}

func (p *Paper) ModifyStop(ctx context.Context, id string, stop float64) error {
	pos, err := p.position(id)
	if err != nil {
		return err
	}
	pos.stopLoss = stop
	slog.Debug("Paper stop moved", "id", pos.id, "stop", stop)
	return nil
}

func (p *Paper) CloseFraction(ctx context.Context, id string, fraction float64) error {
	pos, err := p.position(id)
	if err != nil {
		return err
	}
	price, err := p.data.CurrentPrice(ctx, p.symbol)
	if err != nil {
		return fmt.Errorf("exit price: %w", err)
	}

	qty := pos.originalSize * fraction
	if qty > pos.openSize {
		qty = pos.openSize
	}
	p.realize(pos, price, qty, "TAKE_PROFIT")
	return nil
}

// OpenSnapshot reports the open position after first checking whether the
// latest price has taken out the stop.
func (p *Paper) OpenSnapshot(ctx context.Context, symbol string) (*PositionSnapshot, error) {
	if p.pos == nil {
		return nil, nil
	}
	price, err := p.data.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	pos := p.pos
	stopped := (pos.direction == types.BUY && price <= pos.stopLoss) ||
		(pos.direction == types.SELL && price >= pos.stopLoss)
	if stopped {
		p.realize(pos, pos.stopLoss, pos.openSize, "STOP_LOSS")
		return nil, nil
	}

	return &PositionSnapshot{
		ID:         strconv.Itoa(pos.id),
		Direction:  pos.direction,
		EntryPrice: pos.entryPrice,
		Size:       pos.openSize,
		StopLoss:   pos.stopLoss,
	}, nil
}

func (p *Paper) ContractSpec(ctx context.Context, symbol string) (types.ContractSpec, error) {
	return p.spec, nil
}

func (p *Paper) position(id string) (*paperPosition, error) {
	if p.pos == nil {
		return nil, fmt.Errorf("no open paper position")
	}
	if strconv.Itoa(p.pos.id) != id {
		return nil, fmt.Errorf("unknown paper position %s", id)
	}
	return p.pos, nil
}

func (p *Paper) realize(pos *paperPosition, exitPrice, qty float64, reason string) {
	pnl := (exitPrice - pos.entryPrice) * qty * pos.direction.Sign()
	p.balance += pnl
	pos.openSize -= qty

	slog.Info("Paper position closed",
		"id", pos.id, "exit_price", exitPrice, "qty", qty,
		"remaining", pos.openSize, "pnl", pnl, "reason", reason)

	if pos.openSize <= 1e-9 {
		p.pos = nil
	}
}
