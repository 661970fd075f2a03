package broker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/samber/lo"

	"github.com/AROMARkom/oil/internal/types"
)

// Binance implements MarketData and Execution against USDT-M futures.
type Binance struct {
	client *futures.Client

	// Original entry size per position, needed because close fractions
	// are measured against the size at entry, not what remains.
	opened map[string]binancePosition
}

type binancePosition struct {
	direction    types.Direction
	originalSize float64
	step         float64
}

func NewBinance(apiKey, secretKey string) *Binance {
	return &Binance{
		client: binance.NewFuturesClient(apiKey, secretKey),
		opened: make(map[string]binancePosition),
	}
}

func (b *Binance) Candles(ctx context.Context, symbol, timeframe string, count int) ([]types.Candle, error) {
	// Fetch one extra so the forming kline can be dropped.
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).Interval(timeframe).Limit(count + 1).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	if len(klines) > 0 {
		klines = klines[:len(klines)-1]
	}

	candles := make([]types.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := klineToCandle(k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func (b *Binance) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price returned for %s", symbol)
	}
	return strconv.ParseFloat(prices[0].Price, 64)
}

func (b *Binance) Equity(ctx context.Context) (float64, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch account: %w", err)
	}
	return strconv.ParseFloat(acct.TotalMarginBalance, 64)
}

func (b *Binance) Balance(ctx context.Context) (float64, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch account: %w", err)
	}
	return strconv.ParseFloat(acct.TotalWalletBalance, 64)
}

func (b *Binance) OpenPosition(ctx context.Context, req OrderRequest) (string, error) {
	spec, err := b.ContractSpec(ctx, req.Symbol)
	if err != nil {
		return "", err
	}
	qty := formatQty(req.Size, spec.SizeStep)

	order, err := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(sideFor(req.Direction)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("place entry order: %w", err)
	}

	id := strconv.FormatInt(order.OrderID, 10)
	b.opened[req.Symbol] = binancePosition{
		direction:    req.Direction,
		originalSize: req.Size,
		step:         spec.SizeStep,
	}

	if err := b.placeStop(ctx, req.Symbol, req.Direction, req.StopLoss); err != nil {
		return id, fmt.Errorf("entry filled but stop placement failed: %w", err)
	}

	slog.Info("Binance position opened",
		"order_id", id, "symbol", req.Symbol, "direction", req.Direction,
		"size", qty, "stop", req.StopLoss)
	return id, nil
}

func (b *Binance) ModifyStop(ctx context.Context, id string, stop float64) error {
	symbol, pos, err := b.tracked(id)
	if err != nil {
		return err
	}
	// Stop replacement is cancel-then-place. The position stays protected
	// by the exchange-side liquidation price in the brief gap.
	if err := b.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
		return fmt.Errorf("cancel existing stop: %w", err)
	}
	return b.placeStop(ctx, symbol, pos.direction, stop)
}

func (b *Binance) CloseFraction(ctx context.Context, id string, fraction float64) error {
	symbol, pos, err := b.tracked(id)
	if err != nil {
		return err
	}
	qty := formatQty(pos.originalSize*fraction, pos.step)

	_, err = b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideFor(pos.direction.Opposite())).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("close fraction: %w", err)
	}
	slog.Info("Binance partial close", "symbol", symbol, "qty", qty, "fraction", fraction)
	return nil
}

func (b *Binance) OpenSnapshot(ctx context.Context, symbol string) (*PositionSnapshot, error) {
	risks, err := b.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch position risk: %w", err)
	}

	risk, found := lo.Find(risks, func(r *futures.PositionRisk) bool {
		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		return amt != 0
	})
	if !found {
		delete(b.opened, symbol)
		return nil, nil
	}

	amt, _ := strconv.ParseFloat(risk.PositionAmt, 64)
	entry, _ := strconv.ParseFloat(risk.EntryPrice, 64)

	dir := types.BUY
	if amt < 0 {
		dir = types.SELL
	}

	// Positions opened outside this process have no recorded original
	// size. Treat what the exchange reports as the original.
	if _, ok := b.opened[symbol]; !ok {
		spec, err := b.ContractSpec(ctx, symbol)
		if err != nil {
			return nil, err
		}
		b.opened[symbol] = binancePosition{
			direction:    dir,
			originalSize: math.Abs(amt),
			step:         spec.SizeStep,
		}
	}

	stop, err := b.currentStop(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return &PositionSnapshot{
		ID:         symbol,
		Direction:  dir,
		EntryPrice: entry,
		Size:       math.Abs(amt),
		StopLoss:   stop,
	}, nil
}

func (b *Binance) ContractSpec(ctx context.Context, symbol string) (types.ContractSpec, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return types.ContractSpec{}, fmt.Errorf("fetch exchange info: %w", err)
	}
	sym, found := lo.Find(info.Symbols, func(s futures.Symbol) bool { return s.Symbol == symbol })
	if !found {
		return types.ContractSpec{}, fmt.Errorf("symbol %s not listed", symbol)
	}
	lot := sym.LotSizeFilter()
	if lot == nil {
		return types.ContractSpec{}, fmt.Errorf("symbol %s has no lot size filter", symbol)
	}

	minQty, err := strconv.ParseFloat(lot.MinQuantity, 64)
	if err != nil {
		return types.ContractSpec{}, fmt.Errorf("parse min quantity: %w", err)
	}
	step, err := strconv.ParseFloat(lot.StepSize, 64)
	if err != nil {
		return types.ContractSpec{}, fmt.Errorf("parse step size: %w", err)
	}
	return types.ContractSpec{MinSize: minQty, SizeStep: step}, nil
}

func (b *Binance) placeStop(ctx context.Context, symbol string, dir types.Direction, stop float64) error {
	_, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideFor(dir.Opposite())).
		Type(futures.OrderTypeStopMarket).
		StopPrice(strconv.FormatFloat(stop, 'f', -1, 64)).
		ClosePosition(true).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("place stop order: %w", err)
	}
	return nil
}

func (b *Binance) currentStop(ctx context.Context, symbol string) (float64, error) {
	orders, err := b.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open orders: %w", err)
	}
	order, found := lo.Find(orders, func(o *futures.Order) bool {
		return o.Type == futures.OrderTypeStopMarket
	})
	if !found {
		return 0, nil
	}
	return strconv.ParseFloat(order.StopPrice, 64)
}

// tracked resolves a position id to its symbol and entry record. The bot
// trades one instrument, so at most one entry exists.
func (b *Binance) tracked(id string) (string, binancePosition, error) {
	for symbol, pos := range b.opened {
		return symbol, pos, nil
	}
	return "", binancePosition{}, fmt.Errorf("no tracked position for %s", id)
}

func sideFor(d types.Direction) futures.SideType {
	if d == types.BUY {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

func klineToCandle(k *futures.Kline) (types.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("parse kline open: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("parse kline high: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("parse kline low: %w", err)
	}
	closeP, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("parse kline close: %w", err)
	}
	return types.Candle{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closeP,
	}, nil
}

func formatQty(qty, step float64) string {
	if step <= 0 {
		return strconv.FormatFloat(qty, 'f', -1, 64)
	}
	prec := 0
	if step < 1 {
		prec = int(math.Round(-math.Log10(step)))
	}
	floored := math.Floor(qty/step) * step
	return strconv.FormatFloat(floored, 'f', prec, 64)
}
