package agent

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/hyperliquid"
)

// OrderPlacer submits orders for one wallet. Implemented by
// hyperliquid.Exchange.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req hyperliquid.OrderRequest) (*hyperliquid.OrderResult, error)
	UpdateLeverage(ctx context.Context, coin string, leverage int) error
}

// Oracle price band: orders priced outside +/-1% of the oracle are
// rejected by the exchange, so limits are pinned to the band edge.
var (
	bandUp   = decimal.NewFromFloat(1.01)
	bandDown = decimal.NewFromFloat(0.99)
)

// buildOrder turns one validated decision into an exchange order.
// available is the account's withdrawable balance; signedPos is the
// current signed position size for the symbol (negative = short).
func buildOrder(d Decision, markPrice, available, signedPos decimal.Decimal) (hyperliquid.OrderRequest, error) {
	if !markPrice.IsPositive() {
		return hyperliquid.OrderRequest{}, fmt.Errorf("no market price for %s", d.Symbol)
	}

	switch d.Operation {
	case OpBuy:
		px := markPrice.Mul(bandUp)
		if d.MaxPrice.IsPositive() && d.MaxPrice.LessThan(px) {
			px = d.MaxPrice
		}
		size := openSize(available, d.Portion, d.Leverage, px)
		if !size.IsPositive() {
			return hyperliquid.OrderRequest{}, fmt.Errorf("zero size for %s buy", d.Symbol)
		}
		return hyperliquid.OrderRequest{
			Coin:       d.Symbol,
			IsBuy:      true,
			Size:       size,
			LimitPrice: px,
			Tif:        "Gtc",
		}, nil

	case OpSell:
		px := markPrice.Mul(bandDown)
		if d.MinPrice.IsPositive() && d.MinPrice.GreaterThan(px) {
			px = d.MinPrice
		}
		size := openSize(available, d.Portion, d.Leverage, px)
		if !size.IsPositive() {
			return hyperliquid.OrderRequest{}, fmt.Errorf("zero size for %s sell", d.Symbol)
		}
		return hyperliquid.OrderRequest{
			Coin:       d.Symbol,
			IsBuy:      false,
			Size:       size,
			LimitPrice: px,
			Tif:        "Gtc",
		}, nil

	case OpClose:
		if signedPos.IsZero() {
			return hyperliquid.OrderRequest{}, fmt.Errorf("no open %s position to close", d.Symbol)
		}
		size := signedPos.Abs().Mul(d.Portion)
		if !size.IsPositive() {
			return hyperliquid.OrderRequest{}, fmt.Errorf("zero close size for %s", d.Symbol)
		}

		// Closes are IOC reduce-only so they either match the book
		// immediately or cancel without flipping the position.
		if signedPos.IsPositive() {
			// Closing a long: sell.
			px := markPrice.Mul(bandDown)
			if d.MinPrice.IsPositive() && d.MinPrice.GreaterThan(px) {
				px = d.MinPrice
			}
			return hyperliquid.OrderRequest{
				Coin:       d.Symbol,
				IsBuy:      false,
				Size:       size,
				LimitPrice: px,
				Tif:        "Ioc",
				ReduceOnly: true,
			}, nil
		}
		// Closing a short: buy.
		px := markPrice.Mul(bandUp)
		if d.MaxPrice.IsPositive() && d.MaxPrice.LessThan(px) {
			px = d.MaxPrice
		}
		return hyperliquid.OrderRequest{
			Coin:       d.Symbol,
			IsBuy:      true,
			Size:       size,
			LimitPrice: px,
			Tif:        "Ioc",
			ReduceOnly: true,
		}, nil
	}

	return hyperliquid.OrderRequest{}, fmt.Errorf("unsupported operation %q", d.Operation)
}

// openSize computes the contract size for an opening order: the margin
// slice (available * portion) levered up, divided by the limit price.
func openSize(available, portion decimal.Decimal, leverage int, px decimal.Decimal) decimal.Decimal {
	if leverage < 1 {
		leverage = 1
	}
	if !px.IsPositive() {
		return decimal.Zero
	}
	notional := available.Mul(portion).Mul(decimal.NewFromInt(int64(leverage)))
	return notional.Div(px)
}
