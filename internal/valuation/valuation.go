// Package valuation holds the pure position math: market value from a NAV
// estimate, and the share/amount adjustments applied by buys and sells.
// Nothing here touches storage; callers persist the returned position.
package valuation

import (
	"github.com/shopspring/decimal"

	"navkeeper/internal/models"
)

// SellMode selects what happens to the invested amount on a sell.
type SellMode string

const (
	// SellReplace treats the sell amount as the invested amount REMAINING
	// after the sell and stores it verbatim. This mirrors the behavior the
	// product has always had, asymmetric with the additive buy path.
	SellReplace SellMode = "replace"
	// SellSubtract subtracts the sell amount from the invested amount.
	SellSubtract SellMode = "subtract"
)

// ParseSellMode maps a config string to a SellMode, defaulting to replace.
func ParseSellMode(s string) SellMode {
	if s == string(SellSubtract) {
		return SellSubtract
	}
	return SellReplace
}

var one = decimal.NewFromInt(1)

// EffectiveNav normalizes a quoted NAV for position math. An unavailable or
// non-positive NAV is valued at 1.0 — a documented approximation that keeps
// the amount/shares formulas total and division-safe.
func EffectiveNav(nav decimal.Decimal, ok bool) decimal.Decimal {
	if !ok || nav.Cmp(decimal.Zero) <= 0 {
		return one
	}
	return nav
}

// MarketValue is shares × nav for a held position, zero otherwise.
func MarketValue(shares, nav decimal.Decimal) decimal.Decimal {
	if shares.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero
	}
	return shares.Mul(nav)
}

// ApplyBuy adds amount to the position at the given NAV.
func ApplyBuy(pos models.Position, amount, nav decimal.Decimal) (models.Position, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return pos, models.ErrInvalidAmount
	}
	bought := amount.Div(nav)
	pos.Shares = pos.Shares.Add(bought)
	pos.Amount = pos.Amount.Add(amount)
	return pos, nil
}

// ApplySell reduces the position at the given NAV. Under SellReplace,
// amount is the invested amount remaining after the sell: amount/nav shares
// are burned and the invested amount is set to amount. Under SellSubtract
// the same shares are burned but amount is subtracted instead.
func ApplySell(pos models.Position, amount, nav decimal.Decimal, mode SellMode) (models.Position, error) {
	if amount.Cmp(decimal.Zero) < 0 {
		return pos, models.ErrInvalidAmount
	}
	sold := amount.Div(nav)
	pos.Shares = pos.Shares.Sub(sold)
	if mode == SellSubtract {
		pos.Amount = pos.Amount.Sub(amount)
	} else {
		pos.Amount = amount
	}
	return pos, nil
}
