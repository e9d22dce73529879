// Package valuation computes portfolio value and PnL as a pure function of
// holdings and a price snapshot. It has no side effects, which is what makes
// it independently testable.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/rfinnegan/investment-tracker/internal/cache"
	"github.com/rfinnegan/investment-tracker/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Result is the outcome of valuating one portfolio.
type Result struct {
	TotalValue decimal.Decimal `json:"total_value"`
	CostBasis  decimal.Decimal `json:"cost_basis"`
	PnLPercent decimal.Decimal `json:"pnl_percent"`

	// StaleSymbols lists holdings valued from a stale cache entry.
	StaleSymbols []string `json:"stale_symbols,omitempty"`
	// MissingSymbols lists holdings with no cached price at all; these are
	// valued at cost basis rather than excluded, to avoid understating the
	// portfolio.
	MissingSymbols []string `json:"missing_symbols,omitempty"`
}

// Valuate computes total value and PnL percent for a set of holdings against
// a price snapshot. Stale prices are used and flagged. PnL is defined as 0
// when the cost basis is 0.
func Valuate(holdings []models.Holding, prices map[string]cache.Price) Result {
	res := Result{
		TotalValue: decimal.Zero,
		CostBasis:  decimal.Zero,
		PnLPercent: decimal.Zero,
	}

	for _, h := range holdings {
		res.CostBasis = res.CostBasis.Add(h.CostBasis())

		p, ok := prices[h.Symbol]
		if !ok {
			res.TotalValue = res.TotalValue.Add(h.CostBasis())
			res.MissingSymbols = append(res.MissingSymbols, h.Symbol)
			continue
		}
		if p.Stale {
			res.StaleSymbols = append(res.StaleSymbols, h.Symbol)
		}
		res.TotalValue = res.TotalValue.Add(h.Quantity.Mul(p.Value))
	}

	if res.CostBasis.IsPositive() {
		res.PnLPercent = res.TotalValue.Sub(res.CostBasis).Div(res.CostBasis).Mul(hundred)
	}
	return res
}
