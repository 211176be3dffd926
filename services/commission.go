package services

import (
	"github.com/shopspring/decimal"
)

// ResolveCommission computes the effective commission rate and amount for a
// transaction. The first rate source present wins: the transaction's own
// override, then the linked client's override, then the agent's default
// rate. When no source resolves (the agent record is gone) the commission
// is 0; callers surface that as a data-integrity warning, not a failure.
//
// The arithmetic runs on decimals and the commission is rounded half-up to
// two places, so repeated recomputation never drifts the stored figure.
func ResolveCommission(amount float64, txnOverride, clientOverride, agentRate *float64) (ratePercent, commission float64) {
	var rate *float64
	switch {
	case txnOverride != nil:
		rate = txnOverride
	case clientOverride != nil:
		rate = clientOverride
	case agentRate != nil:
		rate = agentRate
	}
	if rate == nil {
		return 0, 0
	}

	amt := decimal.NewFromFloat(amount)
	pct := decimal.NewFromFloat(*rate)
	result := amt.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)

	commission, _ = result.Float64()
	return *rate, commission
}

// ValidRate reports whether a commission percentage is within [0,100].
func ValidRate(rate float64) bool {
	return rate >= 0 && rate <= 100
}
