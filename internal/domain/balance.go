package domain

import "github.com/shopspring/decimal"

// BalanceSnapshot is one asset's balance at the instant of a query.
// Snapshots are rebuilt fresh on every call and never cached.
type BalanceSnapshot struct {
	Asset            string          `json:"asset"`
	Balance          decimal.Decimal `json:"balance"`           // wallet balance
	AvailableBalance decimal.Decimal `json:"available_balance"` // withdrawable / usable for new orders
}

// HasFunds reports whether the wallet balance is greater than zero.
func (b *BalanceSnapshot) HasFunds() bool {
	return b.Balance.IsPositive()
}
