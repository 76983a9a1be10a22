package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SymbolInfo is per-symbol reference data from the exchange: listing
// status, asset pair, and the precision/filter bounds callers need to
// format order values the exchange will accept. Persisted as a cache
// row between runs; never holds order state.
type SymbolInfo struct {
	Symbol            string          `gorm:"primaryKey" json:"symbol"`
	Status            string          `json:"status"` // "TRADING" when orderable
	BaseAsset         string          `json:"base_asset"`
	QuoteAsset        string          `json:"quote_asset"`
	PricePrecision    int             `json:"price_precision"`
	QuantityPrecision int             `json:"quantity_precision"`
	TickSize          decimal.Decimal `json:"tick_size"`
	StepSize          decimal.Decimal `json:"step_size"`
	MinQty            decimal.Decimal `json:"min_qty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsTrading reports whether the symbol currently accepts orders.
func (s *SymbolInfo) IsTrading() bool {
	return s.Status == "TRADING"
}
