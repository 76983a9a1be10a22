package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeMarket     = "MARKET"
	OrderTypeLimit      = "LIMIT"
	OrderTypeStopMarket = "STOP_MARKET"
	OrderTypeStopLimit  = "STOP_LIMIT"

	TimeInForceGTC = "GTC"
	TimeInForceIOC = "IOC"
	TimeInForceFOK = "FOK"

	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusRejected        = "REJECTED"
	OrderStatusExpired         = "EXPIRED"
)

// OrderRequest describes an order before submission. Which optional fields
// must be present is determined by Type; see ValidateOrderRequest.
type OrderRequest struct {
	Symbol      string
	Side        string // "BUY", "SELL"
	Type        string // "MARKET", "LIMIT", "STOP_MARKET", "STOP_LIMIT"
	Quantity    decimal.Decimal
	Price       *decimal.Decimal // limit price (LIMIT, STOP_LIMIT)
	StopPrice   *decimal.Decimal // trigger price (STOP_MARKET, STOP_LIMIT)
	TimeInForce string           // "GTC", "IOC", "FOK"; empty defaults to GTC where applicable
}

// Order is the exchange's authoritative view of an order at the instant
// of the call that produced it. Immutable once constructed.
type Order struct {
	OrderID     int64
	Symbol      string
	Side        string
	Type        string
	Status      string // "NEW", "PARTIALLY_FILLED", "FILLED", "CANCELED", "REJECTED", "EXPIRED"
	Quantity    decimal.Decimal // original order quantity
	ExecutedQty decimal.Decimal
	AvgPrice    decimal.Decimal
	Price       decimal.Decimal
	Timestamp   time.Time // exchange update time, UTC
}

// IsOpen checks if the order is still active.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

// OrderUpdate is a private order event delivered over the user-data stream.
type OrderUpdate struct {
	Symbol        string
	OrderID       int64
	ClientOrderID string
	Side          string
	Type          string
	ExecType      string // "NEW", "TRADE", "CANCELED", "EXPIRED", ...
	Status        string
	Quantity      decimal.Decimal
	FilledQty     decimal.Decimal // cumulative filled quantity
	LastFilledQty decimal.Decimal
	AvgPrice      decimal.Decimal
	LastPrice     decimal.Decimal
	EventTime     time.Time
}
