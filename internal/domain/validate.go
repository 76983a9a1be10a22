package domain

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Field names in validation errors use the exchange's wire parameter
// names (symbol, stopPrice, ...) so callers can map failures straight
// back to their inputs.

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

var maxQuantity = decimal.NewFromInt(1_000_000)

// ValidateSymbol checks the ticker format: non-empty, uppercase
// alphanumeric, 2-20 characters. Performs no I/O.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return NewValidationError("symbol", "symbol is required")
	}
	if !symbolPattern.MatchString(symbol) {
		return NewValidationError("symbol", "must be 2-20 uppercase letters or digits (e.g. BTCUSDT)")
	}
	return nil
}

// ValidateOrderID checks a caller-supplied exchange order ID.
func ValidateOrderID(orderID int64) error {
	if orderID <= 0 {
		return NewValidationError("orderId", "order ID must be a positive integer")
	}
	return nil
}

// ValidateOrderRequest enforces the per-type parameter contract before
// any request is built. Zero side effects, no I/O; the first violated
// rule wins. Which fields are required or forbidden depends on Type:
//
//	MARKET:      quantity only; price, stopPrice and timeInForce are rejected
//	LIMIT:       price required; stopPrice rejected
//	STOP_MARKET: stopPrice required; price and timeInForce rejected
//	STOP_LIMIT:  price and stopPrice required
func ValidateOrderRequest(req *OrderRequest) error {
	if req == nil {
		return NewValidationError("request", "order request is required")
	}
	if err := ValidateSymbol(req.Symbol); err != nil {
		return err
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return NewValidationError("side", "side must be BUY or SELL")
	}
	if !req.Quantity.IsPositive() {
		return NewValidationError("quantity", "quantity must be greater than 0")
	}
	if req.Quantity.GreaterThan(maxQuantity) {
		return NewValidationError("quantity", "quantity exceeds the maximum of 1000000")
	}
	if err := validateTimeInForce(req.TimeInForce); err != nil {
		return err
	}

	switch req.Type {
	case OrderTypeMarket:
		if req.Price != nil {
			return NewValidationError("price", "price must not be set for MARKET orders")
		}
		if req.StopPrice != nil {
			return NewValidationError("stopPrice", "stopPrice must not be set for MARKET orders")
		}
		if req.TimeInForce != "" {
			return NewValidationError("timeInForce", "timeInForce must not be set for MARKET orders")
		}
	case OrderTypeLimit:
		if req.StopPrice != nil {
			return NewValidationError("stopPrice", "stopPrice must not be set for LIMIT orders")
		}
		if err := requirePositive("price", req.Price, "LIMIT"); err != nil {
			return err
		}
	case OrderTypeStopMarket:
		if req.Price != nil {
			return NewValidationError("price", "price must not be set for STOP_MARKET orders")
		}
		if req.TimeInForce != "" {
			return NewValidationError("timeInForce", "timeInForce must not be set for STOP_MARKET orders")
		}
		if err := requirePositive("stopPrice", req.StopPrice, "STOP_MARKET"); err != nil {
			return err
		}
	case OrderTypeStopLimit:
		if err := requirePositive("price", req.Price, "STOP_LIMIT"); err != nil {
			return err
		}
		if err := requirePositive("stopPrice", req.StopPrice, "STOP_LIMIT"); err != nil {
			return err
		}
	default:
		return NewValidationError("type", "type must be one of MARKET, LIMIT, STOP_MARKET, STOP_LIMIT")
	}
	return nil
}

func validateTimeInForce(tif string) error {
	switch tif {
	case "", TimeInForceGTC, TimeInForceIOC, TimeInForceFOK:
		return nil
	}
	return NewValidationError("timeInForce", "timeInForce must be one of GTC, IOC, FOK")
}

func requirePositive(field string, value *decimal.Decimal, orderType string) error {
	if value == nil {
		return NewValidationError(field, field+" is required for "+orderType+" orders")
	}
	if !value.IsPositive() {
		return NewValidationError(field, field+" must be greater than 0")
	}
	return nil
}
