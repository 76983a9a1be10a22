package domain

import "context"

// OrderGateway is the signed REST surface the order service drives.
// Every method performs exactly one request attempt; retry is the
// caller's decision.
type OrderGateway interface {
	NewOrder(ctx context.Context, req *OrderRequest) (*Order, error)
	QueryOrder(ctx context.Context, symbol string, orderID int64) (*Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*Order, error)
	Account(ctx context.Context) ([]BalanceSnapshot, error)
}

// MarketGateway serves the exchange's public reference endpoints.
type MarketGateway interface {
	ExchangeInfo(ctx context.Context) ([]SymbolInfo, error)
	ServerTime(ctx context.Context) (int64, error)
}

// SymbolRepository persists exchange symbol reference data between runs.
type SymbolRepository interface {
	SaveSymbols(symbols []SymbolInfo) error
	GetSymbol(symbol string) (*SymbolInfo, error)
	Count() (int64, error)
}

// ExchangeWorker defines the interface for background stream connectors
type ExchangeWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}
