package binance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
)

// REST and stream hosts. Futures testnet shares one host for both.
const (
	BaseURLMainnet = "https://fapi.binance.com"
	BaseURLTestnet = "https://testnet.binancefuture.com"

	StreamURLMainnet = "wss://fstream.binance.com"
	StreamURLTestnet = "wss://testnet.binancefuture.com"
)

const (
	endpointOrder        = "/fapi/v1/order"
	endpointAccount      = "/fapi/v2/account"
	endpointExchangeInfo = "/fapi/v1/exchangeInfo"
	endpointServerTime   = "/fapi/v1/time"
	endpointListenKey    = "/fapi/v1/listenKey"
)

const (
	apiKeyHeader   = "X-MBX-APIKEY"
	signatureParam = "signature"
	maskToken      = "***"

	defaultRecvWindow = 5000
	defaultTimeout    = 10 * time.Second
)

// apiErrorBody is the exchange's error envelope on 4xx/5xx responses.
type apiErrorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// orderResponse covers placement, query and cancel responses, which all
// echo the same order object.
type orderResponse struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	ClientOrderID string `json:"clientOrderId"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	TimeInForce   string `json:"timeInForce"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
	Price         string `json:"price"`
	StopPrice     string `json:"stopPrice"`
	UpdateTime    int64  `json:"updateTime"`
}

func (r *orderResponse) toDomain() (*domain.Order, error) {
	qty, err := parseDecimal(r.OrigQty, "origQty")
	if err != nil {
		return nil, err
	}
	executed, err := parseDecimal(r.ExecutedQty, "executedQty")
	if err != nil {
		return nil, err
	}
	avgPrice, err := parseDecimal(r.AvgPrice, "avgPrice")
	if err != nil {
		return nil, err
	}
	price, err := parseDecimal(r.Price, "price")
	if err != nil {
		return nil, err
	}

	return &domain.Order{
		OrderID:     r.OrderID,
		Symbol:      r.Symbol,
		Side:        r.Side,
		Type:        r.Type,
		Status:      r.Status,
		Quantity:    qty,
		ExecutedQty: executed,
		AvgPrice:    avgPrice,
		Price:       price,
		Timestamp:   time.UnixMilli(r.UpdateTime).UTC(),
	}, nil
}

// accountResponse carries the per-asset balances of the account endpoint.
// Everything else in that payload is ignored.
type accountResponse struct {
	Assets []accountAsset `json:"assets"`
}

type accountAsset struct {
	Asset            string `json:"asset"`
	WalletBalance    string `json:"walletBalance"`
	AvailableBalance string `json:"availableBalance"`
}

func (a *accountAsset) toDomain() (domain.BalanceSnapshot, error) {
	wallet, err := parseDecimal(a.WalletBalance, "walletBalance")
	if err != nil {
		return domain.BalanceSnapshot{}, err
	}
	available, err := parseDecimal(a.AvailableBalance, "availableBalance")
	if err != nil {
		return domain.BalanceSnapshot{}, err
	}
	return domain.BalanceSnapshot{
		Asset:            a.Asset,
		Balance:          wallet,
		AvailableBalance: available,
	}, nil
}

type exchangeInfoResponse struct {
	Symbols []symbolData `json:"symbols"`
}

type symbolData struct {
	Symbol            string         `json:"symbol"`
	Status            string         `json:"status"`
	BaseAsset         string         `json:"baseAsset"`
	QuoteAsset        string         `json:"quoteAsset"`
	PricePrecision    int            `json:"pricePrecision"`
	QuantityPrecision int            `json:"quantityPrecision"`
	Filters           []symbolFilter `json:"filters"`
}

// symbolFilter is one entry of the per-symbol filter array; the fields
// populated depend on FilterType (PRICE_FILTER carries tickSize,
// LOT_SIZE carries stepSize/minQty).
type symbolFilter struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"`
	StepSize   string `json:"stepSize"`
	MinQty     string `json:"minQty"`
}

func (s *symbolData) toDomain() (domain.SymbolInfo, error) {
	info := domain.SymbolInfo{
		Symbol:            s.Symbol,
		Status:            s.Status,
		BaseAsset:         s.BaseAsset,
		QuoteAsset:        s.QuoteAsset,
		PricePrecision:    s.PricePrecision,
		QuantityPrecision: s.QuantityPrecision,
	}
	for _, f := range s.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			tick, err := parseDecimal(f.TickSize, "tickSize")
			if err != nil {
				return domain.SymbolInfo{}, err
			}
			info.TickSize = tick
		case "LOT_SIZE":
			step, err := parseDecimal(f.StepSize, "stepSize")
			if err != nil {
				return domain.SymbolInfo{}, err
			}
			minQty, err := parseDecimal(f.MinQty, "minQty")
			if err != nil {
				return domain.SymbolInfo{}, err
			}
			info.StepSize = step
			info.MinQty = minQty
		}
	}
	return info, nil
}

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// streamEventHeader identifies a stream frame before full decoding.
type streamEventHeader struct {
	Event string `json:"e"`
}

// orderTradeUpdateEvent is the ORDER_TRADE_UPDATE frame: an outer
// envelope with event time plus the order payload in compact field names.
type orderTradeUpdateEvent struct {
	Event     string               `json:"e"`
	EventTime int64                `json:"E"`
	Order     orderTradeUpdateData `json:"o"`
}

type orderTradeUpdateData struct {
	Symbol        string `json:"s"`
	ClientOrderID string `json:"c"`
	Side          string `json:"S"`
	Type          string `json:"o"`
	Quantity      string `json:"q"`
	ExecType      string `json:"x"`
	Status        string `json:"X"`
	OrderID       int64  `json:"i"`
	LastFilledQty string `json:"l"`
	FilledQty     string `json:"z"`
	LastPrice     string `json:"L"`
	AvgPrice      string `json:"ap"`
}

func (e *orderTradeUpdateEvent) toDomain() (*domain.OrderUpdate, error) {
	qty, err := parseDecimal(e.Order.Quantity, "q")
	if err != nil {
		return nil, err
	}
	filled, err := parseDecimal(e.Order.FilledQty, "z")
	if err != nil {
		return nil, err
	}
	lastFilled, err := parseDecimal(e.Order.LastFilledQty, "l")
	if err != nil {
		return nil, err
	}
	avgPrice, err := parseDecimal(e.Order.AvgPrice, "ap")
	if err != nil {
		return nil, err
	}
	lastPrice, err := parseDecimal(e.Order.LastPrice, "L")
	if err != nil {
		return nil, err
	}

	return &domain.OrderUpdate{
		Symbol:        e.Order.Symbol,
		OrderID:       e.Order.OrderID,
		ClientOrderID: e.Order.ClientOrderID,
		Side:          e.Order.Side,
		Type:          e.Order.Type,
		ExecType:      e.Order.ExecType,
		Status:        e.Order.Status,
		Quantity:      qty,
		FilledQty:     filled,
		LastFilledQty: lastFilled,
		AvgPrice:      avgPrice,
		LastPrice:     lastPrice,
		EventTime:     time.UnixMilli(e.EventTime).UTC(),
	}, nil
}

// parseDecimal converts a wire decimal string, treating absent fields as
// zero. The exchange sends decimals as strings to avoid float rounding.
func parseDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %s: %w", field, err)
	}
	return d, nil
}
