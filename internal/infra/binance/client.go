package binance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"futures_go/internal/domain"
	"futures_go/internal/infra"
)

// Clock supplies the epoch-millisecond timestamp stamped onto signed
// requests. Swappable so a drift-corrected clock can replace the local one.
type Clock func() int64

// Config carries the client knobs. Zero values fall back to the
// testnet defaults.
type Config struct {
	BaseURL              string
	RecvWindow           int64
	Timeout              time.Duration
	MaxRequestsPerSecond float64
}

// Client is a signed REST client for the USDT-margined futures API.
// Every call makes exactly one HTTP attempt: retrying a signed request
// re-signs a stale timestamp, and retrying an order risks a duplicate
// fill, so retry policy is left to the caller.
type Client struct {
	baseURL    string
	recvWindow int64
	httpClient *http.Client
	creds      domain.Credentials
	signer     *Signer
	clock      Clock
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a futures REST client. An empty BaseURL targets the
// testnet; pointing at mainnet is an explicit opt-in.
func NewClient(creds domain.Credentials, cfg Config, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = BaseURLTestnet
	}
	recvWindow := cfg.RecvWindow
	if recvWindow <= 0 {
		recvWindow = defaultRecvWindow
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.MaxRequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), 1)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		recvWindow: recvWindow,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		creds:   creds,
		signer:  NewSigner(creds.APISecret()),
		clock:   func() int64 { return time.Now().UnixMilli() },
		limiter: limiter,
		logger:  logger.With("module", "binance_client"),
	}
}

// SetClock replaces the timestamp source, typically with a
// drift-corrected clock once time sync is running.
func (c *Client) SetClock(clock Clock) {
	if clock != nil {
		c.clock = clock
	}
}

// BaseURL returns the REST host the client is bound to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do executes one request. For signed calls it stamps timestamp and
// recvWindow, then appends the signature over the canonical string as
// the final parameter. The signature itself is never part of the signed
// input, and log lines carry the masked form only.
func (c *Client) do(ctx context.Context, method, endpoint string, params *Params, signed bool) (int, []byte, error) {
	if params == nil {
		params = NewParams()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, domain.NewFatalNetworkError("throttle", err)
		}
	}

	if signed {
		params.Set("timestamp", strconv.FormatInt(c.clock(), 10))
		if !params.Has("recvWindow") {
			params.Add("recvWindow", strconv.FormatInt(c.recvWindow, 10))
		}
		params.Add(signatureParam, c.signer.Sign(params.Encode()))
	}

	requestID := uuid.NewString()
	c.logger.Debug("request",
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("endpoint", endpoint),
		slog.String("params", params.EncodeMasked()),
	)

	req, err := c.newHTTPRequest(ctx, method, endpoint, params)
	if err != nil {
		return 0, nil, domain.NewFatalNetworkError("build request", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	infra.GlobalMetrics.RecordRequest(time.Since(start).Nanoseconds())
	if err != nil {
		infra.GlobalMetrics.RecordRequestError()
		return 0, nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		infra.GlobalMetrics.RecordRequestError()
		return resp.StatusCode, nil, domain.NewNetworkError("read response", err)
	}

	c.logger.Debug("response",
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(body)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		infra.GlobalMetrics.RecordRequestError()
		return resp.StatusCode, body, classifyAPIError(resp.StatusCode, body)
	}
	return resp.StatusCode, body, nil
}

// newHTTPRequest places parameters in the form body for POST/PUT and in
// the query string for GET/DELETE, matching what the signature covers.
func (c *Client) newHTTPRequest(ctx context.Context, method, endpoint string, params *Params) (*http.Request, error) {
	encoded := params.Encode()

	var req *http.Request
	var err error
	switch method {
	case http.MethodPost, http.MethodPut:
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	default:
		target := c.baseURL + endpoint
		if encoded != "" {
			target += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, err
		}
	}

	req.Header.Set(apiKeyHeader, c.creds.APIKey())
	return req, nil
}

// classifyTransportError maps a transport failure into the network error
// taxonomy. The url.Error wrapper embeds the full request URL including
// the signed query, so only its inner cause is kept.
func classifyTransportError(err error) *domain.NetworkError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	if errors.Is(err, context.Canceled) {
		return domain.NewFatalNetworkError("canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewNetworkError("timeout", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewNetworkError("timeout", err)
	}
	return domain.NewNetworkError("send", err)
}

// classifyAPIError turns a non-2xx response into an ApiError. Bodies
// that do not carry the exchange's {code, msg} envelope keep the raw
// text as the message with code zero.
func classifyAPIError(status int, body []byte) error {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && (parsed.Code != 0 || parsed.Msg != "") {
		return &domain.ApiError{Code: parsed.Code, Message: parsed.Msg, HTTPStatus: status}
	}
	return &domain.ApiError{Message: strings.TrimSpace(string(body)), HTTPStatus: status}
}

// decodeOrder parses an order payload. Malformed JSON and unparseable
// numeric fields both surface as a protocol error naming the operation.
func decodeOrder(body []byte, op string) (*domain.Order, error) {
	var parsed orderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.ProtocolError{Op: op, Err: err}
	}
	order, err := parsed.toDomain()
	if err != nil {
		return nil, &domain.ProtocolError{Op: op, Err: err}
	}
	return order, nil
}

// orderParams flattens an order request into wire parameters in a fixed
// key order. Time in force defaults to GTC for the order types that
// take one; optional prices are added only when set.
func orderParams(req *domain.OrderRequest) *Params {
	params := NewParams()
	params.Add("symbol", req.Symbol)
	params.Add("side", req.Side)
	params.Add("type", req.Type)
	params.Add("quantity", req.Quantity.String())
	if req.Price != nil {
		params.Add("price", req.Price.String())
	}
	if req.StopPrice != nil {
		params.Add("stopPrice", req.StopPrice.String())
	}
	switch req.Type {
	case domain.OrderTypeLimit, domain.OrderTypeStopLimit:
		params.Add("timeInForce", timeInForceOrDefault(req.TimeInForce))
	}
	return params
}

func orderRefParams(symbol string, orderID int64) *Params {
	params := NewParams()
	params.Add("symbol", symbol)
	params.Add("orderId", strconv.FormatInt(orderID, 10))
	return params
}

func timeInForceOrDefault(tif string) string {
	if tif == "" {
		return domain.TimeInForceGTC
	}
	return tif
}

// NewOrder submits a signed order and returns the exchange's view of it.
// The request is sent at most once; after a timeout the true order state
// is unknown and the caller resolves it with QueryOrder, never by
// resubmitting.
func (c *Client) NewOrder(ctx context.Context, req *domain.OrderRequest) (*domain.Order, error) {
	_, body, err := c.do(ctx, http.MethodPost, endpointOrder, orderParams(req), true)
	if err != nil {
		return nil, err
	}
	order, err := decodeOrder(body, "new order")
	if err != nil {
		return nil, err
	}
	infra.GlobalMetrics.RecordOrderPlaced()
	return order, nil
}

// QueryOrder fetches the current state of an order by exchange ID.
func (c *Client) QueryOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	_, body, err := c.do(ctx, http.MethodGet, endpointOrder, orderRefParams(symbol, orderID), true)
	if err != nil {
		return nil, err
	}
	return decodeOrder(body, "query order")
}

// CancelOrder cancels an open order and returns its final state.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	_, body, err := c.do(ctx, http.MethodDelete, endpointOrder, orderRefParams(symbol, orderID), true)
	if err != nil {
		return nil, err
	}
	order, err := decodeOrder(body, "cancel order")
	if err != nil {
		return nil, err
	}
	infra.GlobalMetrics.RecordOrderCanceled()
	return order, nil
}

// Account returns the balance snapshot of every asset on the account,
// zero balances included; callers filter as needed.
func (c *Client) Account(ctx context.Context) ([]domain.BalanceSnapshot, error) {
	_, body, err := c.do(ctx, http.MethodGet, endpointAccount, nil, true)
	if err != nil {
		return nil, err
	}
	var parsed accountResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.ProtocolError{Op: "account", Err: err}
	}
	snapshots := make([]domain.BalanceSnapshot, 0, len(parsed.Assets))
	for i := range parsed.Assets {
		snap, err := parsed.Assets[i].toDomain()
		if err != nil {
			return nil, &domain.ProtocolError{Op: "account", Err: err}
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// ExchangeInfo fetches the trading rules for every listed symbol.
// Public endpoint, no signature.
func (c *Client) ExchangeInfo(ctx context.Context) ([]domain.SymbolInfo, error) {
	_, body, err := c.do(ctx, http.MethodGet, endpointExchangeInfo, nil, false)
	if err != nil {
		return nil, err
	}
	var parsed exchangeInfoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.ProtocolError{Op: "exchange info", Err: err}
	}
	symbols := make([]domain.SymbolInfo, 0, len(parsed.Symbols))
	for i := range parsed.Symbols {
		info, err := parsed.Symbols[i].toDomain()
		if err != nil {
			return nil, &domain.ProtocolError{Op: "exchange info", Err: err}
		}
		symbols = append(symbols, info)
	}
	return symbols, nil
}

// ServerTime returns the exchange clock in epoch milliseconds.
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	_, body, err := c.do(ctx, http.MethodGet, endpointServerTime, nil, false)
	if err != nil {
		return 0, err
	}
	var parsed serverTimeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, &domain.ProtocolError{Op: "server time", Err: err}
	}
	return parsed.ServerTime, nil
}

// CreateListenKey opens a user-data stream and returns its key.
// Listen-key endpoints authenticate with the API key header alone and
// are never signed.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	_, body, err := c.do(ctx, http.MethodPost, endpointListenKey, nil, false)
	if err != nil {
		return "", err
	}
	var parsed listenKeyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &domain.ProtocolError{Op: "create listen key", Err: err}
	}
	if parsed.ListenKey == "" {
		return "", &domain.ProtocolError{Op: "create listen key", Err: errors.New("empty listenKey in response")}
	}
	return parsed.ListenKey, nil
}

// KeepAliveListenKey extends the stream's validity window.
func (c *Client) KeepAliveListenKey(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodPut, endpointListenKey, nil, false)
	return err
}

// CloseListenKey closes the user-data stream server side.
func (c *Client) CloseListenKey(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodDelete, endpointListenKey, nil, false)
	return err
}
