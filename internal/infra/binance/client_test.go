package binance

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"futures_go/internal/domain"
)

const testAPIKey = "test-api-key"

// testClock pins signed timestamps so canonical strings are reproducible.
const testClock = int64(1736947200000)

type staticCreds struct {
	key    string
	secret string
}

func (s staticCreds) APIKey() string    { return s.key }
func (s staticCreds) APISecret() string { return s.secret }

func testCreds(t *testing.T) domain.Credentials {
	t.Helper()
	creds, err := domain.NewCredentials(staticCreds{key: testAPIKey, secret: docsSecret})
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	return creds
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(testCreds(t), cfg, logger)
	client.SetClock(func() int64 { return testClock })
	return client
}

// splitSignature separates the canonical prefix from the trailing
// signature parameter, failing if the signature is not last.
func splitSignature(t *testing.T, raw string) (string, string) {
	t.Helper()
	idx := strings.LastIndex(raw, "&signature=")
	if idx < 0 {
		t.Fatalf("no signature parameter in %q", raw)
	}
	prefix := raw[:idx]
	sig := raw[idx+len("&signature="):]
	if strings.Contains(sig, "&") {
		t.Fatalf("signature must be the final parameter, got %q", raw)
	}
	return prefix, sig
}

const marketOrderStub = `{
	"orderId": 3951823910,
	"symbol": "BTCUSDT",
	"status": "FILLED",
	"clientOrderId": "x-abc",
	"side": "BUY",
	"type": "MARKET",
	"origQty": "0.010",
	"executedQty": "0.010",
	"avgPrice": "96512.30",
	"price": "0.00",
	"updateTime": 1736947201000
}`

func TestClient_NewOrder_SignsCanonicalString(t *testing.T) {
	var gotBody, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/fapi/v1/order" {
			t.Errorf("Expected /fapi/v1/order, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Expected form content type, got %s", ct)
		}
		gotKey = r.Header.Get("X-MBX-APIKEY")

		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Write([]byte(marketOrderStub))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	order, err := client.NewOrder(context.Background(), &domain.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: decimal.RequireFromString("0.01"),
	})
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	if gotKey != testAPIKey {
		t.Errorf("Expected API key header %q, got %q", testAPIKey, gotKey)
	}

	// With a pinned clock the whole canonical string is known in advance
	canonical, sig := splitSignature(t, gotBody)
	want := "symbol=BTCUSDT&side=BUY&type=MARKET&quantity=0.01&timestamp=1736947200000&recvWindow=5000"
	if canonical != want {
		t.Errorf("Canonical string mismatch:\nwant %s\ngot  %s", want, canonical)
	}
	if expected := computeHmacSha256(canonical, docsSecret); sig != expected {
		t.Errorf("Signature does not verify against the canonical string:\nwant %s\ngot  %s", expected, sig)
	}

	if order.OrderID != 3951823910 {
		t.Errorf("Expected order ID 3951823910, got %d", order.OrderID)
	}
	if order.Status != domain.OrderStatusFilled {
		t.Errorf("Expected FILLED, got %s", order.Status)
	}
	if !order.ExecutedQty.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("Expected executed qty 0.01, got %s", order.ExecutedQty)
	}
	if !order.AvgPrice.Equal(decimal.RequireFromString("96512.30")) {
		t.Errorf("Expected avg price 96512.30, got %s", order.AvgPrice)
	}
}

func TestClient_NewOrder_LimitDefaultsTimeInForce(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"orderId": 1, "symbol": "BTCUSDT", "status": "NEW", "origQty": "0.02", "executedQty": "0", "avgPrice": "0", "price": "95000.50"}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	price := decimal.RequireFromString("95000.50")
	_, err := client.NewOrder(context.Background(), &domain.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     domain.SideSell,
		Type:     domain.OrderTypeLimit,
		Quantity: decimal.RequireFromString("0.02"),
		Price:    &price,
	})
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	canonical, _ := splitSignature(t, gotBody)
	want := "symbol=BTCUSDT&side=SELL&type=LIMIT&quantity=0.02&price=95000.5&timeInForce=GTC&timestamp=1736947200000&recvWindow=5000"
	if canonical != want {
		t.Errorf("Canonical string mismatch:\nwant %s\ngot  %s", want, canonical)
	}
}

func TestClient_CustomRecvWindow(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(marketOrderStub))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, RecvWindow: 3000})

	_, err := client.NewOrder(context.Background(), &domain.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: decimal.RequireFromString("0.01"),
	})
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	canonical, _ := splitSignature(t, gotBody)
	values, err := url.ParseQuery(canonical)
	if err != nil {
		t.Fatalf("bad canonical string: %v", err)
	}
	if got := values.Get("recvWindow"); got != "3000" {
		t.Errorf("Expected recvWindow 3000, got %s", got)
	}
}

func TestClient_QueryOrder_SignsQueryString(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		if body, _ := io.ReadAll(r.Body); len(body) != 0 {
			t.Errorf("GET must carry no body, got %q", body)
		}
		gotQuery = r.URL.RawQuery
		w.Write([]byte(marketOrderStub))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	if _, err := client.QueryOrder(context.Background(), "BTCUSDT", 42); err != nil {
		t.Fatalf("QueryOrder failed: %v", err)
	}

	canonical, sig := splitSignature(t, gotQuery)
	want := "symbol=BTCUSDT&orderId=42&timestamp=1736947200000&recvWindow=5000"
	if canonical != want {
		t.Errorf("Canonical string mismatch:\nwant %s\ngot  %s", want, canonical)
	}
	if expected := computeHmacSha256(canonical, docsSecret); sig != expected {
		t.Errorf("Signature does not verify, want %s got %s", expected, sig)
	}
}

func TestClient_CancelOrder_UsesDelete(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.Write([]byte(`{"orderId": 42, "symbol": "BTCUSDT", "status": "CANCELED", "origQty": "0.01", "executedQty": "0", "avgPrice": "0", "price": "95000"}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	order, err := client.CancelOrder(context.Background(), "BTCUSDT", 42)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("Expected DELETE, got %s", gotMethod)
	}
	if order.Status != domain.OrderStatusCanceled {
		t.Errorf("Expected CANCELED, got %s", order.Status)
	}
}

func TestClient_ApiErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": -2013, "msg": "Order does not exist."}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	_, err := client.QueryOrder(context.Background(), "BTCUSDT", 99)

	var apiErr *domain.ApiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected ApiError, got %v", err)
	}
	if apiErr.Code != -2013 {
		t.Errorf("Expected code -2013, got %d", apiErr.Code)
	}
	if apiErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", apiErr.HTTPStatus)
	}
	if apiErr.Message != "Order does not exist." {
		t.Errorf("Unexpected message %q", apiErr.Message)
	}
	if domain.IsRetriable(err) {
		t.Error("Unknown-order rejection must not be retriable")
	}
}

func TestClient_ServerErrorRetriable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Service Unavailable"))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	_, err := client.Account(context.Background())

	var apiErr *domain.ApiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected ApiError, got %v", err)
	}
	if apiErr.Code != 0 {
		t.Errorf("Non-JSON body should keep code 0, got %d", apiErr.Code)
	}
	if apiErr.Message != "Service Unavailable" {
		t.Errorf("Expected raw body as message, got %q", apiErr.Message)
	}
	if !domain.IsRetriable(err) {
		t.Error("5xx must be retriable")
	}
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway smashed this response</html>"))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	_, err := client.NewOrder(context.Background(), &domain.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: decimal.RequireFromString("0.01"),
	})

	var protoErr *domain.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Expected ProtocolError, got %v", err)
	}
	if protoErr.Op != "new order" {
		t.Errorf("Expected op 'new order', got %q", protoErr.Op)
	}
	if domain.IsRetriable(err) {
		t.Error("Contract drift must not be retriable")
	}
}

func TestClient_TimeoutSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Timeout: 30 * time.Millisecond})

	_, err := client.QueryOrder(context.Background(), "BTCUSDT", 42)

	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if !netErr.IsRetriable() {
		t.Error("Timeout must be retriable")
	}
	if netErr.Op != "timeout" {
		t.Errorf("Expected op timeout, got %q", netErr.Op)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", calls.Load())
	}

	// The url.Error wrapper embeds the signed URL; the classifier must
	// have stripped it.
	if strings.Contains(err.Error(), "signature") {
		t.Errorf("Error text leaks the signed query: %v", err)
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(marketOrderStub))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.QueryOrder(ctx, "BTCUSDT", 42)

	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if netErr.IsRetriable() {
		t.Error("Cancellation must not be retriable")
	}
}

func TestClient_SecretNeverLogged(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(marketOrderStub))
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewClient(testCreds(t), Config{BaseURL: server.URL}, logger)
	client.SetClock(func() int64 { return testClock })

	_, err := client.NewOrder(context.Background(), &domain.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: decimal.RequireFromString("0.01"),
	})
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	_, serverSig := splitSignature(t, gotBody)

	logs := buf.String()
	if logs == "" {
		t.Fatal("Expected debug logs to be written")
	}
	if strings.Contains(logs, docsSecret) {
		t.Error("API secret leaked into logs")
	}
	if strings.Contains(logs, serverSig) {
		t.Error("Raw signature leaked into logs")
	}
	if !strings.Contains(logs, "signature="+maskToken) {
		t.Error("Expected masked signature in request log")
	}
}

func TestClient_Account(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v2/account" {
			t.Errorf("Expected /fapi/v2/account, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"assets": [
			{"asset": "USDT", "walletBalance": "100.5", "availableBalance": "95.0"},
			{"asset": "BNB", "walletBalance": "0.0", "availableBalance": "0.0"},
			{"asset": "BTC", "walletBalance": "0.001", "availableBalance": "0.001"}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	snapshots, err := client.Account(context.Background())
	if err != nil {
		t.Fatalf("Account failed: %v", err)
	}

	// The client reports everything; filtering is service policy
	if len(snapshots) != 3 {
		t.Fatalf("Expected 3 assets, got %d", len(snapshots))
	}
	if snapshots[0].Asset != "USDT" || !snapshots[0].Balance.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("Unexpected first asset: %+v", snapshots[0])
	}
}

func TestClient_ExchangeInfo_Unsigned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/exchangeInfo" {
			t.Errorf("Expected /fapi/v1/exchangeInfo, got %s", r.URL.Path)
		}
		if strings.Contains(r.URL.RawQuery, "signature") {
			t.Error("Public endpoint must not be signed")
		}
		w.Write([]byte(`{"symbols": [
			{"symbol": "BTCUSDT", "status": "TRADING", "baseAsset": "BTC", "quoteAsset": "USDT",
			 "pricePrecision": 2, "quantityPrecision": 3,
			 "filters": [{"filterType": "PRICE_FILTER", "tickSize": "0.10"},
			             {"filterType": "LOT_SIZE", "stepSize": "0.001", "minQty": "0.001"}]},
			{"symbol": "ETHUSDT", "status": "TRADING", "baseAsset": "ETH", "quoteAsset": "USDT",
			 "pricePrecision": 2, "quantityPrecision": 2, "filters": []}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	symbols, err := client.ExchangeInfo(context.Background())
	if err != nil {
		t.Fatalf("ExchangeInfo failed: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("Expected 2 symbols, got %d", len(symbols))
	}
	if !symbols[0].TickSize.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("Expected tick size 0.10, got %s", symbols[0].TickSize)
	}
}

func TestClient_ServerTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/time" {
			t.Errorf("Expected /fapi/v1/time, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"serverTime": 1736947200123}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	serverTime, err := client.ServerTime(context.Background())
	if err != nil {
		t.Fatalf("ServerTime failed: %v", err)
	}
	if serverTime != 1736947200123 {
		t.Errorf("Expected 1736947200123, got %d", serverTime)
	}
}

func TestClient_ListenKeyLifecycle(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/listenKey" {
			t.Errorf("Expected /fapi/v1/listenKey, got %s", r.URL.Path)
		}
		if r.Header.Get("X-MBX-APIKEY") != testAPIKey {
			t.Error("Listen key endpoints must carry the API key header")
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(r.URL.RawQuery, "signature") || strings.Contains(string(body), "signature") {
			t.Error("Listen key endpoints must not be signed")
		}
		methods = append(methods, r.Method)

		if r.Method == http.MethodPost {
			w.Write([]byte(`{"listenKey": "abc123listenkey"}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})
	ctx := context.Background()

	key, err := client.CreateListenKey(ctx)
	if err != nil {
		t.Fatalf("CreateListenKey failed: %v", err)
	}
	if key != "abc123listenkey" {
		t.Errorf("Expected abc123listenkey, got %s", key)
	}

	if err := client.KeepAliveListenKey(ctx); err != nil {
		t.Fatalf("KeepAliveListenKey failed: %v", err)
	}
	if err := client.CloseListenKey(ctx); err != nil {
		t.Fatalf("CloseListenKey failed: %v", err)
	}

	want := []string{http.MethodPost, http.MethodPut, http.MethodDelete}
	if len(methods) != 3 || methods[0] != want[0] || methods[1] != want[1] || methods[2] != want[2] {
		t.Errorf("Expected %v, got %v", want, methods)
	}
}

func TestClient_CreateListenKey_EmptyKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	_, err := client.CreateListenKey(context.Background())
	var protoErr *domain.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Expected ProtocolError for empty listen key, got %v", err)
	}
}
