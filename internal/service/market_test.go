package service

import (
	"context"
	"errors"
	"testing"

	"futures_go/internal/domain"
)

type fakeMarketGateway struct {
	symbols []domain.SymbolInfo
	err     error
	calls   int
}

func (f *fakeMarketGateway) ExchangeInfo(ctx context.Context) ([]domain.SymbolInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.symbols, nil
}

func (f *fakeMarketGateway) ServerTime(ctx context.Context) (int64, error) {
	return 0, nil
}

type fakeRepo struct {
	store map[string]domain.SymbolInfo
	saves int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{store: make(map[string]domain.SymbolInfo)}
}

func (f *fakeRepo) SaveSymbols(symbols []domain.SymbolInfo) error {
	f.saves++
	for _, s := range symbols {
		f.store[s.Symbol] = s
	}
	return nil
}

func (f *fakeRepo) GetSymbol(symbol string) (*domain.SymbolInfo, error) {
	if s, ok := f.store[symbol]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeRepo) Count() (int64, error) {
	return int64(len(f.store)), nil
}

func TestSymbolInfo_CacheHit(t *testing.T) {
	gw := &fakeMarketGateway{}
	repo := newFakeRepo()
	repo.store["BTCUSDT"] = domain.SymbolInfo{Symbol: "BTCUSDT", Status: "TRADING"}
	svc := NewMarketService(gw, repo, nil)

	info, err := svc.SymbolInfo(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("SymbolInfo failed: %v", err)
	}
	if info.Symbol != "BTCUSDT" {
		t.Errorf("expected BTCUSDT, got %s", info.Symbol)
	}
	if gw.calls != 0 {
		t.Errorf("cache hit must not touch the exchange, got %d calls", gw.calls)
	}
}

func TestSymbolInfo_RefreshOnMiss(t *testing.T) {
	gw := &fakeMarketGateway{symbols: []domain.SymbolInfo{
		{Symbol: "BTCUSDT", Status: "TRADING"},
		{Symbol: "ETHUSDT", Status: "TRADING"},
	}}
	repo := newFakeRepo()
	svc := NewMarketService(gw, repo, nil)

	info, err := svc.SymbolInfo(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("SymbolInfo failed: %v", err)
	}
	if info.Symbol != "ETHUSDT" {
		t.Errorf("expected ETHUSDT, got %s", info.Symbol)
	}
	if gw.calls != 1 {
		t.Errorf("expected one refresh, got %d", gw.calls)
	}
	if repo.saves != 1 {
		t.Errorf("expected one save, got %d", repo.saves)
	}
}

func TestSymbolInfo_UnknownSymbol(t *testing.T) {
	gw := &fakeMarketGateway{symbols: []domain.SymbolInfo{{Symbol: "BTCUSDT"}}}
	svc := NewMarketService(gw, newFakeRepo(), nil)

	_, err := svc.SymbolInfo(context.Background(), "XYZUSDT")
	if !errors.Is(err, domain.ErrSymbolNotFound) {
		t.Errorf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestSymbolInfo_BadSymbol(t *testing.T) {
	gw := &fakeMarketGateway{}
	svc := NewMarketService(gw, newFakeRepo(), nil)

	_, err := svc.SymbolInfo(context.Background(), "btc-usdt")
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "symbol" {
		t.Errorf("expected symbol validation error, got %v", err)
	}
	if gw.calls != 0 {
		t.Error("invalid symbol must not trigger a refresh")
	}
}

func TestRefresh(t *testing.T) {
	gw := &fakeMarketGateway{symbols: []domain.SymbolInfo{
		{Symbol: "BTCUSDT"}, {Symbol: "ETHUSDT"}, {Symbol: "XRPUSDT"},
	}}
	repo := newFakeRepo()
	svc := NewMarketService(gw, repo, nil)

	count, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 symbols, got %d", count)
	}

	stored, _ := repo.Count()
	if stored != 3 {
		t.Errorf("expected 3 stored symbols, got %d", stored)
	}
}

func TestRefresh_GatewayError(t *testing.T) {
	gw := &fakeMarketGateway{err: &domain.ApiError{HTTPStatus: 503, Message: "maintenance"}}
	repo := newFakeRepo()
	svc := NewMarketService(gw, repo, nil)

	if _, err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if repo.saves != 0 {
		t.Error("failed refresh must not overwrite the cache")
	}
}
