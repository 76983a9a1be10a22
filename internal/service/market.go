package service

import (
	"context"
	"log/slog"

	"futures_go/internal/domain"
)

// MarketService serves symbol reference data, backed by the local store
// and refreshed from the exchange on a miss.
type MarketService struct {
	gateway domain.MarketGateway
	repo    domain.SymbolRepository
	logger  *slog.Logger
}

// NewMarketService creates a market data service.
func NewMarketService(gateway domain.MarketGateway, repo domain.SymbolRepository, logger *slog.Logger) *MarketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketService{
		gateway: gateway,
		repo:    repo,
		logger:  logger.With("module", "market_service"),
	}
}

// SymbolInfo returns reference data for one symbol. A cache miss
// triggers a full refresh; a symbol still missing afterwards is not
// listed on the exchange.
func (s *MarketService) SymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	info, err := s.repo.GetSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if info != nil {
		return info, nil
	}

	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	info, err = s.repo.GetSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, domain.ErrSymbolNotFound
	}
	return info, nil
}

// Refresh pulls exchange info and replaces the cached symbol set,
// returning how many symbols were stored.
func (s *MarketService) Refresh(ctx context.Context) (int, error) {
	symbols, err := s.gateway.ExchangeInfo(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.repo.SaveSymbols(symbols); err != nil {
		return 0, err
	}

	s.logger.Info("symbol reference data refreshed", slog.Int("symbols", len(symbols)))
	return len(symbols), nil
}
