package service

import (
	"context"
	"log/slog"

	"futures_go/internal/domain"
)

// OrderService drives the order lifecycle: validate locally, then make
// exactly one signed call per operation. It keeps no order state of its
// own; every answer is the exchange's view at the moment of the call.
type OrderService struct {
	gateway domain.OrderGateway
	logger  *slog.Logger
}

// NewOrderService creates an order service over the given gateway.
func NewOrderService(gateway domain.OrderGateway, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		gateway: gateway,
		logger:  logger.With("module", "order_service"),
	}
}

// PlaceOrder validates the request and submits it. Validation failures
// reject before any network traffic. The submit is attempted at most
// once: after a timeout the order state is unknown and must be resolved
// with OrderStatus, never by resubmitting.
func (s *OrderService) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.Order, error) {
	if err := domain.ValidateOrderRequest(req); err != nil {
		return nil, err
	}

	s.logger.Info("placing order",
		slog.String("symbol", req.Symbol),
		slog.String("side", req.Side),
		slog.String("type", req.Type),
		slog.String("quantity", req.Quantity.String()),
	)

	order, err := s.gateway.NewOrder(ctx, req)
	if err != nil {
		s.logger.Error("order placement failed", slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("order placed",
		slog.Int64("order_id", order.OrderID),
		slog.String("symbol", order.Symbol),
		slog.String("status", order.Status),
	)
	return order, nil
}

// OrderStatus fetches the current state of an order.
func (s *OrderService) OrderStatus(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if err := domain.ValidateOrderID(orderID); err != nil {
		return nil, err
	}
	return s.gateway.QueryOrder(ctx, symbol, orderID)
}

// CancelOrder cancels an open order and returns its final state.
func (s *OrderService) CancelOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if err := domain.ValidateOrderID(orderID); err != nil {
		return nil, err
	}

	order, err := s.gateway.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		s.logger.Error("order cancel failed",
			slog.Int64("order_id", orderID),
			slog.Any("error", err),
		)
		return nil, err
	}

	s.logger.Info("order canceled",
		slog.Int64("order_id", order.OrderID),
		slog.String("symbol", order.Symbol),
		slog.String("status", order.Status),
	)
	return order, nil
}

// AccountBalance returns the assets that hold funds, dropping the long
// tail of zero balances the account endpoint reports.
func (s *OrderService) AccountBalance(ctx context.Context) ([]domain.BalanceSnapshot, error) {
	snapshots, err := s.gateway.Account(ctx)
	if err != nil {
		return nil, err
	}

	funded := make([]domain.BalanceSnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap.HasFunds() {
			funded = append(funded, snap)
		}
	}
	return funded, nil
}
