package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/efreitasn/alertbridge/internal/clock"
	"github.com/efreitasn/alertbridge/internal/domain"
	"github.com/efreitasn/alertbridge/internal/exchange"
)

// RetryPolicy bounds order placement attempts. Delay is a fixed pause
// taken between attempts, never after the last one.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// OrderService places orders on the exchange with bounded retry.
type OrderService struct {
	exchange exchange.Client
	policy   RetryPolicy
	clock    clock.Clock
	logger   *slog.Logger
}

// NewOrderService creates a new OrderService. A MaxAttempts below 1 is
// treated as 1.
func NewOrderService(ex exchange.Client, policy RetryPolicy, clk clock.Clock, logger *slog.Logger) *OrderService {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &OrderService{
		exchange: ex,
		policy:   policy,
		clock:    clk,
		logger:   logger,
	}
}

// Submit validates req and places it, retrying any exchange failure up
// to the configured attempt budget. Validation failures return a
// *domain.ValidationError without touching the exchange. When the
// budget is exhausted the last failure is returned wrapped in a
// *domain.OrderPlacementError.
//
// Retries are not idempotent: a placement that succeeded remotely but
// whose response was lost is submitted again.
func (s *OrderService) Submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.logger.Info("placing order",
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.String("type", string(req.Type)),
		slog.Float64("amount", req.Quantity),
	)

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		order, err := s.attempt(ctx, req)
		if err == nil {
			s.logger.Info("order placed",
				slog.String("order_id", order.ID),
				slog.String("status", string(order.Status)),
				slog.Int("attempt", attempt),
			)
			return order, nil
		}

		lastErr = err
		s.logger.Warn("order attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.policy.MaxAttempts),
			slog.String("error", err.Error()),
		)
		if attempt < s.policy.MaxAttempts {
			<-s.clock.After(s.policy.Delay)
		}
	}

	return nil, &domain.OrderPlacementError{Attempts: s.policy.MaxAttempts, Err: lastErr}
}

// attempt runs one market refresh, placement and, for orders still
// accepting fills, one status refresh.
func (s *OrderService) attempt(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	if err := s.exchange.LoadMarkets(ctx); err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}

	order, err := s.place(ctx, req)
	if err != nil {
		return nil, err
	}

	if order.Status.Active() {
		refreshed, err := s.exchange.FetchOrder(ctx, order.ID, req.Symbol)
		if err != nil {
			return nil, fmt.Errorf("fetch order %s: %w", order.ID, err)
		}
		order = refreshed
	}
	return order, nil
}

func (s *OrderService) place(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	var (
		order *domain.OrderResult
		err   error
	)
	switch {
	case req.Type == domain.OrderTypeMarket && req.Side == domain.OrderSideBuy:
		order, err = s.exchange.CreateMarketBuyOrder(ctx, req.Symbol, req.Quantity, req.ClientID)
	case req.Type == domain.OrderTypeMarket:
		order, err = s.exchange.CreateMarketSellOrder(ctx, req.Symbol, req.Quantity, req.ClientID)
	case req.Side == domain.OrderSideBuy:
		order, err = s.exchange.CreateLimitBuyOrder(ctx, req.Symbol, req.Quantity, *req.Price, req.ClientID)
	default:
		order, err = s.exchange.CreateLimitSellOrder(ctx, req.Symbol, req.Quantity, *req.Price, req.ClientID)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s %s order: %w", req.Type, req.Side, err)
	}
	if order == nil {
		return nil, fmt.Errorf("create %s %s order: empty response", req.Type, req.Side)
	}
	return order, nil
}
