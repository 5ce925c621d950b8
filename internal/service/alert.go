package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/efreitasn/alertbridge/internal/domain"
	"github.com/efreitasn/alertbridge/internal/sink"
)

// Alert is an inbound trading alert as sent by the charting platform.
// A nil OrderType means market; an empty one is rejected.
type Alert struct {
	Symbol    string
	Action    string
	Quantity  float64
	OrderType *string
	Price     *float64
	ClientID  string
}

// AlertService turns alerts into orders and fans placed orders out to sinks.
type AlertService struct {
	orders     *OrderService
	dispatcher *sink.Dispatcher
	sinks      []sink.Sink
	logger     *slog.Logger
}

// NewAlertService creates a new AlertService recording to sinks.
func NewAlertService(orders *OrderService, dispatcher *sink.Dispatcher, sinks []sink.Sink, logger *slog.Logger) *AlertService {
	return &AlertService{
		orders:     orders,
		dispatcher: dispatcher,
		sinks:      sinks,
		logger:     logger,
	}
}

// Request validates the alert's action and builds the order it asks for.
// The symbol is normalized and an absent order type means market.
func (s *AlertService) Request(a Alert) (domain.OrderRequest, error) {
	side, err := domain.ParseSide(a.Action)
	if err != nil {
		return domain.OrderRequest{}, err
	}

	orderType := domain.OrderTypeMarket
	if a.OrderType != nil {
		orderType = domain.OrderType(strings.ToLower(strings.TrimSpace(*a.OrderType)))
	}

	return domain.OrderRequest{
		Symbol:   domain.NormalizeSymbol(a.Symbol),
		Side:     side,
		Quantity: a.Quantity,
		Type:     orderType,
		Price:    a.Price,
		ClientID: a.ClientID,
	}, nil
}

// Place validates the alert and submits the resulting order, blocking
// through the whole retry sequence.
func (s *AlertService) Place(ctx context.Context, a Alert) (*domain.OrderResult, error) {
	req, err := s.Request(a)
	if err != nil {
		return nil, err
	}
	return s.orders.Submit(ctx, req)
}

// Record queues the order on every configured sink without waiting for
// them. Sink failures are logged by the dispatcher and never returned.
func (s *AlertService) Record(order *domain.OrderResult) {
	if len(s.sinks) == 0 {
		return
	}
	if err := s.dispatcher.Dispatch(order, s.sinks...); err != nil {
		s.logger.Error("failed to queue sinks",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}
