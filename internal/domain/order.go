package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderSide indicates whether an order buys or sells the base asset.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus is the exchange-reported lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusPartial  OrderStatus = "partial"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusExpired  OrderStatus = "expired"
	OrderStatusRejected OrderStatus = "rejected"
)

// Active reports whether the order may still receive fills.
func (s OrderStatus) Active() bool {
	return s == OrderStatusOpen || s == OrderStatusPartial
}

// ParseSide maps an alert action to an order side. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseSide(action string) (OrderSide, error) {
	switch OrderSide(strings.ToLower(strings.TrimSpace(action))) {
	case OrderSideBuy:
		return OrderSideBuy, nil
	case OrderSideSell:
		return OrderSideSell, nil
	}
	return "", &ValidationError{Message: "action must be BUY or SELL", Err: ErrInvalidAction}
}

// OrderRequest is a normalized instruction to place one order.
type OrderRequest struct {
	Symbol   string
	Side     OrderSide
	Quantity float64
	Type     OrderType
	Price    *float64 // required for limit orders, ignored for market orders
	ClientID string
}

// Validate checks the request before anything is sent to the exchange.
func (r OrderRequest) Validate() error {
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return &ValidationError{Message: "action must be BUY or SELL", Err: ErrInvalidAction}
	}
	if r.Quantity <= 0 {
		return &ValidationError{Message: "quantity must be > 0", Err: ErrInvalidQuantity}
	}
	switch r.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if r.Price == nil {
			return &ValidationError{Message: "Missing price for limit order", Err: ErrMissingPrice}
		}
		if *r.Price <= 0 {
			return &ValidationError{Message: "price must be > 0 for limit order", Err: ErrMissingPrice}
		}
	default:
		return &ValidationError{
			Message: "Unsupported order type: " + string(r.Type) + ". Must be one of: market, limit",
			Err:     ErrUnsupportedOrderType,
		}
	}
	return nil
}

// OrderResult is the exchange's view of a placed order. It is treated
// as immutable once returned by an exchange client.
type OrderResult struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id,omitempty"`
	Symbol    string          `json:"symbol"`
	Side      OrderSide       `json:"side"`
	Type      OrderType       `json:"type"`
	Price     *float64        `json:"price"`
	Amount    float64         `json:"amount"`
	Status    OrderStatus     `json:"status"`
	Filled    float64         `json:"filled"`
	Remaining float64         `json:"remaining"`
	Timestamp time.Time       `json:"timestamp"`
	Info      json.RawMessage `json:"info,omitempty"`
}
