package gateio

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/alertbridge/internal/domain"
)

// gateOrder is a spot order as returned by the v4 API. Numeric fields
// are decimal strings.
type gateOrder struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	CreateTimeMs string `json:"create_time_ms"`
	Status       string `json:"status"`
	CurrencyPair string `json:"currency_pair"`
	Type         string `json:"type"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
	Left         string `json:"left"`
	FilledAmount string `json:"filled_amount"`
	FinishAs     string `json:"finish_as"`
}

// toResult maps the order onto the exchange-neutral result. Filled is
// filled_amount in base units when reported, else amount - left. For
// market buys Amount and Remaining stay in quote units, as sent.
func (o gateOrder) toResult(symbol string, raw []byte) (*domain.OrderResult, error) {
	if o.ID == "" {
		return nil, fmt.Errorf("gateio: order response without id")
	}

	amount, err := parseDecimal(o.Amount)
	if err != nil {
		return nil, fmt.Errorf("gateio: amount %q: %w", o.Amount, err)
	}
	left, err := parseDecimal(o.Left)
	if err != nil {
		return nil, fmt.Errorf("gateio: left %q: %w", o.Left, err)
	}
	filled := amount.Sub(left)
	if o.FilledAmount != "" {
		if filled, err = parseDecimal(o.FilledAmount); err != nil {
			return nil, fmt.Errorf("gateio: filled_amount %q: %w", o.FilledAmount, err)
		}
	}

	res := &domain.OrderResult{
		ID:        o.ID,
		ClientID:  strings.TrimPrefix(o.Text, "t-"),
		Symbol:    symbol,
		Side:      domain.OrderSide(o.Side),
		Type:      domain.OrderType(o.Type),
		Amount:    amount.InexactFloat64(),
		Status:    mapStatus(o.Status, o.FinishAs, filled),
		Filled:    filled.InexactFloat64(),
		Remaining: left.InexactFloat64(),
		Timestamp: parseMillis(o.CreateTimeMs),
		Info:      json.RawMessage(raw),
	}
	if !strings.HasPrefix(o.Text, "t-") {
		res.ClientID = ""
	}

	if o.Price != "" {
		p, err := parseDecimal(o.Price)
		if err != nil {
			return nil, fmt.Errorf("gateio: price %q: %w", o.Price, err)
		}
		if p.IsPositive() {
			f := p.InexactFloat64()
			res.Price = &f
		}
	}
	return res, nil
}

// mapStatus translates Gate.io order states. Open orders with some
// fills are reported as partial.
func mapStatus(status, finishAs string, filled decimal.Decimal) domain.OrderStatus {
	switch status {
	case "open":
		if filled.IsPositive() {
			return domain.OrderStatusPartial
		}
		return domain.OrderStatusOpen
	case "closed":
		return domain.OrderStatusClosed
	case "cancelled":
		if finishAs == "ioc" && filled.IsPositive() {
			return domain.OrderStatusClosed
		}
		return domain.OrderStatusCanceled
	}
	return domain.OrderStatus(status)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseMillis(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	// create_time_ms may carry a fractional part.
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}
