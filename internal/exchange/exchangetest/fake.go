// Package exchangetest provides a scriptable exchange.Client for tests.
package exchangetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/efreitasn/alertbridge/internal/domain"
	"github.com/efreitasn/alertbridge/internal/exchange"
)

var _ exchange.Client = (*Fake)(nil)

// Method names recorded in Call.Method.
const (
	MethodLoadMarkets = "load_markets"
	MethodMarketBuy   = "market_buy"
	MethodMarketSell  = "market_sell"
	MethodLimitBuy    = "limit_buy"
	MethodLimitSell   = "limit_sell"
	MethodFetchOrder  = "fetch_order"
)

// Call is one recorded invocation.
type Call struct {
	Method   string
	Symbol   string
	Amount   float64
	Price    float64
	ClientID string
	ID       string
}

// Fake records every call. Errors are consumed in order from the
// per-operation queues; a nil entry or an empty queue means success.
type Fake struct {
	mu sync.Mutex

	LoadErrs   []error
	CreateErrs []error
	FetchErrs  []error

	// CreateStatus is the status returned by create calls (default closed).
	CreateStatus domain.OrderStatus
	// FetchStatus is the status returned by FetchOrder (default closed).
	FetchStatus domain.OrderStatus

	calls []Call
	seq   int
}

// New returns a Fake whose orders close immediately.
func New() *Fake {
	return &Fake{
		CreateStatus: domain.OrderStatusClosed,
		FetchStatus:  domain.OrderStatusClosed,
	}
}

// Calls returns a copy of the recorded calls in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many calls were made to method.
func (f *Fake) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// CreateCount returns the number of order placement calls of any kind.
func (f *Fake) CreateCount() int {
	return f.Count(MethodMarketBuy) + f.Count(MethodMarketSell) +
		f.Count(MethodLimitBuy) + f.Count(MethodLimitSell)
}

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (f *Fake) LoadMarkets(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: MethodLoadMarkets})
	return pop(&f.LoadErrs)
}

func (f *Fake) CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64, clientID string) (*domain.OrderResult, error) {
	return f.create(MethodMarketBuy, domain.OrderSideBuy, domain.OrderTypeMarket, symbol, amount, 0, clientID)
}

func (f *Fake) CreateMarketSellOrder(ctx context.Context, symbol string, amount float64, clientID string) (*domain.OrderResult, error) {
	return f.create(MethodMarketSell, domain.OrderSideSell, domain.OrderTypeMarket, symbol, amount, 0, clientID)
}

func (f *Fake) CreateLimitBuyOrder(ctx context.Context, symbol string, amount, price float64, clientID string) (*domain.OrderResult, error) {
	return f.create(MethodLimitBuy, domain.OrderSideBuy, domain.OrderTypeLimit, symbol, amount, price, clientID)
}

func (f *Fake) CreateLimitSellOrder(ctx context.Context, symbol string, amount, price float64, clientID string) (*domain.OrderResult, error) {
	return f.create(MethodLimitSell, domain.OrderSideSell, domain.OrderTypeLimit, symbol, amount, price, clientID)
}

func (f *Fake) create(method string, side domain.OrderSide, typ domain.OrderType, symbol string, amount, price float64, clientID string) (*domain.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Symbol: symbol, Amount: amount, Price: price, ClientID: clientID})
	if err := pop(&f.CreateErrs); err != nil {
		return nil, err
	}

	f.seq++
	res := &domain.OrderResult{
		ID:        fmt.Sprintf("fake-%d", f.seq),
		ClientID:  clientID,
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Amount:    amount,
		Status:    f.CreateStatus,
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Info:      json.RawMessage(fmt.Sprintf(`{"attempt":%d}`, f.seq)),
	}
	if typ == domain.OrderTypeLimit {
		p := price
		res.Price = &p
	}
	if res.Status == domain.OrderStatusClosed {
		res.Filled = amount
	} else {
		res.Remaining = amount
	}
	return res, nil
}

func (f *Fake) FetchOrder(ctx context.Context, id, symbol string) (*domain.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: MethodFetchOrder, Symbol: symbol, ID: id})
	if err := pop(&f.FetchErrs); err != nil {
		return nil, err
	}
	return &domain.OrderResult{
		ID:        id,
		Symbol:    symbol,
		Status:    f.FetchStatus,
		Timestamp: time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC),
		Info:      json.RawMessage(`{"fetched":true}`),
	}, nil
}
