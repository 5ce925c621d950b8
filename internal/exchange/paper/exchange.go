// Package paper is an in-memory exchange for dry runs. Market orders
// fill at the symbol's mark price; limit orders that do not cross the
// mark rest on a book until SetPrice moves the mark through them.
package paper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/alertbridge/internal/domain"
	"github.com/efreitasn/alertbridge/internal/exchange"
)

var _ exchange.Client = (*Exchange)(nil)

// ErrOrderNotActive is returned by Cancel for an order that is no longer
// on the book.
var ErrOrderNotActive = errors.New("order_not_active")

type order struct {
	result domain.OrderResult
	price  decimal.Decimal // limit price, zero for market orders
}

// Exchange is a thread-safe simulated venue.
type Exchange struct {
	mu     sync.Mutex
	marks  map[string]decimal.Decimal
	books  map[string]*book
	orders map[string]*order
	now    func() time.Time
}

// New creates an Exchange listing every symbol in prices at the given
// mark price.
func New(prices map[string]float64) *Exchange {
	e := &Exchange{
		marks:  make(map[string]decimal.Decimal, len(prices)),
		books:  make(map[string]*book, len(prices)),
		orders: make(map[string]*order),
		now:    time.Now,
	}
	for sym, p := range prices {
		e.marks[sym] = decimal.NewFromFloat(p)
		e.books[sym] = newBook()
	}
	return e
}

// LoadMarkets is a no-op; markets are fixed at construction.
func (e *Exchange) LoadMarkets(context.Context) error {
	return nil
}

func (e *Exchange) CreateMarketBuyOrder(_ context.Context, symbol string, amount float64, clientID string) (*domain.OrderResult, error) {
	return e.create(symbol, domain.OrderTypeMarket, domain.OrderSideBuy, amount, nil, clientID)
}

func (e *Exchange) CreateMarketSellOrder(_ context.Context, symbol string, amount float64, clientID string) (*domain.OrderResult, error) {
	return e.create(symbol, domain.OrderTypeMarket, domain.OrderSideSell, amount, nil, clientID)
}

func (e *Exchange) CreateLimitBuyOrder(_ context.Context, symbol string, amount, price float64, clientID string) (*domain.OrderResult, error) {
	return e.create(symbol, domain.OrderTypeLimit, domain.OrderSideBuy, amount, &price, clientID)
}

func (e *Exchange) CreateLimitSellOrder(_ context.Context, symbol string, amount, price float64, clientID string) (*domain.OrderResult, error) {
	return e.create(symbol, domain.OrderTypeLimit, domain.OrderSideSell, amount, &price, clientID)
}

func (e *Exchange) create(symbol string, typ domain.OrderType, side domain.OrderSide, amount float64, price *float64, clientID string) (*domain.OrderResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("paper: amount must be > 0")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	mark, ok := e.marks[symbol]
	if !ok {
		return nil, fmt.Errorf("paper: %s: %w", symbol, exchange.ErrUnknownSymbol)
	}

	o := &order{
		result: domain.OrderResult{
			ID:        uuid.New().String(),
			ClientID:  clientID,
			Symbol:    symbol,
			Side:      side,
			Type:      typ,
			Amount:    amount,
			Status:    domain.OrderStatusOpen,
			Remaining: amount,
			Timestamp: e.now().UTC(),
		},
	}
	e.orders[o.result.ID] = o

	if typ == domain.OrderTypeMarket {
		e.fill(o, mark)
		return o.snapshot(), nil
	}

	o.price = decimal.NewFromFloat(*price)
	limit := o.price.InexactFloat64()
	o.result.Price = &limit

	crosses := (side == domain.OrderSideBuy && o.price.GreaterThanOrEqual(mark)) ||
		(side == domain.OrderSideSell && o.price.LessThanOrEqual(mark))
	if crosses {
		e.fill(o, mark)
		return o.snapshot(), nil
	}

	entry := bookEntry{Price: o.price, CreatedAt: o.result.Timestamp, OrderID: o.result.ID}
	if side == domain.OrderSideBuy {
		e.books[symbol].insertBid(entry)
	} else {
		e.books[symbol].insertAsk(entry)
	}
	return o.snapshot(), nil
}

// FetchOrder returns the current state of an order.
func (e *Exchange) FetchOrder(_ context.Context, id, symbol string) (*domain.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[id]
	if !ok || o.result.Symbol != symbol {
		return nil, fmt.Errorf("paper: %s: %w", id, exchange.ErrOrderNotFound)
	}
	return o.snapshot(), nil
}

// SetPrice moves the mark price of symbol and fills every resting order
// the new mark crosses at that order's limit price. It returns the ids
// of the filled orders, best price first.
func (e *Exchange) SetPrice(symbol string, price float64) ([]string, error) {
	if price <= 0 {
		return nil, fmt.Errorf("paper: price must be > 0")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[symbol]
	if !ok {
		return nil, fmt.Errorf("paper: %s: %w", symbol, exchange.ErrUnknownSymbol)
	}
	mark := decimal.NewFromFloat(price)
	e.marks[symbol] = mark

	ids := b.crossed(mark)
	for _, id := range ids {
		o := e.orders[id]
		b.remove(id)
		e.fill(o, o.price)
	}
	return ids, nil
}

// Cancel removes a resting order from the book and returns its final state.
func (e *Exchange) Cancel(id string) (*domain.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[id]
	if !ok {
		return nil, fmt.Errorf("paper: %s: %w", id, exchange.ErrOrderNotFound)
	}
	if !o.result.Status.Active() {
		return nil, fmt.Errorf("paper: order %s is %s: %w", id, o.result.Status, ErrOrderNotActive)
	}
	e.books[o.result.Symbol].remove(id)
	o.result.Status = domain.OrderStatusCanceled
	return o.snapshot(), nil
}

// Resting returns the number of orders on the book for symbol.
func (e *Exchange) Resting(symbol string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.books[symbol]; ok {
		return b.size()
	}
	return 0
}

// fill executes the whole remaining quantity of o at px.
func (e *Exchange) fill(o *order, px decimal.Decimal) {
	o.result.Filled = o.result.Amount
	o.result.Remaining = 0
	o.result.Status = domain.OrderStatusClosed
	if o.result.Type == domain.OrderTypeMarket {
		avg := px.InexactFloat64()
		o.result.Price = &avg
	}
	o.result.Info, _ = json.Marshal(map[string]any{
		"venue":      "paper",
		"fill_price": px.String(),
		"filled_at":  e.now().UTC().Format(time.RFC3339Nano),
	})
}

// snapshot returns a copy callers may keep.
func (o *order) snapshot() *domain.OrderResult {
	r := o.result
	if o.result.Price != nil {
		p := *o.result.Price
		r.Price = &p
	}
	if o.result.Info != nil {
		r.Info = append([]byte(nil), o.result.Info...)
	}
	return &r
}
