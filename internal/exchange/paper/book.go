package paper

import (
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// bookEntry is a resting limit order.
type bookEntry struct {
	Price     decimal.Decimal
	CreatedAt time.Time
	OrderID   string
}

// bidLess orders bids by price descending, then created_at ascending,
// then order id, so Min() is the best bid.
func bidLess(a, b bookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// askLess orders asks by price ascending, then created_at ascending,
// then order id, so Min() is the best ask.
func askLess(a, b bookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// book holds the resting orders of one symbol. It is not safe for
// concurrent use; the Exchange serializes access.
type book struct {
	bids  *btree.BTreeG[bookEntry]
	asks  *btree.BTreeG[bookEntry]
	index map[string]bookEntry
}

func newBook() *book {
	const degree = 32
	return &book{
		bids:  btree.NewG[bookEntry](degree, bidLess),
		asks:  btree.NewG[bookEntry](degree, askLess),
		index: make(map[string]bookEntry),
	}
}

func (b *book) insertBid(e bookEntry) {
	b.bids.ReplaceOrInsert(e)
	b.index[e.OrderID] = e
}

func (b *book) insertAsk(e bookEntry) {
	b.asks.ReplaceOrInsert(e)
	b.index[e.OrderID] = e
}

// remove deletes an order from whichever side holds it.
func (b *book) remove(orderID string) {
	e, ok := b.index[orderID]
	if !ok {
		return
	}
	delete(b.index, orderID)
	b.bids.Delete(e)
	b.asks.Delete(e)
}

// crossed returns the ids of resting orders a mark price executes:
// bids priced at or above mark and asks priced at or below it, best first.
func (b *book) crossed(mark decimal.Decimal) []string {
	var ids []string
	b.bids.Ascend(func(e bookEntry) bool {
		if e.Price.LessThan(mark) {
			return false
		}
		ids = append(ids, e.OrderID)
		return true
	})
	b.asks.Ascend(func(e bookEntry) bool {
		if e.Price.GreaterThan(mark) {
			return false
		}
		ids = append(ids, e.OrderID)
		return true
	})
	return ids
}

func (b *book) size() int {
	return len(b.index)
}
