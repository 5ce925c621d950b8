// Package sink records placed orders to write-only destinations.
package sink

import (
	"context"
	"strconv"
	"time"

	"github.com/efreitasn/alertbridge/internal/domain"
)

// Sink is a one-way destination for placed orders. A Sink failure never
// affects the request that produced the order.
type Sink interface {
	Name() string
	Record(ctx context.Context, order *domain.OrderResult) error
}

// Header names the fields of every recorded row, in order.
var Header = []string{
	"timestamp_utc", "id", "symbol", "side", "type", "price",
	"amount", "status", "filled", "remaining", "info",
}

// Row formats an order as a record stamped with ts. A missing price is
// an empty cell; info is the exchange's raw JSON payload.
func Row(ts time.Time, o *domain.OrderResult) []string {
	price := ""
	if o.Price != nil {
		price = formatFloat(*o.Price)
	}
	return []string{
		ts.UTC().Format(time.RFC3339Nano),
		o.ID,
		o.Symbol,
		string(o.Side),
		string(o.Type),
		price,
		formatFloat(o.Amount),
		string(o.Status),
		formatFloat(o.Filled),
		formatFloat(o.Remaining),
		string(o.Info),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
