// Package exchange defines the capabilities the order submitter needs
// from a trading venue. Implementations live in subpackages.
package exchange

import (
	"context"
	"errors"

	"github.com/efreitasn/alertbridge/internal/domain"
)

// ErrUnknownSymbol is returned when the venue does not list the market.
var ErrUnknownSymbol = errors.New("unknown_symbol")

// ErrOrderNotFound is returned by FetchOrder for an id the venue does not know.
var ErrOrderNotFound = errors.New("order_not_found")

// Client is an exchange trading session. Symbols are in canonical
// BASE/QUOTE form. clientID is an optional caller-supplied tag that
// venues attach to the order when they support one.
type Client interface {
	// LoadMarkets refreshes market metadata. It must succeed before any
	// order call; implementations may cache after the first success.
	LoadMarkets(ctx context.Context) error

	CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64, clientID string) (*domain.OrderResult, error)
	CreateMarketSellOrder(ctx context.Context, symbol string, amount float64, clientID string) (*domain.OrderResult, error)
	CreateLimitBuyOrder(ctx context.Context, symbol string, amount, price float64, clientID string) (*domain.OrderResult, error)
	CreateLimitSellOrder(ctx context.Context, symbol string, amount, price float64, clientID string) (*domain.OrderResult, error)

	// FetchOrder returns the current state of an order by id.
	FetchOrder(ctx context.Context, id, symbol string) (*domain.OrderResult, error)
}
