// Package gateio is a minimal Gate.io API v4 spot trading client.
package gateio

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/efreitasn/alertbridge/internal/domain"
	"github.com/efreitasn/alertbridge/internal/exchange"
)

// Base URLs for the live and sandbox (testnet) environments.
const (
	LiveBaseURL    = "https://api.gateio.ws/api/v4"
	SandboxBaseURL = "https://api-testnet.gateapi.io/api/v4"
)

var _ exchange.Client = (*Client)(nil)

// Config configures a Client.
type Config struct {
	APIKey    string
	APISecret string
	Sandbox   bool
	// BaseURL overrides the environment's default base URL when set.
	BaseURL string
	Timeout time.Duration
	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit float64
}

// APIError is a non-2xx response from the exchange.
type APIError struct {
	StatusCode int
	Label      string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateio: %d %s: %s", e.StatusCode, e.Label, e.Message)
}

// market is the subset of a currency pair used for order formatting.
// Precision is the number of quote decimals and AmountPrecision the number
// of base decimals; nil means the pair does not restrict them.
type market struct {
	ID              string `json:"id"`
	Base            string `json:"base"`
	Quote           string `json:"quote"`
	Precision       *int32 `json:"precision"`
	AmountPrecision *int32 `json:"amount_precision"`
	TradeStatus     string `json:"trade_status"`
}

// Client talks to the Gate.io REST API. Market metadata is loaded once
// and cached for the life of the Client.
type Client struct {
	baseURL *url.URL
	key     string
	secret  string
	http    *http.Client
	limiter *rate.Limiter
	now     func() time.Time
	mu      sync.RWMutex
	markets map[string]market // canonical symbol → market
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = LiveBaseURL
		if cfg.Sandbox {
			raw = SandboxBaseURL
		}
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateio: invalid base url %q: %w", raw, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		baseURL: base,
		key:     cfg.APIKey,
		secret:  cfg.APISecret,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		now:     time.Now,
	}, nil
}

// PairID converts a canonical BASE/QUOTE symbol to a Gate.io pair id.
func PairID(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, domain.SymbolSeparator, "_"))
}

// LoadMarkets fetches the spot currency pairs on first use. Later calls
// return immediately.
func (c *Client) LoadMarkets(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.markets != nil
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	var pairs []market
	if _, err := c.do(ctx, http.MethodGet, "/spot/currency_pairs", nil, nil, false, &pairs); err != nil {
		return err
	}

	markets := make(map[string]market, len(pairs))
	for _, p := range pairs {
		markets[p.Base+domain.SymbolSeparator+p.Quote] = p
	}

	c.mu.Lock()
	c.markets = markets
	c.mu.Unlock()
	return nil
}

func (c *Client) market(symbol string) (market, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.markets == nil {
		return market{}, errors.New("gateio: markets not loaded")
	}
	m, ok := c.markets[strings.ToUpper(symbol)]
	if !ok {
		return market{}, fmt.Errorf("gateio: %s: %w", symbol, exchange.ErrUnknownSymbol)
	}
	if m.TradeStatus == "untradable" {
		return market{}, fmt.Errorf("gateio: %s is not tradable", symbol)
	}
	return m, nil
}

// CreateMarketBuyOrder spends amount of the quote currency. Gate.io sizes
// market buys by cost, so amount is formatted with the quote precision.
func (c *Client) CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64, clientID string) (*domain.OrderResult, error) {
	return c.createOrder(ctx, symbol, domain.OrderTypeMarket, domain.OrderSideBuy, amount, nil, clientID)
}

func (c *Client) CreateMarketSellOrder(ctx context.Context, symbol string, amount float64, clientID string) (*domain.OrderResult, error) {
	return c.createOrder(ctx, symbol, domain.OrderTypeMarket, domain.OrderSideSell, amount, nil, clientID)
}

func (c *Client) CreateLimitBuyOrder(ctx context.Context, symbol string, amount, price float64, clientID string) (*domain.OrderResult, error) {
	return c.createOrder(ctx, symbol, domain.OrderTypeLimit, domain.OrderSideBuy, amount, &price, clientID)
}

func (c *Client) CreateLimitSellOrder(ctx context.Context, symbol string, amount, price float64, clientID string) (*domain.OrderResult, error) {
	return c.createOrder(ctx, symbol, domain.OrderTypeLimit, domain.OrderSideSell, amount, &price, clientID)
}

// orderRequest is the body of POST /spot/orders.
type orderRequest struct {
	Text         string `json:"text,omitempty"`
	CurrencyPair string `json:"currency_pair"`
	Type         string `json:"type"`
	Account      string `json:"account"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	Price        string `json:"price,omitempty"`
	TimeInForce  string `json:"time_in_force"`
}

func (c *Client) createOrder(ctx context.Context, symbol string, typ domain.OrderType, side domain.OrderSide, amount float64, price *float64, clientID string) (*domain.OrderResult, error) {
	m, err := c.market(symbol)
	if err != nil {
		return nil, err
	}

	body := orderRequest{
		CurrencyPair: m.ID,
		Type:         string(typ),
		Account:      "spot",
		Side:         string(side),
		Amount:       formatDecimal(amount, m.AmountPrecision),
		TimeInForce:  "gtc",
	}
	if typ == domain.OrderTypeMarket {
		body.TimeInForce = "ioc"
		if side == domain.OrderSideBuy {
			body.Amount = formatDecimal(amount, m.Precision)
		}
	}
	if price != nil {
		body.Price = formatDecimal(*price, m.Precision)
	}
	if clientID != "" {
		body.Text = clientText(clientID)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gateio: marshal order: %w", err)
	}

	var o gateOrder
	raw, err := c.do(ctx, http.MethodPost, "/spot/orders", nil, payload, true, &o)
	if err != nil {
		return nil, err
	}
	return o.toResult(symbol, raw)
}

// FetchOrder returns the current state of order id on symbol.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string) (*domain.OrderResult, error) {
	q := url.Values{}
	q.Set("currency_pair", PairID(symbol))

	var o gateOrder
	raw, err := c.do(ctx, http.MethodGet, "/spot/orders/"+url.PathEscape(id), q, nil, true, &o)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", exchange.ErrOrderNotFound, err)
		}
		return nil, err
	}
	return o.toResult(symbol, raw)
}

// do sends one request and decodes the JSON response into out. path must
// already be escaped. The raw response body is returned for callers that
// keep it.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, signed bool, out any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gateio: rate limit: %w", err)
	}

	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return nil, fmt.Errorf("gateio: invalid path %q: %w", path, err)
	}
	u.Path = unescaped
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateio: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		ts := strconv.FormatInt(c.now().Unix(), 10)
		req.Header.Set("KEY", c.key)
		req.Header.Set("Timestamp", ts)
		req.Header.Set("SIGN", Sign(c.secret, method, u.EscapedPath(), u.RawQuery, body, ts))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateio: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateio: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var e struct {
			Label   string `json:"label"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Label != "" {
			apiErr.Label = e.Label
			apiErr.Message = e.Message
		}
		return nil, apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("gateio: decode response: %w", err)
	}
	return raw, nil
}

// Sign computes the v4 request signature:
// hex(HMAC-SHA512(secret, method\npath\nquery\nhex(SHA512(body))\ntimestamp)).
func Sign(secret, method, path, query string, body []byte, timestamp string) string {
	bodyHash := sha512.Sum512(body)
	payload := strings.Join([]string{
		method,
		path,
		query,
		hex.EncodeToString(bodyHash[:]),
		timestamp,
	}, "\n")
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// clientText formats a caller id as a Gate.io custom order text, which
// must start with "t-" and is capped at 30 bytes.
func clientText(clientID string) string {
	text := clientID
	if !strings.HasPrefix(text, "t-") {
		text = "t-" + text
	}
	if len(text) > 30 {
		text = text[:30]
	}
	return text
}

// formatDecimal renders f truncated to places decimal places. Zero
// places means whole units; nil leaves the value untruncated.
func formatDecimal(f float64, places *int32) string {
	d := decimal.NewFromFloat(f)
	if places != nil && *places >= 0 {
		d = d.Truncate(*places)
	}
	return d.String()
}
