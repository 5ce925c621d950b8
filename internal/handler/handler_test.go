package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/alertbridge/internal/clock"
	"github.com/efreitasn/alertbridge/internal/domain"
	"github.com/efreitasn/alertbridge/internal/exchange/exchangetest"
	"github.com/efreitasn/alertbridge/internal/service"
	"github.com/efreitasn/alertbridge/internal/sink"
)

// stubSink records order ids and optionally fails.
type stubSink struct {
	name string
	err  error

	mu  sync.Mutex
	ids []string
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Record(_ context.Context, o *domain.OrderResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, o.ID)
	return s.err
}

func (s *stubSink) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router     http.Handler
	exchange   *exchangetest.Fake
	clock      *clock.Fake
	dispatcher *sink.Dispatcher
}

func newTestEnv(t *testing.T, sinks ...sink.Sink) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ex := exchangetest.New()
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	orders := service.NewOrderService(ex, service.RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second}, clk, logger)
	d := sink.NewDispatcher(2, 16, logger)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	alerts := service.NewAlertService(orders, d, sinks, logger)

	return &testEnv{
		router:     NewRouter(alerts, nil, logger, nil),
		exchange:   ex,
		clock:      clk,
		dispatcher: d,
	}
}

// doJSON sends a JSON request and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a raw request with optional content-type override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// decodeJSON decodes the response body into v.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

// drain closes the dispatcher so every queued sink job has run.
func (env *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.dispatcher.Close(ctx); err != nil {
		t.Fatalf("close dispatcher: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doJSON(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]string
	decodeJSON(t, rr, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestWebhook_MarketBuy(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/webhook", map[string]any{
		"symbol":   "BTC_USDT",
		"action":   "BUY",
		"quantity": 0.01,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Status  string              `json:"status"`
		OrderID string              `json:"order_id"`
		Raw     *domain.OrderResult `json:"raw"`
	}
	decodeJSON(t, rr, &body)
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.OrderID != "fake-1" {
		t.Errorf("order_id = %q, want fake-1", body.OrderID)
	}
	if body.Raw == nil || body.Raw.ID != body.OrderID || body.Raw.Symbol != "BTC/USDT" {
		t.Errorf("unexpected raw order: %+v", body.Raw)
	}
	if n := env.exchange.Count(exchangetest.MethodMarketBuy); n != 1 {
		t.Errorf("market buy calls = %d, want 1", n)
	}
}

func TestWebhook_LimitSell(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/webhook", map[string]any{
		"symbol":     "ETH/USDT",
		"action":     "sell",
		"quantity":   2,
		"order_type": "LIMIT",
		"price":      3300.5,
		"client_id":  "tv-42",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	calls := env.exchange.Calls()
	last := calls[len(calls)-1]
	if last.Method != exchangetest.MethodLimitSell || last.Price != 3300.5 || last.ClientID != "tv-42" {
		t.Errorf("unexpected placement: %+v", last)
	}
}

func TestWebhook_IgnoresUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doRaw(t, http.MethodPost, "/webhook", "application/json",
		`{"symbol":"BTC/USDT","action":"buy","quantity":1,"strategy":"ema-cross","interval":"1h"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestWebhook_InvalidAction(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/webhook", map[string]any{
		"symbol":   "BTC/USDT",
		"action":   "HOLD",
		"quantity": 1,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var body errorResponse
	decodeJSON(t, rr, &body)
	if body.Error != "validation_error" {
		t.Errorf("error = %q, want validation_error", body.Error)
	}
	if n := len(env.exchange.Calls()); n != 0 {
		t.Errorf("exchange called %d times, want 0", n)
	}
}

func TestWebhook_LimitWithoutPrice(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/webhook", map[string]any{
		"symbol":     "BTC/USDT",
		"action":     "buy",
		"quantity":   1,
		"order_type": "limit",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var body errorResponse
	decodeJSON(t, rr, &body)
	if body.Message != "Missing price for limit order" {
		t.Errorf("message = %q", body.Message)
	}
	if n := len(env.exchange.Calls()); n != 0 {
		t.Errorf("exchange called %d times, want 0", n)
	}
}

func TestWebhook_EmptyOrderTypeRejected(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, http.MethodPost, "/webhook", map[string]any{
		"symbol":     "BTC/USDT",
		"action":     "buy",
		"quantity":   1,
		"order_type": "",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var body errorResponse
	decodeJSON(t, rr, &body)
	if body.Error != "validation_error" {
		t.Errorf("error = %q, want validation_error", body.Error)
	}
	if n := len(env.exchange.Calls()); n != 0 {
		t.Errorf("exchange called %d times, want 0", n)
	}
}

func TestWebhook_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	cases := []map[string]any{
		{"action": "buy", "quantity": 1},
		{"symbol": "BTC/USDT", "quantity": 1},
		{"symbol": "BTC/USDT", "action": "buy"},
	}
	for _, body := range cases {
		rr := env.doJSON(t, http.MethodPost, "/webhook", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %d", body, rr.Code)
			continue
		}
		var resp errorResponse
		decodeJSON(t, rr, &resp)
		if resp.Error != "invalid_request" {
			t.Errorf("%v: error = %q, want invalid_request", body, resp.Error)
		}
	}
}

func TestWebhook_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doRaw(t, http.MethodPost, "/webhook", "application/json", `{"symbol":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestWebhook_RequiresJSONContentType(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doRaw(t, http.MethodPost, "/webhook", "text/plain",
		`{"symbol":"BTC/USDT","action":"buy","quantity":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if n := len(env.exchange.Calls()); n != 0 {
		t.Errorf("exchange called %d times, want 0", n)
	}
}

func TestWebhook_PlacementFailure(t *testing.T) {
	env := newTestEnv(t)
	env.exchange.CreateErrs = []error{
		errors.New("503 one"),
		errors.New("503 two"),
		errors.New("insufficient balance"),
	}

	rr := env.doJSON(t, http.MethodPost, "/webhook", map[string]any{
		"symbol":   "BTC/USDT",
		"action":   "buy",
		"quantity": 1,
	})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rr.Code, rr.Body.String())
	}
	var body errorResponse
	decodeJSON(t, rr, &body)
	if body.Error != "order_placement_failed" {
		t.Errorf("error = %q, want order_placement_failed", body.Error)
	}
	if !strings.HasPrefix(body.Message, "Order placement failed: ") || !strings.Contains(body.Message, "insufficient balance") {
		t.Errorf("message = %q, want the last cause", body.Message)
	}
	if n := env.exchange.CreateCount(); n != 3 {
		t.Errorf("create calls = %d, want 3", n)
	}
	if n := len(env.clock.Delays()); n != 2 {
		t.Errorf("delays = %d, want 2", n)
	}
}

func TestWebhook_SinkFailureDoesNotAffectResponse(t *testing.T) {
	bad := &stubSink{name: "csv", err: errors.New("permission denied")}
	good := &stubSink{name: "notify"}
	env := newTestEnv(t, bad, good)

	rr := env.doJSON(t, http.MethodPost, "/webhook", map[string]any{
		"symbol":   "BTC/USDT",
		"action":   "buy",
		"quantity": 1,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	env.drain(t)
	for _, s := range []*stubSink{bad, good} {
		if got := s.recorded(); len(got) != 1 || got[0] != "fake-1" {
			t.Errorf("sink %s recorded %v, want [fake-1]", s.name, got)
		}
	}
}

func TestWebhook_FailureSkipsSinks(t *testing.T) {
	s := &stubSink{name: "csv"}
	env := newTestEnv(t, s)
	env.exchange.CreateErrs = []error{errors.New("a"), errors.New("b"), errors.New("c")}

	rr := env.doJSON(t, http.MethodPost, "/webhook", map[string]any{
		"symbol":   "BTC/USDT",
		"action":   "buy",
		"quantity": 1,
	})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	env.drain(t)
	if got := s.recorded(); len(got) != 0 {
		t.Errorf("sink recorded %v, want nothing", got)
	}
}

func TestWebhook_CORS(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ex := exchangetest.New()
	orders := service.NewOrderService(ex, service.RetryPolicy{MaxAttempts: 1}, clock.NewFake(time.Now()), logger)
	d := sink.NewDispatcher(1, 1, logger)
	defer d.Close(context.Background())
	router := NewRouter(service.NewAlertService(orders, d, nil, logger), nil, logger, []string{"https://example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/webhook", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want https://example.com", got)
	}
}
