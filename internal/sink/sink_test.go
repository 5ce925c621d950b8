package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/alertbridge/internal/domain"
)

var testTime = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOrder() *domain.OrderResult {
	price := 64250.5
	return &domain.OrderResult{
		ID:        "123456",
		Symbol:    "BTC/USDT",
		Side:      domain.OrderSideBuy,
		Type:      domain.OrderTypeLimit,
		Price:     &price,
		Amount:    0.01,
		Status:    domain.OrderStatusClosed,
		Filled:    0.01,
		Remaining: 0,
		Timestamp: testTime,
		Info:      json.RawMessage(`{"id":"123456"}`),
	}
}

// recordingSink records every order it sees and optionally fails or panics.
type recordingSink struct {
	name   string
	err    error
	panics bool

	mu     sync.Mutex
	orders []*domain.OrderResult
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Record(_ context.Context, o *domain.OrderResult) error {
	s.mu.Lock()
	s.orders = append(s.orders, o)
	s.mu.Unlock()
	if s.panics {
		panic("boom")
	}
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func TestRow_Fields(t *testing.T) {
	row := Row(testTime, testOrder())
	want := []string{
		"2025-03-14T15:09:26Z", "123456", "BTC/USDT", "buy", "limit", "64250.5",
		"0.01", "closed", "0.01", "0", `{"id":"123456"}`,
	}
	if len(row) != len(Header) {
		t.Fatalf("row has %d fields, header has %d", len(row), len(Header))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("field %s = %q, want %q", Header[i], row[i], want[i])
		}
	}
}

func TestRow_MissingPriceAndInfo(t *testing.T) {
	o := testOrder()
	o.Price = nil
	o.Info = nil
	row := Row(testTime, o)
	if row[5] != "" {
		t.Errorf("price = %q, want empty", row[5])
	}
	if row[10] != "" {
		t.Errorf("info = %q, want empty", row[10])
	}
}

func TestRow_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	row := Row(testTime.In(loc), testOrder())
	if row[0] != "2025-03-14T15:09:26Z" {
		t.Errorf("timestamp = %q, want UTC", row[0])
	}
}

func TestSinkError_WrapsCause(t *testing.T) {
	cause := errors.New("nope")
	err := &domain.SinkError{Sink: "csv", OrderID: "1", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("SinkError should unwrap to its cause")
	}
}
