package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/efreitasn/alertbridge/internal/domain"
	"github.com/google/uuid"
)

// Notifier POSTs each order as JSON to a remote URL.
type Notifier struct {
	url    string
	client *http.Client
}

// NewNotifier creates a Notifier whose requests time out after timeout.
func NewNotifier(url string, timeout time.Duration) *Notifier {
	return &Notifier{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (n *Notifier) Name() string { return "notify" }

// Record delivers the order. Any non-2xx response is an error.
func (n *Notifier) Record(ctx context.Context, order *domain.OrderResult) error {
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", n.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: unexpected status %d", n.url, resp.StatusCode)
	}
	return nil
}
