package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/efreitasn/alertbridge/internal/domain"
	"github.com/efreitasn/alertbridge/internal/service"
)

// WebhookHandler handles inbound trading alerts.
type WebhookHandler struct {
	alertSvc *service.AlertService
	logger   *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(alertSvc *service.AlertService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{alertSvc: alertSvc, logger: logger}
}

// alertRequest is the JSON request body for POST /webhook.
type alertRequest struct {
	Symbol    string   `json:"symbol"`
	Action    string   `json:"action"`
	Quantity  *float64 `json:"quantity"`
	OrderType *string  `json:"order_type"`
	Price     *float64 `json:"price"`
	ClientID  string   `json:"client_id"`
}

// alertResponse is the JSON response for an accepted alert.
type alertResponse struct {
	Status  string              `json:"status"`
	OrderID string              `json:"order_id"`
	Raw     *domain.OrderResult `json:"raw"`
}

type placeResult struct {
	order *domain.OrderResult
	err   error
}

// Receive handles POST /webhook.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Symbol == "" || req.Action == "" || req.Quantity == nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "symbol, action and quantity are required")
		return
	}

	alert := service.Alert{
		Symbol:    req.Symbol,
		Action:    req.Action,
		Quantity:  *req.Quantity,
		OrderType: req.OrderType,
		Price:     req.Price,
		ClientID:  req.ClientID,
	}

	// The retry loop outlives a disconnected client so that a placed
	// order is always recorded.
	ctx := context.WithoutCancel(r.Context())
	done := make(chan placeResult, 1)
	go func() {
		order, err := h.alertSvc.Place(ctx, alert)
		done <- placeResult{order: order, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			h.mapAlertError(w, res.err)
			return
		}
		WriteJSON(w, http.StatusOK, alertResponse{
			Status:  "ok",
			OrderID: res.order.ID,
			Raw:     res.order,
		})
		h.alertSvc.Record(res.order)
	case <-r.Context().Done():
		h.logger.Warn("client disconnected before order completed",
			slog.String("symbol", req.Symbol),
			slog.String("action", req.Action),
		)
		go func() {
			if res := <-done; res.err == nil {
				h.alertSvc.Record(res.order)
			}
		}()
	}
}

// mapAlertError maps domain errors to HTTP responses for the webhook endpoint.
func (h *WebhookHandler) mapAlertError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	var placementErr *domain.OrderPlacementError
	if errors.As(err, &placementErr) {
		h.logger.Error("order placement failed",
			slog.Int("attempts", placementErr.Attempts),
			slog.String("error", placementErr.Err.Error()),
		)
		WriteError(w, http.StatusInternalServerError, "order_placement_failed",
			"Order placement failed: "+placementErr.Err.Error())
		return
	}

	h.logger.Error("unexpected error", slog.String("error", err.Error()))
	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}
