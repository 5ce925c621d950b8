package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/alertbridge/internal/domain"
	"github.com/efreitasn/alertbridge/internal/exchange"
	"github.com/efreitasn/alertbridge/internal/exchange/paper"
	"github.com/efreitasn/alertbridge/internal/service"
)

// PaperHandler drives the simulated exchange during dry runs.
type PaperHandler struct {
	venue    *paper.Exchange
	alertSvc *service.AlertService
	logger   *slog.Logger
}

// NewPaperHandler creates a new PaperHandler.
func NewPaperHandler(venue *paper.Exchange, alertSvc *service.AlertService, logger *slog.Logger) *PaperHandler {
	return &PaperHandler{venue: venue, alertSvc: alertSvc, logger: logger}
}

// setPriceRequest is the JSON request body for POST /paper/prices.
type setPriceRequest struct {
	Symbol string   `json:"symbol"`
	Price  *float64 `json:"price"`
}

// setPriceResponse reports the orders the new mark filled.
type setPriceResponse struct {
	Symbol  string                `json:"symbol"`
	Price   float64               `json:"price"`
	Filled  []*domain.OrderResult `json:"filled"`
	Resting int                   `json:"resting"`
}

// SetPrice handles POST /paper/prices. Orders filled by the move are
// recorded to the sinks like any other placed order.
func (h *PaperHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Symbol == "" || req.Price == nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "symbol and price are required")
		return
	}
	if *req.Price <= 0 {
		WriteError(w, http.StatusBadRequest, "validation_error", "price must be > 0")
		return
	}

	symbol := domain.NormalizeSymbol(req.Symbol)
	ids, err := h.venue.SetPrice(symbol, *req.Price)
	if err != nil {
		mapPaperError(w, err)
		return
	}

	filled := make([]*domain.OrderResult, 0, len(ids))
	for _, id := range ids {
		order, err := h.venue.FetchOrder(r.Context(), id, symbol)
		if err != nil {
			h.logger.Error("filled order vanished", slog.String("order_id", id), slog.String("error", err.Error()))
			continue
		}
		filled = append(filled, order)
	}

	h.logger.Info("paper mark moved",
		slog.String("symbol", symbol),
		slog.Float64("price", *req.Price),
		slog.Int("filled", len(filled)),
	)
	WriteJSON(w, http.StatusOK, setPriceResponse{
		Symbol:  symbol,
		Price:   *req.Price,
		Filled:  filled,
		Resting: h.venue.Resting(symbol),
	})
	for _, order := range filled {
		h.alertSvc.Record(order)
	}
}

// CancelOrder handles DELETE /paper/orders/{order_id}.
func (h *PaperHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.venue.Cancel(chi.URLParam(r, "order_id"))
	if err != nil {
		mapPaperError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, order)
}

// mapPaperError maps simulated exchange errors to HTTP responses.
func mapPaperError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exchange.ErrUnknownSymbol):
		WriteError(w, http.StatusNotFound, "unknown_symbol", err.Error())
	case errors.Is(err, exchange.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, paper.ErrOrderNotActive):
		WriteError(w, http.StatusConflict, "order_not_active", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
