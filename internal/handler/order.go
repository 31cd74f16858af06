package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"rocinante/internal/model"
	"rocinante/internal/service"
)

// OrderStore is the slice of the order staging store the handlers need.
type OrderStore interface {
	Count(ctx context.Context) (int, error)
	ListAll(ctx context.Context) ([]model.Order, error)
	Upsert(ctx context.Context, order *model.Order) error
}

// Syncer refreshes the staging store from the external API.
type Syncer interface {
	Refresh(ctx context.Context) ([]service.SkipDiagnostic, error)
}

// Advancer runs the installment advancement batch.
type Advancer interface {
	Advance(ctx context.Context, req service.AdvanceRequest) (*service.AdvanceResult, error)
}

// Gateway is the slice of the Omie client the handlers call directly.
type Gateway interface {
	QueryOrder(ctx context.Context, orderNumber any) (map[string]any, error)
	MutateOrder(ctx context.Context, order map[string]any) (map[string]any, error)
}

type orderProjection struct {
	OrderNumber       int64           `json:"orderNumber"`
	ClientOrderNumber string          `json:"clientOrderNumber"`
	DueDate           *string         `json:"dueDate"`
	IssueDate         string          `json:"issueDate"`
	TotalValue        decimal.Decimal `json:"totalValue"`
	Products          []model.Product `json:"products"`
}

// ListOrdersHandler returns the staged orders, pulling them from the
// external API first when the store is empty.
func ListOrdersHandler(orders OrderStore, sync Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := orders.Count(r.Context())
		if err != nil {
			slog.Error("failed to count orders", "error", err)
			respondMessage(w, http.StatusInternalServerError, "internal error")
			return
		}

		if count == 0 {
			skipped, err := sync.Refresh(r.Context())
			if err != nil {
				slog.Error("order sync failed", "error", err)
				respondMessage(w, http.StatusInternalServerError, err.Error())
				return
			}
			for _, skip := range skipped {
				slog.Warn("order skipped during sync", "orderNumber", skip.OrderNumber, "reason", skip.Reason)
			}
		}

		staged, err := orders.ListAll(r.Context())
		if err != nil {
			slog.Error("failed to list orders", "error", err)
			respondMessage(w, http.StatusInternalServerError, "internal error")
			return
		}

		projections := make([]orderProjection, 0, len(staged))
		for _, order := range staged {
			p := orderProjection{
				OrderNumber:       order.OrderNumber,
				ClientOrderNumber: order.ClientOrderNumber,
				IssueDate:         model.FormatDate(order.IssueDate),
				TotalValue:        order.TotalValue,
				Products:          order.Products,
			}
			if order.DueDate != nil {
				due := model.FormatDate(*order.DueDate)
				p.DueDate = &due
			}
			projections = append(projections, p)
		}

		respondJSON(w, http.StatusOK, projections)
	}
}

// MutateOrderHandler proxies a raw order mutation straight to the gateway
// and relays its response verbatim.
func MutateOrderHandler(gateway Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber() // keep order values as their exact decimal text
		var order map[string]any
		if err := dec.Decode(&order); err != nil {
			respondMessage(w, http.StatusBadRequest, "invalid json")
			return
		}

		resp, err := gateway.MutateOrder(r.Context(), order)
		if err != nil {
			slog.Error("order mutation failed", "error", err)
			respondMessage(w, http.StatusInternalServerError, err.Error())
			return
		}

		respondJSON(w, http.StatusOK, resp)
	}
}

// AdvanceOrdersHandler runs the advancement batch and maps its aggregate
// result onto the response.
func AdvanceOrdersHandler(advancer Advancer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.AdvanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(w, http.StatusBadRequest, "invalid json")
			return
		}
		if len(req.ClientOrderNumbers) == 0 {
			respondMessage(w, http.StatusBadRequest, "clientOrderNumbers required")
			return
		}
		if _, err := model.ParseDate(req.StartDueDate); err != nil {
			respondMessage(w, http.StatusBadRequest, "startDueDate must be DD/MM/YYYY")
			return
		}

		result, err := advancer.Advance(r.Context(), req)
		if err != nil {
			slog.Error("advancement batch failed", "error", err)
			respondMessage(w, http.StatusInternalServerError, err.Error())
			return
		}

		switch {
		case len(result.Errors) == 0:
			respondJSON(w, http.StatusOK, result)
		case result.AllNotFound(len(req.ClientOrderNumbers)):
			respondMessage(w, http.StatusNotFound, "no orders found to advance")
		default:
			respondJSON(w, http.StatusInternalServerError, result)
		}
	}
}

type webhookRequest struct {
	OrderNumber any `json:"orderNumber"`
}

// WebhookHandler ingests a single-order push: the external system tells us
// an order changed, we pull its full payload and stage it.
func WebhookHandler(gateway Gateway, orders OrderStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.OrderNumber == nil {
			respondMessage(w, http.StatusBadRequest, "orderNumber required")
			return
		}

		payload, err := gateway.QueryOrder(r.Context(), req.OrderNumber)
		if err != nil {
			slog.Error("webhook order query failed", "orderNumber", req.OrderNumber, "error", err)
			respondMessage(w, http.StatusInternalServerError, err.Error())
			return
		}

		order, err := model.OrderFromPayload(payload)
		if err != nil {
			slog.Error("webhook order construction failed", "orderNumber", req.OrderNumber, "error", err)
			respondMessage(w, http.StatusInternalServerError, err.Error())
			return
		}

		if err := orders.Upsert(r.Context(), order); err != nil {
			slog.Error("webhook order upsert failed", "orderNumber", req.OrderNumber, "error", err)
			respondMessage(w, http.StatusInternalServerError, "internal error")
			return
		}

		respondMessage(w, http.StatusOK, "order saved successfully")
	}
}
