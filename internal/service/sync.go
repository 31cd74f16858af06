package service

import (
	"context"
	"fmt"
	"log/slog"

	"rocinante/internal/alert"
	"rocinante/internal/model"
)

// OrderLister is the gateway slice the synchronizer needs.
type OrderLister interface {
	ListOrders(ctx context.Context, page int) ([]map[string]any, int, error)
}

// OrderUpserter is the store slice the synchronizer needs.
type OrderUpserter interface {
	Upsert(ctx context.Context, order *model.Order) error
}

// SkipDiagnostic records one payload that could not be staged during a
// sync. Skipped payloads never abort the batch, but they are reported, not
// silently dropped.
type SkipDiagnostic struct {
	OrderNumber string `json:"orderNumber"`
	Reason      string `json:"reason"`
}

type SyncService struct {
	gateway  OrderLister
	orders   OrderUpserter
	notifier alert.Notifier
}

func NewSyncService(gateway OrderLister, orders OrderUpserter, notifier alert.Notifier) *SyncService {
	return &SyncService{gateway: gateway, orders: orders, notifier: notifier}
}

// FetchAll pulls every page of not-yet-invoiced orders from the gateway.
// The page count is re-read from each response, so a count that shifts
// mid-sync is honored. A gateway failure aborts the whole sync.
func (s *SyncService) FetchAll(ctx context.Context) ([]map[string]any, error) {
	var collected []map[string]any

	page := 1
	totalPages := 1
	for page <= totalPages {
		orders, pages, err := s.gateway.ListOrders(ctx, page)
		if err != nil {
			s.notifier.Notify(ctx, alert.Event{
				Subject: "order sync failed",
				Message: fmt.Sprintf("fetching page %d: %v", page, err),
			})
			return nil, fmt.Errorf("fetch orders page %d: %w", page, err)
		}

		for _, order := range orders {
			if invoiced(order) {
				continue
			}
			collected = append(collected, order)
		}

		totalPages = pages
		page++
	}

	return collected, nil
}

// Refresh fetches all open orders and stages each one locally. Payloads
// that fail construction or persistence are skipped and returned as
// diagnostics.
func (s *SyncService) Refresh(ctx context.Context) ([]SkipDiagnostic, error) {
	payloads, err := s.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	var skipped []SkipDiagnostic
	for _, payload := range payloads {
		order, err := model.OrderFromPayload(payload)
		if err != nil {
			slog.Error("skipping order payload", "orderNumber", payloadOrderNumber(payload), "error", err)
			skipped = append(skipped, SkipDiagnostic{OrderNumber: payloadOrderNumber(payload), Reason: err.Error()})
			continue
		}
		if err := s.orders.Upsert(ctx, order); err != nil {
			slog.Error("failed to stage order", "orderNumber", order.OrderNumber, "error", err)
			skipped = append(skipped, SkipDiagnostic{OrderNumber: payloadOrderNumber(payload), Reason: err.Error()})
		}
	}

	if len(skipped) > 0 {
		slog.Warn("sync finished with skipped orders", "skipped", len(skipped))
	}
	return skipped, nil
}

func invoiced(payload map[string]any) bool {
	info, ok := payload["infoCadastro"].(map[string]any)
	if !ok {
		return false
	}
	flag, _ := info["faturado"].(string)
	return flag == "S"
}

// payloadOrderNumber is best effort, for diagnostics only.
func payloadOrderNumber(payload map[string]any) string {
	header, ok := payload["cabecalho"].(map[string]any)
	if !ok {
		return ""
	}
	raw, ok := header["numero_pedido"]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}
