package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rocinante/internal/alert"
	"rocinante/internal/model"
)

var errMutateFailed = errors.New("failed to mutate order")

// OrderMutator is the gateway slice the advancement processor needs.
type OrderMutator interface {
	MutateOrder(ctx context.Context, order map[string]any) (map[string]any, error)
}

// AdvanceStore is the store slice the advancement processor needs.
type AdvanceStore interface {
	GetByClientOrderNumber(ctx context.Context, clientOrderNumber string) (*model.Order, error)
	UpdateInstallments(ctx context.Context, id string, installments []map[string]any, advanced bool) error
	DeleteByClientOrderNumbers(ctx context.Context, clientOrderNumbers []string) error
}

type AdvanceRequest struct {
	ClientOrderNumbers []string `json:"clientOrderNumbers"`
	StartDueDate       string   `json:"startDueDate"`
}

type OrderError struct {
	ClientOrderNumber string `json:"clientOrderNumber"`
	Error             string `json:"error"`
}

type AdvanceResult struct {
	Message string       `json:"message"`
	Errors  []OrderError `json:"errors,omitempty"`
}

// AllNotFound reports whether every requested order failed lookup, the one
// case the HTTP surface maps to 404 instead of an aggregate failure.
func (r *AdvanceResult) AllNotFound(requested int) bool {
	if len(r.Errors) != requested || requested == 0 {
		return false
	}
	for _, e := range r.Errors {
		if e.Error != ErrOrderNotFound.Error() {
			return false
		}
	}
	return true
}

// AdvanceService rewrites installment schedules for a batch of staged
// orders and pushes each mutation upstream.
type AdvanceService struct {
	gateway  OrderMutator
	orders   AdvanceStore
	notifier alert.Notifier
	category string
	account  string
}

func NewAdvanceService(gateway OrderMutator, orders AdvanceStore, notifier alert.Notifier, category, account string) *AdvanceService {
	return &AdvanceService{
		gateway:  gateway,
		orders:   orders,
		notifier: notifier,
		category: category,
		account:  account,
	}
}

// Advance processes each client order number independently: one bad order
// is recorded and never aborts the rest of the batch. Orders advanced
// upstream are removed from the staging store afterwards. A malformed
// start date is fatal to the whole batch.
func (s *AdvanceService) Advance(ctx context.Context, req AdvanceRequest) (*AdvanceResult, error) {
	start, err := model.ParseDate(req.StartDueDate)
	if err != nil {
		return nil, fmt.Errorf("parse start due date: %w", err)
	}

	var advanced []string
	var orderErrors []OrderError

	for _, clientNumber := range req.ClientOrderNumbers {
		if err := s.advanceOne(ctx, clientNumber, start); err != nil {
			slog.Error("failed to advance order", "clientOrderNumber", clientNumber, "error", err)
			orderErrors = append(orderErrors, OrderError{ClientOrderNumber: clientNumber, Error: err.Error()})
			continue
		}
		slog.Info("order advanced", "clientOrderNumber", clientNumber)
		advanced = append(advanced, clientNumber)
	}

	if len(advanced) > 0 {
		if err := s.orders.DeleteByClientOrderNumbers(ctx, advanced); err != nil {
			return nil, fmt.Errorf("delete advanced orders: %w", err)
		}
	}

	if len(orderErrors) > 0 {
		s.notifier.Notify(ctx, alert.Event{
			Subject: "order advancement errors",
			Message: fmt.Sprintf("%d of %d orders failed to advance", len(orderErrors), len(req.ClientOrderNumbers)),
		})
		return &AdvanceResult{Message: "errors found while advancing orders", Errors: orderErrors}, nil
	}

	return &AdvanceResult{Message: "all orders advanced successfully"}, nil
}

func (s *AdvanceService) advanceOne(ctx context.Context, clientNumber string, start time.Time) error {
	order, err := s.orders.GetByClientOrderNumber(ctx, clientNumber)
	if err != nil {
		return err
	}

	// Installment i falls due i calendar months after the start date,
	// installment 1 on the start date itself.
	for i, installment := range order.Installments {
		installment[model.InstallmentAdvanceFlag] = "S"
		installment[model.InstallmentCategory] = s.category
		installment[model.InstallmentAccount] = s.account
		installment[model.InstallmentDueDate] = model.FormatDate(model.AddMonths(start, i))
	}

	// Persisted before the upstream call, and kept if that call fails:
	// the advanced-intent schedule stays staged so the batch can be
	// re-sent as-is.
	if err := s.orders.UpdateInstallments(ctx, order.ID, order.Installments, true); err != nil {
		return fmt.Errorf("persist installments: %w", err)
	}

	mutation := map[string]any{
		"cabecalho":      map[string]any{"codigo_pedido": order.OrderCode},
		"lista_parcelas": map[string]any{"parcela": order.Installments},
	}
	resp, err := s.gateway.MutateOrder(ctx, mutation)
	if err != nil {
		return err
	}

	if status, _ := resp["descricao_status"].(string); status != MutateSuccessStatus {
		return errMutateFailed
	}

	return nil
}
