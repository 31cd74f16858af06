package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rocinante/internal/alert"
	"rocinante/internal/model"
)

type memStore struct {
	orders  map[string]*model.Order // keyed by client order number
	updated map[string][]map[string]any
	deleted []string
}

func newMemStore(orders ...*model.Order) *memStore {
	s := &memStore{orders: map[string]*model.Order{}, updated: map[string][]map[string]any{}}
	for _, order := range orders {
		s.orders[order.ClientOrderNumber] = order
	}
	return s
}

func (s *memStore) GetByClientOrderNumber(ctx context.Context, clientOrderNumber string) (*model.Order, error) {
	order, ok := s.orders[clientOrderNumber]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *memStore) UpdateInstallments(ctx context.Context, id string, installments []map[string]any, advanced bool) error {
	for _, order := range s.orders {
		if order.ID == id {
			s.updated[order.ClientOrderNumber] = installments
			order.Installments = installments
			order.Advanced = advanced
			return nil
		}
	}
	return errors.New("order not in store")
}

func (s *memStore) DeleteByClientOrderNumbers(ctx context.Context, clientOrderNumbers []string) error {
	for _, number := range clientOrderNumbers {
		delete(s.orders, number)
		s.deleted = append(s.deleted, number)
	}
	return nil
}

type fakeMutator struct {
	errs      map[int64]error
	statuses  map[int64]string
	mutations []map[string]any
}

func (f *fakeMutator) MutateOrder(ctx context.Context, order map[string]any) (map[string]any, error) {
	f.mutations = append(f.mutations, order)
	code := order["cabecalho"].(map[string]any)["codigo_pedido"].(int64)
	if err, ok := f.errs[code]; ok {
		return nil, err
	}
	status := MutateSuccessStatus
	if s, ok := f.statuses[code]; ok {
		status = s
	}
	return map[string]any{"descricao_status": status}, nil
}

func stagedOrder(id, clientNumber string, code int64, installments int) *model.Order {
	due := time.Date(2023, 7, 11, 0, 0, 0, 0, time.UTC)
	order := &model.Order{
		ID:                id,
		OrderNumber:       code - 1000,
		OrderCode:         code,
		ClientOrderNumber: clientNumber,
		DueDate:           &due,
		IssueDate:         due,
		TotalValue:        decimal.NewFromInt(300),
	}
	for i := 0; i < installments; i++ {
		order.Installments = append(order.Installments, map[string]any{
			"data_vencimento": "11/07/2023",
			"numero_parcela":  i + 1,
			"valor":           100,
		})
	}
	return order
}

func newAdvanceService(gateway OrderMutator, store AdvanceStore) *AdvanceService {
	return NewAdvanceService(gateway, store, alert.Nop{}, "1.04.01", "2135259563")
}

func TestAdvanceRewritesInstallments(t *testing.T) {
	store := newMemStore(stagedOrder("id-a", "PC-1", 2001, 3))
	gateway := &fakeMutator{}

	svc := newAdvanceService(gateway, store)
	result, err := svc.Advance(context.Background(), AdvanceRequest{
		ClientOrderNumbers: []string{"PC-1"},
		StartDueDate:       "15/01/2024",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}

	installments := store.updated["PC-1"]
	if len(installments) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(installments))
	}

	wantDates := []string{"15/01/2024", "15/02/2024", "15/03/2024"}
	for i, installment := range installments {
		if got := installment[model.InstallmentDueDate]; got != wantDates[i] {
			t.Errorf("installment %d: expected due date %s, got %v", i, wantDates[i], got)
		}
		if got := installment[model.InstallmentAdvanceFlag]; got != "S" {
			t.Errorf("installment %d: expected advancement flag S, got %v", i, got)
		}
		if got := installment[model.InstallmentCategory]; got != "1.04.01" {
			t.Errorf("installment %d: expected category 1.04.01, got %v", i, got)
		}
		if got := installment[model.InstallmentAccount]; got != "2135259563" {
			t.Errorf("installment %d: expected account 2135259563, got %v", i, got)
		}
		if got := installment["valor"]; got != 100 {
			t.Errorf("installment %d: value must be untouched, got %v", i, got)
		}
		if got := installment["numero_parcela"]; got != i+1 {
			t.Errorf("installment %d: number must be untouched, got %v", i, got)
		}
	}

	// Advanced upstream, so the staging record is gone.
	if len(store.deleted) != 1 || store.deleted[0] != "PC-1" {
		t.Errorf("expected PC-1 deleted after advancement, got %v", store.deleted)
	}

	if len(gateway.mutations) != 1 {
		t.Fatalf("expected 1 mutation call, got %d", len(gateway.mutations))
	}
	if _, ok := gateway.mutations[0]["lista_parcelas"]; !ok {
		t.Error("expected mutation body to carry lista_parcelas")
	}
}

func TestAdvanceClipsMonthEnds(t *testing.T) {
	store := newMemStore(stagedOrder("id-a", "PC-1", 2001, 3))
	gateway := &fakeMutator{}

	svc := newAdvanceService(gateway, store)
	_, err := svc.Advance(context.Background(), AdvanceRequest{
		ClientOrderNumbers: []string{"PC-1"},
		StartDueDate:       "31/01/2024",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDates := []string{"31/01/2024", "29/02/2024", "31/03/2024"}
	for i, installment := range store.updated["PC-1"] {
		if got := installment[model.InstallmentDueDate]; got != wantDates[i] {
			t.Errorf("installment %d: expected due date %s, got %v", i, wantDates[i], got)
		}
	}
}

func TestAdvanceUnknownOrderDoesNotAbortBatch(t *testing.T) {
	store := newMemStore(
		stagedOrder("id-a", "PC-1", 2001, 1),
		stagedOrder("id-b", "PC-3", 2003, 1),
	)
	gateway := &fakeMutator{}

	svc := newAdvanceService(gateway, store)
	result, err := svc.Advance(context.Background(), AdvanceRequest{
		ClientOrderNumbers: []string{"PC-1", "PC-2", "PC-3"},
		StartDueDate:       "15/01/2024",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly 1 error, got %v", result.Errors)
	}
	if result.Errors[0].ClientOrderNumber != "PC-2" || result.Errors[0].Error != "order not found" {
		t.Errorf("unexpected error entry: %+v", result.Errors[0])
	}

	if len(store.deleted) != 2 {
		t.Errorf("expected the two existing orders to complete, deleted: %v", store.deleted)
	}
}

func TestAdvanceKeepsLocalCopyWhenGatewayFails(t *testing.T) {
	store := newMemStore(
		stagedOrder("id-a", "PC-A", 2001, 2),
		stagedOrder("id-b", "PC-B", 2002, 2),
	)
	gateway := &fakeMutator{errs: map[int64]error{
		2002: &GatewayError{StatusCode: 500, Body: "boom"},
	}}

	svc := newAdvanceService(gateway, store)
	result, err := svc.Advance(context.Background(), AdvanceRequest{
		ClientOrderNumbers: []string{"PC-A", "PC-B"},
		StartDueDate:       "15/01/2024",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.deleted) != 1 || store.deleted[0] != "PC-A" {
		t.Errorf("expected only PC-A deleted, got %v", store.deleted)
	}
	if len(result.Errors) != 1 || result.Errors[0].ClientOrderNumber != "PC-B" {
		t.Fatalf("expected PC-B in errors, got %v", result.Errors)
	}

	// The mutated schedule stays staged: no rollback on upstream failure.
	remaining, err := store.GetByClientOrderNumber(context.Background(), "PC-B")
	if err != nil {
		t.Fatalf("PC-B must still be staged: %v", err)
	}
	if !remaining.Advanced {
		t.Error("expected PC-B to keep its advanced-intent flag")
	}
	if got := remaining.Installments[0][model.InstallmentAdvanceFlag]; got != "S" {
		t.Errorf("expected PC-B installments to keep the advancement flag, got %v", got)
	}
}

func TestAdvanceRejectedStatusIsPerOrderError(t *testing.T) {
	store := newMemStore(stagedOrder("id-a", "PC-1", 2001, 1))
	gateway := &fakeMutator{statuses: map[int64]string{
		2001: "Pedido não encontrado",
	}}

	svc := newAdvanceService(gateway, store)
	result, err := svc.Advance(context.Background(), AdvanceRequest{
		ClientOrderNumbers: []string{"PC-1"},
		StartDueDate:       "15/01/2024",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Errors) != 1 || result.Errors[0].Error != "failed to mutate order" {
		t.Fatalf("expected failed-to-mutate error, got %v", result.Errors)
	}
	if len(store.deleted) != 0 {
		t.Errorf("expected nothing deleted, got %v", store.deleted)
	}
}

func TestAdvanceMalformedDateIsFatal(t *testing.T) {
	store := newMemStore(stagedOrder("id-a", "PC-1", 2001, 1))

	svc := newAdvanceService(&fakeMutator{}, store)
	_, err := svc.Advance(context.Background(), AdvanceRequest{
		ClientOrderNumbers: []string{"PC-1"},
		StartDueDate:       "2024-01-15",
	})
	if err == nil {
		t.Fatal("expected a fatal batch error for a malformed start date")
	}
	if len(store.updated) != 0 {
		t.Errorf("expected no installment updates, got %v", store.updated)
	}
}

func TestAdvanceResultAllNotFound(t *testing.T) {
	result := &AdvanceResult{Errors: []OrderError{
		{ClientOrderNumber: "PC-1", Error: "order not found"},
		{ClientOrderNumber: "PC-2", Error: "order not found"},
	}}
	if !result.AllNotFound(2) {
		t.Error("expected AllNotFound for two lookup misses")
	}
	if result.AllNotFound(3) {
		t.Error("expected false when some orders succeeded")
	}

	mixed := &AdvanceResult{Errors: []OrderError{
		{ClientOrderNumber: "PC-1", Error: "order not found"},
		{ClientOrderNumber: "PC-2", Error: "failed to mutate order"},
	}}
	if mixed.AllNotFound(2) {
		t.Error("expected false for mixed error kinds")
	}
}
