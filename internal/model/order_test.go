package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validPayload() map[string]any {
	return map[string]any{
		"cabecalho": map[string]any{
			"numero_pedido": json.Number("5"),
			"codigo_pedido": json.Number("2095664576"),
			"etapa":         "20",
		},
		"informacoes_adicionais": map[string]any{
			"numero_pedido_cliente": "PC-77",
		},
		"infoCadastro": map[string]any{
			"dInc":     "11/07/2023",
			"faturado": "N",
		},
		"total_pedido": map[string]any{
			"valor_total_pedido": json.Number("150.50"),
		},
		"det": []any{
			map[string]any{
				"produto": map[string]any{
					"codigo":         "1000",
					"descricao":      "Mouse sem fio Microsoft",
					"valor_unitario": json.Number("150.50"),
				},
			},
		},
		"lista_parcelas": map[string]any{
			"parcela": []any{
				map[string]any{
					"data_vencimento": "11/07/2023",
					"numero_parcela":  json.Number("1"),
					"valor":           json.Number("150.50"),
				},
			},
		},
	}
}

func TestOrderFromPayload(t *testing.T) {
	order, err := OrderFromPayload(validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.OrderNumber != 5 {
		t.Errorf("expected order number 5, got %d", order.OrderNumber)
	}
	if order.OrderCode != 2095664576 {
		t.Errorf("expected order code 2095664576, got %d", order.OrderCode)
	}
	if order.ClientOrderNumber != "PC-77" {
		t.Errorf("expected client order number PC-77, got %s", order.ClientOrderNumber)
	}

	wantDate := time.Date(2023, 7, 11, 0, 0, 0, 0, time.UTC)
	if !order.IssueDate.Equal(wantDate) {
		t.Errorf("expected issue date %v, got %v", wantDate, order.IssueDate)
	}
	if order.DueDate == nil || !order.DueDate.Equal(wantDate) {
		t.Errorf("expected due date %v, got %v", wantDate, order.DueDate)
	}

	if !order.TotalValue.Equal(decimal.RequireFromString("150.50")) {
		t.Errorf("expected total 150.50, got %s", order.TotalValue)
	}

	if len(order.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(order.Products))
	}
	product := order.Products[0]
	if product.Code != "1000" || product.Description != "Mouse sem fio Microsoft" {
		t.Errorf("unexpected product: %+v", product)
	}
	if !product.UnitValue.Equal(decimal.RequireFromString("150.50")) {
		t.Errorf("expected unit value 150.50, got %s", product.UnitValue)
	}

	if len(order.Installments) != 1 {
		t.Fatalf("expected 1 installment, got %d", len(order.Installments))
	}
	if got := order.Installments[0]["data_vencimento"]; got != "11/07/2023" {
		t.Errorf("expected installment due date 11/07/2023, got %v", got)
	}

	if order.Advanced {
		t.Errorf("expected order at stage 20 without flags not to be advanced")
	}
}

func TestOrderFromPayloadMissingOrderNumber(t *testing.T) {
	payload := validPayload()
	delete(payload["cabecalho"].(map[string]any), "numero_pedido")

	_, err := OrderFromPayload(payload)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var cerr *ConstructionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConstructionError, got %T", err)
	}
	if cerr.Field != "cabecalho.numero_pedido" {
		t.Errorf("expected field cabecalho.numero_pedido, got %s", cerr.Field)
	}
}

func TestOrderFromPayloadMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{
			name:   "missing client order number",
			mutate: func(p map[string]any) { delete(p["informacoes_adicionais"].(map[string]any), "numero_pedido_cliente") },
			field:  "informacoes_adicionais.numero_pedido_cliente",
		},
		{
			name:   "missing registration info",
			mutate: func(p map[string]any) { delete(p, "infoCadastro") },
			field:  "infoCadastro",
		},
		{
			name:   "missing total",
			mutate: func(p map[string]any) { delete(p["total_pedido"].(map[string]any), "valor_total_pedido") },
			field:  "total_pedido.valor_total_pedido",
		},
		{
			name:   "missing installment list",
			mutate: func(p map[string]any) { delete(p["lista_parcelas"].(map[string]any), "parcela") },
			field:  "lista_parcelas.parcela",
		},
		{
			name:   "empty installment list",
			mutate: func(p map[string]any) { p["lista_parcelas"].(map[string]any)["parcela"] = []any{} },
			field:  "lista_parcelas.parcela",
		},
		{
			name:   "missing product code",
			mutate: func(p map[string]any) { delete(p["det"].([]any)[0].(map[string]any)["produto"].(map[string]any), "codigo") },
			field:  "det[0].produto.codigo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			tt.mutate(payload)

			_, err := OrderFromPayload(payload)
			var cerr *ConstructionError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *ConstructionError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, cerr.Field)
			}
		})
	}
}

func TestOrderFromPayloadBadDate(t *testing.T) {
	payload := validPayload()
	payload["infoCadastro"].(map[string]any)["dInc"] = "2023-07-11"

	_, err := OrderFromPayload(payload)
	var cerr *ConstructionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConstructionError for ISO-formatted date, got %v", err)
	}
	if cerr.Field != "infoCadastro.dInc" {
		t.Errorf("expected field infoCadastro.dInc, got %s", cerr.Field)
	}
}

func TestOrderFromPayloadAdvanced(t *testing.T) {
	t.Run("stage above threshold", func(t *testing.T) {
		payload := validPayload()
		payload["cabecalho"].(map[string]any)["etapa"] = "60"

		order, err := OrderFromPayload(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !order.Advanced {
			t.Error("expected order at stage 60 to be advanced")
		}
	})

	t.Run("installment flagged", func(t *testing.T) {
		payload := validPayload()
		payload["lista_parcelas"].(map[string]any)["parcela"].([]any)[0].(map[string]any)["parcela_adiantamento"] = "S"

		order, err := OrderFromPayload(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !order.Advanced {
			t.Error("expected order with flagged installment to be advanced")
		}
	})
}
