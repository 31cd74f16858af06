package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Installment field names on the Omie wire. Installments are kept as the
// opaque maps the API sent, so unknown vendor fields survive a round trip
// through the local store and back into AlterarPedidoVenda.
const (
	InstallmentDueDate     = "data_vencimento"
	InstallmentAdvanceFlag = "parcela_adiantamento"
	InstallmentCategory    = "categoria_adiantamento"
	InstallmentAccount     = "conta_corrente_adiantamento"
)

// advancedStageThreshold: Omie stage codes above this mean the order already
// moved past the point where advancement can be requested.
const advancedStageThreshold = 30

// ConstructionError reports a missing or malformed field while building an
// Order from an external payload. Field holds the vendor field path.
type ConstructionError struct {
	Field string
	Cause error
}

func (e *ConstructionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid field %s: %v", e.Field, e.Cause)
	}
	return "required field missing: " + e.Field
}

func (e *ConstructionError) Unwrap() error { return e.Cause }

type Product struct {
	Code        string          `json:"codigo"`
	Description string          `json:"descricao"`
	UnitValue   decimal.Decimal `json:"valor"`
}

// Order is a sales order staged locally between import and advancement.
type Order struct {
	ID                string           `json:"id"`
	OrderNumber       int64            `json:"numero_pedido"`
	OrderCode         int64            `json:"codigo_pedido"`
	ClientOrderNumber string           `json:"numero_pedido_cliente"`
	DueDate           *time.Time       `json:"data_vencimento,omitempty"`
	IssueDate         time.Time        `json:"data_emissao"`
	TotalValue        decimal.Decimal  `json:"valor_total_pedido"`
	Products          []Product        `json:"produtos"`
	Installments      []map[string]any `json:"parcelas"`
	Advanced          bool             `json:"adiantado"`
	CreatedAt         time.Time        `json:"created_at"`
}

// OrderFromPayload builds an Order from a raw ListarPedidos/ConsultarPedido
// payload. It is pure: persistence is the caller's job. Any missing or
// malformed required field yields a *ConstructionError naming the vendor
// field path.
func OrderFromPayload(payload map[string]any) (*Order, error) {
	header, err := getMap(payload, "cabecalho")
	if err != nil {
		return nil, err
	}
	orderNumber, err := getInt64(header, "numero_pedido", "cabecalho.numero_pedido")
	if err != nil {
		return nil, err
	}
	orderCode, err := getInt64(header, "codigo_pedido", "cabecalho.codigo_pedido")
	if err != nil {
		return nil, err
	}
	stage, err := getInt64(header, "etapa", "cabecalho.etapa")
	if err != nil {
		return nil, err
	}

	extra, err := getMap(payload, "informacoes_adicionais")
	if err != nil {
		return nil, err
	}
	clientOrderNumber, err := getString(extra, "numero_pedido_cliente", "informacoes_adicionais.numero_pedido_cliente")
	if err != nil {
		return nil, err
	}

	installments, err := installmentsFromPayload(payload)
	if err != nil {
		return nil, err
	}
	dueDate, err := installmentDueDate(installments[0], "lista_parcelas.parcela[0].data_vencimento")
	if err != nil {
		return nil, err
	}

	registration, err := getMap(payload, "infoCadastro")
	if err != nil {
		return nil, err
	}
	issueRaw, err := getString(registration, "dInc", "infoCadastro.dInc")
	if err != nil {
		return nil, err
	}
	issueDate, err := ParseDate(issueRaw)
	if err != nil {
		return nil, &ConstructionError{Field: "infoCadastro.dInc", Cause: err}
	}

	totals, err := getMap(payload, "total_pedido")
	if err != nil {
		return nil, err
	}
	totalValue, err := getDecimal(totals, "valor_total_pedido", "total_pedido.valor_total_pedido")
	if err != nil {
		return nil, err
	}

	products, err := productsFromPayload(payload)
	if err != nil {
		return nil, err
	}

	advanced := stage > advancedStageThreshold
	if !advanced {
		for _, inst := range installments {
			if flag, _ := inst[InstallmentAdvanceFlag].(string); flag == "S" {
				advanced = true
				break
			}
		}
	}

	return &Order{
		OrderNumber:       orderNumber,
		OrderCode:         orderCode,
		ClientOrderNumber: clientOrderNumber,
		DueDate:           &dueDate,
		IssueDate:         issueDate,
		TotalValue:        totalValue,
		Products:          products,
		Installments:      installments,
		Advanced:          advanced,
	}, nil
}

func installmentsFromPayload(payload map[string]any) ([]map[string]any, error) {
	list, err := getMap(payload, "lista_parcelas")
	if err != nil {
		return nil, err
	}
	raw, ok := list["parcela"]
	if !ok {
		return nil, &ConstructionError{Field: "lista_parcelas.parcela"}
	}
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		// An order without installment data cannot be staged for advancement.
		return nil, &ConstructionError{Field: "lista_parcelas.parcela", Cause: fmt.Errorf("installment list is empty")}
	}

	installments := make([]map[string]any, 0, len(items))
	for i, item := range items {
		inst, ok := item.(map[string]any)
		if !ok {
			return nil, &ConstructionError{Field: fmt.Sprintf("lista_parcelas.parcela[%d]", i), Cause: fmt.Errorf("not an object")}
		}
		installments = append(installments, inst)
	}
	return installments, nil
}

func installmentDueDate(installment map[string]any, path string) (time.Time, error) {
	raw, ok := installment[InstallmentDueDate].(string)
	if !ok {
		return time.Time{}, &ConstructionError{Field: path}
	}
	due, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, &ConstructionError{Field: path, Cause: err}
	}
	return due, nil
}

func productsFromPayload(payload map[string]any) ([]Product, error) {
	raw, ok := payload["det"]
	if !ok {
		return nil, &ConstructionError{Field: "det"}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &ConstructionError{Field: "det", Cause: fmt.Errorf("not a list")}
	}

	products := make([]Product, 0, len(items))
	for i, item := range items {
		line, ok := item.(map[string]any)
		if !ok {
			return nil, &ConstructionError{Field: fmt.Sprintf("det[%d]", i), Cause: fmt.Errorf("not an object")}
		}
		product, err := getMap(line, "produto")
		if err != nil {
			return nil, &ConstructionError{Field: fmt.Sprintf("det[%d].produto", i)}
		}
		prefix := fmt.Sprintf("det[%d].produto.", i)
		unitValue, err := getDecimal(product, "valor_unitario", prefix+"valor_unitario")
		if err != nil {
			return nil, err
		}
		description, err := getString(product, "descricao", prefix+"descricao")
		if err != nil {
			return nil, err
		}
		code, err := getString(product, "codigo", prefix+"codigo")
		if err != nil {
			return nil, err
		}
		products = append(products, Product{Code: code, Description: description, UnitValue: unitValue})
	}
	return products, nil
}

func getMap(m map[string]any, key string) (map[string]any, error) {
	raw, ok := m[key]
	if !ok {
		return nil, &ConstructionError{Field: key}
	}
	nested, ok := raw.(map[string]any)
	if !ok {
		return nil, &ConstructionError{Field: key, Cause: fmt.Errorf("not an object")}
	}
	return nested, nil
}

func getString(m map[string]any, key, path string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", &ConstructionError{Field: path}
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return "", &ConstructionError{Field: path, Cause: fmt.Errorf("unexpected type %T", raw)}
	}
}

func getInt64(m map[string]any, key, path string) (int64, error) {
	raw, ok := m[key]
	if !ok {
		return 0, &ConstructionError{Field: path}
	}
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, &ConstructionError{Field: path, Cause: err}
		}
		return n, nil
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, &ConstructionError{Field: path, Cause: err}
		}
		return n, nil
	default:
		return 0, &ConstructionError{Field: path, Cause: fmt.Errorf("unexpected type %T", raw)}
	}
}

func getDecimal(m map[string]any, key, path string) (decimal.Decimal, error) {
	raw, ok := m[key]
	if !ok {
		return decimal.Zero, &ConstructionError{Field: path}
	}
	switch v := raw.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, &ConstructionError{Field: path, Cause: err}
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, &ConstructionError{Field: path, Cause: err}
		}
		return d, nil
	default:
		return decimal.Zero, &ConstructionError{Field: path, Cause: fmt.Errorf("unexpected type %T", raw)}
	}
}
