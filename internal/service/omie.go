package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Omie dispatches every operation through one endpoint, selected by the
// "call" field of the request envelope.
const (
	callListOrders  = "ListarPedidos"
	callQueryOrder  = "ConsultarPedido"
	callMutateOrder = "AlterarPedidoVenda"

	listPageSize = 500

	// MutateSuccessStatus is the exact descricao_status Omie returns when
	// AlterarPedidoVenda applied the change.
	MutateSuccessStatus = "Pedido alterado com sucesso!"
)

// GatewayError is any failure talking to the Omie API: transport faults,
// non-200 responses, or responses missing an expected field.
type GatewayError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("omie gateway: %v", e.Err)
	}
	return fmt.Sprintf("omie gateway: unexpected status %d, body: %s", e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

type OmieClient struct {
	apiURL    string
	appKey    string
	appSecret string
	client    *http.Client
}

func NewOmieClient(apiURL, appKey, appSecret string) *OmieClient {
	return &OmieClient{
		apiURL:    apiURL,
		appKey:    appKey,
		appSecret: appSecret,
		// Listing returns up to 500 orders per page; 30s keeps a hung
		// upstream from pinning the request forever.
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type omieEnvelope struct {
	Call      string `json:"call"`
	AppKey    string `json:"app_key"`
	AppSecret string `json:"app_secret"`
	Param     []any  `json:"param"`
}

func (c *OmieClient) call(ctx context.Context, name string, param any) (map[string]any, error) {
	body, err := json.Marshal(omieEnvelope{
		Call:      name,
		AppKey:    c.appKey,
		AppSecret: c.appSecret,
		Param:     []any{param},
	})
	if err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	// UseNumber keeps order values as their exact decimal text instead of
	// float64.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return data, nil
}

// ListOrders fetches one page of orders not yet imported through the API.
// It returns the raw order payloads and the total page count reported by
// the response.
func (c *OmieClient) ListOrders(ctx context.Context, page int) ([]map[string]any, int, error) {
	data, err := c.call(ctx, callListOrders, map[string]any{
		"pagina":               page,
		"registros_por_pagina": listPageSize,
		"apenas_importado_api": "N",
	})
	if err != nil {
		return nil, 0, err
	}

	var orders []map[string]any
	if raw, ok := data["pedido_venda_produto"].([]any); ok {
		for _, item := range raw {
			if order, ok := item.(map[string]any); ok {
				orders = append(orders, order)
			}
		}
	}

	totalPages := 1
	if raw, ok := data["total_de_paginas"]; ok {
		if n, err := toInt(raw); err == nil {
			totalPages = n
		}
	}

	return orders, totalPages, nil
}

// QueryOrder fetches a single order payload by its order number.
func (c *OmieClient) QueryOrder(ctx context.Context, orderNumber any) (map[string]any, error) {
	data, err := c.call(ctx, callQueryOrder, map[string]any{"numero_pedido": orderNumber})
	if err != nil {
		return nil, err
	}
	payload, ok := data["pedido_venda_produto"].(map[string]any)
	if !ok {
		return nil, &GatewayError{Err: fmt.Errorf("field pedido_venda_produto missing from response")}
	}
	return payload, nil
}

// MutateOrder submits a full order mutation and returns the decoded
// response. The caller decides what to make of descricao_status.
func (c *OmieClient) MutateOrder(ctx context.Context, order map[string]any) (map[string]any, error) {
	data, err := c.call(ctx, callMutateOrder, order)
	if err != nil {
		return nil, err
	}
	if _, ok := data["descricao_status"]; !ok {
		return nil, &GatewayError{Err: fmt.Errorf("field descricao_status missing from response")}
	}
	return data, nil
}

func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("unexpected type %T", raw)
	}
}
