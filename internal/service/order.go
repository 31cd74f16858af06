package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"rocinante/internal/model"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderService is the staging store for imported sales orders.
type OrderService struct {
	db *sql.DB
}

func NewOrderService(db *sql.DB) *OrderService {
	return &OrderService{db: db}
}

// Upsert inserts an order or refreshes an existing one keyed by its
// external order number.
func (s *OrderService) Upsert(ctx context.Context, order *model.Order) error {
	products, err := json.Marshal(order.Products)
	if err != nil {
		return fmt.Errorf("marshal products: %w", err)
	}
	installments, err := json.Marshal(order.Installments)
	if err != nil {
		return fmt.Errorf("marshal installments: %w", err)
	}

	var dueDate sql.NullTime
	if order.DueDate != nil {
		dueDate = sql.NullTime{Time: *order.DueDate, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (order_number, order_code, client_order_number, due_date, issue_date, total_value, products, installments, advanced)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (order_number) DO UPDATE SET
			order_code = EXCLUDED.order_code,
			client_order_number = EXCLUDED.client_order_number,
			due_date = EXCLUDED.due_date,
			issue_date = EXCLUDED.issue_date,
			total_value = EXCLUDED.total_value,
			products = EXCLUDED.products,
			installments = EXCLUDED.installments,
			advanced = EXCLUDED.advanced
	`, order.OrderNumber, order.OrderCode, order.ClientOrderNumber, dueDate,
		order.IssueDate, order.TotalValue.StringFixed(2), products, installments, order.Advanced)
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}

	return nil
}

func (s *OrderService) ListAll(ctx context.Context) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_number, order_code, client_order_number, due_date, issue_date, total_value, products, installments, advanced, created_at
		FROM orders
		ORDER BY order_number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return orders, nil
}

func (s *OrderService) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

func (s *OrderService) GetByClientOrderNumber(ctx context.Context, clientOrderNumber string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, order_number, order_code, client_order_number, due_date, issue_date, total_value, products, installments, advanced, created_at
		FROM orders
		WHERE client_order_number = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, clientOrderNumber)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// UpdateInstallments persists a rewritten installment schedule and the
// derived advanced flag.
func (s *OrderService) UpdateInstallments(ctx context.Context, id string, installments []map[string]any, advanced bool) error {
	data, err := json.Marshal(installments)
	if err != nil {
		return fmt.Errorf("marshal installments: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE orders SET installments = $1, advanced = $2 WHERE id = $3`,
		data, advanced, id,
	)
	if err != nil {
		return fmt.Errorf("update installments: %w", err)
	}
	return nil
}

// DeleteByClientOrderNumbers drops successfully advanced staging records.
func (s *OrderService) DeleteByClientOrderNumbers(ctx context.Context, clientOrderNumbers []string) error {
	if len(clientOrderNumbers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, number := range clientOrderNumbers {
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE client_order_number = $1`, number); err != nil {
			return fmt.Errorf("delete order %s: %w", number, err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		order        model.Order
		dueDate      sql.NullTime
		totalValue   string
		products     []byte
		installments []byte
	)

	err := row.Scan(&order.ID, &order.OrderNumber, &order.OrderCode, &order.ClientOrderNumber,
		&dueDate, &order.IssueDate, &totalValue, &products, &installments, &order.Advanced, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if dueDate.Valid {
		due := dueDate.Time
		order.DueDate = &due
	}

	order.TotalValue, err = decimal.NewFromString(totalValue)
	if err != nil {
		return nil, fmt.Errorf("parse total value: %w", err)
	}
	if err := json.Unmarshal(products, &order.Products); err != nil {
		return nil, fmt.Errorf("unmarshal products: %w", err)
	}
	if err := json.Unmarshal(installments, &order.Installments); err != nil {
		return nil, fmt.Errorf("unmarshal installments: %w", err)
	}

	return &order, nil
}
