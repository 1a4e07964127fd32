package services

import (
	"context"
	"errors"
	"time"

	"SchoolPayments/internal/gateway"
	"SchoolPayments/internal/models"
	"SchoolPayments/internal/transactions"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrUpstream   = errors.New("failed to create payment link")
)

// Store is the durable home of orders and order statuses. Implemented by
// store.Store (Postgres) and store.Memory.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderByCustomID(ctx context.Context, customOrderID string) (*models.Order, error)
	ListOrdersBySchool(ctx context.Context, schoolID string) ([]models.Order, error)
	ListOrphanedOrders(ctx context.Context, olderThan time.Time) ([]models.Order, error)

	CreateOrderStatus(ctx context.Context, st *models.OrderStatus) error
	GetOrderStatusByCollectID(ctx context.Context, collectRequestID string) (*models.OrderStatus, error)
	GetOrderStatusByOrderID(ctx context.Context, orderID string) (*models.OrderStatus, error)
	UpdateOrderStatus(ctx context.Context, st *models.OrderStatus) error

	ListTransactions(ctx context.Context, p transactions.Params) ([]models.TransactionView, error)
}

type Gateway interface {
	CreateCollectRequest(ctx context.Context, amount decimal.Decimal) (*gateway.CollectRequest, error)
}
