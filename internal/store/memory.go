package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SchoolPayments/internal/models"
	"SchoolPayments/internal/transactions"

	"github.com/google/uuid"
)

// Memory is an in-process store with the same contract as the Postgres
// Store, including its uniqueness constraints. Used for local runs
// (db.driver=memory) and tests.
type Memory struct {
	mu         sync.RWMutex
	orders     []models.Order
	statuses   map[string]*models.OrderStatus // by collect_request_id
	byCustomID map[string]int
	byOrderID  map[string]string // order id -> collect_request_id
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		statuses:   make(map[string]*models.OrderStatus),
		byCustomID: make(map[string]int),
		byOrderID:  make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byCustomID[order.CustomOrderID]; ok {
		return fmt.Errorf("%w: custom_order_id %s", ErrConflict, order.CustomOrderID)
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := m.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	m.byCustomID[order.CustomOrderID] = len(m.orders)
	m.orders = append(m.orders, *order)
	return nil
}

func (m *Memory) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetOrderByCustomID(ctx context.Context, customOrderID string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.byCustomID[customOrderID]
	if !ok {
		return nil, ErrNotFound
	}
	o := m.orders[idx]
	return &o, nil
}

func (m *Memory) ListOrdersBySchool(ctx context.Context, schoolID string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.SchoolID == schoolID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *Memory) ListOrphanedOrders(ctx context.Context, olderThan time.Time) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if _, ok := m.byOrderID[o.ID]; ok {
			continue
		}
		if o.CreatedAt.Before(olderThan) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *Memory) CreateOrderStatus(ctx context.Context, st *models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.statuses[st.CollectRequestID]; ok {
		return fmt.Errorf("%w: collect_request_id %s", ErrConflict, st.CollectRequestID)
	}
	if _, ok := m.byOrderID[st.OrderID]; ok {
		return fmt.Errorf("%w: status for order %s", ErrConflict, st.OrderID)
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.Status == "" {
		st.Status = models.StatusPending
	}
	now := m.now()
	st.CreatedAt = now
	st.UpdatedAt = now
	stored := *st
	m.statuses[st.CollectRequestID] = &stored
	m.byOrderID[st.OrderID] = st.CollectRequestID
	return nil
}

func (m *Memory) GetOrderStatusByCollectID(ctx context.Context, collectRequestID string) (*models.OrderStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[collectRequestID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *st
	return &out, nil
}

func (m *Memory) GetOrderStatusByOrderID(ctx context.Context, orderID string) (*models.OrderStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cid, ok := m.byOrderID[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m.statuses[cid]
	return &out, nil
}

func (m *Memory) UpdateOrderStatus(ctx context.Context, st *models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.statuses[st.CollectRequestID]
	if !ok {
		return ErrNotFound
	}
	cur.TransactionAmount = st.TransactionAmount
	cur.Status = st.Status
	cur.PaymentMode = st.PaymentMode
	cur.PaymentDetails = st.PaymentDetails
	cur.BankReference = st.BankReference
	cur.PaymentMessage = st.PaymentMessage
	cur.ErrorMessage = st.ErrorMessage
	cur.PaymentTime = st.PaymentTime
	cur.UpdatedAt = m.now()
	st.UpdatedAt = cur.UpdatedAt
	return nil
}

func (m *Memory) ListTransactions(ctx context.Context, p transactions.Params) ([]models.TransactionView, error) {
	m.mu.RLock()
	orders := make([]models.Order, len(m.orders))
	copy(orders, m.orders)
	statuses := make([]models.OrderStatus, 0, len(m.statuses))
	for _, st := range m.statuses {
		statuses = append(statuses, *st)
	}
	m.mu.RUnlock()

	return transactions.Run(orders, statuses, transactions.Pipeline(p)), nil
}
