package services

import (
	"context"
	"errors"
	"fmt"

	"SchoolPayments/internal/models"
	"SchoolPayments/internal/store"
	"SchoolPayments/internal/transactions"
)

type TransactionService struct {
	Store Store
}

func (s *TransactionService) ListTransactions(ctx context.Context, raw transactions.RawParams) ([]models.TransactionView, error) {
	p, err := transactions.ParseParams(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.Store.ListTransactions(ctx, p)
}

func (s *TransactionService) GetTransactionsBySchool(ctx context.Context, schoolID string) ([]models.Order, error) {
	orders, err := s.Store.ListOrdersBySchool(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: no transactions found for school ID %s", ErrNotFound, schoolID)
	}
	return orders, nil
}

// GetTransactionStatus resolves the order by its custom id, then its status.
func (s *TransactionService) GetTransactionStatus(ctx context.Context, customOrderID string) (models.PaymentStatus, error) {
	order, err := s.Store.GetOrderByCustomID(ctx, customOrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: transaction with custom order ID %s not found", ErrNotFound, customOrderID)
		}
		return "", err
	}
	st, err := s.Store.GetOrderStatusByOrderID(ctx, order.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: status not found for transaction %s", ErrNotFound, customOrderID)
		}
		return "", err
	}
	return st.Status, nil
}
