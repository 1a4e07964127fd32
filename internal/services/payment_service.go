package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"SchoolPayments/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultGatewayName = "Edviron-Vanilla"

// Amounts are stored as NUMERIC(14,2).
const amountScale = 2

var maxAmount = decimal.New(1, 12)

// PaymentService creates orders and their payment links.
type PaymentService struct {
	Store       Store
	Gateway     Gateway
	SchoolID    string
	GatewayName string
}

type CreatePaymentInput struct {
	StudentInfo models.StudentInfo
	Amount      decimal.Decimal
}

type CreatePaymentResult struct {
	PaymentURL    string
	CustomOrderID string
}

func NewCustomOrderID() string {
	return "ORD-" + uuid.NewString()
}

// CreatePayment persists the order, asks the gateway for a collect request
// and seeds a PENDING status. When the gateway call fails the order is kept
// without a status and ErrUpstream is returned.
func (s *PaymentService) CreatePayment(ctx context.Context, in CreatePaymentInput) (*CreatePaymentResult, error) {
	if err := validateCreatePayment(in); err != nil {
		return nil, err
	}

	gatewayName := s.GatewayName
	if gatewayName == "" {
		gatewayName = DefaultGatewayName
	}
	order := &models.Order{
		SchoolID:      s.SchoolID,
		StudentInfo:   in.StudentInfo,
		GatewayName:   gatewayName,
		CustomOrderID: NewCustomOrderID(),
	}
	if err := s.Store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	collect, err := s.Gateway.CreateCollectRequest(ctx, in.Amount)
	if err != nil {
		slog.Error("payment gateway call failed",
			"custom_order_id", order.CustomOrderID,
			"error", err)
		return nil, ErrUpstream
	}

	status := &models.OrderStatus{
		OrderID:          order.ID,
		CollectRequestID: collect.CollectRequestID,
		OrderAmount:      in.Amount,
		Status:           models.StatusPending,
	}
	if err := s.Store.CreateOrderStatus(ctx, status); err != nil {
		return nil, fmt.Errorf("create order status: %w", err)
	}

	slog.Info("payment created",
		"custom_order_id", order.CustomOrderID,
		"collect_request_id", collect.CollectRequestID,
		"amount", in.Amount.String())
	return &CreatePaymentResult{
		PaymentURL:    collect.CollectRequestURL,
		CustomOrderID: order.CustomOrderID,
	}, nil
}

func validateCreatePayment(in CreatePaymentInput) error {
	if err := validateAmount(in.Amount); err != nil {
		return err
	}
	si := in.StudentInfo
	if strings.TrimSpace(si.Name) == "" || strings.TrimSpace(si.ID) == "" || strings.TrimSpace(si.Email) == "" {
		return fmt.Errorf("%w: student_info name, id and email are required", ErrValidation)
	}
	return nil
}

// validateAmount rejects amounts the order_statuses columns cannot hold
// exactly. It runs before the gateway is called.
func validateAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	case !amount.Equal(amount.Truncate(amountScale)):
		return fmt.Errorf("%w: amount must have at most %d decimal places", ErrValidation, amountScale)
	case amount.GreaterThanOrEqual(maxAmount):
		return fmt.Errorf("%w: amount must be less than %s", ErrValidation, maxAmount.String())
	}
	return nil
}
