package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SchoolPayments/internal/events"
	"SchoolPayments/internal/models"
	"SchoolPayments/internal/store"

	"github.com/shopspring/decimal"
)

// WebhookPayload is the order_info block of a gateway notification.
type WebhookPayload struct {
	OrderID           string
	OrderAmount       decimal.Decimal
	TransactionAmount decimal.Decimal
	Gateway           string
	BankReference     string
	Status            string
	PaymentMode       string
	PaymentDetails    string
	PaymentMessage    string
	PaymentTime       time.Time
	ErrorMessage      string
}

// WebhookReconciler applies gateway notifications to order statuses.
type WebhookReconciler struct {
	Store  Store
	Events events.Publisher
}

// HandleWebhook overwrites every mutable field of the status matching
// p.OrderID. Replaying the same payload yields the same stored state.
// Transition legality is not checked; the last delivery wins.
func (r *WebhookReconciler) HandleWebhook(ctx context.Context, p WebhookPayload) error {
	if strings.TrimSpace(p.OrderID) == "" {
		return fmt.Errorf("%w: order_info.order_id is required", ErrValidation)
	}
	if strings.TrimSpace(p.Status) == "" {
		return fmt.Errorf("%w: order_info.status is required", ErrValidation)
	}

	slog.Info("webhook received", "collect_request_id", p.OrderID, "status", p.Status)

	st, err := r.Store.GetOrderStatusByCollectID(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: transaction with collect_request_id %s not found", ErrNotFound, p.OrderID)
		}
		return err
	}

	txAmount := p.TransactionAmount
	paymentTime := p.PaymentTime.UTC()
	st.Status = models.PaymentStatus(strings.ToUpper(p.Status))
	st.TransactionAmount = &txAmount
	st.PaymentMode = &p.PaymentMode
	st.PaymentDetails = &p.PaymentDetails
	st.BankReference = &p.BankReference
	st.PaymentMessage = &p.PaymentMessage
	st.PaymentTime = &paymentTime
	st.ErrorMessage = &p.ErrorMessage

	if err := r.Store.UpdateOrderStatus(ctx, st); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: transaction with collect_request_id %s not found", ErrNotFound, p.OrderID)
		}
		return err
	}

	slog.Info("order status updated", "collect_request_id", p.OrderID, "status", st.Status)
	r.publish(ctx, st)
	return nil
}

func (r *WebhookReconciler) publish(ctx context.Context, st *models.OrderStatus) {
	if r.Events == nil {
		return
	}
	order, err := r.Store.GetOrder(ctx, st.OrderID)
	if err != nil {
		slog.Warn("status event skipped: order lookup failed", "collect_request_id", st.CollectRequestID, "error", err)
		return
	}
	ev := models.StatusEvent{
		CustomOrderID:     order.CustomOrderID,
		CollectRequestID:  st.CollectRequestID,
		Status:            st.Status,
		TransactionAmount: st.TransactionAmount,
		PaymentTime:       st.PaymentTime,
	}
	if err := r.Events.Publish(ctx, ev); err != nil {
		slog.Warn("publish status event failed", "custom_order_id", order.CustomOrderID, "error", err)
	}
}
