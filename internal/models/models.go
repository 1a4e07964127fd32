package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, the way the gateway and the
	// dashboard expect them.
	decimal.MarshalJSONWithoutQuotes = true
}

type PaymentStatus string

const (
	StatusPending PaymentStatus = "PENDING"
	StatusSuccess PaymentStatus = "SUCCESS"
	StatusFailed  PaymentStatus = "FAILED"
)

type StudentInfo struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Order is the payment intent. It is written once and never updated.
type Order struct {
	ID            string      `json:"_id"`
	SchoolID      string      `json:"school_id"`
	StudentInfo   StudentInfo `json:"student_info"`
	GatewayName   string      `json:"gateway_name"`
	CustomOrderID string      `json:"custom_order_id"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// OrderStatus is the mutable lifecycle of exactly one Order.
type OrderStatus struct {
	ID                string           `json:"_id"`
	OrderID           string           `json:"order"`
	CollectRequestID  string           `json:"collect_request_id"`
	OrderAmount       decimal.Decimal  `json:"order_amount"`
	TransactionAmount *decimal.Decimal `json:"transaction_amount,omitempty"`
	Status            PaymentStatus    `json:"status"`
	PaymentMode       *string          `json:"payment_mode,omitempty"`
	PaymentDetails    *string          `json:"payment_details,omitempty"`
	BankReference     *string          `json:"bank_reference,omitempty"`
	PaymentMessage    *string          `json:"payment_message,omitempty"`
	ErrorMessage      *string          `json:"error_message,omitempty"`
	PaymentTime       *time.Time       `json:"payment_time,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// TransactionView is the reporting projection of an Order joined with its
// OrderStatus.
type TransactionView struct {
	CollectID         string           `json:"collect_id"`
	SchoolID          string           `json:"school_id"`
	Gateway           string           `json:"gateway"`
	OrderAmount       decimal.Decimal  `json:"order_amount"`
	TransactionAmount *decimal.Decimal `json:"transaction_amount,omitempty"`
	Status            PaymentStatus    `json:"status"`
	CustomOrderID     string           `json:"custom_order_id"`
}

// StatusEvent is emitted after a webhook has been applied to an OrderStatus.
type StatusEvent struct {
	CustomOrderID     string           `json:"custom_order_id"`
	CollectRequestID  string           `json:"collect_request_id"`
	Status            PaymentStatus    `json:"status"`
	TransactionAmount *decimal.Decimal `json:"transaction_amount,omitempty"`
	PaymentTime       *time.Time       `json:"payment_time,omitempty"`
}
