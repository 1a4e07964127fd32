package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"SchoolPayments/internal/events"
	"SchoolPayments/internal/models"
	"SchoolPayments/internal/services"
	"SchoolPayments/internal/transactions"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	Payments     *services.PaymentService
	Webhooks     *services.WebhookReconciler
	Transactions *services.TransactionService
	Hub          *events.Hub
}

type createPaymentRequest struct {
	StudentInfo models.StudentInfo `json:"student_info"`
	Amount      decimal.Decimal    `json:"amount"`
}

type createPaymentResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

type webhookRequest struct {
	OrderInfo struct {
		OrderID           string          `json:"order_id"`
		OrderAmount       decimal.Decimal `json:"order_amount"`
		TransactionAmount decimal.Decimal `json:"transaction_amount"`
		Gateway           string          `json:"gateway"`
		BankReference     string          `json:"bank_reference"`
		Status            string          `json:"status"`
		PaymentMode       string          `json:"payment_mode"`
		PaymentDetails    string          `json:"payemnt_details"`
		PaymentDetailsAlt string          `json:"payment_details"`
		PaymentMessage    string          `json:"Payment_message"`
		PaymentTime       string          `json:"payment_time"`
		ErrorMessage      string          `json:"error_message"`
	} `json:"order_info"`
}

type webhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func NewHandler(payments *services.PaymentService, webhooks *services.WebhookReconciler, txs *services.TransactionService, hub *events.Hub) *Handler {
	return &Handler{Payments: payments, Webhooks: webhooks, Transactions: txs, Hub: hub}
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	body, ok := readValidated(w, r, createPaymentSchema)
	if !ok {
		return
	}
	var req createPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	res, err := h.Payments.CreatePayment(r.Context(), services.CreatePaymentInput{
		StudentInfo: req.StudentInfo,
		Amount:      req.Amount,
	})
	if err != nil {
		h.fail(w, err, "create payment failed")
		return
	}
	writeJSON(w, http.StatusCreated, createPaymentResponse{PaymentURL: res.PaymentURL})
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readValidated(w, r, webhookSchema)
	if !ok {
		return
	}
	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	info := req.OrderInfo
	paymentTime, err := parsePaymentTime(info.PaymentTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "order_info.payment_time must be an ISO-8601 date")
		return
	}
	details := info.PaymentDetails
	if details == "" {
		details = info.PaymentDetailsAlt
	}

	err = h.Webhooks.HandleWebhook(r.Context(), services.WebhookPayload{
		OrderID:           info.OrderID,
		OrderAmount:       info.OrderAmount,
		TransactionAmount: info.TransactionAmount,
		Gateway:           info.Gateway,
		BankReference:     info.BankReference,
		Status:            info.Status,
		PaymentMode:       info.PaymentMode,
		PaymentDetails:    details,
		PaymentMessage:    info.PaymentMessage,
		PaymentTime:       paymentTime,
		ErrorMessage:      info.ErrorMessage,
	})
	if err != nil {
		h.fail(w, err, "webhook processing failed")
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Status: "success", Message: "Webhook processed"})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	views, err := h.Transactions.ListTransactions(r.Context(), transactions.RawParams{
		Page:      q.Get("page"),
		Limit:     q.Get("limit"),
		Status:    q.Get("status"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	})
	if err != nil {
		h.fail(w, err, "list transactions failed")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) TransactionsBySchool(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolId")
	if schoolID == "" {
		writeError(w, http.StatusBadRequest, "missing school id")
		return
	}
	orders, err := h.Transactions.GetTransactionsBySchool(r.Context(), schoolID)
	if err != nil {
		h.fail(w, err, "get school transactions failed")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) TransactionStatus(w http.ResponseWriter, r *http.Request) {
	customOrderID := chi.URLParam(r, "customOrderId")
	if customOrderID == "" {
		writeError(w, http.StatusBadRequest, "missing custom order id")
		return
	}
	status, err := h.Transactions.GetTransactionStatus(r.Context(), customOrderID)
	if err != nil {
		h.fail(w, err, "get transaction status failed")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: string(status)})
}

func (h *Handler) fail(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrUpstream):
		writeError(w, http.StatusInternalServerError, "Failed to create payment link.")
	default:
		slog.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

var paymentTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parsePaymentTime(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range paymentTimeLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
