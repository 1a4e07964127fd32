package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"SchoolPayments/internal/gateway"
	"SchoolPayments/internal/models"
	"SchoolPayments/internal/store"
	"SchoolPayments/internal/transactions"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []decimal.Decimal
	next  func(n int) (*gateway.CollectRequest, error)
}

func (g *fakeGateway) CreateCollectRequest(ctx context.Context, amount decimal.Decimal) (*gateway.CollectRequest, error) {
	g.mu.Lock()
	g.calls = append(g.calls, amount)
	n := len(g.calls)
	g.mu.Unlock()
	return g.next(n)
}

func fixedGateway(id, url string) *fakeGateway {
	return &fakeGateway{next: func(int) (*gateway.CollectRequest, error) {
		return &gateway.CollectRequest{CollectRequestID: id, CollectRequestURL: url}, nil
	}}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.StatusEvent
}

func (p *fakePublisher) Publish(ctx context.Context, ev models.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

var student = models.StudentInfo{Name: "Asha Rao", ID: "STU-1", Email: "asha@example.com"}

func newPaymentService(st Store, gw Gateway) *PaymentService {
	return &PaymentService{Store: st, Gateway: gw, SchoolID: "school-1"}
}

func createCR1(t *testing.T, st *store.Memory) *CreatePaymentResult {
	t.Helper()
	svc := newPaymentService(st, fixedGateway("cr1", "https://pay/cr1"))
	res, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		StudentInfo: student,
		Amount:      decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	return res
}

func successPayload(orderID string) WebhookPayload {
	return WebhookPayload{
		OrderID:           orderID,
		OrderAmount:       decimal.NewFromInt(500),
		TransactionAmount: decimal.NewFromInt(500),
		Gateway:           "PhonePe",
		BankReference:     "YESBNK222",
		Status:            "success",
		PaymentMode:       "upi",
		PaymentDetails:    "success@ybl",
		PaymentMessage:    "payment success",
		PaymentTime:       time.Date(2025, 4, 23, 8, 14, 21, 0, time.FixedZone("IST", 19800)),
		ErrorMessage:      "NA",
	}
}

func TestCreatePayment_PersistsOrderAndPendingStatus(t *testing.T) {
	st := store.NewMemory()
	res := createCR1(t, st)
	ctx := context.Background()

	assert.Equal(t, "https://pay/cr1", res.PaymentURL)
	assert.Regexp(t, `^ORD-[0-9a-f-]{36}$`, res.CustomOrderID)

	order, err := st.GetOrderByCustomID(ctx, res.CustomOrderID)
	require.NoError(t, err)
	assert.Equal(t, "school-1", order.SchoolID)
	assert.Equal(t, DefaultGatewayName, order.GatewayName)
	assert.Equal(t, student, order.StudentInfo)

	status, err := st.GetOrderStatusByCollectID(ctx, "cr1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, status.OrderID)
	assert.Equal(t, models.StatusPending, status.Status)
	assert.True(t, status.OrderAmount.Equal(decimal.NewFromInt(500)))
	assert.Nil(t, status.TransactionAmount)
	assert.Nil(t, status.PaymentTime)
}

func TestCreatePayment_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreatePaymentInput
	}{
		{"zero amount", CreatePaymentInput{StudentInfo: student, Amount: decimal.Zero}},
		{"negative amount", CreatePaymentInput{StudentInfo: student, Amount: decimal.NewFromInt(-1)}},
		{"three decimal places", CreatePaymentInput{StudentInfo: student, Amount: decimal.RequireFromString("0.001")}},
		{"sub-cent remainder", CreatePaymentInput{StudentInfo: student, Amount: decimal.RequireFromString("100.005")}},
		{"too large", CreatePaymentInput{StudentInfo: student, Amount: decimal.RequireFromString("10000000000000")}},
		{"at column limit", CreatePaymentInput{StudentInfo: student, Amount: decimal.New(1, 12)}},
		{"missing name", CreatePaymentInput{StudentInfo: models.StudentInfo{ID: "S", Email: "e"}, Amount: decimal.NewFromInt(1)}},
		{"blank email", CreatePaymentInput{StudentInfo: models.StudentInfo{Name: "n", ID: "S", Email: "  "}, Amount: decimal.NewFromInt(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemory()
			gw := fixedGateway("cr1", "https://pay/cr1")
			_, err := newPaymentService(st, gw).CreatePayment(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, gw.calls)

			orders, err := st.ListOrdersBySchool(context.Background(), "school-1")
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}

func TestCreatePayment_AcceptsColumnPrecision(t *testing.T) {
	for _, amount := range []string{"0.01", "100.5", "100.50", "999999999999.99"} {
		t.Run(amount, func(t *testing.T) {
			st := store.NewMemory()
			gw := fixedGateway("cr1", "https://pay/cr1")
			_, err := newPaymentService(st, gw).CreatePayment(context.Background(), CreatePaymentInput{
				StudentInfo: student,
				Amount:      decimal.RequireFromString(amount),
			})
			require.NoError(t, err)
			require.Len(t, gw.calls, 1)
			assert.True(t, gw.calls[0].Equal(decimal.RequireFromString(amount)))

			status, err := st.GetOrderStatusByCollectID(context.Background(), "cr1")
			require.NoError(t, err)
			assert.True(t, status.OrderAmount.Equal(decimal.RequireFromString(amount)))
		})
	}
}

func TestCreatePayment_GatewayFailureLeavesOrphanOrder(t *testing.T) {
	st := store.NewMemory()
	gw := &fakeGateway{next: func(int) (*gateway.CollectRequest, error) {
		return nil, errors.New("gateway http status 502")
	}}
	ctx := context.Background()

	_, err := newPaymentService(st, gw).CreatePayment(ctx, CreatePaymentInput{StudentInfo: student, Amount: decimal.NewFromInt(500)})
	assert.ErrorIs(t, err, ErrUpstream)

	orphans, err := st.ListOrphanedOrders(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, orphans, 1)
}

func TestCreatePayment_ConcurrentCallsGetDistinctIDs(t *testing.T) {
	st := store.NewMemory()
	gw := &fakeGateway{next: func(n int) (*gateway.CollectRequest, error) {
		id := fmt.Sprintf("cr-%d", n)
		return &gateway.CollectRequest{CollectRequestID: id, CollectRequestURL: "https://pay/" + id}, nil
	}}
	svc := newPaymentService(st, gw)

	const n = 25
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.CreatePayment(context.Background(), CreatePaymentInput{StudentInfo: student, Amount: decimal.NewFromInt(10)})
			if assert.NoError(t, err) {
				ids <- res.CustomOrderID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate custom_order_id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestHandleWebhook_AppliesPayload(t *testing.T) {
	st := store.NewMemory()
	res := createCR1(t, st)
	pub := &fakePublisher{}
	r := &WebhookReconciler{Store: st, Events: pub}
	ctx := context.Background()

	require.NoError(t, r.HandleWebhook(ctx, successPayload("cr1")))

	got, err := st.GetOrderStatusByCollectID(ctx, "cr1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, got.Status)
	require.NotNil(t, got.TransactionAmount)
	assert.True(t, got.TransactionAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, got.OrderAmount.Equal(decimal.NewFromInt(500)))
	require.NotNil(t, got.PaymentTime)
	assert.Equal(t, time.UTC, got.PaymentTime.Location())
	assert.Equal(t, "upi", *got.PaymentMode)
	assert.Equal(t, "YESBNK222", *got.BankReference)
	assert.Equal(t, "NA", *got.ErrorMessage)

	require.Len(t, pub.events, 1)
	assert.Equal(t, res.CustomOrderID, pub.events[0].CustomOrderID)
	assert.Equal(t, models.StatusSuccess, pub.events[0].Status)
}

func TestHandleWebhook_ReplayIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	createCR1(t, st)
	r := &WebhookReconciler{Store: st}
	ctx := context.Background()

	require.NoError(t, r.HandleWebhook(ctx, successPayload("cr1")))
	first, err := st.GetOrderStatusByCollectID(ctx, "cr1")
	require.NoError(t, err)

	require.NoError(t, r.HandleWebhook(ctx, successPayload("cr1")))
	second, err := st.GetOrderStatusByCollectID(ctx, "cr1")
	require.NoError(t, err)

	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
}

func TestHandleWebhook_LastWriteWins(t *testing.T) {
	st := store.NewMemory()
	createCR1(t, st)
	r := &WebhookReconciler{Store: st}
	ctx := context.Background()

	require.NoError(t, r.HandleWebhook(ctx, successPayload("cr1")))
	failed := successPayload("cr1")
	failed.Status = "Failed"
	failed.TransactionAmount = decimal.Zero
	require.NoError(t, r.HandleWebhook(ctx, failed))

	got, err := st.GetOrderStatusByCollectID(ctx, "cr1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.True(t, got.TransactionAmount.IsZero())
}

func TestHandleWebhook_UnknownCollectID(t *testing.T) {
	st := store.NewMemory()
	createCR1(t, st)
	pub := &fakePublisher{}
	r := &WebhookReconciler{Store: st, Events: pub}
	ctx := context.Background()

	err := r.HandleWebhook(ctx, successPayload("cr-missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := st.GetOrderStatusByCollectID(ctx, "cr1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Empty(t, pub.events)
}

func TestHandleWebhook_RequiresIdentifiers(t *testing.T) {
	r := &WebhookReconciler{Store: store.NewMemory()}

	p := successPayload("")
	assert.ErrorIs(t, r.HandleWebhook(context.Background(), p), ErrValidation)

	p = successPayload("cr1")
	p.Status = " "
	assert.ErrorIs(t, r.HandleWebhook(context.Background(), p), ErrValidation)
}

func TestGetTransactionsBySchool(t *testing.T) {
	st := store.NewMemory()
	createCR1(t, st)
	svc := &TransactionService{Store: st}
	ctx := context.Background()

	orders, err := svc.GetTransactionsBySchool(ctx, "school-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = svc.GetTransactionsBySchool(ctx, "school-x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetTransactionStatus(t *testing.T) {
	st := store.NewMemory()
	res := createCR1(t, st)
	svc := &TransactionService{Store: st}
	ctx := context.Background()

	status, err := svc.GetTransactionStatus(ctx, res.CustomOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status)

	_, err = svc.GetTransactionStatus(ctx, "ORD-unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.CreateOrder(ctx, &models.Order{SchoolID: "school-1", CustomOrderID: "ORD-orphan"}))
	_, err = svc.GetTransactionStatus(ctx, "ORD-orphan")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTransactions(t *testing.T) {
	st := store.NewMemory()
	res := createCR1(t, st)
	svc := &TransactionService{Store: st}
	ctx := context.Background()

	views, err := svc.ListTransactions(ctx, transactions.RawParams{Search: res.CustomOrderID[4:12]})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "cr1", views[0].CollectID)

	_, err = svc.ListTransactions(ctx, transactions.RawParams{SortBy: "student_info.name"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, transactions.ErrInvalidParams)
}
