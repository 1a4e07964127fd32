package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"SchoolPayments/internal/models"
	"SchoolPayments/internal/transactions"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

const uniqueViolation = "23505"

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const orderColumns = `o.id, o.school_id, o.student_name, o.student_id, o.student_email,
	o.gateway_name, o.custom_order_id, o.created_at, o.updated_at`

const statusColumns = `s.id, s.order_id, s.collect_request_id, s.order_amount, s.transaction_amount,
	s.status, s.payment_mode, s.payment_details, s.bank_reference, s.payment_message,
	s.error_message, s.payment_time, s.created_at, s.updated_at`

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO orders (
			id, school_id, student_name, student_id, student_email,
			gateway_name, custom_order_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at
	`,
		order.ID,
		order.SchoolID,
		order.StudentInfo.Name,
		order.StudentInfo.ID,
		order.StudentInfo.Email,
		order.GatewayName,
		order.CustomOrderID,
	)
	return mapErr(row.Scan(&order.CreatedAt, &order.UpdatedAt))
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id=$1`, id)
	return scanOrder(row)
}

func (s *Store) GetOrderByCustomID(ctx context.Context, customOrderID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.custom_order_id=$1`, customOrderID)
	return scanOrder(row)
}

func (s *Store) ListOrdersBySchool(ctx context.Context, schoolID string) ([]models.Order, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.school_id=$1
		ORDER BY o.created_at, o.id
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListOrphanedOrders returns orders created before olderThan that never got
// an order status.
func (s *Store) ListOrphanedOrders(ctx context.Context, olderThan time.Time) ([]models.Order, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.created_at < $1
			AND NOT EXISTS (SELECT 1 FROM order_statuses s WHERE s.order_id = o.id)
		ORDER BY o.created_at, o.id
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *Store) CreateOrderStatus(ctx context.Context, st *models.OrderStatus) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.Status == "" {
		st.Status = models.StatusPending
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO order_statuses (
			id, order_id, collect_request_id, order_amount, transaction_amount,
			status, payment_mode, payment_details, bank_reference, payment_message,
			error_message, payment_time
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at
	`,
		st.ID,
		st.OrderID,
		st.CollectRequestID,
		st.OrderAmount,
		st.TransactionAmount,
		st.Status,
		st.PaymentMode,
		st.PaymentDetails,
		st.BankReference,
		st.PaymentMessage,
		st.ErrorMessage,
		st.PaymentTime,
	)
	return mapErr(row.Scan(&st.CreatedAt, &st.UpdatedAt))
}

func (s *Store) GetOrderStatusByCollectID(ctx context.Context, collectRequestID string) (*models.OrderStatus, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+statusColumns+` FROM order_statuses s WHERE s.collect_request_id=$1`, collectRequestID)
	return scanStatus(row)
}

func (s *Store) GetOrderStatusByOrderID(ctx context.Context, orderID string) (*models.OrderStatus, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+statusColumns+` FROM order_statuses s WHERE s.order_id=$1`, orderID)
	return scanStatus(row)
}

// UpdateOrderStatus overwrites every mutable field of the status identified
// by its collect_request_id in a single statement.
func (s *Store) UpdateOrderStatus(ctx context.Context, st *models.OrderStatus) error {
	row := s.Pool.QueryRow(ctx, `
		UPDATE order_statuses
		SET transaction_amount=$2, status=$3, payment_mode=$4, payment_details=$5,
			bank_reference=$6, payment_message=$7, error_message=$8, payment_time=$9,
			updated_at=now()
		WHERE collect_request_id=$1
		RETURNING updated_at
	`,
		st.CollectRequestID,
		st.TransactionAmount,
		st.Status,
		st.PaymentMode,
		st.PaymentDetails,
		st.BankReference,
		st.PaymentMessage,
		st.ErrorMessage,
		st.PaymentTime,
	)
	return mapErr(row.Scan(&st.UpdatedAt))
}

func (s *Store) ListTransactions(ctx context.Context, p transactions.Params) ([]models.TransactionView, error) {
	query, args := buildTransactionQuery(p)
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []models.TransactionView{}
	for rows.Next() {
		var v models.TransactionView
		var txAmount decimal.NullDecimal
		if err := rows.Scan(
			&v.CollectID,
			&v.SchoolID,
			&v.Gateway,
			&v.OrderAmount,
			&txAmount,
			&v.Status,
			&v.CustomOrderID,
		); err != nil {
			return nil, err
		}
		if txAmount.Valid {
			v.TransactionAmount = &txAmount.Decimal
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func collectOrders(rows pgx.Rows) ([]models.Order, error) {
	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID,
		&o.SchoolID,
		&o.StudentInfo.Name,
		&o.StudentInfo.ID,
		&o.StudentInfo.Email,
		&o.GatewayName,
		&o.CustomOrderID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func scanStatus(row pgx.Row) (*models.OrderStatus, error) {
	var st models.OrderStatus
	var txAmount decimal.NullDecimal
	var paymentMode, paymentDetails, bankReference, paymentMessage, errorMessage sql.NullString
	var paymentTime sql.NullTime

	err := row.Scan(
		&st.ID,
		&st.OrderID,
		&st.CollectRequestID,
		&st.OrderAmount,
		&txAmount,
		&st.Status,
		&paymentMode,
		&paymentDetails,
		&bankReference,
		&paymentMessage,
		&errorMessage,
		&paymentTime,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}

	if txAmount.Valid {
		st.TransactionAmount = &txAmount.Decimal
	}
	st.PaymentMode = nullString(paymentMode)
	st.PaymentDetails = nullString(paymentDetails)
	st.BankReference = nullString(bankReference)
	st.PaymentMessage = nullString(paymentMessage)
	st.ErrorMessage = nullString(errorMessage)
	if paymentTime.Valid {
		st.PaymentTime = &paymentTime.Time
	}
	return &st, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Join(ErrConflict, err)
	}
	return err
}
