package store

import (
	"fmt"
	"strconv"
	"strings"

	"SchoolPayments/internal/transactions"
)

// sortColumns resolves sort fields to columns of the joined orders/statuses
// relation, not to projected names.
var sortColumns = map[transactions.SortField]string{
	transactions.SortPaymentTime:       "s.payment_time",
	transactions.SortCollectID:         "s.collect_request_id",
	transactions.SortOrderAmount:       "s.order_amount",
	transactions.SortTransactionAmount: "s.transaction_amount",
	transactions.SortStatus:            "s.status",
	transactions.SortCustomOrderID:     "o.custom_order_id",
	transactions.SortSchoolID:          "o.school_id",
	transactions.SortGateway:           "o.gateway_name",
	transactions.SortCreatedAt:         "o.created_at",
	transactions.SortUpdatedAt:         "s.updated_at",
}

type selectBuilder struct {
	columns []string
	from    string
	where   []string
	orderBy []string
	limit   int
	offset  int
	args    []any
}

type sqlStage func(*selectBuilder)

func (b *selectBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *selectBuilder) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.bind(b.limit))
	}
	if b.offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(b.bind(b.offset))
	}
	return sb.String()
}

func joinSQL(b *selectBuilder) {
	b.from = "orders o JOIN order_statuses s ON s.order_id = o.id"
}

func searchSQL(term string) sqlStage {
	return func(b *selectBuilder) {
		if term == "" {
			return
		}
		p := b.bind("%" + escapeLike(term) + "%")
		b.where = append(b.where, fmt.Sprintf(
			"(s.collect_request_id ILIKE %[1]s OR o.custom_order_id ILIKE %[1]s OR s.status ILIKE %[1]s)", p))
	}
}

func statusSQL(status string) sqlStage {
	return func(b *selectBuilder) {
		if status == "" {
			return
		}
		b.where = append(b.where, "s.status = "+b.bind(status))
	}
}

func projectSQL(b *selectBuilder) {
	b.columns = []string{
		"s.collect_request_id AS collect_id",
		"o.school_id",
		"o.gateway_name AS gateway",
		"s.order_amount",
		"s.transaction_amount",
		"s.status",
		"o.custom_order_id",
	}
}

func sortSQL(field transactions.SortField, desc bool) sqlStage {
	return func(b *selectBuilder) {
		col, ok := sortColumns[field]
		if !ok {
			col = sortColumns[transactions.SortPaymentTime]
		}
		dir := "ASC NULLS FIRST"
		if desc {
			dir = "DESC NULLS LAST"
		}
		b.orderBy = append(b.orderBy, col+" "+dir, "o.created_at ASC", "o.id ASC")
	}
}

func paginateSQL(page, limit int) sqlStage {
	return func(b *selectBuilder) {
		b.limit = limit
		b.offset = (page - 1) * limit
	}
}

// buildTransactionQuery renders the transaction pipeline as one statement.
// The stage order mirrors transactions.Pipeline.
func buildTransactionQuery(p transactions.Params) (string, []any) {
	b := &selectBuilder{}
	stages := []sqlStage{
		joinSQL,
		searchSQL(p.Search),
		statusSQL(p.Status),
		projectSQL,
		sortSQL(p.SortBy, p.Desc),
		paginateSQL(p.Page, p.Limit),
	}
	for _, stage := range stages {
		stage(b)
	}
	return b.String(), b.args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
