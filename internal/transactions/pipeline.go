package transactions

import (
	"sort"
	"strings"
	"time"

	"SchoolPayments/internal/models"

	"github.com/shopspring/decimal"
)

// Record is one Order joined with its OrderStatus. View is filled by the
// Project stage; Order and Status stay available so later stages can still
// resolve sort keys against the joined record.
type Record struct {
	Order  models.Order
	Status models.OrderStatus
	View   models.TransactionView
}

// Stage transforms a set of joined records. Stages never modify their input
// slice.
type Stage func([]Record) []Record

// Join inner-joins orders with their statuses. Orders without a status are
// dropped. Output keeps the order of the orders slice.
func Join(orders []models.Order, statuses []models.OrderStatus) []Record {
	byOrder := make(map[string]models.OrderStatus, len(statuses))
	for _, st := range statuses {
		byOrder[st.OrderID] = st
	}
	out := make([]Record, 0, len(orders))
	for _, o := range orders {
		st, ok := byOrder[o.ID]
		if !ok {
			continue
		}
		out = append(out, Record{Order: o, Status: st})
	}
	return out
}

// Search keeps records whose collect_request_id, custom_order_id or status
// contains term, case-insensitively. An empty term keeps everything.
func Search(term string) Stage {
	needle := strings.ToLower(term)
	return func(in []Record) []Record {
		if needle == "" {
			return in
		}
		out := make([]Record, 0, len(in))
		for _, r := range in {
			if containsFold(r.Status.CollectRequestID, needle) ||
				containsFold(r.Order.CustomOrderID, needle) ||
				containsFold(string(r.Status.Status), needle) {
				out = append(out, r)
			}
		}
		return out
	}
}

// StatusFilter keeps records whose status equals status exactly. Callers pass
// the already upper-cased filter; empty means no filter.
func StatusFilter(status string) Stage {
	return func(in []Record) []Record {
		if status == "" {
			return in
		}
		out := make([]Record, 0, len(in))
		for _, r := range in {
			if string(r.Status.Status) == status {
				out = append(out, r)
			}
		}
		return out
	}
}

func Project() Stage {
	return func(in []Record) []Record {
		out := make([]Record, len(in))
		for i, r := range in {
			r.View = models.TransactionView{
				CollectID:         r.Status.CollectRequestID,
				SchoolID:          r.Order.SchoolID,
				Gateway:           r.Order.GatewayName,
				OrderAmount:       r.Status.OrderAmount,
				TransactionAmount: r.Status.TransactionAmount,
				Status:            r.Status.Status,
				CustomOrderID:     r.Order.CustomOrderID,
			}
			out[i] = r
		}
		return out
	}
}

// Sort orders records by field. Missing values come first ascending and last
// descending; ties keep their incoming order.
func Sort(field SortField, desc bool) Stage {
	return func(in []Record) []Record {
		out := make([]Record, len(in))
		copy(out, in)
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i], out[j], field)
			if desc {
				return c > 0
			}
			return c < 0
		})
		return out
	}
}

func Paginate(page, limit int) Stage {
	return func(in []Record) []Record {
		skip := (page - 1) * limit
		if skip >= len(in) {
			return []Record{}
		}
		end := len(in)
		if limit < end-skip {
			end = skip + limit
		}
		out := make([]Record, end-skip)
		copy(out, in[skip:end])
		return out
	}
}

// Pipeline returns the stages for p in their required order:
// search, status filter, project, sort, paginate. Join happens before.
func Pipeline(p Params) []Stage {
	return []Stage{
		Search(p.Search),
		StatusFilter(p.Status),
		Project(),
		Sort(p.SortBy, p.Desc),
		Paginate(p.Page, p.Limit),
	}
}

// Run joins, applies stages in order and returns the projected views.
func Run(orders []models.Order, statuses []models.OrderStatus, stages []Stage) []models.TransactionView {
	records := Join(orders, statuses)
	for _, stage := range stages {
		records = stage(records)
	}
	views := make([]models.TransactionView, 0, len(records))
	for _, r := range records {
		views = append(views, r.View)
	}
	return views
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

func compare(a, b Record, field SortField) int {
	switch field {
	case SortPaymentTime:
		return compareTime(a.Status.PaymentTime, b.Status.PaymentTime)
	case SortCollectID:
		return strings.Compare(a.Status.CollectRequestID, b.Status.CollectRequestID)
	case SortOrderAmount:
		return a.Status.OrderAmount.Cmp(b.Status.OrderAmount)
	case SortTransactionAmount:
		return compareDecimal(a.Status.TransactionAmount, b.Status.TransactionAmount)
	case SortStatus:
		return strings.Compare(string(a.Status.Status), string(b.Status.Status))
	case SortCustomOrderID:
		return strings.Compare(a.Order.CustomOrderID, b.Order.CustomOrderID)
	case SortSchoolID:
		return strings.Compare(a.Order.SchoolID, b.Order.SchoolID)
	case SortGateway:
		return strings.Compare(a.Order.GatewayName, b.Order.GatewayName)
	case SortCreatedAt:
		return a.Order.CreatedAt.Compare(b.Order.CreatedAt)
	case SortUpdatedAt:
		return a.Status.UpdatedAt.Compare(b.Status.UpdatedAt)
	}
	return 0
}

func compareTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func compareDecimal(a, b *decimal.Decimal) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Cmp(*b)
}
