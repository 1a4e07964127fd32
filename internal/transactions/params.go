package transactions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidParams = errors.New("invalid transaction query")

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// SortField is a sort key resolved against the joined Order+OrderStatus
// record, independent of the names used by the projection.
type SortField string

const (
	SortPaymentTime       SortField = "payment_time"
	SortCollectID         SortField = "collect_id"
	SortOrderAmount       SortField = "order_amount"
	SortTransactionAmount SortField = "transaction_amount"
	SortStatus            SortField = "status"
	SortCustomOrderID     SortField = "custom_order_id"
	SortSchoolID          SortField = "school_id"
	SortGateway           SortField = "gateway"
	SortCreatedAt         SortField = "created_at"
	SortUpdatedAt         SortField = "updated_at"
)

// sortKeys maps every accepted external sortBy value to its joined-record
// field. Anything not listed here is rejected.
var sortKeys = map[string]SortField{
	"payment_time":                   SortPaymentTime,
	"status_info.payment_time":       SortPaymentTime,
	"collect_id":                     SortCollectID,
	"collect_request_id":             SortCollectID,
	"status_info.collect_request_id": SortCollectID,
	"order_amount":                   SortOrderAmount,
	"status_info.order_amount":       SortOrderAmount,
	"transaction_amount":             SortTransactionAmount,
	"status_info.transaction_amount": SortTransactionAmount,
	"status":                         SortStatus,
	"status_info.status":             SortStatus,
	"custom_order_id":                SortCustomOrderID,
	"school_id":                      SortSchoolID,
	"gateway":                        SortGateway,
	"gateway_name":                   SortGateway,
	"createdAt":                      SortCreatedAt,
	"created_at":                     SortCreatedAt,
	"updatedAt":                      SortUpdatedAt,
	"updated_at":                     SortUpdatedAt,
}

// RawParams carries the query string values exactly as received.
type RawParams struct {
	Page      string
	Limit     string
	Status    string
	Search    string
	SortBy    string
	SortOrder string
}

// Params is a validated ListTransactions request. Status is empty when no
// status filter applies, otherwise upper-cased.
type Params struct {
	Page   int
	Limit  int
	Status string
	Search string
	SortBy SortField
	Desc   bool
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

func ResolveSortField(name string) (SortField, bool) {
	f, ok := sortKeys[name]
	return f, ok
}

func ParseParams(raw RawParams) (Params, error) {
	p := Params{
		Page:   DefaultPage,
		Limit:  DefaultLimit,
		Search: strings.TrimSpace(raw.Search),
		SortBy: SortPaymentTime,
		Desc:   true,
	}

	var err error
	if raw.Page != "" {
		if p.Page, err = parsePositive("page", raw.Page); err != nil {
			return Params{}, err
		}
	}
	if raw.Limit != "" {
		if p.Limit, err = parsePositive("limit", raw.Limit); err != nil {
			return Params{}, err
		}
	}

	status := strings.TrimSpace(raw.Status)
	if status != "" && !strings.EqualFold(status, "all") {
		p.Status = strings.ToUpper(status)
	}

	if raw.SortBy != "" {
		f, ok := ResolveSortField(raw.SortBy)
		if !ok {
			return Params{}, fmt.Errorf("%w: unsupported sortBy %q", ErrInvalidParams, raw.SortBy)
		}
		p.SortBy = f
	}

	switch strings.ToLower(raw.SortOrder) {
	case "", "desc":
		p.Desc = true
	case "asc":
		p.Desc = false
	default:
		return Params{}, fmt.Errorf("%w: sortOrder must be asc or desc", ErrInvalidParams)
	}
	return p, nil
}

func parsePositive(name, v string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidParams, name)
	}
	return int(n), nil
}
