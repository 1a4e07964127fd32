package worker

import (
	"context"
	"log/slog"
	"time"

	"SchoolPayments/internal/models"
)

// OrphanStore lists orders that never received an order status.
type OrphanStore interface {
	ListOrphanedOrders(ctx context.Context, olderThan time.Time) ([]models.Order, error)
}

// Worker periodically sweeps for orders left without a status, which happens
// when the gateway call fails or the process dies between the two writes of
// payment creation. It reports them; it never modifies them.
type Worker struct {
	Store       OrphanStore
	Interval    time.Duration
	OrphanAfter time.Duration
	Now         func() time.Time
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.SweepOnce(ctx); err != nil {
			slog.Error("orphan sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce logs every orphaned order older than OrphanAfter and returns
// them.
func (w *Worker) SweepOnce(ctx context.Context) ([]models.Order, error) {
	now := time.Now().UTC()
	if w.Now != nil {
		now = w.Now()
	}
	cutoff := now.Add(-w.OrphanAfter)

	orders, err := w.Store.ListOrphanedOrders(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		slog.Warn("order has no status",
			"custom_order_id", o.CustomOrderID,
			"school_id", o.SchoolID,
			"created_at", o.CreatedAt.Format(time.RFC3339),
			"age", now.Sub(o.CreatedAt).Round(time.Second).String())
	}
	slog.Info("orphan sweep done", "cutoff", cutoff.Format(time.RFC3339), "orphaned", len(orders))
	return orders, nil
}
