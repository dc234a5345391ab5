// Package jobs holds scheduled maintenance tasks for the reference API.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/storage"
	"github.com/hongminglow/pawmart/internal/workflow"
)

var staleCancelled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pawmart_jobs_stale_orders_cancelled_total",
	Help: "Pending orders cancelled for exceeding their payment window.",
})

// StaleOrders cancels orders left pending for longer than the TTL.
type StaleOrders struct {
	orders   storage.OrderStore
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
	now      func() time.Time
}

func NewStaleOrders(orders storage.OrderStore, ttl time.Duration, logger *zap.Logger) *StaleOrders {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaleOrders{
		orders:   orders,
		ttl:      ttl,
		schedule: "0 */5 * * * *",
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger.Named("stale-orders"),
		now:      time.Now,
	}
}

// Start runs the job every five minutes.
func (j *StaleOrders) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.Error("stale order sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule stale order sweep: %w", err)
	}
	j.cron.Start()
	j.logger.Info("started", zap.String("schedule", j.schedule), zap.Duration("ttl", j.ttl))
	return nil
}

// Stop waits for a running sweep to finish.
func (j *StaleOrders) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce cancels every stale pending order and returns how many it moved.
// Orders paid in the meantime are left alone.
func (j *StaleOrders) RunOnce(ctx context.Context) (int, error) {
	if err := workflow.FulfillmentTable.Check(models.OrderPending, models.OrderCancelled); err != nil {
		return 0, err
	}
	stale, err := j.orders.ListOrdersOlderThan(ctx, models.OrderPending, j.now().Add(-j.ttl))
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}
	moved := 0
	for _, order := range stale {
		ok, err := j.orders.SetOrderStatus(ctx, order.ID, models.OrderPending, models.OrderCancelled)
		if err != nil {
			j.logger.Warn("cancel stale order", zap.Int64("order_id", order.ID), zap.Error(err))
			continue
		}
		if ok {
			moved++
			staleCancelled.Inc()
		}
	}
	if moved > 0 {
		j.logger.Info("cancelled stale orders", zap.Int("count", moved))
	}
	return moved, nil
}
