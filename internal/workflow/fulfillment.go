package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/gateway"
	"github.com/hongminglow/pawmart/internal/guard"
	"github.com/hongminglow/pawmart/internal/models"
)

// Fulfillment advances a store's orders along FulfillmentTable.
type Fulfillment struct {
	core
	orders gateway.Orders

	mu    sync.RWMutex
	index map[int64]models.Order
}

func NewFulfillment(cfg Config) *Fulfillment {
	return &Fulfillment{
		core:   newCore(cfg, "order", FulfillmentTable),
		orders: cfg.Gateway,
		index:  map[int64]models.Order{},
	}
}

// SetStatus moves orderID to status. Repeating the current status is a no-op.
func (f *Fulfillment) SetStatus(ctx context.Context, orderID int64, status string) error {
	return f.Transition(ctx, orderID, status, "")
}

func (f *Fulfillment) Cancel(ctx context.Context, orderID int64) error {
	return f.Transition(ctx, orderID, models.OrderCancelled, "")
}

// Transition moves orderID to target. Orders carry no reason, so reason is
// ignored.
func (f *Fulfillment) Transition(ctx context.Context, orderID int64, target, _ string) error {
	grant, err := f.guard.Require(capability.ManageVendorOrders)
	if err != nil {
		return err
	}
	if err := f.checkTarget(target); err != nil {
		return err
	}

	f.moves.Lock()
	defer f.moves.Unlock()

	o, err := f.lookup(ctx, grant, orderID)
	if err != nil {
		return err
	}
	_, err = f.apply(ctx, move{
		route: guard.RouteVendor,
		grant: grant,
		event: bus.EventOrder,
		from:  o.Status,
		to:    target,
		call: func(ctx context.Context) error {
			return f.orders.SetOrderStatus(ctx, orderID, target)
		},
		commit: func() int64 {
			o.Status = target
			f.remember(o)
			return orderID
		},
	})
	return err
}

// List returns the store's orders, optionally only those in status.
func (f *Fulfillment) List(ctx context.Context, status string) ([]models.Order, error) {
	grant, err := f.guard.Require(capability.ManageVendorOrders)
	if err != nil {
		return nil, err
	}
	if status != "" {
		if err := f.checkTarget(status); err != nil {
			return nil, err
		}
	}
	orders, err := f.refresh(ctx, grant)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return orders, nil
	}
	out := orders[:0:0]
	for _, o := range orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

// Counts tallies the indexed orders by status.
func (f *Fulfillment) Counts() map[string]int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	counts := make(map[string]int, len(models.OrderStatuses))
	for _, o := range f.index {
		counts[o.Status]++
	}
	return counts
}

func (f *Fulfillment) Lookup(orderID int64) (models.Order, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	o, ok := f.index[orderID]
	return o, ok
}

func (f *Fulfillment) lookup(ctx context.Context, grant guard.Grant, orderID int64) (models.Order, error) {
	if o, ok := f.Lookup(orderID); ok {
		return o, nil
	}
	if _, err := f.refresh(ctx, grant); err != nil {
		return models.Order{}, err
	}
	if o, ok := f.Lookup(orderID); ok {
		return o, nil
	}
	return models.Order{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
}

func (f *Fulfillment) refresh(ctx context.Context, grant guard.Grant) ([]models.Order, error) {
	orders, err := f.orders.ListVendorOrders(ctx)
	if err != nil {
		return nil, f.fail(ctx, guard.RouteVendor, grant, fmt.Errorf("list vendor orders: %w", err))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })

	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = make(map[int64]models.Order, len(orders))
	for _, o := range orders {
		f.index[o.ID] = o
	}
	return orders, nil
}

func (f *Fulfillment) remember(o models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index[o.ID] = o
}
