package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/models"
)

func sellerWithOrders(t *testing.T, orders ...models.Order) (*env, *Fulfillment) {
	t.Helper()
	e := newEnv(t, nil)
	e.loginAs(seller, sellerShop)
	for i := range orders {
		o := orders[i]
		e.fake.Orders[o.ID] = &o
	}
	return e, NewFulfillment(e.cfg)
}

func TestSetStatusTwiceIsNoop(t *testing.T) {
	e, f := sellerWithOrders(t, models.Order{ID: 5, Status: models.OrderPending})
	ctx := context.Background()

	require.NoError(t, f.SetStatus(ctx, 5, models.OrderProcessing))
	require.NoError(t, f.SetStatus(ctx, 5, models.OrderProcessing))

	assert.Equal(t, 1, e.fake.Calls("SetOrderStatus"))
	assert.Len(t, e.eventsOf(bus.EventOrder), 1)
	o, _ := f.Lookup(5)
	assert.Equal(t, models.OrderProcessing, o.Status)
}

func TestFulfillmentTerminalStates(t *testing.T) {
	_, f := sellerWithOrders(t,
		models.Order{ID: 1, Status: models.OrderDelivered},
		models.Order{ID: 2, Status: models.OrderCancelled},
	)
	ctx := context.Background()

	assert.ErrorIs(t, f.Cancel(ctx, 1), apperr.ErrValidation)
	assert.ErrorIs(t, f.SetStatus(ctx, 2, models.OrderPaid), apperr.ErrValidation)
}

func TestFulfillmentRejectsUnknownStatus(t *testing.T) {
	e, f := sellerWithOrders(t, models.Order{ID: 1, Status: models.OrderPending})
	err := f.SetStatus(context.Background(), 1, "teleported")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, e.fake.Calls("ListVendorOrders"))
}

func TestFulfillmentListFilters(t *testing.T) {
	_, f := sellerWithOrders(t,
		models.Order{ID: 1, Status: models.OrderPending},
		models.Order{ID: 2, Status: models.OrderShipped},
		models.Order{ID: 3, Status: models.OrderPending},
	)
	pending, err := f.List(context.Background(), models.OrderPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(1), pending[0].ID)
	assert.Equal(t, map[string]int{models.OrderPending: 2, models.OrderShipped: 1}, f.Counts())
}

func TestFulfillmentTransientKeepsSession(t *testing.T) {
	e, f := sellerWithOrders(t, models.Order{ID: 1, Status: models.OrderPending})
	e.fake.Fail("SetOrderStatus", errors.Join(apperr.ErrTransient, errors.New("502 bad gateway")))

	err := f.SetStatus(context.Background(), 1, models.OrderPaid)
	assert.ErrorIs(t, err, apperr.ErrStale)
	assert.True(t, e.store.Snapshot().Resolved())
	o, _ := f.Lookup(1)
	assert.Equal(t, models.OrderPending, o.Status)
	assert.Empty(t, e.eventsOf(bus.EventOrder))
}

func TestAdminWithoutStoreCannotFulfill(t *testing.T) {
	e := newEnv(t, nil)
	e.loginAs(admin, nil)
	err := NewFulfillment(e.cfg).SetStatus(context.Background(), 1, models.OrderPaid)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
