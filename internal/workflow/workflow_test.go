package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/gateway/gatewaytest"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/session"
)

var (
	admin      = models.User{ID: 1, Email: "root@x.com", Role: models.RoleAdmin, Active: true}
	seller     = models.User{ID: 2, Email: "v@x.com", Role: models.RoleVendor, Active: true}
	shopper    = models.User{ID: 3, Email: "a@x.com", Role: models.RoleCustomer, Active: true}
	sellerShop = &models.VendorProfile{ID: 20, UserID: seller.ID, StoreName: "Seller", Status: models.VendorApproved}
)

// env is one client process: its own store and bus over a shared fake.
type env struct {
	fake   *gatewaytest.Fake
	store  *session.Store
	bus    *bus.Bus
	cfg    Config
	events []bus.Event
}

func newEnv(t *testing.T, fake *gatewaytest.Fake) *env {
	t.Helper()
	if fake == nil {
		fake = gatewaytest.New()
	}
	e := &env{fake: fake, store: session.NewStore(nil, nil), bus: bus.New(nil)}
	for _, typ := range []bus.EventType{bus.EventVendor, bus.EventProduct, bus.EventOrder, bus.EventUser, bus.EventCoupon} {
		e.bus.Subscribe(typ, func(ev bus.Event) { e.events = append(e.events, ev) })
	}
	e.cfg = Config{Gateway: fake, Store: e.store, Events: e.bus}
	return e
}

// loginAs signs user in on this client and points the fake's caller at it.
func (e *env) loginAs(user models.User, vendor *models.VendorProfile) {
	ctx := context.Background()
	token := fmt.Sprintf("tok-%d", user.ID)
	e.fake.AddUser(token, "pw", user, true)
	e.fake.Tokens = e.store.Token
	e.store.Establish(ctx, token, user)
	if vendor != nil {
		v := *vendor
		e.fake.Vendors[v.ID] = &v
		e.store.UpdateVendor(ctx, &v)
	}
}

func (e *env) eventsOf(typ bus.EventType) []bus.Event {
	var out []bus.Event
	for _, ev := range e.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestForbiddenKeepsSession(t *testing.T) {
	e := newEnv(t, nil)
	e.loginAs(seller, sellerShop)
	m := NewModeration(e.cfg)

	err := m.Approve(context.Background(), 42)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.NotErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.True(t, e.store.Snapshot().Resolved())
	assert.Zero(t, e.fake.Calls("ListPendingProducts"))
}

func TestLoggedOutIsUnauthenticated(t *testing.T) {
	e := newEnv(t, nil)
	err := NewFulfillment(e.cfg).SetStatus(context.Background(), 1, models.OrderPaid)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestRejectedCallClearsSession(t *testing.T) {
	e := newEnv(t, nil)
	e.loginAs(admin, nil)
	e.fake.Fail("ListPendingVendors", apperr.ErrUnauthenticated)

	_, err := NewOnboarding(e.cfg).List(context.Background())
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.False(t, e.store.Snapshot().Authenticated())
}
