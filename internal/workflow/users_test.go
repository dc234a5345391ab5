package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/models"
)

func TestSetActive(t *testing.T) {
	e := newEnv(t, nil)
	e.loginAs(admin, nil)
	e.fake.AddUser("tok-shopper", "pw", shopper, true)
	u := NewUsers(e.cfg)
	ctx := context.Background()

	require.NoError(t, u.SetActive(ctx, shopper.ID, false))
	assert.False(t, e.fake.Users[shopper.ID].Active)
	require.NoError(t, u.SetActive(ctx, shopper.ID, false))
	assert.Equal(t, 1, e.fake.Calls("SetUserActive"))

	events := e.eventsOf(bus.EventUser)
	require.Len(t, events, 1)
	assert.Equal(t, UserActive, events[0].From)
	assert.Equal(t, UserInactive, events[0].To)

	assert.ErrorIs(t, u.SetActive(ctx, 404, true), apperr.ErrNotFound)
}

func TestCannotDeactivateSelf(t *testing.T) {
	e := newEnv(t, nil)
	e.loginAs(admin, nil)
	err := NewUsers(e.cfg).SetActive(context.Background(), admin.ID, false)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, e.fake.Calls("SetUserActive"))
}

func TestListUsersByRole(t *testing.T) {
	e := newEnv(t, nil)
	e.loginAs(admin, nil)
	e.fake.AddUser("tok-shopper", "pw", shopper, true)
	e.fake.AddUser("tok-seller", "pw", seller, true)
	u := NewUsers(e.cfg)

	vendors, err := u.List(context.Background(), models.RoleVendor)
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, seller.ID, vendors[0].ID)

	_, err = u.List(context.Background(), "wizard")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestVendorCannotManageUsers(t *testing.T) {
	e := newEnv(t, nil)
	e.loginAs(seller, sellerShop)
	_, err := NewUsers(e.cfg).List(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
