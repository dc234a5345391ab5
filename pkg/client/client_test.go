package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/config"
	"github.com/hongminglow/pawmart/internal/gateway/gatewaytest"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/session"
)

var owner = models.User{ID: 7, Email: "v@x.com", Role: models.RoleVendor, Active: true}

func memoryConfig() config.ClientConfig {
	return config.ClientConfig{SessionBackend: config.BackendMemory, APITimeout: time.Second}
}

func TestLoginSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	fake := gatewaytest.New()
	fake.AddUser("tok-v", "pw", owner, true)
	fake.Vendors[3] = &models.VendorProfile{ID: 3, UserID: owner.ID, Status: models.VendorApproved}
	persist := session.NewMemoryPersister()

	first, err := New(ctx, memoryConfig(), WithGateway(fake), WithPersister(persist))
	require.NoError(t, err)
	fake.Tokens = first.Session.Token
	_, err = first.Identity.Login(ctx, "v@x.com", "pw")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(ctx, memoryConfig(), WithGateway(fake), WithPersister(persist))
	require.NoError(t, err)
	defer second.Close()
	fake.Tokens = second.Session.Token

	sess, err := second.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, sess.User.ID)
	require.NotNil(t, sess.Vendor)
	assert.Equal(t, int64(3), sess.Vendor.ID)
	assert.Zero(t, fake.Calls("WhoAmI"), "cached user is trusted")
	assert.True(t, second.Capabilities().Has(capability.ManageVendorOrders))
}

func TestRefreshDashboardSeedsOrders(t *testing.T) {
	ctx := context.Background()
	fake := gatewaytest.New()
	fake.AddUser("tok-v", "pw", owner, true)
	fake.Orders[1] = &models.Order{ID: 1, Status: models.OrderPending}
	fake.Orders[2] = &models.Order{ID: 2, Status: models.OrderPaid}

	c, err := New(ctx, memoryConfig(), WithGateway(fake))
	require.NoError(t, err)
	defer c.Close()
	fake.Tokens = c.Session.Token
	_, err = c.Identity.Login(ctx, "v@x.com", "pw")
	require.NoError(t, err)

	require.NoError(t, c.RefreshDashboard(ctx))
	assert.Equal(t, map[string]int{models.OrderPending: 1, models.OrderPaid: 1}, c.Dashboard.Counts().Orders)
	assert.Zero(t, fake.Calls("ListPendingVendors"), "vendors cannot moderate")

	require.NoError(t, c.Fulfillment.SetStatus(ctx, 1, models.OrderPaid))
	assert.Equal(t, 2, c.Dashboard.Counts().Orders[models.OrderPaid])
}

func TestHTTPGatewayUsesSessionToken(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200, "message": "ok",
			"data": []models.Coupon{{Code: "ALL", DiscountType: models.DiscountFixed}},
		})
	}))
	defer srv.Close()

	ctx := context.Background()
	cfg := memoryConfig()
	cfg.APIBaseURL = srv.URL
	c, err := New(ctx, cfg)
	require.NoError(t, err)
	defer c.Close()
	c.Session.Establish(ctx, "tok-123", models.User{ID: 1, Role: models.RoleCustomer, Active: true})

	coupons, err := c.Coupons.List(ctx)
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	assert.Equal(t, "Bearer tok-123", seen)
}

func TestFileBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.SessionBackend = config.BackendFile
	cfg.SessionDir = t.TempDir()

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	c.Session.Establish(context.Background(), "tok", models.User{ID: 1, Role: models.RoleCustomer, Active: true})
	require.NoError(t, c.Close())

	again, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, "tok", again.Session.Token())
}
