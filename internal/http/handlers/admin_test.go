package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/models/dto"
	"github.com/hongminglow/pawmart/internal/storage"
	"github.com/hongminglow/pawmart/internal/storage/memory"
)

func TestUserManagement(t *testing.T) {
	a := newAPI(t)
	admin, adminToken := a.account("admin@x.com", models.RoleAdmin)
	customer, customerToken := a.account("c@x.com", models.RoleCustomer)
	a.operator("v@x.com")

	status, res := a.call(http.MethodGet, "/api/admin/users?role=vendor", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	users := decodeData[[]models.User](t, res)
	require.Len(t, users, 1)
	assert.Equal(t, "v@x.com", users[0].Email)

	status, _ = a.call(http.MethodGet, "/api/admin/users?role=owner", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = a.call(http.MethodGet, "/api/admin/users", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	off := false
	status, _ = a.call(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/status", admin.ID), adminToken, dto.UserStatusRequest{Active: &off})
	assert.Equal(t, http.StatusBadRequest, status, "admins cannot lock themselves out")
	status, _ = a.call(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/status", customer.ID), adminToken, dto.UserStatusRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = a.call(http.MethodPut, "/api/admin/users/999/status", adminToken, dto.UserStatusRequest{Active: &off})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.call(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/status", customer.ID), adminToken, dto.UserStatusRequest{Active: &off})
	require.Equal(t, http.StatusOK, status)
	status, _ = a.call(http.MethodGet, "/api/auth/me", customerToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCouponScopes(t *testing.T) {
	a := newAPI(t)
	_, adminToken := a.account("admin@x.com", models.RoleAdmin)
	_, vendor, vendorToken := a.operator("v@x.com")
	_, rival, rivalToken := a.operator("r@x.com")
	_, customerToken := a.account("c@x.com", models.RoleCustomer)
	now := time.Now()

	coupon := func(code string, vendorID *int64, starts time.Time) models.Coupon {
		return models.Coupon{
			Code: code, VendorID: vendorID, DiscountType: models.DiscountPercent,
			DiscountValue: decimal.NewFromInt(10), StartsAt: starts, EndsAt: starts.Add(48 * time.Hour),
		}
	}
	zero := int64(0)
	rivalID := rival.ID

	status, _ := a.call(http.MethodPost, "/api/coupons", vendorToken, coupon("ALL10", nil, now.Add(-time.Hour)))
	assert.Equal(t, http.StatusForbidden, status, "global coupons are admin-only")
	status, res := a.call(http.MethodPost, "/api/coupons", adminToken, coupon(" all10 ", nil, now.Add(-time.Hour)))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "ALL10", decodeData[models.Coupon](t, res).Code)
	status, _ = a.call(http.MethodPost, "/api/coupons", adminToken, coupon("ALL10", nil, now.Add(-time.Hour)))
	assert.Equal(t, http.StatusConflict, status)

	status, res = a.call(http.MethodPost, "/api/coupons", vendorToken, coupon("SHOP", &zero, now.Add(24*time.Hour)))
	require.Equal(t, http.StatusCreated, status)
	shop := decodeData[models.Coupon](t, res)
	require.NotNil(t, shop.VendorID)
	assert.Equal(t, vendor.ID, *shop.VendorID)

	status, _ = a.call(http.MethodPost, "/api/coupons", vendorToken, coupon("STEAL", &rivalID, now))
	assert.Equal(t, http.StatusForbidden, status)
	bad := coupon("BAD", &zero, now)
	bad.DiscountValue = decimal.NewFromInt(150)
	status, _ = a.call(http.MethodPost, "/api/coupons", vendorToken, bad)
	assert.Equal(t, http.StatusBadRequest, status)

	codes := func(token string) []string {
		status, res := a.call(http.MethodGet, "/api/coupons", token, nil)
		require.Equal(t, http.StatusOK, status)
		var out []string
		for _, c := range decodeData[[]models.Coupon](t, res) {
			out = append(out, c.Code)
		}
		return out
	}
	assert.Equal(t, []string{"ALL10", "SHOP"}, codes(adminToken))
	assert.Equal(t, []string{"ALL10", "SHOP"}, codes(vendorToken))
	assert.Equal(t, []string{"ALL10"}, codes(rivalToken))
	assert.Equal(t, []string{"ALL10"}, codes(customerToken), "customers only see running coupons")

	status, _ = a.call(http.MethodDelete, "/api/coupons/shop", rivalToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = a.call(http.MethodDelete, "/api/coupons/shop", vendorToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = a.call(http.MethodDelete, "/api/coupons/SHOP", vendorToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// staleReads answers lookups with the pending copy a slower moderator would
// have read before another decision landed.
type staleReads struct {
	*memory.Store
}

func (s staleReads) FindVendorByID(ctx context.Context, id int64) (models.VendorProfile, error) {
	v, err := s.Store.FindVendorByID(ctx, id)
	v.Status = models.VendorPending
	return v, err
}

func (s staleReads) FindProduct(ctx context.Context, id int64) (models.Product, error) {
	p, err := s.Store.FindProduct(ctx, id)
	p.Status = models.ProductPending
	return p, err
}

func TestDecisionLosesRace(t *testing.T) {
	a := newAPIWith(t, func(s *memory.Store) storage.Store { return staleReads{s} })
	ctx := context.Background()
	_, adminToken := a.account("admin@x.com", models.RoleAdmin)
	owner, _ := a.account("c@x.com", models.RoleCustomer)

	vendor, err := a.store.SaveVendorRequest(ctx, models.VendorProfile{UserID: owner.ID, StoreName: "Paws"})
	require.NoError(t, err)
	moved, err := a.store.SetVendorStatus(ctx, vendor.ID, models.VendorPending, models.VendorApproved, "")
	require.NoError(t, err)
	require.True(t, moved)

	status, _ := a.call(http.MethodPut, fmt.Sprintf("/api/admin/vendors/%d/approval", vendor.ID), adminToken,
		dto.ApprovalRequest{Status: models.VendorRejected, RejectionReason: "late"})
	assert.Equal(t, http.StatusConflict, status)
	stored, err := a.store.FindVendorByID(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VendorApproved, stored.Status, "the first decision stands")
	user, err := a.store.FindUserByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVendor, user.Role)

	product, err := a.store.CreateProduct(ctx, models.Product{VendorID: vendor.ID, Name: "Bone", Status: models.ProductPending})
	require.NoError(t, err)
	moved, err = a.store.SetProductStatus(ctx, product.ID, models.ProductPending, models.ProductRejected, "blurry")
	require.NoError(t, err)
	require.True(t, moved)

	status, _ = a.call(http.MethodPut, fmt.Sprintf("/api/admin/products/%d/approval", product.ID), adminToken,
		dto.ApprovalRequest{Status: models.ProductApproved})
	assert.Equal(t, http.StatusConflict, status)
	p, err := a.store.FindProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductRejected, p.Status)

	status, _ = a.call(http.MethodPut, "/api/admin/products/999/approval", adminToken,
		dto.ApprovalRequest{Status: models.ProductApproved})
	assert.Equal(t, http.StatusNotFound, status)
}
