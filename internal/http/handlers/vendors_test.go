package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/models/dto"
)

func TestOnboardingOverHTTP(t *testing.T) {
	a := newAPI(t)
	applicant, token := a.account("c@x.com", models.RoleCustomer)
	_, adminToken := a.account("admin@x.com", models.RoleAdmin)

	status, _ := a.call(http.MethodGet, "/api/vendors/me", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, res := a.call(http.MethodPost, "/api/vendors", token, dto.VendorRequest{StoreName: "Paws"})
	require.Equal(t, http.StatusCreated, status)
	vendor := decodeData[models.VendorProfile](t, res)
	assert.Equal(t, models.VendorPending, vendor.Status)

	status, _ = a.call(http.MethodPost, "/api/vendors", token, dto.VendorRequest{StoreName: "Paws"})
	assert.Equal(t, http.StatusOK, status, "a pending application is left alone")

	status, _ = a.call(http.MethodGet, "/api/admin/vendors/pending", token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, res = a.call(http.MethodGet, "/api/admin/vendors/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[[]models.VendorProfile](t, res), 1)

	approval := fmt.Sprintf("/api/admin/vendors/%d/approval", vendor.ID)
	status, _ = a.call(http.MethodPut, approval, adminToken, dto.ApprovalRequest{Status: models.VendorRejected})
	assert.Equal(t, http.StatusBadRequest, status, "rejections need a reason")
	status, _ = a.call(http.MethodPut, approval, adminToken, dto.ApprovalRequest{Status: models.VendorRejected, RejectionReason: "no address"})
	require.Equal(t, http.StatusOK, status)

	status, res = a.call(http.MethodGet, "/api/vendors/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "no address", decodeData[models.VendorProfile](t, res).RejectionReason)

	status, _ = a.call(http.MethodPost, "/api/vendors", token, dto.VendorRequest{StoreName: "Paws", Address: "1 Road"})
	require.Equal(t, http.StatusCreated, status)
	status, _ = a.call(http.MethodPut, approval, adminToken, dto.ApprovalRequest{Status: models.VendorApproved})
	require.Equal(t, http.StatusOK, status)

	user, err := a.store.FindUserByID(context.Background(), applicant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVendor, user.Role, "approved customers become store operators")

	status, _ = a.call(http.MethodPost, "/api/vendors", token, dto.VendorRequest{StoreName: "Again"})
	assert.Equal(t, http.StatusBadRequest, status, "approval is final")
	status, _ = a.call(http.MethodPut, approval, adminToken, dto.ApprovalRequest{Status: models.VendorRejected, RejectionReason: "late"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminWithApprovedStore(t *testing.T) {
	a := newAPI(t)
	admin, token := a.account("admin@x.com", models.RoleAdmin)
	product := models.Product{Name: "Leash", Price: decimal.NewFromInt(12), Stock: 4}

	status, _ := a.call(http.MethodPost, "/api/vendors/products", token, product)
	assert.Equal(t, http.StatusForbidden, status)

	_, res := a.call(http.MethodPost, "/api/vendors", token, dto.VendorRequest{StoreName: "Admin Shop"})
	vendor := decodeData[models.VendorProfile](t, res)
	status, _ = a.call(http.MethodPut, fmt.Sprintf("/api/admin/vendors/%d/approval", vendor.ID), token,
		dto.ApprovalRequest{Status: models.VendorApproved})
	require.Equal(t, http.StatusOK, status)

	stored, err := a.store.FindUserByID(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, stored.Role)

	status, _ = a.call(http.MethodPost, "/api/vendors/products", token, product)
	assert.Equal(t, http.StatusCreated, status)
}

func TestProductReviewOverHTTP(t *testing.T) {
	a := newAPI(t)
	_, vendor, token := a.operator("v@x.com")
	_, _, rivalToken := a.operator("r@x.com")
	_, adminToken := a.account("admin@x.com", models.RoleAdmin)

	status, _ := a.call(http.MethodPost, "/api/vendors/products", token,
		models.Product{Name: "Bone", Price: decimal.NewFromInt(-1)})
	assert.Equal(t, http.StatusBadRequest, status)

	status, res := a.call(http.MethodPost, "/api/vendors/products", token,
		models.Product{Name: "Bone", Price: decimal.RequireFromString("3.50"), Stock: 2, Status: models.ProductApproved})
	require.Equal(t, http.StatusCreated, status)
	product := decodeData[models.Product](t, res)
	assert.Equal(t, models.ProductPending, product.Status, "new products always start pending")
	assert.Equal(t, vendor.ID, product.VendorID)

	status, res = a.call(http.MethodGet, "/api/admin/products/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[[]models.Product](t, res), 1)

	approval := fmt.Sprintf("/api/admin/products/%d/approval", product.ID)
	status, _ = a.call(http.MethodPut, approval, token, dto.ApprovalRequest{Status: models.ProductApproved})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = a.call(http.MethodPut, approval, adminToken, dto.ApprovalRequest{Status: models.ProductPending})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = a.call(http.MethodPut, approval, adminToken,
		dto.ApprovalRequest{Status: models.ProductRejected, RejectionReason: "missing description"})
	require.Equal(t, http.StatusOK, status)

	resubmit := fmt.Sprintf("/api/vendors/products/%d/resubmit", product.ID)
	status, _ = a.call(http.MethodPost, resubmit, rivalToken, nil)
	assert.Equal(t, http.StatusNotFound, status, "other stores cannot see the product")
	status, _ = a.call(http.MethodPost, resubmit, token, nil)
	require.Equal(t, http.StatusOK, status)

	status, res = a.call(http.MethodGet, "/api/vendors/products", token, nil)
	require.Equal(t, http.StatusOK, status)
	own := decodeData[[]models.Product](t, res)
	require.Len(t, own, 1)
	assert.Equal(t, models.ProductPending, own[0].Status)
	assert.Empty(t, own[0].RejectionReason)

	status, _ = a.call(http.MethodPut, approval, adminToken, dto.ApprovalRequest{Status: models.ProductApproved})
	require.Equal(t, http.StatusOK, status)
	status, _ = a.call(http.MethodPost, resubmit, token, nil)
	assert.Equal(t, http.StatusBadRequest, status, "approved products stay approved")
}

func TestOrderStatusOverHTTP(t *testing.T) {
	a := newAPI(t)
	_, vendor, token := a.operator("v@x.com")
	_, _, rivalToken := a.operator("r@x.com")
	_, customerToken := a.account("c@x.com", models.RoleCustomer)
	order, err := a.store.CreateOrder(context.Background(), models.Order{
		VendorID: vendor.ID,
		Items:    []models.OrderItem{{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(5)}},
	})
	require.NoError(t, err)
	path := fmt.Sprintf("/api/vendors/orders/%d/status", order.ID)

	status, res := a.call(http.MethodGet, "/api/vendors/orders", token, nil)
	require.Equal(t, http.StatusOK, status)
	orders := decodeData[[]models.Order](t, res)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Total.Equal(decimal.NewFromInt(10)))

	status, _ = a.call(http.MethodGet, "/api/vendors/orders", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = a.call(http.MethodPut, path, rivalToken, dto.OrderStatusRequest{Status: models.OrderPaid})
	assert.Equal(t, http.StatusNotFound, status)

	for _, step := range []struct {
		to   string
		want int
	}{
		{models.OrderPaid, http.StatusOK},
		{models.OrderPaid, http.StatusOK},
		{models.OrderPending, http.StatusBadRequest},
		{"lost", http.StatusBadRequest},
		{models.OrderShipped, http.StatusOK},
		{models.OrderCancelled, http.StatusBadRequest},
		{models.OrderDelivered, http.StatusOK},
	} {
		status, _ := a.call(http.MethodPut, path, token, dto.OrderStatusRequest{Status: step.to})
		assert.Equal(t, step.want, status, "move to %s", step.to)
	}

	stored, err := a.store.FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, stored.Status)
}
