package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/storage"
)

// TestStoreIntegration walks a vendor through onboarding, a product and an
// order against a live database.
func TestStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION") != "true" {
		t.Skip("set RUN_DB_INTEGRATION=true to run this integration test")
	}
	for _, path := range []string{".env", "../.env", "../../.env", "../../../.env"} {
		_ = godotenv.Overload(path)
	}
	dbURL := os.Getenv("DATABASE_URL")
	require.NotEmpty(t, dbURL, "DATABASE_URL is required")

	ctx := context.Background()
	store, err := NewStore(ctx, dbURL)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	email := fmt.Sprintf("it_%d@example.com", time.Now().UnixNano())
	user, err := store.CreateUser(ctx, models.User{Email: email, Role: models.RoleCustomer, Active: true, PasswordHash: "x"})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, models.User{Email: email, PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	vendor, err := store.SaveVendorRequest(ctx, models.VendorProfile{UserID: user.ID, StoreName: "Paws"})
	require.NoError(t, err)
	assert.Equal(t, models.VendorPending, vendor.Status)
	_, err = store.SaveVendorRequest(ctx, models.VendorProfile{UserID: user.ID, StoreName: "Again"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists, "pending applications cannot be replaced")

	moved, err := store.SetVendorStatus(ctx, vendor.ID, models.VendorPending, models.VendorRejected, "no address")
	require.NoError(t, err)
	require.True(t, moved)
	vendor, err = store.SaveVendorRequest(ctx, models.VendorProfile{UserID: user.ID, StoreName: "Paws II"})
	require.NoError(t, err)
	assert.Equal(t, models.VendorPending, vendor.Status)
	assert.Empty(t, vendor.RejectionReason)
	moved, err = store.SetVendorStatus(ctx, vendor.ID, models.VendorPending, models.VendorApproved, "")
	require.NoError(t, err)
	require.True(t, moved)
	moved, err = store.SetVendorStatus(ctx, vendor.ID, models.VendorPending, models.VendorRejected, "late")
	require.NoError(t, err)
	assert.False(t, moved, "a decision made on a stale read loses")
	owner, err := store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVendor, owner.Role, "approval promotes the owner in the same transaction")

	product, err := store.CreateProduct(ctx, models.Product{
		VendorID: vendor.ID, Name: "Bone", Price: decimal.RequireFromString("4.50"), Stock: 3, Status: models.ProductPending,
	})
	require.NoError(t, err)
	assert.True(t, product.Price.Equal(decimal.RequireFromString("4.5")))

	order, err := store.CreateOrder(ctx, models.Order{
		VendorID: vendor.ID, UserID: user.ID,
		Items: []models.OrderItem{{ProductID: product.ID, Quantity: 2, UnitPrice: product.Price}},
	})
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(9)))
	require.Len(t, order.Items, 1)

	moved, err = store.SetProductStatus(ctx, product.ID, models.ProductPending, models.ProductApproved, "")
	require.NoError(t, err)
	assert.True(t, moved)
	moved, err = store.SetProductStatus(ctx, product.ID, models.ProductPending, models.ProductRejected, "late")
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = store.SetOrderStatus(ctx, order.ID, models.OrderPending, models.OrderPaid)
	require.NoError(t, err)
	assert.True(t, moved)
	moved, err = store.SetOrderStatus(ctx, order.ID, models.OrderPending, models.OrderCancelled)
	require.NoError(t, err)
	assert.False(t, moved)
	_, err = store.SetOrderStatus(ctx, -1, models.OrderPending, models.OrderPaid)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
