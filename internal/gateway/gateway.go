// Package gateway describes the external marketplace API the core consumes.
package gateway

import (
	"context"

	"github.com/hongminglow/pawmart/internal/models"
)

// LoginResult is what credential verification yields. User is nil when the
// server returned only a token.
type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user,omitempty"`
}

type Auth interface {
	VerifyCredentials(ctx context.Context, email, password string) (LoginResult, error)
	WhoAmI(ctx context.Context, token string) (models.User, error)
	RequestOneTimeCode(ctx context.Context, email string) error
	VerifyOneTimeCode(ctx context.Context, email, code string) error
}

type Vendors interface {
	CreateVendorRequest(ctx context.Context, profile models.VendorProfile) (models.VendorProfile, error)
	GetVendorProfile(ctx context.Context) (models.VendorProfile, error)
	ListPendingVendors(ctx context.Context) ([]models.VendorProfile, error)
	SetVendorApproval(ctx context.Context, vendorID int64, status, reason string) error
}

type Products interface {
	CreateProduct(ctx context.Context, product models.Product) (models.Product, error)
	// ListVendorProducts returns every product of the caller's store.
	ListVendorProducts(ctx context.Context) ([]models.Product, error)
	ListPendingProducts(ctx context.Context) ([]models.Product, error)
	SetProductApproval(ctx context.Context, productID int64, status, reason string) error
	ResubmitProduct(ctx context.Context, productID int64) error
}

type Orders interface {
	ListVendorOrders(ctx context.Context) ([]models.Order, error)
	SetOrderStatus(ctx context.Context, orderID int64, status string) error
}

type Coupons interface {
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	CreateCoupon(ctx context.Context, coupon models.Coupon) (models.Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
}

type Users interface {
	ListUsers(ctx context.Context, role string) ([]models.User, error)
	SetUserActive(ctx context.Context, userID int64, active bool) error
}

// Gateway is the full collaborator surface.
type Gateway interface {
	Auth
	Vendors
	Products
	Orders
	Coupons
	Users
}
