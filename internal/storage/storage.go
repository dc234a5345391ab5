package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/pawmart/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures persistence operations needed by the auth and admin handlers.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id int64) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	// ListUsers returns every user, or only those holding role when it is set.
	ListUsers(ctx context.Context, role string) ([]models.User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
}

// VendorStore holds store applications. A user owns at most one.
type VendorStore interface {
	// SaveVendorRequest creates the caller's application or replaces a
	// rejected one, leaving it pending.
	SaveVendorRequest(ctx context.Context, profile models.VendorProfile) (models.VendorProfile, error)
	FindVendorByID(ctx context.Context, id int64) (models.VendorProfile, error)
	FindVendorByUser(ctx context.Context, userID int64) (models.VendorProfile, error)
	ListVendorsByStatus(ctx context.Context, status string) ([]models.VendorProfile, error)
	// SetVendorStatus moves an application only if it is still in from. An
	// approval promotes a customer owner to vendor in the same write. It
	// reports false when another writer got there first.
	SetVendorStatus(ctx context.Context, id int64, from, to, reason string) (bool, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, product models.Product) (models.Product, error)
	FindProduct(ctx context.Context, id int64) (models.Product, error)
	ListProductsByVendor(ctx context.Context, vendorID int64) ([]models.Product, error)
	ListProductsByStatus(ctx context.Context, status string) ([]models.Product, error)
	// SetProductStatus moves a product only if it is still in from.
	SetProductStatus(ctx context.Context, id int64, from, to, reason string) (bool, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order models.Order) (models.Order, error)
	FindOrder(ctx context.Context, id int64) (models.Order, error)
	ListOrdersByVendor(ctx context.Context, vendorID int64) ([]models.Order, error)
	// ListOrdersOlderThan returns orders in status created before cutoff.
	ListOrdersOlderThan(ctx context.Context, status string, cutoff time.Time) ([]models.Order, error)
	// SetOrderStatus moves an order only if it is still in from. It reports
	// false when another writer got there first.
	SetOrderStatus(ctx context.Context, id int64, from, to string) (bool, error)
}

type CouponStore interface {
	CreateCoupon(ctx context.Context, coupon models.Coupon) (models.Coupon, error)
	FindCoupon(ctx context.Context, code string) (models.Coupon, error)
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
}

// Store is the full persistence surface of the API.
type Store interface {
	UserStore
	VendorStore
	ProductStore
	OrderStore
	CouponStore
}
