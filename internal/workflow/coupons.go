package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/gateway"
	"github.com/hongminglow/pawmart/internal/guard"
	"github.com/hongminglow/pawmart/internal/models"
)

// Coupon lifecycle markers carried in bus events.
const (
	CouponActive  = "active"
	CouponDeleted = "deleted"
)

var hundred = decimal.NewFromInt(100)

// Coupons manages global coupons for admins and store coupons for vendors.
type Coupons struct {
	core
	coupons gateway.Coupons

	mu    sync.RWMutex
	index map[string]models.Coupon
}

func NewCoupons(cfg Config) *Coupons {
	return &Coupons{
		core:    newCore(cfg, "coupon", Table{}),
		coupons: cfg.Gateway,
		index:   map[string]models.Coupon{},
	}
}

// Create registers coupon. A nil VendorID asks for a global coupon;
// otherwise the coupon is bound to the caller's store.
func (c *Coupons) Create(ctx context.Context, coupon models.Coupon) (models.Coupon, error) {
	if coupon.VendorID != nil {
		id := *coupon.VendorID
		coupon.VendorID = &id
	}
	grant, route, err := c.authorize(coupon.VendorID)
	if err != nil {
		return models.Coupon{}, err
	}
	coupon.Code = NormalizeCode(coupon.Code)
	if err := CheckCoupon(coupon); err != nil {
		return models.Coupon{}, err
	}

	created, err := c.coupons.CreateCoupon(ctx, coupon)
	if err != nil {
		return models.Coupon{}, c.fail(ctx, route, grant, fmt.Errorf("create coupon: %w", err))
	}
	c.remember(created)
	c.publish(bus.EventCoupon, 0, created.Code, "", CouponActive)
	return created, nil
}

// Delete removes a coupon the caller has authority over.
func (c *Coupons) Delete(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	if code == "" {
		return apperr.Invalid("code", "is required")
	}
	grant, err := c.guard.RequireIdentity()
	if err != nil {
		return err
	}

	coupon, ok := c.Lookup(code)
	if !ok {
		if _, err := c.refresh(ctx, grant); err != nil {
			return err
		}
		if coupon, ok = c.Lookup(code); !ok {
			return fmt.Errorf("coupon %s: %w", code, apperr.ErrNotFound)
		}
	}
	grant, route, err := c.authorize(coupon.VendorID)
	if err != nil {
		return err
	}

	if err := c.coupons.DeleteCoupon(ctx, code); err != nil {
		return c.fail(ctx, route, grant, fmt.Errorf("delete coupon: %w", err))
	}
	c.mu.Lock()
	delete(c.index, code)
	c.mu.Unlock()
	c.publish(bus.EventCoupon, 0, code, CouponActive, CouponDeleted)
	return nil
}

// List returns the coupons visible to the caller.
func (c *Coupons) List(ctx context.Context) ([]models.Coupon, error) {
	grant, err := c.guard.RequireIdentity()
	if err != nil {
		return nil, err
	}
	return c.refresh(ctx, grant)
}

func (c *Coupons) Lookup(code string) (models.Coupon, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coupon, ok := c.index[code]
	return coupon, ok
}

// authorize checks the caller may manage a coupon scoped to vendorID and
// fills in the caller's store when vendorID points at zero.
func (c *Coupons) authorize(vendorID *int64) (guard.Grant, guard.RouteClass, error) {
	if vendorID == nil {
		grant, err := c.guard.Require(capability.ManageGlobalCoupons)
		return grant, guard.RouteAdmin, err
	}
	grant, err := c.guard.Require(capability.ManageVendorCatalog)
	if err != nil {
		return guard.Grant{}, guard.RouteVendor, err
	}
	own := grant.Session.Vendor
	if own == nil {
		return guard.Grant{}, guard.RouteVendor, apperr.Invalid("vendor_id", "vendor profile is not loaded")
	}
	if *vendorID != 0 && *vendorID != own.ID {
		return guard.Grant{}, guard.RouteVendor, fmt.Errorf("coupon of vendor %d: %w", *vendorID, apperr.ErrForbidden)
	}
	*vendorID = own.ID
	return grant, guard.RouteVendor, nil
}

func (c *Coupons) refresh(ctx context.Context, grant guard.Grant) ([]models.Coupon, error) {
	coupons, err := c.coupons.ListCoupons(ctx)
	if err != nil {
		return nil, c.fail(ctx, guard.RouteGeneral, grant, fmt.Errorf("list coupons: %w", err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]models.Coupon, len(coupons))
	for _, coupon := range coupons {
		c.index[coupon.Code] = coupon
	}
	return coupons, nil
}

func (c *Coupons) remember(coupon models.Coupon) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index[coupon.Code] = coupon
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckCoupon validates the shape of a coupon before it is stored.
func CheckCoupon(c models.Coupon) error {
	switch {
	case c.Code == "":
		return apperr.Invalid("code", "is required")
	case c.DiscountType != models.DiscountPercent && c.DiscountType != models.DiscountFixed:
		return apperr.Invalid("discount_type", "must be percent or fixed")
	case !c.DiscountValue.IsPositive():
		return apperr.Invalid("discount_value", "must be positive")
	case c.DiscountType == models.DiscountPercent && c.DiscountValue.GreaterThan(hundred):
		return apperr.Invalid("discount_value", "cannot exceed 100 percent")
	case c.MinOrderValue.IsNegative():
		return apperr.Invalid("min_order_value", "must not be negative")
	case c.StartsAt.IsZero() || c.EndsAt.IsZero():
		return apperr.Invalid("ends_at", "validity window is required")
	case !c.EndsAt.After(c.StartsAt):
		return apperr.Invalid("ends_at", "must be after starts_at")
	}
	return nil
}

// Validate reports whether coupon applies to an order of subtotal placed at
// vendorID's store at now.
func Validate(coupon models.Coupon, vendorID int64, now time.Time, subtotal decimal.Decimal) error {
	switch {
	case !coupon.Global() && *coupon.VendorID != vendorID:
		return apperr.Invalid("code", "coupon does not apply to this store")
	case now.Before(coupon.StartsAt):
		return apperr.Invalid("code", "coupon is not active yet")
	case !now.Before(coupon.EndsAt):
		return apperr.Invalid("code", "coupon has expired")
	case subtotal.LessThan(coupon.MinOrderValue):
		return apperr.Invalid("code", "order is below the minimum of "+coupon.MinOrderValue.StringFixed(2))
	}
	return nil
}

// Discount is the amount coupon takes off subtotal, never more than subtotal.
func Discount(coupon models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch coupon.DiscountType {
	case models.DiscountPercent:
		amount = subtotal.Mul(coupon.DiscountValue).Div(hundred).Round(2)
	case models.DiscountFixed:
		amount = coupon.DiscountValue
	default:
		return decimal.Zero
	}
	return decimal.Min(amount, subtotal)
}
