package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// Coupon is either global (VendorID nil, admin-owned) or scoped to one vendor.
type Coupon struct {
	Code          string          `json:"code"`
	VendorID      *int64          `json:"vendor_id,omitempty"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	MinOrderValue decimal.Decimal `json:"min_order_value"`
	StartsAt      time.Time       `json:"starts_at"`
	EndsAt        time.Time       `json:"ends_at"`
}

// Global reports whether the coupon has no owning vendor.
func (c Coupon) Global() bool { return c.VendorID == nil }
