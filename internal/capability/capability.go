// Package capability maps a user's role and vendor sub-state to the actions
// they may perform.
package capability

import (
	"sort"

	"github.com/hongminglow/pawmart/internal/models"
)

// Capability is a named permission.
type Capability string

const (
	ManageOwnPets       Capability = "manage-own-pets"
	ManageVendorCatalog Capability = "manage-vendor-catalog"
	ManageVendorOrders  Capability = "manage-vendor-orders"
	ModerateProducts    Capability = "moderate-products"
	ModerateVendors     Capability = "moderate-vendors"
	ManageUsers         Capability = "manage-users"
	ManageGlobalCoupons Capability = "manage-global-coupons"
)

// Set is an unordered collection of capabilities.
type Set map[Capability]struct{}

func newSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is in the set.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the capabilities in lexical order.
func (s Set) Sorted() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	customerCaps = []Capability{ManageOwnPets}
	vendorCaps   = []Capability{ManageOwnPets, ManageVendorCatalog, ManageVendorOrders}
	adminCaps    = []Capability{ModerateProducts, ModerateVendors, ManageUsers, ManageGlobalCoupons}
)

// For returns the capability set of user given their vendor profile, which
// may be nil. Unknown roles and inactive or nil users get an empty set.
func For(user *models.User, vendor *models.VendorProfile) Set {
	if user == nil || !user.Active {
		return Set{}
	}
	switch user.Role {
	case models.RoleCustomer:
		return newSet(customerCaps...)
	case models.RoleVendor:
		return newSet(vendorCaps...)
	case models.RoleAdmin:
		caps := newSet(adminCaps...)
		if ownsApprovedVendor(user, vendor) {
			caps[ManageVendorCatalog] = struct{}{}
			caps[ManageVendorOrders] = struct{}{}
		}
		return caps
	default:
		return Set{}
	}
}

func ownsApprovedVendor(user *models.User, vendor *models.VendorProfile) bool {
	if vendor == nil || vendor.Status != models.VendorApproved {
		return false
	}
	// A zero UserID comes from a caller-scoped lookup and is trusted as the caller's.
	return vendor.UserID == 0 || vendor.UserID == user.ID
}
