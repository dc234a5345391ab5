package models

import "time"

// Vendor application statuses. VendorNone is never stored; it stands for
// "no record" in transition tables.
const (
	VendorNone     = "none"
	VendorPending  = "pending"
	VendorApproved = "approved"
	VendorRejected = "rejected"
)

// VendorProfile is a user's store application. At most one exists per user.
type VendorProfile struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	StoreName       string    `json:"store_name"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Address         string    `json:"address,omitempty"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// VendorStatusOf returns the onboarding status of v, treating nil as VendorNone.
func VendorStatusOf(v *VendorProfile) string {
	if v == nil || v.Status == "" {
		return VendorNone
	}
	return v.Status
}
