package dto

// ApprovalRequest is the body of vendor and product approval updates.
type ApprovalRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

type UserStatusRequest struct {
	Active *bool `json:"active"`
}

type VendorRequest struct {
	StoreName string `json:"store_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}
