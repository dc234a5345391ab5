package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProductPending  = "pending"
	ProductApproved = "approved"
	ProductRejected = "rejected"
)

type Product struct {
	ID              int64           `json:"id"`
	VendorID        int64           `json:"vendor_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Stock           int             `json:"stock"`
	Status          string          `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
