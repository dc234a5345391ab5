package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/models"
)

func TestFulfillmentTable(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{models.OrderPending, models.OrderPaid, true},
		{models.OrderPending, models.OrderDelivered, true},
		{models.OrderPaid, models.OrderShipped, true},
		{models.OrderProcessing, models.OrderCancelled, true},
		{models.OrderShipped, models.OrderDelivered, true},
		{models.OrderShipped, models.OrderCancelled, false},
		{models.OrderShipped, models.OrderPending, false},
		{models.OrderDelivered, models.OrderCancelled, false},
		{models.OrderCancelled, models.OrderPending, false},
	}
	for _, tc := range tests {
		err := FulfillmentTable.Check(tc.from, tc.to)
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			assert.ErrorIs(t, err, apperr.ErrValidation, "%s -> %s", tc.from, tc.to)
		}
	}

	assert.True(t, FulfillmentTable.Terminal(models.OrderDelivered))
	assert.True(t, FulfillmentTable.Terminal(models.OrderCancelled))
	assert.False(t, FulfillmentTable.Terminal(models.OrderShipped))
}

func TestApprovedIsTerminal(t *testing.T) {
	assert.True(t, OnboardingTable.Terminal(models.VendorApproved))
	assert.True(t, ModerationTable.Terminal(models.ProductApproved))
	assert.Equal(t, []string{models.VendorPending}, OnboardingTable.Next(models.VendorRejected))
}

func TestCheckRejectsUnknownStatus(t *testing.T) {
	err := ModerationTable.Check(models.ProductPending, "archived")
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)
}
