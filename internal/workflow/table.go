// Package workflow holds the approval and fulfillment state machines. Each
// machine validates moves against its transition table, calls the gateway,
// updates its index and publishes one bus event per real move.
package workflow

import (
	"fmt"
	"slices"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/models"
)

// Table lists the statuses of one entity and the moves allowed between them.
type Table struct {
	name   string
	states []string
	edges  map[string][]string
}

func NewTable(name string, states []string, edges map[string][]string) Table {
	return Table{name: name, states: states, edges: edges}
}

func (t Table) Name() string { return t.name }

// States returns the statuses in declaration order.
func (t Table) States() []string { return slices.Clone(t.states) }

func (t Table) Valid(status string) bool { return slices.Contains(t.states, status) }

func (t Table) Allows(from, to string) bool { return slices.Contains(t.edges[from], to) }

// Next returns the statuses reachable from status in one move.
func (t Table) Next(status string) []string { return slices.Clone(t.edges[status]) }

// Terminal reports whether nothing leaves status.
func (t Table) Terminal(status string) bool { return t.Valid(status) && len(t.edges[status]) == 0 }

// Check returns a ValidationError unless from -> to is a listed edge. An
// unchanged status is not a move and is left to the caller.
func (t Table) Check(from, to string) error {
	if !t.Valid(to) {
		return apperr.Invalid("status", fmt.Sprintf("unknown %s status %q", t.name, to))
	}
	if !t.Allows(from, to) {
		return apperr.Invalid("status", fmt.Sprintf("%s cannot move from %s to %s", t.name, from, to))
	}
	return nil
}

var (
	OnboardingTable = NewTable("vendor",
		[]string{models.VendorNone, models.VendorPending, models.VendorApproved, models.VendorRejected},
		map[string][]string{
			models.VendorNone:     {models.VendorPending},
			models.VendorPending:  {models.VendorApproved, models.VendorRejected},
			models.VendorRejected: {models.VendorPending},
		})

	ModerationTable = NewTable("product",
		[]string{models.ProductPending, models.ProductApproved, models.ProductRejected},
		map[string][]string{
			models.ProductPending:  {models.ProductApproved, models.ProductRejected},
			models.ProductRejected: {models.ProductPending},
		})

	// FulfillmentTable only moves forward. Steps may be skipped and an order
	// can be cancelled until it ships.
	FulfillmentTable = NewTable("order",
		models.OrderStatuses,
		map[string][]string{
			models.OrderPending: {
				models.OrderPaid, models.OrderProcessing, models.OrderShipped,
				models.OrderDelivered, models.OrderCancelled,
			},
			models.OrderPaid: {
				models.OrderProcessing, models.OrderShipped, models.OrderDelivered, models.OrderCancelled,
			},
			models.OrderProcessing: {models.OrderShipped, models.OrderDelivered, models.OrderCancelled},
			models.OrderShipped:    {models.OrderDelivered},
		})
)
