package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/gateway"
	"github.com/hongminglow/pawmart/internal/guard"
	"github.com/hongminglow/pawmart/internal/models"
)

// Moderation reviews products. New products always start pending; editing
// an approved product does not send it back for review.
type Moderation struct {
	core
	products gateway.Products

	// queue mirrors the review queue plus this client's decisions; own holds
	// the caller's catalog. An admin with a store fills both.
	mu    sync.RWMutex
	queue map[int64]models.Product
	own   map[int64]models.Product
}

func NewModeration(cfg Config) *Moderation {
	return &Moderation{
		core:     newCore(cfg, "product", ModerationTable),
		products: cfg.Gateway,
		queue:    map[int64]models.Product{},
		own:      map[int64]models.Product{},
	}
}

// Create submits a product for review. Any status on p is ignored.
func (m *Moderation) Create(ctx context.Context, p models.Product) (models.Product, error) {
	grant, err := m.guard.Require(capability.ManageVendorCatalog)
	if err != nil {
		return models.Product{}, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if err := CheckProduct(p); err != nil {
		return models.Product{}, err
	}
	p.ID = 0
	p.Status = models.ProductPending
	p.RejectionReason = ""
	if v := grant.Session.Vendor; v != nil {
		p.VendorID = v.ID
	}

	created, err := m.products.CreateProduct(ctx, p)
	if err != nil {
		return models.Product{}, m.fail(ctx, guard.RouteVendor, grant, fmt.Errorf("create product: %w", err))
	}
	created.Status = models.ProductPending
	m.mu.Lock()
	m.own[created.ID] = created
	m.mu.Unlock()
	m.publish(bus.EventProduct, created.ID, "", "", models.ProductPending)
	return created, nil
}

// CheckProduct validates the fields a store operator supplies.
func CheckProduct(p models.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return apperr.Invalid("name", "is required")
	case p.Price.IsNegative():
		return apperr.Invalid("price", "must not be negative")
	case p.Stock < 0:
		return apperr.Invalid("stock", "must not be negative")
	}
	return nil
}

func (m *Moderation) Approve(ctx context.Context, productID int64) error {
	return m.Transition(ctx, productID, models.ProductApproved, "")
}

func (m *Moderation) Reject(ctx context.Context, productID int64, reason string) error {
	return m.Transition(ctx, productID, models.ProductRejected, reason)
}

// Transition is the moderator's decision on productID. Sending a product
// back to pending is the owner's call; see Resubmit.
func (m *Moderation) Transition(ctx context.Context, productID int64, target, reason string) error {
	grant, err := m.guard.Require(capability.ModerateProducts)
	if err != nil {
		return err
	}
	if err := m.checkTarget(target); err != nil {
		return err
	}
	if target == models.ProductPending {
		return apperr.Invalid("status", "only the owner can resubmit a product")
	}
	if reason, err = RejectionReason(target, models.ProductRejected, reason); err != nil {
		return err
	}

	m.moves.Lock()
	defer m.moves.Unlock()

	p, known, err := m.lookup(ctx, grant, productID)
	if err != nil {
		return err
	}
	if !known {
		return m.forward(ctx, guard.RouteAdmin, grant, productID, target, func(ctx context.Context) error {
			return m.products.SetProductApproval(ctx, productID, target, reason)
		})
	}
	_, err = m.apply(ctx, move{
		route: guard.RouteAdmin,
		grant: grant,
		event: bus.EventProduct,
		from:  p.Status,
		to:    target,
		call: func(ctx context.Context) error {
			return m.products.SetProductApproval(ctx, productID, target, reason)
		},
		commit: func() int64 {
			p.Status = target
			p.RejectionReason = reason
			m.remember(p, true)
			return productID
		},
	})
	return err
}

// Resubmit sends a rejected product back for review. Decisions are made by
// other clients, so the owner's view is always refreshed first.
func (m *Moderation) Resubmit(ctx context.Context, productID int64) error {
	grant, err := m.guard.Require(capability.ManageVendorCatalog)
	if err != nil {
		return err
	}

	m.moves.Lock()
	defer m.moves.Unlock()

	if _, err := m.refreshOwn(ctx, grant); err != nil {
		return err
	}
	m.mu.RLock()
	p, ok := m.own[productID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("product %d: %w", productID, apperr.ErrNotFound)
	}
	_, err = m.apply(ctx, move{
		route: guard.RouteVendor,
		grant: grant,
		event: bus.EventProduct,
		from:  p.Status,
		to:    models.ProductPending,
		call: func(ctx context.Context) error {
			return m.products.ResubmitProduct(ctx, productID)
		},
		commit: func() int64 {
			p.Status = models.ProductPending
			p.RejectionReason = ""
			m.remember(p, false)
			return productID
		},
	})
	return err
}

// List returns the review queue.
func (m *Moderation) List(ctx context.Context) ([]models.Product, error) {
	grant, err := m.guard.Require(capability.ModerateProducts)
	if err != nil {
		return nil, err
	}
	return m.refreshPending(ctx, grant)
}

// ListOwn returns every product of the caller's store.
func (m *Moderation) ListOwn(ctx context.Context) ([]models.Product, error) {
	grant, err := m.guard.Require(capability.ManageVendorCatalog)
	if err != nil {
		return nil, err
	}
	return m.refreshOwn(ctx, grant)
}

// Lookup reads the indexes without a network call, preferring the caller's
// own catalog.
func (m *Moderation) Lookup(productID int64) (models.Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.own[productID]; ok {
		return p, true
	}
	p, ok := m.queue[productID]
	return p, ok
}

// lookup is Lookup with one queue reload on a miss. known is false when the
// product is neither queued nor owned.
func (m *Moderation) lookup(ctx context.Context, grant guard.Grant, productID int64) (models.Product, bool, error) {
	if p, ok := m.Lookup(productID); ok {
		return p, true, nil
	}
	if _, err := m.refreshPending(ctx, grant); err != nil {
		return models.Product{}, false, err
	}
	p, known := m.Lookup(productID)
	return p, known, nil
}

func (m *Moderation) refreshPending(ctx context.Context, grant guard.Grant) ([]models.Product, error) {
	pending, err := m.products.ListPendingProducts(ctx)
	if err != nil {
		return nil, m.fail(ctx, guard.RouteAdmin, grant, fmt.Errorf("list pending products: %w", err))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Queued entries missing from the reload were decided elsewhere.
	for id, p := range m.queue {
		if p.Status == models.ProductPending {
			delete(m.queue, id)
		}
	}
	for _, p := range pending {
		m.queue[p.ID] = p
	}
	return pending, nil
}

func (m *Moderation) refreshOwn(ctx context.Context, grant guard.Grant) ([]models.Product, error) {
	own, err := m.products.ListVendorProducts(ctx)
	if err != nil {
		return nil, m.fail(ctx, guard.RouteVendor, grant, fmt.Errorf("list vendor products: %w", err))
	}
	fresh := make(map[int64]models.Product, len(own))
	for _, p := range own {
		fresh[p.ID] = p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.own = fresh
	return own, nil
}

// remember updates every index already holding p and adds it to the queue
// when queued is set.
func (m *Moderation) remember(p models.Product, queued bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.own[p.ID]; ok {
		m.own[p.ID] = p
	}
	if _, ok := m.queue[p.ID]; ok || queued {
		m.queue[p.ID] = p
	}
}
