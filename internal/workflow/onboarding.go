package workflow

import (
	"context"
	"errors"
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

// Onboarding moves store applications through none -> pending ->
// approved|rejected, with rejected -> pending on reapply.
type Onboarding struct {
	core
	vendors gateway.Vendors

	mu    sync.RWMutex
	index map[int64]models.VendorProfile
}

func NewOnboarding(cfg Config) *Onboarding {
	return &Onboarding{
		core:    newCore(cfg, "vendor", OnboardingTable),
		vendors: cfg.Gateway,
		index:   map[int64]models.VendorProfile{},
	}
}

// Request submits the caller's application. A pending application makes it
// a no-op; a rejected one is reopened.
func (o *Onboarding) Request(ctx context.Context, profile models.VendorProfile) (models.VendorProfile, error) {
	return o.submit(ctx, profile, false)
}

// Reapply reopens a rejected application.
func (o *Onboarding) Reapply(ctx context.Context, profile models.VendorProfile) (models.VendorProfile, error) {
	return o.submit(ctx, profile, true)
}

func (o *Onboarding) submit(ctx context.Context, profile models.VendorProfile, reapply bool) (models.VendorProfile, error) {
	grant, err := o.guard.RequireIdentity()
	if err != nil {
		return models.VendorProfile{}, err
	}
	profile.StoreName = strings.TrimSpace(profile.StoreName)
	if profile.StoreName == "" {
		return models.VendorProfile{}, apperr.Invalid("store_name", "is required")
	}

	o.moves.Lock()
	defer o.moves.Unlock()

	current, err := o.own(ctx, grant)
	if err != nil {
		return models.VendorProfile{}, err
	}
	from := models.VendorStatusOf(current)
	if reapply && from == models.VendorNone {
		return models.VendorProfile{}, apperr.Invalid("status", "no application to reapply")
	}
	if from == models.VendorPending {
		return *current, nil
	}

	var created models.VendorProfile
	_, err = o.apply(ctx, move{
		route: guard.RouteGeneral,
		grant: grant,
		event: bus.EventVendor,
		from:  from,
		to:    models.VendorPending,
		call: func(ctx context.Context) error {
			var err error
			created, err = o.vendors.CreateVendorRequest(ctx, profile)
			return err
		},
		commit: func() int64 {
			created.Status = models.VendorPending
			o.remember(created)
			o.store.CommitVendor(ctx, grant.Epoch, &created)
			return created.ID
		},
	})
	if err != nil {
		return models.VendorProfile{}, err
	}
	return created, nil
}

// own loads the caller's application from the collaborator, never the
// session copy, and caches it on the session. Nil means none exists.
func (o *Onboarding) own(ctx context.Context, grant guard.Grant) (*models.VendorProfile, error) {
	v, err := o.vendors.GetVendorProfile(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		o.store.CommitVendor(ctx, grant.Epoch, nil)
		return nil, nil
	}
	if err != nil {
		return nil, o.fail(ctx, guard.RouteGeneral, grant, fmt.Errorf("load vendor profile: %w", err))
	}
	o.store.CommitVendor(ctx, grant.Epoch, &v)
	return &v, nil
}

func (o *Onboarding) Approve(ctx context.Context, vendorID int64) error {
	return o.Transition(ctx, vendorID, models.VendorApproved, "")
}

func (o *Onboarding) Reject(ctx context.Context, vendorID int64, reason string) error {
	return o.Transition(ctx, vendorID, models.VendorRejected, reason)
}

// Transition is the moderator's move of application vendorID to target.
func (o *Onboarding) Transition(ctx context.Context, vendorID int64, target, reason string) error {
	grant, err := o.guard.Require(capability.ModerateVendors)
	if err != nil {
		return err
	}
	if err := o.checkTarget(target); err != nil {
		return err
	}
	if reason, err = RejectionReason(target, models.VendorRejected, reason); err != nil {
		return err
	}

	o.moves.Lock()
	defer o.moves.Unlock()

	v, known, err := o.lookup(ctx, grant, vendorID)
	if err != nil {
		return err
	}
	if !known {
		return o.forward(ctx, guard.RouteAdmin, grant, vendorID, target, func(ctx context.Context) error {
			return o.vendors.SetVendorApproval(ctx, vendorID, target, reason)
		})
	}
	_, err = o.apply(ctx, move{
		route: guard.RouteAdmin,
		grant: grant,
		event: bus.EventVendor,
		from:  v.Status,
		to:    target,
		call: func(ctx context.Context) error {
			return o.vendors.SetVendorApproval(ctx, vendorID, target, reason)
		},
		commit: func() int64 {
			v.Status = target
			v.RejectionReason = reason
			o.remember(v)
			if own := grant.Session.Vendor; own != nil && own.ID == vendorID {
				o.store.CommitVendor(ctx, grant.Epoch, &v)
			}
			return vendorID
		},
	})
	return err
}

// List returns the applications awaiting review and refreshes the index.
func (o *Onboarding) List(ctx context.Context) ([]models.VendorProfile, error) {
	grant, err := o.guard.Require(capability.ModerateVendors)
	if err != nil {
		return nil, err
	}
	return o.refresh(ctx, grant)
}

// Lookup reads the index without a network call.
func (o *Onboarding) Lookup(vendorID int64) (models.VendorProfile, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.index[vendorID]
	return v, ok
}

// lookup finds vendorID in the index, reloading the queue once on a miss.
// known is false when this client has no record of it; decided applications
// drop out of the queue, so only the collaborator can answer then.
func (o *Onboarding) lookup(ctx context.Context, grant guard.Grant, vendorID int64) (models.VendorProfile, bool, error) {
	if v, ok := o.Lookup(vendorID); ok {
		return v, true, nil
	}
	if _, err := o.refresh(ctx, grant); err != nil {
		return models.VendorProfile{}, false, err
	}
	v, known := o.Lookup(vendorID)
	return v, known, nil
}

func (o *Onboarding) refresh(ctx context.Context, grant guard.Grant) ([]models.VendorProfile, error) {
	pending, err := o.vendors.ListPendingVendors(ctx)
	if err != nil {
		return nil, o.fail(ctx, guard.RouteAdmin, grant, fmt.Errorf("list pending vendors: %w", err))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	// Pending entries missing from the queue were decided elsewhere.
	for id, v := range o.index {
		if v.Status == models.VendorPending {
			delete(o.index, id)
		}
	}
	for _, v := range pending {
		o.index[v.ID] = v
	}
	return pending, nil
}

func (o *Onboarding) remember(v models.VendorProfile) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.index[v.ID] = v
}
