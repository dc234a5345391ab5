package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/http/respond"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/storage"
	"github.com/hongminglow/pawmart/internal/workflow"
)

// CouponHandler manages global coupons (admins) and store coupons (operators).
type CouponHandler struct {
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewCouponHandler(store storage.Store, logger *zap.Logger) *CouponHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouponHandler{store: store, logger: logger, now: time.Now}
}

func (h *CouponHandler) Register(private chi.Router) {
	private.Get("/api/coupons", h.handleList)
	private.Post("/api/coupons", h.handleCreate)
	private.Delete("/api/coupons/{code}", h.handleDelete)
}

// mayManage reports whether a can create or delete coupon.
func mayManage(a access, coupon models.Coupon) bool {
	if coupon.Global() {
		return a.caps.Has(capability.ManageGlobalCoupons)
	}
	return a.operatesStore(capability.ManageVendorCatalog) && *coupon.VendorID == a.vendor.ID
}

// handleList shows admins everything, operators the global coupons and their
// own, and everyone else the coupons currently running.
func (h *CouponHandler) handleList(w http.ResponseWriter, r *http.Request) {
	a, err := loadAccess(r.Context(), h.store)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	all, err := h.store.ListCoupons(r.Context())
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if a.caps.Has(capability.ManageGlobalCoupons) {
		respond.JSON(w, http.StatusOK, "ok", all)
		return
	}
	now := h.now()
	visible := make([]models.Coupon, 0, len(all))
	for _, c := range all {
		switch {
		case a.operatesStore(capability.ManageVendorCatalog):
			if c.Global() || *c.VendorID == a.vendor.ID {
				visible = append(visible, c)
			}
		case !now.Before(c.StartsAt) && now.Before(c.EndsAt):
			visible = append(visible, c)
		}
	}
	respond.JSON(w, http.StatusOK, "ok", visible)
}

func (h *CouponHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	a, err := loadAccess(r.Context(), h.store)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	var coupon models.Coupon
	if !decode(w, r, &coupon) {
		return
	}
	// A zero store id means the caller's own store.
	if coupon.VendorID != nil && *coupon.VendorID == 0 && a.vendor != nil {
		own := a.vendor.ID
		coupon.VendorID = &own
	}
	if !mayManage(a, coupon) {
		respond.Error(w, http.StatusForbidden, "forbidden")
		return
	}
	coupon.Code = workflow.NormalizeCode(coupon.Code)
	if err := workflow.CheckCoupon(coupon); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	created, err := h.store.CreateCoupon(r.Context(), coupon)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "coupon created", created)
}

func (h *CouponHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	a, err := loadAccess(r.Context(), h.store)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	code := workflow.NormalizeCode(chi.URLParam(r, "code"))
	coupon, err := h.store.FindCoupon(r.Context(), code)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if !mayManage(a, coupon) {
		respond.Error(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := h.store.DeleteCoupon(r.Context(), code); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "coupon deleted", nil)
}
