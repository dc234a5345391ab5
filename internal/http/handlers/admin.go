package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/http/respond"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/models/dto"
	"github.com/hongminglow/pawmart/internal/storage"
	"github.com/hongminglow/pawmart/internal/workflow"
)

// AdminHandler serves moderation queues and account management.
type AdminHandler struct {
	store  storage.Store
	logger *zap.Logger
}

func NewAdminHandler(store storage.Store, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{store: store, logger: logger}
}

func (h *AdminHandler) Register(private chi.Router) {
	private.Route("/api/admin", func(r chi.Router) {
		r.Get("/vendors/pending", h.handlePendingVendors)
		r.Put("/vendors/{id}/approval", h.handleVendorApproval)
		r.Get("/products/pending", h.handlePendingProducts)
		r.Put("/products/{id}/approval", h.handleProductApproval)
		r.Get("/users", h.handleListUsers)
		r.Put("/users/{id}/status", h.handleUserStatus)
	})
}

func (h *AdminHandler) require(w http.ResponseWriter, r *http.Request, c capability.Capability) (access, bool) {
	a, err := loadAccess(r.Context(), h.store)
	if err != nil {
		respond.Err(w, h.logger, err)
		return access{}, false
	}
	if !a.caps.Has(c) {
		respond.Error(w, http.StatusForbidden, "forbidden")
		return access{}, false
	}
	return a, true
}

// decision decodes a moderator's approval body.
func decision(w http.ResponseWriter, r *http.Request, approved, rejected string) (dto.ApprovalRequest, bool) {
	var req dto.ApprovalRequest
	if !decode(w, r, &req) {
		return req, false
	}
	if req.Status != approved && req.Status != rejected {
		respond.Error(w, http.StatusBadRequest, "status must be approved or rejected")
		return req, false
	}
	reason, err := workflow.RejectionReason(req.Status, rejected, req.RejectionReason)
	if err != nil {
		respond.Err(w, nil, err)
		return req, false
	}
	req.RejectionReason = reason
	return req, true
}

func (h *AdminHandler) handlePendingVendors(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, capability.ModerateVendors); !ok {
		return
	}
	vendors, err := h.store.ListVendorsByStatus(r.Context(), models.VendorPending)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", vendors)
}

func (h *AdminHandler) handleVendorApproval(w http.ResponseWriter, r *http.Request) {
	a, ok := h.require(w, r, capability.ModerateVendors)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decision(w, r, models.VendorApproved, models.VendorRejected)
	if !ok {
		return
	}
	vendor, err := h.store.FindVendorByID(r.Context(), id)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if vendor.Status == req.Status {
		respond.JSON(w, http.StatusOK, "status unchanged", nil)
		return
	}
	if err := workflow.OnboardingTable.Check(vendor.Status, req.Status); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	moved, err := h.store.SetVendorStatus(r.Context(), id, vendor.Status, req.Status, req.RejectionReason)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if !moved {
		respond.Error(w, http.StatusConflict, "vendor changed concurrently")
		return
	}
	h.logger.Info("vendor reviewed",
		zap.Int64("vendor_id", id), zap.String("status", req.Status), zap.Int64("reviewer", a.user.ID))
	respond.JSON(w, http.StatusOK, "vendor "+req.Status, nil)
}

func (h *AdminHandler) handlePendingProducts(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, capability.ModerateProducts); !ok {
		return
	}
	products, err := h.store.ListProductsByStatus(r.Context(), models.ProductPending)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", products)
}

func (h *AdminHandler) handleProductApproval(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, capability.ModerateProducts); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decision(w, r, models.ProductApproved, models.ProductRejected)
	if !ok {
		return
	}
	product, err := h.store.FindProduct(r.Context(), id)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if product.Status == req.Status {
		respond.JSON(w, http.StatusOK, "status unchanged", nil)
		return
	}
	if err := workflow.ModerationTable.Check(product.Status, req.Status); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	moved, err := h.store.SetProductStatus(r.Context(), id, product.Status, req.Status, req.RejectionReason)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if !moved {
		respond.Error(w, http.StatusConflict, "product changed concurrently")
		return
	}
	respond.JSON(w, http.StatusOK, "product "+req.Status, nil)
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.require(w, r, capability.ManageUsers); !ok {
		return
	}
	role := r.URL.Query().Get("role")
	if role != "" && !models.ValidRole(role) {
		respond.Error(w, http.StatusBadRequest, "unknown role")
		return
	}
	users, err := h.store.ListUsers(r.Context(), role)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", users)
}

func (h *AdminHandler) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := h.require(w, r, capability.ManageUsers)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UserStatusRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		respond.Error(w, http.StatusBadRequest, "active is required")
		return
	}
	if id == a.user.ID && !*req.Active {
		respond.Error(w, http.StatusBadRequest, "cannot deactivate your own account")
		return
	}
	if err := h.store.SetUserActive(r.Context(), id, *req.Active); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "user status updated", nil)
}
