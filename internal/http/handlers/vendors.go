package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/http/respond"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/models/dto"
	"github.com/hongminglow/pawmart/internal/storage"
	"github.com/hongminglow/pawmart/internal/workflow"
)

// VendorHandler serves a store operator's own application, catalog and orders.
type VendorHandler struct {
	store  storage.Store
	logger *zap.Logger
}

func NewVendorHandler(store storage.Store, logger *zap.Logger) *VendorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VendorHandler{store: store, logger: logger}
}

func (h *VendorHandler) Register(private chi.Router) {
	private.Route("/api/vendors", func(r chi.Router) {
		r.Post("/", h.handleApply)
		r.Get("/me", h.handleProfile)
		r.Get("/products", h.handleListProducts)
		r.Post("/products", h.handleCreateProduct)
		r.Post("/products/{id}/resubmit", h.handleResubmit)
		r.Get("/orders", h.handleListOrders)
		r.Put("/orders/{id}/status", h.handleOrderStatus)
	})
}

// handleApply files or reopens the caller's store application.
func (h *VendorHandler) handleApply(w http.ResponseWriter, r *http.Request) {
	a, err := loadAccess(r.Context(), h.store)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	var req dto.VendorRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.StoreName) == "" {
		respond.Error(w, http.StatusBadRequest, "store_name is required")
		return
	}
	current := models.VendorStatusOf(a.vendor)
	if current == models.VendorPending {
		respond.JSON(w, http.StatusOK, "application already pending", a.vendor)
		return
	}
	if err := workflow.OnboardingTable.Check(current, models.VendorPending); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	saved, err := h.store.SaveVendorRequest(r.Context(), models.VendorProfile{
		UserID:    a.user.ID,
		StoreName: strings.TrimSpace(req.StoreName),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
	})
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	h.logger.Info("vendor application filed", zap.Int64("vendor_id", saved.ID), zap.String("from", current))
	respond.JSON(w, http.StatusCreated, "application submitted", saved)
}

func (h *VendorHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	a, err := loadAccess(r.Context(), h.store)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if a.vendor == nil {
		respond.Error(w, http.StatusNotFound, "no vendor profile")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", a.vendor)
}

// operator loads the caller and checks they run an approved store.
func (h *VendorHandler) operator(w http.ResponseWriter, r *http.Request, c capability.Capability) (access, bool) {
	a, err := loadAccess(r.Context(), h.store)
	if err != nil {
		respond.Err(w, h.logger, err)
		return access{}, false
	}
	if !a.operatesStore(c) {
		respond.Error(w, http.StatusForbidden, "an approved store is required")
		return access{}, false
	}
	return a, true
}

func (h *VendorHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	a, ok := h.operator(w, r, capability.ManageVendorCatalog)
	if !ok {
		return
	}
	products, err := h.store.ListProductsByVendor(r.Context(), a.vendor.ID)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", products)
}

func (h *VendorHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	a, ok := h.operator(w, r, capability.ManageVendorCatalog)
	if !ok {
		return
	}
	var p models.Product
	if !decode(w, r, &p) {
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if err := workflow.CheckProduct(p); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	p.VendorID = a.vendor.ID
	p.Status = models.ProductPending
	p.RejectionReason = ""
	created, err := h.store.CreateProduct(r.Context(), p)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "product submitted for review", created)
}

func (h *VendorHandler) handleResubmit(w http.ResponseWriter, r *http.Request) {
	a, ok := h.operator(w, r, capability.ManageVendorCatalog)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	product, err := h.store.FindProduct(r.Context(), id)
	if err == nil && product.VendorID != a.vendor.ID {
		err = storage.ErrNotFound
	}
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if product.Status == models.ProductPending {
		respond.JSON(w, http.StatusOK, "product already pending", nil)
		return
	}
	if err := workflow.ModerationTable.Check(product.Status, models.ProductPending); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	moved, err := h.store.SetProductStatus(r.Context(), id, product.Status, models.ProductPending, "")
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if !moved {
		respond.Error(w, http.StatusConflict, "product changed concurrently")
		return
	}
	respond.JSON(w, http.StatusOK, "product resubmitted", nil)
}

func (h *VendorHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	a, ok := h.operator(w, r, capability.ManageVendorOrders)
	if !ok {
		return
	}
	orders, err := h.store.ListOrdersByVendor(r.Context(), a.vendor.ID)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", orders)
}

func (h *VendorHandler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := h.operator(w, r, capability.ManageVendorOrders)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.OrderStatusRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.store.FindOrder(r.Context(), id)
	if err == nil && order.VendorID != a.vendor.ID {
		err = storage.ErrNotFound
	}
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if order.Status == req.Status {
		respond.JSON(w, http.StatusOK, "status unchanged", nil)
		return
	}
	if err := workflow.FulfillmentTable.Check(order.Status, req.Status); err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	moved, err := h.store.SetOrderStatus(r.Context(), id, order.Status, req.Status)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if !moved {
		respond.Error(w, http.StatusConflict, "order changed concurrently")
		return
	}
	respond.JSON(w, http.StatusOK, "order status updated", nil)
}
