package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/http/respond"
	"github.com/hongminglow/pawmart/internal/middleware"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/storage"
)

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// access is what the caller may do, derived from the stored user and
// vendor profile rather than token claims.
type access struct {
	user   models.User
	vendor *models.VendorProfile
	caps   capability.Set
}

func loadAccess(ctx context.Context, vendors storage.VendorStore) (access, error) {
	user, ok := middleware.UserFrom(ctx)
	if !ok {
		return access{}, errors.New("handler mounted without authentication")
	}
	a := access{user: user}
	vendor, err := vendors.FindVendorByUser(ctx, user.ID)
	switch {
	case err == nil:
		a.vendor = &vendor
	case !errors.Is(err, storage.ErrNotFound):
		return access{}, err
	}
	a.caps = capability.For(&a.user, a.vendor)
	return a, nil
}

// operatesStore reports whether the caller may act on their own store's
// catalog and orders. Holding the capability is not enough without an
// approved store to act on.
func (a access) operatesStore(c capability.Capability) bool {
	return a.caps.Has(c) && a.vendor != nil && a.vendor.Status == models.VendorApproved
}
