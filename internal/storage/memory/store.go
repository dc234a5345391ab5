// Package memory is a map-backed storage.Store for tests and local runs
// without Postgres.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	seq      int64
	users    map[int64]models.User
	vendors  map[int64]models.VendorProfile
	products map[int64]models.Product
	orders   map[int64]models.Order
	coupons  map[string]models.Coupon
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[int64]models.User),
		vendors:  make(map[int64]models.VendorProfile),
		products: make(map[int64]models.Product),
		orders:   make(map[int64]models.Order),
		coupons:  make(map[string]models.Coupon),
		now:      time.Now,
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	user.ID = s.nextID()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) FindUserByID(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, role string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b models.User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) SetUserActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.Active = active
	s.users[id] = u
	return nil
}

func (s *Store) SaveVendorRequest(_ context.Context, profile models.VendorProfile) (models.VendorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.vendors {
		if v.UserID != profile.UserID {
			continue
		}
		if v.Status != models.VendorRejected {
			return models.VendorProfile{}, storage.ErrAlreadyExists
		}
		profile.ID, profile.CreatedAt = id, v.CreatedAt
		profile.Status, profile.RejectionReason = models.VendorPending, ""
		s.vendors[id] = profile
		return profile, nil
	}
	profile.ID = s.nextID()
	profile.Status, profile.RejectionReason = models.VendorPending, ""
	profile.CreatedAt = s.now()
	s.vendors[profile.ID] = profile
	return profile, nil
}

func (s *Store) FindVendorByID(_ context.Context, id int64) (models.VendorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vendors[id]
	if !ok {
		return models.VendorProfile{}, storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) FindVendorByUser(_ context.Context, userID int64) (models.VendorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vendors {
		if v.UserID == userID {
			return v, nil
		}
	}
	return models.VendorProfile{}, storage.ErrNotFound
}

func (s *Store) ListVendorsByStatus(_ context.Context, status string) ([]models.VendorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.VendorProfile{}
	for _, v := range s.vendors {
		if v.Status == status {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b models.VendorProfile) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) SetVendorStatus(_ context.Context, id int64, from, to, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vendors[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if v.Status != from {
		return false, nil
	}
	v.Status, v.RejectionReason = to, reason
	s.vendors[id] = v
	if u, ok := s.users[v.UserID]; ok && to == models.VendorApproved && u.Role == models.RoleCustomer {
		u.Role = models.RoleVendor
		s.users[u.ID] = u
	}
	return true, nil
}

func (s *Store) CreateProduct(_ context.Context, product models.Product) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product.ID = s.nextID()
	product.CreatedAt = s.now()
	s.products[product.ID] = product
	return product, nil
}

func (s *Store) FindProduct(_ context.Context, id int64) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return models.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProductsByVendor(_ context.Context, vendorID int64) ([]models.Product, error) {
	return s.filterProducts(func(p models.Product) bool { return p.VendorID == vendorID }), nil
}

func (s *Store) ListProductsByStatus(_ context.Context, status string) ([]models.Product, error) {
	return s.filterProducts(func(p models.Product) bool { return p.Status == status }), nil
}

func (s *Store) filterProducts(keep func(models.Product) bool) []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Product{}
	for _, p := range s.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.Product) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) SetProductStatus(_ context.Context, id int64, from, to, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status, p.RejectionReason = to, reason
	s.products[id] = p
	return true, nil
}

func (s *Store) CreateOrder(_ context.Context, order models.Order) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = s.nextID()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	if order.Status == "" {
		order.Status = models.OrderPending
	}
	order.Total = order.ComputeTotal()
	s.orders[order.ID] = order
	return order, nil
}

func (s *Store) FindOrder(_ context.Context, id int64) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOrdersByVendor(_ context.Context, vendorID int64) ([]models.Order, error) {
	return s.filterOrders(func(o models.Order) bool { return o.VendorID == vendorID }), nil
}

func (s *Store) ListOrdersOlderThan(_ context.Context, status string, cutoff time.Time) ([]models.Order, error) {
	return s.filterOrders(func(o models.Order) bool { return o.Status == status && o.CreatedAt.Before(cutoff) }), nil
}

func (s *Store) filterOrders(keep func(models.Order) bool) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Order{}
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b models.Order) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) SetOrderStatus(_ context.Context, id int64, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	s.orders[id] = o
	return true, nil
}

func (s *Store) CreateCoupon(_ context.Context, coupon models.Coupon) (models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coupons[coupon.Code]; ok {
		return models.Coupon{}, storage.ErrAlreadyExists
	}
	s.coupons[coupon.Code] = coupon
	return coupon, nil
}

func (s *Store) FindCoupon(_ context.Context, code string) (models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coupons[code]
	if !ok {
		return models.Coupon{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCoupons(_ context.Context) ([]models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b models.Coupon) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (s *Store) DeleteCoupon(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coupons[code]; !ok {
		return storage.ErrNotFound
	}
	delete(s.coupons, code)
	return nil
}
