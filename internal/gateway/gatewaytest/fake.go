// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"sort"
	"sync"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/gateway"
	"github.com/hongminglow/pawmart/internal/models"
)

// Fake records calls and serves canned data. Caller-scoped endpoints
// resolve the caller through Tokens and Identities.
type Fake struct {
	mu sync.Mutex

	Tokens     gateway.TokenSource
	Logins     map[string]gateway.LoginResult // keyed by email
	Passwords  map[string]string
	Identities map[string]models.User // keyed by token
	Vendors    map[int64]*models.VendorProfile
	Products   map[int64]*models.Product
	Orders     map[int64]*models.Order
	Coupons    map[string]models.Coupon
	Users      map[int64]*models.User

	// WhoAmIHook runs before WhoAmI answers, outside the lock.
	WhoAmIHook func(token string)
	// LoginHook runs before VerifyCredentials answers, outside the lock.
	LoginHook func(email string)

	failures map[string]error
	calls    map[string]int
	nextID   int64
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Tokens:     func() string { return "" },
		Logins:     map[string]gateway.LoginResult{},
		Passwords:  map[string]string{},
		Identities: map[string]models.User{},
		Vendors:    map[int64]*models.VendorProfile{},
		Products:   map[int64]*models.Product{},
		Orders:     map[int64]*models.Order{},
		Coupons:    map[string]models.Coupon{},
		Users:      map[int64]*models.User{},
		failures:   map[string]error{},
		calls:      map[string]int{},
		nextID:     100,
	}
}

// Fail makes every later call to method return err. A nil err clears it.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, method)
		return
	}
	f.failures[method] = err
}

// Calls reports how many times method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// AddUser registers user under token for login, who-am-I and admin listings.
func (f *Fake) AddUser(token, password string, user models.User, includeUserInLogin bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := gateway.LoginResult{Token: token}
	if includeUserInLogin {
		u := user
		res.User = &u
	}
	f.Logins[user.Email] = res
	f.Passwords[user.Email] = password
	f.Identities[token] = user
	u := user
	f.Users[user.ID] = &u
}

func (f *Fake) record(method string) error {
	f.calls[method]++
	return f.failures[method]
}

func (f *Fake) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *Fake) caller() (models.User, error) {
	u, ok := f.Identities[f.Tokens()]
	if !ok {
		return models.User{}, apperr.ErrUnauthenticated
	}
	return u, nil
}

func (f *Fake) VerifyCredentials(_ context.Context, email, password string) (gateway.LoginResult, error) {
	f.mu.Lock()
	hook := f.LoginHook
	err := f.record("VerifyCredentials")
	res, ok := f.Logins[email]
	valid := ok && f.Passwords[email] == password
	f.mu.Unlock()

	if hook != nil {
		hook(email)
	}
	if err != nil {
		return gateway.LoginResult{}, err
	}
	if !valid {
		return gateway.LoginResult{}, apperr.ErrUnauthenticated
	}
	return res, nil
}

// WhoAmI honours ctx once the hook returns, as an HTTP call would.
func (f *Fake) WhoAmI(ctx context.Context, token string) (models.User, error) {
	f.mu.Lock()
	hook := f.WhoAmIHook
	err := f.record("WhoAmI")
	user, ok := f.Identities[token]
	f.mu.Unlock()

	if hook != nil {
		hook(token)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.User{}, ctxErr
	}
	if err != nil {
		return models.User{}, err
	}
	if !ok {
		return models.User{}, apperr.ErrUnauthenticated
	}
	return user, nil
}

func (f *Fake) RequestOneTimeCode(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("RequestOneTimeCode")
}

func (f *Fake) VerifyOneTimeCode(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("VerifyOneTimeCode")
}

func (f *Fake) CreateVendorRequest(_ context.Context, profile models.VendorProfile) (models.VendorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateVendorRequest"); err != nil {
		return models.VendorProfile{}, err
	}
	user, err := f.caller()
	if err != nil {
		return models.VendorProfile{}, err
	}
	for _, v := range f.Vendors {
		if v.UserID != user.ID {
			continue
		}
		if v.Status == models.VendorApproved {
			return models.VendorProfile{}, apperr.Invalid("status", "already approved")
		}
		v.Status = models.VendorPending
		v.RejectionReason = ""
		if profile.StoreName != "" {
			v.StoreName = profile.StoreName
		}
		return *v, nil
	}
	profile.ID = f.id()
	profile.UserID = user.ID
	profile.Status = models.VendorPending
	profile.RejectionReason = ""
	f.Vendors[profile.ID] = &profile
	return profile, nil
}

func (f *Fake) GetVendorProfile(context.Context) (models.VendorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetVendorProfile"); err != nil {
		return models.VendorProfile{}, err
	}
	user, err := f.caller()
	if err != nil {
		return models.VendorProfile{}, err
	}
	for _, v := range f.Vendors {
		if v.UserID == user.ID {
			return *v, nil
		}
	}
	return models.VendorProfile{}, apperr.ErrNotFound
}

func (f *Fake) ListPendingVendors(context.Context) ([]models.VendorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListPendingVendors"); err != nil {
		return nil, err
	}
	var out []models.VendorProfile
	for _, v := range f.Vendors {
		if v.Status == models.VendorPending {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetVendorApproval answers like the API: an unchanged status is accepted and
// only pending applications can be decided.
func (f *Fake) SetVendorApproval(_ context.Context, vendorID int64, status, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetVendorApproval"); err != nil {
		return err
	}
	v, ok := f.Vendors[vendorID]
	if !ok {
		return apperr.ErrNotFound
	}
	if v.Status == status {
		return nil
	}
	if v.Status != models.VendorPending {
		return apperr.Invalid("status", "cannot move "+v.Status+" to "+status)
	}
	v.Status = status
	v.RejectionReason = reason
	if status == models.VendorApproved {
		f.promote(v.UserID)
	}
	return nil
}

func (f *Fake) promote(userID int64) {
	for token, u := range f.Identities {
		if u.ID == userID && u.Role == models.RoleCustomer {
			u.Role = models.RoleVendor
			f.Identities[token] = u
		}
	}
	if u, ok := f.Users[userID]; ok && u.Role == models.RoleCustomer {
		u.Role = models.RoleVendor
	}
}

func (f *Fake) CreateProduct(_ context.Context, product models.Product) (models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateProduct"); err != nil {
		return models.Product{}, err
	}
	product.ID = f.id()
	product.Status = models.ProductPending
	f.Products[product.ID] = &product
	return product, nil
}

func (f *Fake) ListVendorProducts(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListVendorProducts"); err != nil {
		return nil, err
	}
	user, err := f.caller()
	if err != nil {
		return nil, err
	}
	var out []models.Product
	for _, p := range f.Products {
		if v, ok := f.Vendors[p.VendorID]; ok && v.UserID == user.ID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) ListPendingProducts(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListPendingProducts"); err != nil {
		return nil, err
	}
	var out []models.Product
	for _, p := range f.Products {
		if p.Status == models.ProductPending {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) SetProductApproval(_ context.Context, productID int64, status, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetProductApproval"); err != nil {
		return err
	}
	p, ok := f.Products[productID]
	if !ok {
		return apperr.ErrNotFound
	}
	if p.Status == status {
		return nil
	}
	if p.Status != models.ProductPending {
		return apperr.Invalid("status", "cannot move "+p.Status+" to "+status)
	}
	p.Status = status
	p.RejectionReason = reason
	return nil
}

func (f *Fake) ResubmitProduct(_ context.Context, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ResubmitProduct"); err != nil {
		return err
	}
	p, ok := f.Products[productID]
	if !ok {
		return apperr.ErrNotFound
	}
	p.Status = models.ProductPending
	p.RejectionReason = ""
	return nil
}

func (f *Fake) ListVendorOrders(context.Context) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListVendorOrders"); err != nil {
		return nil, err
	}
	out := make([]models.Order, 0, len(f.Orders))
	for _, o := range f.Orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) SetOrderStatus(_ context.Context, orderID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetOrderStatus"); err != nil {
		return err
	}
	o, ok := f.Orders[orderID]
	if !ok {
		return apperr.ErrNotFound
	}
	o.Status = status
	return nil
}

func (f *Fake) ListCoupons(context.Context) ([]models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListCoupons"); err != nil {
		return nil, err
	}
	out := make([]models.Coupon, 0, len(f.Coupons))
	for _, c := range f.Coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *Fake) CreateCoupon(_ context.Context, coupon models.Coupon) (models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateCoupon"); err != nil {
		return models.Coupon{}, err
	}
	if _, exists := f.Coupons[coupon.Code]; exists {
		return models.Coupon{}, apperr.Invalid("code", "already exists")
	}
	f.Coupons[coupon.Code] = coupon
	return coupon, nil
}

func (f *Fake) DeleteCoupon(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteCoupon"); err != nil {
		return err
	}
	if _, ok := f.Coupons[code]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.Coupons, code)
	return nil
}

func (f *Fake) ListUsers(_ context.Context, role string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListUsers"); err != nil {
		return nil, err
	}
	var out []models.User
	for _, u := range f.Users {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) SetUserActive(_ context.Context, userID int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetUserActive"); err != nil {
		return err
	}
	u, ok := f.Users[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	u.Active = active
	return nil
}
