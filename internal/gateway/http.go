package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/models/dto"
)

// TokenSource yields the bearer token for authenticated calls.
type TokenSource func() string

type Options struct {
	BaseURL string
	Timeout time.Duration
	// Retries applies to connection failures only; every call is idempotent.
	Retries int
	Tokens  TokenSource
	Logger  *zap.Logger
}

// HTTPClient talks to the marketplace API over JSON.
type HTTPClient struct {
	rc     *resty.Client
	tokens TokenSource
	logger *zap.Logger
}

var _ Gateway = (*HTTPClient)(nil)

func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Tokens == nil {
		opts.Tokens = func() string { return "" }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "pawmart-core/1.0")
	return &HTTPClient{rc: rc, tokens: opts.Tokens, logger: opts.Logger}
}

type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type errorEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func do[T any](ctx context.Context, c *HTTPClient, method, path, token string, body any) (T, error) {
	var (
		zero   T
		out    envelope[T]
		failed errorEnvelope
	)
	req := c.rc.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetResult(&out).
		SetError(&failed)
	if token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("gateway request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return zero, fmt.Errorf("%s %s: %w: %w", method, path, apperr.ErrTransient, err)
	}
	if resp.IsError() {
		return zero, statusError(method, path, resp.StatusCode(), failed.Message)
	}
	return out.Data, nil
}

// statusError maps an HTTP failure onto the error taxonomy.
func statusError(method, path string, status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	var kind error
	switch {
	case status == http.StatusUnauthorized:
		kind = apperr.ErrUnauthenticated
	case status == http.StatusForbidden:
		kind = apperr.ErrForbidden
	case status == http.StatusNotFound:
		kind = apperr.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		kind = apperr.Invalid("", message)
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		kind = apperr.ErrTransient
	default:
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, status, message)
	}
	return fmt.Errorf("%s %s: %w (%s)", method, path, kind, message)
}

func (c *HTTPClient) VerifyCredentials(ctx context.Context, email, password string) (LoginResult, error) {
	res, err := do[dto.LoginResponse](ctx, c, http.MethodPost, "/api/auth/login", "",
		dto.LoginRequest{Email: email, Password: password})
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: res.Token, User: res.User}, nil
}

func (c *HTTPClient) WhoAmI(ctx context.Context, token string) (models.User, error) {
	return do[models.User](ctx, c, http.MethodGet, "/api/auth/me", token, nil)
}

func (c *HTTPClient) RequestOneTimeCode(ctx context.Context, email string) error {
	_, err := do[any](ctx, c, http.MethodPost, "/api/otp/request", "", dto.OTPRequest{Email: email})
	return err
}

func (c *HTTPClient) VerifyOneTimeCode(ctx context.Context, email, code string) error {
	_, err := do[any](ctx, c, http.MethodPost, "/api/otp/verify", "", dto.OTPVerifyRequest{Email: email, Code: code})
	return err
}

func (c *HTTPClient) CreateVendorRequest(ctx context.Context, profile models.VendorProfile) (models.VendorProfile, error) {
	return do[models.VendorProfile](ctx, c, http.MethodPost, "/api/vendors", c.tokens(), dto.VendorRequest{
		StoreName: profile.StoreName,
		Email:     profile.Email,
		Phone:     profile.Phone,
		Address:   profile.Address,
	})
}

func (c *HTTPClient) GetVendorProfile(ctx context.Context) (models.VendorProfile, error) {
	return do[models.VendorProfile](ctx, c, http.MethodGet, "/api/vendors/me", c.tokens(), nil)
}

func (c *HTTPClient) ListPendingVendors(ctx context.Context) ([]models.VendorProfile, error) {
	return do[[]models.VendorProfile](ctx, c, http.MethodGet, "/api/admin/vendors/pending", c.tokens(), nil)
}

func (c *HTTPClient) SetVendorApproval(ctx context.Context, vendorID int64, status, reason string) error {
	path := "/api/admin/vendors/" + strconv.FormatInt(vendorID, 10) + "/approval"
	_, err := do[any](ctx, c, http.MethodPut, path, c.tokens(), dto.ApprovalRequest{Status: status, RejectionReason: reason})
	return err
}

func (c *HTTPClient) CreateProduct(ctx context.Context, product models.Product) (models.Product, error) {
	return do[models.Product](ctx, c, http.MethodPost, "/api/vendors/products", c.tokens(), product)
}

func (c *HTTPClient) ListVendorProducts(ctx context.Context) ([]models.Product, error) {
	return do[[]models.Product](ctx, c, http.MethodGet, "/api/vendors/products", c.tokens(), nil)
}

func (c *HTTPClient) ListPendingProducts(ctx context.Context) ([]models.Product, error) {
	return do[[]models.Product](ctx, c, http.MethodGet, "/api/admin/products/pending", c.tokens(), nil)
}

func (c *HTTPClient) SetProductApproval(ctx context.Context, productID int64, status, reason string) error {
	path := "/api/admin/products/" + strconv.FormatInt(productID, 10) + "/approval"
	_, err := do[any](ctx, c, http.MethodPut, path, c.tokens(), dto.ApprovalRequest{Status: status, RejectionReason: reason})
	return err
}

func (c *HTTPClient) ResubmitProduct(ctx context.Context, productID int64) error {
	path := "/api/vendors/products/" + strconv.FormatInt(productID, 10) + "/resubmit"
	_, err := do[any](ctx, c, http.MethodPost, path, c.tokens(), nil)
	return err
}

func (c *HTTPClient) ListVendorOrders(ctx context.Context) ([]models.Order, error) {
	return do[[]models.Order](ctx, c, http.MethodGet, "/api/vendors/orders", c.tokens(), nil)
}

func (c *HTTPClient) SetOrderStatus(ctx context.Context, orderID int64, status string) error {
	path := "/api/vendors/orders/" + strconv.FormatInt(orderID, 10) + "/status"
	_, err := do[any](ctx, c, http.MethodPut, path, c.tokens(), dto.OrderStatusRequest{Status: status})
	return err
}

func (c *HTTPClient) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	return do[[]models.Coupon](ctx, c, http.MethodGet, "/api/coupons", c.tokens(), nil)
}

func (c *HTTPClient) CreateCoupon(ctx context.Context, coupon models.Coupon) (models.Coupon, error) {
	return do[models.Coupon](ctx, c, http.MethodPost, "/api/coupons", c.tokens(), coupon)
}

func (c *HTTPClient) DeleteCoupon(ctx context.Context, code string) error {
	_, err := do[any](ctx, c, http.MethodDelete, "/api/coupons/"+url.PathEscape(code), c.tokens(), nil)
	return err
}

func (c *HTTPClient) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	path := "/api/admin/users"
	if role != "" {
		path += "?role=" + url.QueryEscape(role)
	}
	return do[[]models.User](ctx, c, http.MethodGet, path, c.tokens(), nil)
}

func (c *HTTPClient) SetUserActive(ctx context.Context, userID int64, active bool) error {
	path := "/api/admin/users/" + strconv.FormatInt(userID, 10) + "/status"
	_, err := do[any](ctx, c, http.MethodPut, path, c.tokens(), dto.UserStatusRequest{Active: &active})
	return err
}
