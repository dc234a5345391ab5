package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/pawmart/internal/auth"
	"github.com/hongminglow/pawmart/internal/middleware"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/otp"
	"github.com/hongminglow/pawmart/internal/storage"
	"github.com/hongminglow/pawmart/internal/storage/memory"
)

type sentCodes map[string]string

func (s sentCodes) Send(_ context.Context, email, code string) error {
	s[email] = code
	return nil
}

type api struct {
	t      *testing.T
	url    string
	store  *memory.Store
	tokens *auth.TokenManager
	codes  sentCodes
}

func newAPI(t *testing.T) *api {
	t.Helper()
	return newAPIWith(t, nil)
}

// newAPIWith lets a test put a wrapper between the handlers and the seeded
// memory store.
func newAPIWith(t *testing.T, wrap func(*memory.Store) storage.Store) *api {
	t.Helper()
	store := memory.New()
	var backend storage.Store = store
	if wrap != nil {
		backend = wrap(store)
	}
	tokens := auth.NewTokenManager("test-secret", "pawmart", time.Hour)
	codes := sentCodes{}

	r := chi.NewRouter()
	NewHealthHandler(time.Now(), nil).Register(r)
	NewOTPHandler(otp.NewService(otp.NewMemoryCodes(), codes, time.Minute, nil), nil).Register(r)
	r.Group(func(private chi.Router) {
		private.Use(middleware.NewAuthenticator(tokens, backend, nil).Require)
		NewAuthHandler(backend, tokens, nil).Register(r, private)
		NewVendorHandler(backend, nil).Register(private)
		NewAdminHandler(backend, nil).Register(private)
		NewCouponHandler(backend, nil).Register(private)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &api{t: t, url: srv.URL, store: store, tokens: tokens, codes: codes}
}

// account stores a user directly and returns it with a signed token.
func (a *api) account(email, role string) (models.User, string) {
	a.t.Helper()
	user, err := a.store.CreateUser(context.Background(), models.User{Email: email, Role: role, Active: true})
	require.NoError(a.t, err)
	token, err := a.tokens.Generate(user)
	require.NoError(a.t, err)
	return user, token
}

// operator creates a store operator with an approved store.
func (a *api) operator(email string) (models.User, models.VendorProfile, string) {
	a.t.Helper()
	user, token := a.account(email, models.RoleVendor)
	ctx := context.Background()
	vendor, err := a.store.SaveVendorRequest(ctx, models.VendorProfile{UserID: user.ID, StoreName: email})
	require.NoError(a.t, err)
	moved, err := a.store.SetVendorStatus(ctx, vendor.ID, models.VendorPending, models.VendorApproved, "")
	require.NoError(a.t, err)
	require.True(a.t, moved)
	vendor.Status = models.VendorApproved
	return user, vendor, token
}

type reply struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *api) call(method, path, token string, body any) (int, reply) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.url+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var out reply
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(a.t, resp.StatusCode, out.Code, "envelope code mirrors the status")
	return resp.StatusCode, out
}

func decodeData[T any](t *testing.T, r reply) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}
