// Package identity establishes and reconciles the client's identity against
// the authoritative "who am I" endpoint.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/auth"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/gateway"
	"github.com/hongminglow/pawmart/internal/guard"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/session"
)

var (
	// ErrSuppressed is returned by Reconcile and Refresh while a login or
	// OAuth completion is in flight and no resolved session exists yet.
	ErrSuppressed = errors.New("reconcile suppressed while login is in flight")
	// ErrSuperseded means the identity changed while a fetch was running and
	// its result was discarded.
	ErrSuperseded = errors.New("identity changed during fetch")
)

type Config struct {
	Store   *session.Store
	Auth    gateway.Auth
	Vendors gateway.Vendors
	Guard   *guard.Guard
	Events  bus.Publisher
	Logger  *zap.Logger
}

// Resolver owns every transition of the session's identity.
type Resolver struct {
	store   *session.Store
	auth    gateway.Auth
	vendors gateway.Vendors
	guard   *guard.Guard
	events  bus.Publisher
	logger  *zap.Logger

	// logins counts login/OAuth completions in flight; reconciliation
	// stands down while it is non-zero.
	logins  atomic.Int32
	fetches singleflight.Group
	now     func() time.Time
}

func New(cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := cfg.Guard
	if g == nil {
		g = guard.New(cfg.Store, nil, cfg.Events, logger)
	}
	return &Resolver{
		store:   cfg.Store,
		auth:    cfg.Auth,
		vendors: cfg.Vendors,
		guard:   g,
		events:  cfg.Events,
		logger:  logger,
		now:     time.Now,
	}
}

// Login verifies credentials and establishes a session. When the response
// carries the user, token and user are installed in one write and no
// who-am-I call is made.
func (r *Resolver) Login(ctx context.Context, email, password string) (session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return session.Session{}, apperr.Invalid("email", "is required")
	}
	if password == "" {
		return session.Session{}, apperr.Invalid("password", "is required")
	}

	r.logins.Add(1)
	defer r.logins.Add(-1)

	res, err := r.auth.VerifyCredentials(ctx, email, password)
	if err != nil {
		return session.Session{}, fmt.Errorf("verify credentials: %w", err)
	}
	if res.Token == "" {
		return session.Session{}, fmt.Errorf("verify credentials: empty token: %w", apperr.ErrUnauthenticated)
	}
	if res.User == nil {
		return r.completeWithFetch(ctx, res.Token)
	}

	r.store.Establish(ctx, res.Token, *res.User)
	r.publishSession(bus.SessionLoggedIn, res.User.ID)
	r.logger.Info("login established", zap.Int64("user_id", res.User.ID), zap.String("role", res.User.Role))
	return r.store.Snapshot(), nil
}

// CompleteOAuthCallback installs a token delivered by an external redirect
// and resolves its user.
func (r *Resolver) CompleteOAuthCallback(ctx context.Context, token string) (session.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return session.Session{}, apperr.Invalid("token", "is required")
	}

	r.logins.Add(1)
	defer r.logins.Add(-1)

	return r.completeWithFetch(ctx, token)
}

func (r *Resolver) completeWithFetch(ctx context.Context, token string) (session.Session, error) {
	epoch := r.store.BeginToken(ctx, token)
	user, err := r.fetch(ctx, token)
	if err != nil {
		return session.Session{}, r.guard.Handle(ctx, guard.RouteGeneral, epoch, fmt.Errorf("who am i: %w", err))
	}
	if !r.store.CommitUser(ctx, epoch, user) {
		return session.Session{}, ErrSuperseded
	}
	r.publishSession(bus.SessionLoggedIn, user.ID)
	r.logger.Info("login established", zap.Int64("user_id", user.ID), zap.String("role", user.Role))
	return r.store.Snapshot(), nil
}

// Reconcile confirms the persisted session. A cached user for the current
// token is trusted without a network call.
func (r *Resolver) Reconcile(ctx context.Context) (session.Session, error) {
	if sess, suppressed, err := r.suppressed(); suppressed {
		return sess, err
	}

	sess, epoch := r.store.Current()
	if !sess.Authenticated() {
		return session.Session{}, apperr.ErrUnauthenticated
	}
	if auth.Expired(sess.Token, r.now()) {
		if r.store.ClearIf(ctx, epoch) {
			r.publishSession(bus.SessionCleared, 0)
		}
		return session.Session{}, fmt.Errorf("persisted token expired: %w", apperr.ErrUnauthenticated)
	}
	if sess.User != nil {
		return sess, nil
	}
	return r.resolve(ctx, guard.RouteGeneral, sess, epoch)
}

// Refresh re-fetches the authoritative user regardless of the cache. On a
// transient failure in a sensitive route class the stale session is
// returned together with an ErrStale error.
func (r *Resolver) Refresh(ctx context.Context, route guard.RouteClass) (session.Session, error) {
	if sess, suppressed, err := r.suppressed(); suppressed {
		return sess, err
	}
	sess, epoch := r.store.Current()
	if !sess.Authenticated() {
		return session.Session{}, apperr.ErrUnauthenticated
	}
	return r.resolve(ctx, route, sess, epoch)
}

func (r *Resolver) suppressed() (session.Session, bool, error) {
	if r.logins.Load() == 0 {
		return session.Session{}, false, nil
	}
	if sess := r.store.Snapshot(); sess.Resolved() {
		return sess, true, nil
	}
	return session.Session{}, true, ErrSuppressed
}

func (r *Resolver) resolve(ctx context.Context, route guard.RouteClass, cached session.Session, epoch uint64) (session.Session, error) {
	user, err := r.fetch(ctx, cached.Token)

	// A login that started while we were waiting owns the session now.
	if r.logins.Load() > 0 {
		r.logger.Debug("discarding reconcile result, login in flight")
		if sess := r.store.Snapshot(); sess.Resolved() {
			return sess, nil
		}
		return session.Session{}, ErrSuppressed
	}

	if err != nil {
		err = r.guard.Handle(ctx, route, epoch, fmt.Errorf("who am i: %w", err))
		if errors.Is(err, apperr.ErrStale) && cached.User != nil {
			return cached, err
		}
		return session.Session{}, err
	}
	if !r.store.CommitUser(ctx, epoch, user) {
		if sess := r.store.Snapshot(); sess.Resolved() {
			return sess, nil
		}
		return session.Session{}, ErrSuperseded
	}
	return r.store.Snapshot(), nil
}

// fetch shares one who-am-I call per token. The call runs detached from
// any single caller, so a caller that gives up only abandons its own wait.
func (r *Resolver) fetch(ctx context.Context, token string) (models.User, error) {
	ch := r.fetches.DoChan(token, func() (any, error) {
		return r.auth.WhoAmI(context.WithoutCancel(ctx), token)
	})
	select {
	case <-ctx.Done():
		return models.User{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.User{}, res.Err
		}
		return res.Val.(models.User), nil
	}
}

// Logout drops token, user and vendor together and tells subscribers.
func (r *Resolver) Logout(ctx context.Context) {
	sess := r.store.Snapshot()
	r.store.Clear(ctx)
	var id int64
	if sess.User != nil {
		id = sess.User.ID
	}
	r.publishSession(bus.SessionLoggedOut, id)
	r.logger.Info("logged out", zap.Int64("user_id", id))
}

// LoadVendorProfile fetches the caller's vendor profile into the session.
// A missing profile clears the cached one and returns nil.
func (r *Resolver) LoadVendorProfile(ctx context.Context, route guard.RouteClass) (*models.VendorProfile, error) {
	grant, err := r.guard.RequireIdentity()
	if err != nil {
		return nil, err
	}
	v, err := r.vendors.GetVendorProfile(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		r.store.CommitVendor(ctx, grant.Epoch, nil)
		return nil, nil
	}
	if err != nil {
		err = r.guard.Handle(ctx, route, grant.Epoch, fmt.Errorf("load vendor profile: %w", err))
		return grant.Session.Vendor, err
	}
	if !r.store.CommitVendor(ctx, grant.Epoch, &v) {
		return nil, ErrSuperseded
	}
	return &v, nil
}

// RequestOneTimeCode asks the collaborator to deliver a code to email.
func (r *Resolver) RequestOneTimeCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Invalid("email", "is required")
	}
	return r.auth.RequestOneTimeCode(ctx, email)
}

// VerifyOneTimeCode checks a delivered code.
func (r *Resolver) VerifyOneTimeCode(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" {
		return apperr.Invalid("email", "is required")
	}
	if code == "" {
		return apperr.Invalid("code", "is required")
	}
	return r.auth.VerifyOneTimeCode(ctx, email, code)
}

func (r *Resolver) publishSession(to string, userID int64) {
	if r.events == nil {
		return
	}
	r.events.Publish(bus.Event{Type: bus.EventSession, EntityID: userID, To: to})
}
