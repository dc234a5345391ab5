// Package guard decides whether the current session may perform an action
// and what a failed call should do to the session.
package guard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/session"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Allow Decision = iota
	Deny
	Unauthenticated
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Unauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Authorize is a pure decision over sess. A token without a resolved user
// is not an identity yet and yields Unauthenticated.
func Authorize(sess session.Session, required capability.Capability) Decision {
	if !sess.Resolved() {
		return Unauthenticated
	}
	if capability.For(sess.User, sess.Vendor).Has(required) {
		return Allow
	}
	return Deny
}

// Grant is a session snapshot that passed a capability check.
type Grant struct {
	Session session.Session
	Epoch   uint64
}

// Guard binds Authorize and the failure policy to a session store.
type Guard struct {
	store  *session.Store
	policy Policy
	events bus.Publisher
	logger *zap.Logger
}

func New(store *session.Store, policy Policy, events bus.Publisher, logger *zap.Logger) *Guard {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{store: store, policy: policy, events: events, logger: logger}
}

// Decide evaluates required against the current session.
func (g *Guard) Decide(required capability.Capability) Decision {
	return Authorize(g.store.Snapshot(), required)
}

// Require returns the current session when it holds required, and
// ErrUnauthenticated or ErrForbidden otherwise. Forbidden never touches
// the session.
func (g *Guard) Require(required capability.Capability) (Grant, error) {
	sess, epoch := g.store.Current()
	switch Authorize(sess, required) {
	case Allow:
		return Grant{Session: sess, Epoch: epoch}, nil
	case Deny:
		return Grant{}, fmt.Errorf("%s: %w", required, apperr.ErrForbidden)
	default:
		return Grant{}, fmt.Errorf("%s: %w", required, apperr.ErrUnauthenticated)
	}
}

// RequireIdentity only demands a resolved session.
func (g *Guard) RequireIdentity() (Grant, error) {
	sess, epoch := g.store.Current()
	if !sess.Resolved() {
		return Grant{}, apperr.ErrUnauthenticated
	}
	return Grant{Session: sess, Epoch: epoch}, nil
}

// Handle applies the policy for a failed call made under epoch on route and
// returns the error the caller should surface.
func (g *Guard) Handle(ctx context.Context, route RouteClass, epoch uint64, err error) error {
	if err == nil {
		return nil
	}
	kind := apperr.KindOf(err)
	action := g.policy.Action(route, kind)
	switch action {
	case ActionClearSession:
		if g.store.ClearIf(ctx, epoch) {
			g.logger.Info("session cleared after authoritative rejection",
				zap.String("route", string(route)), zap.Error(err))
			if g.events != nil {
				g.events.Publish(bus.Event{Type: bus.EventSession, From: bus.SessionLoggedIn, To: bus.SessionCleared})
			}
		} else {
			g.logger.Debug("ignoring rejection for superseded session", zap.String("route", string(route)))
		}
		return err
	case ActionRetainStale:
		g.logger.Warn("keeping cached identity after transient failure",
			zap.String("route", string(route)), zap.Error(err))
		return fmt.Errorf("%w: %w", apperr.ErrStale, err)
	default:
		return err
	}
}
