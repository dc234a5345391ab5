// Package client assembles the marketplace core for an interactive client:
// session persistence, identity, authorization, workflows and dashboard.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/config"
	"github.com/hongminglow/pawmart/internal/dashboard"
	"github.com/hongminglow/pawmart/internal/gateway"
	"github.com/hongminglow/pawmart/internal/guard"
	"github.com/hongminglow/pawmart/internal/identity"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/session"
	"github.com/hongminglow/pawmart/internal/workflow"
)

type options struct {
	logger    *zap.Logger
	gateway   gateway.Gateway
	persister session.Persister
	policy    guard.Policy
	registry  prometheus.Registerer
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithGateway replaces the HTTP gateway built from the config.
func WithGateway(g gateway.Gateway) Option { return func(o *options) { o.gateway = g } }

// WithPersister replaces the backend chosen by SESSION_BACKEND.
func WithPersister(p session.Persister) Option { return func(o *options) { o.persister = p } }

func WithPolicy(p guard.Policy) Option { return func(o *options) { o.policy = p } }

// WithRegisterer registers the dashboard gauges with r.
func WithRegisterer(r prometheus.Registerer) Option { return func(o *options) { o.registry = r } }

// Client is one logged-in (or logged-out) client process.
type Client struct {
	Session     *session.Store
	Events      *bus.Bus
	Guard       *guard.Guard
	Identity    *identity.Resolver
	Onboarding  *workflow.Onboarding
	Moderation  *workflow.Moderation
	Fulfillment *workflow.Fulfillment
	Coupons     *workflow.Coupons
	Users       *workflow.Users
	Dashboard   *dashboard.Dashboard

	logger  *zap.Logger
	closers []func() error
}

// New builds a client and restores the persisted session. Call Resume to
// confirm it with the server.
func New(ctx context.Context, cfg config.ClientConfig, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	c := &Client{logger: o.logger}
	persister := o.persister
	if persister == nil {
		var err error
		if persister, err = c.openPersister(cfg); err != nil {
			return nil, err
		}
	}

	c.Session = session.NewStore(persister, o.logger)
	if err := c.Session.Restore(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	c.Events = bus.New(o.logger)
	c.Guard = guard.New(c.Session, o.policy, c.Events, o.logger)

	gw := o.gateway
	if gw == nil {
		gw = gateway.NewHTTPClient(gateway.Options{
			BaseURL: cfg.APIBaseURL,
			Timeout: cfg.APITimeout,
			Retries: 2,
			Tokens:  c.Session.Token,
			Logger:  o.logger,
		})
	}

	c.Identity = identity.New(identity.Config{
		Store:   c.Session,
		Auth:    gw,
		Vendors: gw,
		Guard:   c.Guard,
		Events:  c.Events,
		Logger:  o.logger,
	})
	wf := workflow.Config{Gateway: gw, Store: c.Session, Guard: c.Guard, Events: c.Events, Logger: o.logger}
	c.Onboarding = workflow.NewOnboarding(wf)
	c.Moderation = workflow.NewModeration(wf)
	c.Fulfillment = workflow.NewFulfillment(wf)
	c.Coupons = workflow.NewCoupons(wf)
	c.Users = workflow.NewUsers(wf)
	c.Dashboard = dashboard.New(c.Events, o.registry)
	return c, nil
}

func (c *Client) openPersister(cfg config.ClientConfig) (session.Persister, error) {
	switch cfg.SessionBackend {
	case config.BackendMemory:
		return session.NewMemoryPersister(), nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		c.closers = append(c.closers, rdb.Close)
		return session.NewRedisPersister(rdb, cfg.SessionNamespace, 0), nil
	default:
		p, err := session.NewFilePersister(cfg.SessionDir)
		if err != nil {
			return nil, fmt.Errorf("open session dir: %w", err)
		}
		return p, nil
	}
}

// Resume reconciles the persisted session and, for store operators and
// admins, loads the caller's vendor profile.
func (c *Client) Resume(ctx context.Context) (session.Session, error) {
	sess, err := c.Identity.Reconcile(ctx)
	if err != nil {
		return sess, err
	}
	if role := sess.User.Role; role != models.RoleVendor && role != models.RoleAdmin {
		return sess, nil
	}
	if _, err := c.Identity.LoadVendorProfile(ctx, guard.RouteVendor); err != nil {
		if errors.Is(err, apperr.ErrStale) {
			c.logger.Warn("vendor profile unavailable, using cached copy", zap.Error(err))
			return c.Session.Snapshot(), nil
		}
		return c.Session.Snapshot(), err
	}
	return c.Session.Snapshot(), nil
}

// Capabilities is the capability set of the current session.
func (c *Client) Capabilities() capability.Set {
	sess := c.Session.Snapshot()
	return capability.For(sess.User, sess.Vendor)
}

// RefreshDashboard pulls the lists the caller may see and reseeds the
// dashboard counts.
func (c *Client) RefreshDashboard(ctx context.Context) error {
	caps := c.Capabilities()
	var (
		vendors  []models.VendorProfile
		products []models.Product
		orders   []models.Order
		err      error
	)
	if caps.Has(capability.ModerateVendors) {
		if vendors, err = c.Onboarding.List(ctx); err != nil {
			return err
		}
	}
	if caps.Has(capability.ModerateProducts) {
		if products, err = c.Moderation.List(ctx); err != nil {
			return err
		}
	}
	if caps.Has(capability.ManageVendorOrders) {
		if orders, err = c.Fulfillment.List(ctx, ""); err != nil {
			return err
		}
	}
	c.Dashboard.Seed(vendors, products, orders)
	return nil
}

// Close detaches the dashboard and releases backend connections.
func (c *Client) Close() error {
	if c.Dashboard != nil {
		c.Dashboard.Close()
	}
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer())
	}
	c.closers = nil
	return errors.Join(errs...)
}
