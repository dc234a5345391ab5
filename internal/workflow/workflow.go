package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/gateway"
	"github.com/hongminglow/pawmart/internal/guard"
	"github.com/hongminglow/pawmart/internal/session"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawmart_workflow_transitions_total",
			Help: "Status transitions accepted by the collaborator",
		},
		[]string{"machine", "to"},
	)

	transitionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawmart_workflow_transition_failures_total",
			Help: "Status transitions the collaborator refused or could not be reached for",
		},
		[]string{"machine", "kind"},
	)
)

// Config is shared by every machine.
type Config struct {
	Gateway gateway.Gateway
	Store   *session.Store
	Guard   *guard.Guard
	Events  bus.Publisher
	Logger  *zap.Logger
}

type core struct {
	name   string
	table  Table
	store  *session.Store
	guard  *guard.Guard
	events bus.Publisher
	logger *zap.Logger

	// moves serializes transitions so a duplicate call sees the first one's
	// result in the index.
	moves sync.Mutex
}

func newCore(cfg Config, name string, table Table) core {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := cfg.Guard
	if g == nil {
		g = guard.New(cfg.Store, nil, cfg.Events, logger)
	}
	return core{
		name:   name,
		table:  table,
		store:  cfg.Store,
		guard:  g,
		events: cfg.Events,
		logger: logger.With(zap.String("machine", name)),
	}
}

type move struct {
	route    guard.RouteClass
	grant    guard.Grant
	event    bus.EventType
	from, to string
	call     func(context.Context) error

	// commit records the accepted move and returns the entity ID to publish.
	commit func() int64
}

// apply checks m against the table and, for a real move, calls the gateway,
// commits and publishes one event. It reports whether anything changed.
func (c *core) apply(ctx context.Context, m move) (bool, error) {
	if m.from == m.to {
		return false, nil
	}
	if err := c.table.Check(m.from, m.to); err != nil {
		return false, err
	}
	if err := m.call(ctx); err != nil {
		return false, c.fail(ctx, m.route, m.grant, err)
	}
	id := m.commit()
	transitionsTotal.WithLabelValues(c.name, m.to).Inc()
	c.publish(m.event, id, "", m.from, m.to)
	c.logger.Info("status changed", zap.Int64("id", id), zap.String("from", m.from), zap.String("to", m.to))
	return true, nil
}

// forward sends a decision on an entity missing from the index straight to
// the collaborator. Its answer stands: an unchanged status is accepted, an
// illegal move or an unknown ID comes back as an error. Nothing is published
// since this client never saw the prior status.
func (c *core) forward(ctx context.Context, route guard.RouteClass, grant guard.Grant, id int64, to string, call func(context.Context) error) error {
	if err := call(ctx); err != nil {
		return c.fail(ctx, route, grant, fmt.Errorf("%s %d: %w", c.name, id, err))
	}
	c.logger.Debug("decision forwarded", zap.Int64("id", id), zap.String("to", to))
	return nil
}

// fail routes a gateway error through the session policy.
func (c *core) fail(ctx context.Context, route guard.RouteClass, grant guard.Grant, err error) error {
	transitionFailures.WithLabelValues(c.name, string(apperr.KindOf(err))).Inc()
	return c.guard.Handle(ctx, route, grant.Epoch, err)
}

func (c *core) publish(typ bus.EventType, id int64, key, from, to string) {
	if c.events == nil {
		return
	}
	c.events.Publish(bus.Event{Type: typ, EntityID: id, Key: key, From: from, To: to})
}

func (c *core) checkTarget(target string) error {
	if !c.table.Valid(target) {
		return apperr.Invalid("status", fmt.Sprintf("unknown %s status %q", c.name, target))
	}
	return nil
}

// RejectionReason trims reason and demands one for rejections.
func RejectionReason(target, rejected, reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if target != rejected {
		return "", nil
	}
	if reason == "" {
		return "", apperr.Invalid("rejection_reason", "is required when rejecting")
	}
	return reason, nil
}
