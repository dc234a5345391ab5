package guard

import "github.com/hongminglow/pawmart/internal/apperr"

// RouteClass groups views by how much a failed call may disturb the session.
type RouteClass string

const (
	RouteGeneral RouteClass = "general"
	RouteVendor  RouteClass = "vendor"
	RouteAdmin   RouteClass = "admin"
	// RouteAny is the wildcard row of a policy table.
	RouteAny RouteClass = "*"
)

// Action is what happens to the session after a failed call.
type Action string

const (
	ActionClearSession Action = "clear-session"
	ActionRetainStale  Action = "retain-stale"
	ActionSurface      Action = "surface"
)

type policyKey struct {
	route RouteClass
	kind  apperr.Kind
}

// Policy maps (route class, error kind) to an action. Exact rows win over
// RouteAny rows; anything unlisted is surfaced without touching the session.
type Policy map[policyKey]Action

// Set adds or replaces a row.
func (p Policy) Set(route RouteClass, kind apperr.Kind, action Action) Policy {
	p[policyKey{route, kind}] = action
	return p
}

func (p Policy) Action(route RouteClass, kind apperr.Kind) Action {
	if a, ok := p[policyKey{route, kind}]; ok {
		return a
	}
	if a, ok := p[policyKey{RouteAny, kind}]; ok {
		return a
	}
	return ActionSurface
}

// DefaultPolicy clears the session only on authoritative rejection and keeps
// stale identity on sensitive views when the network flakes.
func DefaultPolicy() Policy {
	return Policy{}.
		Set(RouteAny, apperr.KindUnauthenticated, ActionClearSession).
		Set(RouteAny, apperr.KindForbidden, ActionSurface).
		Set(RouteAny, apperr.KindNotFound, ActionSurface).
		Set(RouteAny, apperr.KindValidation, ActionSurface).
		Set(RouteGeneral, apperr.KindTransient, ActionSurface).
		Set(RouteVendor, apperr.KindTransient, ActionRetainStale).
		Set(RouteAdmin, apperr.KindTransient, ActionRetainStale)
}
