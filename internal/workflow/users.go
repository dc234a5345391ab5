package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/hongminglow/pawmart/internal/apperr"
	"github.com/hongminglow/pawmart/internal/bus"
	"github.com/hongminglow/pawmart/internal/capability"
	"github.com/hongminglow/pawmart/internal/gateway"
	"github.com/hongminglow/pawmart/internal/guard"
	"github.com/hongminglow/pawmart/internal/models"
)

const (
	UserActive   = "active"
	UserInactive = "inactive"
)

var activationTable = NewTable("user",
	[]string{UserActive, UserInactive},
	map[string][]string{
		UserActive:   {UserInactive},
		UserInactive: {UserActive},
	})

// Users lets administrators list accounts and toggle their activation.
type Users struct {
	core
	users gateway.Users

	mu    sync.RWMutex
	index map[int64]models.User
}

func NewUsers(cfg Config) *Users {
	return &Users{
		core:  newCore(cfg, "user", activationTable),
		users: cfg.Gateway,
		index: map[int64]models.User{},
	}
}

// SetActive activates or deactivates userID. Administrators cannot
// deactivate themselves.
func (u *Users) SetActive(ctx context.Context, userID int64, active bool) error {
	grant, err := u.guard.Require(capability.ManageUsers)
	if err != nil {
		return err
	}
	if !active && grant.Session.User.ID == userID {
		return apperr.Invalid("active", "cannot deactivate your own account")
	}

	u.moves.Lock()
	defer u.moves.Unlock()

	user, err := u.lookup(ctx, userID)
	if err != nil {
		return err
	}
	_, err = u.apply(ctx, move{
		route: guard.RouteAdmin,
		grant: grant,
		event: bus.EventUser,
		from:  activation(user.Active),
		to:    activation(active),
		call: func(ctx context.Context) error {
			return u.users.SetUserActive(ctx, userID, active)
		},
		commit: func() int64 {
			user.Active = active
			u.remember(user)
			return userID
		},
	})
	return err
}

// List returns accounts, optionally only those with role.
func (u *Users) List(ctx context.Context, role string) ([]models.User, error) {
	grant, err := u.guard.Require(capability.ManageUsers)
	if err != nil {
		return nil, err
	}
	if role != "" && !models.ValidRole(role) {
		return nil, apperr.Invalid("role", fmt.Sprintf("unknown role %q", role))
	}
	users, err := u.users.ListUsers(ctx, role)
	if err != nil {
		return nil, u.fail(ctx, guard.RouteAdmin, grant, fmt.Errorf("list users: %w", err))
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range users {
		u.index[user.ID] = user
	}
	return users, nil
}

func (u *Users) Lookup(userID int64) (models.User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.index[userID]
	return user, ok
}

func (u *Users) lookup(ctx context.Context, userID int64) (models.User, error) {
	if user, ok := u.Lookup(userID); ok {
		return user, nil
	}
	if _, err := u.List(ctx, ""); err != nil {
		return models.User{}, err
	}
	if user, ok := u.Lookup(userID); ok {
		return user, nil
	}
	return models.User{}, fmt.Errorf("user %d: %w", userID, apperr.ErrNotFound)
}

func (u *Users) remember(user models.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.index[user.ID] = user
}

func activation(active bool) string {
	if active {
		return UserActive
	}
	return UserInactive
}
