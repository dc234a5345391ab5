// Package session owns the client's live session: the bearer token, the
// cached authoritative user and the cached vendor profile.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/models"
)

// Session is a point-in-time copy of the store's state.
type Session struct {
	Token  string
	User   *models.User
	Vendor *models.VendorProfile
}

// Authenticated reports whether a token is held.
func (s Session) Authenticated() bool { return s.Token != "" }

// Resolved reports whether both a token and a user snapshot are held.
func (s Session) Resolved() bool { return s.Token != "" && s.User != nil }

// Store serializes all session writes. Every write that replaces or drops
// the identity bumps the epoch; conditional writes carrying an older epoch
// are discarded, so a late network result never overwrites newer state.
type Store struct {
	mu      sync.RWMutex
	token   string
	user    *models.User
	vendor  *models.VendorProfile
	epoch   uint64
	persist Persister
	logger  *zap.Logger
}

func NewStore(p Persister, logger *zap.Logger) *Store {
	if p == nil {
		p = NewMemoryPersister()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{persist: p, logger: logger}
}

// Restore loads persisted slots. Unreadable user or vendor slots are dropped;
// a user snapshot without a token is discarded.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.persist.Get(ctx, KeyToken)
	switch {
	case errors.Is(err, ErrNotPersisted):
		s.resetLocked()
		s.deleteLocked(ctx, KeyUser, KeyVendor)
		return nil
	case err != nil:
		return err
	}

	s.resetLocked()
	s.token = string(token)
	s.user = loadJSON[models.User](ctx, s, KeyUser)
	s.vendor = loadJSON[models.VendorProfile](ctx, s, KeyVendor)
	s.epoch++
	return nil
}

func loadJSON[T any](ctx context.Context, s *Store, key Key) *T {
	raw, err := s.persist.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotPersisted) {
			s.logger.Warn("session slot unreadable", zap.String("slot", string(key)), zap.Error(err))
		}
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("session slot corrupt, dropping", zap.String("slot", string(key)), zap.Error(err))
		s.deleteLocked(ctx, key)
		return nil
	}
	return &v
}

// Snapshot returns copies of the current state.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{Token: s.token, User: cloneUser(s.user), Vendor: cloneVendor(s.vendor)}
}

// Current returns a snapshot together with the epoch it belongs to.
func (s *Store) Current() (Session, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{Token: s.token, User: cloneUser(s.user), Vendor: cloneVendor(s.vendor)}, s.epoch
}

// Token returns the bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Epoch identifies the current logical identity generation.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Establish installs token and user in one update and returns the new epoch.
// The user slot is persisted before the token slot.
func (s *Store) Establish(ctx context.Context, token string, user models.User) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vendor != nil && (s.user == nil || s.user.ID != user.ID) {
		s.vendor = nil
		s.deleteLocked(ctx, KeyVendor)
	}
	s.user = cloneUser(&user)
	s.token = token
	s.epoch++
	s.putJSONLocked(ctx, KeyUser, s.user)
	s.putLocked(ctx, KeyToken, []byte(token))
	return s.epoch
}

// BeginToken installs a token whose user is not yet known, dropping any
// cached user and vendor, and returns the new epoch.
func (s *Store) BeginToken(ctx context.Context, token string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.token = token
	s.epoch++
	s.deleteLocked(ctx, KeyUser, KeyVendor)
	s.putLocked(ctx, KeyToken, []byte(token))
	return s.epoch
}

// CommitUser stores an authoritative user fetched under epoch. It reports
// false, and changes nothing, when the identity moved on meanwhile.
func (s *Store) CommitUser(ctx context.Context, epoch uint64, user models.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || s.token == "" {
		return false
	}
	if s.vendor != nil && s.vendor.UserID != 0 && s.vendor.UserID != user.ID {
		s.vendor = nil
		s.deleteLocked(ctx, KeyVendor)
	}
	s.user = cloneUser(&user)
	s.putJSONLocked(ctx, KeyUser, s.user)
	return true
}

// CommitVendor caches the caller's vendor profile (nil clears it) if epoch
// is still current.
func (s *Store) CommitVendor(ctx context.Context, epoch uint64, vendor *models.VendorProfile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || s.token == "" {
		return false
	}
	s.setVendorLocked(ctx, vendor)
	return true
}

// UpdateVendor caches vendor for the current identity. It is a no-op when
// logged out.
func (s *Store) UpdateVendor(ctx context.Context, vendor *models.VendorProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return
	}
	s.setVendorLocked(ctx, vendor)
}

// ClearIf drops the session only if epoch is still current.
func (s *Store) ClearIf(ctx context.Context, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	s.clearLocked(ctx)
	return true
}

// Clear drops token, user and vendor together.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) {
	s.resetLocked()
	s.epoch++
	s.deleteLocked(ctx, AllKeys...)
}

func (s *Store) resetLocked() {
	s.token = ""
	s.user = nil
	s.vendor = nil
}

func (s *Store) setVendorLocked(ctx context.Context, vendor *models.VendorProfile) {
	s.vendor = cloneVendor(vendor)
	if vendor == nil {
		s.deleteLocked(ctx, KeyVendor)
		return
	}
	s.putJSONLocked(ctx, KeyVendor, s.vendor)
}

// Persistence failures never fail a write: the in-memory state stays
// authoritative for this process.
func (s *Store) putJSONLocked(ctx context.Context, key Key, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode session slot", zap.String("slot", string(key)), zap.Error(err))
		return
	}
	s.putLocked(ctx, key, raw)
}

func (s *Store) putLocked(ctx context.Context, key Key, raw []byte) {
	if err := s.persist.Put(ctx, key, raw); err != nil {
		s.logger.Warn("persist session slot", zap.String("slot", string(key)), zap.Error(err))
	}
}

func (s *Store) deleteLocked(ctx context.Context, keys ...Key) {
	if err := s.persist.Delete(ctx, keys...); err != nil {
		s.logger.Warn("delete session slots", zap.Error(err))
	}
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneVendor(v *models.VendorProfile) *models.VendorProfile {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
