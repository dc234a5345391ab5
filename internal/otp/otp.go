// Package otp issues and checks one-time login codes for the reference API.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNoCode means no live code exists for the address.
var ErrNoCode = errors.New("no active code")

const codeLength = 6

// Codes stores the live code per email address.
type Codes interface {
	Put(ctx context.Context, email, code string, ttl time.Duration) error
	Get(ctx context.Context, email string) (string, error)
	Delete(ctx context.Context, email string) error
}

// Sender delivers a code to its recipient.
type Sender interface {
	Send(ctx context.Context, email, code string) error
}

type Service struct {
	codes  Codes
	sender Sender
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(codes Codes, sender Sender, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{codes: codes, sender: sender, ttl: ttl, logger: logger}
}

// Request replaces any live code for email with a fresh one and sends it.
func (s *Service) Request(ctx context.Context, email string) error {
	email = normalize(email)
	code, err := randomCode(codeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := s.codes.Put(ctx, email, code, s.ttl); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	if err := s.sender.Send(ctx, email, code); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	s.logger.Info("one-time code issued", zap.String("email", email), zap.Duration("ttl", s.ttl))
	return nil
}

// Verify reports whether code matches the live code for email. A match
// consumes the code.
func (s *Service) Verify(ctx context.Context, email, code string) (bool, error) {
	email = normalize(email)
	want, err := s.codes.Get(ctx, email)
	if errors.Is(err, ErrNoCode) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(strings.TrimSpace(code))) != 1 {
		s.logger.Info("one-time code mismatch", zap.String("email", email))
		return false, nil
	}
	if err := s.codes.Delete(ctx, email); err != nil {
		s.logger.Warn("delete used code", zap.String("email", email), zap.Error(err))
	}
	return true, nil
}

func normalize(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func randomCode(n int) (string, error) {
	var b strings.Builder
	for range n {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// RedisCodes keeps codes under "<namespace>:<email>" with a TTL.
type RedisCodes struct {
	client    redis.Cmdable
	namespace string
}

func NewRedisCodes(client redis.Cmdable, namespace string) *RedisCodes {
	return &RedisCodes{client: client, namespace: namespace}
}

func (r *RedisCodes) key(email string) string { return r.namespace + ":" + email }

func (r *RedisCodes) Put(ctx context.Context, email, code string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(email), code, ttl).Err()
}

func (r *RedisCodes) Get(ctx context.Context, email string) (string, error) {
	val, err := r.client.Get(ctx, r.key(email)).Result()
	if err == redis.Nil {
		return "", ErrNoCode
	}
	return val, err
}

func (r *RedisCodes) Delete(ctx context.Context, email string) error {
	return r.client.Del(ctx, r.key(email)).Err()
}

type entry struct {
	code    string
	expires time.Time
}

// MemoryCodes is an in-process Codes for tests and runs without Redis.
type MemoryCodes struct {
	mu    sync.Mutex
	codes map[string]entry
	now   func() time.Time
}

func NewMemoryCodes() *MemoryCodes {
	return &MemoryCodes{codes: make(map[string]entry), now: time.Now}
}

func (m *MemoryCodes) Put(_ context.Context, email, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = entry{code: code, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryCodes) Get(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.codes[email]
	if !ok || !m.now().Before(e.expires) {
		delete(m.codes, email)
		return "", ErrNoCode
	}
	return e.code, nil
}

func (m *MemoryCodes) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, email)
	return nil
}

// LogSender writes codes to the log. It stands in for mail delivery.
type LogSender struct {
	Logger *zap.Logger
}

func (l LogSender) Send(_ context.Context, email, code string) error {
	if l.Logger != nil {
		l.Logger.Info("one-time code", zap.String("email", email), zap.String("code", code))
	}
	return nil
}
