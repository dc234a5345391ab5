package otp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct{ codes map[string]string }

func (c *captureSender) Send(_ context.Context, email, code string) error {
	c.codes[email] = code
	return nil
}

func newService() (*Service, *captureSender, *MemoryCodes) {
	sender := &captureSender{codes: map[string]string{}}
	codes := NewMemoryCodes()
	return NewService(codes, sender, time.Minute, nil), sender, codes
}

func TestRequestThenVerify(t *testing.T) {
	ctx := context.Background()
	svc, sender, _ := newService()

	require.NoError(t, svc.Request(ctx, " A@X.com "))
	code := sender.codes["a@x.com"]
	require.Len(t, code, codeLength)

	ok, err := svc.Verify(ctx, "a@x.com", "000000x")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Verify(ctx, "A@x.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok, "codes are single use")
}

func TestExpiredCodeIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, sender, codes := newService()
	now := time.Now()
	codes.now = func() time.Time { return now }

	require.NoError(t, svc.Request(ctx, "a@x.com"))
	now = now.Add(2 * time.Minute)

	ok, err := svc.Verify(ctx, "a@x.com", sender.codes["a@x.com"])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRequestReplacesCode(t *testing.T) {
	ctx := context.Background()
	svc, sender, _ := newService()
	require.NoError(t, svc.Request(ctx, "a@x.com"))
	first := sender.codes["a@x.com"]
	require.NoError(t, svc.Request(ctx, "a@x.com"))
	second := sender.codes["a@x.com"]

	if first != second {
		ok, err := svc.Verify(ctx, "a@x.com", first)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := svc.Verify(ctx, "a@x.com", second)
	require.NoError(t, err)
	assert.True(t, ok)
}
