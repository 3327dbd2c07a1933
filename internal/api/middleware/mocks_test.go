package middleware

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pasindubuddhika1999/findmyphone/internal/captcha"
)

// MockTurnstileVerifier implements captcha.ITurnstileVerifier
type MockTurnstileVerifier struct {
	mock.Mock
}

func (m *MockTurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	args := m.Called(ctx, token, remoteIP)
	return args.Bool(0), args.Error(1)
}

func (m *MockTurnstileVerifier) GenerateHumanToken(client captcha.ClientFingerprint, ttl time.Duration) (string, error) {
	args := m.Called(client, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockTurnstileVerifier) ValidateHumanToken(tokenString string, client captcha.ClientFingerprint) bool {
	args := m.Called(tokenString, client)
	return args.Bool(0)
}

// memoryBanList implements cache.IBanList
type memoryBanList struct {
	banned map[string]bool
	err    error
}

func (b *memoryBanList) Ban(ctx context.Context, userID string) error {
	b.banned[userID] = true
	return nil
}

func (b *memoryBanList) Unban(ctx context.Context, userID string) error {
	delete(b.banned, userID)
	return nil
}

func (b *memoryBanList) IsBanned(ctx context.Context, userID string) (bool, error) {
	return b.banned[userID], b.err
}
