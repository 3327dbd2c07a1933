package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pasindubuddhika1999/findmyphone/internal/config"
)

// Mock mail kinds, derived from the subject line.
const (
	KindShopApproved = "shop_approved"
	KindShopRejected = "shop_rejected"
	KindShopRevoked  = "shop_revoked"
	KindUnknown      = "unknown"
)

const mockEmailTTL = 5 * time.Minute

// MockEmail is what RedisSender stores and the service API hands back to tests.
type MockEmail struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SentAt  string `json:"sent_at"`
	Kind    string `json:"kind"`
}

// RedisSender keeps the last email per recipient and kind in Redis so that
// end-to-end tests can read it back.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{client: client, cfg: cfg}
}

// MockEmailKey is the Redis key holding the last mock email of a kind for a recipient.
func MockEmailKey(to, kind string) string {
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(to), kind)
}

// KindForSubject classifies a moderation email by its subject.
func KindForSubject(subject string) string {
	s := strings.ToLower(subject)
	switch {
	case strings.Contains(s, "approved"):
		return KindShopApproved
	case strings.Contains(s, "rejected"):
		return KindShopRejected
	case strings.Contains(s, "revoked"):
		return KindShopRevoked
	}
	return KindUnknown
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}
	kind := KindForSubject(subject)

	data, err := json.Marshal(MockEmail{
		To:      strings.Join(to, ", "),
		From:    s.cfg.SmtpFromAddress,
		Subject: subject,
		Body:    string(rawMessage),
		SentAt:  time.Now().UTC().Format(time.RFC3339Nano),
		Kind:    kind,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(primaryTo, kind)
	if err := s.client.Set(ctx, key, data, mockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, Subject: %s)", key, mockEmailTTL, subject)
	return nil
}

// ReadMockEmail loads a mock email stored by RedisSender. It returns (nil, nil) when none exists.
func ReadMockEmail(ctx context.Context, client *redis.Client, to, kind string) (*MockEmail, error) {
	raw, err := client.Get(ctx, MockEmailKey(to, kind)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mock email: %w", err)
	}
	var m MockEmail
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode mock email: %w", err)
	}
	return &m, nil
}
