package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const bannedUsersKey = "banned_users"

// IBanList mirrors the banned flag of user records so the auth middleware
// can reject banned principals without a database round trip.
type IBanList interface {
	Ban(ctx context.Context, userID string) error
	Unban(ctx context.Context, userID string) error
	IsBanned(ctx context.Context, userID string) (bool, error)
}

type redisBanList struct {
	rdb redis.UniversalClient
}

func NewRedisBanList(rdb redis.UniversalClient) IBanList {
	return &redisBanList{rdb: rdb}
}

func (b *redisBanList) Ban(ctx context.Context, userID string) error {
	if err := b.rdb.SAdd(ctx, bannedUsersKey, userID).Err(); err != nil {
		return fmt.Errorf("failed to record ban for %s: %w", userID, err)
	}
	return nil
}

func (b *redisBanList) Unban(ctx context.Context, userID string) error {
	if err := b.rdb.SRem(ctx, bannedUsersKey, userID).Err(); err != nil {
		return fmt.Errorf("failed to lift ban for %s: %w", userID, err)
	}
	return nil
}

func (b *redisBanList) IsBanned(ctx context.Context, userID string) (bool, error) {
	banned, err := b.rdb.SIsMember(ctx, bannedUsersKey, userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check ban for %s: %w", userID, err)
	}
	return banned, nil
}
