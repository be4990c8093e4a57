package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ProfileKeyPrefix      = "profile:%d"
	ViewerKeyPrefix       = "viewer:account:%d"
	RevokedTokenKeyPrefix = "auth:revoked:%s"
	TrendingKeyPrefix     = "hashtags:trending:%d"
)

const (
	ProfileTTL = 5 * time.Minute
	ViewerTTL  = 24 * time.Hour
)

func ProfileKey(profileID uint) string {
	return fmt.Sprintf(ProfileKeyPrefix, profileID)
}

// ViewerKey holds the profile id of an account, the server-side form of the
// "current viewer id" a client keeps between requests.
func ViewerKey(accountID uint) string {
	return fmt.Sprintf(ViewerKeyPrefix, accountID)
}

func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(RevokedTokenKeyPrefix, jti)
}

func TrendingKey(limit int) string {
	return fmt.Sprintf(TrendingKeyPrefix, limit)
}

func InvalidateProfiles(ctx context.Context, ids ...uint) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, ProfileKey(id))
	}
	Invalidate(ctx, keys...)
}

func InvalidateViewer(ctx context.Context, accountID uint) {
	Invalidate(ctx, ViewerKey(accountID))
}

// Revoke marks a token id as revoked until ttl elapses. Without Redis
// revocation is unavailable and an error is returned.
func Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if client == nil {
		return ErrUnavailable
	}
	if ttl <= 0 {
		return nil
	}
	return client.Set(ctx, RevokedTokenKey(jti), "1", ttl).Err()
}

// IsRevoked reports whether a token id was revoked. Without Redis nothing
// is revoked.
func IsRevoked(ctx context.Context, jti string) (bool, error) {
	if client == nil {
		return false, nil
	}
	n, err := client.Exists(ctx, RevokedTokenKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
