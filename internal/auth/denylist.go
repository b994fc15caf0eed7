package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist tracks revoked token IDs in Redis until their natural expiry.
type Denylist struct {
	client *redis.Client
}

// NewDenylist constructs a Denylist.
func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{client: client}
}

func denylistKey(jti string) string {
	return "tripcast:revoked:" + jti
}

// Revoke marks a token ID as revoked until expiresAt.
func (d *Denylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already expired, nothing to store.
		return nil
	}
	return d.client.Set(ctx, denylistKey(jti), "1", ttl).Err()
}

// IsRevoked reports whether a token ID was revoked.
func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
