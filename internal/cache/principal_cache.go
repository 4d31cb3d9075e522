package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"yakunote/internal/model"
)

// PrincipalCache maps an access token to the principal it was issued for.
// Keys hold a hash of the token, never the token itself.
type PrincipalCache struct {
	client *redisv9.Client
	maxTTL time.Duration
}

func NewPrincipalCache(client *redisv9.Client, maxTTL time.Duration) *PrincipalCache {
	if maxTTL <= 0 {
		maxTTL = 5 * time.Minute
	}
	return &PrincipalCache{client: client, maxTTL: maxTTL}
}

func (c *PrincipalCache) Get(ctx context.Context, accessToken string) (*model.Principal, bool, error) {
	raw, err := c.client.Get(ctx, c.key(accessToken)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get principal failed: %w", err)
	}

	var principal model.Principal
	if err := json.Unmarshal(raw, &principal); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached principal failed: %w", err)
	}
	return &principal, true, nil
}

// Set stores the principal until expiresAt, capped at the configured TTL.
func (c *PrincipalCache) Set(ctx context.Context, accessToken string, principal *model.Principal, expiresAt time.Time) error {
	ttl := c.maxTTL
	if !expiresAt.IsZero() {
		remaining := time.Until(expiresAt)
		if remaining <= 0 {
			return nil
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	payload, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("marshal principal cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(accessToken), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set principal failed: %w", err)
	}
	return nil
}

func (c *PrincipalCache) Delete(ctx context.Context, accessToken string) error {
	if err := c.client.Del(ctx, c.key(accessToken)).Err(); err != nil {
		return fmt.Errorf("redis delete principal failed: %w", err)
	}
	return nil
}

func (c *PrincipalCache) key(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return "auth:principal:" + hex.EncodeToString(sum[:])
}
