package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// TokenStore persists the hosted backend refresh token so a restarted
// process can restore its session. It implements hostedauth.TokenStore.
type TokenStore struct {
	client redis.UniversalClient
	key    string
}

// NewTokenStore creates a token store under the given key.
func NewTokenStore(client redis.UniversalClient, key string) *TokenStore {
	if key == "" {
		key = "portal:backend:refresh_token"
	}
	return &TokenStore{client: client, key: key}
}

// Load returns the persisted refresh token, or "" when none exists.
func (s *TokenStore) Load(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return val, nil
}

// Save persists the refresh token without expiry; the backend decides when
// the token dies.
func (s *TokenStore) Save(ctx context.Context, refreshToken string) error {
	return s.client.Set(ctx, s.key, refreshToken, 0).Err()
}

// Clear removes the persisted token.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
