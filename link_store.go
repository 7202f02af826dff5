package goIdentity

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/internal"
)

const linkKeyPrefix = "ifl"

var (
	errLinkNotFound = errors.New("external link not found")
	errLinkConflict = errors.New("external link owned by another account")
	errLinkBackend  = errors.New("external link backend unavailable")
)

// linkStore maps (provider, provider key) pairs to account identifiers.
// The provider key is hashed before use so arbitrary provider material
// never appears in Redis key space.
type linkStore struct {
	redis *redis.Client
}

func newLinkStore(redisClient *redis.Client) *linkStore {
	return &linkStore{redis: redisClient}
}

func (s *linkStore) key(provider, providerKey string) string {
	digest := internal.HashTokenBytes([]byte(providerKey))
	return linkKeyPrefix + ":" + provider + ":" + base64.RawURLEncoding.EncodeToString(digest[:])
}

// Claim associates the pair with accountID. Claiming a pair already owned
// by the same account is a no-op; a pair owned by another account fails
// with errLinkConflict.
func (s *linkStore) Claim(ctx context.Context, provider, providerKey, accountID string) error {
	key := s.key(provider, providerKey)

	set, err := s.redis.SetNX(ctx, key, accountID, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errLinkBackend, err)
	}
	if set {
		return nil
	}

	owner, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Deleted between SetNX and Get; retry once.
			set, err = s.redis.SetNX(ctx, key, accountID, 0).Result()
			if err != nil {
				return fmt.Errorf("%w: %v", errLinkBackend, err)
			}
			if set {
				return nil
			}
			return errLinkConflict
		}
		return fmt.Errorf("%w: %v", errLinkBackend, err)
	}
	if owner == accountID {
		return nil
	}
	return errLinkConflict
}

func (s *linkStore) Lookup(ctx context.Context, provider, providerKey string) (string, error) {
	owner, err := s.redis.Get(ctx, s.key(provider, providerKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", errLinkNotFound
		}
		return "", fmt.Errorf("%w: %v", errLinkBackend, err)
	}
	return owner, nil
}

// Release removes the pair only while it is still owned by accountID.
func (s *linkStore) Release(ctx context.Context, provider, providerKey, accountID string) error {
	const maxRetries = 4
	key := s.key(provider, providerKey)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			owner, err := tx.Get(ctx, key).Result()
			if err != nil {
				return err
			}
			if owner != accountID {
				return errLinkConflict
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return errLinkNotFound
			}
			if errors.Is(err, errLinkConflict) {
				return err
			}
			return fmt.Errorf("%w: %v", errLinkBackend, err)
		}
		return nil
	}

	return errLinkNotFound
}
