package goIdentity

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	enrollmentKeyPrefix      = "ife"
	enrollmentRecordVersion1 = 1
)

var (
	errEnrollmentNotFound = errors.New("pending enrollment not found")
	errEnrollmentExpired  = errors.New("pending enrollment expired")
	errEnrollmentStale    = errors.New("pending enrollment superseded")
	errEnrollmentBackend  = errors.New("enrollment backend unavailable")
)

// pendingEnrollment holds a generated but unconfirmed authenticator secret.
// Generation stamps detect a confirm racing a concurrent re-enable: the
// confirm succeeds only against the generation it was issued for.
type pendingEnrollment struct {
	Secret     []byte
	Generation uint32
	ExpiresAt  int64
}

type enrollmentStore struct {
	redis *redis.Client
}

func newEnrollmentStore(redisClient *redis.Client) *enrollmentStore {
	return &enrollmentStore{redis: redisClient}
}

func (s *enrollmentStore) key(accountID string) string {
	return enrollmentKeyPrefix + ":" + accountID
}

func (s *enrollmentStore) Save(
	ctx context.Context,
	accountID string,
	record *pendingEnrollment,
	ttl time.Duration,
) error {
	encoded, err := encodePendingEnrollment(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(accountID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errEnrollmentBackend, err)
	}
	return nil
}

func (s *enrollmentStore) Get(ctx context.Context, accountID string) (*pendingEnrollment, error) {
	data, err := s.redis.Get(ctx, s.key(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errEnrollmentNotFound
		}
		return nil, fmt.Errorf("%w: %v", errEnrollmentBackend, err)
	}

	record, err := decodePendingEnrollment(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(accountID)).Result()
		return nil, errEnrollmentExpired
	}
	return record, nil
}

// Consume removes the pending record only when it still carries the given
// generation. A record replaced by a newer EnableTwoFactor call fails with
// errEnrollmentStale and stays in place for the newer confirm.
func (s *enrollmentStore) Consume(ctx context.Context, accountID string, generation uint32) error {
	const maxRetries = 4
	key := s.key(accountID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePendingEnrollment(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errEnrollmentExpired
			}
			if record.Generation != generation {
				return errEnrollmentStale
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
				return errEnrollmentNotFound
			}
			if errors.Is(err, errEnrollmentExpired) || errors.Is(err, errEnrollmentStale) {
				return err
			}
			return fmt.Errorf("%w: %v", errEnrollmentBackend, err)
		}
		return nil
	}

	return errEnrollmentNotFound
}

func (s *enrollmentStore) Delete(ctx context.Context, accountID string) error {
	if err := s.redis.Del(ctx, s.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errEnrollmentBackend, err)
	}
	return nil
}

func encodePendingEnrollment(record *pendingEnrollment) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(enrollmentRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Generation); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Secret) > 65535 {
		return nil, errors.New("enrollment secret length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Secret))); err != nil {
		return nil, err
	}
	buf.Write(record.Secret)

	return buf.Bytes(), nil
}

func decodePendingEnrollment(data []byte) (*pendingEnrollment, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != enrollmentRecordVersion1 {
		return nil, errors.New("invalid enrollment record version")
	}

	record := &pendingEnrollment{}
	if err := binary.Read(reader, binary.BigEndian, &record.Generation); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var secretLen uint16
	if err := binary.Read(reader, binary.BigEndian, &secretLen); err != nil {
		return nil, err
	}
	secret := make([]byte, secretLen)
	if _, err := io.ReadFull(reader, secret); err != nil {
		return nil, err
	}
	record.Secret = secret

	return record, nil
}
