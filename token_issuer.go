package goIdentity

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/internal"
)

const (
	tokenKeyPrefix      = "ift"
	tokenRecordVersion1 = 1
)

var (
	errTokenNotFound = errors.New("verification token not found")
	errTokenExpired  = errors.New("verification token expired")
	errTokenMismatch = errors.New("verification token mismatch")
	errTokenAttempts = errors.New("verification token attempts exceeded")
	errTokenBackend  = errors.New("verification token backend unavailable")
)

type tokenRecord struct {
	SecretHash [32]byte
	ExpiresAt  int64
	Attempts   uint16
	Strategy   uint8
}

// redisTokenIssuer is the default TokenIssuer: one outstanding token per
// (purpose, account), consumed at most once. Re-issuing overwrites the
// predecessor, which invalidates it.
type redisTokenIssuer struct {
	redis *redis.Client
	cfg   TokenConfig
}

func newRedisTokenIssuer(redisClient *redis.Client, cfg TokenConfig) *redisTokenIssuer {
	return &redisTokenIssuer{redis: redisClient, cfg: cfg}
}

func (s *redisTokenIssuer) key(purpose TokenPurpose, accountID string) string {
	return tokenKeyPrefix + ":" + string(purpose) + ":" + accountID
}

// Issue describes the issue operation and its observable behavior.
//
// Issue may return an error when input validation, dependency calls, or security checks fail.
// Issue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *redisTokenIssuer) Issue(ctx context.Context, purpose TokenPurpose, accountID string) (string, error) {
	token, err := s.generate()
	if err != nil {
		return "", err
	}

	record := &tokenRecord{
		SecretHash: internal.HashTokenBytes([]byte(token)),
		ExpiresAt:  time.Now().Add(s.cfg.TTL).Unix(),
		Strategy:   uint8(s.cfg.Strategy),
	}

	encoded, err := encodeTokenRecord(record)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, s.key(purpose, accountID), encoded, s.cfg.TTL).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", errTokenBackend, err)
	}
	return token, nil
}

func (s *redisTokenIssuer) generate() (string, error) {
	switch s.cfg.Strategy {
	case TokenOTP:
		return internal.NewOTP(s.cfg.OTPDigits)
	case TokenUUID:
		return uuid.New().String(), nil
	default:
		tokenID, err := internal.NewChallengeID()
		if err != nil {
			return "", err
		}
		secret, err := internal.NewTokenSecret()
		if err != nil {
			return "", err
		}
		return internal.EncodeToken(tokenID.String(), secret)
	}
}

// Consume describes the consume operation and its observable behavior.
//
// Consume may return an error when input validation, dependency calls, or security checks fail.
// Consume does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *redisTokenIssuer) Consume(ctx context.Context, purpose TokenPurpose, accountID, token string) error {
	const maxRetries = 4
	key := s.key(purpose, accountID)
	presented := internal.HashTokenBytes([]byte(token))

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeTokenRecord(data)
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
				return errTokenExpired
			}

			if subtle.ConstantTimeCompare(presented[:], record.SecretHash[:]) == 1 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			record.Attempts++
			if int(record.Attempts) >= s.cfg.MaxAttempts {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errTokenAttempts
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errTokenExpired
			}

			updated, err := encodeTokenRecord(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			if err != nil {
				return err
			}
			return errTokenMismatch
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return errTokenNotFound
			}
			if errors.Is(err, errTokenExpired) ||
				errors.Is(err, errTokenMismatch) ||
				errors.Is(err, errTokenAttempts) {
				return err
			}
			return fmt.Errorf("%w: %v", errTokenBackend, err)
		}
		return nil
	}

	return errTokenNotFound
}

func encodeTokenRecord(record *tokenRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(tokenRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.WriteByte(record.Strategy)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeTokenRecord(data []byte) (*tokenRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenRecordVersion1 {
		return nil, errors.New("invalid token record version")
	}

	record := &tokenRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	strategy, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	record.Strategy = strategy

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
