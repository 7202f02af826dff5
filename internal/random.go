package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

type ChallengeID [16]byte

const (
	tokenRawSize    = 48
	tokenSecretSize = 32
)

func NewChallengeID() (ChallengeID, error) {
	var cid ChallengeID
	_, err := rand.Read(cid[:])
	return cid, err
}

func (c ChallengeID) Bytes() []byte {
	return c[:]
}

func (c ChallengeID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(c[:])
}

func ParseChallengeID(challengeID string) (ChallengeID, error) {
	var cid ChallengeID

	raw, err := base64.RawURLEncoding.DecodeString(challengeID)
	if err != nil {
		return cid, err
	}
	if len(raw) != len(cid) {
		return cid, errors.New("invalid challenge id size")
	}

	copy(cid[:], raw)
	return cid, nil
}

func NewTokenSecret() ([tokenSecretSize]byte, error) {
	var secret [tokenSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashTokenSecret(secret [tokenSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

func HashTokenBytes(secret []byte) [32]byte {
	return sha256.Sum256(secret)
}

func EncodeToken(tokenID string, secret [tokenSecretSize]byte) (string, error) {
	tid, err := ParseChallengeID(tokenID)
	if err != nil {
		return "", err
	}

	var raw [tokenRawSize]byte
	copy(raw[:len(tid)], tid[:])
	copy(raw[len(tid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeToken(token string) (string, [tokenSecretSize]byte, error) {
	var secret [tokenSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != tokenRawSize {
		return "", secret, errors.New("invalid token size")
	}

	var tid ChallengeID
	copy(tid[:], raw[:len(tid)])
	copy(secret[:], raw[len(tid):])

	return tid.String(), secret, nil
}

func NewGeneration() (uint32, error) {
	var raw [4]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return 0, err
	}

	gen := binary.BigEndian.Uint32(raw[:])
	if gen == 0 {
		gen = 1
	}
	return gen, nil
}

func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}
