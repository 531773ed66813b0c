package rng

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

type ChallengeID [16]byte

const (
	// SecretSize is the length of the random half of a challenge token.
	SecretSize = 32

	// SecretHashSize is the length of the stored SHA-256 secret digest.
	SecretHashSize = 32

	tokenRawSize = 16 + SecretSize
)

func NewChallengeID(src Source) (ChallengeID, error) {
	var id ChallengeID
	err := src.Read(id[:])
	return id, err
}

func (id ChallengeID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(id[:])
}

func ParseChallengeID(s string) (ChallengeID, error) {
	var id ChallengeID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid challenge id size")
	}

	copy(id[:], raw)
	return id, nil
}

func NewChallengeSecret(src Source) ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	err := src.Read(secret[:])
	return secret, err
}

// HashChallengeSecret is what gets stored; the raw secret only ever
// travels inside the issued token.
func HashChallengeSecret(secret [SecretSize]byte) [SecretHashSize]byte {
	return sha256.Sum256(secret[:])
}

func EncodeChallengeToken(id ChallengeID, secret [SecretSize]byte) string {
	var raw [tokenRawSize]byte
	copy(raw[:len(id)], id[:])
	copy(raw[len(id):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func DecodeChallengeToken(token string) (ChallengeID, [SecretSize]byte, error) {
	var (
		id     ChallengeID
		secret [SecretSize]byte
	)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return id, secret, err
	}
	if len(raw) != tokenRawSize {
		return id, secret, errors.New("invalid challenge token size")
	}

	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])

	return id, secret, nil
}
