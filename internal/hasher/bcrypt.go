package hasher

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const BcryptDefaultCost = bcrypt.DefaultCost

var ErrCostTooHigh = errors.New("bcrypt cost too high")

// Bcrypt hashes passwords with a configurable cost. Costs below bcrypt.MinCost
// fall back to the default.
type Bcrypt struct {
	Cost int
	// dummy is compared against when no identity exists so that unknown
	// accounts take as long as wrong passwords.
	dummy []byte
}

func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost {
		cost = BcryptDefaultCost
	}
	if cost > bcrypt.MaxCost {
		return nil, ErrCostTooHigh
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("gastango-dummy-password"), cost)
	if err != nil {
		return nil, err
	}
	return &Bcrypt{Cost: cost, dummy: dummy}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Burn runs a comparison against a fixed hash and discards the result.
func (b *Bcrypt) Burn(password string) {
	_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(password))
}

func (b *Bcrypt) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < b.Cost
}

// Digest is the hex SHA-256 used for values that need exact lookup rather than
// slow hashing: session tokens and verification codes.
func Digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// DigestEqual compares two digests in constant time.
func DigestEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
