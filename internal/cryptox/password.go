package cryptox

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt work factor used in production.
const DefaultPasswordCost = 12

// PasswordHasher hashes and verifies account passwords with bcrypt.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, or DefaultPasswordCost when
// cost is outside bcrypt's accepted range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) HashPassword(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plaintext matches hash. A malformed hash is
// treated as a mismatch.
func (h *PasswordHasher) VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

var defaultHasher = NewPasswordHasher(DefaultPasswordCost)

func HashPassword(plaintext string) (string, error) {
	return defaultHasher.HashPassword(plaintext)
}

func VerifyPassword(plaintext, hash string) bool {
	return defaultHasher.VerifyPassword(plaintext, hash)
}
