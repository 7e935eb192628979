package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes new credentials with bcrypt. Accounts written before
// hashing was introduced keep a plaintext credential, which still verifies.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// bcrypt rejects inputs over 72 bytes.
const bcryptMaxInput = 72

// secret returns the bcrypt input for plain. Longer passwords are reduced to
// their hex SHA-256 digest so every byte still counts.
func secret(plain string) []byte {
	if len(plain) <= bcryptMaxInput {
		return []byte(plain)
	}
	sum := sha256.Sum256([]byte(plain))
	return []byte(hex.EncodeToString(sum[:]))
}

func (h *PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify returns nil when plain matches the stored credential.
func (h *PasswordHasher) Verify(plain, stored string) error {
	if !IsHashed(stored) {
		if subtle.ConstantTimeCompare([]byte(plain), []byte(stored)) == 1 {
			return nil
		}
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), secret(plain))
}

// IsHashed reports whether stored is a bcrypt hash.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}
