package auth

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for new password hashes.
const BcryptCost = 12

// maxBcryptInput is the number of bytes bcrypt looks at.
const maxBcryptInput = 72

// prepare pre-hashes passwords bcrypt would otherwise truncate.
func prepare(password string) []byte {
	b := []byte(password)
	if len(b) > maxBcryptInput {
		sum := sha256.Sum256(b)
		return sum[:]
	}
	return b
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword(prepare(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. Empty or malformed
// hashes never match.
func VerifyPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prepare(password)) == nil
}
