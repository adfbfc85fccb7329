// Package auth provides password hashing and token issuance.
package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Stored hashes carry an algorithm prefix so the scheme can be upgraded
// without invalidating existing credentials.
const bcryptPrefix = "bcrypt:"

// HashPassword hashes a plaintext password into a versioned hash string.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return bcryptPrefix + string(hash), nil
}

// CheckPassword reports whether plain matches the stored hash. Bare bcrypt
// hashes without a prefix are accepted for records written before hashes
// became versioned.
func CheckPassword(plain, stored string) bool {
	if plain == "" || stored == "" {
		return false
	}
	hash := strings.TrimPrefix(stored, bcryptPrefix)
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
