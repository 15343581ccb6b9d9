package promptsync

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultAdminSecret seeds stores that have never had a secret set. The
// stored value is always a salted bcrypt hash, never the plaintext.
const DefaultAdminSecret = "admin"

// HashAdminSecret derives a salted bcrypt hash for the admin secret.
func HashAdminSecret(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAdminSecret reports whether secret matches the stored hash.
func VerifyAdminSecret(hash, secret string) bool {
	if strings.TrimSpace(hash) == "" || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
