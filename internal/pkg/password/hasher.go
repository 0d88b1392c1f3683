// internal/pkg/password/hasher.go
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	xerrors "medboard-service/internal/pkg/errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost resists offline brute force at current hardware baselines.
const DefaultCost = 12

// bcrypt ignores input past 72 bytes, so anything longer is pre-hashed to keep
// every byte of the secret significant.
const bcryptInputLimit = 72

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"

// Hash derives a storable bcrypt hash from a plaintext secret. It never
// fails silently: any failure surfaces as ErrHashingFailure and callers must
// not fall back to storing plaintext.
func Hash(secret string) (string, error) {
	return HashWithCost(secret, DefaultCost)
}

// HashWithCost is Hash with an explicit work factor, mainly for tests that
// cannot afford the production cost.
func HashWithCost(secret string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(normalizeSecret(secret), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", xerrors.ErrHashingFailure, err)
	}
	return string(hashed), nil
}

// normalizeSecret feeds bcrypt the secret itself when it fits, or a
// base64-encoded SHA-256 digest when it would exceed the bcrypt input limit.
func normalizeSecret(secret string) []byte {
	if len(secret) <= bcryptInputLimit {
		return []byte(secret)
	}
	sum := sha256.Sum256([]byte(secret))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}

// Verify reports whether secret matches the stored hash. Comparison is
// constant-time with respect to the secret (delegated to bcrypt). A
// malformed stored hash yields false rather than an error so callers cannot
// distinguish "bad hash format" from "wrong secret".
func Verify(secret, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), normalizeSecret(secret)) == nil
}

// GenerateRandomSecret produces a system-generated secret of the given
// length, each character uniformly sampled from a fixed alphabet of
// lowercase, uppercase, digits and symbols.
func GenerateRandomSecret(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", length)
	}

	// rejection sampling: bytes at or above the largest multiple of the
	// alphabet size are discarded, otherwise the modulo skews low indices
	limit := 256 - 256%len(secretAlphabet)

	secret := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(secret) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("%w: %v", xerrors.ErrHashingFailure, err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			secret = append(secret, secretAlphabet[int(b)%len(secretAlphabet)])
			if len(secret) == length {
				break
			}
		}
	}
	return string(secret), nil
}
