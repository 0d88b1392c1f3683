// internal/pkg/password/reset.go
package password

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResetTokenWindow bounds how long a reset token stays usable.
const ResetTokenWindow = 24 * time.Hour

// NewResetToken mints a one-time confirmation token of the form
// "<unix-timestamp>-<random-suffix>". It is deliberately weaker than a
// session token: validity is judged only by elapsed time, so it must never
// be accepted for authenticating API calls, only for confirming a one-time
// action such as a password reset link.
func NewResetToken() (string, error) {
	suffix := make([]byte, 16)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return fmt.Sprintf("%d-%s",
		time.Now().Unix(),
		base64.RawURLEncoding.EncodeToString(suffix),
	), nil
}

// ResetTokenValid reports whether the token's embedded timestamp falls
// within the 24-hour window ending at now.
func ResetTokenValid(token string, now time.Time) bool {
	ts, _, ok := strings.Cut(token, "-")
	if !ok {
		return false
	}
	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	issuedAt := time.Unix(issued, 0)
	if issuedAt.After(now) {
		return false
	}
	return now.Sub(issuedAt) <= ResetTokenWindow
}
