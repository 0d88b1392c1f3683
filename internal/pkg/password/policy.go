// internal/pkg/password/policy.go
package password

import (
	"strings"
	"time"
	"unicode"
)

const (
	minLength = 8
	maxLength = 128

	// DefaultMaxAgeDays is the rotation policy window.
	DefaultMaxAgeDays = 90
)

var weakWords = []string{"password", "admin", "qwerty"}

// StrengthResult accumulates every failing rule; Valid is true iff Errors is
// empty. The validator is advisory at signup/reset time and never gates login.
type StrengthResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateStrength checks a candidate secret against the policy. Every rule
// is evaluated independently so the result reports all violations, not just
// the first.
func ValidateStrength(candidate string) StrengthResult {
	var errs []string

	if len(candidate) < minLength || len(candidate) > maxLength {
		errs = append(errs, "length must be between 8 and 128 characters")
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if !hasLower {
		errs = append(errs, "must contain at least one lowercase letter")
	}
	if !hasUpper {
		errs = append(errs, "must contain at least one uppercase letter")
	}
	if !hasDigit {
		errs = append(errs, "must contain at least one digit")
	}
	if !hasSymbol {
		errs = append(errs, "must contain at least one symbol")
	}

	if containsWeakPattern(candidate) {
		errs = append(errs, "matches a known weak pattern")
	}

	return StrengthResult{Valid: len(errs) == 0, Errors: errs}
}

// ShouldRotate flags credentials older than the policy window. Informational
// only; rotation is not enforced automatically.
func ShouldRotate(lastChange time.Time, maxAgeDays int) bool {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	if lastChange.IsZero() {
		return true
	}
	return time.Since(lastChange) > time.Duration(maxAgeDays)*24*time.Hour
}

func containsWeakPattern(candidate string) bool {
	lowered := strings.ToLower(candidate)
	for _, w := range weakWords {
		if strings.Contains(lowered, w) {
			return true
		}
	}
	if hasAscendingDigitRun(candidate, 4) {
		return true
	}
	return hasRepeatedRun(candidate, 4)
}

// hasAscendingDigitRun detects "123456"-style sequences of at least n digits.
func hasAscendingDigitRun(s string, n int) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] >= '1' && s[i] <= '9' && s[i] == s[i-1]+1 {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func hasRepeatedRun(s string, n int) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
