// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	xerrors "medboard-service/internal/pkg/errors"
)

// Verifier validates tokens statelessly against the public key. Callers can
// distinguish a structurally broken token, a forged signature, and an expired
// token through the returned sentinel errors.
type Verifier struct {
	pub      *rsa.PublicKey
	issuer   string
	audience string
	now      func() time.Time
}

func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		pub:      pub,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// WithClock overrides the verifier's time source. Test hook.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify validates a token and returns its claims. Failures map onto the
// shared sentinel errors: ErrMalformedToken for anything that does not parse
// as a token, ErrBadSignature when the signature does not check out, and
// ErrTokenExpired for a well-formed, well-signed token past its expiry.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if v.pub == nil {
		return nil, fmt.Errorf("jwt verifier has nil public key")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.pub, nil
	}, jwt.WithTimeFunc(v.now))

	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, xerrors.ErrMalformedToken
	}

	if claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", xerrors.ErrMalformedToken, claims.Issuer)
	}
	if !claims.VerifyAudience(v.audience, true) {
		return nil, fmt.Errorf("%w: audience mismatch", xerrors.ErrMalformedToken)
	}

	return claims, nil
}

// classifyParseError maps golang-jwt parse failures onto the shared taxonomy.
// Expiry is checked before signature on v5's joined errors so that a token
// failing both reports the more specific condition a caller can act on.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", xerrors.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", xerrors.ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", xerrors.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", xerrors.ErrMalformedToken, err)
	}
}
