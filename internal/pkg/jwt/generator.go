// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Generator mints signed access tokens with a fixed TTL. Every token carries
// a ulid JTI so individual sessions can be tracked and revoked.
type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	ttl      time.Duration
	now      func() time.Time
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock overrides the generator's time source. Test hook.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// TTL reports the fixed lifetime applied to every minted token.
func (g *Generator) TTL() time.Duration {
	return g.ttl
}

// Generate mints a signed token for the identity and returns it together
// with the token's JTI.
func (g *Generator) Generate(identityID int64, username, role string) (string, string, error) {
	if g.priv == nil {
		return "", "", fmt.Errorf("jwt generator has nil private key")
	}

	now := g.now()
	jti := ulid.Make().String()

	claims := &Claims{
		IdentityID: identityID,
		Username:   username,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   fmt.Sprintf("%d", identityID),
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	return signed, jti, err
}
