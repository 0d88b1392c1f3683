package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "medboard-service/internal/domain/auth"
	xerrors "medboard-service/internal/pkg/errors"
	"medboard-service/internal/pkg/jwt"
	"medboard-service/internal/pkg/password"
	"medboard-service/internal/pkg/session"
	authService "medboard-service/internal/service/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubStore serves a single seeded account; everything else is not found.
type stubStore struct {
	identity domain.Identity
	hash     string
}

func (s *stubStore) FindIdentityByUsername(_ context.Context, username string) (*domain.Identity, error) {
	if username == s.identity.Username {
		cp := s.identity
		return &cp, nil
	}
	return nil, xerrors.ErrNotFound
}

func (s *stubStore) FindIdentityByID(_ context.Context, id int64) (*domain.Identity, error) {
	if id == s.identity.ID {
		cp := s.identity
		return &cp, nil
	}
	return nil, xerrors.ErrNotFound
}

func (s *stubStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	return username == s.identity.Username, nil
}

func (s *stubStore) CreateAccount(_ context.Context, identity *domain.Identity, _ string) error {
	identity.ID = 99
	return nil
}

func (s *stubStore) UpdateIdentity(_ context.Context, _ int64, _ *domain.IdentityUpdate) error {
	return nil
}

func (s *stubStore) GetCredential(_ context.Context, id int64) (*domain.Credential, error) {
	if id != s.identity.ID {
		return nil, xerrors.ErrNotFound
	}
	return &domain.Credential{IdentityID: id, PasswordHash: s.hash}, nil
}

func (s *stubStore) UpdatePassword(_ context.Context, _ int64, hash string) error {
	s.hash = hash
	return nil
}

func (s *stubStore) UpdateLastLogin(_ context.Context, _ int64) error              { return nil }
func (s *stubStore) IncrementFailedLoginAttempts(_ context.Context, _ int64) error { return nil }

func (s *stubStore) GetLoginAudit(_ context.Context, id int64) (*domain.LoginAudit, error) {
	return &domain.LoginAudit{IdentityID: id}, nil
}

func (s *stubStore) ListAccounts(_ context.Context) ([]*domain.Identity, error) {
	cp := s.identity
	return []*domain.Identity{&cp}, nil
}

func loginRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()

	hash, err := password.HashWithCost("Tr0ub4dor&3x", 4)
	if err != nil {
		t.Fatalf("HashWithCost: %v", err)
	}
	store := &stubStore{
		identity: domain.Identity{
			ID: 1, Username: "drweber", DisplayName: "Dr. Weber",
			Email: "weber@medboard.local", Role: "medical_admin", IsActive: true,
		},
		hash: hash,
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	manager := &jwt.Manager{
		Generator: jwt.NewGenerator(key, "medboard", "medboard-admin", "", time.Hour),
		Verifier:  jwt.NewVerifier(&key.PublicKey, "medboard", "medboard-admin"),
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := authService.NewAuthService(
		store, manager,
		session.NewManager(client, zap.NewNop()),
		session.NewRateLimiter(client),
		nil, client, zap.NewNop(),
	)

	h := NewAuthHandler(svc, zap.NewNop())
	r := gin.New()
	r.POST("/api/v1/auth/login", h.Login)
	return r, mr
}

func postLogin(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginEndpoint(t *testing.T) {
	r, _ := loginRouter(t)

	t.Run("success", func(t *testing.T) {
		w := postLogin(r, `{"username":"drweber","password":"Tr0ub4dor&3x"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}

		var env struct {
			Success bool                 `json:"success"`
			Data    domain.LoginResponse `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !env.Success || env.Data.Token == "" || env.Data.TokenType != "Bearer" {
			t.Errorf("envelope = %+v", env)
		}
		if env.Data.Identity.Username != "drweber" {
			t.Errorf("identity = %+v", env.Data.Identity)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		if w := postLogin(r, `{"username":"drweber"}`); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		w := postLogin(r, `{"username":"drweber","password":"nope"}`)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}

		var env struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Success || env.Error == "" {
			t.Errorf("envelope = %+v", env)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		if w := postLogin(r, `{"username":"ghost","password":"nope"}`); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestInternalErrorsAreMasked(t *testing.T) {
	r, mr := loginRouter(t)

	// kill the rate-limiter backend so login hits an infrastructure failure
	mr.Close()

	w := postLogin(r, `{"username":"drweber","password":"Tr0ub4dor&3x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500; body = %s", w.Code, w.Body.String())
	}

	var env struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success {
		t.Error("envelope reports success on an internal failure")
	}
	if env.Error != errGenericRetry.Error() {
		t.Errorf("error body = %q, want the generic retry message", env.Error)
	}
	for _, leak := range []string{"rate limiter", "redis", "connection"} {
		if strings.Contains(strings.ToLower(env.Error), leak) {
			t.Errorf("internal detail %q leaked into the response", leak)
		}
	}
}
