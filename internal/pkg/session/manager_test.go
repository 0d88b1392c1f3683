package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func testManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewManager(client, zap.NewNop()), mr
}

func sessionFixture(jti string, identityID int64) *Data {
	now := time.Now()
	return &Data{
		JTI:            jti,
		IdentityID:     identityID,
		Username:       "drweber",
		Role:           "medical_admin",
		IPAddress:      "10.0.0.1",
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(2 * time.Hour),
	}
}

func TestSessionLifecycle(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	data := sessionFixture("jti-1", 42)
	if err := m.CreateSession(ctx, data); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := m.GetSession(ctx, 42, "jti-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Username != "drweber" || got.Role != "medical_admin" {
		t.Errorf("session = %+v, want drweber/medical_admin", got)
	}

	if err := m.InvalidateSession(ctx, 42, "jti-1"); err != nil {
		t.Fatalf("InvalidateSession: %v", err)
	}
	if _, err := m.GetSession(ctx, 42, "jti-1"); err == nil {
		t.Fatal("expected error after invalidation")
	}
}

func TestCreateSessionRejectsExpired(t *testing.T) {
	m, _ := testManager(t)

	data := sessionFixture("jti-old", 1)
	data.ExpiresAt = time.Now().Add(-time.Minute)
	if err := m.CreateSession(context.Background(), data); err == nil {
		t.Fatal("expected error for already-expired session")
	}
}

func TestSessionEntryExpiresWithToken(t *testing.T) {
	m, mr := testManager(t)
	ctx := context.Background()

	data := sessionFixture("jti-ttl", 7)
	data.ExpiresAt = time.Now().Add(time.Minute)
	if err := m.CreateSession(ctx, data); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := m.GetSession(ctx, 7, "jti-ttl"); err == nil {
		t.Fatal("expected session to expire with its token")
	}
}

func TestInvalidateAllUserSessions(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	for _, jti := range []string{"a", "b", "c"} {
		if err := m.CreateSession(ctx, sessionFixture(jti, 9)); err != nil {
			t.Fatalf("CreateSession(%s): %v", jti, err)
		}
	}
	// another identity's session must survive
	if err := m.CreateSession(ctx, sessionFixture("other", 10)); err != nil {
		t.Fatalf("CreateSession(other): %v", err)
	}

	if err := m.InvalidateAllUserSessions(ctx, 9); err != nil {
		t.Fatalf("InvalidateAllUserSessions: %v", err)
	}

	sessions, err := m.ActiveSessions(ctx, 9)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("identity 9 still has %d sessions", len(sessions))
	}

	if _, err := m.GetSession(ctx, 10, "other"); err != nil {
		t.Errorf("identity 10's session should survive: %v", err)
	}
}

func TestBlacklist(t *testing.T) {
	m, mr := testManager(t)
	ctx := context.Background()

	listed, err := m.IsTokenBlacklisted(ctx, "jti-x")
	if err != nil || listed {
		t.Fatalf("fresh JTI blacklisted = %v, err = %v", listed, err)
	}

	if err := m.BlacklistToken(ctx, "jti-x", time.Hour); err != nil {
		t.Fatalf("BlacklistToken: %v", err)
	}
	listed, err = m.IsTokenBlacklisted(ctx, "jti-x")
	if err != nil || !listed {
		t.Fatalf("blacklisted = %v, err = %v, want true", listed, err)
	}

	// the blacklist entry only needs to outlive the token
	mr.FastForward(2 * time.Hour)
	listed, err = m.IsTokenBlacklisted(ctx, "jti-x")
	if err != nil || listed {
		t.Fatalf("blacklist entry should lapse, got %v err %v", listed, err)
	}

	// a non-positive TTL means the token is already dead
	if err := m.BlacklistToken(ctx, "jti-y", -time.Minute); err != nil {
		t.Fatalf("BlacklistToken with negative ttl: %v", err)
	}
	listed, _ = m.IsTokenBlacklisted(ctx, "jti-y")
	if listed {
		t.Fatal("expired token should not be written to the blacklist")
	}
}

func TestLoginRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rl := NewRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, remaining, err := rl.CheckLoginAttempt(ctx, "10.0.0.1", "admin")
		if err != nil {
			t.Fatalf("CheckLoginAttempt #%d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if want := int64(4 - i); remaining != want {
			t.Errorf("attempt %d remaining = %d, want %d", i+1, remaining, want)
		}
	}

	ok, remaining, err := rl.CheckLoginAttempt(ctx, "10.0.0.1", "admin")
	if err != nil {
		t.Fatalf("CheckLoginAttempt: %v", err)
	}
	if ok || remaining != 0 {
		t.Errorf("6th attempt allowed = %v remaining = %d, want blocked/0", ok, remaining)
	}

	// different username shares nothing with the blocked bucket
	ok, _, err = rl.CheckLoginAttempt(ctx, "10.0.0.1", "other")
	if err != nil || !ok {
		t.Errorf("separate bucket blocked: ok=%v err=%v", ok, err)
	}

	if err := rl.ResetLoginAttempts(ctx, "10.0.0.1", "admin"); err != nil {
		t.Fatalf("ResetLoginAttempts: %v", err)
	}
	ok, _, err = rl.CheckLoginAttempt(ctx, "10.0.0.1", "admin")
	if err != nil || !ok {
		t.Errorf("attempt after reset blocked: ok=%v err=%v", ok, err)
	}

	// the window lapses on its own
	mr.FastForward(16 * time.Minute)
	got, err := rl.RemainingLoginAttempts(ctx, "10.0.0.1", "admin")
	if err != nil || got != 5 {
		t.Errorf("remaining after window = %d err %v, want 5", got, err)
	}
}
