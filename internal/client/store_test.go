package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"medboard-service/internal/domain/auth"
	xerrors "medboard-service/internal/pkg/errors"
)

// fakeAPI counts calls and serves canned responses.
type fakeAPI struct {
	mu        sync.Mutex
	loginErr  error
	whoamiErr error
	logoutErr error
	identity  auth.Identity

	loginCalls  int32
	whoamiCalls int32
	logoutCalls int32

	// when set, Whoami blocks until released
	whoamiGate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		identity: auth.Identity{
			ID: 42, Username: "drweber", DisplayName: "Dr. Weber",
			Email: "weber@medboard.local", Role: "medical_admin", IsActive: true,
		},
	}
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (*auth.LoginResponse, error) {
	atomic.AddInt32(&f.loginCalls, 1)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &auth.LoginResponse{
		Token:     "token-for-" + username,
		TokenType: "Bearer",
		ExpiresIn: 3600,
		ExpiresAt: time.Now().Add(time.Hour),
		Identity:  f.identity,
	}, nil
}

func (f *fakeAPI) Whoami(ctx context.Context, _ string) (*auth.WhoamiResponse, error) {
	atomic.AddInt32(&f.whoamiCalls, 1)
	if f.whoamiGate != nil {
		select {
		case <-f.whoamiGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.whoamiErr != nil {
		return nil, f.whoamiErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &auth.WhoamiResponse{Identity: f.identity}, nil
}

func (f *fakeAPI) Logout(_ context.Context, _ string) error {
	atomic.AddInt32(&f.logoutCalls, 1)
	return f.logoutErr
}

func newTestStore(t *testing.T) (*Store, *fakeAPI, *MemoryStorage) {
	t.Helper()
	api := newFakeAPI()
	storage := NewMemoryStorage()
	return NewStore(api, storage), api, storage
}

// ========== CheckAuth ==========

func TestCheckAuthWithoutTokenSkipsNetwork(t *testing.T) {
	store, api, _ := newTestStore(t)

	ok, err := store.CheckAuth(context.Background())
	if err != nil || ok {
		t.Fatalf("CheckAuth = %v, %v; want false, nil", ok, err)
	}
	if n := atomic.LoadInt32(&api.whoamiCalls); n != 0 {
		t.Errorf("whoami calls = %d, want 0 (no token means no network)", n)
	}
}

func TestCheckAuthSuccessRefreshesIdentity(t *testing.T) {
	store, api, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Login(ctx, "drweber", "pw", false); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// the server-side display name changed since login
	api.mu.Lock()
	api.identity.DisplayName = "Dr. A. Weber"
	api.mu.Unlock()

	ok, err := store.CheckAuth(ctx)
	if err != nil || !ok {
		t.Fatalf("CheckAuth = %v, %v; want true, nil", ok, err)
	}
	if got := store.Identity().DisplayName; got != "Dr. A. Weber" {
		t.Errorf("identity not refreshed: DisplayName = %q", got)
	}
}

func TestCheckAuthFailureClearsEverything(t *testing.T) {
	store, api, storage := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Login(ctx, "drweber", "pw", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	api.whoamiErr = fmt.Errorf("%w: token expired", xerrors.ErrUnauthorized)

	ok, err := store.CheckAuth(ctx)
	if ok || err == nil {
		t.Fatalf("CheckAuth = %v, %v; want false with error", ok, err)
	}

	if store.IsLoggedIn() || store.Token() != "" || store.Identity() != nil {
		t.Error("in-memory session must be fully cleared on failure")
	}
	if _, err := storage.Get(keySession); !errors.Is(err, ErrKeyNotFound) {
		t.Error("persisted session must be cleared on failure")
	}
}

func TestCheckAuthDeduplicatesConcurrentCalls(t *testing.T) {
	store, api, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Login(ctx, "drweber", "pw", false); err != nil {
		t.Fatalf("Login: %v", err)
	}

	api.whoamiGate = make(chan struct{})

	const callers = 8
	results := make(chan bool, callers)
	var started sync.WaitGroup
	started.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			started.Done()
			ok, _ := store.CheckAuth(ctx)
			results <- ok
		}()
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond) // let every goroutine reach the store
	if !store.IsLoading() {
		t.Error("loading flag should be set while the check is in flight")
	}
	close(api.whoamiGate)

	for i := 0; i < callers; i++ {
		if ok := <-results; !ok {
			t.Fatal("concurrent CheckAuth returned false")
		}
	}

	if n := atomic.LoadInt32(&api.whoamiCalls); n != 1 {
		t.Errorf("whoami calls = %d, want 1 (deduplicated)", n)
	}
	if store.IsLoading() {
		t.Error("loading flag must drop when the check completes")
	}
}

// ========== Login / Logout ==========

func TestLoginPersistsSession(t *testing.T) {
	store, _, storage := newTestStore(t)

	identity, err := store.Login(context.Background(), "drweber", "pw", true)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if identity.Username != "drweber" || !store.IsLoggedIn() {
		t.Fatalf("unexpected state after login: %+v", identity)
	}

	raw, err := storage.Get(keySession)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	var blob sessionBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		t.Fatalf("session blob malformed: %v", err)
	}
	if blob.Token == "" || !blob.Authenticated {
		t.Errorf("session blob = %+v, want token and authenticated flag", blob)
	}
	if store.RememberedUsername() != "drweber" {
		t.Errorf("remembered username = %q", store.RememberedUsername())
	}

	// rehydration is two-phase: Load restores the token and cached identity
	// but the session counts as authenticated only after CheckAuth confirms
	second := NewStore(newFakeAPI(), storage)
	second.Load()
	if second.IsLoggedIn() {
		t.Fatal("Load alone must not authenticate the session")
	}
	if second.Token() == "" || second.Identity() == nil {
		t.Fatal("Load should restore the persisted token and cached identity")
	}

	ok, err := second.CheckAuth(context.Background())
	if err != nil || !ok {
		t.Fatalf("CheckAuth after Load = %v, %v; want true, nil", ok, err)
	}
	if !second.IsLoggedIn() || second.Identity().Role != "medical_admin" {
		t.Errorf("confirmed session state: loggedIn=%v identity=%+v", second.IsLoggedIn(), second.Identity())
	}
}

func TestLoginWithoutRememberForgetsUsername(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Login(ctx, "drweber", "pw", true); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := store.Login(ctx, "drweber", "pw", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := store.RememberedUsername(); got != "" {
		t.Errorf("remembered username = %q, want empty", got)
	}
}

func TestLogoutIsIdempotentAndLocalFirst(t *testing.T) {
	store, api, storage := newTestStore(t)
	ctx := context.Background()

	// logout with no session: no error, no network
	store.Logout(ctx)
	if n := atomic.LoadInt32(&api.logoutCalls); n != 0 {
		t.Errorf("logout calls = %d, want 0", n)
	}

	if _, err := store.Login(ctx, "drweber", "pw", false); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// server-side revocation failing must not keep the session alive
	api.logoutErr = errors.New("server unreachable")
	store.Logout(ctx)

	if store.IsLoggedIn() || store.Token() != "" {
		t.Error("local session must clear even when revocation fails")
	}
	if _, err := storage.Get(keySession); !errors.Is(err, ErrKeyNotFound) {
		t.Error("persisted session must clear even when revocation fails")
	}

	// second logout is a no-op
	store.Logout(ctx)

	// a cleared store answers CheckAuth locally
	ok, err := store.CheckAuth(ctx)
	if ok || err != nil {
		t.Fatalf("CheckAuth after logout = %v, %v; want false, nil", ok, err)
	}
	if n := atomic.LoadInt32(&api.whoamiCalls); n != 0 {
		t.Errorf("whoami calls after logout = %d, want 0", n)
	}
}

// ========== UpdateIdentity ==========

func TestUpdateIdentityPartialMerge(t *testing.T) {
	store, _, storage := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Login(ctx, "drweber", "pw", false); err != nil {
		t.Fatalf("Login: %v", err)
	}

	name := "Dr. Anna Weber"
	store.UpdateIdentity(&auth.IdentityUpdate{DisplayName: &name})

	got := store.Identity()
	if got.DisplayName != name {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, name)
	}
	// untouched fields survive the merge
	if got.Email != "weber@medboard.local" || got.Role != "medical_admin" {
		t.Errorf("merge clobbered untouched fields: %+v", got)
	}

	// the merge is persisted
	second := NewStore(newFakeAPI(), storage)
	second.Load()
	if second.Identity().DisplayName != name {
		t.Error("merged identity not persisted")
	}
}

func TestUpdateIdentityIgnoredWhenLoggedOut(t *testing.T) {
	store, _, _ := newTestStore(t)

	name := "nobody"
	store.UpdateIdentity(&auth.IdentityUpdate{DisplayName: &name})
	if store.Identity() != nil {
		t.Error("logged-out store must ignore identity patches")
	}
}

// ========== Persistence Hygiene ==========

func TestLoadingFlagNeverPersisted(t *testing.T) {
	store, _, storage := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Login(ctx, "drweber", "pw", true); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := store.CheckAuth(ctx); err != nil {
		t.Fatalf("CheckAuth: %v", err)
	}

	storage.mu.Lock()
	defer storage.mu.Unlock()
	for key := range storage.values {
		switch key {
		case keySession, keyUsername:
		default:
			t.Errorf("unexpected persisted key %q", key)
		}
	}
}
