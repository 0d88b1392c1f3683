// internal/client/store.go
package client

import (
	"context"
	"encoding/json"
	"sync"

	"medboard-service/internal/domain/auth"
)

// Storage keys. The session blob and the remembered username are the only
// durable state; the loading flag is runtime-only and is deliberately never
// written to storage.
const (
	keySession  = "medboard.session"
	keyUsername = "medboard.username"
)

// sessionBlob is the durable shape of a session.
type sessionBlob struct {
	Token         string         `json:"token"`
	Identity      *auth.Identity `json:"identity"`
	Authenticated bool           `json:"authenticated"`
}

// Store holds the console's session state: the token, the cached identity,
// and the transient loading flag. All mutation goes through its mutex, so
// concurrent readers always observe a consistent login state.
type Store struct {
	api     API
	storage Storage

	mu       sync.Mutex
	token    string
	identity *auth.Identity
	loggedIn bool
	loading  bool

	inflight *checkCall
}

// checkCall is one in-flight CheckAuth shared by every concurrent caller.
type checkCall struct {
	done chan struct{}
	ok   bool
	err  error
}

func NewStore(api API, storage Storage) *Store {
	return &Store{api: api, storage: storage}
}

// Load hydrates the token and cached identity from storage. It is pure
// deserialization: the store stays unauthenticated until CheckAuth confirms
// the token against the server, so a restart never trusts stale state.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.storage.Get(keySession)
	if err != nil {
		return
	}

	var blob sessionBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil || blob.Token == "" {
		return
	}
	s.token = blob.Token
	if blob.Authenticated && blob.Identity != nil {
		s.identity = blob.Identity
	}
}

// Login authenticates and persists the resulting session. With remember set
// the username is kept for pre-filling the next login form.
func (s *Store) Login(ctx context.Context, username, password string, remember bool) (*auth.Identity, error) {
	resp, err := s.api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = resp.Token
	identity := resp.Identity
	s.identity = &identity
	s.loggedIn = true

	s.persistSessionLocked()
	if remember {
		s.storage.Set(keyUsername, username)
	} else {
		s.storage.Delete(keyUsername)
	}

	return s.identity, nil
}

// Logout tears the session down locally no matter what the server says.
// Calling it without a session is a no-op, not an error.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token != "" {
		// best effort: local state clears even if revocation fails
		s.api.Logout(ctx, token)
	}

	s.clear()
}

// UpdateIdentity merges a partial patch into the cached identity. Absent
// fields keep their current values. A logged-out store ignores the patch.
func (s *Store) UpdateIdentity(patch *auth.IdentityUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loggedIn || s.identity == nil {
		return
	}

	if patch.DisplayName != nil {
		s.identity.DisplayName = *patch.DisplayName
	}
	if patch.Email != nil {
		s.identity.Email = *patch.Email
	}
	if patch.Role != nil {
		s.identity.Role = *patch.Role
	}
	if patch.IsActive != nil {
		s.identity.IsActive = *patch.IsActive
	}

	s.persistSessionLocked()
}

// CheckAuth validates the persisted session against the server. Without a
// token it answers false immediately and never touches the network. Any
// failure — bad token, revoked session, transport error — ends in a full
// local logout. Concurrent callers share one round trip.
func (s *Store) CheckAuth(ctx context.Context) (bool, error) {
	s.mu.Lock()

	if s.token == "" {
		s.mu.Unlock()
		return false, nil
	}

	if s.inflight != nil {
		call := s.inflight
		s.mu.Unlock()
		<-call.done
		return call.ok, call.err
	}

	call := &checkCall{done: make(chan struct{})}
	s.inflight = call
	s.loading = true
	token := s.token
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, checkAuthTimeout)
	defer cancel()

	whoami, err := s.api.Whoami(ctx, token)

	s.mu.Lock()
	s.loading = false
	s.inflight = nil

	if err != nil {
		s.mu.Unlock()
		s.clear()
		call.ok, call.err = false, err
		close(call.done)
		return false, err
	}

	identity := whoami.Identity
	s.identity = &identity
	s.loggedIn = true
	s.persistSessionLocked()
	s.mu.Unlock()

	call.ok = true
	close(call.done)
	return true, nil
}

// clear drops all session state, memory and storage both.
func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.identity = nil
	s.loggedIn = false

	s.storage.Delete(keySession)
}

func (s *Store) persistSessionLocked() {
	blob := sessionBlob{
		Token:         s.token,
		Identity:      s.identity,
		Authenticated: s.loggedIn,
	}
	if raw, err := json.Marshal(blob); err == nil {
		s.storage.Set(keySession, string(raw))
	}
}

// ========== Accessors ==========

// Token returns the current session token, empty when logged out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Identity returns a copy of the cached identity, or nil when logged out.
func (s *Store) Identity() *auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

// IsLoggedIn reports whether a session is active.
func (s *Store) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// IsLoading reports whether a session check is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// RememberedUsername returns the last username saved with remember, if any.
func (s *Store) RememberedUsername() string {
	username, err := s.storage.Get(keyUsername)
	if err != nil {
		return ""
	}
	return username
}
