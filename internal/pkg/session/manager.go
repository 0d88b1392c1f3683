// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Manager tracks issued tokens in Redis. Token verification itself is
// stateless; the cache only adds revocation (logout, forced logout) on top.
type Manager struct {
	client *redis.Client
	logger *zap.Logger
}

func NewManager(client *redis.Client, logger *zap.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

// CreateSession stores a new session keyed by identity and JTI. The entry
// expires with the token.
func (m *Manager) CreateSession(ctx context.Context, data *Data) error {
	key := m.sessionKey(data.IdentityID, data.JTI)

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(data.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := m.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}
	return nil
}

// GetSession retrieves a live session, or redis.Nil via the wrapped error
// when it does not exist.
func (m *Manager) GetSession(ctx context.Context, identityID int64, jti string) (*Data, error) {
	key := m.sessionKey(identityID, jti)

	raw, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &data, nil
}

// TouchSession refreshes the last-activity timestamp without extending the
// session's lifetime.
func (m *Manager) TouchSession(ctx context.Context, identityID int64, jti string) error {
	data, err := m.GetSession(ctx, identityID, jti)
	if err != nil {
		return nil // already gone, nothing to touch
	}

	data.LastActivityAt = time.Now()
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	ttl := time.Until(data.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return m.client.Set(ctx, m.sessionKey(identityID, jti), payload, ttl).Err()
}

// InvalidateSession removes a single session.
func (m *Manager) InvalidateSession(ctx context.Context, identityID int64, jti string) error {
	return m.client.Del(ctx, m.sessionKey(identityID, jti)).Err()
}

// InvalidateAllUserSessions removes every session the identity holds.
func (m *Manager) InvalidateAllUserSessions(ctx context.Context, identityID int64) error {
	pattern := fmt.Sprintf("session:%d:*", identityID)

	iter := m.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := m.client.Del(ctx, iter.Val()).Err(); err != nil {
			m.logger.Warn("failed to delete session key",
				zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	return iter.Err()
}

// ActiveSessions lists the live sessions an identity currently holds.
func (m *Manager) ActiveSessions(ctx context.Context, identityID int64) ([]*Data, error) {
	pattern := fmt.Sprintf("session:%d:*", identityID)

	var sessions []*Data
	iter := m.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		raw, err := m.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var data Data
		if err := json.Unmarshal(raw, &data); err != nil {
			continue
		}
		sessions = append(sessions, &data)
	}
	return sessions, iter.Err()
}

// BlacklistToken revokes a JTI for the given duration. A blacklisted token
// fails verification even though its signature and expiry still check out.
func (m *Manager) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // token already expired, nothing to revoke
	}
	return m.client.Set(ctx, m.blacklistKey(jti), "1", ttl).Err()
}

// IsTokenBlacklisted checks whether a JTI has been revoked.
func (m *Manager) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := m.client.Exists(ctx, m.blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

func (m *Manager) sessionKey(identityID int64, jti string) string {
	return fmt.Sprintf("session:%d:%s", identityID, jti)
}

func (m *Manager) blacklistKey(jti string) string {
	return fmt.Sprintf("blacklist:%s", jti)
}
