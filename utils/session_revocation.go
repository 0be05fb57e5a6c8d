package utils

import (
	"context"
	"sync"
	"time"
)

const revokedSessionPrefix = "session:revoked:"

// revokedEntry keeps expiration metadata for a revoked session.
type revokedEntry struct {
	expiresAt time.Time
}

var (
	revokedSessions   = map[string]revokedEntry{}
	revokedSessionsMu sync.RWMutex
)

// RevokeSession invalidates a session token by its ID until its natural
// expiry, so logout takes effect immediately instead of when the cookie
// expires. Backed by Redis when available, an in-process map otherwise.
func RevokeSession(sessionID string, expiresAt time.Time) {
	if sessionID == "" {
		return
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if rc.Set(ctx, revokedSessionPrefix+sessionID, "1", ttl).Err() == nil {
			return
		}
		// Redis down; remember locally so logout still sticks on this process.
	}
	revokedSessionsMu.Lock()
	revokedSessions[sessionID] = revokedEntry{expiresAt: expiresAt}
	revokedSessionsMu.Unlock()
}

// IsSessionRevoked reports whether a session was logged out before its
// natural expiry. Checks Redis first and falls back to the local map; on a
// Redis error it fails open so a cache hiccup cannot lock the whole team out.
func IsSessionRevoked(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := rc.Exists(ctx, revokedSessionPrefix+sessionID).Result(); err == nil && n > 0 {
			return true
		}
	}
	revokedSessionsMu.RLock()
	entry, ok := revokedSessions[sessionID]
	revokedSessionsMu.RUnlock()
	if !ok {
		return false
	}

	if time.Now().After(entry.expiresAt) {
		revokedSessionsMu.Lock()
		delete(revokedSessions, sessionID)
		revokedSessionsMu.Unlock()
		return false
	}

	return true
}
