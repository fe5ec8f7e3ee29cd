package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tunedrive/internal/model"
)

// MemoryGuard implements Guard using an in-memory map, for dev mode and tests.
type MemoryGuard struct {
	claims      map[string]*model.DownloadClaim
	mu          sync.Mutex
	ttlDuration time.Duration
}

// NewMemoryGuard creates a MemoryGuard with the default TTL.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		claims:      make(map[string]*model.DownloadClaim),
		ttlDuration: DefaultTTL,
	}
}

func (g *MemoryGuard) Claim(ctx context.Context, videoKey, sessionID string) (*model.DownloadClaim, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().Unix()
	if existing, ok := g.claims[videoKey]; ok {
		if existing.ExpiresAt > now && existing.SessionID != sessionID {
			return nil, ErrAlreadyClaimed
		}
	}

	claim := &model.DownloadClaim{
		VideoKey:  videoKey,
		SessionID: sessionID,
		ExpiresAt: now + int64(g.ttlDuration.Seconds()),
	}
	g.claims[videoKey] = claim
	return claim, nil
}

func (g *MemoryGuard) Release(ctx context.Context, videoKey, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.claims[videoKey]
	if !ok || existing.SessionID != sessionID {
		return fmt.Errorf("claim not found or not owned by session")
	}

	delete(g.claims, videoKey)
	return nil
}

func (g *MemoryGuard) Status(ctx context.Context, videoKey string) (*model.DownloadClaim, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.claims[videoKey]
	if !ok {
		return nil, nil
	}
	if existing.ExpiresAt < time.Now().Unix() {
		return nil, nil // Expired
	}
	return existing, nil
}
