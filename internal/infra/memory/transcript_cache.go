package memory

import (
	"context"
	"sync"
	"time"
)

// TranscriptCache is an in-memory implementation of app.TranscriptCache.
type TranscriptCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedTranscript
}

type cachedTranscript struct {
	text      string
	expiresAt time.Time
}

func NewTranscriptCache(ttl time.Duration) *TranscriptCache {
	return &TranscriptCache{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]cachedTranscript),
	}
}

func (c *TranscriptCache) GetTranscript(_ context.Context, videoID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[videoID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return "", false
	}
	return entry.text, true
}

func (c *TranscriptCache) SetTranscript(_ context.Context, videoID, transcript string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[videoID] = cachedTranscript{
		text:      transcript,
		expiresAt: c.clock().Add(c.ttl),
	}
}
