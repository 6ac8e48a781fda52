package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TranscriptCache keeps video transcripts in Redis so repeated quiz
// creations for the same video skip the download and transcription stages.
// Purely best effort: a Redis failure reads as a miss and writes are
// fire-and-forget.
type TranscriptCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTranscriptCache(client *redis.Client, ttl time.Duration) *TranscriptCache {
	return &TranscriptCache{client: client, ttl: ttl}
}

func (c *TranscriptCache) GetTranscript(ctx context.Context, videoID string) (string, bool) {
	transcript, err := c.client.Get(ctx, c.key(videoID)).Result()
	if err != nil || transcript == "" {
		return "", false
	}
	return transcript, true
}

func (c *TranscriptCache) SetTranscript(ctx context.Context, videoID, transcript string) {
	if transcript == "" {
		return
	}
	_ = c.client.Set(ctx, c.key(videoID), transcript, c.ttl).Err()
}

func (c *TranscriptCache) key(videoID string) string {
	return "transcript:" + videoID
}
