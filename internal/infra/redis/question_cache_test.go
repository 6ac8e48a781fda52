package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizly-service/internal/domain"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{questions: sampleQuestions()}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)

	questions, err := cache.QuizQuestions(context.Background(), 42)
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if len(questions) != 2 || questions[0].QuestionTitle != "What is 2 + 2?" {
		t.Fatalf("unexpected questions: %+v", questions)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:42:questions") {
		t.Fatalf("expected redis key to be set")
	}

	// Second call should hit cache, loader not incremented.
	again, err := cache.QuizQuestions(context.Background(), 42)
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(again) != 2 || again[1].Answer != "Paris" {
		t.Fatalf("cached read lost data: %+v", again)
	}
}

func TestQuestionCacheInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{questions: sampleQuestions()}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)

	if _, err := cache.QuizQuestions(context.Background(), 7); err != nil {
		t.Fatalf("load questions: %v", err)
	}
	cache.Invalidate(context.Background(), 7)
	if mr.Exists("quiz:7:questions") {
		t.Fatalf("expected redis key to be removed")
	}

	if _, err := cache.QuizQuestions(context.Background(), 7); err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected loader called again after invalidate, got %d", loader.calls)
	}
}

func TestTranscriptCacheRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewTranscriptCache(newClient(mr), time.Minute)
	ctx := context.Background()

	if _, ok := cache.GetTranscript(ctx, "dQw4w9WgXcQ"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	cache.SetTranscript(ctx, "dQw4w9WgXcQ", "never gonna give you up")
	transcript, ok := cache.GetTranscript(ctx, "dQw4w9WgXcQ")
	if !ok || transcript != "never gonna give you up" {
		t.Fatalf("expected cached transcript, got %q ok=%v", transcript, ok)
	}

	// Empty transcripts are never cached.
	cache.SetTranscript(ctx, "blank", "")
	if _, ok := cache.GetTranscript(ctx, "blank"); ok {
		t.Fatalf("expected empty transcript to stay uncached")
	}
}

type countingLoader struct {
	questions []domain.Question
	calls     int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	l.calls++
	return l.questions, nil
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            1,
			QuizID:        42,
			QuestionTitle: "What is 2 + 2?",
			Options:       []string{"3", "4", "5", "22"},
			Answer:        "4",
		},
		{
			ID:            2,
			QuizID:        42,
			QuestionTitle: "Capital of France?",
			Options:       []string{"Paris", "Lyon", "Nice", "Lille"},
			Answer:        "Paris",
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
