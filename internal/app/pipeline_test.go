package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"quizly-service/internal/app"
	"quizly-service/internal/domain"
	"quizly-service/internal/infra/memory"
)

type fakeDownloader struct {
	t     *testing.T
	err   error
	calls int
	path  string
}

func (d *fakeDownloader) Download(_ context.Context, ref domain.VideoReference) (domain.AudioArtifact, error) {
	d.calls++
	if d.err != nil {
		return domain.AudioArtifact{}, d.err
	}
	dir := d.t.TempDir()
	path := filepath.Join(dir, ref.VideoID+".m4a")
	if err := os.WriteFile(path, []byte("audio-bytes"), 0o644); err != nil {
		d.t.Fatalf("write fake audio: %v", err)
	}
	d.path = path
	return domain.AudioArtifact{Path: path, VideoID: ref.VideoID, VideoURL: ref.CanonicalURL}, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type staticModel struct{ response string }

func (s staticModel) Complete(context.Context, string) (string, error) { return s.response, nil }

func quizResponse(t *testing.T) string {
	t.Helper()
	resp := `{"title":"T","description":"D","questions":[`
	item := `{"question_title":"Q","question_options":["a","b","c","d"],"answer":"a"}`
	for i := 0; i < 10; i++ {
		if i > 0 {
			resp += ","
		}
		resp += item
	}
	return resp + `]}`
}

func newPipelineFixture(t *testing.T, downloader *fakeDownloader, transcriber *fakeTranscriber, cache app.TranscriptCache) (*app.CreationService, *memory.Store) {
	t.Helper()
	log := zap.NewNop().Sugar()
	store := memory.NewStore()
	generator := app.NewGenerator(staticModel{response: quizResponse(t)}, log)
	service := app.NewCreationService(store, downloader, transcriber, generator, cache, "base", log)
	return service, store
}

const testVideoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestCreateQuizEndToEnd(t *testing.T) {
	downloader := &fakeDownloader{t: t}
	transcriber := &fakeTranscriber{text: "a transcript about things"}
	service, store := newPipelineFixture(t, downloader, transcriber, nil)

	var stages []string
	quiz, err := service.CreateQuiz(context.Background(), "u1", "https://youtu.be/dQw4w9WgXcQ", func(stage string) {
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if quiz.VideoURL != testVideoURL {
		t.Fatalf("expected canonical video url, got %q", quiz.VideoURL)
	}
	if len(quiz.Questions) != 10 {
		t.Fatalf("expected 10 persisted questions, got %d", len(quiz.Questions))
	}

	stored, err := store.QuizByID(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("load stored quiz: %v", err)
	}
	if len(stored.Questions) != 10 {
		t.Fatalf("expected 10 stored questions, got %d", len(stored.Questions))
	}

	want := []string{
		app.StageResolving, app.StageDownloading, app.StageTranscribing,
		app.StageGenerating, app.StageSaving, app.StageDone,
	}
	if len(stages) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("expected stages %v, got %v", want, stages)
		}
	}

	if _, err := os.Stat(downloader.path); !os.IsNotExist(err) {
		t.Fatalf("expected audio artifact to be removed, stat err=%v", err)
	}
}

func TestCreateQuizRejectsBadReferenceBeforeDownload(t *testing.T) {
	downloader := &fakeDownloader{t: t}
	service, _ := newPipelineFixture(t, downloader, &fakeTranscriber{text: "x"}, nil)

	_, err := service.CreateQuiz(context.Background(), "u1", "https://example.com/nope", nil)
	if !errors.Is(err, domain.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if downloader.calls != 0 {
		t.Fatalf("pipeline must not start on an invalid reference")
	}
}

func TestCreateQuizCleansUpArtifactOnTranscriptionFailure(t *testing.T) {
	downloader := &fakeDownloader{t: t}
	transcriber := &fakeTranscriber{err: domain.ErrAudioUnreadable}
	service, _ := newPipelineFixture(t, downloader, transcriber, nil)

	_, err := service.CreateQuiz(context.Background(), "u1", testVideoURL, nil)
	if !errors.Is(err, domain.ErrAudioUnreadable) {
		t.Fatalf("expected ErrAudioUnreadable, got %v", err)
	}
	if downloader.path == "" {
		t.Fatalf("expected a downloaded artifact")
	}
	if _, err := os.Stat(downloader.path); !os.IsNotExist(err) {
		t.Fatalf("expected artifact removed on failure path, stat err=%v", err)
	}
}

func TestCreateQuizPropagatesDownloadFailure(t *testing.T) {
	downloader := &fakeDownloader{t: t, err: domain.ErrDownloadFailed}
	service, _ := newPipelineFixture(t, downloader, &fakeTranscriber{text: "x"}, nil)

	_, err := service.CreateQuiz(context.Background(), "u1", testVideoURL, nil)
	if !errors.Is(err, domain.ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestCreateQuizWrapsInternalFaults(t *testing.T) {
	downloader := &fakeDownloader{t: t}
	transcriber := &fakeTranscriber{err: errors.New("cuda device disappeared")}
	service, _ := newPipelineFixture(t, downloader, transcriber, nil)

	_, err := service.CreateQuiz(context.Background(), "u1", testVideoURL, nil)
	if !errors.Is(err, domain.ErrCreationFailed) {
		t.Fatalf("expected ErrCreationFailed, got %v", err)
	}
	if errors.Is(err, domain.ErrAudioUnreadable) {
		t.Fatalf("internal fault must not masquerade as a validation error")
	}
}

func TestCreateQuizUsesTranscriptCache(t *testing.T) {
	cache := memory.NewTranscriptCache(time.Minute)
	downloader := &fakeDownloader{t: t}
	transcriber := &fakeTranscriber{text: "fresh transcript"}
	service, _ := newPipelineFixture(t, downloader, transcriber, cache)

	if _, err := service.CreateQuiz(context.Background(), "u1", testVideoURL, nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if downloader.calls != 1 || transcriber.calls != 1 {
		t.Fatalf("expected one download/transcription, got %d/%d", downloader.calls, transcriber.calls)
	}

	if _, err := service.CreateQuiz(context.Background(), "u1", testVideoURL, nil); err != nil {
		t.Fatalf("second create: %v", err)
	}
	if downloader.calls != 1 || transcriber.calls != 1 {
		t.Fatalf("cache hit must skip download and transcription, got %d/%d", downloader.calls, transcriber.calls)
	}
}
