package app

import (
	"context"

	"quizly-service/internal/domain"
)

// Store abstracts the durable quiz/attempt persistence (Postgres, in-memory).
// Multi-row writes behind a single method are atomic: either everything the
// method describes becomes visible or nothing does.
type Store interface {
	// CreateQuizWithQuestions persists a quiz and its questions as one unit.
	CreateQuizWithQuestions(ctx context.Context, quiz domain.Quiz, questions []domain.QuestionDraft) (domain.Quiz, error)
	QuizByID(ctx context.Context, id int64) (domain.Quiz, error)
	QuizzesByOwner(ctx context.Context, ownerID string) ([]domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, id int64) error

	AttemptByID(ctx context.Context, id int64) (domain.QuizAttempt, error)
	// OpenAttempt returns the non-completed attempt for (owner, quiz), if any.
	OpenAttempt(ctx context.Context, ownerID string, quizID int64) (domain.QuizAttempt, bool, error)
	CreateAttempt(ctx context.Context, attempt domain.QuizAttempt) (domain.QuizAttempt, error)

	// SaveAnswer upserts the answer keyed by (attempt, question), recomputes
	// the attempt counters from the stored answer set, optionally moves the
	// progress pointer, and optionally completes the attempt, all atomically.
	SaveAnswer(ctx context.Context, params SaveAnswerParams) (domain.QuizAttempt, error)
	// FinishAttempt recomputes counters and marks the attempt completed.
	// Idempotent on already-completed attempts.
	FinishAttempt(ctx context.Context, attemptID int64) (domain.QuizAttempt, error)
	// AttemptSnapshot recomputes and persists the attempt counters, then
	// returns attempt, answers, and quiz questions from one consistent read.
	AttemptSnapshot(ctx context.Context, attemptID int64) (domain.AttemptSnapshot, error)
}

// SaveAnswerParams carries one atomic answer write. IsCorrect is derived by
// the caller from the question's stored answer before the write.
type SaveAnswerParams struct {
	AttemptID      int64
	QuestionID     int64
	SelectedOption string
	IsCorrect      bool
	CurrentIndex   *int
	Finish         bool
}

// QuizContentProvider serves immutable quiz questions for answer checking.
// Implementations may cache aggressively: questions never change after the
// quiz is created.
type QuizContentProvider interface {
	QuizQuestions(ctx context.Context, quizID int64) ([]domain.Question, error)
}

// AudioDownloader retrieves the best available audio for a canonical video
// URL into a caller-owned temporary file.
type AudioDownloader interface {
	Download(ctx context.Context, ref domain.VideoReference) (domain.AudioArtifact, error)
}

// Transcriber converts a local audio file into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, modelSize string) (string, error)
}

// ModelClient issues one text prompt to the generative model and returns the
// raw response text.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TranscriptCache stores transcripts keyed by video id so repeat creations
// of the same video skip download and transcription. Best effort: cache
// failures never fail the pipeline.
type TranscriptCache interface {
	GetTranscript(ctx context.Context, videoID string) (string, bool)
	SetTranscript(ctx context.Context, videoID, transcript string)
}
