package app

import (
	"context"
	"os"

	"go.uber.org/zap"

	"quizly-service/internal/domain"
)

// Pipeline stage names reported to progress sinks.
const (
	StageResolving    = "resolving"
	StageDownloading  = "downloading"
	StageTranscribing = "transcribing"
	StageGenerating   = "generating"
	StageSaving       = "saving"
	StageDone         = "done"
)

// ProgressFunc receives stage names as the creation pipeline advances.
type ProgressFunc func(stage string)

// CreationService runs the end-to-end quiz creation pipeline:
// resolve -> download -> transcribe -> generate -> persist. Stages run
// strictly in sequence; a failure at any stage aborts without partial
// persistence.
type CreationService struct {
	store       Store
	downloader  AudioDownloader
	transcriber Transcriber
	generator   *Generator
	transcripts TranscriptCache
	log         *zap.SugaredLogger

	whisperModel string
}

func NewCreationService(
	store Store,
	downloader AudioDownloader,
	transcriber Transcriber,
	generator *Generator,
	transcripts TranscriptCache,
	whisperModel string,
	log *zap.SugaredLogger,
) *CreationService {
	if whisperModel == "" {
		whisperModel = "base"
	}
	return &CreationService{
		store:        store,
		downloader:   downloader,
		transcriber:  transcriber,
		generator:    generator,
		transcripts:  transcripts,
		whisperModel: whisperModel,
		log:          log,
	}
}

// CreateQuiz turns a raw video reference into a persisted quiz owned by
// ownerID. progress may be nil.
func (s *CreationService) CreateQuiz(ctx context.Context, ownerID, rawURL string, progress ProgressFunc) (domain.Quiz, error) {
	report := func(stage string) {
		if progress != nil {
			progress(stage)
		}
	}

	report(StageResolving)
	ref, err := domain.ResolveVideoReference(rawURL)
	if err != nil {
		return domain.Quiz{}, err
	}

	transcript, err := s.obtainTranscript(ctx, ref, report)
	if err != nil {
		return domain.Quiz{}, s.classify(err, ref)
	}

	report(StageGenerating)
	draft, err := s.generator.Generate(ctx, transcript)
	if err != nil {
		return domain.Quiz{}, s.classify(err, ref)
	}

	report(StageSaving)
	quiz, err := s.store.CreateQuizWithQuestions(ctx, domain.Quiz{
		OwnerID:     ownerID,
		Title:       draft.Title,
		Description: draft.Description,
		VideoURL:    ref.CanonicalURL,
	}, draft.Questions)
	if err != nil {
		return domain.Quiz{}, s.classify(err, ref)
	}

	report(StageDone)
	s.log.Infow("quiz created", "quiz_id", quiz.ID, "video_id", ref.VideoID, "questions", len(quiz.Questions))
	return quiz, nil
}

// obtainTranscript returns a cached transcript for the video when available,
// otherwise downloads and transcribes the audio. The downloaded artifact is
// removed on every exit path.
func (s *CreationService) obtainTranscript(ctx context.Context, ref domain.VideoReference, report ProgressFunc) (string, error) {
	if s.transcripts != nil {
		if transcript, ok := s.transcripts.GetTranscript(ctx, ref.VideoID); ok {
			s.log.Infow("transcript cache hit", "video_id", ref.VideoID)
			return transcript, nil
		}
	}

	report(StageDownloading)
	artifact, err := s.downloader.Download(ctx, ref)
	if err != nil {
		return "", err
	}
	defer func() {
		if artifact.Path == "" {
			return
		}
		if rmErr := os.Remove(artifact.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Warnw("failed to remove audio artifact", "path", artifact.Path, "error", rmErr)
		}
	}()

	report(StageTranscribing)
	transcript, err := s.transcriber.Transcribe(ctx, artifact.Path, s.whisperModel)
	if err != nil {
		return "", err
	}

	if s.transcripts != nil {
		s.transcripts.SetTranscript(ctx, ref.VideoID, transcript)
	}
	return transcript, nil
}

// classify keeps validation-family errors client-visible and collapses
// everything else into the generic creation failure, logged with full
// context server-side.
func (s *CreationService) classify(err error, ref domain.VideoReference) error {
	if domain.IsValidationError(err) {
		return err
	}
	s.log.Errorw("quiz creation failed with internal error", "video_id", ref.VideoID, "error", err)
	return domain.ErrCreationFailed
}
