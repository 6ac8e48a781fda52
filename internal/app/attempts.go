package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quizly-service/internal/domain"
)

// defaultTotalQuestions is snapshotted when a quiz currently has no
// questions at attempt creation.
const defaultTotalQuestions = 10

// AttemptService owns the quiz-attempt state machine: start/resume, answer
// upsert, score recomputation, completion, and result summarization.
type AttemptService struct {
	store   Store
	content QuizContentProvider
	log     *zap.SugaredLogger
}

func NewAttemptService(store Store, content QuizContentProvider, log *zap.SugaredLogger) *AttemptService {
	return &AttemptService{store: store, content: content, log: log}
}

// SaveAnswerInput carries one answer submission.
type SaveAnswerInput struct {
	QuestionID     int64
	SelectedOption string
	CurrentIndex   *int
	Finish         bool
}

// StartOrResume returns the open attempt for (user, quiz) when one exists and
// forceNew is false, otherwise creates a fresh attempt with the question
// count snapshotted from the quiz.
func (s *AttemptService) StartOrResume(ctx context.Context, userID string, quizID int64, forceNew bool) (domain.QuizAttempt, error) {
	quiz, err := s.ownedQuiz(ctx, userID, quizID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}

	if !forceNew {
		existing, ok, err := s.store.OpenAttempt(ctx, userID, quizID)
		if err != nil {
			return domain.QuizAttempt{}, err
		}
		if ok {
			return existing, nil
		}
	}

	total := len(quiz.Questions)
	if total == 0 {
		total = defaultTotalQuestions
	}
	attempt, err := s.store.CreateAttempt(ctx, domain.QuizAttempt{
		OwnerID:              userID,
		QuizID:               quizID,
		CurrentQuestionIndex: 0,
		IsCompleted:          false,
		TotalQuestions:       total,
	})
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	s.log.Infow("attempt started", "attempt_id", attempt.ID, "quiz_id", quizID, "total_questions", total)
	return attempt, nil
}

// Attempt returns one attempt after the ownership check.
func (s *AttemptService) Attempt(ctx context.Context, userID string, attemptID int64) (domain.QuizAttempt, error) {
	return s.ownedAttempt(ctx, userID, attemptID)
}

// SaveAnswer validates and upserts an answer inside the attempt, recomputes
// the score from the full stored answer set, optionally moves the progress
// pointer, and optionally completes the attempt. The write is one atomic
// unit; on validation failure no state is mutated.
func (s *AttemptService) SaveAnswer(ctx context.Context, userID string, attemptID int64, in SaveAnswerInput) (domain.QuizAttempt, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}

	questions, err := s.content.QuizQuestions(ctx, attempt.QuizID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	question, ok := findQuestion(questions, in.QuestionID)
	if !ok {
		return domain.QuizAttempt{}, fmt.Errorf("%w: question %d", domain.ErrInvalidQuestion, in.QuestionID)
	}
	if !containsOption(question.Options, in.SelectedOption) {
		return domain.QuizAttempt{}, fmt.Errorf("%w: %q", domain.ErrInvalidOption, in.SelectedOption)
	}

	updated, err := s.store.SaveAnswer(ctx, SaveAnswerParams{
		AttemptID:      attempt.ID,
		QuestionID:     question.ID,
		SelectedOption: in.SelectedOption,
		IsCorrect:      in.SelectedOption == question.Answer,
		CurrentIndex:   in.CurrentIndex,
		Finish:         in.Finish,
	})
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	return updated, nil
}

// Finish recomputes the score and marks the attempt completed. Finishing an
// already-completed attempt is a no-op, not an error.
func (s *AttemptService) Finish(ctx context.Context, userID string, attemptID int64) (domain.QuizAttempt, error) {
	if _, err := s.ownedAttempt(ctx, userID, attemptID); err != nil {
		return domain.QuizAttempt{}, err
	}
	return s.store.FinishAttempt(ctx, attemptID)
}

// Result recomputes and persists the counters, then reports the summary.
// With includeDetails, every quiz question is reported in id order, joined
// against any stored answer; unanswered questions appear with a nil
// selection rather than being omitted.
func (s *AttemptService) Result(ctx context.Context, userID string, attemptID int64, includeDetails bool) (domain.AttemptResult, error) {
	if _, err := s.ownedAttempt(ctx, userID, attemptID); err != nil {
		return domain.AttemptResult{}, err
	}

	snap, err := s.store.AttemptSnapshot(ctx, attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}

	result := domain.AttemptResult{
		AttemptID:   snap.Attempt.ID,
		QuizID:      snap.Attempt.QuizID,
		Correct:     snap.Attempt.CorrectCount,
		Total:       snap.Attempt.TotalQuestions,
		Percent:     snap.Attempt.ScorePercent(),
		IsCompleted: snap.Attempt.IsCompleted,
	}

	if includeDetails {
		byQuestion := make(map[int64]domain.AttemptAnswer, len(snap.Answers))
		for _, answer := range snap.Answers {
			byQuestion[answer.QuestionID] = answer
		}
		details := make([]domain.QuestionResult, 0, len(snap.Questions))
		for _, q := range snap.Questions {
			detail := domain.QuestionResult{
				QuestionID:    q.ID,
				QuestionTitle: q.QuestionTitle,
				Options:       q.Options,
				CorrectAnswer: q.Answer,
			}
			if answer, ok := byQuestion[q.ID]; ok {
				selected := answer.SelectedOption
				detail.SelectedOption = &selected
				detail.IsCorrect = answer.IsCorrect
			}
			details = append(details, detail)
		}
		result.Details = details
	}
	return result, nil
}

func (s *AttemptService) ownedQuiz(ctx context.Context, userID string, quizID int64) (domain.Quiz, error) {
	quiz, err := s.store.QuizByID(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.OwnerID != userID {
		return domain.Quiz{}, domain.ErrForbidden
	}
	return quiz, nil
}

func (s *AttemptService) ownedAttempt(ctx context.Context, userID string, attemptID int64) (domain.QuizAttempt, error) {
	attempt, err := s.store.AttemptByID(ctx, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if attempt.OwnerID != userID {
		return domain.QuizAttempt{}, domain.ErrForbidden
	}
	return attempt, nil
}

func findQuestion(questions []domain.Question, id int64) (domain.Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Question{}, false
}

func containsOption(options []string, selected string) bool {
	for _, opt := range options {
		if opt == selected {
			return true
		}
	}
	return false
}
