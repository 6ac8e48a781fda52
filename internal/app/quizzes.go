package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"quizly-service/internal/domain"
)

// QuizService covers quiz management outside the creation pipeline: listing,
// retrieval, partial update, and deletion, all ownership-checked.
type QuizService struct {
	store Store
	log   *zap.SugaredLogger
}

func NewQuizService(store Store, log *zap.SugaredLogger) *QuizService {
	return &QuizService{store: store, log: log}
}

// QuizPatch carries a partial quiz update. Nil fields are left untouched.
// Questions are immutable and cannot be patched.
type QuizPatch struct {
	Title       *string
	Description *string
	VideoURL    *string
}

// List returns the user's quizzes, questions included, newest first.
func (s *QuizService) List(ctx context.Context, userID string) ([]domain.Quiz, error) {
	return s.store.QuizzesByOwner(ctx, userID)
}

// Get returns one quiz with its questions after the ownership check.
func (s *QuizService) Get(ctx context.Context, userID string, quizID int64) (domain.Quiz, error) {
	return s.ownedQuiz(ctx, userID, quizID)
}

// Patch applies a partial update to the quiz metadata.
func (s *QuizService) Patch(ctx context.Context, userID string, quizID int64, patch QuizPatch) (domain.Quiz, error) {
	quiz, err := s.ownedQuiz(ctx, userID, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if patch.Title != nil {
		quiz.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		quiz.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.VideoURL != nil {
		quiz.VideoURL = strings.TrimSpace(*patch.VideoURL)
	}
	return s.store.UpdateQuiz(ctx, quiz)
}

// Delete removes the quiz; questions, attempts, and answers cascade.
func (s *QuizService) Delete(ctx context.Context, userID string, quizID int64) error {
	if _, err := s.ownedQuiz(ctx, userID, quizID); err != nil {
		return err
	}
	s.log.Infow("quiz deleted", "quiz_id", quizID)
	return s.store.DeleteQuiz(ctx, quizID)
}

func (s *QuizService) ownedQuiz(ctx context.Context, userID string, quizID int64) (domain.Quiz, error) {
	quiz, err := s.store.QuizByID(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.OwnerID != userID {
		return domain.Quiz{}, domain.ErrForbidden
	}
	return quiz, nil
}
