package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quizly-service/internal/app"
	"quizly-service/internal/domain"
)

// Store is an in-memory implementation of app.Store with the same atomicity
// and uniqueness semantics as the Postgres store. Used by unit tests and by
// the server when no database is configured.
type Store struct {
	mu    sync.Mutex
	clock func() time.Time

	nextID   int64
	quizzes  map[int64]*domain.Quiz
	attempts map[int64]*domain.QuizAttempt
	// answers keyed by attempt id, then question id: the unique
	// (attempt, question) constraint by construction.
	answers map[int64]map[int64]*domain.AttemptAnswer
}

func NewStore() *Store {
	return &Store{
		clock:    time.Now,
		quizzes:  make(map[int64]*domain.Quiz),
		attempts: make(map[int64]*domain.QuizAttempt),
		answers:  make(map[int64]map[int64]*domain.AttemptAnswer),
	}
}

// NewStoreWithClock is test-only for deterministic timestamps.
func NewStoreWithClock(now func() time.Time) *Store {
	s := NewStore()
	s.clock = now
	return s
}

func (s *Store) nextIDLocked() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateQuizWithQuestions(_ context.Context, quiz domain.Quiz, questions []domain.QuestionDraft) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	quiz.ID = s.nextIDLocked()
	quiz.CreatedAt = now
	quiz.UpdatedAt = now
	quiz.Questions = make([]domain.Question, 0, len(questions))
	for _, draft := range questions {
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:            s.nextIDLocked(),
			QuizID:        quiz.ID,
			QuestionTitle: draft.QuestionTitle,
			Options:       append([]string(nil), draft.Options...),
			Answer:        draft.Answer,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	stored := quiz
	s.quizzes[quiz.ID] = &stored
	return quiz, nil
}

func (s *Store) QuizByID(_ context.Context, id int64) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrNotFound
	}
	return cloneQuiz(*quiz), nil
}

func (s *Store) QuizzesByOwner(_ context.Context, ownerID string) ([]domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Quiz, 0)
	for _, quiz := range s.quizzes {
		if quiz.OwnerID == ownerID {
			out = append(out, cloneQuiz(*quiz))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.quizzes[quiz.ID]
	if !ok {
		return domain.Quiz{}, domain.ErrNotFound
	}
	stored.Title = quiz.Title
	stored.Description = quiz.Description
	stored.VideoURL = quiz.VideoURL
	stored.UpdatedAt = s.clock()
	return cloneQuiz(*stored), nil
}

func (s *Store) DeleteQuiz(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.quizzes, id)
	for attemptID, attempt := range s.attempts {
		if attempt.QuizID == id {
			delete(s.attempts, attemptID)
			delete(s.answers, attemptID)
		}
	}
	return nil
}

func (s *Store) AttemptByID(_ context.Context, id int64) (domain.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.QuizAttempt{}, domain.ErrNotFound
	}
	return *attempt, nil
}

func (s *Store) OpenAttempt(_ context.Context, ownerID string, quizID int64) (domain.QuizAttempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *domain.QuizAttempt
	for _, attempt := range s.attempts {
		if attempt.OwnerID == ownerID && attempt.QuizID == quizID && !attempt.IsCompleted {
			if found == nil || attempt.ID < found.ID {
				found = attempt
			}
		}
	}
	if found == nil {
		return domain.QuizAttempt{}, false, nil
	}
	return *found, true, nil
}

func (s *Store) CreateAttempt(_ context.Context, attempt domain.QuizAttempt) (domain.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	attempt.ID = s.nextIDLocked()
	attempt.StartedAt = now
	attempt.UpdatedAt = now
	stored := attempt
	s.attempts[attempt.ID] = &stored
	s.answers[attempt.ID] = make(map[int64]*domain.AttemptAnswer)
	return attempt, nil
}

func (s *Store) SaveAnswer(_ context.Context, params app.SaveAnswerParams) (domain.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[params.AttemptID]
	if !ok {
		return domain.QuizAttempt{}, domain.ErrNotFound
	}

	now := s.clock()
	byQuestion := s.answers[params.AttemptID]
	if existing, ok := byQuestion[params.QuestionID]; ok {
		existing.SelectedOption = params.SelectedOption
		existing.IsCorrect = params.IsCorrect
		existing.UpdatedAt = now
	} else {
		byQuestion[params.QuestionID] = &domain.AttemptAnswer{
			ID:             s.nextIDLocked(),
			AttemptID:      params.AttemptID,
			QuestionID:     params.QuestionID,
			SelectedOption: params.SelectedOption,
			IsCorrect:      params.IsCorrect,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	if params.CurrentIndex != nil {
		attempt.CurrentQuestionIndex = *params.CurrentIndex
	}
	s.recalculateLocked(attempt)
	if params.Finish && !attempt.IsCompleted {
		s.completeLocked(attempt, now)
	}
	attempt.UpdatedAt = now
	return *attempt, nil
}

func (s *Store) FinishAttempt(_ context.Context, attemptID int64) (domain.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.QuizAttempt{}, domain.ErrNotFound
	}
	now := s.clock()
	s.recalculateLocked(attempt)
	if !attempt.IsCompleted {
		s.completeLocked(attempt, now)
		attempt.UpdatedAt = now
	}
	return *attempt, nil
}

func (s *Store) AttemptSnapshot(_ context.Context, attemptID int64) (domain.AttemptSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrNotFound
	}
	s.recalculateLocked(attempt)
	attempt.UpdatedAt = s.clock()

	answers := make([]domain.AttemptAnswer, 0, len(s.answers[attemptID]))
	for _, answer := range s.answers[attemptID] {
		answers = append(answers, *answer)
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })

	var questions []domain.Question
	if quiz, ok := s.quizzes[attempt.QuizID]; ok {
		questions = cloneQuiz(*quiz).Questions
	}

	return domain.AttemptSnapshot{
		Attempt:   *attempt,
		Answers:   answers,
		Questions: questions,
	}, nil
}

// QuizQuestions implements app.QuizContentProvider.
func (s *Store) QuizQuestions(_ context.Context, quizID int64) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneQuiz(*quiz).Questions, nil
}

// recalculateLocked recomputes correct_count from the stored answers and
// refreshes total_questions from the live question count. The total never
// decreases below the snapshot taken at attempt creation.
func (s *Store) recalculateLocked(attempt *domain.QuizAttempt) {
	correct := 0
	for _, answer := range s.answers[attempt.ID] {
		if answer.IsCorrect {
			correct++
		}
	}
	attempt.CorrectCount = correct

	if quiz, ok := s.quizzes[attempt.QuizID]; ok {
		if count := len(quiz.Questions); count > attempt.TotalQuestions {
			attempt.TotalQuestions = count
		}
	}
}

func (s *Store) completeLocked(attempt *domain.QuizAttempt, now time.Time) {
	attempt.IsCompleted = true
	completedAt := now
	attempt.CompletedAt = &completedAt
}

func cloneQuiz(quiz domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.Options = append([]string(nil), q.Options...)
		questions[i] = q
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	quiz.Questions = questions
	return quiz
}
