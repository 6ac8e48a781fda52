package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quizly-service/internal/app"
	"quizly-service/internal/domain"
)

// Store persists quizzes, questions, attempts, and answers in Postgres.
// Multi-row operations run inside one transaction so callers never observe
// a half-applied write.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

var _ app.Store = (*Store)(nil)

func (s *Store) CreateQuizWithQuestions(ctx context.Context, quiz domain.Quiz, questions []domain.QuestionDraft) (domain.Quiz, error) {
	now := time.Now().UTC()
	row := quizRow{
		OwnerID:     quiz.OwnerID,
		Title:       quiz.Title,
		Description: quiz.Description,
		VideoURL:    quiz.VideoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var qrows []questionRow

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return err
		}
		qrows = make([]questionRow, 0, len(questions))
		for _, d := range questions {
			qrows = append(qrows, questionRow{
				QuizID:        row.ID,
				QuestionTitle: d.QuestionTitle,
				Options:       d.Options,
				Answer:        d.Answer,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
		if len(qrows) > 0 {
			if _, err := tx.NewInsert().Model(&qrows).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}

	out := row.toDomain()
	out.Questions = make([]domain.Question, 0, len(qrows))
	for _, q := range qrows {
		out.Questions = append(out.Questions, q.toDomain())
	}
	return out, nil
}

func (s *Store) QuizByID(ctx context.Context, id int64) (domain.Quiz, error) {
	var row quizRow
	if err := s.db.NewSelect().Model(&row).Where("q.id = ?", id).Scan(ctx); err != nil {
		return domain.Quiz{}, mapNoRows(err, "load quiz")
	}
	questions, err := s.questionsForQuiz(ctx, id)
	if err != nil {
		return domain.Quiz{}, err
	}
	out := row.toDomain()
	out.Questions = questions
	return out, nil
}

func (s *Store) QuizzesByOwner(ctx context.Context, ownerID string) ([]domain.Quiz, error) {
	var rows []quizRow
	err := s.db.NewSelect().Model(&rows).
		Where("q.owner_id = ?", ownerID).
		Order("q.created_at DESC", "q.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	if len(rows) == 0 {
		return []domain.Quiz{}, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var qrows []questionRow
	err = s.db.NewSelect().Model(&qrows).
		Where("qq.quiz_id IN (?)", bun.In(ids)).
		Order("qq.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	byQuiz := make(map[int64][]domain.Question, len(rows))
	for _, q := range qrows {
		byQuiz[q.QuizID] = append(byQuiz[q.QuizID], q.toDomain())
	}

	out := make([]domain.Quiz, 0, len(rows))
	for _, r := range rows {
		quiz := r.toDomain()
		quiz.Questions = byQuiz[r.ID]
		out = append(out, quiz)
	}
	return out, nil
}

func (s *Store) UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	row := quizRow{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		VideoURL:    quiz.VideoURL,
		UpdatedAt:   time.Now().UTC(),
	}
	res, err := s.db.NewUpdate().Model(&row).
		Column("title", "description", "video_url", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.Quiz{}, domain.ErrNotFound
	}
	return s.QuizByID(ctx, quiz.ID)
}

func (s *Store) DeleteQuiz(ctx context.Context, id int64) error {
	// Questions, attempts, and answers go with the quiz via FK cascades.
	res, err := s.db.NewDelete().Model((*quizRow)(nil)).Where("q.id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) AttemptByID(ctx context.Context, id int64) (domain.QuizAttempt, error) {
	var row attemptRow
	if err := s.db.NewSelect().Model(&row).Where("qa.id = ?", id).Scan(ctx); err != nil {
		return domain.QuizAttempt{}, mapNoRows(err, "load attempt")
	}
	return row.toDomain(), nil
}

func (s *Store) OpenAttempt(ctx context.Context, ownerID string, quizID int64) (domain.QuizAttempt, bool, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).
		Where("qa.owner_id = ?", ownerID).
		Where("qa.quiz_id = ?", quizID).
		Where("qa.is_completed = FALSE").
		Order("qa.id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizAttempt{}, false, nil
	}
	if err != nil {
		return domain.QuizAttempt{}, false, fmt.Errorf("load open attempt: %w", err)
	}
	return row.toDomain(), true, nil
}

func (s *Store) CreateAttempt(ctx context.Context, attempt domain.QuizAttempt) (domain.QuizAttempt, error) {
	now := time.Now().UTC()
	row := attemptRow{
		OwnerID:              attempt.OwnerID,
		QuizID:               attempt.QuizID,
		CurrentQuestionIndex: attempt.CurrentQuestionIndex,
		IsCompleted:          attempt.IsCompleted,
		CorrectCount:         attempt.CorrectCount,
		TotalQuestions:       attempt.TotalQuestions,
		StartedAt:            now,
		UpdatedAt:            now,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("create attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) SaveAnswer(ctx context.Context, params app.SaveAnswerParams) (domain.QuizAttempt, error) {
	var row attemptRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockAttempt(ctx, tx, params.AttemptID, &row); err != nil {
			return err
		}
		now := time.Now().UTC()
		answer := answerRow{
			AttemptID:      params.AttemptID,
			QuestionID:     params.QuestionID,
			SelectedOption: params.SelectedOption,
			IsCorrect:      params.IsCorrect,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		_, err := tx.NewInsert().Model(&answer).
			On("CONFLICT (attempt_id, question_id) DO UPDATE").
			Set("selected_option = EXCLUDED.selected_option").
			Set("is_correct = EXCLUDED.is_correct").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}
		if err := recalcAttempt(ctx, tx, &row); err != nil {
			return err
		}
		if params.CurrentIndex != nil {
			row.CurrentQuestionIndex = *params.CurrentIndex
		}
		if params.Finish && !row.IsCompleted {
			row.IsCompleted = true
			completed := now
			row.CompletedAt = &completed
		}
		row.UpdatedAt = now
		_, err = tx.NewUpdate().Model(&row).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) FinishAttempt(ctx context.Context, attemptID int64) (domain.QuizAttempt, error) {
	var row attemptRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockAttempt(ctx, tx, attemptID, &row); err != nil {
			return err
		}
		if err := recalcAttempt(ctx, tx, &row); err != nil {
			return err
		}
		now := time.Now().UTC()
		if !row.IsCompleted {
			row.IsCompleted = true
			completed := now
			row.CompletedAt = &completed
		}
		row.UpdatedAt = now
		_, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) AttemptSnapshot(ctx context.Context, attemptID int64) (domain.AttemptSnapshot, error) {
	var snapshot domain.AttemptSnapshot
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row attemptRow
		if err := lockAttempt(ctx, tx, attemptID, &row); err != nil {
			return err
		}
		if err := recalcAttempt(ctx, tx, &row); err != nil {
			return err
		}
		row.UpdatedAt = time.Now().UTC()
		if _, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx); err != nil {
			return err
		}

		var answers []answerRow
		err := tx.NewSelect().Model(&answers).
			Where("aa.attempt_id = ?", attemptID).
			Order("aa.question_id ASC").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("load answers: %w", err)
		}
		var questions []questionRow
		err = tx.NewSelect().Model(&questions).
			Where("qq.quiz_id = ?", row.QuizID).
			Order("qq.id ASC").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}

		snapshot.Attempt = row.toDomain()
		snapshot.Answers = make([]domain.AttemptAnswer, 0, len(answers))
		for _, a := range answers {
			snapshot.Answers = append(snapshot.Answers, a.toDomain())
		}
		snapshot.Questions = make([]domain.Question, 0, len(questions))
		for _, q := range questions {
			snapshot.Questions = append(snapshot.Questions, q.toDomain())
		}
		return nil
	})
	if err != nil {
		return domain.AttemptSnapshot{}, err
	}
	return snapshot, nil
}

func (s *Store) questionsForQuiz(ctx context.Context, quizID int64) ([]domain.Question, error) {
	var rows []questionRow
	err := s.db.NewSelect().Model(&rows).
		Where("qq.quiz_id = ?", quizID).
		Order("qq.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	out := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func lockAttempt(ctx context.Context, tx bun.Tx, attemptID int64, row *attemptRow) error {
	err := tx.NewSelect().Model(row).
		Where("qa.id = ?", attemptID).
		For("UPDATE").
		Scan(ctx)
	return mapNoRows(err, "lock attempt")
}

// recalcAttempt refreshes the counters from the stored answer set. The
// question total only ever grows: a snapshot taken at attempt start is
// never shrunk afterwards.
func recalcAttempt(ctx context.Context, tx bun.Tx, row *attemptRow) error {
	correct, err := tx.NewSelect().Model((*answerRow)(nil)).
		Where("aa.attempt_id = ?", row.ID).
		Where("aa.is_correct = TRUE").
		Count(ctx)
	if err != nil {
		return fmt.Errorf("count correct answers: %w", err)
	}
	live, err := tx.NewSelect().Model((*questionRow)(nil)).
		Where("qq.quiz_id = ?", row.QuizID).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	row.CorrectCount = correct
	if live > row.TotalQuestions {
		row.TotalQuestions = live
	}
	return nil
}

func mapNoRows(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
