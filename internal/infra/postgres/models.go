package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quizly-service/internal/domain"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID          int64     `bun:"id,pk,autoincrement"`
	OwnerID     string    `bun:"owner_id,notnull"`
	Title       string    `bun:"title,notnull"`
	Description string    `bun:"description,notnull"`
	VideoURL    string    `bun:"video_url,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qq"`

	ID            int64     `bun:"id,pk,autoincrement"`
	QuizID        int64     `bun:"quiz_id,notnull"`
	QuestionTitle string    `bun:"question_title,notnull"`
	Options       []string  `bun:"question_options,type:jsonb"`
	Answer        string    `bun:"answer,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID                   int64      `bun:"id,pk,autoincrement"`
	OwnerID              string     `bun:"owner_id,notnull"`
	QuizID               int64      `bun:"quiz_id,notnull"`
	CurrentQuestionIndex int        `bun:"current_question_index,notnull"`
	IsCompleted          bool       `bun:"is_completed,notnull"`
	CorrectCount         int        `bun:"correct_count,notnull"`
	TotalQuestions       int        `bun:"total_questions,notnull"`
	StartedAt            time.Time  `bun:"started_at,notnull"`
	CompletedAt          *time.Time `bun:"completed_at"`
	UpdatedAt            time.Time  `bun:"updated_at,notnull"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:attempt_answers,alias:aa"`

	ID             int64     `bun:"id,pk,autoincrement"`
	AttemptID      int64     `bun:"attempt_id,notnull"`
	QuestionID     int64     `bun:"question_id,notnull"`
	SelectedOption string    `bun:"selected_option,notnull"`
	IsCorrect      bool      `bun:"is_correct,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		VideoURL:    r.VideoURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:            r.ID,
		QuizID:        r.QuizID,
		QuestionTitle: r.QuestionTitle,
		Options:       r.Options,
		Answer:        r.Answer,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r attemptRow) toDomain() domain.QuizAttempt {
	return domain.QuizAttempt{
		ID:                   r.ID,
		OwnerID:              r.OwnerID,
		QuizID:               r.QuizID,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		IsCompleted:          r.IsCompleted,
		CorrectCount:         r.CorrectCount,
		TotalQuestions:       r.TotalQuestions,
		StartedAt:            r.StartedAt,
		CompletedAt:          r.CompletedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func (r answerRow) toDomain() domain.AttemptAnswer {
	return domain.AttemptAnswer{
		ID:             r.ID,
		AttemptID:      r.AttemptID,
		QuestionID:     r.QuestionID,
		SelectedOption: r.SelectedOption,
		IsCorrect:      r.IsCorrect,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
