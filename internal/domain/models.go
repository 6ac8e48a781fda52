package domain

import "time"

// VideoReference is a resolved, canonical pointer to a source video.
// Immutable once produced by ResolveVideoReference.
type VideoReference struct {
	VideoID      string `json:"videoId"`
	CanonicalURL string `json:"canonicalUrl"`
}

// AudioArtifact is a locally downloaded audio file. It is owned by the
// pipeline invocation that created it and must be removed by that
// invocation on every exit path.
type AudioArtifact struct {
	Path     string
	VideoID  string
	VideoURL string
}

// QuestionDraft is an unpersisted candidate question emitted by the
// generative model and normalized by schema validation.
type QuestionDraft struct {
	QuestionTitle string   `json:"question_title"`
	Options       []string `json:"question_options"`
	Answer        string   `json:"answer"`
}

// QuizDraft is an unpersisted candidate quiz. It only exists between
// generation and persistence.
type QuizDraft struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Questions   []QuestionDraft `json:"questions"`
}

// Quiz is a persisted quiz generated from a video, owned by one user.
type Quiz struct {
	ID          int64      `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	VideoURL    string     `json:"videoUrl"`
	Questions   []Question `json:"questions,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Question is a persisted quiz question. Immutable after creation.
type Question struct {
	ID            int64     `json:"id"`
	QuizID        int64     `json:"quizId"`
	QuestionTitle string    `json:"questionTitle"`
	Options       []string  `json:"questionOptions"`
	Answer        string    `json:"answer"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// QuizAttempt is one user's playthrough of a quiz.
type QuizAttempt struct {
	ID                   int64      `json:"id"`
	OwnerID              string     `json:"ownerId"`
	QuizID               int64      `json:"quizId"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	IsCompleted          bool       `json:"isCompleted"`
	CorrectCount         int        `json:"correctCount"`
	TotalQuestions       int        `json:"totalQuestions"`
	StartedAt            time.Time  `json:"startedAt"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// ScorePercent returns the attempt score rounded to one decimal place,
// or 0.0 when no questions were snapshotted.
func (a QuizAttempt) ScorePercent() float64 {
	return ScorePercent(a.CorrectCount, a.TotalQuestions)
}

// AttemptAnswer is the stored answer for one (attempt, question) pair.
// Unique per pair: re-answering overwrites the row.
type AttemptAnswer struct {
	ID             int64     `json:"id"`
	AttemptID      int64     `json:"attemptId"`
	QuestionID     int64     `json:"questionId"`
	SelectedOption string    `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AttemptSnapshot is a consistent view of an attempt, its stored answers,
// and the quiz questions, fetched together so result views never mix a
// score with a different answer set.
type AttemptSnapshot struct {
	Attempt   QuizAttempt
	Answers   []AttemptAnswer
	Questions []Question
}

// AttemptResult summarizes a playthrough.
type AttemptResult struct {
	AttemptID   int64            `json:"attemptId"`
	QuizID      int64            `json:"quizId"`
	Correct     int              `json:"correct"`
	Total       int              `json:"total"`
	Percent     float64          `json:"percent"`
	IsCompleted bool             `json:"isCompleted"`
	Details     []QuestionResult `json:"details,omitempty"`
}

// QuestionResult reports one question in a detailed result view.
// Unanswered questions appear with a nil SelectedOption.
type QuestionResult struct {
	QuestionID     int64    `json:"questionId"`
	QuestionTitle  string   `json:"questionTitle"`
	Options        []string `json:"questionOptions"`
	CorrectAnswer  string   `json:"correctAnswer"`
	SelectedOption *string  `json:"selectedOption"`
	IsCorrect      bool     `json:"isCorrect"`
}

// ScorePercent rounds correct/total to one decimal place of percent.
func ScorePercent(correct, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	raw := float64(correct) / float64(total) * 100
	return float64(int(raw*10+0.5)) / 10
}
