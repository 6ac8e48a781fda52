package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"quizly-service/internal/app"
	"quizly-service/internal/domain"
	"quizly-service/internal/infra/memory"
)

type stubCreator struct {
	quiz domain.Quiz
	err  error
}

func (c *stubCreator) CreateQuiz(ctx context.Context, ownerID, rawURL string, progress app.ProgressFunc) (domain.Quiz, error) {
	if c.err != nil {
		return domain.Quiz{}, c.err
	}
	if progress != nil {
		progress(app.StageResolving)
		progress(app.StageDone)
	}
	quiz := c.quiz
	quiz.OwnerID = ownerID
	return quiz, nil
}

func newTestServer(t *testing.T, creator QuizCreator) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	log := zap.NewNop().Sugar()
	handler := NewHandler(creator, app.NewQuizService(store, log), app.NewAttemptService(store, store, log), log)
	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func doJSON(t *testing.T, method, url, user, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func seedQuiz(t *testing.T, store *memory.Store, owner string, questions int) domain.Quiz {
	t.Helper()
	drafts := make([]domain.QuestionDraft, 0, questions)
	for i := 0; i < questions; i++ {
		drafts = append(drafts, domain.QuestionDraft{
			QuestionTitle: fmt.Sprintf("Question %d?", i+1),
			Options:       []string{"a", "b", "c", "d"},
			Answer:        "a",
		})
	}
	quiz, err := store.CreateQuizWithQuestions(context.Background(), domain.Quiz{
		OwnerID:  owner,
		Title:    "Seeded",
		VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}, drafts)
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	return quiz
}

func TestMissingIdentityIsRejected(t *testing.T) {
	server, _ := newTestServer(t, &stubCreator{})
	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/quizzes", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateQuizReturnsCreated(t *testing.T) {
	creator := &stubCreator{quiz: domain.Quiz{ID: 1, Title: "Generated"}}
	server, _ := newTestServer(t, creator)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/quizzes", "u1",
		`{"videoUrl":"https://youtu.be/dQw4w9WgXcQ"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(body, &quiz); err != nil {
		t.Fatalf("unmarshal quiz: %v", err)
	}
	if quiz.Title != "Generated" || quiz.OwnerID != "u1" {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}
}

func TestCreateQuizErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid reference", domain.ErrInvalidReference, http.StatusBadRequest},
		{"empty transcript", domain.ErrTranscriptEmpty, http.StatusBadRequest},
		{"quota", domain.ErrQuotaExceeded, http.StatusTooManyRequests},
		{"internal", domain.ErrCreationFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server, _ := newTestServer(t, &stubCreator{err: tc.err})
			resp, body := doJSON(t, http.MethodPost, server.URL+"/api/quizzes", "u1",
				`{"videoUrl":"https://youtu.be/dQw4w9WgXcQ"}`)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.StatusCode, body)
			}
		})
	}
}

func TestQuizOwnershipAndNotFound(t *testing.T) {
	server, store := newTestServer(t, &stubCreator{})
	quiz := seedQuiz(t, store, "alice", 2)

	resp, _ := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/quizzes/%d", server.URL, quiz.ID), "bob", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign quiz, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/quizzes/9999", "alice", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quiz, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/quizzes/%d", server.URL, quiz.ID), "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
}

func TestPatchAndDeleteQuiz(t *testing.T) {
	server, store := newTestServer(t, &stubCreator{})
	quiz := seedQuiz(t, store, "alice", 1)

	resp, body := doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/quizzes/%d", server.URL, quiz.ID),
		"alice", `{"title":"  Renamed  "}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var updated domain.Quiz
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("unmarshal quiz: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("expected trimmed title, got %q", updated.Title)
	}

	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/quizzes/%d", server.URL, quiz.ID), "alice", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/quizzes/%d", server.URL, quiz.ID), "alice", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	server, store := newTestServer(t, &stubCreator{})
	quiz := seedQuiz(t, store, "alice", 3)

	resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/quizzes/%d/attempts", server.URL, quiz.ID), "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start attempt: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var attempt domain.QuizAttempt
	if err := json.Unmarshal(body, &attempt); err != nil {
		t.Fatalf("unmarshal attempt: %v", err)
	}
	if attempt.TotalQuestions != 3 {
		t.Fatalf("expected snapshot of 3 questions, got %d", attempt.TotalQuestions)
	}

	answerURL := fmt.Sprintf("%s/api/attempts/%d/answers", server.URL, attempt.ID)
	resp, body = doJSON(t, http.MethodPost, answerURL, "alice",
		fmt.Sprintf(`{"questionId":%d,"selectedOption":"a"}`, quiz.Questions[0].ID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save answer: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var updated domain.QuizAttempt
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("unmarshal attempt: %v", err)
	}
	if updated.CorrectCount != 1 {
		t.Fatalf("expected 1 correct, got %d", updated.CorrectCount)
	}

	resp, body = doJSON(t, http.MethodPost, answerURL, "alice",
		fmt.Sprintf(`{"questionId":%d,"selectedOption":"z"}`, quiz.Questions[1].ID))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown option: expected 400, got %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/attempts/%d/finish", server.URL, attempt.ID), "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finish: expected 200, got %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/attempts/%d/result?details=true", server.URL, attempt.ID), "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("result: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var result domain.AttemptResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Correct != 1 || result.Total != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Details) != 3 {
		t.Fatalf("expected 3 detail rows, got %d", len(result.Details))
	}
	unanswered := 0
	for _, d := range result.Details {
		if d.SelectedOption == nil {
			unanswered++
		}
	}
	if unanswered != 2 {
		t.Fatalf("expected 2 unanswered questions, got %d", unanswered)
	}

	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/attempts/%d", server.URL, attempt.ID), "bob", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign attempt, got %d", resp.StatusCode)
	}
}
