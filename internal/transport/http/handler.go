package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"quizly-service/internal/app"
	"quizly-service/internal/domain"
)

// QuizCreator runs the full creation pipeline for one video reference.
type QuizCreator interface {
	CreateQuiz(ctx context.Context, ownerID, rawURL string, progress app.ProgressFunc) (domain.Quiz, error)
}

// Handler exposes the quiz and attempt use cases over JSON HTTP. The acting
// identity comes from the X-User-ID header, set by the fronting gateway.
type Handler struct {
	creator  QuizCreator
	quizzes  *app.QuizService
	attempts *app.AttemptService
	log      *zap.SugaredLogger
}

func NewHandler(creator QuizCreator, quizzes *app.QuizService, attempts *app.AttemptService, log *zap.SugaredLogger) *Handler {
	return &Handler{creator: creator, quizzes: quizzes, attempts: attempts, log: log}
}

// Register mounts all REST routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/quizzes", h.withUser(h.createQuiz))
	mux.HandleFunc("GET /api/quizzes", h.withUser(h.listQuizzes))
	mux.HandleFunc("GET /api/quizzes/{id}", h.withUser(h.getQuiz))
	mux.HandleFunc("PATCH /api/quizzes/{id}", h.withUser(h.patchQuiz))
	mux.HandleFunc("DELETE /api/quizzes/{id}", h.withUser(h.deleteQuiz))

	mux.HandleFunc("POST /api/quizzes/{id}/attempts", h.withUser(h.startAttempt))
	mux.HandleFunc("GET /api/attempts/{id}", h.withUser(h.getAttempt))
	mux.HandleFunc("POST /api/attempts/{id}/answers", h.withUser(h.saveAnswer))
	mux.HandleFunc("POST /api/attempts/{id}/finish", h.withUser(h.finishAttempt))
	mux.HandleFunc("GET /api/attempts/{id}/result", h.withUser(h.attemptResult))
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (h *Handler) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing X-User-ID header"})
			return
		}
		next(w, r, userID)
	}
}

type createQuizRequest struct {
	VideoURL string `json:"videoUrl"`
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request, userID string) {
	var req createQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	quiz, err := h.creator.CreateQuiz(r.Context(), userID, req.VideoURL, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request, userID string) {
	quizzes, err := h.quizzes.List(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	quiz, err := h.quizzes.Get(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type patchQuizRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	VideoURL    *string `json:"videoUrl"`
}

func (h *Handler) patchQuiz(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req patchQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	quiz, err := h.quizzes.Patch(r.Context(), userID, id, app.QuizPatch{
		Title:       req.Title,
		Description: req.Description,
		VideoURL:    req.VideoURL,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.quizzes.Delete(r.Context(), userID, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type startAttemptRequest struct {
	ForceNew bool `json:"forceNew"`
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request, userID string) {
	quizID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req startAttemptRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
	}
	attempt, err := h.attempts.StartOrResume(r.Context(), userID, quizID, req.ForceNew)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) getAttempt(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	attempt, err := h.attempts.Attempt(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

type saveAnswerRequest struct {
	QuestionID     int64  `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
	CurrentIndex   *int   `json:"currentIndex"`
	Finish         bool   `json:"finish"`
}

func (h *Handler) saveAnswer(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req saveAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	attempt, err := h.attempts.SaveAnswer(r.Context(), userID, id, app.SaveAnswerInput{
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		CurrentIndex:   req.CurrentIndex,
		Finish:         req.Finish,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) finishAttempt(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	attempt, err := h.attempts.Finish(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) attemptResult(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	includeDetails := r.URL.Query().Get("details") == "true"
	result, err := h.attempts.Result(r.Context(), userID, id, includeDetails)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, domain.ErrQuotaExceeded):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidOption),
		domain.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrCreationFailed):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	default:
		h.log.Errorw("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
