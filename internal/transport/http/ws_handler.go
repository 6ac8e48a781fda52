package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizly-service/internal/domain"
)

// WSHandler streams quiz-creation progress over a websocket. The client
// connects with the video url and identity in the query string, watches
// stage events as the pipeline advances, and receives the created quiz or
// a terminal error as the last message.
type WSHandler struct {
	creator  QuizCreator
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewWSHandler(creator QuizCreator, log *zap.SugaredLogger) *WSHandler {
	return &WSHandler{
		creator: creator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Payload T      `json:"payload"`
}

type stagePayload struct {
	Stage string `json:"stage"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one creation job for the connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	rawURL := r.URL.Query().Get("url")
	if userID == "" || rawURL == "" {
		http.Error(w, "missing userId or url", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	jobID := uuid.NewString()
	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warnw("ws write failed", "job_id", jobID, "error", err)
				return
			}
		}
	}()

	progress := func(stage string) {
		send <- outboundMessage[any]{Type: "stage", JobID: jobID, Payload: stagePayload{Stage: stage}}
	}

	quiz, err := h.creator.CreateQuiz(r.Context(), userID, rawURL, progress)
	if err != nil {
		send <- outboundMessage[any]{Type: "error", JobID: jobID, Payload: errorPayload{Message: clientMessage(err)}}
	} else {
		send <- outboundMessage[any]{Type: "created", JobID: jobID, Payload: quiz}
	}

	close(send)
	<-writerDone
}

// clientMessage keeps validation errors readable and hides everything else
// behind the generic creation failure text.
func clientMessage(err error) string {
	if domain.IsValidationError(err) {
		return err.Error()
	}
	return domain.ErrCreationFailed.Error()
}
