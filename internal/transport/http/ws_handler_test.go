package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizly-service/internal/domain"
)

func TestWebSocketCreationFlow(t *testing.T) {
	creator := &stubCreator{quiz: domain.Quiz{ID: 5, Title: "Generated"}}
	wsHandler := NewWSHandler(creator, zap.NewNop().Sugar())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/create", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/create?userId=u1&url=https://youtu.be/dQw4w9WgXcQ"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var stages []string
	var jobID string
	for i := 0; i < 5; i++ {
		typ, job, payload := readNext(conn, t)
		if jobID == "" {
			jobID = job
		} else if job != jobID {
			t.Fatalf("job id changed mid stream: %q vs %q", jobID, job)
		}
		if typ == "stage" {
			stages = append(stages, payload["stage"].(string))
			continue
		}
		if typ != "created" {
			t.Fatalf("expected created, got %s", typ)
		}
		if payload["title"] != "Generated" {
			t.Fatalf("unexpected created payload: %+v", payload)
		}
		break
	}
	if len(stages) != 2 || stages[0] != "resolving" || stages[1] != "done" {
		t.Fatalf("unexpected stages: %v", stages)
	}
	if jobID == "" {
		t.Fatalf("expected a job id on every message")
	}
}

func TestWebSocketCreationError(t *testing.T) {
	creator := &stubCreator{err: domain.ErrTranscriptEmpty}
	wsHandler := NewWSHandler(creator, zap.NewNop().Sugar())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/create", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/create?userId=u1&url=https://youtu.be/dQw4w9WgXcQ"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	typ, _, payload := readNext(conn, t)
	if typ != "error" {
		t.Fatalf("expected error message, got %s", typ)
	}
	if payload["message"] != domain.ErrTranscriptEmpty.Error() {
		t.Fatalf("expected transcript error surfaced, got %+v", payload)
	}
}

func TestWebSocketRejectsMissingParams(t *testing.T) {
	wsHandler := NewWSHandler(&stubCreator{}, zap.NewNop().Sugar())
	server := httptest.NewServer(http.HandlerFunc(wsHandler.ServeWS))
	defer server.Close()

	resp, err := http.Get(server.URL + "?userId=u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without url, got %d", resp.StatusCode)
	}
}

func readNext(conn *websocket.Conn, t *testing.T) (string, string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		JobID   string         `json:"jobId"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.JobID, msg.Payload
}
