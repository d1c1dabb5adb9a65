package http

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

func TestWebSocketQuizFlow(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), zap.NewNop(), RouterConfig{LeaderboardLimit: 10}))
	defer server.Close()

	conn := dial(t, server, "/ws?name=Alice")
	defer conn.Close()

	send(t, conn, map[string]any{
		"type":    "start",
		"payload": map[string]any{"totalQuestions": 2, "timePerQuestion": 30},
	})
	started := readUntil(t, conn, "started")
	var snap domain.SessionSnapshot
	decodePayload(t, started, &snap)
	if snap.Player != "Alice" || snap.TotalQuestions != 2 || snap.State != domain.StateActive {
		t.Fatalf("unexpected start snapshot %+v", snap)
	}

	send(t, conn, map[string]any{
		"type":    "select",
		"payload": map[string]any{"questionIndex": 0, "optionIndex": 1},
	})
	send(t, conn, map[string]any{"type": "submit"})

	var result resultPayload
	decodePayload(t, readUntil(t, conn, "result"), &result)
	if result.Record.TotalQuestions != 2 || len(result.Breakdown) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Breakdown[0].SelectedOption == nil || *result.Breakdown[0].SelectedOption != 1 {
		t.Fatalf("expected first answer recorded, got %+v", result.Breakdown[0])
	}
	if result.Breakdown[1].UserAnswer != domain.NotAnswered {
		t.Fatalf("expected second question unanswered, got %+v", result.Breakdown[1])
	}

	send(t, conn, map[string]any{"type": "save"})
	var saved savedPayload
	decodePayload(t, readUntil(t, conn, "saved"), &saved)
	if saved.ID == "" {
		t.Fatalf("expected saved id")
	}

	send(t, conn, map[string]any{"type": "leaderboard", "payload": map[string]any{"filter": "today"}})
	var view domain.LeaderboardView
	decodePayload(t, readUntil(t, conn, "leaderboard"), &view)
	if len(view.Entries) != 1 || view.Entries[0].Record.Player != "Alice" || view.Entries[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard %+v", view)
	}
}

func TestWebSocketRejectsBadStart(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), zap.NewNop(), RouterConfig{}))
	defer server.Close()

	conn := dial(t, server, "/ws")
	defer conn.Close()

	send(t, conn, map[string]any{
		"type":    "start",
		"payload": map[string]any{"player": "   ", "totalQuestions": 5, "timePerQuestion": 30},
	})
	var payload errorPayload
	decodePayload(t, readUntil(t, conn, "error"), &payload)
	if payload.Code != "validation" {
		t.Fatalf("expected validation error, got %+v", payload)
	}

	send(t, conn, map[string]any{"type": "save"})
	decodePayload(t, readUntil(t, conn, "error"), &payload)
	if payload.Code != "session_not_found" {
		t.Fatalf("expected session_not_found, got %+v", payload)
	}
}

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %v: %v", msg["type"], err)
	}
}

// readUntil skips state pushes and other messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) wireMessage {
	t.Helper()
	for i := 0; i < 50; i++ {
		var msg wireMessage
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg
		}
	}
	t.Fatalf("no %s message received", want)
	return wireMessage{}
}

func decodePayload(t *testing.T, msg wireMessage, target any) {
	t.Helper()
	if err := json.Unmarshal(msg.Payload, target); err != nil {
		t.Fatalf("decode %s payload: %v", msg.Type, err)
	}
}

func newTestService() *app.QuizService {
	return app.NewQuizService(
		memory.NewSessionStore(),
		memory.NewStaticPoolLoader(domain.FallbackQuestions()),
		memory.NewScoreStore(),
		app.WithTimings(time.Second, time.Hour),
	)
}
