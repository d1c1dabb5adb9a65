package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

type WSHandler struct {
	service      *app.QuizService
	log          *zap.Logger
	defaultLimit int
	upgrader     websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log *zap.Logger, defaultLimit int) *WSHandler {
	return &WSHandler{
		service:      service,
		log:          log,
		defaultLimit: defaultLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Player          string `json:"player"`
	TotalQuestions  int    `json:"totalQuestions"`
	TimePerQuestion int    `json:"timePerQuestion"`
}

type selectPayload struct {
	QuestionIndex int `json:"questionIndex"`
	OptionIndex   int `json:"optionIndex"`
}

type navigatePayload struct {
	Direction domain.Direction `json:"direction"`
}

type leaderboardPayload struct {
	Filter string `json:"filter"`
	Limit  int    `json:"limit"`
}

type resultPayload struct {
	Record    domain.ScoreRecord      `json:"record"`
	Breakdown []domain.QuestionResult `json:"breakdown"`
}

type savedPayload struct {
	ID string `json:"id"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one quiz session per
// connection. Starting again on the same connection discards the previous session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	defaultPlayer := r.URL.Query().Get("name")

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var forwarders sync.WaitGroup

	go func() {
		defer close(writerDone)
		failed := false
		// Keep draining after a write error so producers never block.
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				failed = true
			}
		}
	}()

	var (
		sessionID     string
		cancelUpdates func()
	)
	endSession := func() {
		if cancelUpdates != nil {
			cancelUpdates()
			cancelUpdates = nil
		}
		if sessionID != "" {
			h.service.End(ctx, sessionID)
			sessionID = ""
		}
	}
	forward := func(updates <-chan domain.SessionSnapshot) {
		defer forwarders.Done()
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}
	sendError := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			payload := startPayload{Player: defaultPlayer}
			if !h.decode(inbound, &payload, send) {
				continue
			}
			endSession()
			snap, err := h.service.Start(ctx, payload.Player, payload.TotalQuestions, payload.TimePerQuestion)
			if err != nil {
				sendError(err)
				continue
			}
			updates, cancel, err := h.service.Subscribe(ctx, snap.ID)
			if err != nil {
				sendError(err)
				continue
			}
			sessionID, cancelUpdates = snap.ID, cancel
			send <- outboundMessage[any]{Type: "started", Payload: snap}
			forwarders.Add(1)
			go forward(updates)
		case "select":
			var payload selectPayload
			if !h.decode(inbound, &payload, send) {
				continue
			}
			if _, _, err := h.service.SelectAnswer(ctx, sessionID, payload.QuestionIndex, payload.OptionIndex); err != nil {
				sendError(err)
			}
		case "navigate":
			var payload navigatePayload
			if !h.decode(inbound, &payload, send) {
				continue
			}
			if _, _, err := h.service.Navigate(ctx, sessionID, payload.Direction); err != nil {
				sendError(err)
			}
		case "submit", "results":
			if inbound.Type == "submit" {
				if _, err := h.service.Submit(ctx, sessionID); err != nil {
					sendError(err)
					continue
				}
			}
			result, err := h.result(ctx, sessionID)
			if err != nil {
				sendError(err)
				continue
			}
			send <- outboundMessage[any]{Type: "result", Payload: result}
		case "save":
			id, err := h.service.SaveScore(ctx, sessionID)
			if err != nil {
				sendError(err)
				continue
			}
			send <- outboundMessage[any]{Type: "saved", Payload: savedPayload{ID: id}}
		case "leaderboard":
			var payload leaderboardPayload
			if !h.decode(inbound, &payload, send) {
				continue
			}
			filter, err := domain.ParseLeaderboardFilter(payload.Filter)
			if err != nil {
				sendError(err)
				continue
			}
			limit := payload.Limit
			if limit <= 0 {
				limit = h.defaultLimit
			}
			view, err := h.service.Leaderboard(ctx, filter, limit)
			if err != nil {
				sendError(err)
				continue
			}
			send <- outboundMessage[any]{Type: "leaderboard", Payload: view}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	endSession()
	forwarders.Wait()
	close(send)
	<-writerDone
}

// decode unmarshals an optional payload, reporting malformed input to the client.
func (h *WSHandler) decode(inbound inboundMessage, target any, send chan<- outboundMessage[any]) bool {
	if len(inbound.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(inbound.Payload, target); err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid " + inbound.Type + " payload"}}
		return false
	}
	return true
}

// result reads the outcome of an already submitted session.
func (h *WSHandler) result(ctx context.Context, sessionID string) (resultPayload, error) {
	breakdown, err := h.service.Results(ctx, sessionID)
	if err != nil {
		return resultPayload{}, err
	}
	record, err := h.service.Submit(ctx, sessionID)
	if err != nil {
		return resultPayload{}, err
	}
	return resultPayload{Record: record, Breakdown: breakdown}, nil
}

func toErrorPayload(err error) errorPayload {
	code := "internal"
	switch {
	case domain.IsValidation(err):
		code = "validation"
	case errors.Is(err, domain.ErrSessionNotFound):
		code = "session_not_found"
	case errors.Is(err, domain.ErrSessionNotSubmitted):
		code = "not_submitted"
	case errors.Is(err, domain.ErrStoreUnavailable):
		code = "store_unavailable"
	}
	return errorPayload{Code: code, Message: err.Error()}
}
