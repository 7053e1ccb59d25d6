package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"therapist-match-service/internal/app"
	"therapist-match-service/internal/domain"
	"github.com/gorilla/websocket"
)

// QuizSocket serves the quiz-taking flow for one respondent per connection.
type QuizSocket struct {
	attempts *app.AttemptService
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewQuizSocket(attempts *app.AttemptService, logger *slog.Logger) *QuizSocket {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizSocket{
		attempts: attempts,
		log:      logger,
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

type answerPayload struct {
	QuestionID int64 `json:"questionId"`
	AnswerID   int64 `json:"answerId"`
}

type quizPayload struct {
	Attempt  domain.Attempt  `json:"attempt"`
	Draft    domain.Draft    `json:"draft"`
	Progress domain.Progress `json:"progress"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

// ServeWS upgrades the request and runs one attempt over the connection. A submitted
// attempt is closed; the socket stays open and further answers fail until reconnect.
func (h *QuizSocket) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.ParseInt(r.URL.Query().Get("quizId"), 10, 64)
	if err != nil || quizID <= 0 {
		http.Error(w, "missing or invalid quizId", http.StatusBadRequest)
		return
	}
	attemptID := r.URL.Query().Get("attemptId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	attempt, draft, err := h.attempts.Start(ctx, quizID, attemptID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	log := h.log.With("quiz_id", quizID, "attempt_id", attempt.ID)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write failed", "err", err)
				return
			}
		}
	}()

	opened := deliver(send, writerDone, outboundMessage[any]{Type: "quiz", Payload: quizPayload{
		Attempt:  attempt,
		Draft:    draft,
		Progress: domain.Progress{AttemptID: attempt.ID, Answered: len(attempt.Choices), Total: len(draft.Data.Questions)},
	}})

	for opened {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !deliver(send, writerDone, h.handle(ctx, attempt.ID, inbound)) {
			break
		}
	}

	close(send)
	<-writerDone
}

// deliver queues msg for the writer and reports false once the writer has stopped.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func (h *QuizSocket) handle(ctx context.Context, attemptID string, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
		}
		progress, err := h.attempts.Choose(ctx, attemptID, payload.QuestionID, payload.AnswerID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "progress", Payload: progress}
	case "submit":
		matches, err := h.attempts.Submit(ctx, attemptID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "matches", Payload: matchResponse{Matches: matches}}
	default:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
}
