package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
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
	TopicIDs         []int64               `json:"topicIds"`
	Types            []domain.QuestionType `json:"types"`
	Difficulty       domain.Difficulty     `json:"difficulty"`
	Count            int                   `json:"count"`
	Mode             domain.Mode           `json:"mode"`
	PrioritizeUnseen bool                  `json:"prioritizeUnseen"`
}

// answerPayload carries either a questionId with a full answer, or a bare token
// that answers the next pending question.
type answerPayload struct {
	AttemptID  uuid.UUID      `json:"attemptId"`
	QuestionID int64          `json:"questionId"`
	Answer     map[string]any `json:"answer"`
	Token      string         `json:"token"`
}

type attemptRef struct {
	AttemptID uuid.UUID `json:"attemptId"`
}

type historyPayload struct {
	Mode   domain.Mode `json:"mode"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

type answerResult struct {
	AttemptID    uuid.UUID `json:"attemptId"`
	QuestionID   int64     `json:"questionId"`
	Correct      bool      `json:"correct"`
	CorrectCount int       `json:"correctCount"`
	Explanation  string    `json:"explanation,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
}

func errorMessage(err error) outboundMessage[any] {
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindInternal {
		log.Printf("ws request failed: %v", err)
		msg = "internal error"
	}
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg, Code: statusCode(kind), Kind: kind.String()}}
}

func badRequest(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message, Code: http.StatusBadRequest, Kind: domain.KindBadRequest.String()}}
}

func statusCode(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ServeWS upgrades HTTP requests to websockets and serves attempt requests for one user.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || ownerID <= 0 {
		http.Error(w, "missing or invalid userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// single writer; gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		send <- h.handle(r.Context(), ownerID, inbound)
	}

	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, ownerID int64, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "start":
		var payload startPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return badRequest("invalid start payload")
		}
		started, err := h.service.StartAttempt(ctx, ownerID, app.StartRequest{
			TopicIDs:         payload.TopicIDs,
			Types:            payload.Types,
			Difficulty:       payload.Difficulty,
			Count:            payload.Count,
			Mode:             payload.Mode,
			PrioritizeUnseen: payload.PrioritizeUnseen,
		})
		if err != nil {
			return errorMessage(err)
		}
		for i, q := range started.Questions {
			started.Questions[i] = q.Redacted()
		}
		return outboundMessage[any]{Type: "attempt", Payload: started}

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return badRequest("invalid answer payload")
		}
		var (
			res domain.AnswerResult
			err error
		)
		if payload.QuestionID == 0 && payload.Token != "" {
			res, err = h.service.SubmitAnswerByPosition(ctx, payload.AttemptID, ownerID, payload.Token)
		} else {
			answer := domain.ParseAnswerPayload(payload.Answer)
			if payload.Token != "" && answer.Kind == domain.AnswerUnknown {
				answer = domain.SimplifiedToken(payload.Token)
			}
			res, err = h.service.SubmitAnswer(ctx, payload.AttemptID, ownerID, payload.QuestionID, answer)
		}
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "answerResult", Payload: answerResult{
			AttemptID:    payload.AttemptID,
			QuestionID:   res.Question.ID,
			Correct:      res.Answer.Correct,
			CorrectCount: res.CorrectCount,
			Explanation:  res.Question.Explanation,
		}}

	case "finish", "result":
		var payload attemptRef
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return badRequest("invalid attempt reference")
		}
		var (
			report domain.Report
			err    error
		)
		if inbound.Type == "finish" {
			report, err = h.service.FinishAttempt(ctx, payload.AttemptID, ownerID)
		} else {
			report, err = h.service.GetResult(ctx, payload.AttemptID, ownerID)
		}
		if err != nil {
			return errorMessage(err)
		}
		if report.FinishedAt == nil {
			for i, entry := range report.Questions {
				report.Questions[i].Question = entry.Question.Redacted()
			}
		}
		return outboundMessage[any]{Type: "result", Payload: report}

	case "attempt":
		var payload attemptRef
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return badRequest("invalid attempt reference")
		}
		detail, err := h.service.GetAttempt(ctx, payload.AttemptID, ownerID)
		if err != nil {
			return errorMessage(err)
		}
		if !detail.Attempt.Finished() {
			for i, q := range detail.Questions {
				detail.Questions[i] = q.Redacted()
			}
		}
		return outboundMessage[any]{Type: "attemptDetail", Payload: detail}

	case "history":
		var payload historyPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return badRequest("invalid history payload")
			}
		}
		entries, err := h.service.ListHistory(ctx, ownerID, payload.Mode, payload.Limit, payload.Offset)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "history", Payload: entries}

	case "stats":
		stats, err := h.service.DashboardStats(ctx, ownerID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "stats", Payload: stats}

	default:
		return badRequest("unsupported message type")
	}
}
