package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quizgen-service/internal/app"
	"quizgen-service/internal/domain"
)

// WSHandler runs one attempt per websocket connection.
type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(service *app.AttemptService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		upgrader: newUpgrader(),
		log:      log.With().Str("component", "ws_attempt").Logger(),
	}
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Index int    `json:"index"`
	Value string `json:"value"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type integrityPayload struct {
	Kind domain.IntegrityKind `json:"kind"`
}

type reviewPayload struct {
	Unanswered int             `json:"unanswered"`
	State      app.AttemptView `json:"state"`
}

type warningPayload struct {
	Kind  domain.IntegrityKind `json:"kind"`
	Count int                  `json:"count"`
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

// ServeWS upgrades HTTP requests to websockets and drives one attempt.
// Closing the socket before submitting abandons the attempt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	learnerID := r.URL.Query().Get("learnerId")
	if quizID == "" || learnerID == "" {
		http.Error(w, "missing quizId or learnerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	view, err := h.service.Start(ctx, quizID, learnerID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	attemptID := view.AttemptID
	defer h.service.Abandon(ctx, attemptID)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("attempt_id", attemptID).Msg("ws write error")
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "state", Payload: view}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		msg := h.handle(r, attemptID, inbound)
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	close(send)
	<-writerDone
}

func (h *WSHandler) handle(r *http.Request, attemptID string, inbound inboundMessage) outboundMessage[any] {
	ctx := r.Context()
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
		}
		view, err := h.service.SelectAnswer(ctx, attemptID, payload.Index, payload.Value)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "state", Payload: view}
	case "navigate":
		var payload navigatePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid navigate payload"}}
		}
		view, err := h.service.Navigate(ctx, attemptID, payload.Index)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "state", Payload: view}
	case "review":
		view, unanswered, err := h.service.EnterReview(ctx, attemptID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "review", Payload: reviewPayload{Unanswered: unanswered, State: view}}
	case "integrity":
		var payload integrityPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid integrity payload"}}
			}
		}
		if payload.Kind == "" {
			payload.Kind = domain.TabSwitch
		}
		if !payload.Kind.Valid() {
			return errorMessage(domain.ErrUnsupportedIntegrityKind)
		}
		count, err := h.service.RecordIntegritySignal(ctx, attemptID, payload.Kind)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "warning", Payload: warningPayload{Kind: payload.Kind, Count: count}}
	case "submit":
		result, err := h.service.Submit(ctx, attemptID)
		if err != nil {
			h.log.Error().Err(err).Str("attempt_id", attemptID).Msg("submit failed")
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "result", Payload: result}
	default:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
}
