package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quizgen-service/internal/app"
)

// MonitorHandler streams attempt events of one quiz to a proctor.
type MonitorHandler struct {
	monitor  *app.Monitor
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewMonitorHandler(monitor *app.Monitor, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor:  monitor,
		upgrader: newUpgrader(),
		log:      log.With().Str("component", "ws_monitor").Logger(),
	}
}

func (h *MonitorHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.monitor.Subscribe(quizID)
	defer cancel()

	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(outboundMessage[app.MonitorEvent]{Type: "event", Payload: ev}); err != nil {
					h.log.Debug().Err(err).Str("quiz_id", quizID).Msg("ws write error")
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Proctors only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-writerDone
}
