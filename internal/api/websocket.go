package api

import (
	"log"
	"net/http"

	"backtest-core/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage wraps a bus payload with its topic for the client.
type wsMessage struct {
	Event   events.Event `json:"event"`
	Payload any          `json:"payload"`
}

// websocket streams run and batch lifecycle events to the client.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	topics := []events.Event{
		events.EventRunStarted,
		events.EventRunCompleted,
		events.EventRunFailed,
		events.EventBatchStarted,
		events.EventBatchProgress,
		events.EventBatchCompleted,
	}

	merged := make(chan wsMessage, 100)
	for _, topic := range topics {
		stream, unsub := s.Bus.Subscribe(topic, 100)
		defer unsub()
		go func(topic events.Event, stream <-chan any) {
			for msg := range stream {
				select {
				case merged <- wsMessage{Event: topic, Payload: msg}:
				default:
					// drop if the client cannot keep up
				}
			}
		}(topic, stream)
	}

	for msg := range merged {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
