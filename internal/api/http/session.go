package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/medimeet/rtc-backend/internal/domain"
	"github.com/medimeet/rtc-backend/internal/service"
	"github.com/medimeet/rtc-backend/lib/logger/sl"
)

const (
	writeWait = 10 * time.Second

	// Big enough for WebRTC session descriptions.
	maxMessageSize = 64 * 1024
)

// session drives one registered connection: the read pump feeds inbound
// messages to the relay, the write pump drains the client's send queue and
// emits the periodic heartbeat. Either pump exiting tears the session down.
type session struct {
	conn      *websocket.Conn
	client    *domain.Client
	room      *domain.Room
	rooms     service.RoomCoordinator
	log       *slog.Logger
	heartbeat time.Duration
}

func (s *session) run() {
	go s.writePump()
	s.readPump()
}

// readPump owns all reads on the connection. Any read error means the
// transport is gone, so teardown runs exactly once from here.
func (s *session) readPump() {
	defer func() {
		s.rooms.Unregister(context.Background(), s.room.JoinCode, s.client.ID)
		s.client.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("connection read failed", sl.Err(err))
			}
			return
		}
		s.rooms.HandleSignal(s.room, s.client, data)
	}
}

// writePump owns all writes on the connection. It runs until the client is
// closed or a write fails; the heartbeat ticker is independent of the read
// loop so a quiet room still probes liveness.
func (s *session) writePump() {
	ticker := time.NewTicker(s.heartbeat)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	ping, _ := json.Marshal(domain.NewPingEvent())

	for {
		select {
		case <-s.client.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed"))
			return

		case data := <-s.client.Send():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Warn("connection write failed", sl.Err(err))
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		}
	}
}
