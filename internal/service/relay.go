package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/medimeet/rtc-backend/internal/domain"
	"github.com/medimeet/rtc-backend/lib/logger/sl"
)

// HandleSignal dispatches one raw inbound message by its type field. Every
// failure here is local to the message: it is logged and dropped, the
// connection stays open and the sender is never told.
func (s *RoomService) HandleSignal(room *domain.Room, sender *domain.Client, data []byte) {
	const op = "service.room.signal"
	log := s.log.With(
		slog.String("op", op),
		slog.Int("join_code", room.JoinCode),
		slog.String("client_id", sender.ID),
	)

	room.Touch()

	msg, err := domain.DecodeInbound(data)
	if err != nil {
		log.Warn("dropping unparseable message", sl.Err(err))
		return
	}

	switch msg.Type {
	case domain.TypePong:
		sender.TouchPong()

	case domain.TypeOffer:
		// An offer without a target is a signaling hint for the whole room.
		target, ok := msg.TargetClient()
		if !ok {
			s.broadcastRaw(room, msg.Raw, sender.ID)
			return
		}
		s.unicast(room, target, msg.Raw, log)

	case domain.TypeAnswer, domain.TypeICECandidate:
		target, ok := msg.TargetClient()
		if !ok {
			log.Warn("dropping message without to_client", slog.String("type", msg.Type))
			return
		}
		s.unicast(room, target, msg.Raw, log)

	case domain.TypeChat:
		content, err := msg.ChatContent()
		if err != nil {
			log.Warn("dropping chat message without content")
			return
		}
		event := domain.NewChatEvent(sender.Username, content, time.Now().UTC())
		s.broadcast(room, event, sender.ID)

	case domain.TypeAudioVideoState:
		state, err := msg.MediaStatePayload()
		if err != nil {
			log.Warn("dropping incomplete media state update")
			return
		}
		sender.SetMediaState(state)
		s.broadcast(room, domain.NewParticipantsListEvent(room.Participants()), "")
		s.broadcast(room, domain.NewMediaStateUpdateEvent(sender), sender.ID)

	default:
		log.Warn("dropping message of unknown type", slog.String("type", msg.Type))
	}
}

// unicast forwards raw bytes to one named peer. A stale or unknown target is
// dropped silently towards the sender so peer presence is not leaked.
func (s *RoomService) unicast(room *domain.Room, targetID string, data []byte, log *slog.Logger) {
	target, ok := room.Client(targetID)
	if !ok {
		log.Warn("target client not found", slog.String("to_client", targetID))
		return
	}
	if !target.Enqueue(data) {
		log.Warn("dropping unreachable target client", slog.String("to_client", targetID))
		s.Unregister(context.Background(), room.JoinCode, targetID)
	}
}
