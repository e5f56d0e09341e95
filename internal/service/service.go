package service

import (
	"context"

	"github.com/medimeet/rtc-backend/internal/domain"
	"github.com/pion/webrtc/v3"
)

// RoomCoordinator is what the websocket layer needs from the room subsystem:
// admission checks, membership, signal relay and room status.
type RoomCoordinator interface {
	// Verify checks the join code and password against the persisted store.
	// It must succeed before Register is called for that join code.
	Verify(ctx context.Context, joinCode int, password string) error

	// Register adds a connection to the room for joinCode, creating the
	// in-memory room on first join. The new client is sent the WebRTC
	// configuration and the current participants list before existing
	// members learn about the join. It fails only when the join keeps
	// losing the race against the room being torn down.
	Register(ctx context.Context, joinCode int, client *domain.Client) (*domain.Room, error)

	// Unregister removes a connection, notifies the remaining members and
	// closes the room when it becomes empty. Unknown ids are a no-op.
	Unregister(ctx context.Context, joinCode int, clientID string)

	// HandleSignal dispatches one raw inbound message from a client.
	// Malformed or unroutable messages are dropped, never fatal.
	HandleSignal(room *domain.Room, sender *domain.Client, data []byte)

	// Status reports a live room's participant count and activity times.
	Status(joinCode int) (domain.RoomStatus, bool)

	ICEServers() []webrtc.ICEServer

	// Shutdown stops the idle sweep and closes every open room.
	Shutdown()
}
