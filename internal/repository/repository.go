package repository

import (
	"context"
	"errors"
	"time"

	"github.com/medimeet/rtc-backend/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository is the persisted room store. Room rows are provisioned by
// the scheduling surface outside this service; the signaling core reads them
// to authorize connections and writes last_activity.
type RoomRepository interface {
	// FindRoom returns the room matching both join code and password exactly.
	// Any mismatch yields ErrRoomNotFound without telling which field was wrong.
	FindRoom(ctx context.Context, joinCode int, password string) (*domain.RoomRecord, error)

	// RecordActivity stamps the persisted row with the given activity time.
	RecordActivity(ctx context.Context, joinCode int, at time.Time) error
}
