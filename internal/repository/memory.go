package repository

import (
	"context"
	"sync"
	"time"

	"github.com/medimeet/rtc-backend/internal/domain"
)

// InMemoryRoomRepository backs the signaling core without a database. Used in
// tests and for local runs where no postgres is around.
type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[int]*domain.RoomRecord
}

func NewInMemoryRoomRepository() *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms: make(map[int]*domain.RoomRecord),
	}
}

// Add seeds a persisted room record.
func (r *InMemoryRoomRepository) Add(record *domain.RoomRecord) {
	r.mu.Lock()
	r.rooms[record.JoinCode] = record
	r.mu.Unlock()
}

func (r *InMemoryRoomRepository) FindRoom(ctx context.Context, joinCode int, password string) (*domain.RoomRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.rooms[joinCode]
	if !ok || record.Password != password {
		return nil, ErrRoomNotFound
	}

	copied := *record
	return &copied, nil
}

func (r *InMemoryRoomRepository) RecordActivity(ctx context.Context, joinCode int, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.rooms[joinCode]
	if !ok {
		return ErrRoomNotFound
	}

	record.LastActivity = at.UTC()
	return nil
}
