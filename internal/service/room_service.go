package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/medimeet/rtc-backend/internal/domain"
	"github.com/medimeet/rtc-backend/internal/repository"
	"github.com/medimeet/rtc-backend/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

// ErrRoomClosing means a join kept colliding with room teardown and gave up.
var ErrRoomClosing = errors.New("room is closing")

// registerAttempts bounds how often a join may lose the race against a room
// being reclaimed before it fails.
const registerAttempts = 3

// Options tune room reclamation and the advertised ICE servers.
type Options struct {
	IdleThreshold time.Duration
	SweepInterval time.Duration
	ICEServers    []webrtc.ICEServer
}

// RoomService owns every live room in the process. Credentials are checked
// against the persisted store once, at admission; after that all hot-path
// state (membership, media flags, activity) lives in memory only.
type RoomService struct {
	repo repository.RoomRepository
	log  *slog.Logger
	opts Options

	mu    sync.Mutex
	rooms map[int]*domain.Room

	sweepOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

func NewRoomService(repo repository.RoomRepository, log *slog.Logger, opts Options) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = 30 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	return &RoomService{
		repo:  repo,
		log:   log,
		opts:  opts,
		rooms: make(map[int]*domain.Room),
		stop:  make(chan struct{}),
	}
}

func (s *RoomService) Verify(ctx context.Context, joinCode int, password string) error {
	const op = "service.room.verify"

	_, err := s.repo.FindRoom(ctx, joinCode, password)
	if err != nil {
		s.log.With(slog.String("op", op), slog.Int("join_code", joinCode)).
			Warn("room verification failed", sl.Err(err))
		return err
	}
	return nil
}

func (s *RoomService) Register(ctx context.Context, joinCode int, client *domain.Client) (*domain.Room, error) {
	const op = "service.room.register"
	log := s.log.With(
		slog.String("op", op),
		slog.Int("join_code", joinCode),
		slog.String("client_id", client.ID),
	)

	// The room pointer is resolved under the registry lock but joined
	// outside it, so a concurrent teardown can close the room in between.
	// A closed room refuses the add; look the join code up again and a
	// fresh room takes its place.
	var room *domain.Room
	for attempt := 0; ; attempt++ {
		if attempt == registerAttempts {
			log.Warn("join kept colliding with room teardown")
			return nil, ErrRoomClosing
		}

		s.mu.Lock()
		candidate, ok := s.rooms[joinCode]
		if !ok {
			candidate = domain.NewRoom(joinCode)
			s.rooms[joinCode] = candidate
			log.Info("room activated")
		}
		s.mu.Unlock()

		if candidate.AddClient(client) {
			room = candidate
			break
		}
	}

	now := time.Now().UTC()

	if err := s.repo.RecordActivity(ctx, joinCode, now); err != nil {
		log.Warn("failed to record room activity", sl.Err(err))
	}

	// The joiner must see the configuration and the roster before anyone
	// else learns about the join.
	client.EnqueueJSON(domain.NewWebRTCConfigEvent(s.opts.ICEServers))
	client.EnqueueJSON(domain.NewParticipantsListEvent(room.Participants()))

	s.broadcast(room, domain.NewUserJoinedEvent(client, now), client.ID)

	log.Info("client registered",
		slog.String("user_id", client.UserID),
		slog.String("username", client.Username),
		slog.Int("participants", room.Len()),
	)

	s.sweepOnce.Do(func() {
		s.wg.Add(1)
		go s.sweepLoop()
	})

	return room, nil
}

func (s *RoomService) Unregister(ctx context.Context, joinCode int, clientID string) {
	const op = "service.room.unregister"
	log := s.log.With(
		slog.String("op", op),
		slog.Int("join_code", joinCode),
		slog.String("client_id", clientID),
	)

	s.mu.Lock()
	room, ok := s.rooms[joinCode]
	s.mu.Unlock()
	if !ok {
		return
	}

	client, empty, removed := room.RemoveClient(clientID)
	if !removed {
		return
	}

	client.Close()
	log.Info("client unregistered", slog.String("username", client.Username))

	s.broadcast(room, domain.NewUserLeftEvent(client, time.Now().UTC()), clientID)

	if empty {
		s.closeRoom(ctx, joinCode, "empty")
	}
}

// closeRoom removes the room from the registry, marks it closed against
// late joins and best-effort-closes every remaining connection. Closing an
// already-absent room is a no-op.
func (s *RoomService) closeRoom(ctx context.Context, joinCode int, reason string) {
	s.mu.Lock()
	room, ok := s.rooms[joinCode]
	if ok {
		delete(s.rooms, joinCode)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	for _, client := range room.CloseMembership() {
		client.Close()
	}

	if err := s.repo.RecordActivity(ctx, joinCode, time.Now().UTC()); err != nil {
		s.log.Warn("failed to record room activity on close",
			slog.Int("join_code", joinCode), sl.Err(err))
	}

	s.log.Info("room closed",
		slog.Int("join_code", joinCode),
		slog.String("reason", reason),
	)
}

func (s *RoomService) Status(joinCode int) (domain.RoomStatus, bool) {
	s.mu.Lock()
	room, ok := s.rooms[joinCode]
	s.mu.Unlock()
	if !ok {
		return domain.RoomStatus{}, false
	}
	return room.Status(), true
}

func (s *RoomService) ICEServers() []webrtc.ICEServer {
	return s.opts.ICEServers
}

// Shutdown stops the sweep loop and closes every open room.
func (s *RoomService) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()

	s.mu.Lock()
	codes := make([]int, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	s.mu.Unlock()

	for _, code := range codes {
		s.closeRoom(context.Background(), code, "shutdown")
	}
}

func (s *RoomService) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now().UTC())
		}
	}
}

// sweep closes every room idle past the threshold, connected members or not.
// Stale entries whose sockets died without unregistering are reclaimed here.
func (s *RoomService) sweep(now time.Time) {
	s.mu.Lock()
	idle := make([]int, 0)
	for code, room := range s.rooms {
		if room.IdleSince(now, s.opts.IdleThreshold) {
			idle = append(idle, code)
		}
	}
	s.mu.Unlock()

	for _, code := range idle {
		s.closeRoom(context.Background(), code, "idle")
	}
}

// broadcast delivers an event to every room member except exclude.
func (s *RoomService) broadcast(room *domain.Room, event any, exclude string) {
	data, err := json.Marshal(event)
	if err != nil {
		s.log.Error("failed to encode broadcast event", sl.Err(err))
		return
	}
	s.broadcastRaw(room, data, exclude)
}

// broadcastRaw delivers raw bytes to every room member except exclude.
// Delivery is over a snapshot of the membership; a failed delivery
// unregisters that one peer and never aborts the rest.
func (s *RoomService) broadcastRaw(room *domain.Room, data []byte, exclude string) {
	for _, client := range room.Clients() {
		if client.ID == exclude {
			continue
		}
		if !client.Enqueue(data) {
			s.log.Warn("dropping unreachable client",
				slog.Int("join_code", room.JoinCode),
				slog.String("client_id", client.ID),
			)
			s.Unregister(context.Background(), room.JoinCode, client.ID)
		}
	}
}
