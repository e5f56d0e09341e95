package domain

import (
	"sync"
	"time"
)

// Room is the in-memory state of one live consultation room. It is owned by
// the room coordinator; all membership mutations go through its methods so
// that concurrent joins, leaves and broadcast snapshots never race.
type Room struct {
	JoinCode  int
	CreatedAt time.Time

	mu           sync.RWMutex
	clients      map[string]*Client
	closed       bool
	lastActivity time.Time
}

// RoomRecord is the persisted room row. Rows are created and deleted by the
// provisioning surface outside this service; we only read them for admission
// and write last_activity.
type RoomRecord struct {
	JoinCode     int
	RoomName     string
	Password     string
	LastActivity time.Time
}

// RoomStatus is a point-in-time summary of a live room.
type RoomStatus struct {
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func NewRoom(joinCode int) *Room {
	now := time.Now().UTC()
	return &Room{
		JoinCode:     joinCode,
		CreatedAt:    now,
		clients:      make(map[string]*Client),
		lastActivity: now,
	}
}

// AddClient attaches a client. It reports false once the room has been
// closed; the caller must then re-enter through the registry, which no
// longer holds this room.
func (r *Room) AddClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	r.clients[c.ID] = c
	r.lastActivity = time.Now().UTC()
	return true
}

// CloseMembership marks the room closed and returns the final membership.
// Every AddClient from here on is refused, so a join that raced the
// teardown either lands in this snapshot or retries against a fresh room.
func (r *Room) CloseMembership() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// RemoveClient detaches a client by id. It reports whether the client was
// present and whether the room is empty afterwards, so a second removal of
// the same id stays a no-op.
func (r *Room) RemoveClient(clientID string) (client *Client, empty bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok = r.clients[clientID]
	if !ok {
		return nil, len(r.clients) == 0, false
	}

	delete(r.clients, clientID)
	r.lastActivity = time.Now().UTC()
	return client, len(r.clients) == 0, true
}

func (r *Room) Client(clientID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[clientID]
	return c, ok
}

// Clients returns a snapshot of the current membership. Broadcasters iterate
// the snapshot, never the live map.
func (r *Room) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Participants returns the membership with media state, in the shape emitted
// as a participants_list event.
func (r *Room) Participants() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participants := make([]Participant, 0, len(r.clients))
	for _, c := range r.clients {
		media := c.MediaState()
		participants = append(participants, Participant{
			ClientID:     c.ID,
			UserID:       c.UserID,
			Username:     c.Username,
			VideoEnabled: media.VideoEnabled,
			AudioEnabled: media.AudioEnabled,
		})
	}
	return participants
}

// Touch marks the room active now.
func (r *Room) Touch() {
	r.mu.Lock()
	r.lastActivity = time.Now().UTC()
	r.mu.Unlock()
}

func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// IdleSince reports whether the room has seen no traffic for longer than the
// given threshold.
func (r *Room) IdleSince(now time.Time, threshold time.Duration) bool {
	return now.Sub(r.LastActivity()) > threshold
}

func (r *Room) Status() RoomStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomStatus{
		Participants: len(r.clients),
		CreatedAt:    r.CreatedAt,
		LastActivity: r.lastActivity,
	}
}
