package domain

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendQueueSize = 32

	// closeGrace is how long the write pump gets to flush its close frame
	// before the socket is torn down underneath it.
	closeGrace = 250 * time.Millisecond
)

// Client is one active websocket connection inside a room. The id is opaque
// and process-local; user id and display name come from the identification
// message the client sends right after the upgrade.
type Client struct {
	ID       string
	UserID   string
	Username string

	// Socket is nil in tests; the session owns all reads and writes on it.
	Socket *websocket.Conn

	mu       sync.RWMutex
	media    MediaState
	lastPong time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// MediaState mirrors the client-reported audio/video toggles.
type MediaState struct {
	VideoEnabled bool `json:"isVideoEnabled"`
	AudioEnabled bool `json:"isAudioEnabled"`
}

func NewClient(userID, username string, socket *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Username: username,
		Socket:   socket,
		lastPong: time.Now().UTC(),
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}
}

// Enqueue queues raw bytes for delivery to this client. It never blocks: a
// closed client or a full queue drops the message and reports false, so a
// slow or dead peer cannot stall a broadcaster.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) EnqueueJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return c.Enqueue(data)
}

// Send is drained by the session's write pump.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Done is closed exactly once when the client is shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the client down. done is closed first so the write pump can
// send a proper close frame; the socket follows after a short grace, which
// also unblocks a pending read when no pump is running. Safe to call from
// any goroutine, any number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Socket == nil {
			return
		}
		sock := c.Socket
		time.AfterFunc(closeGrace, func() {
			_ = sock.Close()
		})
	})
}

func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) SetMediaState(state MediaState) {
	c.mu.Lock()
	c.media = state
	c.mu.Unlock()
}

func (c *Client) MediaState() MediaState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.media
}

// TouchPong records a heartbeat response from the client.
func (c *Client) TouchPong() {
	c.mu.Lock()
	c.lastPong = time.Now().UTC()
	c.mu.Unlock()
}

func (c *Client) LastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong
}
