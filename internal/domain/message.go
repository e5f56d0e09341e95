package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/pion/webrtc/v3"
)

// Message kinds accepted from clients.
const (
	TypePong            = "pong"
	TypeOffer           = "offer"
	TypeAnswer          = "answer"
	TypeICECandidate    = "ice_candidate"
	TypeChat            = "chat"
	TypeAudioVideoState = "audioVideoState"
)

// Event kinds emitted by the server.
const (
	TypeWebRTCConfig     = "webrtc_config"
	TypeParticipantsList = "participants_list"
	TypeUserJoined       = "user_joined"
	TypeUserLeft         = "user_left"
	TypeMediaStateUpdate = "media_state_update"
	TypePing             = "ping"
)

var (
	ErrMissingType  = errors.New("message type is missing")
	ErrMissingField = errors.New("required field is missing")
)

// Inbound is one decoded wire message from a client. Raw keeps the original
// bytes so offer/answer/ice_candidate payloads are forwarded verbatim; the
// per-kind accessors below pull out exactly the fields each kind requires.
// Unrecognized types decode fine and are left to the relay to log and drop.
type Inbound struct {
	Type string
	Raw  json.RawMessage
}

func DecodeInbound(data []byte) (*Inbound, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	if head.Type == "" {
		return nil, ErrMissingType
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	return &Inbound{Type: head.Type, Raw: raw}, nil
}

// TargetClient extracts the to_client field of offer/answer/ice_candidate
// messages. ok is false when the field is absent or empty.
func (m *Inbound) TargetClient() (target string, ok bool) {
	var payload struct {
		ToClient *string `json:"to_client"`
	}
	if err := json.Unmarshal(m.Raw, &payload); err != nil {
		return "", false
	}
	if payload.ToClient == nil || *payload.ToClient == "" {
		return "", false
	}
	return *payload.ToClient, true
}

// ChatContent extracts the content field of a chat message.
func (m *Inbound) ChatContent() (string, error) {
	var payload struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(m.Raw, &payload); err != nil {
		return "", err
	}
	if payload.Content == nil {
		return "", ErrMissingField
	}
	return *payload.Content, nil
}

// MediaStatePayload extracts both media flags of an audioVideoState message.
// Both fields are required; a partial update is rejected.
func (m *Inbound) MediaStatePayload() (MediaState, error) {
	var payload struct {
		VideoEnabled *bool `json:"isVideoEnabled"`
		AudioEnabled *bool `json:"isAudioEnabled"`
	}
	if err := json.Unmarshal(m.Raw, &payload); err != nil {
		return MediaState{}, err
	}
	if payload.VideoEnabled == nil || payload.AudioEnabled == nil {
		return MediaState{}, ErrMissingField
	}
	return MediaState{
		VideoEnabled: *payload.VideoEnabled,
		AudioEnabled: *payload.AudioEnabled,
	}, nil
}

// Identification is the first message a client must send after the upgrade.
type Identification struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func DecodeIdentification(data []byte) (Identification, error) {
	var ident Identification
	if err := json.Unmarshal(data, &ident); err != nil {
		return Identification{}, err
	}
	if ident.UserID == "" || ident.Username == "" {
		return Identification{}, ErrMissingField
	}
	return ident, nil
}

// Participant is one entry of a participants_list event.
type Participant struct {
	ClientID     string `json:"client_id"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	VideoEnabled bool   `json:"isVideoEnabled"`
	AudioEnabled bool   `json:"isAudioEnabled"`
}

type WebRTCConfig struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type WebRTCConfigEvent struct {
	Type   string       `json:"type"`
	Config WebRTCConfig `json:"config"`
}

func NewWebRTCConfigEvent(servers []webrtc.ICEServer) WebRTCConfigEvent {
	return WebRTCConfigEvent{
		Type:   TypeWebRTCConfig,
		Config: WebRTCConfig{ICEServers: servers},
	}
}

type ParticipantsListEvent struct {
	Type         string        `json:"type"`
	Participants []Participant `json:"participants"`
}

func NewParticipantsListEvent(participants []Participant) ParticipantsListEvent {
	return ParticipantsListEvent{
		Type:         TypeParticipantsList,
		Participants: participants,
	}
}

// PresenceEvent announces a client joining or leaving a room.
type PresenceEvent struct {
	Type      string `json:"type"`
	ClientID  string `json:"client_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

func NewUserJoinedEvent(c *Client, at time.Time) PresenceEvent {
	return newPresenceEvent(TypeUserJoined, c, at)
}

func NewUserLeftEvent(c *Client, at time.Time) PresenceEvent {
	return newPresenceEvent(TypeUserLeft, c, at)
}

func newPresenceEvent(kind string, c *Client, at time.Time) PresenceEvent {
	return PresenceEvent{
		Type:      kind,
		ClientID:  c.ID,
		UserID:    c.UserID,
		Username:  c.Username,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

// ChatEvent is a chat message re-wrapped with the sender's display name and
// the server-side timestamp. Chat history is not persisted.
type ChatEvent struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func NewChatEvent(sender, content string, at time.Time) ChatEvent {
	return ChatEvent{
		Type:      TypeChat,
		Sender:    sender,
		Content:   content,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

type MediaStateUpdateEvent struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	VideoEnabled bool   `json:"isVideoEnabled"`
	AudioEnabled bool   `json:"isAudioEnabled"`
}

func NewMediaStateUpdateEvent(c *Client) MediaStateUpdateEvent {
	media := c.MediaState()
	return MediaStateUpdateEvent{
		Type:         TypeMediaStateUpdate,
		ClientID:     c.ID,
		VideoEnabled: media.VideoEnabled,
		AudioEnabled: media.AudioEnabled,
	}
}

type PingEvent struct {
	Type string `json:"type"`
}

func NewPingEvent() PingEvent {
	return PingEvent{Type: TypePing}
}
