package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/pion/webrtc/v4"
)

type EventName string

// Inbound events.
const (
	EventJoinRoom          EventName = "join-room"
	EventLeaveRoom         EventName = "leave-room"
	EventSendMessage       EventName = "send-message"
	EventTyping            EventName = "typing"
	EventOffer             EventName = "webrtc-offer"
	EventAnswer            EventName = "webrtc-answer"
	EventICECandidate      EventName = "webrtc-ice-candidate"
	EventJoinedVideo       EventName = "user-joined-video"
	EventLeftVideo         EventName = "user-left-video"
	EventFileContentChange EventName = "file-content-change"
	EventCursorPosition    EventName = "cursor-position"
	EventUserSelection     EventName = "user-selection"
	EventJoinFileEdit      EventName = "join-file-edit"
	EventLeaveFileEdit     EventName = "leave-file-edit"
	EventCodeTyping        EventName = "code-typing"
	EventPing              EventName = "ping"
)

// Outbound events. The webrtc-* and *-video names are relayed unchanged.
const (
	EventRoomUsers             EventName = "room-users"
	EventUsersCount            EventName = "users-count"
	EventUserJoined            EventName = "user-joined"
	EventUserLeft              EventName = "user-left"
	EventNewMessage            EventName = "new-message"
	EventUserTyping            EventName = "user-typing"
	EventError                 EventName = "error"
	EventPong                  EventName = "pong"
	EventFileContentUpdated    EventName = "file-content-updated"
	EventCursorPositionUpdated EventName = "cursor-position-updated"
	EventUserSelectionUpdated  EventName = "user-selection-updated"
	EventUserJoinedFileEdit    EventName = "user-joined-file-edit"
	EventUserLeftFileEdit      EventName = "user-left-file-edit"
	EventCodeTypingUpdated     EventName = "code-typing-updated"
)

var errEmptyPayload = errors.New("empty payload")

// envelope is the frame shape in both directions.
type envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// --- inbound payloads ---

type userPayload struct {
	ID       string `json:"id" validate:"max=64"`
	Username string `json:"username" validate:"required,max=36"`
}

type joinRoomPayload struct {
	RoomID string      `json:"roomId" validate:"required,max=64"`
	User   userPayload `json:"user"`
}

type leaveRoomPayload struct {
	RoomID string       `json:"roomId" validate:"required,max=64"`
	User   *userPayload `json:"user,omitempty"`
}

type sendMessagePayload struct {
	RoomID   string `json:"roomId" validate:"required,max=64"`
	User     string `json:"user" validate:"required,max=36"`
	Text     string `json:"text" validate:"required_without=Code,max=10000"`
	Code     string `json:"code" validate:"max=65536"`
	Language string `json:"language" validate:"max=32"`
	Output   string `json:"output" validate:"max=65536"`
}

type typingPayload struct {
	RoomID   string `json:"roomId" validate:"required,max=64"`
	User     string `json:"user" validate:"max=36"`
	IsTyping bool   `json:"isTyping"`
}

// PeerRoute addresses a unicast signaling event.
type PeerRoute struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
	From   string `json:"from" validate:"required,max=64"`
	To     string `json:"to" validate:"required,max=64"`
}

type offerPayload struct {
	PeerRoute
	Offer *webrtc.SessionDescription `json:"offer" validate:"required"`
}

type answerPayload struct {
	PeerRoute
	Answer *webrtc.SessionDescription `json:"answer" validate:"required"`
}

type iceCandidatePayload struct {
	PeerRoute
	Candidate *webrtc.ICECandidateInit `json:"candidate" validate:"required"`
}

type videoPresencePayload struct {
	RoomID   string `json:"roomId" validate:"required,max=64"`
	UserID   string `json:"userId" validate:"required,max=64"`
	Username string `json:"username" validate:"max=36"`
}

// EditScope is the (room, project, file, user) key every collaborative-edit event carries.
type EditScope struct {
	RoomID    string `json:"roomId" validate:"required,max=64"`
	ProjectID string `json:"projectId" validate:"required,max=64"`
	FileID    string `json:"fileId" validate:"required,max=128"`
	UserID    string `json:"userId" validate:"required,max=64"`
}

type fileContentPayload struct {
	EditScope
	Content   string `json:"content" validate:"max=131072"`
	Timestamp int64  `json:"timestamp"`
}

type cursorPayload struct {
	EditScope
	Username string          `json:"username"`
	Position json.RawMessage `json:"position"`
}

type selectionPayload struct {
	EditScope
	Username  string          `json:"username"`
	Selection json.RawMessage `json:"selection"`
}

type codeTypingPayload struct {
	EditScope
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type fileEditPresencePayload struct {
	EditScope
	Username string `json:"username"`
}

// --- outbound payloads ---

type roomUsersPayload struct {
	RoomID domain.RoomName  `json:"roomId"`
	Users  []core.MemberDTO `json:"users"`
}

type usersCountPayload struct {
	RoomID domain.RoomName `json:"roomId"`
	Count  int             `json:"count"`
}

type userPresencePayload struct {
	RoomID domain.RoomName `json:"roomId"`
	User   domain.User     `json:"user"`
}

type newMessagePayload struct {
	domain.Message
	Room domain.RoomName `json:"room"`
}

type errorPayload struct {
	Message string    `json:"message"`
	Event   EventName `json:"event,omitempty"`
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return errEmptyPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

func checkSDPType(desc *webrtc.SessionDescription, want webrtc.SDPType) error {
	if desc.Type != want {
		return fmt.Errorf("sdp type %q, want %q", desc.Type, want)
	}
	return nil
}

func encodeEvent(name EventName, v any) (core.Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return rawFrame(name, data), nil
}

// rawFrame wraps already-encoded data without re-encoding it, so relayed
// payloads reach the receiver byte for byte.
func rawFrame(name EventName, data json.RawMessage) core.Frame {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	b := make([]byte, 0, len(data)+len(name)+21)
	b = append(b, `{"event":"`...)
	b = append(b, name...)
	b = append(b, `","data":`...)
	b = append(b, data...)
	b = append(b, '}')
	return b
}
