package models

import "encoding/json"

// ClientEvent is the envelope for events sent from the client to the server.
// Data is decoded per event type by the gateway; a payload that fails to
// decode is dropped without a response.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is the envelope for events relayed to clients.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client to server events.
const (
	EventAddUser          = "add_user"
	EventJoinUserRoom     = "join_user_room"
	EventJoinRoom         = "join_room"
	EventSendMessage      = "send_message"
	EventSendNotification = "send_notification"
	EventTyping           = "typing"
	EventStopTyping       = "stop_typing"
)

// Server to client events.
const (
	EventReceiveMessage  = "receive_message"
	EventGetNotification = "get_notification"
	EventDisplayTyping   = "display_typing"
	EventHideTyping      = "hide_typing"
	EventGetUsers        = "get_users"
)

// MessageEvent is the realtime shape of a chat message. It is relayed
// verbatim to every other connection in Room; persistence is a separate,
// unsynchronized write through the REST facade.
type MessageEvent struct {
	ConversationID string `json:"conversationId"`
	Room           string `json:"room"`
	Sender         string `json:"sender"`
	Text           string `json:"text"`
	Time           int64  `json:"time"`
}

// NotificationEvent targets the single connection (if any) in the room keyed
// by ReceiverID. Realtime-only, never persisted by the gateway.
type NotificationEvent struct {
	SenderName string `json:"senderName"`
	ReceiverID string `json:"receiverId,omitempty"`
	Type       string `json:"type"`
}

// TypingEvent carries no acknowledgment and no timeout: a lost stop_typing
// leaves the peer's indicator up until the next event from the same room.
type TypingEvent struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// TypingIndicator is the outbound shape of display_typing / hide_typing.
type TypingIndicator struct {
	User string `json:"user"`
}
