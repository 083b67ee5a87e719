package ws

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"sphere/internal/models"
	"sphere/internal/presence"

	"github.com/google/uuid"
)

// session is the per-connection state held by the hub: the announced user id
// (empty until add_user arrives), the outbound event channel and the set of
// joined rooms.
type session struct {
	userID string
	ch     chan models.ServerEvent
	rooms  map[string]bool
}

// Hub owns room membership and relays events between connections. The
// presence registry is injected and shares the hub's lifecycle. All relays
// are fire-and-forget: a slow consumer's events are dropped, never queued
// beyond the channel buffer.
type Hub struct {
	registry presence.Registry

	mu       sync.RWMutex
	sessions map[string]*session
	rooms    map[string]map[string]bool // roomID -> set of connection ids
}

func NewHub(registry presence.Registry) *Hub {
	return &Hub{
		registry: registry,
		sessions: make(map[string]*session),
		rooms:    make(map[string]map[string]bool),
	}
}

// Connect allocates a connection id and its outbound channel.
func (h *Hub) Connect() (string, chan models.ServerEvent) {
	connID := uuid.NewString()
	ch := make(chan models.ServerEvent, 100)

	h.mu.Lock()
	h.sessions[connID] = &session{ch: ch, rooms: make(map[string]bool)}
	h.mu.Unlock()

	return connID, ch
}

// Disconnect tears the connection down: rooms are abandoned, presence is
// unregistered and the updated presence list is broadcast to everyone.
func (h *Hub) Disconnect(ctx context.Context, connID string) {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, connID)
	for roomID := range s.rooms {
		delete(h.rooms[roomID], connID)
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	close(s.ch)

	if err := h.registry.Unregister(ctx, connID); err != nil {
		slog.Error("presence unregister failed", "conn_id", connID, "error", err)
	}
	h.broadcastPresence(ctx)
}

// Announce identifies the connection and registers its presence. The
// registry keeps the first entry on a duplicate announce for the same user.
func (h *Hub) Announce(ctx context.Context, connID, userID string) {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok || userID == "" {
		h.mu.Unlock()
		return
	}
	s.userID = userID
	h.mu.Unlock()

	if err := h.registry.Register(ctx, userID, connID); err != nil {
		slog.Error("presence register failed", "user_id", userID, "error", err)
	}
	h.broadcastPresence(ctx)
}

// JoinUserRoom joins the room keyed by the connection's own announced user
// id, enabling targeted notification delivery. A foreign id is refused.
func (h *Hub) JoinUserRoom(connID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok || userID == "" || s.userID != userID {
		return
	}
	h.join(connID, s, userID)
}

// JoinRoom joins a conversation room. Only a room in sorted-pair form whose
// participants include the connection's announced user id is admitted;
// unannounced connections are refused.
func (h *Hub) JoinRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok || s.userID == "" || !isParticipant(s.userID, roomID) {
		return
	}
	h.join(connID, s, roomID)
}

// join is idempotent; there is no explicit leave.
func (h *Hub) join(connID string, s *session, roomID string) {
	s.rooms[roomID] = true
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][connID] = true
}

// SendMessage relays the payload verbatim to every other connection in the
// message's room. The sender never receives its own echo. A missing or
// unknown room relays to nobody.
func (h *Hub) SendMessage(connID string, msg models.MessageEvent) {
	h.relay(msg.Room, connID, models.ServerEvent{
		Event: models.EventReceiveMessage,
		Data:  msg,
	})
}

// SendNotification relays to the connections in the room keyed by the
// receiver's user id.
func (h *Hub) SendNotification(connID string, n models.NotificationEvent) {
	h.relay(n.ReceiverID, connID, models.ServerEvent{
		Event: models.EventGetNotification,
		Data: models.NotificationEvent{
			SenderName: n.SenderName,
			Type:       n.Type,
		},
	})
}

func (h *Hub) Typing(connID string, t models.TypingEvent) {
	h.relay(t.Room, connID, models.ServerEvent{
		Event: models.EventDisplayTyping,
		Data:  models.TypingIndicator{User: t.User},
	})
}

func (h *Hub) StopTyping(connID string, t models.TypingEvent) {
	h.relay(t.Room, connID, models.ServerEvent{
		Event: models.EventHideTyping,
		Data:  models.TypingIndicator{User: t.User},
	})
}

func (h *Hub) relay(roomID, exclude string, ev models.ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID := range h.rooms[roomID] {
		if connID == exclude {
			continue
		}
		if s, ok := h.sessions[connID]; ok {
			send(s, ev)
		}
	}
}

// broadcastPresence pushes the full current presence list to every
// connection so clients keep an eventually-consistent view of who is online.
func (h *Hub) broadcastPresence(ctx context.Context) {
	entries, err := h.registry.List(ctx)
	if err != nil {
		slog.Error("presence list failed", "error", err)
		return
	}
	ev := models.ServerEvent{Event: models.EventGetUsers, Data: entries}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		send(s, ev)
	}
}

func send(s *session, ev models.ServerEvent) {
	select {
	case s.ch <- ev:
	default:
		// Slow consumer, drop.
	}
}

// Helpers

// ConversationID returns the canonical room id for a 1:1 chat: both user ids
// sorted lexicographically and joined with "_", so either participant
// derives the same identifier without a lookup.
func ConversationID(u1, u2 string) string {
	ids := []string{u1, u2}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

func isParticipant(userID, roomID string) bool {
	parts := strings.Split(roomID, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}
	return parts[0] == userID || parts[1] == userID
}
