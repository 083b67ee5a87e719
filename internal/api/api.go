package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"sphere/internal/models"
	"sphere/internal/presence"
	"sphere/internal/push"
	"sphere/internal/storage"

	"github.com/c-pro/geche"
)

const (
	// The realtime path does not wait for persistence and vice versa; a
	// short cache window on history reads is acceptable for the same reason.
	historyCacheTTL = 2 * time.Second

	storageErrorMessage = "storage error"
)

type API struct {
	store    *storage.BboltStorage
	registry presence.Registry
	pusher   *push.Service
	pageSize int
	storyTTL time.Duration

	// Hot conversation pages, keyed by conversation|generation|after|limit.
	// Every write to a conversation bumps its generation, so a fetch after a
	// successful insert or mark-read never sees a stale page; superseded
	// entries fall out via the TTL.
	history geche.Geche[string, []models.Message]
	genMu   sync.Mutex
	gens    map[string]uint64
}

func New(ctx context.Context, store *storage.BboltStorage, registry presence.Registry, pusher *push.Service, pageSize int, storyTTL time.Duration) *API {
	return &API{
		store:    store,
		registry: registry,
		pusher:   pusher,
		pageSize: pageSize,
		storyTTL: storyTTL,
		history:  geche.NewMapTTLCache[string, []models.Message](ctx, historyCacheTTL, time.Second),
		gens:     make(map[string]uint64),
	}
}

func (a *API) conversationGen(conversationID string) uint64 {
	a.genMu.Lock()
	defer a.genMu.Unlock()
	return a.gens[conversationID]
}

func (a *API) bumpConversationGen(conversationID string) {
	a.genMu.Lock()
	defer a.genMu.Unlock()
	a.gens[conversationID]++
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// MessagesHandler returns one page of a conversation's history in append
// order. Cursor-based: ?after=<seq> resumes past the given sequence number,
// ?limit=<n> caps the page (never above the configured page size).
func (a *API) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversationId")

	after := int64(queryInt(r, "after", 0))
	limit := queryInt(r, "limit", a.pageSize)
	if limit == 0 || limit > a.pageSize {
		limit = a.pageSize
	}

	cacheKey := fmt.Sprintf("%s|%d|%d|%d", conversationID, a.conversationGen(conversationID), after, limit)
	if messages, err := a.history.Get(cacheKey); err == nil {
		writeJSON(w, http.StatusOK, messages)
		return
	}

	messages, err := a.store.ListMessages(conversationID, after, limit)
	if err != nil {
		log.Printf("failed to list messages for %s: %v", conversationID, err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	a.history.Set(cacheKey, messages)
	writeJSON(w, http.StatusOK, messages)
}

// SaveMessageHandler persists one message. This is the durable half of the
// dual-write: the realtime relay is a separate, unsynchronized operation,
// and a failure here leaves the relayed message absent from history.
func (a *API) SaveMessageHandler(w http.ResponseWriter, r *http.Request) {
	var msg models.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := a.store.AppendMessage(msg)
	if err != nil {
		log.Printf("failed to save message: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}
	a.bumpConversationGen(saved.ConversationID)

	writeJSON(w, http.StatusOK, saved)
}

// MarkReadHandler flips read=true on every message in the conversation not
// sent by the requester. Idempotent and monotonic.
func (a *API) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversationId")

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := a.store.MarkConversationRead(conversationID, req.Username); err != nil {
		log.Printf("failed to mark %s read: %v", conversationID, err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}
	a.bumpConversationGen(conversationID)

	writeJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "messages marked as read",
	})
}
