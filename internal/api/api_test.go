package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sphere/internal/models"
	"sphere/internal/presence"
	"sphere/internal/push"
	"sphere/internal/storage"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()

	store, err := storage.NewBboltStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return New(ctx, store, presence.NewMemoryRegistry(), push.New(store, "", "", ""), 50, 24*time.Hour)
}

func saveMessage(t *testing.T, a *API, conv, sender, text string) models.Message {
	t.Helper()

	body, err := json.Marshal(models.Message{ConversationID: conv, Sender: sender, Text: text})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.SaveMessageHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("save message: expected 200, got %d", rec.Code)
	}

	var saved models.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("failed to decode saved message: %v", err)
	}
	return saved
}

func fetchHistory(t *testing.T, a *API, conv string) []models.Message {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/messages/"+conv, nil)
	req.SetPathValue("conversationId", conv)
	rec := httptest.NewRecorder()
	a.MessagesHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch history: expected 200, got %d", rec.Code)
	}

	var messages []models.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &messages); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	return messages
}

func markRead(t *testing.T, a *API, conv, username string) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"username": username})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPut, "/messages/read/"+conv, bytes.NewReader(body))
	req.SetPathValue("conversationId", conv)
	rec := httptest.NewRecorder()
	a.MarkReadHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: expected 200, got %d", rec.Code)
	}
}

// Every write must be visible to the next history fetch, even when the
// previous page is still inside the cache TTL.
func TestMessagesHandler_FetchReflectsWrites(t *testing.T) {
	a := newTestAPI(t)
	conv := "alice_bob"

	first := saveMessage(t, a, conv, "alice", "one")

	history := fetchHistory(t, a, conv)
	if len(history) != 1 || history[0].Seq != first.Seq {
		t.Fatalf("expected only the first message, got %v", history)
	}

	// Second fetch with identical parameters lands inside the TTL window
	second := saveMessage(t, a, conv, "bob", "two")

	history = fetchHistory(t, a, conv)
	if len(history) != 2 {
		t.Fatalf("fetch after insert returned %d messages, want 2", len(history))
	}
	if history[0].Seq != first.Seq || history[1].Seq != second.Seq {
		t.Errorf("unexpected order: %v", history)
	}

	// Same for mark-read: the flip is visible immediately
	markRead(t, a, conv, "alice")

	history = fetchHistory(t, a, conv)
	if history[0].Read {
		t.Error("alice's own message must stay unread")
	}
	if !history[1].Read {
		t.Error("bob's message must be read after alice marks")
	}

	// A repeated fetch with no intervening write may come from the cache and
	// must match the last response
	again := fetchHistory(t, a, conv)
	if len(again) != 2 || !again[1].Read {
		t.Errorf("cached page diverged: %v", again)
	}
}

func TestMessagesHandler_ConversationsIsolated(t *testing.T) {
	a := newTestAPI(t)

	saveMessage(t, a, "alice_bob", "alice", "hi")

	// A write elsewhere must not disturb this conversation's cache key
	history := fetchHistory(t, a, "alice_bob")
	if len(history) != 1 {
		t.Fatalf("expected 1 message, got %d", len(history))
	}
	saveMessage(t, a, "alice_carol", "carol", "hello")

	history = fetchHistory(t, a, "alice_bob")
	if len(history) != 1 {
		t.Errorf("expected 1 message after unrelated write, got %d", len(history))
	}
}
