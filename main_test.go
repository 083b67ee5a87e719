package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"sphere/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestIntegration(t *testing.T) {
	// Setup temporary DB and port
	dbFile := "integration_test.db"
	_ = os.Remove(dbFile) // cleanup before
	defer func() { _ = os.Remove(dbFile) }()

	apiAddr := "127.0.0.1:8899"
	baseURL := "http://" + apiAddr

	_ = os.Setenv("SPHERE_DB", dbFile)
	_ = os.Setenv("API_ADDR", apiAddr)
	defer func() {
		_ = os.Unsetenv("SPHERE_DB")
		_ = os.Unsetenv("API_ADDR")
	}()

	// Start server in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := run(ctx); err != nil {
			// run returns context.Canceled on shutdown, ignore it
			if err != context.Canceled {
				t.Errorf("Server error: %v", err)
			}
		}
	}()

	waitForServer(t, baseURL+"/api/stories", 20)

	client := &http.Client{Timeout: 5 * time.Second}

	// Step 1: Persist two messages into one conversation
	conversationID := "u1_u2"

	first := postJSON(t, client, baseURL+"/messages", map[string]any{
		"conversationId": conversationID,
		"sender":         "u1",
		"text":           "hello",
	}, http.StatusOK)

	var savedFirst models.Message
	require.NoError(t, json.Unmarshal(first, &savedFirst))
	require.Equal(t, int64(1), savedFirst.Seq)
	require.False(t, savedFirst.Read)

	second := postJSON(t, client, baseURL+"/messages", map[string]any{
		"conversationId": conversationID,
		"sender":         "u2",
		"text":           "hi back",
	}, http.StatusOK)

	var savedSecond models.Message
	require.NoError(t, json.Unmarshal(second, &savedSecond))
	require.Equal(t, int64(2), savedSecond.Seq)

	// A message missing a required field is a generic storage failure
	postJSON(t, client, baseURL+"/messages", map[string]any{
		"sender": "u1",
		"text":   "no conversation",
	}, http.StatusInternalServerError)

	// Step 2: History comes back in append order
	history := getMessages(t, client, baseURL+"/messages/"+conversationID+"?limit=10")
	require.Len(t, history, 2)
	require.Equal(t, "hello", history[0].Text)
	require.Equal(t, "hi back", history[1].Text)
	require.False(t, history[0].Read)

	// Cursor: resume past the first message
	tail := getMessages(t, client, fmt.Sprintf("%s/messages/%s?after=%d&limit=10", baseURL, conversationID, history[0].Seq))
	require.Len(t, tail, 1)
	require.Equal(t, "hi back", tail[0].Text)

	// Step 3: Mark read flips only the other side's messages, idempotently
	for i := 0; i < 2; i++ {
		body := putJSON(t, client, baseURL+"/messages/read/"+conversationID, map[string]any{
			"username": "u1",
		}, http.StatusOK)

		var resp models.APIResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		require.True(t, resp.Success)
	}

	history = getMessages(t, client, baseURL+"/messages/"+conversationID+"?limit=10")
	require.Len(t, history, 2)
	require.False(t, history[0].Read, "u1's own message must stay unread")
	require.True(t, history[1].Read, "u2's message must be read after u1 marks")

	// Step 4: Realtime relay between two connections
	wsURL := "ws://" + apiAddr + "/api/socket"

	c1, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = c1.Close() }()

	c2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = c2.Close() }()

	sendEvent(t, c1, models.EventAddUser, "u1")
	sendEvent(t, c2, models.EventAddUser, "u2")

	// Both announces end in a presence broadcast listing both users
	users := waitForSocketEvent(t, c1, models.EventGetUsers)
	var entries []struct {
		UserID string `json:"userId"`
	}
	for len(entries) < 2 {
		require.NoError(t, json.Unmarshal(users, &entries))
		if len(entries) < 2 {
			users = waitForSocketEvent(t, c1, models.EventGetUsers)
		}
	}

	sendEvent(t, c1, models.EventJoinRoom, conversationID)
	sendEvent(t, c2, models.EventJoinRoom, conversationID)
	// Joins are fire-and-forget, give the hub a moment
	time.Sleep(200 * time.Millisecond)

	sendEvent(t, c1, models.EventSendMessage, models.MessageEvent{
		ConversationID: conversationID,
		Room:           conversationID,
		Sender:         "u1",
		Text:           "realtime hello",
	})

	raw := waitForSocketEvent(t, c2, models.EventReceiveMessage)
	var relayed models.MessageEvent
	require.NoError(t, json.Unmarshal(raw, &relayed))
	require.Equal(t, "u1", relayed.Sender)
	require.Equal(t, "realtime hello", relayed.Text)

	sendEvent(t, c1, models.EventTyping, models.TypingEvent{Room: conversationID, User: "u1"})
	raw = waitForSocketEvent(t, c2, models.EventDisplayTyping)
	var indicator models.TypingIndicator
	require.NoError(t, json.Unmarshal(raw, &indicator))
	require.Equal(t, "u1", indicator.User)

	// Step 5: Posts with markdown rendering and hashtag extraction
	postBody := postJSON(t, client, baseURL+"/api/posts", map[string]any{
		"author":  "u1",
		"content": "Shipping **sphere** today #golang",
	}, http.StatusCreated)

	var post models.Post
	require.NoError(t, json.Unmarshal(postBody, &post))
	require.Contains(t, post.Hashtags, "golang")
	require.Contains(t, post.HTML, "<strong>sphere</strong>")

	likeBody := putJSON(t, client, fmt.Sprintf("%s/api/posts/%s/like", baseURL, post.ID), map[string]any{
		"userId": "u2",
	}, http.StatusOK)
	var likeResp models.APIResponse
	require.NoError(t, json.Unmarshal(likeBody, &likeResp))
	require.Equal(t, "Liked", likeResp.Message)

	// Step 6: Users and follow
	aliceBody := postJSON(t, client, baseURL+"/api/users", map[string]any{
		"username": "alice",
	}, http.StatusCreated)
	var alice models.User
	require.NoError(t, json.Unmarshal(aliceBody, &alice))
	require.NotEmpty(t, alice.ID)

	bobBody := postJSON(t, client, baseURL+"/api/users", map[string]any{
		"username": "bob",
	}, http.StatusCreated)
	var bob models.User
	require.NoError(t, json.Unmarshal(bobBody, &bob))

	followBody := putJSON(t, client, fmt.Sprintf("%s/api/users/%s/follow", baseURL, alice.ID), map[string]any{
		"userId": bob.ID,
	}, http.StatusOK)
	var followResp models.APIResponse
	require.NoError(t, json.Unmarshal(followBody, &followResp))
	require.Equal(t, "Followed", followResp.Message)

	putJSON(t, client, fmt.Sprintf("%s/api/users/%s/follow", baseURL, alice.ID), map[string]any{
		"userId": alice.ID,
	}, http.StatusForbidden)

	// Step 7: Notifications persist and list newest first
	postJSON(t, client, baseURL+"/api/notifications", map[string]any{
		"sender":   bob.ID,
		"receiver": alice.ID,
		"type":     "follow",
	}, http.StatusCreated)

	resp, err := client.Get(baseURL + "/api/notifications/" + alice.ID)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var notifications []models.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&notifications))
	require.Len(t, notifications, 1)
	require.Equal(t, models.NotificationTypeFollow, notifications[0].Type)
	require.False(t, notifications[0].Read)
}

func postJSON(t *testing.T, client *http.Client, url string, payload any, wantStatus int) []byte {
	t.Helper()
	return doJSON(t, client, http.MethodPost, url, payload, wantStatus)
}

func putJSON(t *testing.T, client *http.Client, url string, payload any, wantStatus int) []byte {
	t.Helper()
	return doJSON(t, client, http.MethodPut, url, payload, wantStatus)
}

func doJSON(t *testing.T, client *http.Client, method, url string, payload any, wantStatus int) []byte {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, wantStatus, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.Bytes()
}

func getMessages(t *testing.T, client *http.Client, url string) []models.Message {
	t.Helper()

	resp, err := client.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []models.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&messages))
	return messages
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(models.ClientEvent{Event: event, Data: raw}))
}

// waitForSocketEvent reads until the wanted event arrives, skipping
// unrelated broadcasts (presence updates interleave with everything).
func waitForSocketEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for {
		var ev struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if ev.Event == want {
			return ev.Data
		}
	}
}

func waitForServer(t *testing.T, urlStr string, retries int) {
	t.Helper()
	client := &http.Client{Timeout: 500 * time.Millisecond}

	for i := 0; i < retries; i++ {
		resp, err := client.Get(urlStr)
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("Server failed to start at %s after %d retries", urlStr, retries)
}
