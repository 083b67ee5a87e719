package models

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

// User represents a user in the system. Auth credentials live outside this
// service; identity is carried by request payloads.
type User struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	ProfilePic string   `json:"profilePic"`
	Bio        string   `json:"bio"`
	Followers  []string `json:"followers"`
	Following  []string `json:"following"`
	Saved      []string `json:"saved"`
	CreatedAt  int64    `json:"createdAt"` // Unix timestamp (seconds)
}

// Message represents one persisted direct-message record. Append-only: no
// field except Read is mutated after creation.
type Message struct {
	Seq            int64  `json:"seq"`
	ConversationID string `json:"conversationId"`
	Sender         string `json:"sender"` // Username, not a foreign key
	Text           string `json:"text"`
	Read           bool   `json:"read"`
	IsGroup        bool   `json:"isGroup"`
	CreatedAt      int64  `json:"createdAt"` // Unix timestamp (seconds)
}

// Post represents a feed post with embedded likes and comments.
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	HTML      string    `json:"html,omitempty"` // Rendered content for the read surface
	ImageURL  string    `json:"imageUrl,omitempty"`
	Hashtags  []string  `json:"hashtags,omitempty"`
	Location  string    `json:"location,omitempty"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
}

type Comment struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// Story is an ephemeral record with a fixed lifetime. Expired stories never
// appear in list responses and are swept from storage in the background.
type Story struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	ImageURL  string `json:"imageUrl"`
	CreatedAt int64  `json:"createdAt"`
}

type NotificationType string

const (
	NotificationTypeLike    NotificationType = "like"
	NotificationTypeComment NotificationType = "comment"
	NotificationTypeFollow  NotificationType = "follow"
)

// Notification is the durable side of the notification surface. The realtime
// get_notification event is never persisted by the gateway.
type Notification struct {
	ID        string           `json:"id"`
	Sender    string           `json:"sender"`
	Receiver  string           `json:"receiver"`
	Type      NotificationType `json:"type"`
	Post      string           `json:"post,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt int64            `json:"createdAt"`
}

// PushSubscription holds a web-push endpoint registered by a user, used for
// best-effort delivery when the receiver has no live connection.
type PushSubscription struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
