package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"sphere/internal/models"

	"github.com/google/uuid"
)

func (a *API) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	notifications, err := a.store.ListNotifications(r.PathValue("receiver"))
	if err != nil {
		log.Printf("failed to list notifications: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	writeJSON(w, http.StatusOK, notifications)
}

// CreateNotificationHandler persists a notification and, when the receiver
// has no live connection, hands it to the push service. Online receivers get
// theirs over the socket instead, so pushing here would double-deliver.
func (a *API) CreateNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var n models.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil || n.Sender == "" || n.Receiver == "" || n.Type == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n.ID = uuid.NewString()
	n.Read = false
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().Unix()
	}

	if err := a.store.AppendNotification(n); err != nil {
		log.Printf("failed to store notification: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	if !a.isOnline(r.Context(), n.Receiver) {
		a.pusher.Notify(n.Receiver, n)
	}

	writeJSON(w, http.StatusCreated, n)
}

func (a *API) isOnline(ctx context.Context, userID string) bool {
	entries, err := a.registry.List(ctx)
	if err != nil {
		log.Printf("failed to list presence: %v", err)
		return false // Assume offline, a spurious push beats a lost one.
	}
	for _, e := range entries {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

func (a *API) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var sub models.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.UserID == "" || sub.Endpoint == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := a.store.UpsertSubscription(sub); err != nil {
		log.Printf("failed to store subscription: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, models.APIResponse{Success: true, Message: "Subscribed"})
}
