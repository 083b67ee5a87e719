package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"sphere/internal/models"

	"github.com/google/uuid"
)

func (a *API) CreateStoryHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"userId"`
		ImageURL string `json:"imageUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.ImageURL == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	story := models.Story{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ImageURL:  req.ImageURL,
		CreatedAt: time.Now().Unix(),
	}

	if err := a.store.UpsertStory(story); err != nil {
		log.Printf("failed to create story: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, story)
}

// StoriesHandler returns stories younger than the configured TTL, newest
// first. Expired records linger in the bucket until the sweeper runs but are
// never served.
func (a *API) StoriesHandler(w http.ResponseWriter, r *http.Request) {
	stories, err := a.store.ListActiveStories(time.Now(), a.storyTTL)
	if err != nil {
		log.Printf("failed to list stories: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}
	if stories == nil {
		stories = []models.Story{}
	}

	writeJSON(w, http.StatusOK, stories)
}
