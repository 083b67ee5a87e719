package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"sphere/internal/content"
	"sphere/internal/models"

	"github.com/google/uuid"
)

const searchLimit = 10

// userProfile is a user record with the following list expanded, for the
// chat sidebar.
type userProfile struct {
	models.User
	FollowingProfiles []models.User `json:"followingProfiles"`
}

func (a *API) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string `json:"username"`
		ProfilePic string `json:"profilePic"`
		Bio        string `json:"bio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user := models.User{
		ID:         uuid.NewString(),
		Username:   req.Username,
		ProfilePic: req.ProfilePic,
		Bio:        content.Sanitize(req.Bio),
		CreatedAt:  time.Now().Unix(),
	}

	if err := a.store.UpsertUser(user); err != nil {
		log.Printf("failed to create user: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (a *API) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	user, err := a.store.GetUser(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	profile := userProfile{User: user, FollowingProfiles: []models.User{}}
	for _, followedID := range user.Following {
		followed, err := a.store.GetUser(followedID)
		if err != nil {
			continue // Deleted or missing, skip.
		}
		profile.FollowingProfiles = append(profile.FollowingProfiles, followed)
	}

	writeJSON(w, http.StatusOK, profile)
}

func (a *API) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.SearchUsers(r.PathValue("query"), searchLimit)
	if err != nil {
		log.Printf("failed to search users: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []models.User{}
	}

	writeJSON(w, http.StatusOK, users)
}

func (a *API) FollowHandler(w http.ResponseWriter, r *http.Request) {
	targetID := r.PathValue("id")

	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.UserID == targetID {
		http.Error(w, "Cannot follow self", http.StatusForbidden)
		return
	}

	followed, err := a.store.ToggleFollow(targetID, req.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Printf("failed to toggle follow of %s: %v", targetID, err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	message := "Unfollowed"
	if followed {
		message = "Followed"
	}
	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: message})
}

func (a *API) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := r.URL.Query().Get("userId")

	if userID != id {
		http.Error(w, "Not authorized", http.StatusUnauthorized)
		return
	}

	if err := a.store.DeleteUser(id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Printf("failed to delete user %s: %v", id, err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: "Deleted"})
}

func (a *API) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		UserID     string `json:"userId"`
		Bio        string `json:"bio"`
		ProfilePic string `json:"profilePic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.UserID != id {
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	user, err := a.store.UpdateProfile(id, content.Sanitize(req.Bio), req.ProfilePic)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Printf("failed to update profile %s: %v", id, err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
