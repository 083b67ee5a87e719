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

const feedPageLimit = 5

func renderPost(post models.Post) models.Post {
	html, err := content.RenderMarkdown(post.Content)
	if err != nil {
		log.Printf("failed to render post %s: %v", post.ID, err)
		return post
	}
	post.HTML = html
	return post
}

func renderPosts(posts []models.Post) []models.Post {
	if posts == nil {
		return []models.Post{}
	}
	for i := range posts {
		posts[i] = renderPost(posts[i])
	}
	return posts
}

func (a *API) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Author   string `json:"author"`
		Content  string `json:"content"`
		ImageURL string `json:"imageUrl"`
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	now := time.Now().Unix()
	post := models.Post{
		ID:        uuid.NewString(),
		Author:    req.Author,
		Content:   content.Sanitize(req.Content),
		ImageURL:  req.ImageURL,
		Location:  req.Location,
		Hashtags:  content.ExtractHashtags(req.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := a.store.UpsertPost(post); err != nil {
		log.Printf("failed to create post: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, renderPost(post))
}

func (a *API) PostHandler(w http.ResponseWriter, r *http.Request) {
	post, err := a.store.GetPost(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}
		log.Printf("failed to get post: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, renderPost(post))
}

func (a *API) UpdatePostHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		UserID   string `json:"userId"`
		Content  string `json:"content"`
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	post, err := a.store.GetPost(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	if post.Author != req.UserID {
		http.Error(w, "You can only edit your own posts", http.StatusUnauthorized)
		return
	}

	if req.Content != "" {
		post.Content = content.Sanitize(req.Content)
		post.Hashtags = content.ExtractHashtags(req.Content)
	}
	if req.Location != "" {
		post.Location = req.Location
	}
	post.UpdatedAt = time.Now().Unix()

	if err := a.store.UpsertPost(post); err != nil {
		log.Printf("failed to update post %s: %v", id, err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, renderPost(post))
}

func (a *API) DeletePostHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := r.URL.Query().Get("userId")

	post, err := a.store.GetPost(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	if post.Author != userID {
		http.Error(w, "Not authorized", http.StatusUnauthorized)
		return
	}

	if err := a.store.DeletePost(id); err != nil {
		log.Printf("failed to delete post %s: %v", id, err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: "Deleted"})
}

// FeedHandler returns one page of the global feed, newest first.
func (a *API) FeedHandler(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)

	posts, err := a.store.ListPosts(page, feedPageLimit)
	if err != nil {
		log.Printf("failed to list posts: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, renderPosts(posts))
}

func (a *API) UserPostsHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := a.store.ListUserPosts(r.PathValue("userId"))
	if err != nil {
		log.Printf("failed to list user posts: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, renderPosts(posts))
}

func (a *API) TagPostsHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := a.store.ListPostsByTag(r.PathValue("tag"))
	if err != nil {
		log.Printf("failed to list posts by tag: %v", err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, renderPosts(posts))
}

func (a *API) LikePostHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	liked, err := a.store.ToggleLike(id, req.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}
		log.Printf("failed to toggle like on %s: %v", id, err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	message := "Unliked"
	if liked {
		message = "Liked"
	}
	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: message})
}

func (a *API) CommentHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		UserID string `json:"userId"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Text == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	post, err := a.store.AddComment(id, models.Comment{
		User:      req.UserID,
		Text:      content.Sanitize(req.Text),
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}
		log.Printf("failed to comment on %s: %v", id, err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, renderPost(post))
}

func (a *API) SavePostHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := a.store.ToggleSavedPost(req.UserID, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Printf("failed to toggle saved post %s: %v", id, err)
		http.Error(w, storageErrorMessage, http.StatusInternalServerError)
		return
	}

	message := "Unsaved"
	if saved {
		message = "Saved"
	}
	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: message})
}
