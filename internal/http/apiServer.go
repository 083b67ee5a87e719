package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"sphere/internal/api"
	"sphere/internal/config"
	"sphere/internal/presence"
	"sphere/internal/push"
	"sphere/internal/storage"
	"sphere/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAPIServer(ctx context.Context, cfg config.Config, storage *storage.BboltStorage, registry presence.Registry, hub *ws.Hub, pusher *push.Service) *APIServer {
	server := ws.NewServer(hub)
	apiHandlers := api.New(ctx, storage, registry, pusher, cfg.HistoryPageSize, cfg.StoryTTL)

	mux := http.NewServeMux()

	// Messages
	mux.HandleFunc("GET /messages/{conversationId}", apiHandlers.MessagesHandler)
	mux.HandleFunc("POST /messages", apiHandlers.SaveMessageHandler)
	mux.HandleFunc("PUT /messages/read/{conversationId}", apiHandlers.MarkReadHandler)

	// Posts
	mux.HandleFunc("POST /api/posts", apiHandlers.CreatePostHandler)
	mux.HandleFunc("GET /api/posts", apiHandlers.FeedHandler)
	mux.HandleFunc("GET /api/posts/{id}", apiHandlers.PostHandler)
	mux.HandleFunc("PUT /api/posts/{id}", apiHandlers.UpdatePostHandler)
	mux.HandleFunc("DELETE /api/posts/{id}", apiHandlers.DeletePostHandler)
	mux.HandleFunc("GET /api/posts/user/{userId}", apiHandlers.UserPostsHandler)
	mux.HandleFunc("GET /api/posts/tag/{tag}", apiHandlers.TagPostsHandler)
	mux.HandleFunc("PUT /api/posts/{id}/like", apiHandlers.LikePostHandler)
	mux.HandleFunc("POST /api/posts/{id}/comments", apiHandlers.CommentHandler)
	mux.HandleFunc("PUT /api/posts/{id}/save", apiHandlers.SavePostHandler)

	// Users
	mux.HandleFunc("POST /api/users", apiHandlers.CreateUserHandler)
	mux.HandleFunc("GET /api/users/{id}", apiHandlers.GetUserHandler)
	mux.HandleFunc("PUT /api/users/{id}", apiHandlers.UpdateProfileHandler)
	mux.HandleFunc("DELETE /api/users/{id}", apiHandlers.DeleteUserHandler)
	mux.HandleFunc("GET /api/users/search/{query}", apiHandlers.SearchUsersHandler)
	mux.HandleFunc("PUT /api/users/{id}/follow", apiHandlers.FollowHandler)

	// Stories
	mux.HandleFunc("POST /api/stories", apiHandlers.CreateStoryHandler)
	mux.HandleFunc("GET /api/stories", apiHandlers.StoriesHandler)

	// Notifications
	mux.HandleFunc("GET /api/notifications/{receiver}", apiHandlers.NotificationsHandler)
	mux.HandleFunc("POST /api/notifications", apiHandlers.CreateNotificationHandler)
	mux.HandleFunc("POST /api/notifications/subscribe", apiHandlers.SubscribeHandler)

	// WebSocket endpoint
	mux.HandleFunc("/api/socket", server.HandleConnections)

	addr := cfg.APIAddr
	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
