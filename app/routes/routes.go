package routes

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"postkeeper/app/controllers"
	"postkeeper/app/middleware"
)

// Controllers groups the handlers served by the posts service.
type Controllers struct {
	Posts    *controllers.PostController
	Comments *controllers.CommentController
	Sync     *controllers.SyncController
}

// SetupRoutes defines the application's routes and returns a router.
func SetupRoutes(logger *slog.Logger, c Controllers) *mux.Router {
	router := mux.NewRouter()

	// Apply global middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))

	router.HandleFunc("/health", health).Methods("GET")

	// API routes
	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.ContentTypeJSON)

	// Posts API endpoints
	posts := api.PathPrefix("/posts").Subrouter()
	posts.HandleFunc("", c.Posts.Index).Methods("GET")
	posts.HandleFunc("", c.Posts.Create).Methods("POST")
	posts.HandleFunc("/{id}", c.Posts.Show).Methods("GET")
	posts.HandleFunc("/{id}", c.Posts.Edit).Methods("PUT")
	posts.HandleFunc("/{id}", c.Posts.Delete).Methods("DELETE")
	posts.HandleFunc("/{id}/audit", c.Comments.Audit).Methods("GET")

	// Comments API endpoints
	posts.HandleFunc("/{postId}/comments", c.Comments.Index).Methods("GET")
	posts.HandleFunc("/{postId}/comments", c.Comments.Create).Methods("POST")
	posts.HandleFunc("/{postId}/comments/{id}", c.Comments.Show).Methods("GET")
	posts.HandleFunc("/{postId}/comments/{id}", c.Comments.Update).Methods("PATCH")
	posts.HandleFunc("/{postId}/comments/{id}", c.Comments.Delete).Methods("DELETE")

	api.HandleFunc("/sync", c.Sync.Sync).Methods("POST")

	router.NotFoundHandler = jsonStatus(http.StatusNotFound, "not found")
	router.MethodNotAllowedHandler = jsonStatus(http.StatusMethodNotAllowed, "method not allowed")

	return router
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func jsonStatus(status int, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": message})
	})
}
