package controllers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"postkeeper/app/models"
	"postkeeper/app/services"
)

// PostController handles HTTP requests for posts
type PostController struct {
	postService *services.PostService
}

// NewPostController creates a new PostController
func NewPostController(postService *services.PostService) *PostController {
	return &PostController{postService: postService}
}

// Index handles listing posts a page at a time
func (pc *PostController) Index(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 10)

	posts, err := pc.postService.ListPosts(r.Context(), page, perPage)
	if err != nil {
		sendFailure(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"posts":    posts,
		"page":     page,
		"per_page": perPage,
	})
}

// Show handles displaying a single post with its embedded comments
func (pc *PostController) Show(w http.ResponseWriter, r *http.Request) {
	post, err := pc.postService.GetPost(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendFailure(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, post)
}

// Create handles creating a new post
func (pc *PostController) Create(w http.ResponseWriter, r *http.Request) {
	var in models.PostInput
	if !decodeJSON(w, r, &in) {
		return
	}

	post, err := pc.postService.CreatePost(r.Context(), in)
	if err != nil {
		sendFailure(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, post)
}

// Edit handles replacing the title and body of a post
func (pc *PostController) Edit(w http.ResponseWriter, r *http.Request) {
	var in models.PostInput
	if !decodeJSON(w, r, &in) {
		return
	}

	post, err := pc.postService.UpdatePost(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		sendFailure(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, post)
}

// Delete handles deleting a post
func (pc *PostController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := pc.postService.DeletePost(r.Context(), mux.Vars(r)["id"]); err != nil {
		sendFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, name string, def int) int {
	if s := r.URL.Query().Get(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}
