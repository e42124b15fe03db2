package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"postkeeper/app/models"
	"postkeeper/app/services"
)

// CommentController handles HTTP requests for comments
type CommentController struct {
	commentService *services.CommentService
}

// NewCommentController creates a new CommentController
func NewCommentController(commentService *services.CommentService) *CommentController {
	return &CommentController{commentService: commentService}
}

// Index handles listing the comments embedded in a post
func (cc *CommentController) Index(w http.ResponseWriter, r *http.Request) {
	comments, err := cc.commentService.ListComments(r.Context(), mux.Vars(r)["postId"])
	if err != nil {
		sendFailure(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, comments)
}

// Show handles displaying a single comment
func (cc *CommentController) Show(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	comment, err := cc.commentService.GetComment(r.Context(), vars["postId"], vars["id"])
	if err != nil {
		sendFailure(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, comment)
}

// Create handles creating a new comment
func (cc *CommentController) Create(w http.ResponseWriter, r *http.Request) {
	var in models.CommentInput
	if !decodeJSON(w, r, &in) {
		return
	}

	comment, err := cc.commentService.CreateComment(r.Context(), mux.Vars(r)["postId"], in)
	if err != nil {
		sendFailure(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, comment)
}

// Update handles patching the name or body of a comment
func (cc *CommentController) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.CommentPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	vars := mux.Vars(r)
	comment, err := cc.commentService.UpdateComment(r.Context(), vars["postId"], vars["id"], patch)
	if err != nil {
		sendFailure(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, comment)
}

// Delete handles deleting a comment
func (cc *CommentController) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := cc.commentService.DeleteComment(r.Context(), vars["postId"], vars["id"]); err != nil {
		sendFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Audit reports whether a post's embedded comments match the comment store
func (cc *CommentController) Audit(w http.ResponseWriter, r *http.Request) {
	report, err := cc.commentService.AuditPost(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendFailure(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"postId":                report.PostID,
		"consistent":            report.Consistent(),
		"missingFromProjection": report.MissingFromProjection,
		"orphaned":              report.Orphaned,
		"stale":                 report.Stale,
	})
}
