package handlers

import (
	"net/http"

	"github.com/pysugar/postpilot/internal/db"
	"github.com/pysugar/postpilot/internal/db/models"
	"github.com/pysugar/postpilot/internal/logging"
	"gorm.io/gorm"
)

// ListCommentsHandler handles GET /api/comments
func ListCommentsHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comments, err := db.ListComments(r.Context(), database)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list comments")
			return
		}
		if comments == nil {
			comments = []models.Comment{}
		}
		writeJSON(w, http.StatusOK, comments)
	}
}

// CreateCommentHandler handles POST /api/comments
func CreateCommentHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name    string `json:"name" validate:"max=100"`
			Content string `json:"content" validate:"notblank,max=5000"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
			return
		}
		comment, err := db.CreateComment(r.Context(), database, req.Name, req.Content)
		if err != nil {
			logging.FromContext(r.Context()).Error().Err(err).Msg("Failed to create comment")
			writeError(w, http.StatusInternalServerError, "failed to create comment")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": comment.ID})
	}
}
