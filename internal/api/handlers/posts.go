package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/postpilot/internal/db/models"
	"github.com/pysugar/postpilot/internal/logging"
	"github.com/pysugar/postpilot/internal/posts"
)

// Content is checked by posts.Service so that an empty body maps to 422.
type createPostRequest struct {
	Platform    string `json:"platform" validate:"max=32"`
	Prompt      string `json:"prompt"`
	Content     string `json:"content"`
	ImageURL    string `json:"image_url"`
	ScheduledAt string `json:"scheduled_at" validate:"notblank"`
}

// ListPostsHandler handles GET /api/posts[?platform=x]
func ListPostsHandler(svc *posts.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			list []models.Post
			err  error
		)
		if platform := strings.TrimSpace(r.URL.Query().Get("platform")); platform != "" {
			list, err = svc.ListForPlatform(r.Context(), platform)
		} else {
			list, err = svc.List(r.Context())
		}
		if err != nil {
			logging.FromContext(r.Context()).Error().Err(err).Msg("Failed to list posts")
			writeError(w, http.StatusInternalServerError, "failed to list posts")
			return
		}
		if list == nil {
			list = []models.Post{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CreatePostHandler handles POST /api/posts
func CreatePostHandler(svc *posts.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPostRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
		// RFC3339Nano also accepts timestamps without fractional seconds.
		scheduledAt, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(req.ScheduledAt))
		if err != nil {
			writeError(w, http.StatusBadRequest, "scheduled_at must be an ISO-8601 timestamp")
			return
		}

		id, err := svc.Submit(r.Context(), posts.NewPost{
			Platform:    req.Platform,
			Prompt:      req.Prompt,
			Content:     req.Content,
			Image:       req.ImageURL,
			ScheduledAt: scheduledAt,
		})
		if errors.Is(err, posts.ErrValidation) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err != nil {
			logging.FromContext(r.Context()).Error().Err(err).Msg("Failed to create post")
			writeError(w, http.StatusInternalServerError, "failed to create post")
			return
		}

		logging.FromContext(r.Context()).Info().
			Str("post_id", id).
			Time("scheduled_at", scheduledAt.UTC()).
			Msg("📝 Post scheduled")
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

// GetPostHandler handles GET /api/posts/{id}
func GetPostHandler(svc *posts.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, posts.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load post")
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

// DeletePostHandler handles DELETE /api/posts/{id}. Unknown ids succeed too.
func DeletePostHandler(svc *posts.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
			logging.FromContext(r.Context()).Error().Err(err).Msg("Failed to delete post")
			writeError(w, http.StatusInternalServerError, "failed to delete post")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
