// Package posts holds the durable post queue and the ingress operations on it.
package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/postpilot/internal/db/models"
	"gorm.io/gorm"
)

// NewPost carries the caller-supplied fields of a post. Identifier, status
// and creation time are assigned by the repository.
type NewPost struct {
	Platform    string
	Prompt      string
	Content     string
	Image       string
	ScheduledAt time.Time
}

// Repository is the gorm-backed post store. Every status transition is a
// single conditional UPDATE keyed by id, so concurrent readers never observe
// a half-applied change.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Create validates and stores a new pending post and returns its id.
func (r *Repository) Create(ctx context.Context, in NewPost) (string, error) {
	if strings.TrimSpace(in.Content) == "" {
		return "", &ValidationError{Field: "content", Msg: "content is required"}
	}
	if in.ScheduledAt.IsZero() {
		return "", &ValidationError{Field: "scheduled_at", Msg: "scheduled_at is required"}
	}

	post := models.Post{
		ID:          uuid.New().String(),
		Platform:    in.Platform,
		Prompt:      in.Prompt,
		Content:     in.Content,
		Image:       in.Image,
		ScheduledAt: in.ScheduledAt.UTC(),
		Status:      models.PostStatusPending,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&post).Error; err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return post.ID, nil
}

// Get returns a single post or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Post{}, ErrNotFound
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("get post %s: %w", id, err)
	}
	return post, nil
}

// ListAll returns every post, most recently created first.
func (r *Repository) ListAll(ctx context.Context) ([]models.Post, error) {
	var list []models.Post
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return list, nil
}

// ListDue returns pending posts whose scheduled time is at or before now,
// oldest scheduled first.
func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]models.Post, error) {
	var list []models.Post
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.PostStatusPending, now.UTC()).
		Order("scheduled_at ASC").
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	return list, nil
}

// MarkPosted moves a pending post to posted. Posts already in a terminal
// state and ids that no longer exist are left untouched.
func (r *Repository) MarkPosted(ctx context.Context, id string) error {
	return r.transition(ctx, id, map[string]any{
		"status": models.PostStatusPosted,
		"error":  "",
	})
}

// MarkFailed moves a pending post to failed and records detail. Same no-op
// rules as MarkPosted.
func (r *Repository) MarkFailed(ctx context.Context, id, detail string) error {
	return r.transition(ctx, id, map[string]any{
		"status": models.PostStatusFailed,
		"error":  detail,
	})
}

func (r *Repository) transition(ctx context.Context, id string, fields map[string]any) error {
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND status = ?", id, models.PostStatusPending).
		Updates(fields).Error
	if err != nil {
		return fmt.Errorf("update post %s: %w", id, err)
	}
	return nil
}

// Delete removes a post in any state. Deleting an unknown id succeeds.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{}).Error; err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return nil
}
