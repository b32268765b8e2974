package db

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/postpilot/internal/db/models"
	"gorm.io/gorm"
)

const anonymousName = "Anonymous"

// ListComments returns guestbook comments, newest first.
func ListComments(ctx context.Context, db *gorm.DB) ([]models.Comment, error) {
	var comments []models.Comment
	err := db.WithContext(ctx).Order("created_at DESC").Find(&comments).Error
	return comments, err
}

// CreateComment stores a comment. A blank name is recorded as "Anonymous".
func CreateComment(ctx context.Context, db *gorm.DB, name, content string) (models.Comment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = anonymousName
	}
	comment := models.Comment{
		ID:        uuid.New().String(),
		Name:      name,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&comment).Error; err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}
