package posts

import (
	"context"
	"strings"

	"github.com/pysugar/postpilot/internal/db/models"
)

// Service implements the ingress operations used by the HTTP API.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// NormalizePlatform lower-cases and trims a platform tag.
// Empty input defaults to LinkedIn, the one fully wired platform.
func NormalizePlatform(platform string) string {
	p := strings.ToLower(strings.TrimSpace(platform))
	if p == "" {
		return models.PlatformLinkedIn
	}
	return p
}

// Submit stores a new pending post and returns its id.
func (s *Service) Submit(ctx context.Context, in NewPost) (string, error) {
	in.Platform = NormalizePlatform(in.Platform)
	return s.repo.Create(ctx, in)
}

// Cancel deletes a post. It succeeds whether or not the post existed.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Get returns one post or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (models.Post, error) {
	return s.repo.Get(ctx, id)
}

// List returns every post, newest first.
func (s *Service) List(ctx context.Context) ([]models.Post, error) {
	return s.repo.ListAll(ctx)
}

// ListForPlatform returns the posts of one platform, newest first.
func (s *Service) ListForPlatform(ctx context.Context, platform string) ([]models.Post, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	platform = NormalizePlatform(platform)
	filtered := make([]models.Post, 0, len(all))
	for _, p := range all {
		if p.Platform == platform {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}
