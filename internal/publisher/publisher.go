// Package publisher defines how a scheduled post reaches an external platform.
package publisher

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/pysugar/postpilot/internal/db/models"
)

// ErrAuth marks failures caused by a missing or expired credential.
var ErrAuth = errors.New("authentication required")

// Publisher delivers one post. cred is nil when no credential is stored.
type Publisher interface {
	Publish(ctx context.Context, post models.Post, cred *models.Credential) error
}

// Error is a publish failure. Its message is what ends up in the post's error field.
type Error struct {
	Platform string
	Reason   string
	Err      error

	auth bool
}

func (e *Error) Error() string {
	msg := e.Reason
	if e.Platform != "" {
		msg = e.Platform + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrAuth && e.auth
}

// NewError builds a platform or network failure.
func NewError(platform, reason string, err error) *Error {
	return &Error{Platform: platform, Reason: reason, Err: err}
}

// AuthError builds a credential failure that matches ErrAuth.
func AuthError(platform, reason string) *Error {
	return &Error{Platform: platform, Reason: reason, auth: true}
}

// Registry maps platform tags to publishers. Unknown tags go to the fallback.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]Publisher
	fallback Publisher
}

func NewRegistry(fallback Publisher) *Registry {
	return &Registry{byName: make(map[string]Publisher), fallback: fallback}
}

func (r *Registry) Register(platform string, p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[normalize(platform)] = p
}

// Resolve never fails; it returns the fallback for unregistered platforms.
func (r *Registry) Resolve(platform string) Publisher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byName[normalize(platform)]; ok {
		return p
	}
	return r.fallback
}

// Platforms lists the explicitly registered tags, sorted.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalize(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}
