// Package credential stores the single live platform credential.
//
// The OAuth collaborator writes it, the scheduler and publishers only read it.
// Token refresh is deliberately not implemented: an expired credential makes
// publishes fail until the user reconnects. A Refresher would slot in as a
// decorator around Store.Get.
package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pysugar/postpilot/internal/db/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Store gives access to the one active credential.
type Store interface {
	// Set replaces any existing credential with cred.
	Set(ctx context.Context, cred models.Credential) error
	// Get returns the current credential, or false when none is stored.
	Get(ctx context.Context) (*models.Credential, bool)
}

// Refresher exchanges a refresh token for a new credential. Nothing
// implements it yet.
type Refresher interface {
	Refresh(ctx context.Context, cred models.Credential) (*models.Credential, error)
}

// IsExpired reports whether now is past the credential's expiry.
func IsExpired(cred *models.Credential, now time.Time) bool {
	return now.After(cred.ExpiresAt)
}

// DBStore persists the credential in SQLite and keeps a copy in memory.
type DBStore struct {
	db *gorm.DB

	mu     sync.RWMutex
	cached *models.Credential
	loaded bool
}

// NewDBStore creates a store and warms the cache from the database.
func NewDBStore(db *gorm.DB) *DBStore {
	s := &DBStore{db: db}
	if cred, ok := s.Get(context.Background()); ok {
		log.Info().Str("member", cred.ExternalAccountID).Time("expires_at", cred.ExpiresAt).Msg("🔑 Loaded stored credential")
	}
	return s
}

// Set deletes every stored credential and inserts cred in one transaction.
func (s *DBStore) Set(ctx context.Context, cred models.Credential) error {
	cred.ID = 0
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	cred.ExpiresAt = cred.ExpiresAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Credential{}).Error; err != nil {
			return err
		}
		return tx.Create(&cred).Error
	})
	if err != nil {
		return fmt.Errorf("replace credential: %w", err)
	}

	stored := cred
	s.cached = &stored
	s.loaded = true
	log.Info().Str("member", cred.ExternalAccountID).Str("name", cred.DisplayName).Msg("🔑 Credential replaced")
	return nil
}

// Get never fails: storage errors are logged and reported as "no credential".
func (s *DBStore) Get(ctx context.Context) (*models.Credential, bool) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		if s.cached == nil {
			return nil, false
		}
		cp := *s.cached
		return &cp, true
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		cred, err := s.load(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load credential")
			return nil, false
		}
		s.cached = cred
		s.loaded = true
	}
	if s.cached == nil {
		return nil, false
	}
	cp := *s.cached
	return &cp, true
}

// Clear removes the stored credential (user disconnect).
func (s *DBStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.Credential{}).Error; err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.cached = nil
	s.loaded = true
	log.Info().Msg("🔒 Credential cleared")
	return nil
}

func (s *DBStore) load(ctx context.Context) (*models.Credential, error) {
	var cred models.Credential
	err := s.db.WithContext(ctx).Order("id DESC").First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}
