package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pysugar/postpilot/internal/auth/credential"
	"github.com/pysugar/postpilot/internal/logging"
)

type userView struct {
	Name      string    `json:"name"`
	MemberID  string    `json:"member_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Expired   bool      `json:"expired"`
}

// UserHandler handles GET /api/user. The body is null when nobody is connected.
func UserHandler(store credential.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, ok := store.Get(r.Context())
		if !ok {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeJSON(w, http.StatusOK, userView{
			Name:      cred.DisplayName,
			MemberID:  cred.ExternalAccountID,
			ExpiresAt: cred.ExpiresAt,
			Expired:   credential.IsExpired(cred, time.Now()),
		})
	}
}

type credentialClearer interface {
	Clear(ctx context.Context) error
}

// DisconnectHandler handles DELETE /api/user
func DisconnectHandler(store credentialClearer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Clear(r.Context()); err != nil {
			logging.FromContext(r.Context()).Error().Err(err).Msg("Failed to clear credential")
			writeError(w, http.StatusInternalServerError, "failed to disconnect")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
