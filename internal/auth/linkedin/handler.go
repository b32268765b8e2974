package linkedin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pysugar/postpilot/internal/auth/credential"
	"github.com/pysugar/postpilot/internal/db/models"
	"github.com/pysugar/postpilot/internal/logging"
	"golang.org/x/oauth2"
)

const (
	callbackPath         = "/auth/callback"
	simulateRedirectPath = "/auth/simulate-redirect"
	demoLifetime         = time.Hour
)

type Config struct {
	ClientID     string
	ClientSecret string

	// AppURL is the public base URL. Empty derives it from the request.
	AppURL string
}

// Handler serves the OAuth endpoints. Without a client id it only offers the
// simulated sign-in that stores a demo credential.
type Handler struct {
	cfg         Config
	store       credential.Store
	endpoint    oauth2.Endpoint
	userInfoURL string
	httpClient  *http.Client
	state       string
	now         func() time.Time
}

type Option func(*Handler)

// WithEndpoint overrides the LinkedIn authorize/token endpoints.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(h *Handler) { h.endpoint = ep }
}

func WithUserInfoURL(u string) Option {
	return func(h *Handler) {
		if u != "" {
			h.userInfoURL = u
		}
	}
}

// WithHTTPClient sets the client used for the token exchange and profile lookup.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Handler) { h.httpClient = c }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHandler(cfg Config, store credential.Store, opts ...Option) *Handler {
	h := &Handler{
		cfg:         cfg,
		store:       store,
		userInfoURL: DefaultUserInfoURL,
		state:       newStateToken(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled reports whether a real LinkedIn app is configured.
func (h *Handler) Enabled() bool {
	return strings.TrimSpace(h.cfg.ClientID) != ""
}

// State returns the CSRF state token expected on the callback.
func (h *Handler) State() string {
	return h.state
}

// AuthURLHandler handles GET /api/auth/url.
func (h *Handler) AuthURLHandler(w http.ResponseWriter, r *http.Request) {
	url := simulateRedirectPath
	if h.Enabled() {
		url = h.oauthConfig(r).AuthCodeURL(h.state)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// HandleLogin redirects the browser to the consent page (or the simulated one).
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.Enabled() {
		http.Redirect(w, r, simulateRedirectPath, http.StatusTemporaryRedirect)
		return
	}
	http.Redirect(w, r, h.oauthConfig(r).AuthCodeURL(h.state), http.StatusTemporaryRedirect)
}

// HandleCallback exchanges the authorization code and stores the credential.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		logger.Warn().Str("error", errCode).Str("description", q.Get("error_description")).Msg("[OAuth] Consent denied")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}
	if q.Get("state") != h.state {
		http.Error(w, "Invalid state token", http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	cred, err := h.exchange(r.Context(), h.oauthConfig(r), code)
	if err != nil {
		logger.Error().Err(err).Msg("[OAuth] LinkedIn sign-in failed")
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}
	if err := h.store.Set(r.Context(), *cred); err != nil {
		logger.Error().Err(err).Msg("[OAuth] Failed to store credential")
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	logger.Info().Str("member_id", cred.ExternalAccountID).Msg("🔑 LinkedIn account connected")
	writeSuccessPage(w)
}

// HandleSimulate handles POST /api/auth/simulate.
func (h *Handler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	if err := h.storeDemo(r.Context()); err != nil {
		http.Error(w, "Failed to store credential", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// SimulateRedirect handles GET /auth/simulate-redirect, the popup variant of HandleSimulate.
func (h *Handler) SimulateRedirect(w http.ResponseWriter, r *http.Request) {
	if err := h.storeDemo(r.Context()); err != nil {
		http.Error(w, "Failed to store credential", http.StatusInternalServerError)
		return
	}
	writeSuccessPage(w)
}

func (h *Handler) storeDemo(ctx context.Context) error {
	cred := models.Credential{
		AccessToken:       "simulated_token",
		ExpiresAt:         h.now().Add(demoLifetime).UTC(),
		ExternalAccountID: "simulated_id",
		DisplayName:       "Demo User",
	}
	if err := h.store.Set(ctx, cred); err != nil {
		logging.FromContext(ctx).Error().Err(err).Msg("[OAuth] Failed to store demo credential")
		return err
	}
	logging.FromContext(ctx).Info().Msg("🔑 Demo credential stored")
	return nil
}

type userInfo struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

func (h *Handler) exchange(ctx context.Context, cfg *oauth2.Config, code string) (*models.Credential, error) {
	if h.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	resp, err := cfg.Client(ctx, token).Get(h.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info returned HTTP %d", resp.StatusCode)
	}
	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("user info has no member id")
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = h.now().Add(defaultTokenLifetime)
	}
	return &models.Credential{
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		ExpiresAt:         expiresAt.UTC(),
		ExternalAccountID: info.Sub,
		DisplayName:       info.Name,
	}, nil
}

func (h *Handler) oauthConfig(r *http.Request) *oauth2.Config {
	return OAuthConfig(h.cfg.ClientID, h.cfg.ClientSecret, h.redirectURL(r), h.endpoint)
}

func (h *Handler) redirectURL(r *http.Request) string {
	if base := strings.TrimRight(strings.TrimSpace(h.cfg.AppURL), "/"); base != "" {
		return base + callbackPath
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, callbackPath)
}

func newStateToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func writeSuccessPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, `<!DOCTYPE html>
<html>
<body>
	<script>
		if (window.opener) {
			window.opener.postMessage({ type: 'OAUTH_AUTH_SUCCESS' }, '*');
			window.close();
		} else {
			window.location.href = '/';
		}
	</script>
	<p>Authentication successful. This window should close automatically.</p>
</body>
</html>`)
}
