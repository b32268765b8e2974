// Package linkedin publishes posts through the LinkedIn UGC API.
//
// A post with an image goes through three calls: registerUpload, the binary
// upload to the returned URL, then ugcPosts. Text-only posts skip the first two.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pysugar/postpilot/internal/auth/credential"
	"github.com/pysugar/postpilot/internal/db/models"
	"github.com/pysugar/postpilot/internal/logging"
	"github.com/pysugar/postpilot/internal/publisher"
	"github.com/pysugar/postpilot/internal/util"
	"golang.org/x/time/rate"
)

const (
	platform = models.PlatformLinkedIn

	DefaultAPIBase  = "https://api.linkedin.com"
	defaultTimeout  = 30 * time.Second
	defaultRate     = 5
	maxResponseBody = 1 << 20

	uploadMechanismKey = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"
	imageDescription   = "AI Generated Image"
	imageTitle         = "Post Image"
)

// Publisher talks to LinkedIn on behalf of the stored credential.
type Publisher struct {
	apiBase    string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

type Option func(*Publisher)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Publisher) {
		if c != nil {
			p.httpClient = c
		}
	}
}

func WithAPIBase(base string) Option {
	return func(p *Publisher) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			p.apiBase = base
		}
	}
}

// WithRateLimit caps outbound requests per second. Zero or less disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(p *Publisher) {
		if perSecond <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func New(opts ...Option) *Publisher {
	p := &Publisher{
		apiBase:    DefaultAPIBase,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRate), defaultRate),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Publish(ctx context.Context, post models.Post, cred *models.Credential) error {
	if cred == nil {
		return publisher.AuthError(platform, "not authenticated")
	}
	if credential.IsExpired(cred, p.now()) {
		return publisher.AuthError(platform, "session expired, please reconnect")
	}

	author := "urn:li:person:" + cred.ExternalAccountID
	var asset string
	if strings.TrimSpace(post.Image) != "" {
		data, contentType, err := publisher.DecodeImage(post.Image)
		if err != nil {
			return publisher.NewError(platform, "invalid image", err)
		}
		var uploadURL string
		asset, uploadURL, err = p.registerUpload(ctx, cred.AccessToken, author)
		if err != nil {
			return err
		}
		if err := p.upload(ctx, cred.AccessToken, uploadURL, contentType, data); err != nil {
			return err
		}
	}

	if err := p.createPost(ctx, cred.AccessToken, author, post.Content, asset); err != nil {
		return err
	}
	logging.FromContext(ctx).Info().
		Str("post_id", post.ID).
		Bool("image", asset != "").
		Msg("[LinkedIn] Post published")
	return nil
}

type registerUploadResponse struct {
	Value struct {
		Asset           string                     `json:"asset"`
		UploadMechanism map[string]json.RawMessage `json:"uploadMechanism"`
	} `json:"value"`
}

type uploadHTTPRequest struct {
	UploadURL string `json:"uploadUrl"`
}

func (p *Publisher) registerUpload(ctx context.Context, token, owner string) (asset, uploadURL string, err error) {
	body := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   owner,
			"serviceRelationships": []map[string]string{{
				"relationshipType": "OWNER",
				"identifier":       "urn:li:userGeneratedContent",
			}},
		},
	}

	raw, err := p.doJSON(ctx, token, p.apiBase+"/v2/assets?action=registerUpload", body, nil)
	if err != nil {
		return "", "", publisher.NewError(platform, "register upload failed", err)
	}

	var resp registerUploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", "", publisher.NewError(platform, "register upload failed", fmt.Errorf("decode response: %w", err))
	}
	var mech uploadHTTPRequest
	if m, ok := resp.Value.UploadMechanism[uploadMechanismKey]; ok {
		_ = json.Unmarshal(m, &mech)
	}
	if resp.Value.Asset == "" || mech.UploadURL == "" {
		return "", "", publisher.NewError(platform, "register upload failed", fmt.Errorf("response missing asset or upload URL"))
	}
	return resp.Value.Asset, mech.UploadURL, nil
}

func (p *Publisher) upload(ctx context.Context, token, uploadURL, contentType string, data []byte) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return publisher.NewError(platform, "image upload failed", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return publisher.NewError(platform, "image upload failed", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return publisher.NewError(platform, "image upload failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		return publisher.NewError(platform, "image upload failed", statusError(resp.StatusCode, b))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	return nil
}

func (p *Publisher) createPost(ctx context.Context, token, author, text, asset string) error {
	share := map[string]any{
		"shareCommentary":    map[string]string{"text": text},
		"shareMediaCategory": "NONE",
	}
	if asset != "" {
		share["shareMediaCategory"] = "IMAGE"
		share["media"] = []map[string]any{{
			"status":      "READY",
			"description": map[string]string{"text": imageDescription},
			"media":       asset,
			"title":       map[string]string{"text": imageTitle},
		}}
	}
	body := map[string]any{
		"author":          author,
		"lifecycleState":  "PUBLISHED",
		"specificContent": map[string]any{"com.linkedin.ugc.ShareContent": share},
		"visibility":      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}

	headers := map[string]string{"X-Restli-Protocol-Version": "2.0.0"}
	if _, err := p.doJSON(ctx, token, p.apiBase+"/v2/ugcPosts", body, headers); err != nil {
		return publisher.NewError(platform, "create post failed", err)
	}
	return nil
}

// doJSON posts payload as JSON and returns the response body of a 2xx reply.
func (p *Publisher) doJSON(ctx context.Context, token, url string, payload any, headers map[string]string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, b)
	}
	return b, nil
}

func statusError(code int, body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("HTTP %d", code)
	}
	return fmt.Errorf("HTTP %d: %s", code, util.TruncateBytes(body))
}
