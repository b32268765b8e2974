// Package stub provides the offline publisher used for demo and unknown platforms.
package stub

import (
	"context"
	"time"

	"github.com/pysugar/postpilot/internal/db/models"
	"github.com/pysugar/postpilot/internal/logging"
)

const DefaultDelay = time.Second

// Publisher pretends to publish: it waits for delay and reports success.
type Publisher struct {
	delay time.Duration
}

func New(delay time.Duration) *Publisher {
	if delay < 0 {
		delay = 0
	}
	return &Publisher{delay: delay}
}

func (p *Publisher) Publish(ctx context.Context, post models.Post, _ *models.Credential) error {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	logging.FromContext(ctx).Debug().
		Str("post_id", post.ID).
		Str("platform", post.Platform).
		Msg("[Stub] Simulated publish")
	return nil
}
