// Package scheduler runs the periodic publication loop.
//
// Every tick loads the pending posts whose time has come, publishes them with
// bounded concurrency and records the outcome. Ticks never overlap: the cron
// job is wrapped with DelayIfStillRunning and Tick itself holds a mutex, so a
// manual run and a cron run are serialized too.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pysugar/postpilot/internal/auth/credential"
	"github.com/pysugar/postpilot/internal/db/models"
	"github.com/pysugar/postpilot/internal/logging"
	"github.com/pysugar/postpilot/internal/publisher"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSpec           = "@every 1m"
	DefaultWorkers        = 4
	DefaultPublishTimeout = 2 * time.Minute
)

type Config struct {
	Spec           string
	Workers        int
	PublishTimeout time.Duration
}

// PostStore is the part of the post repository the loop needs.
type PostStore interface {
	ListDue(ctx context.Context, now time.Time) ([]models.Post, error)
	MarkPosted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, detail string) error
}

// Resolver picks the publisher for a platform tag.
type Resolver interface {
	Resolve(platform string) publisher.Publisher
}

// Report summarizes one tick.
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Due       int           `json:"due"`
	Posted    int           `json:"posted"`
	Failed    int           `json:"failed"`

	// Deferred counts posts left pending because the tick was canceled.
	Deferred int `json:"deferred"`

	// Error is set when the due posts could not be loaded.
	Error string `json:"error,omitempty"`
}

type Scheduler struct {
	cfg        Config
	posts      PostStore
	creds      credential.Store
	publishers Resolver
	now        func() time.Time
	parser     cron.Parser

	tickMu sync.Mutex

	mu     sync.Mutex
	c      *cron.Cron
	cancel context.CancelFunc
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func New(cfg Config, posts PostStore, creds credential.Store, publishers Resolver, opts ...Option) *Scheduler {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	// SecondOptional accepts both 5-field and 6-field specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Scheduler{
		cfg:        cfg,
		posts:      posts,
		creds:      creds,
		publishers: publishers,
		now:        time.Now,
		parser:     parser,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateSpec reports whether spec is a schedule the loop accepts.
func (s *Scheduler) ValidateSpec(spec string) error {
	_, err := s.parser.Parse(spec)
	return err
}

// Start begins periodic ticks. Ticks run with a context derived from ctx;
// canceling it aborts in-flight publishes and leaves those posts pending.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if err := s.ValidateSpec(s.cfg.Spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.cfg.Spec, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{}
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.DelayIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() { s.Tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("register tick: %w", err)
	}
	c.Start()
	s.c = c
	s.cancel = cancel

	log.Info().
		Str("spec", s.cfg.Spec).
		Int("workers", s.cfg.Workers).
		Dur("publish_timeout", s.cfg.PublishTimeout).
		Msg("[Scheduler] Started")
	return nil
}

// Stop halts further ticks and waits for a running one to finish. If ctx
// expires first, in-flight publishes are canceled and Stop still waits for
// the tick to record what it has.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("[Scheduler] Stop deadline reached, canceling in-flight publishes")
		cancel()
		<-done
	}
	cancel()
	log.Info().Msg("[Scheduler] Stopped")
}

// Tick runs one pass over the due posts and returns what happened.
func (s *Scheduler) Tick(ctx context.Context) Report {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	started := s.now()
	report := Report{StartedAt: started.UTC()}
	logger := logging.FromContext(ctx)

	due, err := s.posts.ListDue(ctx, started)
	if err != nil {
		logger.Error().Err(err).Msg("[Scheduler] Failed to load due posts")
		report.Error = err.Error()
		report.Duration = time.Since(started)
		return report
	}
	report.Due = len(due)
	if len(due) == 0 {
		report.Duration = time.Since(started)
		logger.Debug().Msg("[Scheduler] Nothing due")
		return report
	}

	var posted, failed, deferred atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, post := range due {
		if ctx.Err() != nil {
			deferred.Add(int64(len(due) - i))
			break
		}
		g.Go(func() error {
			switch s.publishOne(ctx, post) {
			case outcomePosted:
				posted.Add(1)
			case outcomeFailed:
				failed.Add(1)
			default:
				deferred.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Posted = int(posted.Load())
	report.Failed = int(failed.Load())
	report.Deferred = int(deferred.Load())
	report.Duration = time.Since(started)

	logger.Info().
		Int("due", report.Due).
		Int("posted", report.Posted).
		Int("failed", report.Failed).
		Int("deferred", report.Deferred).
		Dur("took", report.Duration).
		Msg("[Scheduler] Tick finished")
	return report
}

type outcome int

const (
	outcomeDeferred outcome = iota
	outcomePosted
	outcomeFailed
)

func (s *Scheduler) publishOne(ctx context.Context, post models.Post) outcome {
	logger := logging.FromContext(ctx).With().
		Str("post_id", post.ID).
		Str("platform", post.Platform).
		Logger()

	pubCtx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()
	err := s.safePublish(pubCtx, post)

	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		logger.Warn().Msg("[Scheduler] Publish interrupted, post stays pending")
		return outcomeDeferred
	}

	// The outcome must be recorded even if ctx is canceled meanwhile.
	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("[Scheduler] Publish failed")
		if markErr := s.posts.MarkFailed(writeCtx, post.ID, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("[Scheduler] Failed to record failure")
		}
		return outcomeFailed
	}
	if markErr := s.posts.MarkPosted(writeCtx, post.ID); markErr != nil {
		logger.Error().Err(markErr).Msg("[Scheduler] Failed to record publish")
	}
	logger.Info().Msg("[Scheduler] Post published")
	return outcomePosted
}

func (s *Scheduler) safePublish(ctx context.Context, post models.Post) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()

	var cred *models.Credential
	if c, ok := s.creds.Get(ctx); ok {
		cred = c
	}
	return s.publishers.Resolve(post.Platform).Publish(ctx, post, cred)
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("[Scheduler] cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("[Scheduler] cron: " + msg)
}
