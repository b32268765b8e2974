package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pysugar/postpilot/internal/auth/credential"
	"github.com/pysugar/postpilot/internal/db"
	"github.com/pysugar/postpilot/internal/db/models"
	"github.com/pysugar/postpilot/internal/posts"
	"github.com/pysugar/postpilot/internal/publisher"
	"github.com/pysugar/postpilot/internal/publisher/linkedin"
	"github.com/pysugar/postpilot/internal/publisher/stub"
)

type publishFunc func(ctx context.Context, post models.Post, cred *models.Credential) error

func (f publishFunc) Publish(ctx context.Context, post models.Post, cred *models.Credential) error {
	return f(ctx, post, cred)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type fixture struct {
	repo  *posts.Repository
	creds *credential.DBStore
	reg   *publisher.Registry
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	database, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	return &fixture{
		repo:  posts.NewRepository(database),
		creds: credential.NewDBStore(database),
		reg:   publisher.NewRegistry(stub.New(0)),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) scheduler(cfg Config) *Scheduler {
	return New(cfg, f.repo, f.creds, f.reg, WithClock(func() time.Time { return f.now }))
}

func (f *fixture) submit(t *testing.T, platform, content string, at time.Time) string {
	t.Helper()
	id, err := f.repo.Create(context.Background(), posts.NewPost{Platform: platform, Content: content, ScheduledAt: at})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return id
}

func (f *fixture) status(t *testing.T, id string) models.Post {
	t.Helper()
	post, err := f.repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return post
}

func TestTick_DemoPostIsPosted(t *testing.T) {
	f := newFixture(t)
	id := f.submit(t, "demo", "hello", f.now.Add(-time.Minute))

	report := f.scheduler(Config{}).Tick(context.Background())

	if report.Due != 1 || report.Posted != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := f.status(t, id); got.Status != models.PostStatusPosted || got.Error != "" {
		t.Fatalf("expected posted without error, got %+v", got)
	}
}

func TestTick_LinkedInWithoutCredentialFails(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}"))}, nil
	})}
	f.reg.Register(models.PlatformLinkedIn, linkedin.New(linkedin.WithHTTPClient(client), linkedin.WithRateLimit(0)))

	id := f.submit(t, models.PlatformLinkedIn, "hello", f.now.Add(-time.Minute))
	report := f.scheduler(Config{}).Tick(context.Background())

	got := f.status(t, id)
	if got.Status != models.PostStatusFailed {
		t.Fatalf("expected failed, got %q", got.Status)
	}
	if !strings.Contains(strings.ToLower(got.Error), "authenticated") {
		t.Fatalf("expected authentication error, got %q", got.Error)
	}
	if report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", calls.Load())
	}
}

func TestTick_PassesStoredCredential(t *testing.T) {
	f := newFixture(t)
	if err := f.creds.Set(context.Background(), models.Credential{AccessToken: "tok", ExternalAccountID: "m1", ExpiresAt: f.now.Add(time.Hour)}); err != nil {
		t.Fatalf("set credential: %v", err)
	}
	var seen string
	f.reg.Register("custom", publishFunc(func(_ context.Context, _ models.Post, cred *models.Credential) error {
		if cred != nil {
			seen = cred.AccessToken
		}
		return nil
	}))

	f.submit(t, "custom", "hello", f.now)
	f.scheduler(Config{Workers: 1}).Tick(context.Background())

	if seen != "tok" {
		t.Fatalf("expected publisher to receive the stored credential, got %q", seen)
	}
}

func TestTick_OnlyDuePostsAreProcessed(t *testing.T) {
	f := newFixture(t)
	past := f.submit(t, "demo", "past", f.now.Add(-time.Hour))
	exact := f.submit(t, "demo", "exact", f.now)
	future := f.submit(t, "demo", "future", f.now.Add(time.Second))

	report := f.scheduler(Config{}).Tick(context.Background())

	if report.Due != 2 {
		t.Fatalf("expected 2 due posts, got %+v", report)
	}
	for _, id := range []string{past, exact} {
		if got := f.status(t, id); got.Status != models.PostStatusPosted {
			t.Fatalf("expected %s posted, got %q", id, got.Status)
		}
	}
	if got := f.status(t, future); got.Status != models.PostStatusPending {
		t.Fatalf("future post must stay pending, got %q", got.Status)
	}
}

func TestTick_FailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.reg.Register("flaky", publishFunc(func(_ context.Context, post models.Post, _ *models.Credential) error {
		switch post.Content {
		case "error":
			return publisher.NewError("flaky", "rejected", errors.New("HTTP 500"))
		case "panic":
			panic("boom")
		}
		return nil
	}))

	okID := f.submit(t, "flaky", "ok", f.now)
	errID := f.submit(t, "flaky", "error", f.now)
	panicID := f.submit(t, "flaky", "panic", f.now)

	report := f.scheduler(Config{Workers: 3}).Tick(context.Background())

	if report.Posted != 1 || report.Failed != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := f.status(t, okID); got.Status != models.PostStatusPosted {
		t.Fatalf("expected ok post posted, got %q", got.Status)
	}
	if got := f.status(t, errID); got.Status != models.PostStatusFailed || got.Error != "flaky: rejected: HTTP 500" {
		t.Fatalf("unexpected failed post %+v", got)
	}
	if got := f.status(t, panicID); got.Status != models.PostStatusFailed || !strings.Contains(got.Error, "panic") {
		t.Fatalf("unexpected panicking post %+v", got)
	}
}

func TestTick_FailedPostsAreNotRetried(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	f.reg.Register("broken", publishFunc(func(context.Context, models.Post, *models.Credential) error {
		calls.Add(1)
		return errors.New("nope")
	}))
	f.submit(t, "broken", "x", f.now)

	s := f.scheduler(Config{})
	s.Tick(context.Background())
	second := s.Tick(context.Background())

	if calls.Load() != 1 {
		t.Fatalf("expected a single publish attempt, got %d", calls.Load())
	}
	if second.Due != 0 {
		t.Fatalf("failed post must not be due again, got %+v", second)
	}
}

func TestTick_BoundedConcurrency(t *testing.T) {
	f := newFixture(t)
	var active, peak atomic.Int32
	f.reg.Register("slow", publishFunc(func(context.Context, models.Post, *models.Credential) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return nil
	}))
	for i := 0; i < 6; i++ {
		f.submit(t, "slow", fmt.Sprintf("post %d", i), f.now)
	}

	report := f.scheduler(Config{Workers: 2}).Tick(context.Background())

	if report.Posted != 6 {
		t.Fatalf("unexpected report %+v", report)
	}
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent publishes, saw %d", peak.Load())
	}
}

func TestTick_PublishTimeoutMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.reg.Register("hang", publishFunc(func(ctx context.Context, _ models.Post, _ *models.Credential) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	id := f.submit(t, "hang", "x", f.now)

	f.scheduler(Config{PublishTimeout: 20 * time.Millisecond}).Tick(context.Background())

	got := f.status(t, id)
	if got.Status != models.PostStatusFailed || !strings.Contains(got.Error, "deadline exceeded") {
		t.Fatalf("expected timeout failure, got %+v", got)
	}
}

func TestTick_CanceledPublishStaysPending(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{})
	f.reg.Register("hang", publishFunc(func(ctx context.Context, _ models.Post, _ *models.Credential) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}))
	id := f.submit(t, "hang", "x", f.now)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-entered
		cancel()
	}()
	report := f.scheduler(Config{}).Tick(ctx)

	if report.Deferred != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := f.status(t, id); got.Status != models.PostStatusPending {
		t.Fatalf("interrupted post must stay pending, got %q", got.Status)
	}
}

// countingStore wraps a repository and counts ListDue calls.
type countingStore struct {
	*posts.Repository
	listed atomic.Int32
}

func (c *countingStore) ListDue(ctx context.Context, now time.Time) ([]models.Post, error) {
	c.listed.Add(1)
	return c.Repository.ListDue(ctx, now)
}

func TestTick_NeverOverlaps(t *testing.T) {
	f := newFixture(t)
	store := &countingStore{Repository: f.repo}
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	f.reg.Register("block", publishFunc(func(context.Context, models.Post, *models.Credential) error {
		entered <- struct{}{}
		<-release
		return nil
	}))
	f.submit(t, "block", "x", f.now)

	s := New(Config{}, store, f.creds, f.reg, WithClock(func() time.Time { return f.now }))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Tick(context.Background())
	}()
	<-entered
	go func() {
		defer wg.Done()
		s.Tick(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	if n := store.listed.Load(); n != 1 {
		t.Fatalf("second tick started before the first finished (ListDue calls = %d)", n)
	}
	close(release)
	wg.Wait()

	if n := store.listed.Load(); n != 2 {
		t.Fatalf("expected the second tick to run afterwards, ListDue calls = %d", n)
	}
}

type failingStore struct{}

func (failingStore) ListDue(context.Context, time.Time) ([]models.Post, error) {
	return nil, errors.New("database is locked")
}
func (failingStore) MarkPosted(context.Context, string) error         { return nil }
func (failingStore) MarkFailed(context.Context, string, string) error { return nil }

func TestTick_ListErrorIsReported(t *testing.T) {
	f := newFixture(t)
	report := New(Config{}, failingStore{}, f.creds, f.reg).Tick(context.Background())
	if report.Error == "" || report.Due != 0 {
		t.Fatalf("expected error in report, got %+v", report)
	}
}

func TestStart_RejectsInvalidSpec(t *testing.T) {
	f := newFixture(t)
	if err := f.scheduler(Config{Spec: "every now and then"}).Start(context.Background()); err == nil {
		t.Fatal("expected invalid spec to be rejected")
	}
}

func TestValidateSpec(t *testing.T) {
	s := New(Config{}, nil, nil, nil)
	for _, spec := range []string{"@every 1m", "* * * * *", "*/10 * * * * *", "@hourly"} {
		if err := s.ValidateSpec(spec); err != nil {
			t.Fatalf("expected %q to be valid: %v", spec, err)
		}
	}
}

func TestStartStop_RunsTicks(t *testing.T) {
	f := newFixture(t)
	id := f.submit(t, "demo", "x", time.Now().Add(-time.Minute))

	s := New(Config{Spec: "* * * * * *"}, f.repo, f.creds, f.reg)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if f.status(t, id).Status == models.PostStatusPosted {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if got := f.status(t, id); got.Status != models.PostStatusPosted {
		t.Fatalf("expected cron tick to publish the post, got %q", got.Status)
	}
	s.Stop(ctx)
}
