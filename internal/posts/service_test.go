package posts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pysugar/postpilot/internal/db/models"
)

func TestSubmit_RoundTripThroughPlatformListing(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t)))
	ctx := context.Background()
	scheduled := time.Date(2026, 7, 4, 15, 0, 0, 0, time.UTC)

	in := NewPost{
		Platform:    "LinkedIn ",
		Prompt:      "write about gophers",
		Content:     "Gophers are great.",
		Image:       "data:image/png;base64,iVBORw0KGgo=",
		ScheduledAt: scheduled,
	}
	id, err := svc.Submit(ctx, in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Submit(ctx, NewPost{Platform: "x", Content: "other", ScheduledAt: scheduled}); err != nil {
		t.Fatalf("submit other: %v", err)
	}

	list, err := svc.ListForPlatform(ctx, "linkedin")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 linkedin post, got %d", len(list))
	}
	got := list[0]
	if got.ID != id || got.Platform != models.PlatformLinkedIn {
		t.Fatalf("unexpected post identity: %+v", got)
	}
	if got.Prompt != in.Prompt || got.Content != in.Content || got.Image != in.Image {
		t.Fatalf("submitted fields changed: %+v", got)
	}
	if !got.ScheduledAt.Equal(scheduled) {
		t.Fatalf("scheduled_at changed: want %v got %v", scheduled, got.ScheduledAt)
	}
	if got.Status != models.PostStatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
}

func TestSubmit_DefaultsPlatform(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t)))
	id, err := svc.Submit(context.Background(), NewPost{Content: "hi", ScheduledAt: time.Now()})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, _ := svc.Get(context.Background(), id)
	if got.Platform != models.PlatformLinkedIn {
		t.Fatalf("expected default platform linkedin, got %q", got.Platform)
	}
}

func TestSubmit_EmptyContentIsValidationError(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t)))
	_, err := svc.Submit(context.Background(), NewPost{Platform: "demo", ScheduledAt: time.Now()})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCancel_IsIdempotent(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t)))
	ctx := context.Background()

	id, _ := svc.Submit(ctx, NewPost{Platform: "demo", Content: "bye", ScheduledAt: time.Now()})
	for i := 0; i < 2; i++ {
		if err := svc.Cancel(ctx, id); err != nil {
			t.Fatalf("cancel #%d: %v", i+1, err)
		}
	}
	if err := svc.Cancel(ctx, "never-existed"); err != nil {
		t.Fatalf("cancel unknown: %v", err)
	}
	list, _ := svc.List(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}
