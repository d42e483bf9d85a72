package audit

import (
	"context"
	"errors"
	"testing"

	"calltrack/internal/auth"
)

func TestService_AppendRequiresUserAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventNumberPurchased}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := svc.Append(context.Background(), Event{UserID: "u"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestService_FillsActorFromContext(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ctx := auth.WithIdentity(context.Background(), "admin-1", "admin")
	if err := svc.Append(ctx, Event{UserID: "u1", Type: EventBalanceCredited, TargetID: "u1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].ActorUserID != "admin-1" || evs[0].ActorRole != "admin" {
		t.Fatalf("expected actor from context, got %+v", evs[0])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
}

func TestService_ListByUserNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.Append(ctx, Event{UserID: "u1", Type: EventNumberPurchased, TargetID: "n1"})
	_ = svc.Append(ctx, Event{UserID: "u2", Type: EventNumberPurchased, TargetID: "n2"})
	_ = svc.Append(ctx, Event{UserID: "u1", Type: EventNumberReleased, TargetID: "n1"})

	evs, err := svc.ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 2 || evs[0].Type != EventNumberReleased {
		t.Fatalf("unexpected events %+v", evs)
	}
}

type failingAppender struct{ called bool }

func (f *failingAppender) Append(context.Context, Event) error {
	f.called = true
	return errors.New("db down")
}

func TestRecord_SwallowsErrors(t *testing.T) {
	f := &failingAppender{}
	Record(context.Background(), f, Event{UserID: "u", Type: EventNumberUpdated})
	if !f.called {
		t.Fatalf("expected append attempted")
	}
	Record(context.Background(), nil, Event{UserID: "u", Type: EventNumberUpdated})
}
