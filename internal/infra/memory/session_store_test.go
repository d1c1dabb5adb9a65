package memory

import (
	"testing"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	session, err := app.StartSession("s1", "Alice", samplePool(), 2, 30, app.Runtime{})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	store.Put(session)
	if _, ok := store.Get("s1"); !ok {
		t.Fatalf("expected session present")
	}

	store.Delete("s1")
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("expected session removed")
	}
	if session.GoTo(domain.Next) {
		t.Fatalf("expected deleted session to ignore navigation")
	}
}

func TestSessionStoreReplaceClosesPrevious(t *testing.T) {
	store := NewSessionStore()

	first, _ := app.StartSession("s1", "Alice", samplePool(), 2, 30, app.Runtime{})
	second, _ := app.StartSession("s1", "Alice", samplePool(), 2, 30, app.Runtime{})
	store.Put(first)
	store.Put(second)
	defer store.Delete("s1")

	if _, err := first.Submit(); err != domain.ErrSessionNotFound {
		t.Fatalf("expected replaced session to be closed, got %v", err)
	}
	if got, _ := store.Get("s1"); got != second {
		t.Fatalf("expected latest session stored")
	}
}
