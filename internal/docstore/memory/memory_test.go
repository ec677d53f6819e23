package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sitepay/internal/docstore"
	"sitepay/internal/identity"
)

func authed() context.Context {
	return identity.WithSession(context.Background(), &identity.Session{ID: "test", Anonymous: true})
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("doc-%d", n)
	}
}

func TestRejectsWithoutSession(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Insert(ctx, "c", docstore.Fields{"name": "x"}); !errors.Is(err, docstore.ErrUnauthenticated) {
		t.Fatalf("insert: expected ErrUnauthenticated, got %v", err)
	}
	if err := s.Update(ctx, "c", "id", docstore.Fields{}); !errors.Is(err, docstore.ErrUnauthenticated) {
		t.Fatalf("update: expected ErrUnauthenticated, got %v", err)
	}
	if err := s.Delete(ctx, "c", "id"); !errors.Is(err, docstore.ErrUnauthenticated) {
		t.Fatalf("delete: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := s.Subscribe(ctx, "c", docstore.Query{}, func([]docstore.Document) {}, nil); !errors.Is(err, docstore.ErrUnauthenticated) {
		t.Fatalf("subscribe: expected ErrUnauthenticated, got %v", err)
	}
}

func TestInsertUpdateDelete(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	now := t0
	s := New(WithClock(func() time.Time { return now }), WithIDs(sequentialIDs()))
	defer s.Close()
	ctx := authed()

	id, err := s.Insert(ctx, "payments", docstore.Fields{
		"item":      "Wiring",
		"amount":    15000.0,
		"createdAt": docstore.ServerTimestamp,
	})
	if err != nil || id != "doc-1" {
		t.Fatalf("insert: id=%q err=%v", id, err)
	}

	now = t0.Add(time.Hour)
	if err := s.Update(ctx, "payments", id, docstore.Fields{"status": "paid", "updatedAt": docstore.ServerTimestamp}); err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, ok := s.Get("payments", id)
	if !ok {
		t.Fatal("document missing after update")
	}
	if doc.Fields.String("item") != "Wiring" || doc.Fields.String("status") != "paid" {
		t.Fatalf("partial merge lost fields: %v", doc.Fields)
	}
	if !doc.Fields.Time("createdAt").Equal(t0) || !doc.Fields.Time("updatedAt").Equal(now) {
		t.Fatalf("unexpected timestamps: %v", doc.Fields)
	}
	if s.Count("payments") != 1 {
		t.Fatalf("update must not duplicate, count=%d", s.Count("payments"))
	}

	if err := s.Update(ctx, "payments", "missing", docstore.Fields{}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if err := s.Delete(ctx, "payments", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "payments", id); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSubscribeReceivesOrderedSnapshots(t *testing.T) {
	s := New(WithIDs(sequentialIDs()))
	defer s.Close()
	ctx := authed()

	snaps := make(chan []docstore.Document, 10)
	unsub, err := s.Subscribe(ctx, "payments", docstore.Query{OrderBy: "expectedDate", Direction: docstore.Desc},
		func(d []docstore.Document) { snaps <- d }, func(err error) { t.Errorf("unexpected error %v", err) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if first := next(t, snaps); len(first) != 0 {
		t.Fatalf("expected empty first snapshot, got %d docs", len(first))
	}

	_, _ = s.Insert(ctx, "payments", docstore.Fields{"expectedDate": "2024-05-01"})
	_, _ = s.Insert(ctx, "payments", docstore.Fields{"expectedDate": "2024-07-01"})

	var last []docstore.Document
	deadline := time.After(2 * time.Second)
	for len(last) < 2 {
		select {
		case last = <-snaps:
		case <-deadline:
			t.Fatal("timed out waiting for two documents")
		}
	}
	if last[0].Fields.String("expectedDate") != "2024-07-01" {
		t.Fatalf("expected newest expected date first, got %v", last[0].Fields)
	}
}

func TestFailCollectionIsolated(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := authed()

	errs := make(chan error, 1)
	okSnaps := make(chan []docstore.Document, 10)
	_, _ = s.Subscribe(ctx, "vendors", docstore.Query{}, func([]docstore.Document) {}, func(err error) { errs <- err })
	_, _ = s.Subscribe(ctx, "projects", docstore.Query{}, func(d []docstore.Document) { okSnaps <- d }, nil)
	next(t, okSnaps)

	boom := errors.New("permission denied")
	s.FailCollection("vendors", boom)

	select {
	case err := <-errs:
		if !errors.Is(err, boom) {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription error")
	}

	_, _ = s.Insert(ctx, "projects", docstore.Fields{"name": "Site A"})
	if got := next(t, okSnaps); len(got) != 1 {
		t.Fatalf("healthy collection should keep streaming, got %d docs", len(got))
	}
}

func next(t *testing.T, ch <-chan []docstore.Document) []docstore.Document {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}
