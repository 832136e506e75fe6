package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLedger(t *testing.T, ttl time.Duration) (*Ledger, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, ttl), mr
}

func TestPersistAndFind(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t, 7*24*time.Hour)
	ctx := context.Background()

	identity := Identity{UserID: "user-1", Email: "alice@example.com"}
	meta := ClientMeta{UserAgent: "quizroom-app/1.0", IPAddress: "203.0.113.7"}

	id, err := l.Persist(ctx, identity, meta)
	if err != nil {
		t.Fatalf("Persist() returned error: %v", err)
	}
	if id == "" {
		t.Fatal("Persist() returned empty record id")
	}

	record, err := l.Find(ctx, id)
	if err != nil {
		t.Fatalf("Find() returned error: %v", err)
	}
	if record.UserID != identity.UserID || record.Email != identity.Email {
		t.Errorf("Record identity mismatch: %+v", record)
	}
	if record.UserAgent != meta.UserAgent || record.IPAddress != meta.IPAddress {
		t.Errorf("Record client metadata mismatch: %+v", record)
	}
	if !record.ExpiresAt.After(record.CreatedAt) {
		t.Errorf("Expected expiry after creation, got created=%s expires=%s", record.CreatedAt, record.ExpiresAt)
	}
}

func TestPersistSetsStorageTTL(t *testing.T) {
	t.Parallel()

	ttl := 7 * 24 * time.Hour
	l, mr := newTestLedger(t, ttl)

	id, err := l.Persist(context.Background(), Identity{UserID: "user-1", Email: "a@example.com"}, ClientMeta{})
	if err != nil {
		t.Fatalf("Persist() returned error: %v", err)
	}

	got := mr.TTL(keyPrefix + id)
	if got <= 0 || got > ttl {
		t.Fatalf("Expected storage TTL in (0, %s], got %s", ttl, got)
	}
}

func TestFindAfterStorageExpiry(t *testing.T) {
	t.Parallel()

	l, mr := newTestLedger(t, time.Minute)
	ctx := context.Background()

	id, err := l.Persist(ctx, Identity{UserID: "user-1", Email: "a@example.com"}, ClientMeta{})
	if err != nil {
		t.Fatalf("Persist() returned error: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := l.Find(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after TTL expiry, got %v", err)
	}
}

func TestFindUnknownID(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t, time.Minute)

	if _, err := l.Find(context.Background(), "no-such-record"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteReportsRemoval(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t, time.Minute)
	ctx := context.Background()

	id, err := l.Persist(ctx, Identity{UserID: "user-1", Email: "a@example.com"}, ClientMeta{})
	if err != nil {
		t.Fatalf("Persist() returned error: %v", err)
	}

	removed, err := l.Delete(ctx, id)
	if err != nil {
		t.Fatalf("Delete() returned error: %v", err)
	}
	if !removed {
		t.Fatal("Expected first delete to report removal")
	}

	// Idempotent: a second delete is not an error, but reports nothing removed
	removed, err = l.Delete(ctx, id)
	if err != nil {
		t.Fatalf("Second Delete() returned error: %v", err)
	}
	if removed {
		t.Fatal("Expected second delete to report no removal")
	}

	if _, err := l.Find(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
}
