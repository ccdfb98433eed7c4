package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBackend_PutGet(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(0))

	if err := s.Put(ctx, NamespaceOrders, "order-1", []byte("payload"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, NamespaceOrders, "order-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("expected 'payload', got %q", got)
	}
}

func TestMemoryBackend_GetMissingReturnsNotFound(t *testing.T) {
	s := New(NewMemoryBackend(0))
	_, err := s.Get(context.Background(), NamespaceOrders, "missing")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryBackend_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(0))

	if err := s.Put(ctx, NamespaceIntents, "intent-1", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := s.Exists(ctx, NamespaceIntents, "intent-1")
	if err != nil || !exists {
		t.Fatalf("expected key to exist immediately after put, exists=%v err=%v", exists, err)
	}

	time.Sleep(30 * time.Millisecond)

	if _, err := s.Get(ctx, NamespaceIntents, "intent-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after TTL elapsed, got %v", err)
	}
}

func TestMemoryBackend_ZeroTTLIsPermanent(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(0))
	_ = s.Put(ctx, NamespaceOrders, "permanent", []byte("x"), 0)
	time.Sleep(10 * time.Millisecond)
	if _, err := s.Get(ctx, NamespaceOrders, "permanent"); err != nil {
		t.Fatalf("expected permanent key to survive, got %v", err)
	}
}

func TestMemoryBackend_Scan(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(0))
	_ = s.Put(ctx, NamespaceMonitoring, "1:0xabc", []byte("a"), 0)
	_ = s.Put(ctx, NamespaceMonitoring, "1:0xdef", []byte("b"), 0)

	entries, err := s.Scan(ctx, NamespaceMonitoring)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestMemoryBackend_Delete(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(0))
	_ = s.Put(ctx, NamespaceOrders, "k", []byte("v"), 0)
	if err := s.Delete(ctx, NamespaceOrders, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, NamespaceOrders, "k"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFileBackend_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	s := New(backend)
	ctx := context.Background()

	if err := s.Put(ctx, NamespaceOrders, "order-1", []byte(`{"status":"created"}`), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, NamespaceOrders, "order-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"status":"created"}` {
		t.Fatalf("round-trip mismatch: got %q", got)
	}

	// A fresh backend over the same directory must see the same data,
	// proving persistence survives process restart.
	backend2, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend (reopen) failed: %v", err)
	}
	s2 := New(backend2)
	got2, err := s2.Get(ctx, NamespaceOrders, "order-1")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got2) != string(got) {
		t.Fatalf("expected identical record after reopen")
	}
}

func TestFileBackend_TTLExpiry(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	s := New(backend)
	ctx := context.Background()

	_ = s.Put(ctx, NamespaceIntents, "i1", []byte("x"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, err := s.Get(ctx, NamespaceIntents, "i1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
