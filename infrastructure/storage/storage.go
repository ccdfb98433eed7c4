// Package storage provides the namespaced, TTL-aware key-value contract the
// engine persists Intents, Orders, quotes, and TransactionRecords through.
// It generalizes the platform's single-keyspace
// infrastructure/state.PersistentState to the namespace + TTL + scan
// contract the solver needs, keeping the same suspension-point-on-every-call
// shape so in-memory and on-disk backends present a uniform API.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/intent-solver/infrastructure/metrics"
)

// Namespace is one of the four fixed keyspaces the engine writes to.
type Namespace string

const (
	NamespaceOrders     Namespace = "orders"
	NamespaceIntents    Namespace = "intents"
	NamespaceQuotes     Namespace = "quotes"
	NamespaceMonitoring Namespace = "monitoring"
)

// ErrNotFound is returned by Get when the key is absent or has expired.
var ErrNotFound = errors.New("storage: key not found")

// ErrStorageFailure wraps any backend failure as a StorageFailure; the
// engine logs it and abandons the current transition, leaving the last
// committed state in place. The transition is not retried.
var ErrStorageFailure = errors.New("storage: operation failed")

// Entry is one (key, value) pair returned by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Backend is the pluggable persistence contract. Implementations must be
// safe for concurrent use; the engine is the only writer per key (per
// design, not enforced by the backend), but reads may run concurrently with
// writes from any number of goroutines.
type Backend interface {
	// Put upserts value under (namespace, key). ttl == 0 means permanent.
	Put(ctx context.Context, ns Namespace, key string, value []byte, ttl time.Duration) error
	// Get returns the value, or ErrNotFound if absent or expired.
	Get(ctx context.Context, ns Namespace, key string) ([]byte, error)
	// Exists reports presence without materializing the value.
	Exists(ctx context.Context, ns Namespace, key string) (bool, error)
	// Delete removes a key; deleting an absent key is not an error.
	Delete(ctx context.Context, ns Namespace, key string) error
	// Scan returns a finite, non-restartable snapshot of all live entries in
	// a namespace. Used only by cleanup and by recovery on startup.
	Scan(ctx context.Context, ns Namespace) ([]Entry, error)
	// Close releases backend resources (timers, file handles, connections).
	Close(ctx context.Context) error
}

// Store is the engine-facing façade over a Backend. It exists so call sites
// read "storage.Store" rather than a bare Backend, matching the platform's
// PersistentState/Backend split in infrastructure/state.
type Store struct {
	backend Backend

	metric  *metrics.Metrics
	service string
}

// New wraps a Backend in the engine-facing Store façade.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// WithMetrics attaches a Metrics instance so every façade call records its
// outcome and latency; a Store with no Metrics attached skips recording.
func (s *Store) WithMetrics(m *metrics.Metrics, service string) *Store {
	s.metric = m
	s.service = service
	return s
}

func (s *Store) record(ns Namespace, op, status string, start time.Time) {
	if s.metric == nil {
		return
	}
	s.metric.RecordStorageOperation(s.service, string(ns), op, status, time.Since(start))
}

func (s *Store) Put(ctx context.Context, ns Namespace, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	if err := s.backend.Put(ctx, ns, key, value, ttl); err != nil {
		s.record(ns, "put", "error", start)
		return wrapFailure(err)
	}
	s.record(ns, "put", "success", start)
	return nil
}

func (s *Store) Get(ctx context.Context, ns Namespace, key string) ([]byte, error) {
	start := time.Now()
	v, err := s.backend.Get(ctx, ns, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.record(ns, "get", "not_found", start)
			return nil, ErrNotFound
		}
		s.record(ns, "get", "error", start)
		return nil, wrapFailure(err)
	}
	s.record(ns, "get", "success", start)
	return v, nil
}

func (s *Store) Exists(ctx context.Context, ns Namespace, key string) (bool, error) {
	start := time.Now()
	ok, err := s.backend.Exists(ctx, ns, key)
	if err != nil {
		s.record(ns, "exists", "error", start)
		return false, wrapFailure(err)
	}
	s.record(ns, "exists", "success", start)
	return ok, nil
}

func (s *Store) Delete(ctx context.Context, ns Namespace, key string) error {
	start := time.Now()
	if err := s.backend.Delete(ctx, ns, key); err != nil {
		s.record(ns, "delete", "error", start)
		return wrapFailure(err)
	}
	s.record(ns, "delete", "success", start)
	return nil
}

func (s *Store) Scan(ctx context.Context, ns Namespace) ([]Entry, error) {
	start := time.Now()
	entries, err := s.backend.Scan(ctx, ns)
	if err != nil {
		s.record(ns, "scan", "error", start)
		return nil, wrapFailure(err)
	}
	s.record(ns, "scan", "success", start)
	return entries, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}

func wrapFailure(err error) error {
	return errors.Join(ErrStorageFailure, err)
}
